package models

// ContentType partitions catalog entries by what kind of stream they point at.
// It is derived purely from the stream URL by the classifier and governs
// whether a channel is subject to group-decision filtering (live) or to the
// provider-level include flags (vod, series).
type ContentType string

const (
	// ContentTypeLive represents a live broadcast stream.
	ContentTypeLive ContentType = "live"
	// ContentTypeVOD represents a video-on-demand item.
	ContentTypeVOD ContentType = "vod"
	// ContentTypeSeries represents an episodic series item.
	ContentTypeSeries ContentType = "series"
	// ContentTypeMixed marks a group whose channels span more than one type.
	// Individual channels are never mixed.
	ContentTypeMixed ContentType = "mixed"
)

// Valid reports whether the content type is one of the channel-level labels.
func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeLive, ContentTypeVOD, ContentTypeSeries:
		return true
	}
	return false
}

// ValidForGroup reports whether the content type is allowed on a group row.
func (c ContentType) ValidForGroup() bool {
	return c.Valid() || c == ContentTypeMixed
}
