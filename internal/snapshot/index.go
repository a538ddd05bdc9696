package snapshot

// IndexEntry is one published channel in a snapshot's channel index. The
// resolved upstream URL never leaves the server; clients only ever see the
// stream key.
type IndexEntry struct {
	StreamKey   string `json:"streamKey"`
	DisplayName string `json:"displayName"`
	TvgID       string `json:"tvgId,omitempty"`
	TvgName     string `json:"tvgName,omitempty"`
	LogoURL     string `json:"logoUrl,omitempty"`
	GroupTitle  string `json:"groupTitle,omitempty"`
	TvgChno     *int   `json:"tvgChno,omitempty"`
	StreamURL   string `json:"streamUrl"`
}

// EmptyGuide is the minimal guide document substituted when a guide fetch
// fails or no guide location is configured.
const EmptyGuide = `<?xml version="1.0" encoding="UTF-8"?>` + "\n<tv/>\n"
