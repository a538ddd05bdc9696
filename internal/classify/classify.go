// Package classify derives a content type from a stream URL.
//
// Classification is a pure function of the URL and is the single source of
// truth for content typing throughout the pipeline: the reconciler stores its
// verdict on every channel row and the snapshot builder routes channels to
// group-decision filtering (live) or the provider include flags (vod,
// series) based on it.
package classify

import (
	"net/url"
	"path"
	"strings"

	"github.com/m3undle/m3undle/internal/models"
)

// vodExtensions are container extensions that mark an entry as VOD when the
// path carries no explicit segment or query hint.
var vodExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
	".mpg": true, ".mpeg": true, ".3gp": true,
}

// liveExtensions are transport-stream and playlist extensions that mark an
// entry as live.
var liveExtensions = map[string]bool{
	".ts": true, ".m3u8": true, ".m2ts": true, ".mts": true,
}

// Classify returns the content type for a stream URL.
//
// Decision order: path segments (live/series/movie|movies|vod), then the
// type/kind query parameter, then the final path extension, then live as the
// default. URLs that do not parse fall back to a substring scan of the raw
// string.
func Classify(rawURL string) models.ContentType {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return classifyRaw(rawURL)
	}

	if ct, ok := classifySegments(u.Path); ok {
		return ct
	}

	if ct, ok := classifyQuery(u.Query()); ok {
		return ct
	}

	if ct, ok := classifyExtension(u.Path); ok {
		return ct
	}

	return models.ContentTypeLive
}

// classifySegments scans path segments for an explicit content marker.
func classifySegments(p string) (models.ContentType, bool) {
	for _, segment := range strings.Split(p, "/") {
		switch strings.ToLower(segment) {
		case "live":
			return models.ContentTypeLive, true
		case "series":
			return models.ContentTypeSeries, true
		case "movie", "movies", "vod":
			return models.ContentTypeVOD, true
		}
	}
	return "", false
}

// classifyQuery maps a type or kind query parameter to a content type.
func classifyQuery(q url.Values) (models.ContentType, bool) {
	for _, key := range []string{"type", "kind"} {
		switch strings.ToLower(q.Get(key)) {
		case "live":
			return models.ContentTypeLive, true
		case "series":
			return models.ContentTypeSeries, true
		case "vod", "movie":
			return models.ContentTypeVOD, true
		}
	}
	return "", false
}

// classifyExtension decides by the final path extension.
func classifyExtension(p string) (models.ContentType, bool) {
	ext := strings.ToLower(path.Ext(p))
	if liveExtensions[ext] {
		return models.ContentTypeLive, true
	}
	if vodExtensions[ext] {
		return models.ContentTypeVOD, true
	}
	return "", false
}

// classifyRaw is the fallback for unparseable URLs. It applies the same
// left-to-right segment priority and extension rules as the parsed path, so
// both branches agree on URLs carrying multiple markers.
func classifyRaw(raw string) models.ContentType {
	trimmed := raw
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}

	if ct, ok := classifySegments(trimmed); ok {
		return ct
	}
	if ct, ok := classifyExtension(trimmed); ok {
		return ct
	}

	return models.ContentTypeLive
}
