package m3u

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Writer provides streaming M3U playlist writing with LF line endings.
type Writer struct {
	w             io.Writer
	headerWritten bool
}

// NewWriter creates a new M3U writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes a bare M3U header.
// It is called automatically by WriteEntry if no header was written yet.
func (w *Writer) WriteHeader() error {
	return w.writeHeader("#EXTM3U")
}

// WriteHeaderWithGuide writes the M3U header carrying the guide location in
// both the url-tvg and x-tvg-url attributes (players disagree on which one
// they read).
func (w *Writer) WriteHeaderWithGuide(guideURL string) error {
	if guideURL == "" {
		return w.WriteHeader()
	}
	escaped := escapeQuotes(guideURL)
	return w.writeHeader(fmt.Sprintf(`#EXTM3U url-tvg="%s" x-tvg-url="%s"`, escaped, escaped))
}

func (w *Writer) writeHeader(line string) error {
	if w.headerWritten {
		return nil
	}
	if _, err := fmt.Fprintf(w.w, "%s\n", line); err != nil {
		return fmt.Errorf("writing M3U header: %w", err)
	}
	w.headerWritten = true
	return nil
}

// WriteEntry writes a single channel entry to the playlist. Attribute order
// is fixed and extra attributes are emitted in sorted key order so identical
// input always produces identical bytes.
func (w *Writer) WriteEntry(entry *Entry) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}

	var attrs []string

	if entry.TvgID != "" {
		attrs = append(attrs, fmt.Sprintf(`tvg-id="%s"`, escapeQuotes(entry.TvgID)))
	}
	if entry.TvgName != "" {
		attrs = append(attrs, fmt.Sprintf(`tvg-name="%s"`, escapeQuotes(entry.TvgName)))
	}
	if entry.TvgLogo != "" {
		attrs = append(attrs, fmt.Sprintf(`tvg-logo="%s"`, escapeQuotes(entry.TvgLogo)))
	}
	if entry.GroupTitle != "" {
		attrs = append(attrs, fmt.Sprintf(`group-title="%s"`, escapeQuotes(entry.GroupTitle)))
	}
	if entry.ChannelNumber > 0 {
		attrs = append(attrs, fmt.Sprintf(`tvg-chno="%d"`, entry.ChannelNumber))
	}

	if len(entry.Extra) > 0 {
		keys := make([]string, 0, len(entry.Extra))
		for k := range entry.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			attrs = append(attrs, fmt.Sprintf(`%s="%s"`, k, escapeQuotes(entry.Extra[k])))
		}
	}

	duration := entry.Duration
	if duration == 0 {
		duration = -1
	}

	var extinf string
	if len(attrs) > 0 {
		extinf = fmt.Sprintf("#EXTINF:%d %s,%s", duration, strings.Join(attrs, " "), entry.Title)
	} else {
		extinf = fmt.Sprintf("#EXTINF:%d,%s", duration, entry.Title)
	}

	if _, err := fmt.Fprintf(w.w, "%s\n", extinf); err != nil {
		return fmt.Errorf("writing EXTINF: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "%s\n", entry.URL); err != nil {
		return fmt.Errorf("writing URL: %w", err)
	}

	return nil
}

// escapeQuotes escapes double quotes in attribute values.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
