// Package m3u provides streaming M3U playlist parsing and writing.
// It supports the extended M3U dialect used by IPTV providers, including
// EXTINF attribute metadata and per-entry EXTGRP group markers.
package m3u

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"

	"compress/gzip"
)

// Entry represents a single channel entry in an M3U playlist.
type Entry struct {
	// Duration is the track duration in seconds (-1 for live streams).
	Duration int

	// TvgID is the EPG channel identifier.
	TvgID string

	// TvgName is the display name from the tvg-name attribute.
	TvgName string

	// TvgLogo is the URL to the channel logo.
	TvgLogo string

	// GroupTitle is the category/group for the entry. An explicit
	// #EXTGRP marker takes precedence over the group-title attribute.
	GroupTitle string

	// ChannelNumber is the channel number from the tvg-chno attribute.
	ChannelNumber int

	// Title is the display label trailing the EXTINF line.
	Title string

	// URL is the stream URL.
	URL string

	// Extra contains any additional attributes not explicitly parsed.
	Extra map[string]string
}

// Stats summarizes a completed parse.
type Stats struct {
	// Entries is the number of entries delivered to OnEntry.
	Entries int

	// Lines is the number of input lines consumed.
	Lines int

	// ExtM3U reports whether an #EXTM3U header line was seen.
	ExtM3U bool
}

// Parser provides streaming M3U parsing with callback-based processing.
type Parser struct {
	// OnEntry is called for each parsed entry.
	OnEntry func(entry *Entry) error

	// OnError is called for recoverable parsing errors.
	// If nil, errors are silently ignored.
	OnError func(lineNum int, err error)
}

var (
	// Matches duration and attributes portion: #EXTINF:-1 tvg-id="..." tvg-name="...",Title
	extinfRegex = regexp.MustCompile(`^#EXTINF:\s*(-?\d+)\s*(.*)$`)

	// Matches key="value" or key=value patterns
	attrRegex = regexp.MustCompile(`([a-zA-Z0-9_-]+)=(?:"([^"]*)"|([^\s,]+))`)
)

// Parse parses an M3U playlist from a reader, calling OnEntry for each channel.
// It returns statistics about the parsed document; callers can use Stats.ExtM3U
// and Stats.Entries to decide whether the payload was a playlist at all.
func (p *Parser) Parse(r io.Reader) (*Stats, error) {
	if p.OnEntry == nil {
		return nil, fmt.Errorf("OnEntry callback is required")
	}

	scanner := bufio.NewScanner(r)
	// Some provider playlists carry very long URL lines.
	const maxLineSize = 1024 * 1024 // 1MB
	buf := make([]byte, maxLineSize)
	scanner.Buffer(buf, maxLineSize)

	stats := &Stats{}
	var currentEntry *Entry

	for scanner.Scan() {
		stats.Lines++
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#EXTM3U") {
			stats.ExtM3U = true
			continue
		}

		if strings.HasPrefix(line, "#EXTINF:") {
			entry, err := p.parseExtinf(line)
			if err != nil {
				p.handleError(stats.Lines, err)
				continue
			}
			currentEntry = entry
			continue
		}

		// An explicit group marker overrides the group-title attribute
		// of the entry it belongs to.
		if strings.HasPrefix(line, "#EXTGRP:") {
			if currentEntry != nil {
				if name := strings.TrimSpace(strings.TrimPrefix(line, "#EXTGRP:")); name != "" {
					currentEntry.GroupTitle = name
				}
			}
			continue
		}

		// Skip other comment lines.
		if strings.HasPrefix(line, "#") {
			continue
		}

		// This should be a URL line.
		if currentEntry != nil {
			currentEntry.URL = line
			if err := p.OnEntry(currentEntry); err != nil {
				return stats, fmt.Errorf("callback error at line %d: %w", stats.Lines, err)
			}
			stats.Entries++
			currentEntry = nil
		} else if stats.ExtM3U {
			// URL without EXTINF inside an extended playlist.
			entry := &Entry{
				Duration: -1,
				URL:      line,
				Title:    titleFromURL(line),
			}
			if err := p.OnEntry(entry); err != nil {
				return stats, fmt.Errorf("callback error at line %d: %w", stats.Lines, err)
			}
			stats.Entries++
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scanning playlist: %w", err)
	}

	return stats, nil
}

// ParseCompressed parses a potentially compressed M3U playlist.
// It auto-detects gzip, bzip2, and xz payloads by their magic bytes.
func (p *Parser) ParseCompressed(r io.Reader) (*Stats, error) {
	br := bufio.NewReader(r)

	header, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("peeking header: %w", err)
	}

	var reader io.Reader = br

	switch {
	case len(header) >= 2 && header[0] == 0x1f && header[1] == 0x8b:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gzr.Close()
		reader = gzr

	case len(header) >= 3 && header[0] == 'B' && header[1] == 'Z' && header[2] == 'h':
		bzr, err := bzip2.NewReader(br, nil)
		if err != nil {
			return nil, fmt.Errorf("creating bzip2 reader: %w", err)
		}
		defer bzr.Close()
		reader = bzr

	case len(header) >= 6 && header[0] == 0xfd && header[1] == '7' && header[2] == 'z' && header[3] == 'X' && header[4] == 'Z' && header[5] == 0x00:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating xz reader: %w", err)
		}
		reader = xzr
	}

	return p.Parse(reader)
}

// parseExtinf parses an EXTINF line and extracts metadata.
func (p *Parser) parseExtinf(line string) (*Entry, error) {
	matches := extinfRegex.FindStringSubmatch(line)
	if matches == nil {
		return nil, fmt.Errorf("invalid EXTINF format")
	}

	duration, _ := strconv.Atoi(matches[1])
	remainder := matches[2]

	entry := &Entry{
		Duration: duration,
		Extra:    make(map[string]string),
	}

	// The title is everything after the last comma outside quotes.
	titleIdx := findTitleStart(remainder)
	if titleIdx >= 0 {
		entry.Title = strings.TrimSpace(remainder[titleIdx+1:])
		remainder = remainder[:titleIdx]
	}

	attrMatches := attrRegex.FindAllStringSubmatch(remainder, -1)
	for _, match := range attrMatches {
		key := strings.ToLower(match[1])
		value := match[2]
		if value == "" {
			value = match[3]
		}

		switch key {
		case "tvg-id":
			entry.TvgID = value
		case "tvg-name":
			entry.TvgName = value
		case "tvg-logo":
			entry.TvgLogo = value
		case "group-title":
			entry.GroupTitle = value
		case "tvg-chno":
			entry.ChannelNumber, _ = strconv.Atoi(value)
		default:
			entry.Extra[key] = value
		}
	}

	return entry, nil
}

// findTitleStart finds the index of the comma that separates attributes from
// the title, scanning backwards so commas inside quoted values are skipped.
func findTitleStart(s string) int {
	inQuotes := false
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '"' {
			inQuotes = !inQuotes
		}
		if s[i] == ',' && !inQuotes {
			return i
		}
	}
	return -1
}

// titleFromURL derives a best-effort title from a bare URL line.
func titleFromURL(url string) string {
	parts := strings.Split(url, "/")
	if len(parts) == 0 {
		return ""
	}
	filename := parts[len(parts)-1]
	if idx := strings.Index(filename, "?"); idx > 0 {
		filename = filename[:idx]
	}
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		filename = filename[:idx]
	}
	return filename
}

// handleError calls the OnError callback if set.
func (p *Parser) handleError(lineNum int, err error) {
	if p.OnError != nil {
		p.OnError(lineNum, err)
	}
}
