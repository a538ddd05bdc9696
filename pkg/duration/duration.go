// Package duration extends Go's duration parsing and formatting with day and
// week units, which show up naturally in refresh intervals and retention
// windows ("7d", "2w", "36h").
package duration

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	// Day is 24 hours.
	Day = 24 * time.Hour
	// Week is 7 days.
	Week = 7 * Day
)

// Parse parses a duration string. Everything time.ParseDuration accepts is
// accepted, plus "d" (days) and "w" (weeks) units and optional whitespace
// between components: "1w 2d 12h" is one week, two days and twelve hours.
func Parse(s string) (time.Duration, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	negative := strings.HasPrefix(trimmed, "-")
	if negative {
		trimmed = strings.TrimSpace(trimmed[1:])
	}

	var total time.Duration
	var pending strings.Builder // standard units passed through to time.ParseDuration

	rest := trimmed
	for rest != "" {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if rest == "" {
			break
		}

		numEnd := 0
		for numEnd < len(rest) && (isDigit(rest[numEnd]) || rest[numEnd] == '.') {
			numEnd++
		}
		if numEnd == 0 {
			return 0, fmt.Errorf("duration: invalid syntax in %q", s)
		}
		unitEnd := numEnd
		for unitEnd < len(rest) && isUnitByte(rest[unitEnd]) {
			unitEnd++
		}
		if unitEnd == numEnd {
			return 0, fmt.Errorf("duration: missing unit in %q", s)
		}

		number, unit := rest[:numEnd], rest[numEnd:unitEnd]
		rest = rest[unitEnd:]

		switch unit {
		case "d":
			d, err := time.ParseDuration(number + "h")
			if err != nil {
				return 0, fmt.Errorf("duration: %w", err)
			}
			total += d * 24
		case "w":
			d, err := time.ParseDuration(number + "h")
			if err != nil {
				return 0, fmt.Errorf("duration: %w", err)
			}
			total += d * 24 * 7
		default:
			pending.WriteString(number)
			pending.WriteString(unit)
		}
	}

	if pending.Len() > 0 {
		d, err := time.ParseDuration(pending.String())
		if err != nil {
			return 0, fmt.Errorf("duration: %w", err)
		}
		total += d
	}

	if negative {
		total = -total
	}
	return total, nil
}

// Format renders a duration with the largest fitting units, omitting zero
// components: 26 hours becomes "1d2h", 90 seconds "1m30s". Sub-second
// durations fall back to the standard library rendering.
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	if d > -time.Second && d < time.Second {
		return d.String()
	}

	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}

	d = d.Round(time.Second)
	for _, step := range []struct {
		unit string
		size time.Duration
	}{
		{"w", Week},
		{"d", Day},
		{"h", time.Hour},
		{"m", time.Minute},
		{"s", time.Second},
	} {
		if n := d / step.size; n > 0 {
			fmt.Fprintf(&b, "%d%s", n, step.unit)
			d -= n * step.size
		}
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// isUnitByte reports whether c can appear in a duration unit. The µ covers
// time.ParseDuration's microsecond spelling, split across two bytes in UTF-8.
func isUnitByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || c == 0xc2 || c == 0xb5
}
