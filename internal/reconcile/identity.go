package reconcile

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/m3undle/m3undle/pkg/m3u"
)

// unitSep joins identity fields. It cannot appear in URLs and is vanishingly
// unlikely in channel metadata, so joined fields cannot collide by
// concatenation.
const unitSep = "\x1f"

// stableKeyLen is the length of the derived channel key.
const stableKeyLen = 16

// UnnamedChannel is the display name of last resort.
const UnnamedChannel = "Unnamed Channel"

// ResolveDisplayName applies the display-name fallback chain: trailing EXTINF
// label, then tvg-name, then a fixed placeholder. Whitespace-only values count
// as absent.
func ResolveDisplayName(entry *m3u.Entry) string {
	if name := strings.TrimSpace(entry.Title); name != "" {
		return name
	}
	if name := strings.TrimSpace(entry.TvgName); name != "" {
		return name
	}
	return UnnamedChannel
}

// StableIdentity builds the channel identity string. The base is the tvg-id
// when present, else displayName+streamURL; the full stream URL, group and
// display name are always appended so channels sharing a tvg-id across groups
// stay distinct.
func StableIdentity(tvgID, displayName, streamURL, groupTitle string) string {
	base := strings.TrimSpace(tvgID)
	if base == "" {
		base = displayName + unitSep + streamURL
	}
	return base + unitSep + streamURL + unitSep + groupTitle + unitSep + displayName
}

// DupIdentity suffixes the Nth (N >= 2) occurrence of an identity within one
// fetch so exact-duplicate playlist lines survive as distinct rows.
func DupIdentity(identity string, n int) string {
	return identity + unitSep + fmt.Sprintf("dup:%d", n)
}

// StableKey derives the persistent channel key from an identity string:
// the first 16 characters of the unpadded base64url SHA-256 digest.
func StableKey(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:stableKeyLen]
}
