package snapshot

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/m3undle/m3undle/internal/models"
)

// unitSep joins stream-key identity fields; it cannot occur in URLs.
const unitSep = "\x1f"

// streamKeyLen is the length of the client-facing stream key.
const streamKeyLen = 16

// StreamKey derives the opaque client-facing token for one published channel.
// The identity leans on the upstream channel key (tvg-id) when present so the
// token survives refreshes as long as the channel's identity inputs do; the
// profile id keeps tokens distinct across lineups.
func StreamKey(tvgID, displayName, streamURL, outputGroup string, profileID models.ULID) string {
	var identity string
	if key := strings.TrimSpace(tvgID); key != "" {
		identity = key + unitSep + streamURL + unitSep + outputGroup + unitSep + displayName
	} else {
		identity = displayName + unitSep + streamURL + unitSep + outputGroup
	}

	sum := sha256.Sum256([]byte(identity + ":" + profileID.String()))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:streamKeyLen]
}
