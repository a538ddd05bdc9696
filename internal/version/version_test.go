package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuildInfo(t *testing.T, version, commit string) {
	t.Helper()
	origVersion, origCommit := Version, Commit
	t.Cleanup(func() {
		Version, Commit = origVersion, origCommit
	})
	Version, Commit = version, commit
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.NotEmpty(t, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Contains(t, info.Platform, runtime.GOOS)
	assert.Contains(t, info.Platform, runtime.GOARCH)
}

func TestInfo_JSONFields(t *testing.T) {
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"version", "commit", "date", "go_version", "platform"} {
		assert.Contains(t, m, key)
	}
}

func TestString(t *testing.T) {
	t.Run("dev build", func(t *testing.T) {
		withBuildInfo(t, "dev", "unknown")
		s := String()
		assert.Contains(t, s, ApplicationName)
		assert.Contains(t, s, "version dev")
		assert.NotContains(t, s, "commit")
	})

	t.Run("release build includes short commit", func(t *testing.T) {
		withBuildInfo(t, "1.2.3", "0123456789abcdef")
		s := String()
		assert.Contains(t, s, "version 1.2.3")
		assert.Contains(t, s, "01234567")
		assert.NotContains(t, s, "0123456789abcdef")
	})
}

func TestShort(t *testing.T) {
	t.Run("dev build", func(t *testing.T) {
		withBuildInfo(t, "dev", "unknown")
		assert.Equal(t, "m3undle dev", Short())
	})

	t.Run("release build", func(t *testing.T) {
		withBuildInfo(t, "1.2.3", "0123456789abcdef")
		assert.Equal(t, "m3undle 1.2.3 (01234567)", Short())
	})
}

func TestUserAgent(t *testing.T) {
	withBuildInfo(t, "1.2.3", "unknown")
	assert.Equal(t, "m3undle/1.2.3", UserAgent())
}
