package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3undle/m3undle/internal/config"
)

func newTestLogger(t *testing.T, cfg config.LoggingConfig) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return NewLoggerWithWriter(cfg, &buf), &buf
}

func TestNewLoggerWithWriter_JSONFormat(t *testing.T) {
	logger, buf := newTestLogger(t, config.LoggingConfig{Level: "info", Format: "json"})
	logger.Info("refresh queued", slog.String("mode", "full"))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "refresh queued", parsed["msg"])
	assert.Equal(t, "full", parsed["mode"])
}

func TestNewLoggerWithWriter_TextFormat(t *testing.T) {
	logger, buf := newTestLogger(t, config.LoggingConfig{Level: "info", Format: "text"})
	logger.Info("snapshot promoted", slog.Int("channels", 42))

	out := buf.String()
	assert.Contains(t, out, "snapshot promoted")
	assert.Contains(t, out, "channels=42")
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	logger, buf := newTestLogger(t, config.LoggingConfig{Level: "warn", Format: "text"})

	logger.Debug("not this")
	logger.Info("nor this")
	logger.Warn("but this")

	out := buf.String()
	assert.NotContains(t, out, "not this")
	assert.NotContains(t, out, "nor this")
	assert.Contains(t, out, "but this")
}

func TestNewLoggerWithWriter_TraceLevel(t *testing.T) {
	logger, buf := newTestLogger(t, config.LoggingConfig{Level: "trace", Format: "json"})
	logger.Log(context.Background(), LevelTrace, "relay chunk copied")

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "TRACE", parsed["level"])
}

func TestNewLoggerWithWriter_RedactsSecrets(t *testing.T) {
	type upstream struct {
		Name  string
		Token string `masq:"secret"`
	}

	logger, buf := newTestLogger(t, config.LoggingConfig{
		Level:         "info",
		Format:        "json",
		RedactSecrets: true,
	})
	logger.Info("provider configured",
		slog.Any("upstream", upstream{Name: "primary", Token: "super-secret"}),
		slog.Any("headers", map[string]string{"Accept": "*/*"}),
	)

	out := buf.String()
	assert.Contains(t, out, "primary")
	assert.NotContains(t, out, "super-secret")
}

func TestNewLoggerWithWriter_RedactionDisabled(t *testing.T) {
	type upstream struct {
		Token string `masq:"secret"`
	}

	logger, buf := newTestLogger(t, config.LoggingConfig{Level: "info", Format: "json"})
	logger.Info("provider configured", slog.Any("upstream", upstream{Token: "visible"}))

	assert.Contains(t, buf.String(), "visible")
}

func TestNewLoggerWithWriter_CustomTimeFormat(t *testing.T) {
	logger, buf := newTestLogger(t, config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		TimeFormat: "2006-01-02",
	})
	logger.Info("hello")

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	ts, ok := parsed["time"].(string)
	require.True(t, ok)
	assert.Len(t, ts, len("2006-01-02"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestSetLogLevel_Runtime(t *testing.T) {
	logger, buf := newTestLogger(t, config.LoggingConfig{Level: "info", Format: "text"})

	logger.Debug("before")
	SetLogLevel(slog.LevelDebug)
	defer SetLogLevel(slog.LevelInfo)
	logger.Debug("after")

	out := buf.String()
	assert.NotContains(t, out, "before")
	assert.Contains(t, out, "after")
	assert.Equal(t, slog.LevelDebug, GetLogLevel())
}

func TestWithHelpers(t *testing.T) {
	logger, buf := newTestLogger(t, config.LoggingConfig{Level: "info", Format: "text"})

	l := WithComponent(logger, "builder")
	l = WithRequestID(l, "req-1")
	l = WithError(l, errors.New("boom"))
	l.Info("failed")

	out := buf.String()
	assert.Contains(t, out, "component=builder")
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "error=boom")
}

func TestWithError_Nil(t *testing.T) {
	logger, _ := newTestLogger(t, config.LoggingConfig{Level: "info", Format: "text"})
	assert.Same(t, logger, WithError(logger, nil))
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = ContextWithRequestID(ctx, "req-9")
	assert.Equal(t, "req-9", RequestIDFromContext(ctx))

	logger, _ := newTestLogger(t, config.LoggingConfig{Level: "info", Format: "text"})
	assert.Same(t, slog.Default(), LoggerFromContext(context.Background()))
	ctx = ContextWithLogger(ctx, logger)
	assert.Same(t, logger, LoggerFromContext(ctx))
}

func TestTimedOperationWithError(t *testing.T) {
	logger, buf := newTestLogger(t, config.LoggingConfig{Level: "info", Format: "text"})

	var err error
	done := TimedOperationWithError(context.Background(), logger, "refresh", &err)
	err = errors.New("upstream down")
	done()

	out := buf.String()
	require.Equal(t, 2, strings.Count(out, "\n"), out)
	assert.Contains(t, out, "operation started")
	assert.Contains(t, out, "operation failed")
	assert.Contains(t, out, "upstream down")
}
