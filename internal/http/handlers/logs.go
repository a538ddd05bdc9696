package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/m3undle/m3undle/internal/service/logs"
)

// logsHeartbeatInterval is how often the SSE stream emits a keepalive comment
// when no log entries arrive.
const logsHeartbeatInterval = 30 * time.Second

// LogsHandler handles log inspection and streaming endpoints.
type LogsHandler struct {
	service *logs.Service
}

// NewLogsHandler creates a logs handler.
func NewLogsHandler(service *logs.Service) *LogsHandler {
	return &LogsHandler{service: service}
}

// LogEntryResponse represents a captured log entry in API responses.
type LogEntryResponse struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LogLogEvent is the SSE event payload. Huma needs a distinct named type per
// event for OpenAPI schema generation.
type LogLogEvent LogEntryResponse

func logEntryResponse(entry logs.Entry) LogEntryResponse {
	return LogEntryResponse{
		ID:        entry.ID,
		Timestamp: entry.Timestamp,
		Level:     entry.Level,
		Message:   entry.Message,
		Component: entry.Component,
		Fields:    entry.Fields,
	}
}

// RecentLogsInput is the input for fetching recent logs.
type RecentLogsInput struct {
	Limit int `query:"limit" default:"100" minimum:"1" maximum:"500" doc:"Maximum entries returned"`
}

// RecentLogsOutput is the output for fetching recent logs.
type RecentLogsOutput struct {
	Body struct {
		Logs []LogEntryResponse `json:"logs"`
	}
}

// SSELogsInput defines query parameters for the logs SSE endpoint.
type SSELogsInput struct {
	Level   string `query:"level" doc:"Only entries at exactly this level (debug, info, warn, error)"`
	Initial int    `query:"initial" default:"50" minimum:"0" maximum:"500" doc:"Recent entries replayed on connect"`
}

// Register registers the logs routes with the API.
func (h *LogsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getRecentLogs",
		Method:      "GET",
		Path:        "/api/v1/logs/recent",
		Summary:     "Get recent logs",
		Description: "Returns the most recent entries from the in-memory log ring.",
		Tags:        []string{"Logs"},
	}, h.GetRecent)

	// OpenAPI schema only. The live handler is registered on the chi router
	// via RegisterSSE and takes precedence.
	sse.Register(api, huma.Operation{
		OperationID: "logsStream",
		Method:      "GET",
		Path:        "/api/v1/logs/stream",
		Summary:     "Stream logs",
		Description: "Server-Sent Events stream of log entries. Sends `:connected` on open and `:heartbeat <unix_epoch>` every 30s of silence.",
		Tags:        []string{"Logs"},
	}, map[string]any{
		"log": LogLogEvent{},
	}, func(ctx context.Context, input *SSELogsInput, send sse.Sender) {
		<-ctx.Done()
	})
}

// RegisterSSE registers the live SSE endpoint on a chi router.
func (h *LogsHandler) RegisterSSE(router interface {
	Get(pattern string, handlerFn http.HandlerFunc)
}) {
	router.Get("/api/v1/logs/stream", h.handleStream)
}

// GetRecent returns the most recent log entries.
func (h *LogsHandler) GetRecent(ctx context.Context, input *RecentLogsInput) (*RecentLogsOutput, error) {
	entries := h.service.Recent(input.Limit)
	out := &RecentLogsOutput{}
	out.Body.Logs = make([]LogEntryResponse, len(entries))
	for i, entry := range entries {
		out.Body.Logs[i] = logEntryResponse(entry)
	}
	return out, nil
}

func (h *LogsHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	levelFilter := r.URL.Query().Get("level")
	initial := 50
	if raw := r.URL.Query().Get("initial"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 && n <= 500 {
			initial = n
		}
	}

	sub := h.service.Subscribe(r.Context())
	rc := http.NewResponseController(w)

	heartbeat := time.NewTicker(logsHeartbeatInterval)
	defer heartbeat.Stop()

	fmt.Fprintf(w, ":connected\n\n")
	if err := rc.Flush(); err != nil {
		return
	}

	if initial > 0 {
		for _, entry := range h.service.Recent(initial) {
			if levelFilter != "" && entry.Level != levelFilter {
				continue
			}
			if err := writeLogEvent(w, entry); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				return
			}
		case entry, ok := <-sub.Events:
			if !ok {
				return
			}
			if levelFilter != "" && entry.Level != levelFilter {
				continue
			}
			if err := writeLogEvent(w, *entry); err != nil {
				slog.Debug("log stream write failed, client likely disconnected", "error", err)
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeLogEvent(w http.ResponseWriter, entry logs.Entry) error {
	data, err := json.Marshal(logEntryResponse(entry))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: log\ndata: %s\n\n", data)
	return err
}
