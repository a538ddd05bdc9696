package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/google/uuid"

	"github.com/m3undle/m3undle/internal/events"
)

// eventsHeartbeatInterval is how often the SSE stream emits a keepalive
// comment when no events arrive.
const eventsHeartbeatInterval = 30 * time.Second

// EventsHandler streams refresh and snapshot lifecycle events over SSE.
type EventsHandler struct {
	bus *events.Bus
}

// NewEventsHandler creates an events handler.
func NewEventsHandler(bus *events.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// LifecycleEvent is the SSE event payload.
type LifecycleEvent struct {
	Type string         `json:"type"`
	At   time.Time      `json:"at"`
	Data map[string]any `json:"data,omitempty"`
}

// SSEEventsInput defines query parameters for the events SSE endpoint.
type SSEEventsInput struct {
	Type string `query:"type" doc:"Only events of exactly this type (e.g. refresh.completed)"`
}

// Register registers the events route with the API.
func (h *EventsHandler) Register(api huma.API) {
	// OpenAPI schema only. The live handler is registered on the chi router
	// via RegisterSSE and takes precedence.
	sse.Register(api, huma.Operation{
		OperationID: "eventsStream",
		Method:      "GET",
		Path:        "/api/v1/events",
		Summary:     "Stream lifecycle events",
		Description: "Server-Sent Events stream of refresh.started, refresh.completed, snapshot.promoted and provider.activated events.",
		Tags:        []string{"Events"},
	}, map[string]any{
		"event": LifecycleEvent{},
	}, func(ctx context.Context, input *SSEEventsInput, send sse.Sender) {
		<-ctx.Done()
	})
}

// RegisterSSE registers the live SSE endpoint on a chi router.
func (h *EventsHandler) RegisterSSE(router interface {
	Get(pattern string, handlerFn http.HandlerFunc)
}) {
	router.Get("/api/v1/events", h.handleStream)
}

func (h *EventsHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	typeFilter := r.URL.Query().Get("type")

	subID := "sse-" + uuid.NewString()
	sub := h.bus.Subscribe(subID)
	defer h.bus.Unsubscribe(subID)

	rc := http.NewResponseController(w)

	heartbeat := time.NewTicker(eventsHeartbeatInterval)
	defer heartbeat.Stop()

	fmt.Fprintf(w, ":connected\n\n")
	if err := rc.Flush(); err != nil {
		return
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
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			if typeFilter != "" && event.Type != typeFilter {
				continue
			}
			if err := writeBusEvent(w, event); err != nil {
				slog.Debug("event stream write failed, client likely disconnected", "error", err)
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeBusEvent(w http.ResponseWriter, event events.Event) error {
	data, err := json.Marshal(LifecycleEvent{
		Type: event.Type,
		At:   event.At,
		Data: event.Data,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: event\ndata: %s\n\n", data)
	return err
}
