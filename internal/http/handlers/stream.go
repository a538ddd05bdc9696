package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/m3undle/m3undle/internal/relay"
)

// StreamHandler exposes the relay on the client-facing stream route.
type StreamHandler struct {
	relay *relay.Relay
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(r *relay.Relay) *StreamHandler {
	return &StreamHandler{relay: r}
}

// RegisterRoutes registers the stream route.
func (h *StreamHandler) RegisterRoutes(router chi.Router) {
	router.Get("/stream/{streamKey}", h.ServeStream)
}

// ServeStream proxies one channel's bytes to the client.
func (h *StreamHandler) ServeStream(w http.ResponseWriter, r *http.Request) {
	h.relay.ServeStream(w, r, chi.URLParam(r, "streamKey"))
}
