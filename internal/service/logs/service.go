// Package logs captures application log records for the admin UI: a bounded
// in-memory ring for recent-log queries and a fan-out to live stream
// subscribers. It hooks into slog as a tee handler, so capture costs nothing
// when the admin endpoints are unused.
package logs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// DefaultMaxLogs is the ring buffer capacity.
	DefaultMaxLogs = 500
	// DefaultBufferSize is the per-subscriber channel capacity.
	DefaultBufferSize = 500
)

// Entry is one captured log record.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Subscriber is one live log stream consumer.
type Subscriber struct {
	ID     string
	Events chan *Entry
	Done   chan struct{}
}

// Service buffers recent log records and fans them out to subscribers.
type Service struct {
	mu          sync.RWMutex
	ring        []Entry
	maxLogs     int
	subscribers map[string]*Subscriber
}

// New creates a logs service. maxLogs <= 0 uses DefaultMaxLogs.
func New(maxLogs int) *Service {
	if maxLogs <= 0 {
		maxLogs = DefaultMaxLogs
	}
	return &Service{
		ring:        make([]Entry, 0, maxLogs),
		maxLogs:     maxLogs,
		subscribers: make(map[string]*Subscriber),
	}
}

// WrapHandler tees the given slog.Handler through this service. Records still
// reach their original destination.
func (s *Service) WrapHandler(handler slog.Handler) slog.Handler {
	return &teeHandler{service: s, wrapped: handler}
}

// Add records an entry and broadcasts it. A full subscriber drops its oldest
// buffered entry to make room; one that still refuses is unsubscribed.
func (s *Service) Add(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}

	if len(s.ring) >= s.maxLogs {
		s.ring = s.ring[1:]
	}
	s.ring = append(s.ring, entry)

	for id, sub := range s.subscribers {
		select {
		case sub.Events <- &entry:
			continue
		default:
		}

		// Drop the oldest and retry once.
		select {
		case <-sub.Events:
		default:
		}
		select {
		case sub.Events <- &entry:
		default:
			delete(s.subscribers, id)
			close(sub.Events)
		}
	}
}

// Subscribe registers a live stream consumer. The subscriber is removed when
// ctx is done or its Done channel is closed.
func (s *Service) Subscribe(ctx context.Context) *Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &Subscriber{
		ID:     ulid.Make().String(),
		Events: make(chan *Entry, DefaultBufferSize),
		Done:   make(chan struct{}),
	}
	s.subscribers[sub.ID] = sub

	go func() {
		select {
		case <-ctx.Done():
		case <-sub.Done:
		}
		s.Unsubscribe(sub.ID)
	}()

	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Service) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subscribers[id]; ok {
		close(sub.Events)
		delete(s.subscribers, id)
	}
}

// Recent returns the newest entries, up to limit (0 means everything
// buffered), oldest first.
func (s *Service) Recent(limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.ring) {
		limit = len(s.ring)
	}
	result := make([]Entry, limit)
	copy(result, s.ring[len(s.ring)-limit:])
	return result
}

// SubscriberCount returns the number of live subscribers.
func (s *Service) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// teeHandler forwards records to the wrapped handler and captures a copy.
type teeHandler struct {
	service *Service
	wrapped slog.Handler
	attrs   []slog.Attr
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.wrapped.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := Entry{
		ID:        ulid.Make().String(),
		Timestamp: r.Time,
		Level:     levelName(r.Level),
		Message:   r.Message,
		Fields:    make(map[string]any),
	}
	for _, attr := range h.attrs {
		addAttr(&entry, attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(&entry, a)
		return true
	})
	h.service.Add(entry)
	return h.wrapped.Handle(ctx, r)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &teeHandler{
		service: h.service,
		wrapped: h.wrapped.WithAttrs(attrs),
		attrs:   merged,
	}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{
		service: h.service,
		wrapped: h.wrapped.WithGroup(name),
		attrs:   h.attrs,
	}
}

func addAttr(entry *Entry, attr slog.Attr) {
	if attr.Key == "component" {
		if name, ok := attr.Value.Any().(string); ok {
			entry.Component = name
			return
		}
	}
	entry.Fields[attr.Key] = attr.Value.Any()
}

func levelName(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return "trace"
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}
