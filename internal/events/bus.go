// Package events provides a process-local publish/subscribe bus for refresh
// and snapshot lifecycle notifications. Delivery is best-effort with bounded
// buffers: a slow subscriber loses oldest events first and is dropped
// entirely if it cannot keep up at all.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// Event types published on the bus.
const (
	TypeRefreshStarted    = "refresh.started"
	TypeRefreshCompleted  = "refresh.completed"
	TypeSnapshotPromoted  = "snapshot.promoted"
	TypeProviderActivated = "provider.activated"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 50

// Event is a single bus notification.
type Event struct {
	Type string         `json:"type"`
	At   time.Time      `json:"at"`
	Data map[string]any `json:"data,omitempty"`
}

// Subscriber is one bus consumer.
type Subscriber struct {
	ID string
	C  chan Event
}

// Bus fans events out to subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	bufferSize  int
	logger      *slog.Logger
}

// NewBus creates an event bus. bufferSize <= 0 uses DefaultBufferSize.
func NewBus(bufferSize int, logger *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string]*Subscriber),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscribe registers a consumer under the given id. An existing subscriber
// with the same id is replaced and its channel closed.
func (b *Bus) Subscribe(id string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.subscribers[id]; ok {
		close(old.C)
	}
	sub := &Subscriber{ID: id, C: make(chan Event, b.bufferSize)}
	b.subscribers[id] = sub
	return sub
}

// Unsubscribe removes a consumer and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.C)
	}
}

// Publish delivers an event to every subscriber. A full subscriber drops its
// oldest buffered event to make room; one that still refuses is unsubscribed.
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscribers {
		select {
		case sub.C <- event:
			continue
		default:
		}

		// Drop the oldest and retry once.
		select {
		case <-sub.C:
		default:
		}
		select {
		case sub.C <- event:
		default:
			delete(b.subscribers, id)
			close(sub.C)
			b.logger.Warn("dropping unresponsive event subscriber",
				slog.String("subscriber", id),
			)
		}
	}
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
