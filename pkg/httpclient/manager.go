package httpclient

import (
	"log/slog"
	"sync"
	"time"
)

// BreakerSettings holds the parameters applied to every breaker a manager creates.
type BreakerSettings struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	HalfOpenMax      int
}

// DefaultBreakerSettings returns settings matching the package defaults.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureThreshold: DefaultCircuitThreshold,
		ResetTimeout:     DefaultCircuitTimeout,
		HalfOpenMax:      DefaultCircuitHalfOpenMax,
	}
}

// BreakerManager hands out shared circuit breakers by name. Callers asking
// for the same name get the same breaker instance, so failure state is
// shared across every client talking to that upstream.
type BreakerManager struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	settings BreakerSettings
	logger   *slog.Logger
}

// NewBreakerManager creates a manager that applies the given settings to
// every breaker it creates.
func NewBreakerManager(settings BreakerSettings) *BreakerManager {
	return &BreakerManager{
		breakers: make(map[string]*CircuitBreaker),
		settings: settings,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger for the manager.
func (m *BreakerManager) WithLogger(logger *slog.Logger) *BreakerManager {
	m.logger = logger
	return m
}

// GetOrCreate returns the existing circuit breaker for the name, creating
// one if needed. Multiple calls with the same name return the same instance.
func (m *BreakerManager) GetOrCreate(name string) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, ok := m.breakers[name]; ok {
		return breaker
	}

	breaker := NewCircuitBreaker(m.settings.FailureThreshold, m.settings.ResetTimeout, m.settings.HalfOpenMax)
	m.breakers[name] = breaker

	m.logger.Debug("created circuit breaker",
		slog.String("name", name),
		slog.Int("failure_threshold", m.settings.FailureThreshold),
		slog.Duration("reset_timeout", m.settings.ResetTimeout),
	)

	return breaker
}

// Get returns an existing circuit breaker by name, or nil if not found.
func (m *BreakerManager) Get(name string) *CircuitBreaker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.breakers[name]
}

// Remove drops a circuit breaker from the manager, typically when the
// upstream it guarded no longer exists.
func (m *BreakerManager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.breakers[name]; !ok {
		return false
	}
	delete(m.breakers, name)
	return true
}

// Names returns the names of all active circuit breakers.
func (m *BreakerManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.breakers))
	for name := range m.breakers {
		names = append(names, name)
	}
	return names
}

// AllStats returns statistics for all active circuit breakers.
func (m *BreakerManager) AllStats() map[string]CircuitBreakerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]CircuitBreakerStats, len(m.breakers))
	for name, breaker := range m.breakers {
		stats[name] = breaker.Stats()
	}
	return stats
}

// ResetBreaker resets a specific circuit breaker to closed state.
func (m *BreakerManager) ResetBreaker(name string) bool {
	m.mu.RLock()
	breaker, ok := m.breakers[name]
	m.mu.RUnlock()

	if !ok {
		return false
	}

	breaker.Reset()
	m.logger.Info("circuit breaker reset", slog.String("name", name))
	return true
}
