// Package connectivity tracks whether the backend is considered reachable
// and fans out online/offline transitions to subscribers.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Monitor caches the current online state and notifies subscribers exactly
// once per actual transition. With no prober attached it stays
// optimistically online, letting callers discover failures at the network
// call itself.
type Monitor struct {
	logger *slog.Logger

	mu          sync.Mutex
	online      bool
	nextID      int
	subscribers map[int]func(online bool)
}

// NewMonitor creates a monitor that starts in the online state.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger:      logger,
		online:      true,
		subscribers: make(map[int]func(online bool)),
	}
}

// IsOnline returns the current cached state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records a new state. Subscribers are notified only when the state
// actually changes; repeated sets of the same value are silent.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	// Snapshot under the lock so an unsubscribe during delivery is safe.
	callbacks := make([]func(online bool), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		callbacks = append(callbacks, fn)
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed", "online", online)
	for _, fn := range callbacks {
		fn(online)
	}
}

// Subscribe registers a listener invoked once per transition. Every
// subscriber receives every transition. The returned function removes the
// subscription.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// Prober checks whether the backend answers at all.
type Prober interface {
	Probe(ctx context.Context) bool
}

// RunProbe drives the monitor from periodic reachability probes until ctx
// is cancelled. Probe failures flip the monitor offline; the first success
// flips it back.
func (m *Monitor) RunProbe(ctx context.Context, prober Prober, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			m.Set(prober.Probe(probeCtx))
			cancel()
		}
	}
}
