// Package syncer drains the pending change log against the backend on a
// fixed cadence and publishes sync status to observers.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/timestitch/timestitch/internal/connectivity"
	"github.com/timestitch/timestitch/internal/domain"
)

const (
	// DefaultInterval is the retry cadence between drain passes.
	DefaultInterval = 30 * time.Second

	// DefaultCallTimeout bounds each remote call so one stuck entry cannot
	// hang a drain pass.
	DefaultCallTimeout = 15 * time.Second
)

// Engine owns the SyncStatus and the drain loop. It is constructed by the
// application's composition root and passed by reference to whatever needs
// to observe sync state.
type Engine struct {
	log      domain.ChangeLog
	remote   domain.Remote
	monitor  *connectivity.Monitor
	meta     domain.SnapshotStore
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration

	mu        sync.Mutex
	status    domain.SyncStatus
	observers map[int]func(domain.SyncStatus)
	nextObsID int
	draining  bool
	cancel    context.CancelFunc
	unsubNet  func()
	kick      chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithInterval overrides the drain cadence.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// WithCallTimeout overrides the per-entry remote call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// NewEngine creates a sync engine. meta may be nil when last-sync
// persistence is not wanted.
func NewEngine(log domain.ChangeLog, remote domain.Remote, monitor *connectivity.Monitor, meta domain.SnapshotStore, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		log:       log,
		remote:    remote,
		monitor:   monitor,
		meta:      meta,
		logger:    logger,
		interval:  DefaultInterval,
		timeout:   DefaultCallTimeout,
		observers: make(map[int]func(domain.SyncStatus)),
		kick:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.status.PendingCount = log.Len()
	if meta != nil {
		if t, ok := meta.LastSyncAt(); ok {
			e.status.LastSyncAt = t
		}
	}
	return e
}

// Status returns a copy of the current sync status.
func (e *Engine) Status() domain.SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// OnStatusChange registers an observer invoked on every status update.
// Every observer sees every update. The returned function unregisters it.
func (e *Engine) OnStatusChange(fn func(domain.SyncStatus)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextObsID
	e.nextObsID++
	e.observers[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.observers, id)
	}
}

// Start arms the drain timer and begins reacting to reconnects. Calling
// Start on a running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	// Reconnects with queued work trigger an immediate pass.
	if e.monitor != nil {
		e.unsubNet = e.monitor.Subscribe(func(online bool) {
			if online && e.log.Len() > 0 {
				e.requestDrain()
			}
		})
	}

	e.updateStatus(func(s *domain.SyncStatus) { s.IsActive = true })
	e.logger.Info("sync engine started", "interval", e.interval)

	go e.run(ctx)
}

// Stop cancels the timer loop. Queued changes stay in the log.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	unsub := e.unsubNet
	e.cancel = nil
	e.unsubNet = nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if unsub != nil {
		unsub()
	}

	e.updateStatus(func(s *domain.SyncStatus) { s.IsActive = false })
	e.logger.Info("sync engine stopped")
}

// SyncNow performs one drain pass immediately, regardless of the timer.
func (e *Engine) SyncNow(ctx context.Context) error {
	return e.drain(ctx)
}

// NotePending refreshes PendingCount from the change log and notifies
// observers. The data-access layer calls this after queuing a change.
func (e *Engine) NotePending() {
	e.updateStatus(func(s *domain.SyncStatus) { s.PendingCount = e.log.Len() })
}

// requestDrain schedules an out-of-band drain pass without blocking.
func (e *Engine) requestDrain() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// run is the timer loop: a fixed-interval tick plus on-demand kicks.
func (e *Engine) run(ctx context.Context) {
	// Initial pass picks up anything queued before this session.
	if err := e.drain(ctx); err != nil {
		e.logger.Debug("initial sync pass incomplete", "error", err)
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.kick:
		}
		if err := e.drain(ctx); err != nil {
			e.logger.Debug("sync pass incomplete", "error", err)
		}
	}
}

// drain applies queued changes FIFO against the backend. The first failure
// ends the pass: confirmed entries are removed, the failed entry and its
// successors stay queued byte-for-byte for the next pass.
func (e *Engine) drain(ctx context.Context) error {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return fmt.Errorf("sync already in progress")
	}
	e.draining = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.draining = false
		e.mu.Unlock()
	}()

	changes := e.log.ReadAll()
	if len(changes) == 0 {
		e.recordSuccess()
		return nil
	}

	e.logger.Info("draining change log", "pending", len(changes))

	var applied []string
	var failure error

	for _, change := range changes {
		if ctx.Err() != nil {
			failure = ctx.Err()
			break
		}

		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		err := e.apply(callCtx, change)
		cancel()

		if err != nil {
			// Never apply entry N+1 before entry N is confirmed; a memory
			// queued behind its project must not arrive first.
			e.logger.Warn("drain stopped", "changeID", change.ID, "kind", change.Kind, "entity", change.Entity, "error", err)
			failure = err
			break
		}
		applied = append(applied, change.ID)
	}

	if len(applied) > 0 {
		if err := e.log.RemoveApplied(applied); err != nil {
			e.logger.Error("failed to remove applied changes", "error", err)
			if failure == nil {
				failure = err
			}
		}
	}

	if failure != nil {
		e.updateStatus(func(s *domain.SyncStatus) {
			s.PendingCount = e.log.Len()
			s.LastError = failure.Error()
		})
		return failure
	}

	e.recordSuccess()
	e.logger.Info("change log drained", "applied", len(applied))
	return nil
}

// recordSuccess marks a fully drained queue.
func (e *Engine) recordSuccess() {
	now := time.Now().UTC()
	if e.meta != nil {
		if err := e.meta.SetLastSyncAt(now); err != nil {
			e.logger.Warn("failed to persist last sync time", "error", err)
		}
	}
	e.updateStatus(func(s *domain.SyncStatus) {
		s.LastSyncAt = now
		s.PendingCount = 0
		s.LastError = ""
	})
}

// apply replays one pending change against the backend.
func (e *Engine) apply(ctx context.Context, change domain.PendingChange) error {
	switch change.Entity {
	case domain.EntityProject:
		return e.applyProject(ctx, change)
	case domain.EntityMemory:
		return e.applyMemory(ctx, change)
	default:
		return fmt.Errorf("unknown entity type %q", change.Entity)
	}
}

func (e *Engine) applyProject(ctx context.Context, change domain.PendingChange) error {
	switch change.Kind {
	case domain.ChangeCreate:
		var p domain.Project
		if err := json.Unmarshal(change.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode project payload: %w", err)
		}
		_, err := e.remote.CreateProject(ctx, p)
		return err
	case domain.ChangeUpdate:
		var patch domain.ProjectPatch
		if err := json.Unmarshal(change.Payload, &patch); err != nil {
			return fmt.Errorf("failed to decode project patch: %w", err)
		}
		_, err := e.remote.UpdateProject(ctx, change.EntityID, patch)
		return err
	case domain.ChangeDelete:
		return e.remote.DeleteProject(ctx, change.EntityID)
	default:
		return fmt.Errorf("unknown change kind %q", change.Kind)
	}
}

func (e *Engine) applyMemory(ctx context.Context, change domain.PendingChange) error {
	switch change.Kind {
	case domain.ChangeCreate:
		var m domain.Memory
		if err := json.Unmarshal(change.Payload, &m); err != nil {
			return fmt.Errorf("failed to decode memory payload: %w", err)
		}
		_, err := e.remote.CreateMemory(ctx, m)
		return err
	case domain.ChangeUpdate:
		var patch domain.MemoryPatch
		if err := json.Unmarshal(change.Payload, &patch); err != nil {
			return fmt.Errorf("failed to decode memory patch: %w", err)
		}
		_, err := e.remote.UpdateMemory(ctx, change.EntityID, patch)
		return err
	case domain.ChangeDelete:
		return e.remote.DeleteMemory(ctx, change.EntityID)
	default:
		return fmt.Errorf("unknown change kind %q", change.Kind)
	}
}

// updateStatus mutates the status under the lock and notifies observers
// with a snapshot.
func (e *Engine) updateStatus(mutate func(*domain.SyncStatus)) {
	e.mu.Lock()
	mutate(&e.status)
	snapshot := e.status
	observers := make([]func(domain.SyncStatus), 0, len(e.observers))
	for _, fn := range e.observers {
		observers = append(observers, fn)
	}
	e.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}
