package admission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// window holds the accepted-request timestamps for one key.
type window struct {
	stamps     []time.Time
	lastAccess time.Time // Used by the sweep to identify idle keys
}

// WindowStore is an in-memory sliding-window-log rate limiter. It maps each
// key to the ordered timestamps of its accepted requests and decides
// admission exactly: a key can never exceed its limit in any trailing
// window-sized interval.
//
// All methods are safe for concurrent use. Decisions are synchronous and
// non-blocking; each check is a bounded prune-and-append over one key's
// state under the store mutex, so two concurrent checks for the same key can
// never both be admitted past the limit.
type WindowStore struct {
	mu      sync.RWMutex
	windows map[string]*window

	// Test-only escape hatch: when set, every check is admitted without
	// touching any counter. Defaults to disabled and must be toggled
	// explicitly by a harness.
	bypass atomic.Bool

	// Configuration
	cleanupInterval time.Duration
	idleThreshold   time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	// Sweep lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	// Observability metrics
	keysCreated atomic.Int64
	keysRemoved atomic.Int64
}

// WindowStoreStats provides observability metrics for monitoring and debugging.
type WindowStoreStats struct {
	KeysCreated int64 // Total number of keys tracked since start
	KeysRemoved int64 // Total number of idle keys removed by the sweep
	ActiveKeys  int   // Current number of tracked keys
	IsRunning   bool  // Whether the sweep goroutine is running
}

// WindowStoreOption configures a WindowStore.
type WindowStoreOption func(*WindowStore)

// WithCleanupInterval sets how often the background sweep removes idle keys.
// Set to 0 to disable sweeping entirely (the default behavior keeps every
// key until process restart or ResetAll).
func WithCleanupInterval(interval time.Duration) WindowStoreOption {
	return func(ws *WindowStore) {
		ws.cleanupInterval = interval
	}
}

// WithIdleThreshold sets how long a key must go unchecked before the sweep
// may drop it.
func WithIdleThreshold(threshold time.Duration) WindowStoreOption {
	return func(ws *WindowStore) {
		if threshold > 0 {
			ws.idleThreshold = threshold
		}
	}
}

// WithShutdownTimeout sets the graceful shutdown timeout for Stop.
func WithShutdownTimeout(timeout time.Duration) WindowStoreOption {
	return func(ws *WindowStore) {
		if timeout > 0 {
			ws.shutdownTimeout = timeout
		}
	}
}

// WithLogger sets the logger for internal operations.
func WithLogger(logger *slog.Logger) WindowStoreOption {
	return func(ws *WindowStore) {
		if logger != nil {
			ws.logger = logger
		}
	}
}

// NewWindowStore creates an empty store. Call Start (or Run) to begin the
// optional background sweep when a cleanup interval is configured.
func NewWindowStore(opts ...WindowStoreOption) *WindowStore {
	ws := &WindowStore{
		windows:         make(map[string]*window),
		idleThreshold:   time.Hour,
		shutdownTimeout: 30 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(ws)
	}

	return ws
}

// Check decides whether a request for key at time now may proceed under cfg.
// Allowed requests are recorded in the key's window; denied requests leave
// the window untouched and carry a retry hint derived from the oldest
// counted request.
//
// The supplied clock is trusted literally, which lets test harnesses
// simulate time travel by passing arbitrary now values.
func (ws *WindowStore) Check(key string, cfg Config, now time.Time) Result {
	if ws.bypass.Load() {
		return Result{
			Allowed:   true,
			Limit:     cfg.Limit,
			Remaining: cfg.Limit,
			ResetAt:   now.Add(cfg.Window),
		}
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	w, exists := ws.windows[key]
	if !exists {
		w = &window{}
		ws.windows[key] = w
		ws.keysCreated.Add(1)
	}
	w.lastAccess = now

	// Stamps are insertion-ordered, so everything outside the trailing
	// window sits at the front; prune up to the first in-window stamp.
	cutoff := now.Add(-cfg.Window)
	drop := 0
	for drop < len(w.stamps) && !w.stamps[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[drop:]...)
	}

	if len(w.stamps) < cfg.Limit {
		w.stamps = append(w.stamps, now)
		return Result{
			Allowed:   true,
			Limit:     cfg.Limit,
			Remaining: cfg.Limit - len(w.stamps),
			ResetAt:   w.stamps[0].Add(cfg.Window),
		}
	}

	oldest := w.stamps[0]
	resetAt := oldest.Add(cfg.Window)
	return Result{
		Allowed:    false,
		Limit:      cfg.Limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: resetAt.Sub(now),
	}
}

// Reset drops all recorded requests for a single key.
func (ws *WindowStore) Reset(key string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	delete(ws.windows, key)
}

// ResetAll wipes every tracked key. Intended for test harnesses; production
// traffic has no path to it.
func (ws *WindowStore) ResetAll() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.windows = make(map[string]*window)
}

// SetBypass toggles the process-wide admission bypass. When enabled, every
// check is admitted and no counters move. Intended exclusively for test
// harnesses that need deterministic setup; defaults to disabled.
func (ws *WindowStore) SetBypass(enabled bool) {
	ws.bypass.Store(enabled)
}

// Bypassed reports whether the bypass toggle is currently enabled.
func (ws *WindowStore) Bypassed() bool {
	return ws.bypass.Load()
}

// Start begins the background sweep goroutine. This is a blocking operation
// that runs until the context is cancelled. Use Run for the errgroup pattern
// or call this in a goroutine.
func (ws *WindowStore) Start(ctx context.Context) error {
	ws.mu.Lock()
	if ws.cancel != nil {
		ws.mu.Unlock()
		return fmt.Errorf("window store already started")
	}

	if ws.cleanupInterval <= 0 {
		ws.mu.Unlock()
		return fmt.Errorf("cleanup interval must be > 0, got %v (use WithCleanupInterval to configure)", ws.cleanupInterval)
	}

	ws.ctx, ws.cancel = context.WithCancel(ctx)
	ws.mu.Unlock()

	ws.running.Store(true)
	defer ws.running.Store(false)

	ws.logger.InfoContext(ws.ctx, "window store sweep started",
		slog.Duration("cleanup_interval", ws.cleanupInterval),
		slog.Duration("idle_threshold", ws.idleThreshold))

	ticker := time.NewTicker(ws.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ws.ctx.Done():
			ws.logger.InfoContext(context.Background(), "window store sweep stopping")
			return ws.ctx.Err()
		case <-ticker.C:
			ws.sweepWithWait()
		}
	}
}

// Stop gracefully shuts down the background sweep with a timeout.
// Returns an error if the shutdown timeout is exceeded.
func (ws *WindowStore) Stop() error {
	ws.mu.Lock()
	if ws.cancel == nil {
		ws.mu.Unlock()
		return fmt.Errorf("window store not started")
	}

	cancel := ws.cancel
	ws.cancel = nil
	ws.mu.Unlock()

	cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), ws.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ws.logger.InfoContext(context.Background(), "window store stopped cleanly")
		return nil
	case <-ctx.Done():
		ws.logger.WarnContext(context.Background(), "window store shutdown timeout exceeded",
			slog.Duration("timeout", ws.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", ws.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// The returned function starts the sweep, monitors context cancellation, and
// performs graceful shutdown when the context is cancelled.
func (ws *WindowStore) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- ws.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = ws.Stop() // Ignore stop error in normal shutdown
			<-errCh       // Wait for Start() to exit
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// sweepWithWait wraps removeIdle so Stop can wait for an in-progress sweep.
func (ws *WindowStore) sweepWithWait() {
	ws.mu.RLock()
	if ws.cancel == nil {
		ws.mu.RUnlock()
		return
	}
	ws.wg.Add(1)
	ws.mu.RUnlock()

	defer ws.wg.Done()
	ws.removeIdle()
}

// removeIdle drops keys that haven't been checked for longer than the idle
// threshold. The threshold must comfortably exceed every configured window
// so the sweep can only remove keys whose stamps have all expired anyway.
func (ws *WindowStore) removeIdle() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, w := range ws.windows {
		if now.Sub(w.lastAccess) > ws.idleThreshold {
			delete(ws.windows, key)
			removed++
		}
	}

	if removed > 0 {
		ws.keysRemoved.Add(int64(removed))
		ws.logger.Debug("window store sweep removed idle keys", slog.Int("removed", removed))
	}
}

// Stats returns current store statistics for observability and monitoring.
func (ws *WindowStore) Stats() WindowStoreStats {
	ws.mu.RLock()
	isRunning := ws.cancel != nil
	activeKeys := len(ws.windows)
	ws.mu.RUnlock()

	return WindowStoreStats{
		KeysCreated: ws.keysCreated.Load(),
		KeysRemoved: ws.keysRemoved.Load(),
		ActiveKeys:  activeKeys,
		IsRunning:   isRunning,
	}
}

// Healthcheck validates that the store is operational. Returns nil if
// healthy. Suitable for use in health check endpoints.
func (ws *WindowStore) Healthcheck(ctx context.Context) error {
	stats := ws.Stats()

	// If a sweep is configured but not running, it's unhealthy
	if ws.cleanupInterval > 0 && !stats.IsRunning {
		return fmt.Errorf("sweep is configured but not running")
	}

	return nil
}
