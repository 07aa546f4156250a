package admission

import (
	"io"
	"log/slog"
	"sync"
)

// ConcurrencyGate caps the number of simultaneously in-flight operations per
// key, independently of any rate budget. Acquire is non-blocking: when the
// key is at capacity it reports false without side effects, leaving retry
// policy to the caller.
//
// Every successful Acquire must be paired with exactly one Release,
// including on error paths of the guarded operation. With wraps that
// contract so the release happens on every exit path. Over-releasing is
// tolerated defensively: the count floors at zero and never goes negative.
type ConcurrencyGate struct {
	mu     sync.Mutex
	active map[string]int
	logger *slog.Logger
}

// ConcurrencyGateOption configures a ConcurrencyGate.
type ConcurrencyGateOption func(*ConcurrencyGate)

// WithGateLogger sets the logger for internal operations.
func WithGateLogger(logger *slog.Logger) ConcurrencyGateOption {
	return func(g *ConcurrencyGate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewConcurrencyGate creates an empty gate.
func NewConcurrencyGate(opts ...ConcurrencyGateOption) *ConcurrencyGate {
	g := &ConcurrencyGate{
		active: make(map[string]int),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Acquire claims an in-flight slot for key if fewer than max are active.
// It reports whether the slot was claimed; on false nothing changed.
func (g *ConcurrencyGate) Acquire(key string, max int) bool {
	if max < 1 {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active[key] >= max {
		return false
	}
	g.active[key]++
	return true
}

// Release returns a previously acquired slot for key. Releasing more times
// than acquired is a caller bug, but it is absorbed here: the count floors
// at zero so a double release can never corrupt capacity.
func (g *ConcurrencyGate) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, exists := g.active[key]
	if !exists || n <= 0 {
		g.logger.Warn("concurrency slot over-released", slog.String("key", key))
		return
	}
	if n == 1 {
		delete(g.active, key)
		return
	}
	g.active[key] = n - 1
}

// Active returns the number of in-flight slots currently held for key.
func (g *ConcurrencyGate) Active(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.active[key]
}

// With runs fn while holding an in-flight slot for key, releasing it on
// every exit path including panics. Returns ErrTooManyInFlight without
// invoking fn when the key is at capacity.
func (g *ConcurrencyGate) With(key string, max int, fn func() error) error {
	if !g.Acquire(key, max) {
		return ErrTooManyInFlight
	}
	defer g.Release(key)

	return fn()
}

// ResetAll wipes every tracked key. Intended for test harnesses; production
// traffic has no path to it.
func (g *ConcurrencyGate) ResetAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.active = make(map[string]int)
}
