package stats

import (
	"context"
	"sync"
)

// Counts aggregates decisions for one resource class.
type Counts struct {
	Allowed int64
	Denied  int64
}

// MemoryRecorder aggregates decision counts in process memory. Useful for
// tests and for single-instance deployments without Redis.
type MemoryRecorder struct {
	mu      sync.Mutex
	total   Counts
	byClass map[string]Counts
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{byClass: make(map[string]Counts)}
}

// Record implements Recorder. It never fails.
func (m *MemoryRecorder) Record(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.byClass[ev.Class]
	if ev.Allowed {
		c.Allowed++
		m.total.Allowed++
	} else {
		c.Denied++
		m.total.Denied++
	}
	m.byClass[ev.Class] = c
	return nil
}

// Total returns the aggregate counts across all classes.
func (m *MemoryRecorder) Total() Counts {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.total
}

// ByClass returns a copy of the per-class counts.
func (m *MemoryRecorder) ByClass() map[string]Counts {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Counts, len(m.byClass))
	for class, c := range m.byClass {
		out[class] = c
	}
	return out
}
