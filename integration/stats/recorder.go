package stats

import (
	"context"
	"time"
)

// Event captures one admission decision.
type Event struct {
	// Key is the full admission key (class plus identity).
	Key string
	// Class is the resource-class namespace of the decision.
	Class string
	// Allowed reports the decision outcome.
	Allowed bool
	// At is when the decision was made. Zero means "now".
	At time.Time
}

// Recorder persists admission decisions. Implementations must be safe for
// concurrent use. Callers treat Record as best-effort and must not let its
// error affect the admission outcome.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Noop is a Recorder that discards every event.
type Noop struct{}

func (Noop) Record(context.Context, Event) error { return nil }
