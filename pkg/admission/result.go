package admission

import "time"

// Result reports the outcome of a single admission check.
type Result struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool
	// Limit is the configured maximum for the checked class.
	Limit int
	// Remaining is the number of requests left in the current window,
	// clamped to zero.
	Remaining int
	// ResetAt is when the oldest counted request leaves the window.
	ResetAt time.Time
	// RetryAfter is how long the caller should wait before retrying.
	// Zero when the request was allowed.
	RetryAfter time.Duration
}

// RetryAfterSeconds returns the retry hint as whole seconds, rounded up.
// Denied results always report at least 1; allowed results report 0.
func (r Result) RetryAfterSeconds() int {
	if r.Allowed || r.RetryAfter <= 0 {
		return 0
	}
	secs := int((r.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
