package admission

import (
	"fmt"
	"time"
)

// Config defines the rate limit for one protected resource class.
// Configs are immutable values, defined once and shared by all checks
// against the same class.
type Config struct {
	// Limit is the maximum number of requests admitted within Window.
	Limit int
	// Window is the trailing interval the limit applies to.
	Window time.Duration
}

// Validate reports whether the config can be enforced. Registry construction
// calls this for every entry so that misconfiguration surfaces at startup.
func (c Config) Validate() error {
	if c.Limit < 1 {
		return fmt.Errorf("%w: limit must be at least 1, got %d", ErrInvalidConfig, c.Limit)
	}
	if c.Window < time.Millisecond {
		return fmt.Errorf("%w: window must be at least 1ms, got %s", ErrInvalidConfig, c.Window)
	}
	return nil
}

// Key builds an admission key from a resource-class namespace and a caller
// identity (user id, client IP, or a test-unique token). Distinct classes are
// independent buckets even when the identity portion collides.
func Key(class, identity string) string {
	return class + ":" + identity
}
