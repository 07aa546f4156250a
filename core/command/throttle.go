package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/resupify/resupify/integration/stats"
	"github.com/resupify/resupify/pkg/admission"
)

// ThrottledError reports a command rejected by admission control. Transports
// translate it into their own rejection shape; the retry hint carries over
// unchanged so every surface reports the same wait.
type ThrottledError struct {
	// Class is the resource class whose budget was exhausted.
	Class string
	// RetryAfterSeconds is the whole-second wait until a slot frees,
	// always at least 1.
	RetryAfterSeconds int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled on %s: retry after %ds", e.Class, e.RetryAfterSeconds)
}

func (e *ThrottledError) Unwrap() error {
	return ErrTooManyRequests
}

// IsThrottled reports whether err is an admission rejection.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrTooManyRequests)
}

// ThrottleConfig configures the rate limiting decorator for commands of
// type T.
type ThrottleConfig[T any] struct {
	// Store is the shared sliding-window store (required).
	Store *admission.WindowStore
	// Limit is the config for this command's resource class (required).
	Limit admission.Config
	// Class is the key namespace isolating this resource class (required).
	Class string
	// Key extracts the caller identity from the command (required).
	Key func(ctx context.Context, cmd T) string
	// Skip exempts specific invocations, typically administrators.
	Skip func(ctx context.Context, cmd T) bool
	// Now supplies the clock (default: time.Now).
	Now func() time.Time
	// Stats records decisions best-effort; errors never affect admission.
	Stats stats.Recorder
}

// Throttle creates a decorator enforcing cfg.Limit per caller key within
// cfg.Class. Rejected invocations fail with a *ThrottledError and never
// reach the wrapped handler. Panics on invalid configuration — a wiring bug
// that must fail at startup.
func Throttle[T any](cfg ThrottleConfig[T]) Decorator[T] {
	if cfg.Store == nil {
		panic("throttle decorator: store is required")
	}
	if cfg.Class == "" {
		panic("throttle decorator: class is required")
	}
	if cfg.Key == nil {
		panic("throttle decorator: key func is required")
	}
	if err := cfg.Limit.Validate(); err != nil {
		panic("throttle decorator: " + err.Error())
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(next HandlerFunc[T]) HandlerFunc[T] {
		return func(ctx context.Context, cmd T) error {
			if cfg.Skip != nil && cfg.Skip(ctx, cmd) {
				return next(ctx, cmd)
			}

			key := admission.Key(cfg.Class, cfg.Key(ctx, cmd))
			result := cfg.Store.Check(key, cfg.Limit, cfg.Now())

			if cfg.Stats != nil {
				_ = cfg.Stats.Record(ctx, stats.Event{
					Key:     key,
					Class:   cfg.Class,
					Allowed: result.Allowed,
					At:      cfg.Now(),
				})
			}

			if !result.Allowed {
				return &ThrottledError{
					Class:             cfg.Class,
					RetryAfterSeconds: result.RetryAfterSeconds(),
				}
			}

			return next(ctx, cmd)
		}
	}
}

// GateConcurrencyConfig configures the in-flight cap decorator for commands
// of type T.
type GateConcurrencyConfig[T any] struct {
	// Gate is the shared concurrency gate (required).
	Gate *admission.ConcurrencyGate
	// Max is the number of simultaneous in-flight invocations per key
	// (required, at least 1).
	Max int
	// Class is the key namespace isolating this resource class (required).
	Class string
	// Key extracts the caller identity from the command (required).
	Key func(ctx context.Context, cmd T) string
	// Skip exempts specific invocations, typically administrators.
	Skip func(ctx context.Context, cmd T) bool
}

// GateConcurrency creates a decorator capping simultaneous in-flight
// invocations per caller key. The slot is held for the duration of the
// wrapped handler and released on every exit path including panics.
// Rejections carry a fixed one-second retry hint: the slot frees whenever
// the running operation finishes, so there is no window to derive a precise
// value from.
func GateConcurrency[T any](cfg GateConcurrencyConfig[T]) Decorator[T] {
	if cfg.Gate == nil {
		panic("concurrency decorator: gate is required")
	}
	if cfg.Max < 1 {
		panic("concurrency decorator: max must be at least 1")
	}
	if cfg.Class == "" {
		panic("concurrency decorator: class is required")
	}
	if cfg.Key == nil {
		panic("concurrency decorator: key func is required")
	}

	return func(next HandlerFunc[T]) HandlerFunc[T] {
		return func(ctx context.Context, cmd T) error {
			if cfg.Skip != nil && cfg.Skip(ctx, cmd) {
				return next(ctx, cmd)
			}

			key := admission.Key(cfg.Class, cfg.Key(ctx, cmd))
			if !cfg.Gate.Acquire(key, cfg.Max) {
				return &ThrottledError{Class: cfg.Class, RetryAfterSeconds: 1}
			}
			defer cfg.Gate.Release(key)

			return next(ctx, cmd)
		}
	}
}
