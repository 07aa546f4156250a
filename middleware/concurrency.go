package middleware

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/resupify/resupify/pkg/admission"
	"github.com/resupify/resupify/pkg/clientip"
)

// concurrencyRetryAfterSeconds is the advisory retry hint on in-flight
// rejections. There is no window to derive a precise value from: the slot
// frees whenever the running operation finishes.
const concurrencyRetryAfterSeconds = 1

// ConcurrencyLimitConfig configures the in-flight cap middleware.
type ConcurrencyLimitConfig struct {
	// Gate is the shared concurrency gate (required).
	Gate *admission.ConcurrencyGate
	// Max is the number of simultaneous in-flight requests per key
	// (required, at least 1).
	Max int
	// Class is the key namespace isolating this resource class (required).
	Class string
	// KeyFunc extracts the caller identity from the request
	// (default: resolved client IP).
	KeyFunc func(r *http.Request) string
	// Skip exempts specific requests, typically administrators.
	Skip func(r *http.Request) bool
	// Logger for internal diagnostics (default: discard).
	Logger *slog.Logger
}

// ConcurrencyLimit creates a middleware capping simultaneous in-flight
// requests per caller key, independently of any rate budget. The slot is
// released when the wrapped handler returns, on every exit path including
// panics. Panics on invalid configuration — a wiring bug that must fail at
// startup.
func ConcurrencyLimit(cfg ConcurrencyLimitConfig) func(next http.Handler) http.Handler {
	if cfg.Gate == nil {
		panic("concurrency middleware: gate is required")
	}
	if cfg.Max < 1 {
		panic("concurrency middleware: max must be at least 1")
	}
	if cfg.Class == "" {
		panic("concurrency middleware: class is required")
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientip.GetIP
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := admission.Key(cfg.Class, cfg.KeyFunc(r))
			if !cfg.Gate.Acquire(key, cfg.Max) {
				cfg.Logger.DebugContext(r.Context(), "request over in-flight cap",
					slog.String("class", cfg.Class))
				WriteRateLimited(w, concurrencyRetryAfterSeconds)
				return
			}
			defer cfg.Gate.Release(key)

			next.ServeHTTP(w, r)
		})
	}
}
