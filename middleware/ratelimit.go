package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/resupify/resupify/integration/stats"
	"github.com/resupify/resupify/pkg/admission"
	"github.com/resupify/resupify/pkg/clientip"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Store is the shared sliding-window store (required).
	Store *admission.WindowStore
	// Limit is the config for this middleware's resource class (required).
	Limit admission.Config
	// Class is the key namespace isolating this resource class (required).
	Class string
	// KeyFunc extracts the caller identity from the request
	// (default: resolved client IP).
	KeyFunc func(r *http.Request) string
	// Skip exempts specific requests from admission checks entirely,
	// typically callers whose role is administrator.
	Skip func(r *http.Request) bool
	// Now supplies the clock (default: time.Now). Tests inject a fake
	// clock here to simulate window expiry.
	Now func() time.Time
	// SetHeaders determines whether to include X-RateLimit-* headers in
	// responses.
	SetHeaders bool
	// Stats records decisions best-effort; errors never affect admission.
	Stats stats.Recorder
	// Logger for internal diagnostics (default: discard).
	Logger *slog.Logger
}

// RateLimit creates a rate limiting middleware enforcing cfg.Limit per
// caller key within cfg.Class. Denied requests are answered with the
// standardized 429 rejection and never reach the next handler.
// Panics on missing store, missing class, or an unenforceable limit —
// these are wiring bugs that must fail at startup.
func RateLimit(cfg RateLimitConfig) func(next http.Handler) http.Handler {
	if cfg.Store == nil {
		panic("ratelimit middleware: store is required")
	}
	if cfg.Class == "" {
		panic("ratelimit middleware: class is required")
	}
	if err := cfg.Limit.Validate(); err != nil {
		panic("ratelimit middleware: " + err.Error())
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientip.GetIP
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
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
			result := cfg.Store.Check(key, cfg.Limit, cfg.Now())

			if cfg.Stats != nil {
				if err := cfg.Stats.Record(r.Context(), stats.Event{
					Key:     key,
					Class:   cfg.Class,
					Allowed: result.Allowed,
					At:      cfg.Now(),
				}); err != nil {
					cfg.Logger.DebugContext(r.Context(), "admission stats record failed",
						slog.String("class", cfg.Class),
						slog.Any("error", err))
				}
			}

			if cfg.SetHeaders {
				setRateLimitHeaders(w, result)
			}

			if !result.Allowed {
				cfg.Logger.DebugContext(r.Context(), "request rate limited",
					slog.String("class", cfg.Class),
					slog.Int("retry_after_seconds", result.RetryAfterSeconds()))
				WriteRateLimited(w, result.RetryAfterSeconds())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders adds standard rate limiting headers to the response:
// the configured limit, the requests remaining in the current window
// (clamped to zero), and the Unix timestamp when the window resets. These
// follow the convention used by APIs like GitHub and Twitter.
func setRateLimitHeaders(w http.ResponseWriter, result admission.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, result.Remaining)))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
