// Package middleware provides the HTTP adapters for request admission
// control: a sliding-window rate limit, a per-key in-flight cap, and the
// standardized throttling response both of them emit.
//
// Both middlewares follow the same pattern: a configuration struct with the
// shared stores injected at construction, a key extractor (defaulting to the
// resolved client IP), and an optional Skip predicate used to exempt
// administrators. Rejections are written through the stable RATE_LIMITED
// wire shape with a Retry-After header, so scripted clients and UI toasts
// can react without parsing free text.
//
//	store := admission.NewWindowStore()
//	reg, _ := admission.NewRegistry(admission.DefaultLimits())
//
//	limited := middleware.RateLimit(middleware.RateLimitConfig{
//		Store: store,
//		Limit: reg.MustGet(admission.LimitURLFetchPerIP),
//		Class: admission.LimitURLFetchPerIP,
//	})
//	mux.Handle("/v1/fetch", limited(fetchHandler))
//
// Admission denials are expected outcomes, not application errors: they are
// answered with 429 and never surface as 5xx responses.
package middleware
