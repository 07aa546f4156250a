// Package admission provides request admission control for protecting
// expensive downstream operations (LLM calls, outbound URL fetches,
// authentication attempts) from abuse and unbounded parallel fan-out.
//
// It combines two independent throttling dimensions:
//
//   - WindowStore: an exact sliding-window-log rate limiter. Each key maps
//     to the ordered timestamps of its accepted requests within the trailing
//     window, so a key can never exceed its limit in any trailing interval
//     (unlike fixed-window counters, which allow bursts at bucket edges).
//   - ConcurrencyGate: a per-key cap on simultaneously in-flight operations,
//     independent of the rate budget. A caller inside its 10-per-10-minutes
//     budget can still be held to one request in flight at a time.
//
// Both stores are explicit, injectable objects rather than package-level
// singletons: a server process holds one instance per deployment, and tests
// construct isolated instances.
//
// # Usage
//
// Decide whether a request may proceed:
//
//	store := admission.NewWindowStore()
//	cfg := admission.Config{Limit: 10, Window: 10 * time.Minute}
//
//	result := store.Check(admission.Key("evidence_scan", userID), cfg, time.Now())
//	if !result.Allowed {
//		// reject with result.RetryAfterSeconds()
//	}
//
// Cap in-flight operations for a key, releasing on every exit path:
//
//	gate := admission.NewConcurrencyGate()
//	err := gate.With(admission.Key("evidence_scan", userID), 1, func() error {
//		return scanEvidence(ctx, req)
//	})
//
// Named limits for each protected resource class live in a Registry, which
// validates every entry at construction so that misconfiguration fails at
// startup instead of surfacing as a per-request bug:
//
//	reg, err := admission.NewRegistry(admission.DefaultLimits())
//	if err != nil {
//		log.Fatal(err)
//	}
//	cfg := reg.MustGet(admission.LimitEvidenceScanPerUser)
//
// # Keys
//
// Keys combine a resource-class namespace with a caller identity (user id or
// client IP). Classes are independent buckets even when the identity portion
// collides: evidence-scan limiting never interacts with outreach limiting.
//
// # Memory growth
//
// Entries are kept for as long as a key stays active. The WindowStore can
// optionally run a background sweep (WithCleanupInterval plus Start/Run) that
// drops keys idle past a threshold; without it, memory is bounded only by the
// number of distinct keys seen since process start.
package admission
