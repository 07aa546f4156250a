// Package stats records admission decisions for observability.
//
// Recording is strictly best-effort: adapters invoke a Recorder after each
// decision and discard its error, so a slow or unavailable backend can never
// influence whether a request is admitted. The package ships an in-memory
// recorder for single-process visibility and a Redis-backed recorder for
// aggregation across restarts.
//
// Counters are kept per resource class (allowed vs denied) rather than per
// caller key by default: unrestricted per-key tracking would grow one Redis
// hash per caller and is opt-in via WithTrackKeys.
package stats
