package stats

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRecorder aggregates decision counts in Redis hashes. One pipelined
// round trip per decision increments the cumulative totals, a TTL'd
// per-minute bucket, and the per-class counters; per-key counters are
// opt-in because their cardinality is unbounded.
type RedisRecorder struct {
	rdb *redis.Client

	prefix string
	// ttl applies to the time-bucketed and per-key hashes only; the
	// cumulative totals never expire.
	ttl       time.Duration
	trackKeys bool
}

// RedisRecorderOption configures a RedisRecorder.
type RedisRecorderOption func(*RedisRecorder)

// WithPrefix sets the key prefix for all recorder hashes.
func WithPrefix(prefix string) RedisRecorderOption {
	return func(r *RedisRecorder) {
		if p := strings.Trim(prefix, ":"); p != "" {
			r.prefix = p
		}
	}
}

// WithTTL sets the expiry applied to minute buckets and per-key hashes.
func WithTTL(d time.Duration) RedisRecorderOption {
	return func(r *RedisRecorder) { r.ttl = d }
}

// WithTrackKeys enables per-caller-key counters. Cardinality grows with the
// number of distinct callers, so leave this off unless debugging abuse.
func WithTrackKeys(track bool) RedisRecorderOption {
	return func(r *RedisRecorder) { r.trackKeys = track }
}

// NewRedisRecorder creates a recorder writing under "admission:stats" with a
// 24h bucket TTL by default.
func NewRedisRecorder(rdb *redis.Client, opts ...RedisRecorderOption) *RedisRecorder {
	r := &RedisRecorder{
		rdb:    rdb,
		prefix: "admission:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record implements Recorder.
func (r *RedisRecorder) Record(ctx context.Context, ev Event) error {
	if r == nil || r.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := r.rdb.Pipeline()
	pipe.HIncrBy(ctx, r.prefix+":total", field, 1)

	bucketKey := r.prefix + ":minute:" + at.UTC().Format("200601021504")
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if r.ttl > 0 {
		pipe.Expire(ctx, bucketKey, r.ttl)
	}

	if class := strings.TrimSpace(ev.Class); class != "" {
		pipe.HIncrBy(ctx, r.prefix+":class", class+":"+field, 1)
	}

	if r.trackKeys {
		if key := strings.TrimSpace(ev.Key); key != "" {
			keyKey := r.prefix + ":key:" + key
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if r.ttl > 0 {
				pipe.Expire(ctx, keyKey, r.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
