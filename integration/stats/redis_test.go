package stats_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resupify/resupify/integration/stats"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisRecorder_Record(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	at := time.Date(2026, time.March, 14, 12, 30, 0, 0, time.UTC)

	t.Run("increments totals and class counters", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		rec := stats.NewRedisRecorder(rdb)

		require.NoError(t, rec.Record(ctx, stats.Event{Class: "evidence_scan", Allowed: true, At: at}))
		require.NoError(t, rec.Record(ctx, stats.Event{Class: "evidence_scan", Allowed: true, At: at}))
		require.NoError(t, rec.Record(ctx, stats.Event{Class: "evidence_scan", Allowed: false, At: at}))

		assert.Equal(t, "2", mr.HGet("admission:stats:total", "allowed"))
		assert.Equal(t, "1", mr.HGet("admission:stats:total", "denied"))
		assert.Equal(t, "2", mr.HGet("admission:stats:class", "evidence_scan:allowed"))
		assert.Equal(t, "1", mr.HGet("admission:stats:class", "evidence_scan:denied"))
	})

	t.Run("buckets by minute with ttl", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		rec := stats.NewRedisRecorder(rdb, stats.WithTTL(time.Hour))

		require.NoError(t, rec.Record(ctx, stats.Event{Class: "outreach", Allowed: true, At: at}))

		bucket := "admission:stats:minute:202603141230"
		assert.Equal(t, "1", mr.HGet(bucket, "allowed"))
		ttl := mr.TTL(bucket)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Hour)
	})

	t.Run("per-key counters are opt-in", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		rec := stats.NewRedisRecorder(rdb)

		require.NoError(t, rec.Record(ctx, stats.Event{Key: "evidence_scan:u1", Class: "evidence_scan", Allowed: true, At: at}))
		assert.False(t, mr.Exists("admission:stats:key:evidence_scan:u1"))

		tracked := stats.NewRedisRecorder(rdb, stats.WithTrackKeys(true))
		require.NoError(t, tracked.Record(ctx, stats.Event{Key: "evidence_scan:u1", Class: "evidence_scan", Allowed: false, At: at}))
		assert.Equal(t, "1", mr.HGet("admission:stats:key:evidence_scan:u1", "denied"))
	})

	t.Run("custom prefix", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		rec := stats.NewRedisRecorder(rdb, stats.WithPrefix("resupify:throttle:"))

		require.NoError(t, rec.Record(ctx, stats.Event{Class: "auth", Allowed: false, At: at}))
		assert.Equal(t, "1", mr.HGet("resupify:throttle:total", "denied"))
	})

	t.Run("nil client is a no-op", func(t *testing.T) {
		rec := stats.NewRedisRecorder(nil)
		assert.NoError(t, rec.Record(ctx, stats.Event{Class: "auth", Allowed: true}))
	})
}
