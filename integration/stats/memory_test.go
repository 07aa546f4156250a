package stats_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/resupify/resupify/integration/stats"
)

func TestMemoryRecorder_Record(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("aggregates per class and in total", func(t *testing.T) {
		rec := stats.NewMemoryRecorder()

		assert.NoError(t, rec.Record(ctx, stats.Event{Class: "evidence_scan", Allowed: true}))
		assert.NoError(t, rec.Record(ctx, stats.Event{Class: "evidence_scan", Allowed: true}))
		assert.NoError(t, rec.Record(ctx, stats.Event{Class: "evidence_scan", Allowed: false}))
		assert.NoError(t, rec.Record(ctx, stats.Event{Class: "outreach", Allowed: false}))

		assert.Equal(t, stats.Counts{Allowed: 2, Denied: 2}, rec.Total())

		byClass := rec.ByClass()
		assert.Equal(t, stats.Counts{Allowed: 2, Denied: 1}, byClass["evidence_scan"])
		assert.Equal(t, stats.Counts{Allowed: 0, Denied: 1}, byClass["outreach"])
	})

	t.Run("safe for concurrent use", func(t *testing.T) {
		rec := stats.NewMemoryRecorder()

		var wg sync.WaitGroup
		goroutines := 20
		wg.Add(goroutines)

		for i := 0; i < goroutines; i++ {
			go func(allowed bool) {
				defer wg.Done()
				for ri := 0; ri < 50; ri++ {
					_ = rec.Record(ctx, stats.Event{Class: "c", Allowed: allowed})
				}
			}(i%2 == 0)
		}

		wg.Wait()

		total := rec.Total()
		assert.Equal(t, int64(1000), total.Allowed+total.Denied)
	})
}

func TestNoop_Record(t *testing.T) {
	t.Parallel()

	assert.NoError(t, stats.Noop{}.Record(context.Background(), stats.Event{}))
}
