package command_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resupify/resupify/core/command"
	"github.com/resupify/resupify/integration/stats"
	"github.com/resupify/resupify/pkg/admission"
)

func TestThrottle(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

	newHandler := func(cfg command.ThrottleConfig[testCmd], calls *int) command.HandlerFunc[testCmd] {
		return command.ApplyDecorators(
			func(ctx context.Context, cmd testCmd) error {
				*calls++
				return nil
			},
			command.Throttle(cfg),
		)
	}

	keyByUser := func(ctx context.Context, cmd testCmd) string { return cmd.UserID }

	t.Run("allows up to the limit then rejects with retry hint", func(t *testing.T) {
		now := base
		var calls int
		handler := newHandler(command.ThrottleConfig[testCmd]{
			Store: admission.NewWindowStore(),
			Limit: admission.Config{Limit: 2, Window: 10 * time.Minute},
			Class: admission.LimitEvidenceScanPerUser,
			Key:   keyByUser,
			Now:   func() time.Time { return now },
		}, &calls)

		ctx := context.Background()
		require.NoError(t, handler(ctx, testCmd{UserID: "u1"}))
		require.NoError(t, handler(ctx, testCmd{UserID: "u1"}))

		err := handler(ctx, testCmd{UserID: "u1"})
		require.Error(t, err)
		assert.ErrorIs(t, err, command.ErrTooManyRequests)
		assert.True(t, command.IsThrottled(err))

		var throttled *command.ThrottledError
		require.ErrorAs(t, err, &throttled)
		assert.Equal(t, admission.LimitEvidenceScanPerUser, throttled.Class)
		assert.Equal(t, 600, throttled.RetryAfterSeconds)

		// The rejected invocation never reached the handler.
		assert.Equal(t, 2, calls)
	})

	t.Run("window expiry re-admits the caller", func(t *testing.T) {
		now := base
		var calls int
		handler := newHandler(command.ThrottleConfig[testCmd]{
			Store: admission.NewWindowStore(),
			Limit: admission.Config{Limit: 1, Window: time.Minute},
			Class: admission.LimitOutreachPerUser,
			Key:   keyByUser,
			Now:   func() time.Time { return now },
		}, &calls)

		ctx := context.Background()
		require.NoError(t, handler(ctx, testCmd{UserID: "u1"}))
		require.Error(t, handler(ctx, testCmd{UserID: "u1"}))

		now = now.Add(time.Minute + time.Millisecond)
		require.NoError(t, handler(ctx, testCmd{UserID: "u1"}))
		assert.Equal(t, 2, calls)
	})

	t.Run("distinct users have independent budgets", func(t *testing.T) {
		var calls int
		handler := newHandler(command.ThrottleConfig[testCmd]{
			Store: admission.NewWindowStore(),
			Limit: admission.Config{Limit: 1, Window: time.Hour},
			Class: admission.LimitKitPerUser,
			Key:   keyByUser,
		}, &calls)

		ctx := context.Background()
		require.NoError(t, handler(ctx, testCmd{UserID: "u1"}))
		require.NoError(t, handler(ctx, testCmd{UserID: "u2"}))
		require.Error(t, handler(ctx, testCmd{UserID: "u1"}))
	})

	t.Run("skip predicate bypasses admission", func(t *testing.T) {
		var calls int
		handler := newHandler(command.ThrottleConfig[testCmd]{
			Store: admission.NewWindowStore(),
			Limit: admission.Config{Limit: 1, Window: time.Hour},
			Class: admission.LimitKitPerUser,
			Key:   keyByUser,
			Skip: func(ctx context.Context, cmd testCmd) bool {
				return cmd.UserID == "admin"
			},
		}, &calls)

		ctx := context.Background()
		for ri := 0; ri < 5; ri++ {
			require.NoError(t, handler(ctx, testCmd{UserID: "admin"}))
		}
		assert.Equal(t, 5, calls)
	})

	t.Run("records decisions", func(t *testing.T) {
		rec := stats.NewMemoryRecorder()
		var calls int
		handler := newHandler(command.ThrottleConfig[testCmd]{
			Store: admission.NewWindowStore(),
			Limit: admission.Config{Limit: 1, Window: time.Hour},
			Class: admission.LimitJDExtractPerUser,
			Key:   keyByUser,
			Stats: rec,
		}, &calls)

		ctx := context.Background()
		_ = handler(ctx, testCmd{UserID: "u1"})
		_ = handler(ctx, testCmd{UserID: "u1"})

		assert.Equal(t, stats.Counts{Allowed: 1, Denied: 1}, rec.ByClass()[admission.LimitJDExtractPerUser])
	})

	t.Run("panics on wiring bugs", func(t *testing.T) {
		valid := command.ThrottleConfig[testCmd]{
			Store: admission.NewWindowStore(),
			Limit: admission.Config{Limit: 1, Window: time.Hour},
			Class: "c",
			Key:   keyByUser,
		}

		broken := valid
		broken.Store = nil
		assert.Panics(t, func() { command.Throttle(broken) })

		broken = valid
		broken.Class = ""
		assert.Panics(t, func() { command.Throttle(broken) })

		broken = valid
		broken.Key = nil
		assert.Panics(t, func() { command.Throttle(broken) })

		broken = valid
		broken.Limit = admission.Config{Limit: 0, Window: time.Hour}
		assert.Panics(t, func() { command.Throttle(broken) })
	})
}

func TestGateConcurrency(t *testing.T) {
	t.Parallel()

	keyByUser := func(ctx context.Context, cmd testCmd) string { return cmd.UserID }

	t.Run("rejects while an invocation is in flight", func(t *testing.T) {
		entered := make(chan struct{}, 2)
		release := make(chan struct{})

		handler := command.ApplyDecorators(
			func(ctx context.Context, cmd testCmd) error {
				entered <- struct{}{}
				<-release
				return nil
			},
			command.GateConcurrency(command.GateConcurrencyConfig[testCmd]{
				Gate:  admission.NewConcurrencyGate(),
				Max:   1,
				Class: admission.LimitEvidenceScanPerUser,
				Key:   keyByUser,
			}),
		)

		ctx := context.Background()
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = handler(ctx, testCmd{UserID: "u1"})
		}()
		<-entered

		err := handler(ctx, testCmd{UserID: "u1"})
		require.Error(t, err)
		var throttled *command.ThrottledError
		require.ErrorAs(t, err, &throttled)
		assert.Equal(t, 1, throttled.RetryAfterSeconds)

		close(release)
		wg.Wait()

		// Slot freed: u1 is admitted again.
		require.NoError(t, handler(ctx, testCmd{UserID: "u1"}))
	})

	t.Run("releases the slot on handler error", func(t *testing.T) {
		gate := admission.NewConcurrencyGate()
		sentinel := errors.New("boom")
		handler := command.ApplyDecorators(
			func(ctx context.Context, cmd testCmd) error { return sentinel },
			command.GateConcurrency(command.GateConcurrencyConfig[testCmd]{
				Gate:  gate,
				Max:   1,
				Class: admission.LimitOutreachPerUser,
				Key:   keyByUser,
			}),
		)

		ctx := context.Background()
		assert.ErrorIs(t, handler(ctx, testCmd{UserID: "u1"}), sentinel)
		assert.ErrorIs(t, handler(ctx, testCmd{UserID: "u1"}), sentinel)
		assert.Zero(t, gate.Active(admission.Key(admission.LimitOutreachPerUser, "u1")))
	})

	t.Run("releases the slot on panic", func(t *testing.T) {
		gate := admission.NewConcurrencyGate()
		handler := command.ApplyDecorators(
			func(ctx context.Context, cmd testCmd) error { panic("boom") },
			command.GateConcurrency(command.GateConcurrencyConfig[testCmd]{
				Gate:  gate,
				Max:   1,
				Class: admission.LimitKitPerUser,
				Key:   keyByUser,
			}),
		)

		assert.Panics(t, func() {
			_ = handler(context.Background(), testCmd{UserID: "u1"})
		})
		assert.Zero(t, gate.Active(admission.Key(admission.LimitKitPerUser, "u1")))
	})

	t.Run("skip predicate bypasses the gate", func(t *testing.T) {
		gate := admission.NewConcurrencyGate()
		key := admission.Key(admission.LimitURLFetchPerUser, "u1")
		require.True(t, gate.Acquire(key, 1))
		defer gate.Release(key)

		handler := command.ApplyDecorators(
			func(ctx context.Context, cmd testCmd) error { return nil },
			command.GateConcurrency(command.GateConcurrencyConfig[testCmd]{
				Gate:  gate,
				Max:   1,
				Class: admission.LimitURLFetchPerUser,
				Key:   keyByUser,
				Skip:  func(ctx context.Context, cmd testCmd) bool { return true },
			}),
		)

		assert.NoError(t, handler(context.Background(), testCmd{UserID: "u1"}))
	})

	t.Run("panics on wiring bugs", func(t *testing.T) {
		assert.Panics(t, func() {
			command.GateConcurrency(command.GateConcurrencyConfig[testCmd]{
				Max: 1, Class: "c", Key: keyByUser,
			})
		})
		assert.Panics(t, func() {
			command.GateConcurrency(command.GateConcurrencyConfig[testCmd]{
				Gate: admission.NewConcurrencyGate(), Max: 0, Class: "c", Key: keyByUser,
			})
		})
		assert.Panics(t, func() {
			command.GateConcurrency(command.GateConcurrencyConfig[testCmd]{
				Gate: admission.NewConcurrencyGate(), Max: 1, Key: keyByUser,
			})
		})
		assert.Panics(t, func() {
			command.GateConcurrency(command.GateConcurrencyConfig[testCmd]{
				Gate: admission.NewConcurrencyGate(), Max: 1, Class: "c",
			})
		})
	})
}
