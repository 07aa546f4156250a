package command

import (
	"context"
	"log/slog"
	"time"
)

// HandlerFunc is a type-safe handler for a command of type T.
type HandlerFunc[T any] func(ctx context.Context, cmd T) error

// Decorator wraps a command handler function to add cross-cutting
// functionality. It follows the same pattern as HTTP middleware, allowing
// decorators to be composed and applied in order.
type Decorator[T any] func(HandlerFunc[T]) HandlerFunc[T]

// ApplyDecorators applies a series of decorators to a handler function.
// Decorators are applied in the order they are defined: the first decorator
// in the list becomes the outermost wrapper (executes first).
//
// Example:
//
//	handler := command.ApplyDecorators(
//	    myHandler,
//	    command.WithLogging[MyCommand](logger),
//	    command.Throttle(throttleCfg),
//	)
//
// Execution order: Logging -> Throttle -> myHandler
func ApplyDecorators[T any](fn HandlerFunc[T], decorators ...Decorator[T]) HandlerFunc[T] {
	// Reverse iteration ensures first decorator becomes outermost wrapper
	for i := 0; i < len(decorators); i++ {
		fn = decorators[len(decorators)-1-i](fn)
	}
	return fn
}

// WithTimeout creates a decorator that enforces a timeout for handler
// execution. The handler must respect context cancellation for the timeout
// to work.
func WithTimeout[T any](timeout time.Duration) Decorator[T] {
	return func(next HandlerFunc[T]) HandlerFunc[T] {
		return func(ctx context.Context, cmd T) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, cmd)
		}
	}
}

// WithLogging creates a decorator that logs command execution: the command
// name, execution duration, and any error. Throttled rejections are logged
// at warn level since they are expected under load, not failures.
func WithLogging[T any](logger *slog.Logger, name string) Decorator[T] {
	return func(next HandlerFunc[T]) HandlerFunc[T] {
		return func(ctx context.Context, cmd T) error {
			start := time.Now()

			err := next(ctx, cmd)
			duration := time.Since(start)

			switch {
			case err == nil:
				logger.InfoContext(ctx, "command completed",
					slog.String("command", name),
					slog.Duration("duration", duration))
			case IsThrottled(err):
				logger.WarnContext(ctx, "command throttled",
					slog.String("command", name),
					slog.String("error", err.Error()))
			default:
				logger.ErrorContext(ctx, "command failed",
					slog.String("command", name),
					slog.Duration("duration", duration),
					slog.String("error", err.Error()))
			}

			return err
		}
	}
}
