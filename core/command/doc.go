// Package command provides type-safe handler functions for internal RPC-style
// operations, plus composable decorators for admission control and logging.
//
// Handlers are plain generic functions; decorators wrap them the same way HTTP
// middleware wraps handlers, so cross-cutting concerns stay out of business
// logic:
//
//	handler := command.ApplyDecorators(
//	    scanEvidence,
//	    command.WithLogging[ScanEvidence](logger),
//	    command.Throttle(command.ThrottleConfig[ScanEvidence]{
//	        Store: store,
//	        Limit: admission.Config{Limit: 10, Window: 10 * time.Minute},
//	        Class: admission.LimitEvidenceScanPerUser,
//	        Key:   func(ctx context.Context, cmd ScanEvidence) string { return cmd.UserID },
//	    }),
//	)
//
// Throttled calls fail with a *ThrottledError carrying the retry hint in
// seconds; callers unwrap it with errors.As and shape their own transport
// response (the HTTP layer uses the middleware package instead).
package command
