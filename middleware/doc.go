// Package middleware provides composable middleware for job execution.
//
// A [Middleware] is a function that wraps a job handler. Middleware are
// composed into a chain using [Chain] and applied around every attempt.
// They are applied right-to-left: the first middleware in the slice is the
// outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs job name, attempt, duration and outcome
//   - [Recover]: turns handler panics into a [PanicError]
//   - [Timeout]: bounds each attempt by the job's Timeout, failing with a [TimeoutError]
//   - [Tracing]: wraps execution in an OpenTelemetry span
//   - [Metrics]: records per-attempt duration and outcome counters
//
// [ForKinds] and [ExceptKinds] restrict a middleware to some job kinds.
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, j *job.Job, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., circuit breaker, rate limiting).
package middleware
