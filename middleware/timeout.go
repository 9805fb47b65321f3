package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/courier/job"
)

// TimeoutError fails an attempt that ran past the job's Timeout. It
// matches context.DeadlineExceeded, so the attempt is retried like any
// other failure.
type TimeoutError struct {
	JobID   string
	JobName string
	Attempt int
	Limit   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s (%s) attempt %d exceeded its %s timeout", e.JobID, e.JobName, e.Attempt, e.Limit)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// Timeout bounds each attempt by the job's Timeout. Jobs without one run
// unbounded. A handler that returns nil after the deadline still succeeds.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if j.Timeout <= 0 {
			return next(ctx)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, j.Timeout)
		defer cancel()

		err := next(attemptCtx)
		if err == nil || ctx.Err() != nil || !errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return err
		}

		te := &TimeoutError{
			JobID:   j.ID,
			JobName: j.Name,
			Attempt: job.AttemptFrom(ctx),
			Limit:   j.Timeout,
		}
		logger.Warn("job attempt timed out",
			slog.String("job_name", j.Name),
			slog.String("job_id", j.ID),
			slog.Int("attempt", te.Attempt),
			slog.Duration("timeout", j.Timeout),
		)
		return te
	}
}
