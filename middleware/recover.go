package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/courier/job"
)

// PanicError is the attempt error for a handler that panicked.
type PanicError struct {
	JobID   string
	JobName string
	Attempt int
	Value   any
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in job %s: %v", e.JobName, e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Recover turns a handler panic into a *PanicError, so the attempt counts
// against the job's retry budget instead of killing the worker.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (retErr error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			pe := &PanicError{
				JobID:   j.ID,
				JobName: j.Name,
				Attempt: job.AttemptFrom(ctx),
				Value:   r,
				Stack:   debug.Stack(),
			}
			logger.Error("job handler panicked",
				slog.String("job_name", j.Name),
				slog.String("job_id", j.ID),
				slog.Int("attempt", pe.Attempt),
				slog.Any("panic", r),
				slog.String("stack", string(pe.Stack)),
			)
			retErr = pe
		}()
		return next(ctx)
	}
}
