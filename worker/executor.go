// Package worker provides the job execution engine: an Executor that
// invokes registered handlers through middleware, and a Pool that runs
// concurrent workers over an in-memory priority queue.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/backoff"
	"github.com/xraph/courier/ext"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/middleware"
)

// Outcome describes what a single attempt did to its record.
type Outcome struct {
	// State is the record state after the attempt: completed, retrying or
	// failed. It is empty when the attempt could not begin.
	State job.State

	// Delay is the backoff to wait before re-queueing a retrying record.
	Delay time.Duration

	// Err is the attempt error, wrapped in *courier.ExecutionError.
	Err error
}

// Executor runs a single attempt of a job through middleware and the
// registered handler, then applies the retry policy and emits lifecycle
// events.
type Executor struct {
	registry   *job.Registry
	extensions *ext.Registry
	backoff    backoff.Strategy
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	registry *job.Registry,
	extensions *ext.Registry,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	if bo == nil {
		bo = backoff.Default()
	}
	return &Executor{
		registry:   registry,
		extensions: extensions,
		backoff:    bo,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Registry returns the job registry the executor resolves kinds from.
func (e *Executor) Registry() *job.Registry { return e.registry }

// Execute runs one attempt of rec.
// On success: marks completed, emits JobCompleted.
// On failure with attempts remaining: marks retrying, emits JobRetrying and
// returns the backoff delay.
// On failure with attempts exhausted: marks failed, emits JobFailed.
func (e *Executor) Execute(ctx context.Context, rec *job.Record) Outcome {
	j := rec.Job()

	attempt, err := rec.Begin(time.Now().UTC())
	if err != nil {
		e.logger.Error("job cannot start",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return Outcome{Err: err}
	}

	ctx = job.WithAttempt(ctx, j.ID, attempt)
	e.extensions.EmitJobStarted(ctx, j, attempt)

	start := time.Now()
	result, runErr := e.run(ctx, j)
	elapsed := time.Since(start)

	if runErr == nil {
		return e.handleSuccess(ctx, rec, result, elapsed)
	}

	execErr := &courier.ExecutionError{JobID: j.ID, Name: j.Name, Attempt: attempt, Err: runErr}
	if attempt < j.MaxAttempts {
		return e.scheduleRetry(ctx, rec, attempt, execErr)
	}
	return e.handleExhausted(ctx, rec, execErr)
}

// run resolves the handler and calls it through the middleware chain.
func (e *Executor) run(ctx context.Context, j *job.Job) (any, error) {
	handler, ok := e.registry.Get(j.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", courier.ErrUnknownJobKind, j.Name)
	}

	var result any
	terminal := func(ctx context.Context) (err error) {
		// A panic must become a failed attempt even without Recover in
		// the chain.
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in job %s: %v", j.Name, r)
			}
		}()
		result, err = handler(ctx, j.Payload)
		return err
	}

	if err := e.mw(ctx, j, terminal); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Executor) handleSuccess(ctx context.Context, rec *job.Record, result any, elapsed time.Duration) Outcome {
	j := rec.Job()
	if err := rec.Complete(result, time.Now().UTC()); err != nil {
		e.logger.Error("failed to complete job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return Outcome{Err: err}
	}
	e.extensions.EmitJobCompleted(ctx, j, elapsed)
	return Outcome{State: job.StateCompleted}
}

// scheduleRetry marks the record retrying. The caller sleeps the returned
// delay before re-queueing it.
func (e *Executor) scheduleRetry(ctx context.Context, rec *job.Record, attempt int, execErr *courier.ExecutionError) Outcome {
	j := rec.Job()
	if err := rec.Retry(execErr.Err); err != nil {
		e.logger.Error("failed to mark job for retry",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return Outcome{Err: err}
	}

	delay := e.backoff.Delay(attempt)
	e.extensions.EmitJobRetrying(ctx, j, attempt, delay)

	e.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID),
		slog.String("job_name", j.Name),
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", j.MaxAttempts),
		slog.Duration("delay", delay),
		slog.String("error", execErr.Err.Error()),
	)

	return Outcome{State: job.StateRetrying, Delay: delay, Err: execErr}
}

// handleExhausted marks the record failed and emits events.
func (e *Executor) handleExhausted(ctx context.Context, rec *job.Record, execErr *courier.ExecutionError) Outcome {
	j := rec.Job()
	if err := rec.Fail(execErr.Err, time.Now().UTC()); err != nil {
		e.logger.Error("failed to mark job as failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return Outcome{Err: err}
	}

	e.extensions.EmitJobFailed(ctx, j, execErr)

	e.logger.Warn("job failed after exhausting attempts",
		slog.String("job_id", j.ID),
		slog.String("job_name", j.Name),
		slog.Int("attempts", execErr.Attempt),
		slog.String("error", execErr.Err.Error()),
	)

	return Outcome{State: job.StateFailed, Err: execErr}
}
