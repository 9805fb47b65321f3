package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/courier/job"
)

// Logging returns middleware that logs each attempt's start and outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		attempt := job.AttemptFrom(ctx)
		logger.Debug("job started",
			slog.String("job_name", j.Name),
			slog.String("job_id", j.ID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", j.MaxAttempts),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn("job attempt failed",
				slog.String("job_name", j.Name),
				slog.String("job_id", j.ID),
				slog.Int("attempt", attempt),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job completed",
				slog.String("job_name", j.Name),
				slog.String("job_id", j.ID),
				slog.Int("attempt", attempt),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
