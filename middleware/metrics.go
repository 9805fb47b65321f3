package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/courier/job"
)

// meterName is the instrumentation scope name for courier metrics.
const meterName = "github.com/xraph/courier"

// Metrics returns middleware that records per-attempt execution metrics
// using the global OTel MeterProvider. If no MeterProvider is configured,
// noop instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - courier.job.duration (Float64Histogram): execution time in seconds
//   - courier.job.executions (Int64Counter): total attempts
//
// Both carry job_name, priority, status ("ok" or "error") and retry, which
// is true for every attempt after the first.
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the API still returns usable noop instruments.
	duration, _ := meter.Float64Histogram( //nolint:errcheck // noop on error
		"courier.job.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter( //nolint:errcheck // noop on error
		"courier.job.executions",
		metric.WithDescription("Total number of job execution attempts"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, j *job.Job, next Handler) error {
		start := time.Now()
		err := next(ctx)

		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("job_name", j.Name),
			attribute.String("priority", j.Priority.String()),
			attribute.String("status", status),
			attribute.Bool("retry", job.AttemptFrom(ctx) > 1),
		)
		duration.Record(ctx, time.Since(start).Seconds(), attrs)
		executions.Add(ctx, 1, attrs)
		return err
	}
}
