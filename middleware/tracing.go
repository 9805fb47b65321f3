package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/courier/job"
)

// tracerName is the instrumentation scope name for courier tracing.
const tracerName = "github.com/xraph/courier"

// Tracing returns middleware that wraps job execution in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is used
// and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: courier.job.id, courier.job.name,
// courier.job.priority, courier.attempt, courier.max_attempts.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, "courier.job.execute",
			trace.WithAttributes(
				attribute.String("courier.job.id", j.ID),
				attribute.String("courier.job.name", j.Name),
				attribute.String("courier.job.priority", j.Priority.String()),
				attribute.Int("courier.attempt", job.AttemptFrom(ctx)),
				attribute.Int("courier.max_attempts", j.MaxAttempts),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
