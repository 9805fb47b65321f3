package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/courier/ext"
	"github.com/xraph/courier/job"
)

// meterName is the instrumentation scope name for courier metrics.
const meterName = "github.com/xraph/courier/observability"

// Compile-time interface checks.
var (
	_ ext.Extension      = (*MetricsExtension)(nil)
	_ ext.JobEnqueued    = (*MetricsExtension)(nil)
	_ ext.JobCompleted   = (*MetricsExtension)(nil)
	_ ext.JobRetrying    = (*MetricsExtension)(nil)
	_ ext.JobFailed      = (*MetricsExtension)(nil)
	_ ext.EventTriggered = (*MetricsExtension)(nil)
	_ ext.ScheduleFired  = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle counters. Register it as
// a courier extension to track enqueue rates, completion counts, retry
// counts, failure rates, webhook fan-out and schedule firings.
type MetricsExtension struct {
	JobEnqueued     metric.Int64Counter
	JobCompleted    metric.Int64Counter
	JobRetried      metric.Int64Counter
	JobFailed       metric.Int64Counter
	EventTriggered  metric.Int64Counter
	DeliveriesFired metric.Int64Counter
	ScheduleFired   metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider. Without a configured provider the counters are noops.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. Use this to inject a specific MeterProvider in tests.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// The OTel API returns noop instruments alongside any error.
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	return &MetricsExtension{
		JobEnqueued:     counter("courier.job.enqueued", "Jobs accepted into the queue"),
		JobCompleted:    counter("courier.job.completed", "Jobs finished successfully"),
		JobRetried:      counter("courier.job.retried", "Failed attempts scheduled for retry"),
		JobFailed:       counter("courier.job.failed", "Jobs that exhausted their retry budget"),
		EventTriggered:  counter("courier.event.triggered", "Webhook events triggered"),
		DeliveriesFired: counter("courier.event.deliveries", "Deliveries created by triggered events"),
		ScheduleFired:   counter("courier.schedule.fired", "Jobs submitted by recurring schedules"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func kind(j *job.Job) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("job_name", j.Name))
}

// ── Job lifecycle hooks ─────────────────────────────

// OnJobEnqueued implements ext.JobEnqueued.
func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	m.JobEnqueued.Add(ctx, 1, kind(j))
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, _ time.Duration) error {
	m.JobCompleted.Add(ctx, 1, kind(j))
	return nil
}

// OnJobRetrying implements ext.JobRetrying.
func (m *MetricsExtension) OnJobRetrying(ctx context.Context, j *job.Job, _ int, _ time.Duration) error {
	m.JobRetried.Add(ctx, 1, kind(j))
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.JobFailed.Add(ctx, 1, kind(j))
	return nil
}

// ── Webhook hooks ───────────────────────────────────

// OnEventTriggered implements ext.EventTriggered.
func (m *MetricsExtension) OnEventTriggered(ctx context.Context, _, eventName string, deliveries int) error {
	attrs := metric.WithAttributes(attribute.String("event", eventName))
	m.EventTriggered.Add(ctx, 1, attrs)
	m.DeliveriesFired.Add(ctx, int64(deliveries), attrs)
	return nil
}

// ── Scheduler hooks ─────────────────────────────────

// OnScheduleFired implements ext.ScheduleFired.
func (m *MetricsExtension) OnScheduleFired(ctx context.Context, scheduleName, _ string) error {
	m.ScheduleFired.Add(ctx, 1, metric.WithAttributes(attribute.String("schedule", scheduleName)))
	return nil
}
