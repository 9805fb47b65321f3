package observability_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/courier/ext"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/observability"
)

func newTestExtension() (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

func newTestJob() *job.Job {
	return job.New("task_1_1", 1, "send-email", nil)
}

// counterValue sums every data point of the named Int64 counter.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: expected Sum[int64], got %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension()
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_JobHooks(t *testing.T) {
	e, reader := newTestExtension()
	ctx := context.Background()
	j := newTestJob()

	_ = e.OnJobEnqueued(ctx, j)
	_ = e.OnJobEnqueued(ctx, j)
	_ = e.OnJobCompleted(ctx, j, 100*time.Millisecond)
	_ = e.OnJobRetrying(ctx, j, 1, time.Second)
	_ = e.OnJobFailed(ctx, j, errors.New("boom"))

	tests := map[string]int64{
		"courier.job.enqueued":  2,
		"courier.job.completed": 1,
		"courier.job.retried":   1,
		"courier.job.failed":    1,
	}
	for name, want := range tests {
		if got := counterValue(t, reader, name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestMetricsExtension_EventTriggered(t *testing.T) {
	e, reader := newTestExtension()
	_ = e.OnEventTriggered(context.Background(), "evt_01", "order.created", 3)

	if got := counterValue(t, reader, "courier.event.triggered"); got != 1 {
		t.Errorf("triggered = %d, want 1", got)
	}
	if got := counterValue(t, reader, "courier.event.deliveries"); got != 3 {
		t.Errorf("deliveries = %d, want 3", got)
	}
}

func TestMetricsExtension_ScheduleFired(t *testing.T) {
	e, reader := newTestExtension()
	r := ext.NewRegistry(slog.Default())
	r.Register(e)

	r.EmitScheduleFired(context.Background(), "nightly-backup", "task_1_1")
	r.EmitScheduleFired(context.Background(), "health-check", "task_2_1")
	if got := counterValue(t, reader, "courier.schedule.fired"); got != 2 {
		t.Errorf("schedule fired = %d, want 2", got)
	}
}

func TestMetricsExtension_ViaRegistry(t *testing.T) {
	e, reader := newTestExtension()
	r := ext.NewRegistry(slog.Default())
	r.Register(e)

	r.EmitJobEnqueued(context.Background(), newTestJob())
	if got := counterValue(t, reader, "courier.job.enqueued"); got != 1 {
		t.Errorf("enqueued via registry = %d, want 1", got)
	}
}

func TestMetricsExtension_DefaultNoopSafe(t *testing.T) {
	e := observability.NewMetricsExtension()
	if err := e.OnJobCompleted(context.Background(), newTestJob(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
