// Package observability provides a metrics extension that records
// lifecycle counters for the engine. Register it with the extension
// registry to automatically track schedule registrations, fires,
// execution starts, retries, completions, and failures.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/ext"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/schedule"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/xraph/chrono/observability"

// Compile-time interface checks.
var (
	_ ext.Extension          = (*MetricsExtension)(nil)
	_ ext.ScheduleRegistered = (*MetricsExtension)(nil)
	_ ext.ScheduleRemoved    = (*MetricsExtension)(nil)
	_ ext.ScheduleFired      = (*MetricsExtension)(nil)
	_ ext.ExecutionStarted   = (*MetricsExtension)(nil)
	_ ext.ExecutionRetrying  = (*MetricsExtension)(nil)
	_ ext.ExecutionCompleted = (*MetricsExtension)(nil)
	_ ext.ExecutionFailed    = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle metrics via the OTel
// metric API. With no MeterProvider configured the instruments are
// noops, so registering the extension is always safe.
type MetricsExtension struct {
	scheduleRegistered metric.Int64Counter
	scheduleRemoved    metric.Int64Counter
	scheduleFired      metric.Int64Counter
	executionStarted   metric.Int64Counter
	executionRetried   metric.Int64Counter
	executionCompleted metric.Int64Counter
	executionFailed    metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Use this variant to inject a test MeterProvider.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		_ = err // noop fallback guaranteed by OTel API contract
		return c
	}

	return &MetricsExtension{
		scheduleRegistered: counter("chrono.schedule.registered", "Total schedules registered"),
		scheduleRemoved:    counter("chrono.schedule.removed", "Total schedules removed"),
		scheduleFired:      counter("chrono.schedule.fired", "Total timer fires"),
		executionStarted:   counter("chrono.execution.started", "Total executions started"),
		executionRetried:   counter("chrono.execution.retried", "Total retry attempts"),
		executionCompleted: counter("chrono.execution.completed", "Total executions completed"),
		executionFailed:    counter("chrono.execution.failed", "Total executions failed"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnScheduleRegistered implements ext.ScheduleRegistered.
func (m *MetricsExtension) OnScheduleRegistered(ctx context.Context, _ *schedule.Definition) error {
	m.scheduleRegistered.Add(ctx, 1)
	return nil
}

// OnScheduleRemoved implements ext.ScheduleRemoved.
func (m *MetricsExtension) OnScheduleRemoved(ctx context.Context, _ id.ScheduleID) error {
	m.scheduleRemoved.Add(ctx, 1)
	return nil
}

// OnScheduleFired implements ext.ScheduleFired.
func (m *MetricsExtension) OnScheduleFired(ctx context.Context, _ *schedule.Definition, _ id.ExecutionID) error {
	m.scheduleFired.Add(ctx, 1)
	return nil
}

// OnExecutionStarted implements ext.ExecutionStarted.
func (m *MetricsExtension) OnExecutionStarted(ctx context.Context, _ *execution.Record) error {
	m.executionStarted.Add(ctx, 1)
	return nil
}

// OnExecutionRetrying implements ext.ExecutionRetrying.
func (m *MetricsExtension) OnExecutionRetrying(ctx context.Context, _ *execution.Record, _ int, _ time.Duration) error {
	m.executionRetried.Add(ctx, 1)
	return nil
}

// OnExecutionCompleted implements ext.ExecutionCompleted.
func (m *MetricsExtension) OnExecutionCompleted(ctx context.Context, _ *execution.Record, _ time.Duration) error {
	m.executionCompleted.Add(ctx, 1)
	return nil
}

// OnExecutionFailed implements ext.ExecutionFailed.
func (m *MetricsExtension) OnExecutionFailed(ctx context.Context, _ *execution.Record, _ error) error {
	m.executionFailed.Add(ctx, 1)
	return nil
}
