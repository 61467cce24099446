package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/ext"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/observability"
	"github.com/xraph/chrono/schedule"
)

func TestMetricsExtension_Name(t *testing.T) {
	m := observability.NewMetricsExtension()
	if m.Name() != "observability-metrics" {
		t.Errorf("Name() = %q", m.Name())
	}
}

func TestMetricsExtension_HooksAreNoopSafe(t *testing.T) {
	// Without a configured MeterProvider every instrument is a noop;
	// all hooks must still succeed.
	m := observability.NewMetricsExtension()
	ctx := context.Background()
	def := &schedule.Definition{ID: id.NewScheduleID()}
	rec := &execution.Record{ID: id.NewExecutionID(), ScheduleID: def.ID}

	hooks := []func() error{
		func() error { return m.OnScheduleRegistered(ctx, def) },
		func() error { return m.OnScheduleRemoved(ctx, def.ID) },
		func() error { return m.OnScheduleFired(ctx, def, rec.ID) },
		func() error { return m.OnExecutionStarted(ctx, rec) },
		func() error { return m.OnExecutionRetrying(ctx, rec, 2, time.Second) },
		func() error { return m.OnExecutionCompleted(ctx, rec, time.Second) },
		func() error { return m.OnExecutionFailed(ctx, rec, errors.New("boom")) },
	}
	for i, hook := range hooks {
		if err := hook(); err != nil {
			t.Errorf("hook %d returned %v, want nil", i, err)
		}
	}
}

func TestMetricsExtension_RegistersWithRegistry(t *testing.T) {
	r := ext.NewRegistry(nil)
	r.Register(observability.NewMetricsExtension())

	// Emitting through the registry exercises the type-cached hook paths.
	rec := &execution.Record{ID: id.NewExecutionID()}
	r.EmitExecutionStarted(context.Background(), rec)
	r.EmitExecutionCompleted(context.Background(), rec, time.Millisecond)
}
