package ext_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/ext"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/schedule"
)

// recordingExt implements every hook and counts invocations.
type recordingExt struct {
	registered int
	removed    int
	fired      int
	started    int
	retrying   int
	completed  int
	failed     int
	shutdown   int
}

func (r *recordingExt) Name() string { return "recording" }

func (r *recordingExt) OnScheduleRegistered(context.Context, *schedule.Definition) error {
	r.registered++
	return nil
}

func (r *recordingExt) OnScheduleRemoved(context.Context, id.ScheduleID) error {
	r.removed++
	return nil
}

func (r *recordingExt) OnScheduleFired(context.Context, *schedule.Definition, id.ExecutionID) error {
	r.fired++
	return nil
}

func (r *recordingExt) OnExecutionStarted(context.Context, *execution.Record) error {
	r.started++
	return nil
}

func (r *recordingExt) OnExecutionRetrying(context.Context, *execution.Record, int, time.Duration) error {
	r.retrying++
	return nil
}

func (r *recordingExt) OnExecutionCompleted(context.Context, *execution.Record, time.Duration) error {
	r.completed++
	return nil
}

func (r *recordingExt) OnExecutionFailed(context.Context, *execution.Record, error) error {
	r.failed++
	return nil
}

func (r *recordingExt) OnShutdown(context.Context) error {
	r.shutdown++
	return nil
}

// startedOnlyExt opts in to a single hook.
type startedOnlyExt struct {
	started int
}

func (s *startedOnlyExt) Name() string { return "started-only" }

func (s *startedOnlyExt) OnExecutionStarted(context.Context, *execution.Record) error {
	s.started++
	return nil
}

// failingExt returns errors from its hooks; they must be swallowed.
type failingExt struct{}

func (failingExt) Name() string { return "failing" }

func (failingExt) OnExecutionStarted(context.Context, *execution.Record) error {
	return errors.New("hook exploded")
}

func TestRegistry_EmitsToAllHooks(t *testing.T) {
	r := ext.NewRegistry(nil)
	rec := &recordingExt{}
	r.Register(rec)

	ctx := context.Background()
	def := &schedule.Definition{ID: id.NewScheduleID(), Name: "nightly"}
	record := &execution.Record{ID: id.NewExecutionID(), ScheduleID: def.ID}

	r.EmitScheduleRegistered(ctx, def)
	r.EmitScheduleRemoved(ctx, def.ID)
	r.EmitScheduleFired(ctx, def, record.ID)
	r.EmitExecutionStarted(ctx, record)
	r.EmitExecutionRetrying(ctx, record, 2, time.Second)
	r.EmitExecutionCompleted(ctx, record, time.Millisecond)
	r.EmitExecutionFailed(ctx, record, errors.New("boom"))
	r.EmitShutdown(ctx)

	counts := map[string]int{
		"registered": rec.registered,
		"removed":    rec.removed,
		"fired":      rec.fired,
		"started":    rec.started,
		"retrying":   rec.retrying,
		"completed":  rec.completed,
		"failed":     rec.failed,
		"shutdown":   rec.shutdown,
	}
	for hook, n := range counts {
		if n != 1 {
			t.Errorf("%s hook fired %d times, want 1", hook, n)
		}
	}
}

func TestRegistry_OptInHooksOnly(t *testing.T) {
	r := ext.NewRegistry(nil)
	s := &startedOnlyExt{}
	r.Register(s)

	ctx := context.Background()
	record := &execution.Record{ID: id.NewExecutionID()}

	r.EmitExecutionStarted(ctx, record)
	r.EmitExecutionCompleted(ctx, record, time.Second) // not implemented; must not panic

	if s.started != 1 {
		t.Errorf("started = %d, want 1", s.started)
	}
}

func TestRegistry_HookErrorsAreSwallowed(t *testing.T) {
	r := ext.NewRegistry(nil)
	r.Register(failingExt{})
	counter := &startedOnlyExt{}
	r.Register(counter)

	// Must not panic, and later extensions still run.
	r.EmitExecutionStarted(context.Background(), &execution.Record{ID: id.NewExecutionID()})

	if counter.started != 1 {
		t.Errorf("extension after a failing hook fired %d times, want 1", counter.started)
	}
}

func TestRegistry_Extensions(t *testing.T) {
	r := ext.NewRegistry(nil)
	r.Register(&recordingExt{})
	r.Register(&startedOnlyExt{})

	if got := len(r.Extensions()); got != 2 {
		t.Errorf("Extensions() returned %d, want 2", got)
	}
}
