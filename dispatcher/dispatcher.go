// Package dispatcher arms one timer per enabled schedule and hands
// firings to the execution coordinator. Each armed schedule owns a
// goroutine that waits on its timer, re-arms for the following
// occurrence immediately after a fire, and executes in a separate
// goroutine so a slow job never delays the next timer.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/chrono"
	"github.com/xraph/chrono/clock"
	"github.com/xraph/chrono/cronexpr"
	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/ext"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/schedule"
)

// Executor runs one firing of a schedule. Implemented by the
// coordinator.
type Executor interface {
	Execute(ctx context.Context, def *schedule.Definition, trigger execution.Trigger) (*execution.Record, error)
}

// Dispatcher owns the timer arena. Safe for concurrent use.
type Dispatcher struct {
	schedules  schedule.Store
	executor   Executor
	extensions *ext.Registry
	clock      clock.Clock
	logger     *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	running bool
	stopCh  chan struct{}

	wg sync.WaitGroup
}

// entry is one armed schedule. The cancel channel belongs to this
// arming; re-arming after an update allocates a fresh entry.
type entry struct {
	def    *schedule.Definition
	timer  clock.Timer
	cancel chan struct{}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock sets the clock used for timer arming and next-run math.
func WithClock(clk clock.Clock) Option {
	return func(d *Dispatcher) { d.clock = clk }
}

// New creates a Dispatcher over the given schedule store and executor.
func New(schedules schedule.Store, executor Executor, extensions *ext.Registry, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		schedules:  schedules,
		executor:   executor,
		extensions: extensions,
		clock:      clock.System(),
		logger:     logger,
		entries:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start loads every enabled schedule from the store and arms a timer
// for each. It returns chrono.ErrAlreadyRunning on a second call.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return chrono.ErrAlreadyRunning
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.mu.Unlock()

	defs, err := d.schedules.ListSchedules(ctx)
	if err != nil {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		return fmt.Errorf("chrono/dispatcher: load schedules: %w", err)
	}

	armed := 0
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		if err := d.Register(ctx, def); err != nil {
			d.logger.Warn("skipping schedule with invalid expression",
				slog.String("schedule_id", def.ID.String()),
				slog.String("expression", def.Expression),
			)
			continue
		}
		armed++
	}

	d.logger.Info("dispatcher started", slog.Int("schedules", armed))
	return nil
}

// Stop cancels every timer and waits for in-flight firings to hand off,
// bounded by ctx. It returns chrono.ErrNotRunning when the dispatcher
// was never started.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return chrono.ErrNotRunning
	}
	d.running = false
	close(d.stopCh)
	for key, e := range d.entries {
		e.timer.Stop()
		delete(d.entries, key)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("chrono/dispatcher: shutdown wait: %w", ctx.Err())
	}
}

// Register validates the schedule's expression, stamps its next run
// time, and arms a timer when the dispatcher is running and the
// schedule is enabled. Invalid expressions are rejected with
// chrono.ErrInvalidExpression.
func (d *Dispatcher) Register(ctx context.Context, def *schedule.Definition) error {
	if err := cronexpr.Validate(def.Expression); err != nil {
		return fmt.Errorf("%w: %v", chrono.ErrInvalidExpression, err)
	}

	next := cronexpr.Next(def.Expression, d.clock.Now())
	def.NextRunAt = &next
	d.extensions.EmitScheduleRegistered(ctx, def)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running || !def.Enabled {
		return nil
	}
	d.armLocked(def, next)
	return nil
}

// Update re-arms the schedule after a definition change. A disabled
// schedule is disarmed; a rescheduled one fires next per its new
// expression evaluated from now.
func (d *Dispatcher) Update(ctx context.Context, def *schedule.Definition) error {
	if err := cronexpr.Validate(def.Expression); err != nil {
		return fmt.Errorf("%w: %v", chrono.ErrInvalidExpression, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.disarmLocked(def.ID)
	if !d.running || !def.Enabled {
		def.NextRunAt = nil
		return nil
	}

	next := cronexpr.Next(def.Expression, d.clock.Now())
	def.NextRunAt = &next
	d.armLocked(def, next)
	return nil
}

// Unregister cancels the schedule's timer. The cancellation is
// synchronous: once it returns, the timer will not fire.
func (d *Dispatcher) Unregister(ctx context.Context, scheduleID id.ScheduleID) {
	d.mu.Lock()
	d.disarmLocked(scheduleID)
	d.mu.Unlock()

	d.extensions.EmitScheduleRemoved(ctx, scheduleID)
}

// ActiveSchedules returns the number of armed timers.
func (d *Dispatcher) ActiveSchedules() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Running reports whether Start has been called without a matching Stop.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// armLocked creates the timer entry and spawns its wait loop. Caller
// holds d.mu.
func (d *Dispatcher) armLocked(def *schedule.Definition, next time.Time) {
	e := &entry{
		def:    def,
		timer:  d.clock.NewTimer(next.Sub(d.clock.Now())),
		cancel: make(chan struct{}),
	}
	d.entries[def.ID.String()] = e

	d.wg.Add(1)
	go d.waitLoop(e, d.stopCh)
}

// disarmLocked stops and removes the entry for a schedule, if armed.
// Caller holds d.mu.
func (d *Dispatcher) disarmLocked(scheduleID id.ScheduleID) {
	key := scheduleID.String()
	e, ok := d.entries[key]
	if !ok {
		return
	}
	e.timer.Stop()
	close(e.cancel)
	delete(d.entries, key)
}

// waitLoop waits for the entry's timer, fires the schedule, and re-arms
// for the following occurrence. It exits on cancel or dispatcher stop.
func (d *Dispatcher) waitLoop(e *entry, stopCh chan struct{}) {
	defer d.wg.Done()

	for {
		select {
		case <-stopCh:
			e.timer.Stop()
			return
		case <-e.cancel:
			return
		case at := <-e.timer.C():
			// Re-arm first so a slow execution never delays the next fire.
			next := cronexpr.Next(e.def.Expression, at)
			d.mu.Lock()
			cur, armed := d.entries[e.def.ID.String()]
			if !armed || cur != e {
				// Disarmed or replaced while firing.
				d.mu.Unlock()
				return
			}
			e.def.NextRunAt = &next
			e.timer = d.clock.NewTimer(next.Sub(d.clock.Now()))
			d.mu.Unlock()

			d.fire(e.def, at)
		}
	}
}

// fire stamps the run times, persists them, and hands the execution to
// the coordinator in its own goroutine so the wait loop can re-arm
// immediately.
func (d *Dispatcher) fire(armed *schedule.Definition, at time.Time) {
	at = at.UTC()

	d.mu.Lock()
	armed.LastRunAt = &at
	armed.Touch(at)
	// Snapshot under the lock; the hand-off goroutine must not share
	// fields with the wait loop's next re-arm.
	snap := *armed
	d.mu.Unlock()
	def := &snap

	ctx := context.Background()
	if err := d.schedules.UpdateSchedule(ctx, def); err != nil {
		d.logger.Warn("failed to persist run times",
			slog.String("schedule_id", def.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		rec, err := d.executor.Execute(ctx, def, execution.TriggerTimer)
		if rec != nil {
			d.extensions.EmitScheduleFired(ctx, def, rec.ID)
		}
		if err != nil {
			d.logger.Debug("scheduled execution failed",
				slog.String("schedule_id", def.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}()
}
