// Package engine wires all chrono subsystems together: the extension
// registry, middleware chain, progress tracker, execution coordinator,
// timer dispatcher, and health monitor. It provides the schedule CRUD
// and run-now operations.
//
// This package exists to break the import cycle: the root chrono package
// defines Entity (imported by schedule, execution, etc.) and so cannot
// import those packages back. The engine package sits above all
// subsystem packages and below the application layer.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/chrono"
	"github.com/xraph/chrono/clock"
	"github.com/xraph/chrono/coordinator"
	"github.com/xraph/chrono/cronexpr"
	"github.com/xraph/chrono/dispatcher"
	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/ext"
	"github.com/xraph/chrono/health"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/job"
	mw "github.com/xraph/chrono/middleware"
	"github.com/xraph/chrono/observability"
	"github.com/xraph/chrono/progress"
	"github.com/xraph/chrono/retry"
	"github.com/xraph/chrono/schedule"
)

// Engine wraps a Scheduler with typed subsystem access. Use Build() to
// create one from a Scheduler and a job runner.
type Engine struct {
	s          *chrono.Scheduler
	runner     job.Runner
	schedules  schedule.Store
	executions execution.Store
	extensions *ext.Registry
	tracker    *progress.Tracker
	coord      *coordinator.Coordinator
	disp       *dispatcher.Dispatcher
	monitor    *health.Monitor
	logger     *slog.Logger

	clock  clock.Clock
	policy *retry.Policy
	mws    []mw.Middleware

	// Downstream rate limit, zero means unlimited.
	ratePerSecond float64
	rateBurst     int

	// OpenTelemetry provider (optional; nil means use global).
	meterProvider metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's execution chain, after
// the default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithRetryPolicy sets the retry policy applied to every execution.
// If not set, retry.DefaultPolicy() is used.
func WithRetryPolicy(p retry.Policy) Option {
	return func(eng *Engine) {
		eng.policy = &p
	}
}

// WithRateLimit caps sustained execution starts per second across all
// schedules.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(eng *Engine) {
		eng.ratePerSecond = perSecond
		eng.rateBurst = burst
	}
}

// WithClock sets the clock used by all subsystems. Tests inject
// clock.Manual here.
func WithClock(clk clock.Clock) Option {
	return func(eng *Engine) {
		eng.clock = clk
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the metrics middleware and the observability extension
// use this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an existing Scheduler and the job runner
// that executes schedule payloads. The Scheduler's store must implement
// schedule.Store and execution.Store.
func Build(s *chrono.Scheduler, runner job.Runner, opts ...Option) (*Engine, error) {
	logger := s.Logger()
	store := s.Store()

	if store == nil {
		return nil, chrono.ErrNoStore
	}
	if runner == nil {
		return nil, fmt.Errorf("chrono: engine requires a job runner")
	}

	ss, ok := store.(schedule.Store)
	if !ok {
		return nil, fmt.Errorf("chrono: store does not implement schedule.Store")
	}
	es, ok := store.(execution.Store)
	if !ok {
		return nil, fmt.Errorf("chrono: store does not implement execution.Store")
	}

	eng := &Engine{
		s:          s,
		runner:     runner,
		schedules:  ss,
		executions: es,
		extensions: ext.NewRegistry(logger),
		clock:      clock.System(),
		logger:     logger,
	}

	for _, opt := range opts {
		opt(eng)
	}

	config := s.Config()
	eng.tracker = progress.NewTracker(eng.clock)

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/xraph/chrono")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/xraph/chrono/observability")
		obsExt = observability.NewMetricsExtensionWithMeter(meter)
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Default middleware stack: recover → metrics → logging.
	allMws := []mw.Middleware{
		mw.Recover(logger),
		metricsMw,
		mw.Logging(logger),
	}
	allMws = append(allMws, eng.mws...)

	coordOpts := []coordinator.Option{
		coordinator.WithConcurrency(config.MaxConcurrent),
		coordinator.WithMiddleware(allMws...),
		coordinator.WithClock(eng.clock),
	}
	if eng.policy != nil {
		coordOpts = append(coordOpts, coordinator.WithPolicy(*eng.policy))
	}
	if eng.ratePerSecond > 0 {
		coordOpts = append(coordOpts, coordinator.WithRateLimit(eng.ratePerSecond, eng.rateBurst))
	}
	eng.coord = coordinator.New(runner, es, eng.tracker, eng.extensions, logger, coordOpts...)

	eng.disp = dispatcher.New(ss, eng.coord, eng.extensions, logger,
		dispatcher.WithClock(eng.clock))

	eng.monitor = health.NewMonitor(eng.coord, eng.disp,
		health.WithStreakLimit(config.FailureStreakLimit),
		health.WithQueueWarnAfter(config.QueueWarnAfter),
		health.WithClock(eng.clock),
	)
	eng.extensions.Register(eng.monitor)

	// Wire back into the Scheduler.
	s.SetDispatcher(eng.disp)
	s.SetExtensions(eng.extensions)

	return eng, nil
}

// CreateSchedule validates the expression, persists a new schedule, and
// arms its timer when the engine is running and the schedule is enabled.
// Invalid expressions are rejected with chrono.ErrInvalidExpression.
func (eng *Engine) CreateSchedule(ctx context.Context, name, expression string, payload []byte, enabled bool) (*schedule.Definition, error) {
	if err := cronexpr.Validate(expression); err != nil {
		return nil, fmt.Errorf("%w: %v", chrono.ErrInvalidExpression, err)
	}

	def := &schedule.Definition{
		Entity:     chrono.NewEntity(),
		ID:         id.NewScheduleID(),
		Name:       name,
		Expression: expression,
		Payload:    payload,
		Enabled:    enabled,
	}
	next := cronexpr.Next(expression, eng.clock.Now())
	def.NextRunAt = &next

	if err := eng.schedules.CreateSchedule(ctx, def); err != nil {
		return nil, err
	}
	if err := eng.disp.Register(ctx, def); err != nil {
		return nil, err
	}

	eng.logger.Info("schedule created",
		slog.String("schedule_id", def.ID.String()),
		slog.String("name", name),
		slog.String("expression", expression),
		slog.Bool("enabled", enabled),
		slog.Time("next_run_at", next),
	)
	return def, nil
}

// GetSchedule retrieves a schedule by ID.
func (eng *Engine) GetSchedule(ctx context.Context, scheduleID id.ScheduleID) (*schedule.Definition, error) {
	return eng.schedules.GetSchedule(ctx, scheduleID)
}

// ListSchedules returns all schedules ordered by creation time.
func (eng *Engine) ListSchedules(ctx context.Context) ([]*schedule.Definition, error) {
	return eng.schedules.ListSchedules(ctx)
}

// UpdateSchedule applies a partial update. An empty patch is rejected
// with chrono.ErrInvalidPatch; a patched expression is validated before
// anything is persisted. Expression or enabled changes re-arm the
// schedule's timer from now.
func (eng *Engine) UpdateSchedule(ctx context.Context, scheduleID id.ScheduleID, patch schedule.Patch) (*schedule.Definition, error) {
	if patch.Empty() {
		return nil, chrono.ErrInvalidPatch
	}
	if patch.Expression != nil {
		if err := cronexpr.Validate(*patch.Expression); err != nil {
			return nil, fmt.Errorf("%w: %v", chrono.ErrInvalidExpression, err)
		}
	}

	def, err := eng.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	patch.Apply(def)
	def.Touch(eng.clock.Now().UTC())

	if patch.Reschedules() {
		if err := eng.disp.Update(ctx, def); err != nil {
			return nil, err
		}
	}
	if err := eng.schedules.UpdateSchedule(ctx, def); err != nil {
		return nil, err
	}

	eng.logger.Info("schedule updated",
		slog.String("schedule_id", def.ID.String()),
		slog.Bool("rearmed", patch.Reschedules()),
	)
	return def, nil
}

// DeleteSchedule cancels the schedule's timer and removes it. Its
// execution history remains queryable.
func (eng *Engine) DeleteSchedule(ctx context.Context, scheduleID id.ScheduleID) error {
	if err := eng.schedules.DeleteSchedule(ctx, scheduleID); err != nil {
		return err
	}
	eng.disp.Unregister(ctx, scheduleID)
	eng.coord.Forget(scheduleID)

	eng.logger.Info("schedule deleted", slog.String("schedule_id", scheduleID.String()))
	return nil
}

// ExecuteNow runs the schedule immediately, regardless of its timer and
// enabled flag. It goes through the same coordinator path as a timer
// fire: the per-schedule lock serializes it against scheduled runs. The
// returned error is the job's terminal error; the record reflects the
// outcome either way.
func (eng *Engine) ExecuteNow(ctx context.Context, scheduleID id.ScheduleID) (*execution.Record, error) {
	def, err := eng.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	return eng.coord.Execute(ctx, def, execution.TriggerManual)
}

// Executions returns the schedule's execution history, most recent
// first. A non-positive limit falls back to the configured HistoryLimit.
func (eng *Engine) Executions(ctx context.Context, scheduleID id.ScheduleID, limit int) ([]*execution.Record, error) {
	if limit <= 0 {
		limit = eng.s.Config().HistoryLimit
	}
	return eng.executions.ListExecutions(ctx, scheduleID, limit)
}

// GetExecution retrieves one execution record by ID.
func (eng *Engine) GetExecution(ctx context.Context, executionID id.ExecutionID) (*execution.Record, error) {
	return eng.executions.GetExecution(ctx, executionID)
}

// Progress returns the live progress state of an operation, or nil for
// unknown IDs.
func (eng *Engine) Progress(opID id.OperationID) *progress.State {
	return eng.tracker.Get(opID)
}

// Health evaluates the current engine health snapshot.
func (eng *Engine) Health() health.Snapshot {
	return eng.monitor.Check()
}

// Start arms timers for all enabled schedules and begins firing them.
func (eng *Engine) Start(ctx context.Context) error {
	return eng.s.Start(ctx)
}

// Stop gracefully shuts down: timers are cancelled, in-flight executions
// run to completion bounded by the configured ShutdownTimeout when ctx
// carries no deadline of its own.
func (eng *Engine) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.s.Config().ShutdownTimeout)
		defer cancel()
	}
	return eng.s.Stop(ctx)
}

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Scheduler returns the underlying Scheduler.
func (eng *Engine) Scheduler() *chrono.Scheduler { return eng.s }

// Coordinator returns the execution coordinator.
func (eng *Engine) Coordinator() *coordinator.Coordinator { return eng.coord }

// Dispatcher returns the timer dispatcher.
func (eng *Engine) Dispatcher() *dispatcher.Dispatcher { return eng.disp }

// Monitor returns the health monitor.
func (eng *Engine) Monitor() *health.Monitor { return eng.monitor }

// Tracker returns the progress tracker.
func (eng *Engine) Tracker() *progress.Tracker { return eng.tracker }
