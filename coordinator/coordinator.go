// Package coordinator executes due schedules. For each firing it
// acquires the schedule's execution lock, invokes the external job
// runner through the retry executor and the middleware chain, mirrors
// progress state, and produces an execution record.
//
// Execution is serialized per schedule (manual and timer triggers share
// the same lock) and bounded globally by a counting semaphore; firings
// that arrive while the semaphore is saturated wait in queue rather than
// being dropped.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/xraph/chrono"
	"github.com/xraph/chrono/clock"
	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/ext"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/job"
	"github.com/xraph/chrono/middleware"
	"github.com/xraph/chrono/progress"
	"github.com/xraph/chrono/retry"
	"github.com/xraph/chrono/schedule"
)

// Coordinator owns the per-schedule lock table and the global
// concurrency semaphore. Safe for concurrent use.
type Coordinator struct {
	runner     job.Runner
	executions execution.Store
	tracker    *progress.Tracker
	extensions *ext.Registry
	retrier    *retry.Executor
	policy     retry.Policy
	mw         middleware.Middleware
	clock      clock.Clock
	logger     *slog.Logger

	sem     *semaphore.Weighted
	limiter *rate.Limiter

	// locks maps schedule ID to its execution lock. Entries live for the
	// schedule's lifetime; Forget removes them on unregister.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	running int64 // executions past the semaphore, in flight
	waiting int64 // firings queued on the semaphore

	// queuedSince is the instant the queue last became non-empty.
	queuedMu    sync.Mutex
	queuedSince time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConcurrency sets the global cap on simultaneous executions.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithPolicy sets the retry policy applied to every execution.
func WithPolicy(p retry.Policy) Option {
	return func(c *Coordinator) { c.policy = p }
}

// WithRateLimit caps sustained execution starts per second across all
// schedules, protecting shared downstream resources. Zero disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Coordinator) {
		if perSecond > 0 {
			if burst <= 0 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithMiddleware sets the middleware chain wrapped around each attempt
// chain. It replaces the default (Recover only).
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Coordinator) { c.mw = middleware.Chain(mws...) }
}

// WithClock sets the clock used for record timestamps and retry sleeps.
func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) { c.clock = clk }
}

// New creates a Coordinator. The runner and execution store are
// required. A nil tracker or extension registry is replaced with a
// private instance; normally both are shared with the engine.
func New(
	runner job.Runner,
	executions execution.Store,
	tracker *progress.Tracker,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...Option,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		runner:     runner,
		executions: executions,
		tracker:    tracker,
		extensions: extensions,
		policy:     retry.DefaultPolicy(),
		mw:         middleware.Chain(middleware.Recover(logger)),
		clock:      clock.System(),
		logger:     logger,
		sem:        semaphore.NewWeighted(10),
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracker == nil {
		c.tracker = progress.NewTracker(c.clock)
	}
	if c.extensions == nil {
		c.extensions = ext.NewRegistry(logger)
	}
	c.retrier = retry.NewExecutor(c.clock, logger)
	return c
}

// Execute runs one firing of the schedule: per-schedule lock, semaphore
// slot, record creation, retried job invocation, terminal transition.
// The returned error is the job's terminal error (nil on success); the
// record reflects the outcome in either case. Infrastructure failures
// (store writes) are returned with a nil record.
func (c *Coordinator) Execute(ctx context.Context, def *schedule.Definition, trigger execution.Trigger) (*execution.Record, error) {
	// Per-schedule execution lock, held across the whole attempt chain.
	// Taken before a semaphore slot so same-schedule firings stacked
	// behind a slow job wait here without holding slots other schedules
	// could use.
	lock := c.lockFor(def.ID)
	lock.Lock()
	defer lock.Unlock()

	// Global concurrency cap. Waiters count toward the health queue.
	c.enqueue()
	if err := c.sem.Acquire(ctx, 1); err != nil {
		c.dequeue()
		return nil, fmt.Errorf("chrono/coordinator: acquire slot: %w", err)
	}
	c.dequeue()
	defer c.sem.Release(1)

	// Optional downstream rate limit.
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("chrono/coordinator: rate limit: %w", err)
		}
	}

	atomic.AddInt64(&c.running, 1)
	defer atomic.AddInt64(&c.running, -1)

	return c.run(ctx, def, trigger)
}

// run performs one attempt chain while the caller holds the schedule lock.
func (c *Coordinator) run(ctx context.Context, def *schedule.Definition, trigger execution.Trigger) (*execution.Record, error) {
	now := c.clock.Now().UTC()
	opID := c.tracker.Begin(def.ID, "execution queued")

	rec := &execution.Record{
		Entity:      chrono.NewEntity(),
		ID:          id.NewExecutionID(),
		ScheduleID:  def.ID,
		OperationID: opID,
		Status:      execution.StatusRunning,
		Trigger:     trigger,
		StartedAt:   now,
	}

	if err := c.executions.AppendExecution(ctx, rec); err != nil {
		c.tracker.Fail(opID, "could not persist execution record")
		return nil, fmt.Errorf("chrono/coordinator: append execution: %w", err)
	}
	c.extensions.EmitExecutionStarted(ctx, rec)

	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		c.tracker.Update(opID, progress.StageProcessing,
			percentOf(attempts, c.policy.MaxAttempts),
			fmt.Sprintf("attempt %d", attempts))
		return c.runner.Run(ctx, def.Payload)
	}

	onRetry := func(attempt int, delay time.Duration) {
		c.extensions.EmitExecutionRetrying(ctx, rec, attempt, delay)
		c.tracker.Update(opID, progress.StageProcessing,
			percentOf(attempt-1, c.policy.MaxAttempts),
			fmt.Sprintf("retrying in %s (attempt %d)", delay, attempt))
	}

	start := c.clock.Now()
	jobErr := c.mw(ctx, rec, func(ctx context.Context) error {
		return c.retrier.Run(ctx, op, c.policy, onRetry)
	})
	elapsed := c.clock.Now().Sub(start)

	completed := c.clock.Now().UTC()
	rec.Attempts = attempts
	rec.CompletedAt = &completed
	rec.Touch(completed)

	if jobErr != nil {
		rec.Status = execution.StatusFailed
		rec.LastError = jobErr.Error()
		c.tracker.Fail(opID, jobErr.Error())
	} else {
		rec.Status = execution.StatusSucceeded
		c.tracker.Complete(opID, "execution succeeded")
	}

	if err := c.executions.UpdateExecution(ctx, rec); err != nil {
		c.logger.Error("failed to persist terminal execution state",
			slog.String("execution_id", rec.ID.String()),
			slog.String("schedule_id", def.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	if jobErr != nil {
		c.extensions.EmitExecutionFailed(ctx, rec, jobErr)
	} else {
		c.extensions.EmitExecutionCompleted(ctx, rec, elapsed)
	}

	return rec, jobErr
}

// lockFor returns the execution lock for a schedule, creating it on
// first use.
func (c *Coordinator) lockFor(scheduleID id.ScheduleID) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()

	key := scheduleID.String()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}

// Forget drops the lock entry for an unregistered schedule. An execution
// already past lock acquisition is unaffected; it holds its own
// reference to the mutex.
func (c *Coordinator) Forget(scheduleID id.ScheduleID) {
	c.locksMu.Lock()
	delete(c.locks, scheduleID.String())
	c.locksMu.Unlock()
}

// RunningExecutions returns the number of executions currently in flight.
func (c *Coordinator) RunningExecutions() int {
	return int(atomic.LoadInt64(&c.running))
}

// QueueLength returns the number of firings waiting on the global
// semaphore.
func (c *Coordinator) QueueLength() int {
	return int(atomic.LoadInt64(&c.waiting))
}

// QueuedSince returns when the queue last became non-empty. ok is false
// when the queue is empty.
func (c *Coordinator) QueuedSince() (since time.Time, ok bool) {
	if atomic.LoadInt64(&c.waiting) == 0 {
		return time.Time{}, false
	}
	c.queuedMu.Lock()
	defer c.queuedMu.Unlock()
	return c.queuedSince, true
}

func (c *Coordinator) enqueue() {
	if atomic.AddInt64(&c.waiting, 1) == 1 {
		c.queuedMu.Lock()
		c.queuedSince = c.clock.Now().UTC()
		c.queuedMu.Unlock()
	}
}

func (c *Coordinator) dequeue() {
	atomic.AddInt64(&c.waiting, -1)
}

// percentOf maps attempt progression onto [0,100) so progress moves
// visibly between retries without claiming completion.
func percentOf(step, total int) float64 {
	if total <= 0 {
		total = 1
	}
	p := float64(step) / float64(total+1) * 100
	if p > 95 {
		p = 95
	}
	return p
}
