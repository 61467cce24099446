package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/schedule"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type scheduleRegisteredEntry struct {
	name string
	hook ScheduleRegistered
}

type scheduleRemovedEntry struct {
	name string
	hook ScheduleRemoved
}

type scheduleFiredEntry struct {
	name string
	hook ScheduleFired
}

type executionStartedEntry struct {
	name string
	hook ExecutionStarted
}

type executionRetryingEntry struct {
	name string
	hook ExecutionRetrying
}

type executionCompletedEntry struct {
	name string
	hook ExecutionCompleted
}

type executionFailedEntry struct {
	name string
	hook ExecutionFailed
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	scheduleRegistered []scheduleRegisteredEntry
	scheduleRemoved    []scheduleRemovedEntry
	scheduleFired      []scheduleFiredEntry
	executionStarted   []executionStartedEntry
	executionRetrying  []executionRetryingEntry
	executionCompleted []executionCompletedEntry
	executionFailed    []executionFailedEntry
	shutdown           []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(ScheduleRegistered); ok {
		r.scheduleRegistered = append(r.scheduleRegistered, scheduleRegisteredEntry{name, h})
	}
	if h, ok := e.(ScheduleRemoved); ok {
		r.scheduleRemoved = append(r.scheduleRemoved, scheduleRemovedEntry{name, h})
	}
	if h, ok := e.(ScheduleFired); ok {
		r.scheduleFired = append(r.scheduleFired, scheduleFiredEntry{name, h})
	}
	if h, ok := e.(ExecutionStarted); ok {
		r.executionStarted = append(r.executionStarted, executionStartedEntry{name, h})
	}
	if h, ok := e.(ExecutionRetrying); ok {
		r.executionRetrying = append(r.executionRetrying, executionRetryingEntry{name, h})
	}
	if h, ok := e.(ExecutionCompleted); ok {
		r.executionCompleted = append(r.executionCompleted, executionCompletedEntry{name, h})
	}
	if h, ok := e.(ExecutionFailed); ok {
		r.executionFailed = append(r.executionFailed, executionFailedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Schedule event emitters
// ──────────────────────────────────────────────────

// EmitScheduleRegistered notifies all extensions that implement ScheduleRegistered.
func (r *Registry) EmitScheduleRegistered(ctx context.Context, def *schedule.Definition) {
	for _, e := range r.scheduleRegistered {
		if err := e.hook.OnScheduleRegistered(ctx, def); err != nil {
			r.logHookError("OnScheduleRegistered", e.name, err)
		}
	}
}

// EmitScheduleRemoved notifies all extensions that implement ScheduleRemoved.
func (r *Registry) EmitScheduleRemoved(ctx context.Context, scheduleID id.ScheduleID) {
	for _, e := range r.scheduleRemoved {
		if err := e.hook.OnScheduleRemoved(ctx, scheduleID); err != nil {
			r.logHookError("OnScheduleRemoved", e.name, err)
		}
	}
}

// EmitScheduleFired notifies all extensions that implement ScheduleFired.
func (r *Registry) EmitScheduleFired(ctx context.Context, def *schedule.Definition, executionID id.ExecutionID) {
	for _, e := range r.scheduleFired {
		if err := e.hook.OnScheduleFired(ctx, def, executionID); err != nil {
			r.logHookError("OnScheduleFired", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Execution event emitters
// ──────────────────────────────────────────────────

// EmitExecutionStarted notifies all extensions that implement ExecutionStarted.
func (r *Registry) EmitExecutionStarted(ctx context.Context, rec *execution.Record) {
	for _, e := range r.executionStarted {
		if err := e.hook.OnExecutionStarted(ctx, rec); err != nil {
			r.logHookError("OnExecutionStarted", e.name, err)
		}
	}
}

// EmitExecutionRetrying notifies all extensions that implement ExecutionRetrying.
func (r *Registry) EmitExecutionRetrying(ctx context.Context, rec *execution.Record, attempt int, delay time.Duration) {
	for _, e := range r.executionRetrying {
		if err := e.hook.OnExecutionRetrying(ctx, rec, attempt, delay); err != nil {
			r.logHookError("OnExecutionRetrying", e.name, err)
		}
	}
}

// EmitExecutionCompleted notifies all extensions that implement ExecutionCompleted.
func (r *Registry) EmitExecutionCompleted(ctx context.Context, rec *execution.Record, elapsed time.Duration) {
	for _, e := range r.executionCompleted {
		if err := e.hook.OnExecutionCompleted(ctx, rec, elapsed); err != nil {
			r.logHookError("OnExecutionCompleted", e.name, err)
		}
	}
}

// EmitExecutionFailed notifies all extensions that implement ExecutionFailed.
func (r *Registry) EmitExecutionFailed(ctx context.Context, rec *execution.Record, execErr error) {
	for _, e := range r.executionFailed {
		if err := e.hook.OnExecutionFailed(ctx, rec, execErr); err != nil {
			r.logHookError("OnExecutionFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the engine.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
