// Package ext defines the extension system for chrono. Extensions are
// notified of lifecycle events (schedule registered, execution started,
// retried, completed, failed, etc.) and can react to them — logging,
// metrics, alerting.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/schedule"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Schedule lifecycle hooks
// ──────────────────────────────────────────────────

// ScheduleRegistered is called after a schedule is registered and armed.
type ScheduleRegistered interface {
	OnScheduleRegistered(ctx context.Context, def *schedule.Definition) error
}

// ScheduleRemoved is called after a schedule is unregistered.
type ScheduleRemoved interface {
	OnScheduleRemoved(ctx context.Context, scheduleID id.ScheduleID) error
}

// ScheduleFired is called when a schedule's timer fires and an execution
// is handed to the coordinator.
type ScheduleFired interface {
	OnScheduleFired(ctx context.Context, def *schedule.Definition, executionID id.ExecutionID) error
}

// ──────────────────────────────────────────────────
// Execution lifecycle hooks
// ──────────────────────────────────────────────────

// ExecutionStarted is called when the coordinator begins an attempt chain.
type ExecutionStarted interface {
	OnExecutionStarted(ctx context.Context, rec *execution.Record) error
}

// ExecutionRetrying is called when an attempt fails transiently and a
// retry is scheduled.
type ExecutionRetrying interface {
	OnExecutionRetrying(ctx context.Context, rec *execution.Record, attempt int, delay time.Duration) error
}

// ExecutionCompleted is called after an execution finishes successfully.
type ExecutionCompleted interface {
	OnExecutionCompleted(ctx context.Context, rec *execution.Record, elapsed time.Duration) error
}

// ExecutionFailed is called when an execution fails terminally (fatal
// error or retries exhausted).
type ExecutionFailed interface {
	OnExecutionFailed(ctx context.Context, rec *execution.Record, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
