package execution

import (
	"context"

	"github.com/xraph/chrono/id"
)

// Store defines the persistence contract for execution records.
type Store interface {
	// AppendExecution persists a new record, normally in running state.
	AppendExecution(ctx context.Context, rec *Record) error

	// UpdateExecution persists the terminal transition of a record.
	// Returns chrono.ErrExecutionNotFound if unknown.
	UpdateExecution(ctx context.Context, rec *Record) error

	// GetExecution retrieves a record by ID. Returns
	// chrono.ErrExecutionNotFound if unknown.
	GetExecution(ctx context.Context, executionID id.ExecutionID) (*Record, error)

	// ListExecutions returns records for a schedule ordered most recent
	// first. A limit of zero means no limit.
	ListExecutions(ctx context.Context, scheduleID id.ScheduleID, limit int) ([]*Record, error)
}
