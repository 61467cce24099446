package chrono

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("chrono: no store configured")
	ErrStoreClosed = errors.New("chrono: store closed")

	// Validation errors. Surfaced synchronously, never retried.
	ErrInvalidExpression = errors.New("chrono: invalid cron expression")
	ErrInvalidPatch      = errors.New("chrono: invalid schedule patch")

	// Not found errors.
	ErrScheduleNotFound  = errors.New("chrono: schedule not found")
	ErrExecutionNotFound = errors.New("chrono: execution not found")
	ErrOperationNotFound = errors.New("chrono: operation not found")

	// Conflict errors.
	ErrDuplicateSchedule = errors.New("chrono: duplicate schedule")

	// Lifecycle errors.
	ErrNotBuilt       = errors.New("chrono: scheduler not built, call engine.Build first")
	ErrNotRunning     = errors.New("chrono: scheduler not running")
	ErrAlreadyRunning = errors.New("chrono: scheduler already running")
)
