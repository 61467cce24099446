package schedule

import (
	"context"

	"github.com/xraph/chrono/id"
)

// Store defines the persistence contract for schedules. The engine is
// correct with any implementation, including a purely in-memory one.
type Store interface {
	// CreateSchedule persists a new schedule. Returns
	// chrono.ErrDuplicateSchedule if the ID already exists.
	CreateSchedule(ctx context.Context, def *Definition) error

	// GetSchedule retrieves a schedule by ID. Returns
	// chrono.ErrScheduleNotFound if unknown.
	GetSchedule(ctx context.Context, scheduleID id.ScheduleID) (*Definition, error)

	// ListSchedules returns all schedules ordered by creation time.
	ListSchedules(ctx context.Context) ([]*Definition, error)

	// UpdateSchedule persists changes to an existing schedule. Returns
	// chrono.ErrScheduleNotFound if unknown.
	UpdateSchedule(ctx context.Context, def *Definition) error

	// DeleteSchedule removes a schedule by ID. Returns
	// chrono.ErrScheduleNotFound if unknown.
	DeleteSchedule(ctx context.Context, scheduleID id.ScheduleID) error
}
