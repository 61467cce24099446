// Package execution defines the execution record entity — the persisted
// outcome of one firing of a schedule, including all of its retries —
// and its persistence contract.
package execution

import (
	"time"

	"github.com/xraph/chrono"
	"github.com/xraph/chrono/id"
)

// Status is the lifecycle status of one execution.
type Status string

const (
	// StatusRunning means the attempt chain is in flight.
	StatusRunning Status = "running"
	// StatusSucceeded means the job returned without error, possibly
	// after retries.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the job failed fatally or exhausted its retries.
	StatusFailed Status = "failed"
)

// Trigger records what caused an execution.
type Trigger string

const (
	// TriggerTimer means the schedule's timer fired.
	TriggerTimer Trigger = "timer"
	// TriggerManual means a caller invoked run-now.
	TriggerManual Trigger = "manual"
)

// Record is one firing of a schedule. It is created in running state
// when the schedule fires and is immutable once terminal. Many records
// exist per schedule, ordered by start time.
type Record struct {
	chrono.Entity

	ID          id.ExecutionID `json:"id"`
	ScheduleID  id.ScheduleID  `json:"schedule_id"`
	OperationID id.OperationID `json:"operation_id,omitempty"`
	Status      Status         `json:"status"`
	Trigger     Trigger        `json:"trigger"`
	Attempts    int            `json:"attempts"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
}

// Terminal reports whether the record has reached a final status.
func (r *Record) Terminal() bool {
	return r.Status == StatusSucceeded || r.Status == StatusFailed
}
