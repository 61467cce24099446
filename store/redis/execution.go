package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/chrono"
	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/id"
)

// ── JSON model for KV storage ──

type executionEntity struct {
	ID          string     `json:"id"`
	ScheduleID  string     `json:"schedule_id"`
	OperationID string     `json:"operation_id,omitempty"`
	Status      string     `json:"status"`
	Trigger     string     `json:"trigger"`
	Attempts    int        `json:"attempts"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toExecutionEntity(rec *execution.Record) *executionEntity {
	e := &executionEntity{
		ID:          rec.ID.String(),
		ScheduleID:  rec.ScheduleID.String(),
		Status:      string(rec.Status),
		Trigger:     string(rec.Trigger),
		Attempts:    rec.Attempts,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
		LastError:   rec.LastError,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if !rec.OperationID.IsNil() {
		e.OperationID = rec.OperationID.String()
	}
	return e
}

func fromExecutionEntity(e *executionEntity) (*execution.Record, error) {
	execID, err := id.ParseExecutionID(e.ID)
	if err != nil {
		return nil, fmt.Errorf("chrono/redis: parse execution id: %w", err)
	}
	schedID, err := id.ParseScheduleID(e.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("chrono/redis: parse schedule id: %w", err)
	}

	rec := &execution.Record{
		Entity: chrono.Entity{
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		},
		ID:          execID,
		ScheduleID:  schedID,
		Status:      execution.Status(e.Status),
		Trigger:     execution.Trigger(e.Trigger),
		Attempts:    e.Attempts,
		StartedAt:   e.StartedAt,
		CompletedAt: e.CompletedAt,
		LastError:   e.LastError,
	}
	if e.OperationID != "" {
		opID, opErr := id.ParseOperationID(e.OperationID)
		if opErr != nil {
			return nil, fmt.Errorf("chrono/redis: parse operation id: %w", opErr)
		}
		rec.OperationID = opID
	}
	return rec, nil
}

// AppendExecution persists a new execution record and indexes it in the
// schedule's history Sorted Set, scored by start time.
func (s *Store) AppendExecution(ctx context.Context, rec *execution.Record) error {
	execID := rec.ID.String()

	if err := s.setEntity(ctx, executionKey(execID), toExecutionEntity(rec)); err != nil {
		return fmt.Errorf("chrono/redis: append execution set: %w", err)
	}

	err := s.rdb.ZAdd(ctx, historyKey(rec.ScheduleID.String()), redis.Z{
		Score:  float64(rec.StartedAt.UnixNano()),
		Member: execID,
	}).Err()
	if err != nil {
		return fmt.Errorf("chrono/redis: append execution index: %w", err)
	}
	return nil
}

// UpdateExecution persists the terminal transition of a record.
func (s *Store) UpdateExecution(ctx context.Context, rec *execution.Record) error {
	key := executionKey(rec.ID.String())
	exists, err := s.entityExists(ctx, key)
	if err != nil {
		return fmt.Errorf("chrono/redis: update execution exists: %w", err)
	}
	if !exists {
		return chrono.ErrExecutionNotFound
	}

	e := toExecutionEntity(rec)
	e.UpdatedAt = now()
	return s.setEntity(ctx, key, e)
}

// GetExecution retrieves an execution record by ID.
func (s *Store) GetExecution(ctx context.Context, executionID id.ExecutionID) (*execution.Record, error) {
	var e executionEntity
	if err := s.getEntity(ctx, executionKey(executionID.String()), &e); err != nil {
		if isNotFound(err) {
			return nil, chrono.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("chrono/redis: get execution: %w", err)
	}
	return fromExecutionEntity(&e)
}

// ListExecutions returns records for a schedule, most recent first. A
// limit of zero means no limit.
func (s *Store) ListExecutions(ctx context.Context, scheduleID id.ScheduleID, limit int) ([]*execution.Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := s.rdb.ZRevRange(ctx, historyKey(scheduleID.String()), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("chrono/redis: list executions: %w", err)
	}

	recs := make([]*execution.Record, 0, len(ids))
	for _, execID := range ids {
		var e executionEntity
		if getErr := s.getEntity(ctx, executionKey(execID), &e); getErr != nil {
			continue
		}
		rec, convErr := fromExecutionEntity(&e)
		if convErr != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
