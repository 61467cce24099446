package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/chrono"
	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/id"
)

// AppendExecution persists a new execution record.
func (s *Store) AppendExecution(ctx context.Context, rec *execution.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chrono_executions (
			id, schedule_id, operation_id, status, trigger, attempts,
			started_at, completed_at, last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID.String(), rec.ScheduleID.String(), nilIfNilID(rec.OperationID),
		string(rec.Status), string(rec.Trigger), rec.Attempts,
		rec.StartedAt, rec.CompletedAt, nilIfEmpty(rec.LastError),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("chrono/postgres: append execution: %w", err)
	}
	return nil
}

// UpdateExecution persists the terminal transition of a record.
func (s *Store) UpdateExecution(ctx context.Context, rec *execution.Record) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE chrono_executions SET
			status = $2, attempts = $3, completed_at = $4, last_error = $5,
			updated_at = NOW()
		WHERE id = $1`,
		rec.ID.String(), string(rec.Status), rec.Attempts, rec.CompletedAt,
		nilIfEmpty(rec.LastError),
	)
	if err != nil {
		return fmt.Errorf("chrono/postgres: update execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chrono.ErrExecutionNotFound
	}
	return nil
}

// GetExecution retrieves an execution record by ID.
func (s *Store) GetExecution(ctx context.Context, executionID id.ExecutionID) (*execution.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			id, schedule_id, operation_id, status, trigger, attempts,
			started_at, completed_at, last_error, created_at, updated_at
		FROM chrono_executions
		WHERE id = $1`,
		executionID.String(),
	)

	rec, err := scanExecution(row)
	if err != nil {
		if isNoRows(err) {
			return nil, chrono.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("chrono/postgres: get execution: %w", err)
	}
	return rec, nil
}

// ListExecutions returns records for a schedule, most recent first.
// A limit of zero means no limit.
func (s *Store) ListExecutions(ctx context.Context, scheduleID id.ScheduleID, limit int) ([]*execution.Record, error) {
	query := `
		SELECT
			id, schedule_id, operation_id, status, trigger, attempts,
			started_at, completed_at, last_error, created_at, updated_at
		FROM chrono_executions
		WHERE schedule_id = $1
		ORDER BY started_at DESC`
	args := []any{scheduleID.String()}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("chrono/postgres: list executions: %w", err)
	}
	defer rows.Close()

	var recs []*execution.Record
	for rows.Next() {
		rec, scanErr := scanExecution(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("chrono/postgres: scan execution row: %w", scanErr)
		}
		recs = append(recs, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("chrono/postgres: iterate execution rows: %w", err)
	}
	return recs, nil
}

// scanExecution scans a single execution row.
func scanExecution(row pgx.Row) (*execution.Record, error) {
	var (
		rec       execution.Record
		idStr     string
		schedStr  string
		opStr     *string
		status    string
		trigger   string
		lastError *string
	)
	err := row.Scan(
		&idStr, &schedStr, &opStr, &status, &trigger, &rec.Attempts,
		&rec.StartedAt, &rec.CompletedAt, &lastError,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.ParseExecutionID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("chrono/postgres: parse execution id %q: %w", idStr, parseErr)
	}
	rec.ID = parsedID

	schedID, parseErr := id.ParseScheduleID(schedStr)
	if parseErr != nil {
		return nil, fmt.Errorf("chrono/postgres: parse schedule id %q: %w", schedStr, parseErr)
	}
	rec.ScheduleID = schedID

	if opStr != nil && *opStr != "" {
		opID, opErr := id.ParseOperationID(*opStr)
		if opErr != nil {
			return nil, fmt.Errorf("chrono/postgres: parse operation id %q: %w", *opStr, opErr)
		}
		rec.OperationID = opID
	}

	rec.Status = execution.Status(status)
	rec.Trigger = execution.Trigger(trigger)
	if lastError != nil {
		rec.LastError = *lastError
	}

	return &rec, nil
}

// nilIfEmpty maps "" to SQL NULL.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nilIfNilID maps the zero ID to SQL NULL.
func nilIfNilID(v id.ID) *string {
	if v.IsNil() {
		return nil
	}
	s := v.String()
	return &s
}
