package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/chrono"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/schedule"
)

// CreateSchedule persists a new schedule definition.
func (s *Store) CreateSchedule(ctx context.Context, def *schedule.Definition) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chrono_schedules (
			id, name, expression, payload, enabled,
			last_run_at, next_run_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		def.ID.String(), def.Name, def.Expression, def.Payload, def.Enabled,
		def.LastRunAt, def.NextRunAt, def.CreatedAt, def.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return chrono.ErrDuplicateSchedule
		}
		return fmt.Errorf("chrono/postgres: create schedule: %w", err)
	}
	return nil
}

// GetSchedule retrieves a schedule by ID.
func (s *Store) GetSchedule(ctx context.Context, scheduleID id.ScheduleID) (*schedule.Definition, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			id, name, expression, payload, enabled,
			last_run_at, next_run_at, created_at, updated_at
		FROM chrono_schedules
		WHERE id = $1`,
		scheduleID.String(),
	)

	def, err := scanSchedule(row)
	if err != nil {
		if isNoRows(err) {
			return nil, chrono.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("chrono/postgres: get schedule: %w", err)
	}
	return def, nil
}

// ListSchedules returns all schedules ordered by creation time.
func (s *Store) ListSchedules(ctx context.Context) ([]*schedule.Definition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			id, name, expression, payload, enabled,
			last_run_at, next_run_at, created_at, updated_at
		FROM chrono_schedules
		ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("chrono/postgres: list schedules: %w", err)
	}
	defer rows.Close()

	var defs []*schedule.Definition
	for rows.Next() {
		def, scanErr := scanSchedule(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("chrono/postgres: scan schedule row: %w", scanErr)
		}
		defs = append(defs, def)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("chrono/postgres: iterate schedule rows: %w", err)
	}
	return defs, nil
}

// UpdateSchedule persists changes to an existing schedule.
func (s *Store) UpdateSchedule(ctx context.Context, def *schedule.Definition) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE chrono_schedules SET
			name = $2, expression = $3, payload = $4, enabled = $5,
			last_run_at = $6, next_run_at = $7, updated_at = NOW()
		WHERE id = $1`,
		def.ID.String(), def.Name, def.Expression, def.Payload, def.Enabled,
		def.LastRunAt, def.NextRunAt,
	)
	if err != nil {
		return fmt.Errorf("chrono/postgres: update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chrono.ErrScheduleNotFound
	}
	return nil
}

// DeleteSchedule removes a schedule by ID. Its execution history is kept.
func (s *Store) DeleteSchedule(ctx context.Context, scheduleID id.ScheduleID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chrono_schedules WHERE id = $1`, scheduleID.String())
	if err != nil {
		return fmt.Errorf("chrono/postgres: delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chrono.ErrScheduleNotFound
	}
	return nil
}

// scanSchedule scans a single schedule row.
func scanSchedule(row pgx.Row) (*schedule.Definition, error) {
	var (
		def   schedule.Definition
		idStr string
	)
	err := row.Scan(
		&idStr, &def.Name, &def.Expression, &def.Payload, &def.Enabled,
		&def.LastRunAt, &def.NextRunAt, &def.CreatedAt, &def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.ParseScheduleID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("chrono/postgres: parse schedule id %q: %w", idStr, parseErr)
	}
	def.ID = parsedID

	return &def, nil
}
