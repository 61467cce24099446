package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/chrono"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/schedule"
)

// ── JSON model for KV storage ──

type scheduleEntity struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Expression string     `json:"expression"`
	Payload    []byte     `json:"payload,omitempty"`
	Enabled    bool       `json:"enabled"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toScheduleEntity(def *schedule.Definition) *scheduleEntity {
	return &scheduleEntity{
		ID:         def.ID.String(),
		Name:       def.Name,
		Expression: def.Expression,
		Payload:    def.Payload,
		Enabled:    def.Enabled,
		LastRunAt:  def.LastRunAt,
		NextRunAt:  def.NextRunAt,
		CreatedAt:  def.CreatedAt,
		UpdatedAt:  def.UpdatedAt,
	}
}

func fromScheduleEntity(e *scheduleEntity) (*schedule.Definition, error) {
	schedID, err := id.ParseScheduleID(e.ID)
	if err != nil {
		return nil, fmt.Errorf("chrono/redis: parse schedule id: %w", err)
	}

	return &schedule.Definition{
		Entity: chrono.Entity{
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		},
		ID:         schedID,
		Name:       e.Name,
		Expression: e.Expression,
		Payload:    e.Payload,
		Enabled:    e.Enabled,
		LastRunAt:  e.LastRunAt,
		NextRunAt:  e.NextRunAt,
	}, nil
}

// CreateSchedule persists a new schedule definition.
func (s *Store) CreateSchedule(ctx context.Context, def *schedule.Definition) error {
	schedID := def.ID.String()
	key := scheduleKey(schedID)

	exists, err := s.entityExists(ctx, key)
	if err != nil {
		return fmt.Errorf("chrono/redis: create schedule check: %w", err)
	}
	if exists {
		return chrono.ErrDuplicateSchedule
	}

	if setErr := s.setEntity(ctx, key, toScheduleEntity(def)); setErr != nil {
		return fmt.Errorf("chrono/redis: create schedule set: %w", setErr)
	}

	err = s.rdb.ZAdd(ctx, scheduleIDsKey, redis.Z{
		Score:  float64(def.CreatedAt.UnixNano()),
		Member: schedID,
	}).Err()
	if err != nil {
		return fmt.Errorf("chrono/redis: create schedule index: %w", err)
	}
	return nil
}

// GetSchedule retrieves a schedule by ID.
func (s *Store) GetSchedule(ctx context.Context, scheduleID id.ScheduleID) (*schedule.Definition, error) {
	var e scheduleEntity
	if err := s.getEntity(ctx, scheduleKey(scheduleID.String()), &e); err != nil {
		if isNotFound(err) {
			return nil, chrono.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("chrono/redis: get schedule: %w", err)
	}
	return fromScheduleEntity(&e)
}

// ListSchedules returns all schedules ordered by creation time.
func (s *Store) ListSchedules(ctx context.Context) ([]*schedule.Definition, error) {
	ids, err := s.rdb.ZRange(ctx, scheduleIDsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("chrono/redis: list schedules: %w", err)
	}

	defs := make([]*schedule.Definition, 0, len(ids))
	for _, schedID := range ids {
		var e scheduleEntity
		if getErr := s.getEntity(ctx, scheduleKey(schedID), &e); getErr != nil {
			continue
		}
		def, convErr := fromScheduleEntity(&e)
		if convErr != nil {
			continue
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// UpdateSchedule persists changes to an existing schedule.
func (s *Store) UpdateSchedule(ctx context.Context, def *schedule.Definition) error {
	key := scheduleKey(def.ID.String())
	exists, err := s.entityExists(ctx, key)
	if err != nil {
		return fmt.Errorf("chrono/redis: update schedule exists: %w", err)
	}
	if !exists {
		return chrono.ErrScheduleNotFound
	}

	e := toScheduleEntity(def)
	e.UpdatedAt = now()
	return s.setEntity(ctx, key, e)
}

// DeleteSchedule removes a schedule by ID. Its execution history index is
// dropped with it.
func (s *Store) DeleteSchedule(ctx context.Context, scheduleID id.ScheduleID) error {
	schedID := scheduleID.String()
	key := scheduleKey(schedID)

	exists, err := s.entityExists(ctx, key)
	if err != nil {
		return fmt.Errorf("chrono/redis: delete schedule exists: %w", err)
	}
	if !exists {
		return chrono.ErrScheduleNotFound
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, scheduleIDsKey, schedID)
	pipe.Del(ctx, historyKey(schedID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("chrono/redis: delete schedule: %w", err)
	}
	return nil
}
