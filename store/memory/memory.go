// Package memory provides the in-memory store backend. It is the
// default for tests and embedded use: no external dependencies, full
// interface coverage, data lost on process exit.
package memory

import (
	"context"
	"sync"

	"github.com/xraph/chrono"
	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/schedule"
	"github.com/xraph/chrono/store"
)

var _ store.Store = (*Store)(nil)

// Store is a concurrent-safe in-memory implementation of store.Store.
// All reads and writes operate on copies so callers can never mutate
// stored state through a returned pointer.
type Store struct {
	mu     sync.RWMutex
	closed bool

	schedules     map[string]*schedule.Definition
	scheduleOrder []string

	executions map[string]*execution.Record
	// history holds execution IDs per schedule in append order; listing
	// walks it backwards for most-recent-first.
	history map[string][]string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		schedules:  make(map[string]*schedule.Definition),
		executions: make(map[string]*execution.Record),
		history:    make(map[string][]string),
	}
}

// Migrate is a no-op for the in-memory backend.
func (s *Store) Migrate(ctx context.Context) error { return nil }

// Ping reports whether the store is open.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return chrono.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Subsequent operations fail with
// chrono.ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// ──────────────────────────────────────────────────
// schedule.Store
// ──────────────────────────────────────────────────

func (s *Store) CreateSchedule(_ context.Context, def *schedule.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return chrono.ErrStoreClosed
	}

	key := def.ID.String()
	if _, ok := s.schedules[key]; ok {
		return chrono.ErrDuplicateSchedule
	}
	s.schedules[key] = cloneDefinition(def)
	s.scheduleOrder = append(s.scheduleOrder, key)
	return nil
}

func (s *Store) GetSchedule(_ context.Context, scheduleID id.ScheduleID) (*schedule.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, chrono.ErrStoreClosed
	}

	def, ok := s.schedules[scheduleID.String()]
	if !ok {
		return nil, chrono.ErrScheduleNotFound
	}
	return cloneDefinition(def), nil
}

func (s *Store) ListSchedules(_ context.Context) ([]*schedule.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, chrono.ErrStoreClosed
	}

	out := make([]*schedule.Definition, 0, len(s.scheduleOrder))
	for _, key := range s.scheduleOrder {
		out = append(out, cloneDefinition(s.schedules[key]))
	}
	return out, nil
}

func (s *Store) UpdateSchedule(_ context.Context, def *schedule.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return chrono.ErrStoreClosed
	}

	key := def.ID.String()
	if _, ok := s.schedules[key]; !ok {
		return chrono.ErrScheduleNotFound
	}
	s.schedules[key] = cloneDefinition(def)
	return nil
}

func (s *Store) DeleteSchedule(_ context.Context, scheduleID id.ScheduleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return chrono.ErrStoreClosed
	}

	key := scheduleID.String()
	if _, ok := s.schedules[key]; !ok {
		return chrono.ErrScheduleNotFound
	}
	delete(s.schedules, key)
	for i, k := range s.scheduleOrder {
		if k == key {
			s.scheduleOrder = append(s.scheduleOrder[:i], s.scheduleOrder[i+1:]...)
			break
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// execution.Store
// ──────────────────────────────────────────────────

func (s *Store) AppendExecution(_ context.Context, rec *execution.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return chrono.ErrStoreClosed
	}

	key := rec.ID.String()
	s.executions[key] = cloneRecord(rec)
	schedKey := rec.ScheduleID.String()
	s.history[schedKey] = append(s.history[schedKey], key)
	return nil
}

func (s *Store) UpdateExecution(_ context.Context, rec *execution.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return chrono.ErrStoreClosed
	}

	key := rec.ID.String()
	if _, ok := s.executions[key]; !ok {
		return chrono.ErrExecutionNotFound
	}
	s.executions[key] = cloneRecord(rec)
	return nil
}

func (s *Store) GetExecution(_ context.Context, executionID id.ExecutionID) (*execution.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, chrono.ErrStoreClosed
	}

	rec, ok := s.executions[executionID.String()]
	if !ok {
		return nil, chrono.ErrExecutionNotFound
	}
	return cloneRecord(rec), nil
}

func (s *Store) ListExecutions(_ context.Context, scheduleID id.ScheduleID, limit int) ([]*execution.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, chrono.ErrStoreClosed
	}

	keys := s.history[scheduleID.String()]
	n := len(keys)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]*execution.Record, 0, n)
	for i := len(keys) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, cloneRecord(s.executions[keys[i]]))
	}
	return out, nil
}

func cloneDefinition(def *schedule.Definition) *schedule.Definition {
	cp := *def
	if def.Payload != nil {
		cp.Payload = append([]byte(nil), def.Payload...)
	}
	if def.LastRunAt != nil {
		t := *def.LastRunAt
		cp.LastRunAt = &t
	}
	if def.NextRunAt != nil {
		t := *def.NextRunAt
		cp.NextRunAt = &t
	}
	return &cp
}

func cloneRecord(rec *execution.Record) *execution.Record {
	cp := *rec
	if rec.CompletedAt != nil {
		t := *rec.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
