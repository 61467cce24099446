// Package progress provides an in-memory registry of long-running
// operation states, keyed by operation ID. A state is mutated only by
// the coordinator invocation that created it; reads may happen
// concurrently from any caller.
package progress

import (
	"sync"
	"time"

	"github.com/xraph/chrono/clock"
	"github.com/xraph/chrono/id"
)

// Stage is the lifecycle stage of a tracked operation.
type Stage string

const (
	// StageInitializing means the operation has been registered but has
	// not started doing work.
	StageInitializing Stage = "initializing"
	// StageProcessing means the operation is actively working.
	StageProcessing Stage = "processing"
	// StageCompleted means the operation finished successfully.
	StageCompleted Stage = "completed"
	// StageFailed means the operation terminated with an error.
	StageFailed Stage = "failed"
)

// State is a point-in-time view of one operation's progress.
type State struct {
	OperationID id.OperationID `json:"operation_id"`
	ScheduleID  id.ScheduleID  `json:"schedule_id,omitempty"`
	Stage       Stage          `json:"stage"`
	Progress    float64        `json:"progress"` // 0..100
	Message     string         `json:"message,omitempty"`
	LastUpdated time.Time      `json:"last_updated"`
}

// terminal reports whether the state can no longer be updated.
func (s *State) terminal() bool {
	return s.Stage == StageCompleted || s.Stage == StageFailed
}

// Tracker is a concurrent-safe registry of operation states. Terminal
// states are retained and remain queryable until explicitly cleared.
type Tracker struct {
	clock clock.Clock

	mu     sync.RWMutex
	states map[string]*State
}

// NewTracker creates an empty Tracker. A nil clock means the system clock.
func NewTracker(clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.System()
	}
	return &Tracker{
		clock:  clk,
		states: make(map[string]*State),
	}
}

// Begin registers a new operation at stage initializing with progress 0
// and returns its ID.
func (t *Tracker) Begin(scheduleID id.ScheduleID, message string) id.OperationID {
	opID := id.NewOperationID()

	t.mu.Lock()
	t.states[opID.String()] = &State{
		OperationID: opID,
		ScheduleID:  scheduleID,
		Stage:       StageInitializing,
		Progress:    0,
		Message:     message,
		LastUpdated: t.clock.Now().UTC(),
	}
	t.mu.Unlock()

	return opID
}

// Update overwrites the stage, progress, and message of an operation.
// Progress values outside [0,100] are clamped. Updates to unknown or
// terminal operations are ignored.
func (t *Tracker) Update(opID id.OperationID, stage Stage, progress float64, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[opID.String()]
	if !ok || s.terminal() {
		return
	}
	s.Stage = stage
	s.Progress = clamp(progress)
	s.Message = message
	s.LastUpdated = t.clock.Now().UTC()
}

// Complete transitions an operation to completed with progress forced
// to 100.
func (t *Tracker) Complete(opID id.OperationID, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[opID.String()]
	if !ok || s.terminal() {
		return
	}
	s.Stage = StageCompleted
	s.Progress = 100
	s.Message = message
	s.LastUpdated = t.clock.Now().UTC()
}

// Fail transitions an operation to failed. Progress is left unchanged.
func (t *Tracker) Fail(opID id.OperationID, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[opID.String()]
	if !ok || s.terminal() {
		return
	}
	s.Stage = StageFailed
	s.Message = message
	s.LastUpdated = t.clock.Now().UTC()
}

// Get returns a copy of the operation's state, or nil for unknown or
// cleared IDs.
func (t *Tracker) Get(opID id.OperationID) *State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.states[opID.String()]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// Clear removes an operation from the registry.
func (t *Tracker) Clear(opID id.OperationID) {
	t.mu.Lock()
	delete(t.states, opID.String())
	t.mu.Unlock()
}

// ClearTerminal removes every completed or failed operation and returns
// how many were removed.
func (t *Tracker) ClearTerminal() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, s := range t.states {
		if s.terminal() {
			delete(t.states, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked operations, terminal ones included.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.states)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
