// Package health derives an engine health snapshot from live execution
// counters and per-schedule failure streaks. The Monitor doubles as an
// extension: registered with the engine's registry, it observes
// execution outcomes to maintain the streaks itself.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/chrono/clock"
	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/ext"
	"github.com/xraph/chrono/id"
)

// Status is the overall engine condition.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Snapshot is a point-in-time health report.
type Snapshot struct {
	Status            Status    `json:"status"`
	ActiveSchedules   int       `json:"active_schedules"`
	RunningExecutions int       `json:"running_executions"`
	QueueLength       int       `json:"queue_length"`
	Issues            []string  `json:"issues,omitempty"`
	CheckedAt         time.Time `json:"checked_at"`
}

// Counts exposes the live execution counters. Implemented by the
// coordinator.
type Counts interface {
	RunningExecutions() int
	QueueLength() int
	QueuedSince() (time.Time, bool)
}

// Schedules exposes the armed-timer count. Implemented by the
// dispatcher.
type Schedules interface {
	ActiveSchedules() int
}

// Compile-time hook checks.
var (
	_ ext.Extension          = (*Monitor)(nil)
	_ ext.ExecutionCompleted = (*Monitor)(nil)
	_ ext.ExecutionFailed    = (*Monitor)(nil)
	_ ext.ScheduleRemoved    = (*Monitor)(nil)
)

// Monitor evaluates engine health. Safe for concurrent use.
type Monitor struct {
	counts    Counts
	schedules Schedules
	clock     clock.Clock

	// streakLimit is the consecutive-failure count at which a schedule
	// makes the engine critical.
	streakLimit int
	// queueWarnAfter is how long the queue may stay non-empty before the
	// engine degrades to warning.
	queueWarnAfter time.Duration

	mu      sync.Mutex
	streaks map[string]int
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithStreakLimit overrides the critical failure-streak threshold.
func WithStreakLimit(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.streakLimit = n
		}
	}
}

// WithQueueWarnAfter overrides the queue-age warning threshold.
func WithQueueWarnAfter(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.queueWarnAfter = d
		}
	}
}

// WithClock sets the clock used for snapshot timestamps and queue-age
// math.
func WithClock(clk clock.Clock) Option {
	return func(m *Monitor) { m.clock = clk }
}

// NewMonitor creates a Monitor over the coordinator's counters and the
// dispatcher's armed-schedule count. Defaults: streak limit 3, queue
// warning after 30s.
func NewMonitor(counts Counts, schedules Schedules, opts ...Option) *Monitor {
	m := &Monitor{
		counts:         counts,
		schedules:      schedules,
		clock:          clock.System(),
		streakLimit:    3,
		queueWarnAfter: 30 * time.Second,
		streaks:        make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements ext.Extension.
func (m *Monitor) Name() string { return "health-monitor" }

// OnExecutionCompleted resets the schedule's failure streak.
func (m *Monitor) OnExecutionCompleted(_ context.Context, rec *execution.Record, _ time.Duration) error {
	m.mu.Lock()
	delete(m.streaks, rec.ScheduleID.String())
	m.mu.Unlock()
	return nil
}

// OnExecutionFailed extends the schedule's failure streak.
func (m *Monitor) OnExecutionFailed(_ context.Context, rec *execution.Record, _ error) error {
	m.mu.Lock()
	m.streaks[rec.ScheduleID.String()]++
	m.mu.Unlock()
	return nil
}

// OnScheduleRemoved drops the streak of an unregistered schedule so a
// deleted schedule cannot keep the engine critical.
func (m *Monitor) OnScheduleRemoved(_ context.Context, scheduleID id.ScheduleID) error {
	m.mu.Lock()
	delete(m.streaks, scheduleID.String())
	m.mu.Unlock()
	return nil
}

// FailureStreak returns the current consecutive-failure count for a
// schedule.
func (m *Monitor) FailureStreak(scheduleID id.ScheduleID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streaks[scheduleID.String()]
}

// Check evaluates the current snapshot. Critical outranks warning: any
// schedule at or past the failure-streak limit makes the engine
// critical regardless of queue age.
func (m *Monitor) Check() Snapshot {
	now := m.clock.Now().UTC()
	snap := Snapshot{
		Status:            StatusHealthy,
		RunningExecutions: m.counts.RunningExecutions(),
		QueueLength:       m.counts.QueueLength(),
		CheckedAt:         now,
	}
	if m.schedules != nil {
		snap.ActiveSchedules = m.schedules.ActiveSchedules()
	}

	if since, ok := m.counts.QueuedSince(); ok {
		if age := now.Sub(since); age > m.queueWarnAfter {
			snap.Status = StatusWarning
			snap.Issues = append(snap.Issues,
				fmt.Sprintf("%d executions queued for %s", snap.QueueLength, age.Truncate(time.Second)))
		}
	}

	m.mu.Lock()
	for key, streak := range m.streaks {
		if streak >= m.streakLimit {
			snap.Status = StatusCritical
			snap.Issues = append(snap.Issues,
				fmt.Sprintf("schedule %s has failed %d consecutive executions", key, streak))
		}
	}
	m.mu.Unlock()

	return snap
}
