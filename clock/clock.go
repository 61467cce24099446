// Package clock abstracts the system clock so timer arming, retry delays,
// and next-run computation are testable without real sleeps. Production
// code uses System; tests use Manual and advance time explicitly.
package clock

import (
	"sync"
	"time"
)

// Timer is a cancellable single-shot timer. Stop is synchronous: after it
// returns, C will never deliver.
type Timer interface {
	// C returns the channel on which the firing time is delivered.
	C() <-chan time.Time
	// Stop cancels the timer. It reports whether the timer was stopped
	// before firing.
	Stop() bool
}

// Clock supplies the current time and creates timers.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// NewTimer returns a Timer that fires once after d.
	NewTimer(d time.Duration) Timer
	// Sleep blocks for d or until done is closed, whichever comes first.
	Sleep(d time.Duration, done <-chan struct{})
}

// ──────────────────────────────────────────────────
// System clock
// ──────────────────────────────────────────────────

type systemClock struct{}

// System returns the real wall clock.
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTimer(d time.Duration) Timer {
	return &systemTimer{t: time.NewTimer(d)}
}

func (systemClock) Sleep(d time.Duration, done <-chan struct{}) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-done:
	}
}

type systemTimer struct {
	t *time.Timer
}

func (s *systemTimer) C() <-chan time.Time { return s.t.C }
func (s *systemTimer) Stop() bool          { return s.t.Stop() }

// ──────────────────────────────────────────────────
// Manual clock (tests)
// ──────────────────────────────────────────────────

// Manual is a deterministic clock driven by Advance. Timers fire
// synchronously inside Advance when their deadline is reached.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

// NewManual creates a Manual clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the manual clock's current instant.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// NewTimer returns a timer that fires when Advance moves the clock past
// its deadline.
func (m *Manual) NewTimer(d time.Duration) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTimer{
		clock:    m,
		deadline: m.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	if d <= 0 {
		t.fired = true
		t.ch <- m.now
	} else {
		m.timers = append(m.timers, t)
	}
	return t
}

// Sleep blocks until Advance moves the clock past now+d or done closes.
func (m *Manual) Sleep(d time.Duration, done <-chan struct{}) {
	t := m.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C():
	case <-done:
	}
}

// Advance moves the clock forward and fires every due timer.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now

	remaining := m.timers[:0]
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.deadline.After(now) {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	m.timers = remaining
	m.mu.Unlock()

	for _, t := range due {
		t.fire(now)
	}
}

// Set jumps the clock to the given instant, firing due timers.
func (m *Manual) Set(at time.Time) {
	m.mu.Lock()
	d := at.Sub(m.now)
	m.mu.Unlock()
	if d > 0 {
		m.Advance(d)
	}
}

type manualTimer struct {
	clock    *Manual
	deadline time.Time
	ch       chan time.Time

	mu      sync.Mutex
	fired   bool
	stopped bool
}

func (t *manualTimer) C() <-chan time.Time { return t.ch }

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true

	t.clock.mu.Lock()
	for i, other := range t.clock.timers {
		if other == t {
			t.clock.timers = append(t.clock.timers[:i], t.clock.timers[i+1:]...)
			break
		}
	}
	t.clock.mu.Unlock()
	return true
}

func (t *manualTimer) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped {
		return
	}
	t.fired = true
	t.ch <- now
}
