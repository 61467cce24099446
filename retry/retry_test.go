package retry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/chrono/clock"
	"github.com/xraph/chrono/retry"
)

// instantClock never sleeps, so retry chains finish immediately.
type instantClock struct{}

func (instantClock) Now() time.Time { return time.Unix(0, 0) }
func (instantClock) NewTimer(d time.Duration) clock.Timer {
	return clock.System().NewTimer(0)
}
func (instantClock) Sleep(_ time.Duration, _ <-chan struct{}) {}

func quickPolicy(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Factor:      2,
	}
}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	e := retry.NewExecutor(instantClock{}, nil)

	calls := 0
	err := e.Run(context.Background(), func(context.Context) error {
		calls++
		return nil
	}, quickPolicy(3), nil)

	if err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("operation invoked %d times, want 1", calls)
	}
}

func TestRun_TransientErrorRetriedToBound(t *testing.T) {
	e := retry.NewExecutor(instantClock{}, nil)

	calls := 0
	transient := errors.New("connection refused")
	err := e.Run(context.Background(), func(context.Context) error {
		calls++
		return transient
	}, quickPolicy(3), nil)

	if calls != 3 {
		t.Errorf("operation invoked %d times, want exactly 3", calls)
	}
	if err == nil || err.Error() != "connection refused" {
		t.Errorf("final error = %v, want the original error message", err)
	}
}

func TestRun_SucceedsAfterTransientFailures(t *testing.T) {
	e := retry.NewExecutor(instantClock{}, nil)

	calls := 0
	err := e.Run(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("service unavailable")
		}
		return nil
	}, quickPolicy(5), nil)

	if err != nil {
		t.Fatalf("Run returned %v, want nil after eventual success", err)
	}
	if calls != 3 {
		t.Errorf("operation invoked %d times, want 3", calls)
	}
}

func TestRun_FatalErrorShortCircuits(t *testing.T) {
	e := retry.NewExecutor(instantClock{}, nil)

	calls := 0
	err := e.Run(context.Background(), func(context.Context) error {
		calls++
		return errors.New("Permission denied")
	}, quickPolicy(3), nil)

	if calls != 1 {
		t.Errorf("operation invoked %d times, want exactly 1 for a fatal error", calls)
	}
	if err == nil || err.Error() != "Permission denied" {
		t.Errorf("error = %v, want the fatal error", err)
	}
}

func TestRun_OnRetryObservesDelays(t *testing.T) {
	e := retry.NewExecutor(instantClock{}, nil)

	var mu sync.Mutex
	type call struct {
		attempt int
		delay   time.Duration
	}
	var calls []call

	p := retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   1000 * time.Millisecond,
		MaxDelay:    30000 * time.Millisecond,
		Factor:      2,
		Jitter:      false,
	}

	_ = e.Run(context.Background(), func(context.Context) error {
		return errors.New("timeout")
	}, p, func(attempt int, delay time.Duration) {
		mu.Lock()
		calls = append(calls, call{attempt, delay})
		mu.Unlock()
	})

	if len(calls) != 2 {
		t.Fatalf("onRetry fired %d times, want 2 (no delay after final attempt)", len(calls))
	}
	if calls[0].attempt != 2 || calls[0].delay != time.Second {
		t.Errorf("first retry = attempt %d delay %v, want attempt 2 delay 1s", calls[0].attempt, calls[0].delay)
	}
	// Delay before attempt 3 = base * factor^(3-2) = 2000ms exactly without jitter.
	if calls[1].attempt != 3 || calls[1].delay != 2*time.Second {
		t.Errorf("second retry = attempt %d delay %v, want attempt 3 delay 2s", calls[1].attempt, calls[1].delay)
	}
}

func TestRun_DelayNeverExceedsMax(t *testing.T) {
	e := retry.NewExecutor(instantClock{}, nil)

	p := retry.Policy{
		MaxAttempts: 12,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Factor:      2,
	}

	_ = e.Run(context.Background(), func(context.Context) error {
		return errors.New("deadlock detected")
	}, p, func(_ int, delay time.Duration) {
		if delay > 30*time.Second {
			t.Errorf("delay %v exceeds MaxDelay", delay)
		}
	})
}

func TestRun_ContextCancelDuringSleep(t *testing.T) {
	e := retry.NewExecutor(clock.System(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := retry.Policy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Factor: 2}

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Run(ctx, func(context.Context) error {
			calls++
			return errors.New("network flake")
		}, p, nil)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not abort when context was cancelled")
	}
	if calls != 1 {
		t.Errorf("operation invoked %d times before cancel, want 1", calls)
	}
}

func TestDefaultClassifier(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"connection reset by peer", true},
		{"i/o TIMEOUT", true},
		{"Network is unreachable", true},
		{"temporary failure in name resolution", true},
		{"resource temporarily Unavailable", true},
		{"device busy", true},
		{"Deadlock found when trying to get lock", true},
		{"permission denied", false},
		{"invalid payload", false},
		{"no such schedule", false},
	}

	for _, tt := range tests {
		got := retry.DefaultClassifier(errors.New(tt.msg))
		if got != tt.want {
			t.Errorf("DefaultClassifier(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}

	if retry.DefaultClassifier(nil) {
		t.Error("DefaultClassifier(nil) = true, want false")
	}
}

func TestRun_MaxAttemptsFloorsAtOne(t *testing.T) {
	e := retry.NewExecutor(instantClock{}, nil)

	calls := 0
	_ = e.Run(context.Background(), func(context.Context) error {
		calls++
		return errors.New("timeout")
	}, quickPolicy(0), nil)

	if calls != 1 {
		t.Errorf("operation invoked %d times, want 1", calls)
	}
}
