package backoff_test

import (
	"testing"
	"time"

	"github.com/xraph/chrono/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestExponential_GrowsByFactor(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour, 2)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},  // 1 * 2^0
		{2, 2 * time.Second},  // 1 * 2^1
		{3, 4 * time.Second},  // 1 * 2^2
		{4, 8 * time.Second},  // 1 * 2^3
		{5, 16 * time.Second}, // 1 * 2^4
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 30*time.Second, 2)

	// Attempt 6 = 32s > 30s max → should return 30s.
	if got := e.Delay(6); got != 30*time.Second {
		t.Errorf("Delay(6) = %v, want %v (capped at Max)", got, 30*time.Second)
	}
	if got := e.Delay(50); got != 30*time.Second {
		t.Errorf("Delay(50) = %v, want %v (capped at Max)", got, 30*time.Second)
	}
}

func TestExponential_FactorDefaultsWhenInvalid(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour, 0.5)
	if got := e.Delay(2); got != 2*time.Second {
		t.Errorf("Delay(2) = %v, want %v (factor should default to 2)", got, 2*time.Second)
	}
}

func TestJitter_StaysWithinFraction(t *testing.T) {
	j := backoff.NewJitter(backoff.NewConstant(time.Second), 0.1)

	lo := time.Duration(float64(time.Second) * 0.9)
	hi := time.Duration(float64(time.Second) * 1.1)
	for range 100 {
		got := j.Delay(1)
		if got < lo || got > hi {
			t.Fatalf("Delay = %v, want within [%v, %v]", got, lo, hi)
		}
	}
}

func TestJitter_NeverNegative(t *testing.T) {
	j := backoff.NewJitter(backoff.NewConstant(time.Millisecond), 1.0)
	for range 100 {
		if got := j.Delay(1); got < 0 {
			t.Fatalf("Delay = %v, want >= 0", got)
		}
	}
}
