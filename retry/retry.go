// Package retry runs arbitrary operations with bounded retries,
// exponential backoff, and a pluggable retryability predicate. The
// executor owns nothing but a clock and a logger; each invocation brings
// its own Policy.
package retry

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/chrono/backoff"
	"github.com/xraph/chrono/clock"
)

// Classifier decides whether an error is transient (retryable) or fatal.
type Classifier func(err error) bool

// transientMarkers are the case-insensitive substrings the default
// classifier treats as transient.
var transientMarkers = []string{
	"connection",
	"timeout",
	"network",
	"temporary",
	"unavailable",
	"busy",
	"deadlock",
}

// DefaultClassifier reports whether err's message contains one of the
// well-known transient markers. Anything else is fatal.
func DefaultClassifier(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Policy bounds one retry chain. It is owned per invocation, never
// persisted with a schedule.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the
	// first. Values below 1 are treated as 1.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration

	// MaxDelay caps every computed delay.
	MaxDelay time.Duration

	// Factor multiplies the delay per attempt. Must be > 1; values at or
	// below 1 fall back to 2.
	Factor float64

	// Jitter perturbs each delay by ±10% when set.
	Jitter bool

	// Classify decides retryability. Nil means DefaultClassifier.
	Classify Classifier
}

// DefaultPolicy returns the policy used when a caller supplies none:
// 3 attempts, 1s base delay, 30s cap, factor 2, jitter on.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Factor:      2,
		Jitter:      true,
	}
}

// strategy builds the backoff strategy for this policy. Delay(n) is the
// wait before attempt n+1, so the delay before attempt k is
// min(BaseDelay * Factor^(k-2), MaxDelay).
func (p Policy) strategy() backoff.Strategy {
	var s backoff.Strategy = backoff.NewExponential(p.BaseDelay, p.MaxDelay, p.Factor)
	if p.Jitter {
		s = backoff.NewJitter(s, 0.1)
	}
	return s
}

// Operation is the unit of work being retried.
type Operation func(ctx context.Context) error

// OnRetry is an optional observer invoked before each inter-attempt
// sleep with the upcoming attempt number and the chosen delay. Callers
// use it to update progress state or logs.
type OnRetry func(attempt int, delay time.Duration)

// Executor runs operations under a retry policy. Safe for concurrent use.
type Executor struct {
	clock  clock.Clock
	logger *slog.Logger
}

// NewExecutor creates an Executor. A nil clock means the system clock;
// a nil logger means slog.Default().
func NewExecutor(clk clock.Clock, logger *slog.Logger) *Executor {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{clock: clk, logger: logger}
}

// Run invokes op up to p.MaxAttempts times. A fatal error (per the
// classifier) is returned immediately without further attempts. The last
// error is returned unwrapped once attempts are exhausted; no delay
// follows the final attempt. Cancelling ctx during an inter-attempt
// sleep aborts the chain with ctx.Err().
func (e *Executor) Run(ctx context.Context, op Operation, p Policy, onRetry OnRetry) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	classify := p.Classify
	if classify == nil {
		classify = DefaultClassifier
	}
	strategy := p.strategy()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if !classify(lastErr) {
			e.logger.Debug("fatal error, not retrying",
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()),
			)
			return lastErr
		}

		if attempt == p.MaxAttempts {
			break
		}

		delay := strategy.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt+1, delay)
		}

		e.logger.Debug("transient error, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", p.MaxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", lastErr.Error()),
		)

		e.clock.Sleep(delay, ctx.Done())
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}
