// Package job defines the opaque collaborator contract between the
// engine and the application. The engine hands the schedule's payload to
// a Runner and observes only success or failure; it never inspects the
// payload or produces a result of its own.
package job

import "context"

// Runner executes one job. Implementations decide what a payload means —
// the engine does not know what a report is.
type Runner interface {
	Run(ctx context.Context, payload []byte) error
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, payload []byte) error

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, payload []byte) error {
	return f(ctx, payload)
}
