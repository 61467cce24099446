// Package chrono provides an in-process scheduled execution engine for Go.
// It turns declarative cron recurrence rules into correctly timed, retried,
// observable job executions: one cancellable timer per schedule, exponential
// backoff with a pluggable retryability predicate, per-operation progress
// tracking, and on-demand health aggregation.
//
// Chrono is designed as a library, not a service. Import it, configure a
// store and a job runner, and register schedules as plain values.
//
// # Quick Start
//
//	svc, err := chrono.New(
//	    chrono.WithStore(memory.New()),
//	    chrono.WithConcurrency(20),
//	)
//	eng, err := engine.Build(svc, job.RunnerFunc(run))
//	def, err := eng.CreateSchedule(ctx, "nightly-report", "0 2 * * *", payload, true)
//	err = svc.Start(ctx)
//	defer svc.Stop(context.Background())
//
// # Architecture
//
// Chrono follows a composable store pattern where each subsystem (schedule,
// execution) defines its own store interface. A single backend implements
// all of them.
//
// The engine never inspects job payloads and never terminates the process
// on a job failure: callers observe failures only through execution records
// and health snapshots.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package chrono
