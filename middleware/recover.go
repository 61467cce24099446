package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/chrono/execution"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to errors and logged with a stack trace,
// so a panicking job never takes down the dispatcher or other schedules.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, rec *execution.Record, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("job panicked",
					slog.String("schedule_id", rec.ScheduleID.String()),
					slog.String("execution_id", rec.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in schedule %s: %v", rec.ScheduleID.String(), r)
			}
		}()
		return next(ctx)
	}
}
