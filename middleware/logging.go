package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/chrono/execution"
)

// Logging returns middleware that logs execution start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, rec *execution.Record, next Handler) error {
		logger.Info("execution started",
			slog.String("schedule_id", rec.ScheduleID.String()),
			slog.String("execution_id", rec.ID.String()),
			slog.String("trigger", string(rec.Trigger)),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("execution failed",
				slog.String("schedule_id", rec.ScheduleID.String()),
				slog.String("execution_id", rec.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("execution completed",
				slog.String("schedule_id", rec.ScheduleID.String()),
				slog.String("execution_id", rec.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
