package chrono

import "time"

// Config holds configuration for the scheduler service.
type Config struct {
	// MaxConcurrent caps the number of executions in flight across all
	// schedules. Fires that arrive while the cap is saturated wait in
	// queue rather than being dropped.
	MaxConcurrent int

	// QueueWarnAfter is how long the dispatch queue may stay non-empty
	// before the health monitor degrades status to warning.
	QueueWarnAfter time.Duration

	// FailureStreakLimit is the number of consecutive failed executions
	// of a single schedule after which health becomes critical.
	FailureStreakLimit int

	// ShutdownTimeout is the maximum time Stop waits for in-flight
	// executions to finish.
	ShutdownTimeout time.Duration

	// HistoryLimit is the default maximum number of execution records
	// returned per schedule. Zero means no limit.
	HistoryLimit int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:      10,
		QueueWarnAfter:     30 * time.Second,
		FailureStreakLimit: 3,
		ShutdownTimeout:    30 * time.Second,
		HistoryLimit:       100,
	}
}
