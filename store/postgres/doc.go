// Package postgres implements store.Store on PostgreSQL using pgx/v5.
// Schedules and execution records live in two tables created by embedded
// migrations; execution history reads are served by a composite index on
// (schedule_id, started_at DESC).
package postgres
