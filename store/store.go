// Package store defines the composite persistence interface the engine
// is built against. Backends implement it by embedding the subsystem
// store contracts plus the lifecycle methods.
package store

import (
	"context"

	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/schedule"
)

// Store is the full persistence contract: schedule and execution
// subsystem stores plus backend lifecycle. memory.Store, postgres.Store,
// and redis.Store implement it.
type Store interface {
	schedule.Store
	execution.Store

	// Migrate creates or upgrades backend structures (tables, indexes).
	// In-memory backends treat it as a no-op.
	Migrate(ctx context.Context) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources. The store is unusable afterwards.
	Close() error
}
