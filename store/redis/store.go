// Package redis implements store.Store on Redis for ephemeral or
// high-throughput deployments. Entities are stored as JSON strings;
// execution history per schedule is indexed with a Sorted Set scored by
// start time.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/schedule"
	chronostore "github.com/xraph/chrono/store"
)

// Compile-time interface checks.
var (
	_ schedule.Store    = (*Store)(nil)
	_ execution.Store   = (*Store)(nil)
	_ chronostore.Store = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements the composite store.Store interface backed by Redis.
type Store struct {
	rdb    redis.Cmdable
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{rdb: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.rdb }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Entity helpers
// ──────────────────────────────────────────────────

var errNotFound = errors.New("chrono/redis: key not found")

// setEntity stores v as JSON at key.
func (s *Store) setEntity(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("chrono/redis: marshal %s: %w", key, err)
	}
	return s.rdb.Set(ctx, key, data, 0).Err()
}

// getEntity loads the JSON value at key into v.
func (s *Store) getEntity(ctx context.Context, key string, v any) error {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if isRedisNil(err) {
			return errNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("chrono/redis: unmarshal %s: %w", key, err)
	}
	return nil
}

// entityExists reports whether key is present.
func (s *Store) entityExists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// isRedisNil reports whether err is the redis nil-reply sentinel.
func isRedisNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// isNotFound reports whether err is the store's missing-key sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}

func now() time.Time {
	return time.Now().UTC()
}
