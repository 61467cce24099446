package chrono

import (
	"context"
	"log/slog"
)

// Option configures a Scheduler.
type Option func(*Scheduler) error

// Storer is the minimal store interface held by the Scheduler.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used in subsystem layers that don't create import
// cycles. Implementations satisfy store.Store which embeds all
// subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// timerRunner is an internal interface for the timer dispatcher lifecycle.
type timerRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Scheduler is the root coordinator value owned by its caller. It holds
// configuration, the store, and — once wired by the engine package — the
// timer dispatcher and extension registry. There is no process-wide
// scheduler; construct one with New and manage its lifecycle explicitly.
type Scheduler struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	dispatcher timerRunner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Scheduler with the given options.
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Logger returns the scheduler's logger.
func (s *Scheduler) Logger() *slog.Logger { return s.logger }

// Store returns the scheduler's store.
func (s *Scheduler) Store() Storer { return s.store }

// Config returns a copy of the scheduler's configuration.
func (s *Scheduler) Config() Config { return s.config }

// SetDispatcher sets the timer dispatcher (called by the engine package).
func (s *Scheduler) SetDispatcher(d timerRunner) { s.dispatcher = d }

// SetExtensions sets the extension emitter (called by the engine package).
func (s *Scheduler) SetExtensions(e extensionEmitter) { s.extensions = e }

// Start arms timers for all enabled schedules and begins firing them.
// It returns ErrNotBuilt when the engine wiring has not happened yet.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.dispatcher == nil {
		return ErrNotBuilt
	}
	if err := s.dispatcher.Start(ctx); err != nil {
		return err
	}
	s.started = true
	return nil
}

// Stop gracefully shuts down the scheduler: pending timers are cancelled,
// in-flight executions run to completion (bounded by ShutdownTimeout).
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.dispatcher != nil && s.started {
		if err := s.dispatcher.Stop(ctx); err != nil {
			s.logger.Error("dispatcher stop error", "error", err)
		}
	}
	if s.extensions != nil {
		s.extensions.EmitShutdown(ctx)
	}
	s.started = false
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// WithConcurrency sets the global cap on concurrent executions.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) error {
		s.config.MaxConcurrent = n
		return nil
	}
}

// WithFailureStreakLimit sets the consecutive-failure count at which the
// health monitor reports critical.
func WithFailureStreakLimit(n int) Option {
	return func(s *Scheduler) error {
		s.config.FailureStreakLimit = n
		return nil
	}
}

// WithLogger sets the structured logger for the scheduler.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) error {
		s.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the scheduler.
// The store must implement Storer at minimum; typically it will be a
// store.Store which embeds all subsystem store interfaces.
func WithStore(st Storer) Option {
	return func(s *Scheduler) error {
		s.store = st
		return nil
	}
}

// WithConfig replaces the entire configuration.
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) error {
		s.config = cfg
		return nil
	}
}
