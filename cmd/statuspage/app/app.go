// Package app provides the application context and dependency management
// for the statuspage CLI. It centralizes configuration, logging, the store
// and the backplane, and owns their lifecycle.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/agentstation/statuspage/cmd/application"
	"github.com/agentstation/statuspage/internal/realtime/backplane"
	"github.com/agentstation/statuspage/internal/store"
	"github.com/agentstation/statuspage/internal/store/gormstore"
	"github.com/agentstation/statuspage/internal/store/memory"
	"github.com/agentstation/statuspage/pkg/errors"
)

// redisDialTimeout bounds the initial Redis PING.
const redisDialTimeout = 5 * time.Second

// App represents the statuspage application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// Lazily opened, shared by every command.
	mu        sync.Mutex
	store     store.Store
	backplane backplane.Backplane
	redis     *redis.Client
}

var _ application.Application = (*App)(nil)

// New creates a new App with the given version information. Configuration
// is loaded from the environment unless WithConfig is given.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.config == nil {
		config, err := LoadConfig()
		if err != nil {
			return nil, errors.WrapResource("load", "config", "", err)
		}
		app.config = config
	}
	if app.logger == nil {
		logger := NewLogger(app.config)
		app.logger = &logger
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string { return a.version }

// Commit returns the git commit hash.
func (a *App) Commit() string { return a.commit }

// Date returns the build date.
func (a *App) Date() string { return a.date }

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string { return a.builtBy }

// Config returns the application configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// Store returns the configured store, opening it on first use.
func (a *App) Store() (store.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store != nil {
		return a.store, nil
	}

	cfg := a.config.Database
	switch cfg.Driver {
	case "", DriverMemory:
		a.store = memory.New()
	default:
		st, err := gormstore.Open(cfg, a.logger)
		if err != nil {
			return nil, errors.WrapResource("open", "store", cfg.Driver, err)
		}
		a.store = st
	}

	a.logger.Debug().Str("driver", cfg.Driver).Msg("Store opened")
	return a.store, nil
}

// Backplane returns the Redis backplane when redis.addr is configured and
// nil when this process serves all of its clients alone.
func (a *App) Backplane() (backplane.Backplane, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.backplane != nil {
		return a.backplane, nil
	}
	cfg := a.config.Redis
	if cfg.Addr == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	client, err := backplane.Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.backplane = backplane.NewRedis(client, cfg.Channel, a.logger)

	a.logger.Info().Str("addr", cfg.Addr).Str("channel", cfg.Channel).Msg("Redis backplane connected")
	return a.backplane, nil
}

// Shutdown releases the backplane, the Redis client and the store.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	if a.backplane != nil {
		if err := a.backplane.Close(); err != nil {
			errs = append(errs, err)
		}
		a.backplane = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
		a.redis = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
		a.store = nil
	}

	for _, err := range errs {
		a.logger.Error().Err(err).Msg("Shutdown error")
	}
	if len(errs) > 0 {
		return errors.WrapResource("shutdown", "application", "", errs[0])
	}
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithStore sets a store instance (useful for testing).
func WithStore(st store.Store) Option {
	return func(a *App) error {
		a.store = st
		return nil
	}
}
