// Package app provides the application context and dependency management
// for the aliasmap CLI. It centralizes configuration, logging, and the
// lazily created catalog client shared by every command.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/aliasmap"
	"github.com/agentstation/aliasmap/cmd/application"
	"github.com/agentstation/aliasmap/internal/cmd/output"
	"github.com/agentstation/aliasmap/internal/metrics"
	"github.com/agentstation/aliasmap/internal/transport"
	"github.com/agentstation/aliasmap/pkg/errors"
)

// Ensure App implements application.Application at compile time.
var _ application.Application = (*App)(nil)

// App represents the aliasmap application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	metricsOnce sync.Once
	metrics     *metrics.Metrics

	// Client instance (lazy-initialized, singleton)
	mu     sync.RWMutex
	client aliasmap.Client
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	// Apply options first so WithConfig can skip loading from disk.
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
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the explicit format, or one detected from the terminal.
func (a *App) OutputFormat() string {
	return string(output.DetectFormat(a.config.Format))
}

// Metrics returns the collectors shared by the client and the HTTP server.
func (a *App) Metrics() *metrics.Metrics {
	a.metricsOnce.Do(func() {
		if a.metrics == nil {
			a.metrics = metrics.New()
		}
	})
	return a.metrics
}

// Client returns the catalog client, creating it lazily if needed.
// This is thread-safe and ensures only one instance is created.
func (a *App) Client() (aliasmap.Client, error) {
	a.mu.RLock()
	if a.client != nil {
		c := a.client
		a.mu.RUnlock()
		return c, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.client != nil {
		return a.client, nil
	}

	c, err := aliasmap.New(a.clientOptions()...)
	if err != nil {
		return nil, errors.WrapResource("create", "aliasmap client", "", err)
	}

	a.client = c
	return c, nil
}

// Shutdown stops background rebuilds.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.RLock()
	c := a.client
	a.mu.RUnlock()

	if c == nil {
		return nil
	}
	if err := c.AutoRefreshOff(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to stop auto-refresh during shutdown")
		return err
	}
	return nil
}

// clientOptions constructs client options from the app configuration.
func (a *App) clientOptions() []aliasmap.Option {
	cfg := a.config
	opts := []aliasmap.Option{
		aliasmap.WithSubscriptionID(cfg.SubscriptionID),
		aliasmap.WithEndpoint(cfg.Endpoint),
		aliasmap.WithAPIVersion(cfg.APIVersion),
		aliasmap.WithTTL(cfg.CacheTTL),
		aliasmap.WithWorkers(cfg.Workers),
		aliasmap.WithRequestsPerMinute(cfg.RequestsPerMinute, cfg.Burst),
		aliasmap.WithTaskTimeout(cfg.TaskTimeout),
		aliasmap.WithRetry(cfg.MaxAttempts, cfg.BaseDelay, cfg.MaxDelay),
		aliasmap.WithLogger(a.logger),
		aliasmap.WithMetrics(a.Metrics()),
	}

	// Auto prefers an explicit token and falls back to the Azure CLI.
	if cfg.TokenSource == TokenSourceCLI || cfg.AccessToken == "" {
		opts = append(opts, aliasmap.WithTokenSource(transport.NewCLITokenSource()))
	} else {
		opts = append(opts, aliasmap.WithAccessToken(cfg.AccessToken))
	}

	if cfg.AutoRefreshInterval > 0 {
		opts = append(opts, aliasmap.WithAutoRefreshInterval(cfg.AutoRefreshInterval))
	}

	return opts
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

// WithClient sets a custom client instance (useful for testing).
func WithClient(c aliasmap.Client) Option {
	return func(a *App) error {
		a.client = c
		return nil
	}
}

// WithMetrics sets the shared collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) error {
		a.metrics = m
		return nil
	}
}
