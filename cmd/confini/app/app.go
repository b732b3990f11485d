// Package app provides the application context and dependency management
// for the confini CLI: configuration, logging and the lazily created
// confini instance the commands share.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ondata/confini"
	"github.com/ondata/confini/cmd/application"
	"github.com/ondata/confini/pkg/catalog"
	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/logging"
)

// App represents the confini application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger
	flags  flags

	// Confini instance (lazy-initialized, singleton)
	mu      sync.RWMutex
	confini confini.Confini
}

var _ application.Application = (*App)(nil)

// New creates a new App instance with the given version information.
// Configuration is loaded from the environment and the default config
// file; functional options may replace it.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, err
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
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

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// SourceName returns the release selected by SOURCE_NAME.
func (a *App) SourceName() string {
	return a.config.SourceName
}

// Catalog loads the sources file. When the default sources file is
// missing the embedded catalog is used.
func (a *App) Catalog() (*catalog.Catalog, error) {
	cat, err := catalog.Load(a.config.SourceFile)
	if errors.IsNotFound(err) && a.config.SourceFile == constants.DefaultSourceFile {
		a.logger.Debug().Str("file", a.config.SourceFile).Msg("No sources file, using the embedded catalog")
		return catalog.Default()
	}
	return cat, err
}

// Confini returns the confini instance, creating it lazily if needed.
// With options a new instance is returned and not cached.
func (a *App) Confini(opts ...confini.Option) (confini.Confini, error) {
	if len(opts) > 0 {
		return a.newConfini(opts...)
	}

	a.mu.RLock()
	if a.confini != nil {
		c := a.confini
		a.mu.RUnlock()
		return c, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.confini != nil {
		return a.confini, nil
	}
	c, err := a.newConfini()
	if err != nil {
		return nil, err
	}
	a.confini = c
	return c, nil
}

func (a *App) newConfini(extra ...confini.Option) (confini.Confini, error) {
	cat, err := a.Catalog()
	if err != nil {
		return nil, err
	}
	opts, err := a.options()
	if err != nil {
		return nil, err
	}
	c, err := confini.New(cat, append(opts, extra...)...)
	if err != nil {
		return nil, err
	}

	c.OnReleaseSkipped(a.releaseSkipped)
	return c, nil
}

// options converts the configuration to confini options.
func (a *App) options() ([]confini.Option, error) {
	formats, err := a.config.Formats()
	if err != nil {
		return nil, err
	}
	return []confini.Option{
		confini.WithOutputDir(a.config.OutputDir),
		confini.WithEngine(a.config.Engine),
		confini.WithParallel(a.config.Parallel),
		confini.WithFormats(formats...),
	}, nil
}

func (a *App) releaseSkipped(ctx context.Context, release string, err error) {
	logging.FromContext(ctx).Warn().Err(err).Str("release", release).
		Msg("Release skipped, run the build again once the archive is reachable")
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

// WithConfini sets a custom confini instance (useful for testing).
func WithConfini(c confini.Confini) Option {
	return func(a *App) error {
		a.confini = c
		return nil
	}
}
