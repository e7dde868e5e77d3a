// Package app provides the application context and dependency management
// for the jamfsync CLI. It centralizes configuration, the construction of
// the source, mirror, mapping store and lock, and their shutdown.
package app

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ervinkurbegovic/jamfsync"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/application"
	"github.com/ervinkurbegovic/jamfsync/internal/iserv"
	"github.com/ervinkurbegovic/jamfsync/internal/jamf"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/lock"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/reconciler"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

// App represents the jamfsync application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger
	out    io.Writer
	in     io.Reader

	// Backends (lazy-initialized, shared by every client)
	mu      sync.Mutex
	source  *iserv.Source
	mirror  *jamf.Client
	store   mapping.Store
	locker  lock.Locker
	closers []func()
}

var _ application.Application = (*App)(nil)

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		out:     os.Stdout,
		in:      os.Stdin,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
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

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string { return a.config.Format }

// Out returns where command output is written.
func (a *App) Out() io.Writer { return a.out }

// SyncInterval returns the configured watch interval.
func (a *App) SyncInterval() time.Duration { return a.config.Sync.Interval }

// Confirmer returns auto-approval or an interactive prompt.
func (a *App) Confirmer(autoApprove bool) session.Confirmer {
	if autoApprove {
		return session.AutoApprove
	}
	return NewPrompt(a.in, os.Stderr, a.config.Format)
}

// Client builds a sync client over the configured backends.
func (a *App) Client(ctx context.Context, opts ...jamfsync.Option) (jamfsync.Client, error) {
	if err := a.config.Validate(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.initDirectories(ctx); err != nil {
		return nil, err
	}
	if err := a.initMapping(ctx); err != nil {
		return nil, err
	}
	if err := a.initLocker(ctx); err != nil {
		return nil, err
	}

	cfg := a.config.Sync
	base := []jamfsync.Option{
		jamfsync.WithSource(a.source),
		jamfsync.WithMirror(a.mirror),
		jamfsync.WithMapping(a.store),
		jamfsync.WithLocker(a.locker),
		jamfsync.WithConcurrency(cfg.Concurrency),
		jamfsync.WithAutoSyncInterval(cfg.Interval),
		jamfsync.WithReconcilerOptions(
			reconciler.WithTeacherGroup(a.config.IServ.TeacherGroup),
			reconciler.WithSyncMarker(cfg.SyncMarker),
			reconciler.WithAllTeachersPattern(cfg.AllTeachersPattern),
			reconciler.WithPersonNotes(cfg.PersonMarker),
			reconciler.WithGroupDescription(cfg.GroupMarker),
			reconciler.WithGroupNameAffixes(cfg.GroupPrefix, cfg.GroupSuffix),
		),
	}

	client, err := jamfsync.New(append(base, opts...)...)
	if err != nil {
		return nil, errors.WrapResource("create", "client", "", err)
	}
	return client, nil
}

// Mapping opens the configured mapping store.
func (a *App) Mapping(ctx context.Context) (mapping.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initMapping(ctx); err != nil {
		return nil, err
	}
	return a.store, nil
}

// Mirror builds the Jamf School client alone. IServ is not contacted.
func (a *App) Mirror(ctx context.Context) (jamfsync.Mirror, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initMirror(ctx); err != nil {
		return nil, err
	}
	return a.mirror, nil
}

// Locker returns the configured session lock, shared with every client.
func (a *App) Locker(ctx context.Context) (lock.Locker, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initLocker(ctx); err != nil {
		return nil, err
	}
	return a.locker, nil
}

// Shutdown releases database pools and connections.
func (a *App) Shutdown(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	a.source, a.mirror, a.store, a.locker = nil, nil, nil, nil
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

// WithIO sets the streams used for output and confirmation prompts.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) error {
		a.in, a.out = in, out
		return nil
	}
}

// WithMapping sets a mapping store instead of the configured backend.
func WithMapping(store mapping.Store) Option {
	return func(a *App) error {
		a.store = store
		return nil
	}
}
