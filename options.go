package jamfsync

import (
	"time"

	"github.com/ervinkurbegovic/jamfsync/pkg/applier"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/lock"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/reconciler"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

const (
	// DefaultAutoSyncInterval is how often passes run when auto-sync is on.
	DefaultAutoSyncInterval = time.Hour

	// DefaultPassTimeout bounds one scheduled pass.
	DefaultPassTimeout = 30 * time.Minute
)

// options holds the configuration of a Client.
type options struct {
	source            session.Directory
	mirror            Mirror
	store             mapping.Store
	locker            lock.Locker
	confirmer         session.Confirmer
	concurrency       int
	reconcilerOpts    []reconciler.Option
	persistMaxElapsed time.Duration
	stateHooks        []func(from, to session.State)

	autoSyncEnabled  bool
	autoSyncInterval time.Duration
	passTimeout      time.Duration
	autoSyncOptions  []SyncOption
}

func defaults() *options {
	return &options{
		confirmer:        session.AutoApprove,
		concurrency:      applier.DefaultConcurrency,
		autoSyncInterval: DefaultAutoSyncInterval,
		passTimeout:      DefaultPassTimeout,
	}
}

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Option is a function that configures a Client.
type Option func(*options) error

// WithSource sets the directory that is synced from.
func WithSource(source session.Directory) Option {
	return func(o *options) error {
		o.source = source
		return nil
	}
}

// WithMirror sets the directory that is synced to.
func WithMirror(mirror Mirror) Option {
	return func(o *options) error {
		o.mirror = mirror
		return nil
	}
}

// WithMapping sets the mapping store.
func WithMapping(store mapping.Store) Option {
	return func(o *options) error {
		o.store = store
		return nil
	}
}

// WithLocker sets the lock that keeps passes exclusive.
func WithLocker(l lock.Locker) Option {
	return func(o *options) error {
		o.locker = l
		return nil
	}
}

// WithConfirmer sets the gate consulted before a plan is applied.
func WithConfirmer(c session.Confirmer) Option {
	return func(o *options) error {
		if c == nil {
			return &errors.ValidationError{Field: "confirmer", Message: "cannot be nil"}
		}
		o.confirmer = c
		return nil
	}
}

// WithConcurrency bounds the number of parallel mirror calls per phase.
func WithConcurrency(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return &errors.ValidationError{Field: "concurrency", Value: n, Message: "must be at least 1"}
		}
		o.concurrency = n
		return nil
	}
}

// WithReconcilerOptions configures planning, e.g. the teacher group or
// the sync marker.
func WithReconcilerOptions(opts ...reconciler.Option) Option {
	return func(o *options) error {
		o.reconcilerOpts = append(o.reconcilerOpts, opts...)
		return nil
	}
}

// WithPersistMaxElapsed bounds the retries of mapping writes.
func WithPersistMaxElapsed(d time.Duration) Option {
	return func(o *options) error {
		o.persistMaxElapsed = d
		return nil
	}
}

// WithStateHook observes session state changes.
func WithStateHook(fn func(from, to session.State)) Option {
	return func(o *options) error {
		o.stateHooks = append(o.stateHooks, fn)
		return nil
	}
}

// WithAutoSync configures whether periodic passes start with the client.
func WithAutoSync(enabled bool) Option {
	return func(o *options) error {
		o.autoSyncEnabled = enabled
		return nil
	}
}

// WithAutoSyncInterval configures how often periodic passes run.
func WithAutoSyncInterval(interval time.Duration) Option {
	return func(o *options) error {
		o.autoSyncInterval = interval
		return nil
	}
}

// WithPassTimeout bounds each periodic pass.
func WithPassTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.passTimeout = d
		return nil
	}
}

// WithAutoSyncOptions sets the sync options used by periodic passes.
func WithAutoSyncOptions(opts ...SyncOption) Option {
	return func(o *options) error {
		o.autoSyncOptions = append(o.autoSyncOptions, opts...)
		return nil
	}
}
