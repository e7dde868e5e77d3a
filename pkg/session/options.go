package session

import (
	"time"

	"github.com/ervinkurbegovic/jamfsync/pkg/applier"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/lock"
	"github.com/ervinkurbegovic/jamfsync/pkg/reconciler"
)

// DefaultPersistMaxElapsed bounds how long mapping writes are retried.
const DefaultPersistMaxElapsed = 30 * time.Second

// DefaultLockName is the lock used when none is configured.
const DefaultLockName = "jamfsync"

type options struct {
	reconciler        reconciler.Reconciler
	applierOpts       []applier.Option
	locker            lock.Locker
	confirmer         Confirmer
	persistMaxElapsed time.Duration
	stateHooks        []func(from, to State)
}

// Option configures a Session.
type Option func(*options) error

// WithReconciler replaces the default reconciler.
func WithReconciler(r reconciler.Reconciler) Option {
	return func(o *options) error {
		if r == nil {
			return &errors.ValidationError{Field: "reconciler", Message: "cannot be nil"}
		}
		o.reconciler = r
		return nil
	}
}

// WithApplierOptions configures the applier, e.g. its concurrency.
func WithApplierOptions(opts ...applier.Option) Option {
	return func(o *options) error {
		o.applierOpts = append(o.applierOpts, opts...)
		return nil
	}
}

// WithLocker sets the exclusive lock for the directory pair.
func WithLocker(l lock.Locker) Option {
	return func(o *options) error {
		if l == nil {
			return &errors.ValidationError{Field: "locker", Message: "cannot be nil"}
		}
		o.locker = l
		return nil
	}
}

// WithConfirmer sets the gate consulted before applying a plan.
func WithConfirmer(c Confirmer) Option {
	return func(o *options) error {
		if c == nil {
			return &errors.ValidationError{Field: "confirmer", Message: "cannot be nil"}
		}
		o.confirmer = c
		return nil
	}
}

// WithPersistMaxElapsed bounds the retries of mapping writes.
func WithPersistMaxElapsed(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return &errors.ValidationError{Field: "persist_max_elapsed", Value: d, Message: "must be positive"}
		}
		o.persistMaxElapsed = d
		return nil
	}
}

// WithStateHook registers a callback invoked after every state change.
func WithStateHook(fn func(from, to State)) Option {
	return func(o *options) error {
		if fn != nil {
			o.stateHooks = append(o.stateHooks, fn)
		}
		return nil
	}
}

// RunOption configures a single pass.
type RunOption func(*runOptions)

type runOptions struct {
	dryRun     bool
	peopleOnly bool
	rebuild    bool
	entity     directory.EntityType
}

// WithDryRun plans both phases without applying anything.
func WithDryRun(enabled bool) RunOption {
	return func(o *runOptions) { o.dryRun = enabled }
}

// WithPeopleOnly skips the group phase.
func WithPeopleOnly(enabled bool) RunOption {
	return func(o *runOptions) { o.peopleOnly = enabled }
}

// WithRebuild archives the mapping before planning so every entry is
// re-derived from the directories. The archive stays available for Restore.
func WithRebuild(enabled bool) RunOption {
	return func(o *runOptions) { o.rebuild = enabled }
}

// WithEntity restricts a purge to one entity type. Empty means both.
func WithEntity(entity directory.EntityType) RunOption {
	return func(o *runOptions) { o.entity = entity }
}
