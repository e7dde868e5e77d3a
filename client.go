// Package jamfsync keeps a Jamf School tenant in step with an IServ school
// server. It offers a high-level client that wires the source and mirror
// directories, the mapping store and the session lock, runs sync passes on
// demand or on a schedule, and reports what changed through hooks.
//
// Example usage:
//
//	source, pool, err := iserv.Connect(ctx, iservCfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
//
//	mirror, err := jamf.New(jamfCfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := jamfsync.New(
//	    jamfsync.WithSource(source),
//	    jamfsync.WithMirror(mirror),
//	    jamfsync.WithMapping(store),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client.OnFailed(func(f applier.Failure) {
//	    log.Printf("%s %s failed: %s", f.Action, f.IdentityKey, f.Error)
//	})
//
//	result, err := client.Sync(ctx, jamfsync.WithDryRun(true))
package jamfsync

import (
	"context"
	"sync"
	"time"

	"github.com/ervinkurbegovic/jamfsync/pkg/applier"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/logging"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/reconciler"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

// Mirror is the directory that receives changes.
type Mirror interface {
	session.Directory
	applier.Transport
}

// Client runs sync passes between one source and one mirror.
type Client interface {
	// Syncer runs single passes
	Syncer

	// AutoSyncer provides access to periodic sync controls
	AutoSyncer

	// Hooks provides access to event callback registration
	Hooks

	// Mapping returns the store that links source identities to mirror records.
	Mapping() mapping.Store

	// Mirror returns the directory that receives changes.
	Mirror() Mirror
}

// client is the internal implementation of the Client interface.
type client struct {
	options *options
	session *session.Session

	// auto sync state
	mu         sync.Mutex
	syncTicker *time.Ticker
	stopCh     chan struct{}
	syncCancel context.CancelFunc
	done       chan struct{}

	hooks *hooks
}

var _ Client = (*client)(nil)

// New creates a new Client with the given options. A source and a mirror
// are required.
func New(opts ...Option) (Client, error) {
	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, err
	}
	if o.source == nil {
		return nil, &errors.ValidationError{Field: "source", Message: "is required"}
	}
	if o.mirror == nil {
		return nil, &errors.ValidationError{Field: "mirror", Message: "is required"}
	}
	if o.store == nil {
		logging.Warn().Msg("No mapping store configured, using an in-memory store")
		o.store = mapping.NewMemory()
	}

	rec, err := reconciler.New(o.reconcilerOpts...)
	if err != nil {
		return nil, errors.WrapResource("create", "reconciler", "", err)
	}

	sessionOpts := []session.Option{
		session.WithReconciler(rec),
		session.WithApplierOptions(applier.WithConcurrency(o.concurrency)),
		session.WithConfirmer(o.confirmer),
	}
	if o.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(o.locker))
	}
	if o.persistMaxElapsed > 0 {
		sessionOpts = append(sessionOpts, session.WithPersistMaxElapsed(o.persistMaxElapsed))
	}
	for _, hook := range o.stateHooks {
		sessionOpts = append(sessionOpts, session.WithStateHook(hook))
	}

	s, err := session.New(o.source, o.mirror, o.store, o.mirror, sessionOpts...)
	if err != nil {
		return nil, errors.WrapResource("create", "session", "", err)
	}

	c := &client{
		options: o,
		session: s,
		stopCh:  make(chan struct{}),
		hooks:   newHooks(),
	}

	if o.autoSyncEnabled {
		if err := c.AutoSyncOn(); err != nil {
			return nil, errors.WrapResource("start", "auto-sync", "", err)
		}
	}
	return c, nil
}

// Mapping implements Client.
func (c *client) Mapping() mapping.Store {
	return c.options.store
}

// Mirror implements Client.
func (c *client) Mirror() Mirror {
	return c.options.mirror
}
