package jamfsync

import (
	"context"
	"time"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/logging"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

// Syncer runs sync passes.
type Syncer interface {
	// Sync runs one pass and fires the registered hooks.
	Sync(ctx context.Context, opts ...SyncOption) (*session.Result, error)

	// Purge deletes every system-generated mirror record and fires the
	// registered hooks. Only WithDryRun, WithEntity and WithTimeout apply.
	Purge(ctx context.Context, opts ...SyncOption) (*session.Result, error)
}

// SyncOption configures one pass.
type SyncOption func(*syncOptions)

type syncOptions struct {
	dryRun     bool
	peopleOnly bool
	rebuild    bool
	entity     directory.EntityType
	timeout    time.Duration
}

// WithDryRun plans both phases without changing anything.
func WithDryRun(enabled bool) SyncOption {
	return func(o *syncOptions) { o.dryRun = enabled }
}

// WithPeopleOnly skips the group phase.
func WithPeopleOnly(enabled bool) SyncOption {
	return func(o *syncOptions) { o.peopleOnly = enabled }
}

// WithRebuild archives the mapping before the pass.
func WithRebuild(enabled bool) SyncOption {
	return func(o *syncOptions) { o.rebuild = enabled }
}

// WithEntity restricts a purge to people or groups.
func WithEntity(entity directory.EntityType) SyncOption {
	return func(o *syncOptions) { o.entity = entity }
}

// WithTimeout bounds the pass.
func WithTimeout(d time.Duration) SyncOption {
	return func(o *syncOptions) { o.timeout = d }
}

// Sync implements Syncer.
func (c *client) Sync(ctx context.Context, opts ...SyncOption) (*session.Result, error) {
	return c.pass(ctx, opts, func(ctx context.Context, o *syncOptions) (*session.Result, error) {
		return c.session.Run(ctx,
			session.WithDryRun(o.dryRun),
			session.WithPeopleOnly(o.peopleOnly),
			session.WithRebuild(o.rebuild),
		)
	})
}

// Purge implements Syncer.
func (c *client) Purge(ctx context.Context, opts ...SyncOption) (*session.Result, error) {
	return c.pass(ctx, opts, func(ctx context.Context, o *syncOptions) (*session.Result, error) {
		return c.session.Purge(ctx,
			session.WithDryRun(o.dryRun),
			session.WithEntity(o.entity),
		)
	})
}

// pass applies the options and the timeout around run and fires the hooks.
func (c *client) pass(ctx context.Context, opts []SyncOption, run func(context.Context, *syncOptions) (*session.Result, error)) (*session.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	o := &syncOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var cancel context.CancelFunc
	if o.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
	} else {
		cancel = func() {}
	}
	defer cancel()

	result, err := run(ctx, o)

	if result != nil && result.Report != nil && !result.DryRun {
		c.hooks.triggerReport(result.Report)
	}
	c.hooks.triggerPass(result, err)

	if err != nil {
		return result, err
	}
	if result.Report != nil && result.Report.HasChanges() {
		logging.FromContext(ctx).Info().
			Str("pass_id", result.PassID).
			Str("summary", result.Report.Summary()).
			Msg("Mirror changed")
	}
	return result, nil
}
