// Package application defines what commands need from the CLI application.
// Commands accept this interface rather than the concrete App type so they
// can be tested with Mock.
package application

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/ervinkurbegovic/jamfsync"
	"github.com/ervinkurbegovic/jamfsync/pkg/lock"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

// Application is the dependency surface of the commands.
type Application interface {
	// Client builds a sync client from the configured source, mirror,
	// mapping and lock. opts are applied after the configured ones.
	Client(ctx context.Context, opts ...jamfsync.Option) (jamfsync.Client, error)

	// Mapping opens the configured mapping store without touching either directory.
	Mapping(ctx context.Context) (mapping.Store, error)

	// Mirror builds the Jamf School directory without connecting to IServ.
	Mirror(ctx context.Context) (jamfsync.Mirror, error)

	// Locker returns the lock that serializes passes and mapping maintenance.
	Locker(ctx context.Context) (lock.Locker, error)

	// Confirmer returns the gate used before plans are applied.
	Confirmer(autoApprove bool) session.Confirmer

	// SyncInterval is the configured period for watch mode.
	SyncInterval() time.Duration

	Logger() *zerolog.Logger
	OutputFormat() string
	Out() io.Writer

	Version() string
	Commit() string
	Date() string
	BuiltBy() string
}
