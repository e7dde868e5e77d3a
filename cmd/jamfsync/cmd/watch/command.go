// Package watch implements the long-running watch command.
package watch

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ervinkurbegovic/jamfsync"
	"github.com/ervinkurbegovic/jamfsync/cmd/jamfsync/cmd/pass"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/alerts"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/application"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/globals"
	"github.com/ervinkurbegovic/jamfsync/pkg/applier"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

// Flags holds the watch flags.
type Flags struct {
	Interval   time.Duration
	Timeout    time.Duration
	PeopleOnly bool
	Now        bool
}

// NewCommand creates the watch command.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "core",
		Short:   "Run sync passes periodically",
		Long: `Watch runs a sync pass every interval until interrupted. Plans are
applied without confirmation. A pass that overlaps a running one is skipped.`,
		Example: `  jamfsync watch
  jamfsync watch --interval 15m
  jamfsync watch --interval 1h --timeout 10m --now=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			globalFlags, err := globals.Parse(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				flags.Interval = app.SyncInterval()
			}
			return Run(cmd, app, flags, globalFlags)
		},
	}

	cmd.Flags().DurationVar(&flags.Interval, "interval", jamfsync.DefaultAutoSyncInterval, "Time between passes (default from sync.interval)")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", jamfsync.DefaultPassTimeout, "Upper bound for one pass")
	cmd.Flags().BoolVar(&flags.PeopleOnly, "people-only", false, "Skip the group phase")
	cmd.Flags().BoolVar(&flags.Now, "now", true, "Run a pass immediately instead of waiting one interval")

	return cmd
}

// Run starts auto-sync and blocks until the command context is cancelled.
func Run(cmd *cobra.Command, app application.Application, flags *Flags, globalFlags *globals.Flags) error {
	ctx := cmd.Context()
	logger := app.Logger()

	client, err := app.Client(ctx,
		jamfsync.WithConfirmer(session.AutoApprove),
		jamfsync.WithAutoSyncInterval(flags.Interval),
		jamfsync.WithPassTimeout(flags.Timeout),
		jamfsync.WithAutoSyncOptions(jamfsync.WithPeopleOnly(flags.PeopleOnly)),
	)
	if err != nil {
		return err
	}

	client.OnFailed(func(f applier.Failure) {
		logger.Warn().
			Str("identity_key", f.IdentityKey).
			Str("entity", f.Entity.String()).
			Str("action", string(f.Action)).
			Str("error", f.Error).
			Msg("Item failed")
	})
	client.OnPass(func(result *session.Result, err error) {
		if err != nil {
			return
		}
		logger.Info().Str("summary", pass.Summary(result)).Msg("Pass finished")
		if !globalFlags.Quiet {
			_ = alerts.Write(os.Stderr, alerts.ForResult(result)...)
		}
	})

	if flags.Now {
		if _, err := client.Sync(ctx, jamfsync.WithPeopleOnly(flags.PeopleOnly), jamfsync.WithTimeout(flags.Timeout)); err != nil {
			logger.Error().Err(err).Msg("Initial pass failed")
		}
	}

	if err := client.AutoSyncOn(); err != nil {
		return err
	}
	logger.Info().Dur("interval", flags.Interval).Msg("Watching, press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info().Msg("Stopping")
	return client.AutoSyncOff()
}
