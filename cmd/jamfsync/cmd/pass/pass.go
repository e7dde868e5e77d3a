package pass

import (
	"context"
	"fmt"
	"os"

	"github.com/ervinkurbegovic/jamfsync"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/alerts"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/application"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/globals"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/output"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

// Run executes one pass and prints its result. A pass in which items failed
// returns an error so the exit status reflects it.
func Run(ctx context.Context, app application.Application, flags *globals.SyncFlags, globalFlags *globals.Flags) error {
	client, err := app.Client(ctx, jamfsync.WithConfirmer(app.Confirmer(flags.Yes || flags.DryRun)))
	if err != nil {
		return err
	}

	if flags.Rebuild && !flags.DryRun {
		app.Logger().Warn().Msg("Rebuilding: the current mapping will be archived")
	}

	result, err := client.Sync(ctx,
		jamfsync.WithDryRun(flags.DryRun),
		jamfsync.WithPeopleOnly(flags.PeopleOnly),
		jamfsync.WithRebuild(flags.Rebuild),
	)
	return report(app, "sync", result, err, globalFlags)
}

// Purge deletes the system-generated records of one or both entity types
// and prints the result. Records created by hand are listed but kept.
func Purge(ctx context.Context, app application.Application, flags *globals.SyncFlags, entity directory.EntityType, globalFlags *globals.Flags) error {
	client, err := app.Client(ctx, jamfsync.WithConfirmer(app.Confirmer(flags.Yes || flags.DryRun)))
	if err != nil {
		return err
	}

	if !flags.DryRun {
		app.Logger().Warn().Str("entity", entity.String()).Msg("Purging records created by jamfsync")
	}

	result, err := client.Purge(ctx,
		jamfsync.WithDryRun(flags.DryRun),
		jamfsync.WithEntity(entity),
	)
	return report(app, "purge", result, err, globalFlags)
}

func report(app application.Application, operation string, result *session.Result, err error, globalFlags *globals.Flags) error {
	logger := app.Logger()
	if result != nil && (result.People != nil || result.Groups != nil || result.Report != nil) {
		if ferr := output.FormatResult(app.Out(), result, globalFlags); ferr != nil {
			logger.Error().Err(ferr).Msg("Failed to write result")
		}
		if !globalFlags.Quiet {
			_ = alerts.Write(os.Stderr, alerts.ForResult(result)...)
		}
	}
	if err != nil {
		return describe(err)
	}

	if result.Report != nil && !result.Report.IsSuccess() {
		return &errors.ResourceError{
			Operation: operation,
			Resource:  "mirror",
			ID:        result.PassID,
			Message:   fmt.Sprintf("%d item(s) failed", len(result.Report.Failures)),
		}
	}
	return nil
}

// describe adds operator hints to the errors that stop a pass.
func describe(err error) error {
	switch {
	case errors.IsSessionInUse(err):
		return fmt.Errorf("another sync is running, try again later: %w", err)
	case errors.IsEmptySource(err):
		return fmt.Errorf("refusing to sync an empty source, check the IServ connection: %w", err)
	case errors.IsMappingPersistence(err):
		return fmt.Errorf("mapping was not saved after Jamf changed, run 'jamfsync sync --rebuild' once the store is reachable: %w", err)
	}
	return err
}

// Summary returns a one-line description of a result for logs.
func Summary(result *session.Result) string {
	switch {
	case result == nil:
		return "no result"
	case result.Report == nil:
		return string(result.State)
	default:
		return result.Report.Summary()
	}
}
