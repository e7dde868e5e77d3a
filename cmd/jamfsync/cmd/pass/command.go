// Package pass implements the commands that run one sync pass.
package pass

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ervinkurbegovic/jamfsync/internal/cmd/application"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/globals"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sync",
		GroupID: "core",
		Short:   "Bring Jamf School in line with IServ",
		Long: `Sync reads people and groups from IServ and Jamf School, plans the
changes that make Jamf match IServ and applies them.

The pass runs in two phases. People are planned and applied first, then
classes are planned against the updated mapping. Each plan is shown and must
be confirmed unless --yes is given. Records created by hand in Jamf are never
changed or deleted.`,
		Example: `  jamfsync sync                 # Plan, confirm and apply
  jamfsync sync -y              # Apply without asking
  jamfsync sync --dry-run       # Show both plans, change nothing
  jamfsync sync --people-only   # Skip classes
  jamfsync sync --rebuild -y    # Archive the mapping and start over`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			globalFlags, err := globals.Parse(cmd)
			if err != nil {
				return err
			}
			return Run(cmd.Context(), app, globals.ParseSync(cmd), globalFlags)
		},
	}

	globals.AddSyncFlags(cmd)
	return cmd
}

// NewPlanCommand creates the plan command, a dry run of both phases.
func NewPlanCommand(app application.Application) *cobra.Command {
	var peopleOnly bool

	cmd := &cobra.Command{
		Use:     "plan",
		GroupID: "core",
		Short:   "Show the changes a sync would make",
		Long: `Plan computes the people and class plans without changing Jamf School
or the mapping. The class plan assumes every planned person is created.`,
		Example: `  jamfsync plan
  jamfsync plan -o wide         # Include unchanged records
  jamfsync plan -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			globalFlags, err := globals.Parse(cmd)
			if err != nil {
				return err
			}
			flags := &globals.SyncFlags{DryRun: true, Yes: true, PeopleOnly: peopleOnly}
			return Run(cmd.Context(), app, flags, globalFlags)
		},
	}

	cmd.Flags().BoolVar(&peopleOnly, "people-only", false, "Only plan people")
	return cmd
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(app application.Application) *cobra.Command {
	var (
		entity string
		flags  globals.SyncFlags
	)

	cmd := &cobra.Command{
		Use:     "purge",
		GroupID: "management",
		Short:   "Delete the Jamf records jamfsync created",
		Long: `Purge deletes every Jamf School user and class that carries the jamfsync
marker, classes first. Records created by hand are listed as protected and
kept. The mapping entries of deleted records are removed.

The source is not consulted, so purge also removes records whose IServ
counterpart still exists. The next sync recreates them.`,
		Example: `  jamfsync purge --dry-run       # List what would be deleted
  jamfsync purge --entity group   # Only classes
  jamfsync purge -y               # Delete without asking`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			globalFlags, err := globals.Parse(cmd)
			if err != nil {
				return err
			}
			return Purge(cmd.Context(), app, &flags, directory.EntityType(strings.ToLower(entity)), globalFlags)
		},
	}

	cmd.Flags().StringVar(&entity, "entity", "", "Only purge person or group records")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "Plan the deletions without changing the mirror")
	cmd.Flags().BoolVarP(&flags.Yes, "yes", "y", false, "Delete without asking for confirmation")
	return cmd
}
