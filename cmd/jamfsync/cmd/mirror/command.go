// Package mirror implements the commands that inspect Jamf School directly.
package mirror

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ervinkurbegovic/jamfsync/internal/cmd/application"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/globals"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/output"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

// NewCommand creates the mirror command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mirror",
		GroupID: "management",
		Short:   "Inspect the Jamf School records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newListCommand(app))
	return cmd
}

func newListCommand(app application.Application) *cobra.Command {
	var entity string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List Jamf School users and classes",
		Long: `List reads the users and classes of the configured location from Jamf
School. The origin column shows whether jamfsync created a record.`,
		Example: `  jamfsync mirror list
  jamfsync mirror list --entity group
  jamfsync mirror list -o wide`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			globalFlags, err := globals.Parse(cmd)
			if err != nil {
				return err
			}
			m, err := app.Mirror(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := List(cmd.Context(), m, directory.EntityType(strings.ToLower(entity)))
			if err != nil {
				return err
			}
			return output.FormatSnapshot(app.Out(), snap, globalFlags)
		},
	}

	cmd.Flags().StringVar(&entity, "entity", "", "Only list person or group records")
	return cmd
}

// List reads a mirror snapshot and keeps the records of the given entity
// type. An empty entity keeps both.
func List(ctx context.Context, m session.Directory, entity directory.EntityType) (*directory.Snapshot, error) {
	switch entity {
	case "", directory.EntityPerson, directory.EntityGroup:
	default:
		return nil, &errors.ValidationError{Field: "entity", Value: string(entity), Message: "must be person or group"}
	}

	snap, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	switch entity {
	case directory.EntityPerson:
		snap.Groups = nil
	case directory.EntityGroup:
		snap.People = nil
	}
	return snap, nil
}
