// Package entries implements the mapping maintenance commands.
package entries

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ervinkurbegovic/jamfsync/internal/cmd/application"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/emoji"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/globals"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/output"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/prompt"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/lock"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
)

// NewCommand creates the mapping command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mapping",
		GroupID: "management",
		Short:   "Inspect and maintain the identity mapping",
		Long: `The mapping links IServ identities to the Jamf records created for them.
It is the only state jamfsync keeps between passes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newListCommand(app))
	cmd.AddCommand(newArchiveCommand(app))
	cmd.AddCommand(newRestoreCommand(app))
	return cmd
}

func newListCommand(app application.Application) *cobra.Command {
	var entity string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List mapping entries",
		Example: `  jamfsync mapping list
  jamfsync mapping list --entity group -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			globalFlags, err := globals.Parse(cmd)
			if err != nil {
				return err
			}
			entities, err := parseEntity(entity)
			if err != nil {
				return err
			}
			store, err := app.Mapping(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := List(cmd.Context(), store, entities...)
			if err != nil {
				return err
			}
			return output.FormatEntries(app.Out(), entries, globalFlags)
		},
	}

	cmd.Flags().StringVar(&entity, "entity", "", "Only list person or group entries")
	return cmd
}

func newArchiveCommand(app application.Application) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move the live mapping to the archive",
		Long: `Archive moves every live entry to the archive and leaves the live
mapping empty. The next pass re-adopts existing Jamf records by their
identity key. A previous archive is replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes && !prompt.Ask(os.Stdin, os.Stderr, "Archive the live mapping?") {
				return nil
			}
			if err := maintain(cmd.Context(), app, mapping.Store.Archive); err != nil {
				return err
			}
			fmt.Fprintf(app.Out(), "%s Mapping archived\n", emoji.Success)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newRestoreCommand(app application.Application) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Swap the archived mapping back into place",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes && !prompt.Ask(os.Stdin, os.Stderr, "Replace the live mapping with the archive?") {
				return nil
			}
			if err := maintain(cmd.Context(), app, mapping.Store.Restore); err != nil {
				return err
			}
			fmt.Fprintf(app.Out(), "%s Mapping restored\n", emoji.Success)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// maintain runs fn against the store while holding the session lock, so
// archive and restore never interleave with a running pass.
func maintain(ctx context.Context, app application.Application, fn func(mapping.Store, context.Context) error) error {
	store, err := app.Mapping(ctx)
	if err != nil {
		return err
	}
	locker, err := app.Locker(ctx)
	if err != nil {
		return err
	}
	return lock.Do(ctx, locker, func(ctx context.Context) error {
		return fn(store, ctx)
	})
}

// List returns the live entries of the given entity types, people first.
func List(ctx context.Context, store mapping.Reader, entities ...directory.EntityType) ([]mapping.Entry, error) {
	if len(entities) == 0 {
		entities = []directory.EntityType{directory.EntityPerson, directory.EntityGroup}
	}
	var out []mapping.Entry
	for _, entity := range entities {
		entries, err := store.All(ctx, entity)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

func parseEntity(s string) ([]directory.EntityType, error) {
	switch directory.EntityType(strings.ToLower(s)) {
	case "":
		return nil, nil
	case directory.EntityPerson:
		return []directory.EntityType{directory.EntityPerson}, nil
	case directory.EntityGroup:
		return []directory.EntityType{directory.EntityGroup}, nil
	}
	return nil, &errors.ValidationError{Field: "entity", Value: s, Message: "must be person or group"}
}
