package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ervinkurbegovic/jamfsync/cmd/jamfsync/cmd/entries"
	"github.com/ervinkurbegovic/jamfsync/cmd/jamfsync/cmd/mirror"
	"github.com/ervinkurbegovic/jamfsync/cmd/jamfsync/cmd/pass"
	"github.com/ervinkurbegovic/jamfsync/cmd/jamfsync/cmd/watch"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/globals"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/output"
	"github.com/ervinkurbegovic/jamfsync/pkg/logging"
)

// Execute runs the jamfsync CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "jamfsync",
		Short:   "Synchronize IServ users and groups into Jamf School",
		Version: a.version,
		Long: `jamfsync keeps a Jamf School tenant in step with an IServ school server.

IServ is the source of truth. People and classes that jamfsync created in
Jamf are created, updated and deleted to match it; records created by hand
in Jamf are left alone. The correspondence between both sides is kept in a
mapping store so that repeated passes are idempotent.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands:",
	})

	// Add global flags
	globals.AddFlags(rootCmd)
	rootCmd.PersistentFlags().StringVar(&a.config.ConfigFile, "config", "", "config file (default is $HOME/.jamfsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.config.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")

	rootCmd.SetVersionTemplate("jamfsync {{.Version}}\n")

	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	flags, err := globals.Parse(cmd)
	if err != nil {
		return err
	}
	if _, err := output.ParseFormat(flags.Output); err != nil {
		return err
	}
	logLevel := mustGetString(cmd, "log-level")

	if a.config.ConfigFile != "" && cmd.Flags().Changed("config") {
		reloaded, err := reloadConfig(a.config.ConfigFile)
		if err != nil {
			return err
		}
		a.config = reloaded
	}

	a.config.UpdateFromFlags(flags.Verbose, flags.Quiet, flags.NoColor, flags.Output, logLevel)

	// Reinitialize logger with updated config
	logger := NewLogger(a.config)
	a.logger = &logger
	logging.SetDefault(logger)

	if used := a.config.ConfigFile; used != "" {
		a.logger.Debug().Str("file", used).Msg("Using config file")
	}
	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(pass.NewSyncCommand(a))
	rootCmd.AddCommand(pass.NewPlanCommand(a))
	rootCmd.AddCommand(watch.NewCommand(a))

	// Management commands
	rootCmd.AddCommand(entries.NewCommand(a))
	rootCmd.AddCommand(mirror.NewCommand(a))
	rootCmd.AddCommand(pass.NewPurgeCommand(a))

	// Utility commands
	rootCmd.AddCommand(a.newVersionCommand())
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags, err := globals.Parse(cmd)
			if err != nil {
				return err
			}
			info := struct {
				Version string `json:"version" yaml:"version"`
				Commit  string `json:"commit" yaml:"commit"`
				Date    string `json:"date" yaml:"date"`
				BuiltBy string `json:"built_by" yaml:"built_by"`
			}{a.version, a.commit, a.date, a.builtBy}
			if flags.Output == "" {
				_, err := fmt.Fprintf(a.out, "jamfsync %s (commit %s, built %s by %s)\n", info.Version, info.Commit, info.Date, info.BuiltBy)
				return err
			}
			return output.FormatAny(a.out, info, flags)
		},
	}
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
