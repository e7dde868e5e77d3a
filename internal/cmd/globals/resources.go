package globals

import "github.com/spf13/cobra"

// SyncFlags holds the flags shared by commands that run a pass.
type SyncFlags struct {
	DryRun     bool
	Yes        bool
	PeopleOnly bool
	Rebuild    bool
}

// ParseSync extracts sync flags from a command.
// The command must have had AddSyncFlags called on it, otherwise this will panic.
func ParseSync(cmd *cobra.Command) *SyncFlags {
	return &SyncFlags{
		DryRun:     mustGetBool(cmd, "dry-run"),
		Yes:        mustGetBool(cmd, "yes"),
		PeopleOnly: mustGetBool(cmd, "people-only"),
		Rebuild:    mustGetBool(cmd, "rebuild"),
	}
}

// AddSyncFlags adds pass flags to a command.
func AddSyncFlags(cmd *cobra.Command) *SyncFlags {
	flags := &SyncFlags{}

	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false,
		"Plan both phases without changing the mirror")
	cmd.Flags().BoolVarP(&flags.Yes, "yes", "y", false,
		"Apply plans without asking for confirmation")
	cmd.Flags().BoolVar(&flags.PeopleOnly, "people-only", false,
		"Skip the group phase")
	cmd.Flags().BoolVar(&flags.Rebuild, "rebuild", false,
		"Archive the mapping and rebuild it from scratch")

	return flags
}

// mustGetBool retrieves a bool flag value or panics if the flag doesn't exist.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
