// Package emoji provides symbol constants for CLI output.
// These symbols create a consistent visual language across all command-line commands.
package emoji

// Status symbols.
const (
	// Success represents successful completion of an operation.
	Success = "✓"

	// Error represents failures.
	Error = "✗"

	// Warning represents non-critical issues, e.g. planner warnings.
	Warning = "!"

	// Optional represents skipped or unchanged items.
	Optional = "-"

	// Info represents informational messages.
	Info = "i"
)

// Plan action symbols.
const (
	Create = "+"
	Update = "~"
	Delete = "×"
)
