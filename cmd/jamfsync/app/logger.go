package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ervinkurbegovic/jamfsync/pkg/logging"
)

// levelEnv names the variables consulted when no flag picks a level. The
// prefixed one wins so a host-wide LOG_LEVEL does not leak into the daemon.
var levelEnv = []string{"JAMFSYNC_LOG_LEVEL", "LOG_LEVEL"}

// selectable are the levels an operator may ask for.
var selectable = []zerolog.Level{
	zerolog.TraceLevel,
	zerolog.DebugLevel,
	zerolog.InfoLevel,
	zerolog.WarnLevel,
	zerolog.ErrorLevel,
}

// NewLogger builds the process logger. Info shows one line per pass, debug
// adds applied items, snapshot sizes, retried Jamf requests and the caller.
//
// The level is taken from --log-level, then -v or -q, then the environment,
// and defaults to info.
func NewLogger(config *Config) zerolog.Logger {
	level := determineLogLevel(config)
	return logging.NewLoggerFromConfig(&logging.Config{
		Level:     level,
		Format:    config.LogFormat,
		Output:    config.LogOutput,
		NoColor:   config.NoColor,
		AddCaller: level == zerolog.DebugLevel.String() || level == zerolog.TraceLevel.String(),
	})
}

func determineLogLevel(config *Config) string {
	if config.LogLevel != "" {
		level := validateLogLevel(config.LogLevel)
		if level != strings.ToLower(strings.TrimSpace(config.LogLevel)) {
			fmt.Fprintf(os.Stderr, "Warning: unknown log level %q, using %q\n", config.LogLevel, level)
		}
		return level
	}

	switch {
	case config.Verbose && config.Quiet:
		// Unattended runs pass -q; an added -v must not flood their logs.
		fmt.Fprintf(os.Stderr, "Warning: both --verbose and --quiet given, using --quiet\n")
		return zerolog.WarnLevel.String()
	case config.Quiet:
		return zerolog.WarnLevel.String()
	case config.Verbose:
		return zerolog.DebugLevel.String()
	}

	for _, name := range levelEnv {
		if level := os.Getenv(name); level != "" {
			return validateLogLevel(level)
		}
	}
	return zerolog.InfoLevel.String()
}

// validateLogLevel returns level in lower case when it is selectable and
// info otherwise.
func validateLogLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	for _, l := range selectable {
		if l.String() == level {
			return level
		}
	}
	return zerolog.InfoLevel.String()
}
