// Package alerts provides a structured system for status notifications.
package alerts

import (
	"fmt"
	"io"

	"github.com/ervinkurbegovic/jamfsync/internal/cmd/emoji"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

// Level represents the severity of an alert.
type Level int

const (
	// LevelError indicates a failure or error condition.
	LevelError Level = iota
	// LevelWarning indicates a potential issue or important notice.
	LevelWarning
	// LevelInfo indicates general informational messages.
	LevelInfo
	// LevelSuccess indicates successful completion of an operation.
	LevelSuccess
)

// Icon returns the appropriate icon for the alert level.
func (l Level) Icon() string {
	switch l {
	case LevelError:
		return emoji.Error
	case LevelWarning:
		return emoji.Warning
	case LevelSuccess:
		return emoji.Success
	default:
		return emoji.Info
	}
}

// Alert represents a status notification.
type Alert struct {
	Level   Level
	Message string
	Details []string
}

// New creates a new alert with the given level and message.
func New(level Level, format string, args ...any) *Alert {
	return &Alert{Level: level, Message: fmt.Sprintf(format, args...)}
}

// WithDetails adds additional context details to the alert.
func (a *Alert) WithDetails(details ...string) *Alert {
	a.Details = append(a.Details, details...)
	return a
}

// String returns a string representation of the alert.
func (a *Alert) String() string {
	return a.Level.Icon() + " " + a.Message
}

// Write prints alerts, one per line, with their details indented.
func Write(w io.Writer, alerts ...*Alert) error {
	for _, a := range alerts {
		if _, err := fmt.Fprintln(w, a.String()); err != nil {
			return err
		}
		for _, d := range a.Details {
			if _, err := fmt.Fprintf(w, "    %s\n", d); err != nil {
				return err
			}
		}
	}
	return nil
}

// ForResult summarizes a pass for humans.
func ForResult(result *session.Result) []*Alert {
	if result == nil {
		return nil
	}

	var out []*Alert
	for _, p := range []*plan.Plan{result.People, result.Groups} {
		if p != nil && len(p.Warnings) > 0 {
			out = append(out, New(LevelWarning, "%s planning warnings", p.Entity).WithDetails(p.Warnings...))
		}
	}

	switch {
	case result.Declined:
		out = append(out, New(LevelInfo, "Plan declined, nothing was changed"))
	case result.DryRun:
		out = append(out, New(LevelInfo, "Dry run, nothing was changed"))
	case result.Report == nil:
	case !result.Report.IsSuccess():
		a := New(LevelError, "Pass %s finished with failures: %s", result.PassID, result.Report.Summary())
		for _, f := range result.Report.Failures {
			a.WithDetails(fmt.Sprintf("%s %s %s: %s", f.Action, f.Entity, f.IdentityKey, f.Error))
		}
		out = append(out, a)
	case result.Report.HasChanges():
		out = append(out, New(LevelSuccess, "Pass %s: %s", result.PassID, result.Report.Summary()))
	default:
		out = append(out, New(LevelSuccess, "Mirror is up to date"))
	}
	return out
}
