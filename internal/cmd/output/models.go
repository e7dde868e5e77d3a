// Package output provides common output formatting utilities for CLI commands.
package output

import (
	"io"

	"github.com/ervinkurbegovic/jamfsync/internal/cmd/constants"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/globals"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/table"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

func isTable(globalFlags *globals.Flags) bool {
	switch globalFlags.Output {
	case constants.FormatTable, constants.FormatWide, "":
		return true
	}
	return false
}

func isWide(globalFlags *globals.Flags) bool {
	return globalFlags.Output == constants.FormatWide
}

// FormatResult writes a pass result. Tables show the planned items and,
// when the pass applied anything, the report summary.
func FormatResult(w io.Writer, result *session.Result, globalFlags *globals.Flags) error {
	formatter := NewFormatter(Format(globalFlags.Output))

	if !isTable(globalFlags) {
		return formatter.Format(w, result)
	}

	tables := []Data{table.PlanToTableData([]*plan.Plan{result.People, result.Groups}, isWide(globalFlags))}
	if result.Report != nil && !result.DryRun && !result.Declined {
		tables = append(tables, table.ReportToTableData(result.Report))
	}
	return formatter.Format(w, tables)
}

// FormatPlans writes the plans of a dry run.
func FormatPlans(w io.Writer, plans []*plan.Plan, globalFlags *globals.Flags) error {
	formatter := NewFormatter(Format(globalFlags.Output))

	var outputData any
	if isTable(globalFlags) {
		outputData = table.PlanToTableData(plans, isWide(globalFlags))
	} else {
		outputData = plans
	}
	return formatter.Format(w, outputData)
}

// FormatEntries writes mapping entries.
func FormatEntries(w io.Writer, entries []mapping.Entry, globalFlags *globals.Flags) error {
	formatter := NewFormatter(Format(globalFlags.Output))

	var outputData any
	if isTable(globalFlags) {
		outputData = table.EntriesToTableData(entries, isWide(globalFlags))
	} else {
		outputData = entries
	}
	return formatter.Format(w, outputData)
}

// FormatSnapshot writes the people and groups of a directory snapshot.
// Tables list people first, then groups, skipping an empty side.
func FormatSnapshot(w io.Writer, snap *directory.Snapshot, globalFlags *globals.Flags) error {
	formatter := NewFormatter(Format(globalFlags.Output))

	if !isTable(globalFlags) {
		return formatter.Format(w, snap)
	}

	var tables []Data
	if len(snap.People) > 0 {
		tables = append(tables, table.PeopleToTableData(snap.People, isWide(globalFlags)))
	}
	if len(snap.Groups) > 0 {
		tables = append(tables, table.GroupsToTableData(snap.Groups, isWide(globalFlags)))
	}
	return formatter.Format(w, tables)
}

// FormatAny handles the common pattern of formatting any data type for output.
func FormatAny(w io.Writer, data any, globalFlags *globals.Flags) error {
	formatter := NewFormatter(Format(globalFlags.Output))
	return formatter.Format(w, data)
}
