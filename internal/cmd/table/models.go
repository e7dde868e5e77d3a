// Package table provides common table formatting utilities for CLI commands.
package table

import (
	"strconv"
	"strings"
	"time"

	"github.com/ervinkurbegovic/jamfsync/internal/cmd/emoji"
	"github.com/ervinkurbegovic/jamfsync/pkg/applier"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align // Optional: column alignment
}

// PlanToTableData converts plan items to table format. Unchanged items are
// only listed in wide mode.
func PlanToTableData(plans []*plan.Plan, wide bool) Data {
	headers := []string{"Action", "Entity", "Identity", "Mirror ID", "Details"}
	if wide {
		headers = append(headers, "Origin", "Fingerprint")
	}

	var rows [][]string
	for _, p := range plans {
		if p == nil {
			continue
		}
		for _, item := range p.Items {
			if item.Action == plan.ActionNoop && !wide {
				continue
			}
			row := []string{
				ActionSymbol(item.Action) + " " + string(item.Action),
				item.Entity.String(),
				item.IdentityKey,
				orDash(item.MirrorID),
				ItemDetails(item),
			}
			if wide {
				row = append(row, orDash(string(item.Origin)), orDash(short(item.Fingerprint)))
			}
			rows = append(rows, row)
		}
	}

	return Data{Headers: headers, Rows: rows}
}

// ItemDetails describes why an item is in the plan.
func ItemDetails(item plan.Item) string {
	if len(item.Changes) > 0 {
		parts := make([]string, 0, len(item.Changes))
		for _, c := range item.Changes {
			parts = append(parts, c.String())
		}
		return truncate(strings.Join(parts, "; "), 80)
	}
	return orDash(item.Reason)
}

// ReportToTableData converts a report to a summary table followed by one row
// per failure.
func ReportToTableData(report *applier.Report) Data {
	rows := [][]string{
		{emoji.Success + " created", strconv.Itoa(report.Created), ""},
		{emoji.Success + " updated", strconv.Itoa(report.Updated), ""},
		{emoji.Success + " deleted", strconv.Itoa(report.Deleted), ""},
		{emoji.Optional + " skipped", strconv.Itoa(report.Skipped), ""},
		{emoji.Error + " failed", strconv.Itoa(len(report.Failures)), ""},
	}
	for _, f := range report.Failures {
		rows = append(rows, []string{
			"",
			string(f.Action) + " " + f.Entity.String(),
			f.IdentityKey + ": " + truncate(f.Error, 80),
		})
	}

	return Data{
		Headers:         []string{"Result", "Count", "Details"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight, AlignLeft},
	}
}

// EntriesToTableData converts mapping entries to table format.
func EntriesToTableData(entries []mapping.Entry, wide bool) Data {
	headers := []string{"Identity", "Entity", "Mirror ID", "Last Sync"}
	if wide {
		headers = append(headers, "Fingerprint")
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		row := []string{
			e.IdentityKey,
			e.EntityType.String(),
			e.MirrorID,
			formatTime(e.LastSyncAt),
		}
		if wide {
			row = append(row, e.Fingerprint)
		}
		rows = append(rows, row)
	}

	return Data{Headers: headers, Rows: rows}
}

// PeopleToTableData converts mirror people to table format.
func PeopleToTableData(people []directory.Person, wide bool) Data {
	headers := []string{"Mirror ID", "Username", "Name", "Email", "Origin"}
	if wide {
		headers = append(headers, "Groups", "Location")
	}

	rows := make([][]string, 0, len(people))
	for _, p := range people {
		name := strings.TrimSpace(p.FirstName + " " + p.LastName)
		row := []string{
			orDash(p.MirrorID),
			p.IdentityKey,
			orDash(name),
			orDash(p.Email),
			orDash(string(p.Origin)),
		}
		if wide {
			row = append(row, orDash(strings.Join(p.Groups, ", ")), orDash(p.LocationID))
		}
		rows = append(rows, row)
	}

	return Data{Headers: headers, Rows: rows}
}

// GroupsToTableData converts mirror groups to table format.
func GroupsToTableData(groups []directory.Group, wide bool) Data {
	headers := []string{"Mirror ID", "Name", "Students", "Teachers", "Origin"}
	if wide {
		headers = append(headers, "Location")
	}

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		row := []string{
			orDash(g.MirrorID),
			g.Name,
			strconv.Itoa(len(g.StudentIDs)),
			strconv.Itoa(len(g.TeacherIDs)),
			orDash(string(g.Origin)),
		}
		if wide {
			row = append(row, orDash(g.LocationID))
		}
		rows = append(rows, row)
	}

	return Data{
		Headers:         headers,
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignRight, AlignRight, AlignLeft},
	}
}

// ActionSymbol returns the marker shown next to an action.
func ActionSymbol(a plan.Action) string {
	switch a {
	case plan.ActionCreate:
		return emoji.Create
	case plan.ActionUpdate:
		return emoji.Update
	case plan.ActionDelete:
		return emoji.Delete
	default:
		return emoji.Optional
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func short(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
