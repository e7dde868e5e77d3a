// Package differ compares source and mirror directory listings.
package differ

import (
	"fmt"
	"strings"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeAdd indicates an item exists only in the source.
	ChangeTypeAdd ChangeType = "add"
	// ChangeTypeUpdate indicates an item differs between the directories.
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeRemove indicates an item exists only in the mirror.
	ChangeTypeRemove ChangeType = "remove"
)

// FieldChange represents a change to a specific field.
type FieldChange struct {
	Path     string     `json:"path" yaml:"path"`
	OldValue string     `json:"old_value" yaml:"old_value"`
	NewValue string     `json:"new_value" yaml:"new_value"`
	Type     ChangeType `json:"type" yaml:"type"`
}

// String renders the change as "path: old -> new".
func (c FieldChange) String() string {
	return fmt.Sprintf("%s: %q -> %q", c.Path, c.OldValue, c.NewValue)
}

// PersonUpdate is a person present on both sides with differing attributes.
type PersonUpdate struct {
	Key      string
	Existing directory.Person // mirror record
	New      directory.Person // source record
	Changes  []FieldChange
}

// PersonPair is a person present on both sides with equal attributes.
type PersonPair struct {
	Existing directory.Person
	New      directory.Person
}

// PersonChangeset is the set difference between two people listings.
type PersonChangeset struct {
	Added     []directory.Person // source only
	Updated   []PersonUpdate
	Unchanged []PersonPair
	Removed   []directory.Person // mirror only
}

// GroupPair is a group present in both listings.
type GroupPair struct {
	Existing directory.Group
	New      directory.Group
}

// GroupChangeset is the set difference between two group listings by name.
type GroupChangeset struct {
	Added   []directory.Group
	Matched []GroupPair
	Removed []directory.Group
}

// HasChanges returns true if anything differs.
func (c *PersonChangeset) HasChanges() bool {
	return len(c.Added) > 0 || len(c.Updated) > 0 || len(c.Removed) > 0
}

// Summary returns a one-line count summary.
func (c *PersonChangeset) Summary() string {
	return fmt.Sprintf("people: %d added, %d updated, %d removed, %d unchanged",
		len(c.Added), len(c.Updated), len(c.Removed), len(c.Unchanged))
}

// String renders the changeset with one line per change.
func (c *PersonChangeset) String() string {
	var b strings.Builder
	b.WriteString(c.Summary())
	for _, p := range c.Added {
		fmt.Fprintf(&b, "\n  + %s", p.IdentityKey)
	}
	for _, u := range c.Updated {
		fmt.Fprintf(&b, "\n  ~ %s", u.Key)
		for _, fc := range u.Changes {
			fmt.Fprintf(&b, "\n      %s", fc)
		}
	}
	for _, p := range c.Removed {
		fmt.Fprintf(&b, "\n  - %s", p.IdentityKey)
	}
	return b.String()
}

// Summary returns a one-line count summary.
func (c *GroupChangeset) Summary() string {
	return fmt.Sprintf("groups: %d added, %d matched, %d removed",
		len(c.Added), len(c.Matched), len(c.Removed))
}
