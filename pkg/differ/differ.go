package differ

import (
	"sort"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
)

// Differ handles change detection between directory listings.
type Differ interface {
	// People compares mirror people against source people by identity key.
	People(existing, updated []directory.Person) *PersonChangeset

	// Person compares the synced attribute tuple of one person.
	Person(existing, updated directory.Person) []FieldChange

	// Groups compares mirror groups against source groups by name.
	Groups(existing, updated []directory.Group) *GroupChangeset
}

// Synced person attributes. Together they are the tuple that decides
// whether an existing mirror person needs an UPDATE.
const (
	FieldFirstName  = "first_name"
	FieldLastName   = "last_name"
	FieldEmail      = "email"
	FieldLocationID = "location_id"
)

type differ struct {
	ignoreFields map[string]bool
}

// New creates a Differ with default settings.
func New(opts ...Option) Differ {
	d := &differ{ignoreFields: make(map[string]bool)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// People compares two people listings. Duplicate keys keep their first record.
func (diff *differ) People(existing, updated []directory.Person) *PersonChangeset {
	changeset := &PersonChangeset{
		Added:     []directory.Person{},
		Updated:   []PersonUpdate{},
		Unchanged: []PersonPair{},
		Removed:   []directory.Person{},
	}

	existingMap := make(map[string]directory.Person, len(existing))
	for _, p := range existing {
		if _, dup := existingMap[p.IdentityKey]; !dup {
			existingMap[p.IdentityKey] = p
		}
	}

	newMap := make(map[string]directory.Person, len(updated))
	for _, p := range updated {
		if _, dup := newMap[p.IdentityKey]; dup {
			continue
		}
		newMap[p.IdentityKey] = p

		current, exists := existingMap[p.IdentityKey]
		if !exists {
			changeset.Added = append(changeset.Added, p)
			continue
		}
		if changes := diff.Person(current, p); len(changes) > 0 {
			changeset.Updated = append(changeset.Updated, PersonUpdate{
				Key:      p.IdentityKey,
				Existing: current,
				New:      p,
				Changes:  changes,
			})
		} else {
			changeset.Unchanged = append(changeset.Unchanged, PersonPair{Existing: current, New: p})
		}
	}

	for key, p := range existingMap {
		if _, exists := newMap[key]; !exists {
			changeset.Removed = append(changeset.Removed, p)
		}
	}

	sortPersonChangeset(changeset)
	return changeset
}

// Person returns the differences in the synced attribute tuple.
func (diff *differ) Person(existing, updated directory.Person) []FieldChange {
	var changes []FieldChange
	compare := func(path, oldValue, newValue string) {
		if oldValue != newValue && !diff.ignoreFields[path] {
			changes = append(changes, FieldChange{
				Path:     path,
				OldValue: oldValue,
				NewValue: newValue,
				Type:     ChangeTypeUpdate,
			})
		}
	}

	compare(FieldFirstName, existing.FirstName, updated.FirstName)
	compare(FieldLastName, existing.LastName, updated.LastName)
	compare(FieldEmail, existing.Email, updated.Email)
	compare(FieldLocationID, existing.LocationID, updated.LocationID)
	return changes
}

// Groups compares two group listings by name.
func (diff *differ) Groups(existing, updated []directory.Group) *GroupChangeset {
	changeset := &GroupChangeset{
		Added:   []directory.Group{},
		Matched: []GroupPair{},
		Removed: []directory.Group{},
	}

	existingMap := make(map[string]directory.Group, len(existing))
	for _, g := range existing {
		if _, dup := existingMap[g.Name]; !dup {
			existingMap[g.Name] = g
		}
	}

	newMap := make(map[string]directory.Group, len(updated))
	for _, g := range updated {
		if _, dup := newMap[g.Name]; dup {
			continue
		}
		newMap[g.Name] = g
		if current, exists := existingMap[g.Name]; exists {
			changeset.Matched = append(changeset.Matched, GroupPair{Existing: current, New: g})
		} else {
			changeset.Added = append(changeset.Added, g)
		}
	}

	for name, g := range existingMap {
		if _, exists := newMap[name]; !exists {
			changeset.Removed = append(changeset.Removed, g)
		}
	}

	sort.Slice(changeset.Added, func(i, j int) bool { return changeset.Added[i].Name < changeset.Added[j].Name })
	sort.Slice(changeset.Matched, func(i, j int) bool { return changeset.Matched[i].New.Name < changeset.Matched[j].New.Name })
	sort.Slice(changeset.Removed, func(i, j int) bool { return changeset.Removed[i].Name < changeset.Removed[j].Name })
	return changeset
}

func sortPersonChangeset(c *PersonChangeset) {
	sort.Slice(c.Added, func(i, j int) bool { return c.Added[i].IdentityKey < c.Added[j].IdentityKey })
	sort.Slice(c.Updated, func(i, j int) bool { return c.Updated[i].Key < c.Updated[j].Key })
	sort.Slice(c.Unchanged, func(i, j int) bool { return c.Unchanged[i].New.IdentityKey < c.Unchanged[j].New.IdentityKey })
	sort.Slice(c.Removed, func(i, j int) bool { return c.Removed[i].IdentityKey < c.Removed[j].IdentityKey })
}
