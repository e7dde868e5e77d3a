// Package directory defines the records both sides of a sync exchange.
//
// A Snapshot is a point-in-time listing of people and groups read from
// either the source (IServ) or the mirror (Jamf School). Snapshots are
// rebuilt on every pass and never persisted.
package directory

import (
	"slices"
	"strings"
)

// Role classifies a person for group membership seeding.
type Role string

// Roles.
const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Origin records who created a mirror record.
type Origin string

// Origins.
const (
	// OriginUnknown means the mirror did not report a provenance marker.
	OriginUnknown         Origin = ""
	OriginSystemGenerated Origin = "system_generated"
	OriginManual          Origin = "manual"
)

// EntityType distinguishes people from groups in plans and mappings.
type EntityType string

// Entity types.
const (
	EntityPerson EntityType = "person"
	EntityGroup  EntityType = "group"
)

// String implements fmt.Stringer.
func (e EntityType) String() string { return string(e) }

// Person is one user account.
type Person struct {
	IdentityKey string   `json:"identity_key" yaml:"identity_key" validate:"required,normalized"`
	FirstName   string   `json:"first_name" yaml:"first_name"`
	LastName    string   `json:"last_name" yaml:"last_name"`
	Email       string   `json:"email,omitempty" yaml:"email,omitempty" validate:"omitempty,email"`
	Groups      []string `json:"groups,omitempty" yaml:"groups,omitempty"`
	LocationID  string   `json:"location_id,omitempty" yaml:"location_id,omitempty"`
	Role        Role     `json:"role,omitempty" yaml:"role,omitempty" validate:"omitempty,oneof=student teacher"`

	// Mirror-side fields.
	MirrorID    string `json:"mirror_id,omitempty" yaml:"mirror_id,omitempty"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Origin      Origin `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// Name returns the generated display name for the person.
func (p Person) Name() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// InGroup reports whether the person is a member of the named group.
func (p Person) InGroup(name string) bool {
	return slices.Contains(p.Groups, name)
}

// Group is one class or membership list.
type Group struct {
	Name       string   `json:"name" yaml:"name" validate:"required"`
	Members    []string `json:"members,omitempty" yaml:"members,omitempty"`
	LocationID string   `json:"location_id,omitempty" yaml:"location_id,omitempty"`

	// Marker is the source attribute that flags a group for syncing.
	Marker string `json:"marker,omitempty" yaml:"marker,omitempty"`

	// Mirror-side fields. Nil id lists mean the mirror did not report membership.
	MirrorID   string   `json:"mirror_id,omitempty" yaml:"mirror_id,omitempty"`
	TeacherIDs []string `json:"teacher_ids,omitempty" yaml:"teacher_ids,omitempty"`
	StudentIDs []string `json:"student_ids,omitempty" yaml:"student_ids,omitempty"`
	Origin     Origin   `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// MembershipKnown reports whether the mirror listed the group's members.
func (g Group) MembershipKnown() bool {
	return g.TeacherIDs != nil || g.StudentIDs != nil
}

// Snapshot is a point-in-time listing of one directory.
type Snapshot struct {
	People []Person `json:"people" yaml:"people" validate:"dive"`
	Groups []Group  `json:"groups" yaml:"groups" validate:"dive"`
}

// NormalizeKey trims and lower-cases an identity key so that both sides
// of the join compare equal regardless of how each directory stores it.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// PeopleByKey indexes people by identity key. When a key occurs more than
// once the first record wins and the rest are returned as duplicates.
func (s *Snapshot) PeopleByKey() (map[string]Person, []Person) {
	index := make(map[string]Person, len(s.People))
	var dups []Person
	for _, p := range s.People {
		if _, ok := index[p.IdentityKey]; ok {
			dups = append(dups, p)
			continue
		}
		index[p.IdentityKey] = p
	}
	return index, dups
}

// GroupsByName indexes groups by name with the same duplicate rule as PeopleByKey.
func (s *Snapshot) GroupsByName() (map[string]Group, []Group) {
	index := make(map[string]Group, len(s.Groups))
	var dups []Group
	for _, g := range s.Groups {
		if _, ok := index[g.Name]; ok {
			dups = append(dups, g)
			continue
		}
		index[g.Name] = g
	}
	return index, dups
}

// Group returns the named group if present.
func (s *Snapshot) Group(name string) (Group, bool) {
	for _, g := range s.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}
