// Package plan describes the mutations a sync pass intends to make.
package plan

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ervinkurbegovic/jamfsync/pkg/differ"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
)

// Action is the mutation an Item requests.
type Action string

// Actions, in execution order.
const (
	ActionDelete Action = "delete"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionNoop   Action = "noop"
)

// Phases lists the mutating actions in the order they must run.
// Every item of one phase completes before the next phase starts.
var Phases = []Action{ActionDelete, ActionCreate, ActionUpdate}

func (a Action) rank() int {
	switch a {
	case ActionDelete:
		return 0
	case ActionCreate:
		return 1
	case ActionUpdate:
		return 2
	default:
		return 3
	}
}

// Reasons attached to NOOP items.
const (
	ReasonUnchanged  = "unchanged"
	ReasonProtected  = "protected"
	ReasonUnresolved = "unresolved"
)

// Payload is the mirror-facing body of a CREATE or UPDATE.
// It is either a *PersonPayload or a *GroupPayload.
type Payload interface {
	Entity() directory.EntityType
}

// PersonPayload is the body sent to create or update a mirror person.
type PersonPayload struct {
	Username    string   `json:"username" yaml:"username"`
	DisplayName string   `json:"display_name" yaml:"display_name"`
	Email       string   `json:"email" yaml:"email"`
	FirstName   string   `json:"first_name" yaml:"first_name"`
	LastName    string   `json:"last_name" yaml:"last_name"`
	LocationID  string   `json:"location_id,omitempty" yaml:"location_id,omitempty"`
	MemberOf    []string `json:"member_of" yaml:"member_of"`
	Notes       string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Entity implements Payload.
func (*PersonPayload) Entity() directory.EntityType { return directory.EntityPerson }

// GroupPayload is the body sent to create or update a mirror group. The id
// lists replace the mirror's membership wholesale.
type GroupPayload struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	LocationID  string   `json:"location_id,omitempty" yaml:"location_id,omitempty"`
	TeacherIDs  []string `json:"teacher_ids" yaml:"teacher_ids"`
	StudentIDs  []string `json:"student_ids" yaml:"student_ids"`
}

// Entity implements Payload.
func (*GroupPayload) Entity() directory.EntityType { return directory.EntityGroup }

// Item is one planned mutation.
type Item struct {
	Action      Action               `json:"action" yaml:"action"`
	Entity      directory.EntityType `json:"entity" yaml:"entity"`
	IdentityKey string               `json:"identity_key" yaml:"identity_key"`
	MirrorID    string               `json:"mirror_id,omitempty" yaml:"mirror_id,omitempty"`
	Origin      directory.Origin     `json:"origin,omitempty" yaml:"origin,omitempty"`
	Payload     Payload              `json:"payload,omitempty" yaml:"payload,omitempty"`

	// Fingerprint of the desired attributes, stored in the mapping on success.
	Fingerprint string               `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Changes     []differ.FieldChange `json:"changes,omitempty" yaml:"changes,omitempty"`
	Reason      string               `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// String renders the item as "action entity key".
func (i Item) String() string {
	return fmt.Sprintf("%s %s %s", i.Action, i.Entity, i.IdentityKey)
}

// Plan is the ordered list of items for one entity type.
type Plan struct {
	Entity    directory.EntityType `json:"entity" yaml:"entity"`
	Items     []Item               `json:"items" yaml:"items"`
	Warnings  []string             `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	CreatedAt time.Time            `json:"created_at" yaml:"created_at"`
}

// New creates an empty plan.
func New(entity directory.EntityType) *Plan {
	return &Plan{Entity: entity, Items: []Item{}, CreatedAt: time.Now().UTC()}
}

// Add appends items.
func (p *Plan) Add(items ...Item) {
	p.Items = append(p.Items, items...)
}

// Warn records a non-fatal planning problem.
func (p *Plan) Warn(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// Sort orders items DELETE, CREATE, UPDATE, NOOP and by identity key within an action.
func (p *Plan) Sort() {
	slices.SortStableFunc(p.Items, func(a, b Item) int {
		if c := cmp.Compare(a.Action.rank(), b.Action.rank()); c != 0 {
			return c
		}
		return strings.Compare(a.IdentityKey, b.IdentityKey)
	})
}

// ByAction returns the items with the given action, in plan order.
func (p *Plan) ByAction(action Action) []Item {
	var out []Item
	for _, item := range p.Items {
		if item.Action == action {
			out = append(out, item)
		}
	}
	return out
}

// Changes returns every item that mutates the mirror.
func (p *Plan) Changes() []Item {
	out := []Item{}
	for _, item := range p.Items {
		if item.Action != ActionNoop {
			out = append(out, item)
		}
	}
	return out
}

// IsEmpty returns true when the plan would not mutate anything.
func (p *Plan) IsEmpty() bool {
	return p == nil || len(p.Changes()) == 0
}

// Counts returns the number of items per action.
func (p *Plan) Counts() map[Action]int {
	counts := make(map[Action]int, 4)
	for _, item := range p.Items {
		counts[item.Action]++
	}
	return counts
}

// Summary returns a one-line description of the plan.
func (p *Plan) Summary() string {
	c := p.Counts()
	return fmt.Sprintf("%s plan: %d create, %d update, %d delete, %d unchanged",
		p.Entity, c[ActionCreate], c[ActionUpdate], c[ActionDelete], c[ActionNoop])
}
