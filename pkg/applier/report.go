package applier

import (
	"fmt"
	"time"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
)

// Report is the outcome of applying one or more plans.
type Report struct {
	Created  int       `json:"created" yaml:"created"`
	Updated  int       `json:"updated" yaml:"updated"`
	Deleted  int       `json:"deleted" yaml:"deleted"`
	Skipped  int       `json:"skipped" yaml:"skipped"`
	Failures []Failure `json:"failures" yaml:"failures"`

	// Outcomes holds one entry per plan item in plan order.
	Outcomes []Outcome `json:"-" yaml:"-"`

	Metadata Metadata `json:"metadata" yaml:"metadata"`
}

// Metadata contains timing information about the apply.
type Metadata struct {
	StartTime time.Time     `json:"start_time" yaml:"start_time"`
	EndTime   time.Time     `json:"end_time" yaml:"end_time"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Failure is one item the mirror rejected or that was refused locally.
type Failure struct {
	IdentityKey string               `json:"identity_key" yaml:"identity_key"`
	Entity      directory.EntityType `json:"entity" yaml:"entity"`
	Action      plan.Action          `json:"action" yaml:"action"`
	Error       string               `json:"error" yaml:"error"`

	Err error `json:"-" yaml:"-"`
}

// Outcome records what happened to one plan item.
type Outcome struct {
	Item plan.Item

	// MirrorID is the id the mirror returned, or the item's id for deletes.
	MirrorID string

	// Err is set when the item failed.
	Err error

	// Attempted is false for NOOPs and for items skipped after cancellation.
	Attempted bool

	At time.Time
}

// Succeeded returns true if the item was attempted and the mirror accepted it.
func (o Outcome) Succeeded() bool {
	return o.Attempted && o.Err == nil
}

// NewReport creates an empty report with the start time set.
func NewReport() *Report {
	return &Report{
		Failures: []Failure{},
		Metadata: Metadata{StartTime: time.Now()},
	}
}

// Finalize sets the end time and duration.
func (r *Report) Finalize() {
	r.Metadata.EndTime = time.Now()
	r.Metadata.Duration = r.Metadata.EndTime.Sub(r.Metadata.StartTime)
}

// record folds one outcome into the counters.
func (r *Report) record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch {
	case !o.Attempted:
		r.Skipped++
	case o.Err != nil:
		r.Failures = append(r.Failures, Failure{
			IdentityKey: o.Item.IdentityKey,
			Entity:      o.Item.Entity,
			Action:      o.Item.Action,
			Error:       o.Err.Error(),
			Err:         o.Err,
		})
	case o.Item.Action == plan.ActionCreate:
		r.Created++
	case o.Item.Action == plan.ActionUpdate:
		r.Updated++
	case o.Item.Action == plan.ActionDelete:
		r.Deleted++
	}
}

// Merge adds the counters and outcomes of other into r. The time span
// widens to cover both reports.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Created += other.Created
	r.Updated += other.Updated
	r.Deleted += other.Deleted
	r.Skipped += other.Skipped
	r.Failures = append(r.Failures, other.Failures...)
	r.Outcomes = append(r.Outcomes, other.Outcomes...)

	if r.Metadata.StartTime.IsZero() || (!other.Metadata.StartTime.IsZero() && other.Metadata.StartTime.Before(r.Metadata.StartTime)) {
		r.Metadata.StartTime = other.Metadata.StartTime
	}
	if other.Metadata.EndTime.After(r.Metadata.EndTime) {
		r.Metadata.EndTime = other.Metadata.EndTime
	}
	r.Metadata.Duration = r.Metadata.EndTime.Sub(r.Metadata.StartTime)
}

// IsSuccess returns true if no item failed.
func (r *Report) IsSuccess() bool {
	return len(r.Failures) == 0
}

// HasChanges returns true if the mirror was mutated.
func (r *Report) HasChanges() bool {
	return r.Created+r.Updated+r.Deleted > 0
}

// Summary returns a human-readable summary of the report.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d created, %d updated, %d deleted, %d skipped, %d failed",
		r.Created, r.Updated, r.Deleted, r.Skipped, len(r.Failures))
}
