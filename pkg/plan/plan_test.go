package plan_test

import (
	"testing"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
	"github.com/stretchr/testify/assert"
)

func TestSortOrdersPhases(t *testing.T) {
	p := plan.New(directory.EntityPerson)
	p.Add(
		plan.Item{Action: plan.ActionNoop, IdentityKey: "a"},
		plan.Item{Action: plan.ActionUpdate, IdentityKey: "b"},
		plan.Item{Action: plan.ActionCreate, IdentityKey: "d"},
		plan.Item{Action: plan.ActionDelete, IdentityKey: "z"},
		plan.Item{Action: plan.ActionCreate, IdentityKey: "c"},
	)
	p.Sort()

	var got []string
	for _, item := range p.Items {
		got = append(got, string(item.Action)+":"+item.IdentityKey)
	}
	assert.Equal(t, []string{"delete:z", "create:c", "create:d", "update:b", "noop:a"}, got)
}

func TestChangesAndCounts(t *testing.T) {
	p := plan.New(directory.EntityGroup)
	assert.True(t, p.IsEmpty())

	p.Add(
		plan.Item{Action: plan.ActionNoop, IdentityKey: "5a", Reason: plan.ReasonUnchanged},
		plan.Item{Action: plan.ActionCreate, IdentityKey: "6b"},
	)
	assert.False(t, p.IsEmpty())
	assert.Len(t, p.Changes(), 1)
	assert.Len(t, p.ByAction(plan.ActionNoop), 1)
	assert.Equal(t, 1, p.Counts()[plan.ActionCreate])
	assert.Equal(t, "group plan: 1 create, 0 update, 0 delete, 1 unchanged", p.Summary())

	var nilPlan *plan.Plan
	assert.True(t, nilPlan.IsEmpty())
}

func TestPayloadEntity(t *testing.T) {
	var p plan.Payload = &plan.PersonPayload{}
	assert.Equal(t, directory.EntityPerson, p.Entity())
	p = &plan.GroupPayload{}
	assert.Equal(t, directory.EntityGroup, p.Entity())
}

func TestWarn(t *testing.T) {
	p := plan.New(directory.EntityGroup)
	p.Warn("member %s of %s has no mirror id", "alice", "5a")
	assert.Equal(t, []string{"member alice of 5a has no mirror id"}, p.Warnings)
}
