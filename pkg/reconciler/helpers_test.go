package reconciler_test

import (
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
	"github.com/ervinkurbegovic/jamfsync/pkg/reconciler"
)

func newReconciler(t *testing.T, opts ...reconciler.Option) reconciler.Reconciler {
	t.Helper()
	opts = append([]reconciler.Option{reconciler.WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	r, err := reconciler.New(opts...)
	require.NoError(t, err)
	return r
}

func student(key, first, last string, groups ...string) directory.Person {
	return directory.Person{
		IdentityKey: key,
		FirstName:   first,
		LastName:    last,
		Email:       key,
		LocationID:  "1",
		Groups:      groups,
		Role:        directory.RoleStudent,
	}
}

func mirrorOf(p directory.Person, id string, origin directory.Origin) directory.Person {
	p.MirrorID = id
	p.Origin = origin
	p.DisplayName = p.Name()
	p.Groups = nil
	p.Role = ""
	return p
}

// changes renders the mutating items as "action:key".
func changes(p *plan.Plan) []string {
	out := []string{}
	for _, item := range p.Changes() {
		out = append(out, string(item.Action)+":"+item.IdentityKey)
	}
	return out
}

// fakeMirror applies a person plan to a snapshot the way a well-behaved
// mirror would, assigning sequential ids to created records.
type fakeMirror struct {
	snapshot directory.Snapshot
	nextID   int
}

func (f *fakeMirror) applyPeople(p *plan.Plan) map[string]string {
	created := map[string]string{}
	for _, item := range p.Changes() {
		switch item.Action {
		case plan.ActionDelete:
			kept := f.snapshot.People[:0]
			for _, person := range f.snapshot.People {
				if person.IdentityKey != item.IdentityKey {
					kept = append(kept, person)
				}
			}
			f.snapshot.People = kept
		case plan.ActionCreate, plan.ActionUpdate:
			payload := item.Payload.(*plan.PersonPayload)
			rec := directory.Person{
				IdentityKey: payload.Username,
				FirstName:   payload.FirstName,
				LastName:    payload.LastName,
				Email:       payload.Email,
				LocationID:  payload.LocationID,
				DisplayName: payload.DisplayName,
				Origin:      directory.OriginSystemGenerated,
				MirrorID:    item.MirrorID,
			}
			if item.Action == plan.ActionCreate {
				f.nextID++
				rec.MirrorID = strconv.Itoa(f.nextID)
				created[rec.IdentityKey] = rec.MirrorID
				f.snapshot.People = append(f.snapshot.People, rec)
				continue
			}
			for i := range f.snapshot.People {
				if f.snapshot.People[i].IdentityKey == rec.IdentityKey {
					f.snapshot.People[i] = rec
				}
			}
		}
	}
	return created
}
