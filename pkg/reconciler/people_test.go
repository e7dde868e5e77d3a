package reconciler_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ervinkurbegovic/jamfsync/pkg/differ"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	pkgerrors "github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
)

var (
	alice = student("alice@school.example", "Alice", "Adams", "5a")
	bob   = student("bob@school.example", "Bob", "Brown", "5a")
)

func TestPeopleInitialSync(t *testing.T) {
	r := newReconciler(t)
	source := &directory.Snapshot{People: []directory.Person{bob, alice}}

	p, err := r.People(context.Background(), source, &directory.Snapshot{}, mapping.NewMemory())
	require.NoError(t, err)

	assert.Equal(t, []string{"create:alice@school.example", "create:bob@school.example"}, changes(p))
	for _, item := range p.Items {
		assert.Equal(t, directory.OriginSystemGenerated, item.Origin)
		assert.NotEmpty(t, item.Fingerprint)
	}

	payload := p.Items[0].Payload.(*plan.PersonPayload)
	assert.Equal(t, "alice@school.example", payload.Username)
	assert.Equal(t, "Alice Adams", payload.DisplayName)
	assert.Equal(t, []string{"5a"}, payload.MemberOf)
	assert.Equal(t, "1", payload.LocationID)
	assert.NotEmpty(t, payload.Notes)
}

func TestPeopleDeleteOnlySystemGenerated(t *testing.T) {
	source := &directory.Snapshot{People: []directory.Person{alice}}

	t.Run("system generated bob is deleted", func(t *testing.T) {
		mirror := &directory.Snapshot{People: []directory.Person{
			mirrorOf(alice, "1", directory.OriginSystemGenerated),
			mirrorOf(bob, "2", directory.OriginSystemGenerated),
		}}
		p, err := newReconciler(t).People(context.Background(), source, mirror, mapping.NewMemory())
		require.NoError(t, err)
		assert.Equal(t, []string{"delete:bob@school.example"}, changes(p))
		assert.Equal(t, "2", p.Items[0].MirrorID)
	})

	t.Run("manual bob is protected", func(t *testing.T) {
		mirror := &directory.Snapshot{People: []directory.Person{
			mirrorOf(alice, "1", directory.OriginSystemGenerated),
			mirrorOf(bob, "2", directory.OriginManual),
		}}
		p, err := newReconciler(t).People(context.Background(), source, mirror, mapping.NewMemory())
		require.NoError(t, err)
		assert.Empty(t, changes(p))

		protected := p.ByAction(plan.ActionNoop)
		require.Len(t, protected, 2)
		var reasons []string
		for _, item := range protected {
			reasons = append(reasons, item.Reason)
		}
		assert.ElementsMatch(t, []string{plan.ReasonProtected, plan.ReasonUnchanged}, reasons)
	})

	t.Run("unknown origin falls back to mapping", func(t *testing.T) {
		mirror := &directory.Snapshot{People: []directory.Person{
			mirrorOf(alice, "1", directory.OriginUnknown),
			mirrorOf(bob, "2", directory.OriginUnknown),
		}}

		owned := mapping.NewMemory(mapping.Entry{IdentityKey: bob.IdentityKey, MirrorID: "2", EntityType: directory.EntityPerson})
		p, err := newReconciler(t).People(context.Background(), source, mirror, owned)
		require.NoError(t, err)
		assert.Equal(t, []string{"delete:bob@school.example"}, changes(p))

		stale := mapping.NewMemory(mapping.Entry{IdentityKey: bob.IdentityKey, MirrorID: "99", EntityType: directory.EntityPerson})
		p, err = newReconciler(t).People(context.Background(), source, mirror, stale)
		require.NoError(t, err)
		assert.Empty(t, changes(p))

		p, err = newReconciler(t).People(context.Background(), source, mirror, mapping.NewMemory())
		require.NoError(t, err)
		assert.Empty(t, changes(p))
	})
}

func TestPeopleEmailChange(t *testing.T) {
	changed := alice
	changed.Email = "alice.adams@school.example"
	source := &directory.Snapshot{People: []directory.Person{changed}}
	mirror := &directory.Snapshot{People: []directory.Person{mirrorOf(alice, "1", directory.OriginSystemGenerated)}}

	p, err := newReconciler(t).People(context.Background(), source, mirror, mapping.NewMemory())
	require.NoError(t, err)

	require.Equal(t, []string{"update:alice@school.example"}, changes(p))
	item := p.Items[0]
	assert.Equal(t, "1", item.MirrorID)
	assert.Equal(t, []differ.FieldChange{{
		Path:     differ.FieldEmail,
		OldValue: "alice@school.example",
		NewValue: "alice.adams@school.example",
		Type:     differ.ChangeTypeUpdate,
	}}, item.Changes)
	assert.Equal(t, "alice.adams@school.example", item.Payload.(*plan.PersonPayload).Email)
	assert.Equal(t, "Alice Adams", item.Payload.(*plan.PersonPayload).DisplayName)
}

func TestPeopleUpdateKeepsManualProvenance(t *testing.T) {
	changed := alice
	changed.LastName = "Adams-Baker"
	source := &directory.Snapshot{People: []directory.Person{changed}}

	tests := []struct {
		name   string
		origin directory.Origin
	}{
		{"manual", directory.OriginManual},
		{"unmarked", directory.OriginUnknown},
	}
	for _, tt := range tests {
		origin := tt.origin
		t.Run(tt.name, func(t *testing.T) {
			mirror := &directory.Snapshot{People: []directory.Person{mirrorOf(alice, "1", origin)}}
			p, err := newReconciler(t).People(context.Background(), source, mirror, mapping.NewMemory())
			require.NoError(t, err)

			require.Equal(t, []string{"update:alice@school.example"}, changes(p))
			item := p.Items[0]
			assert.Equal(t, origin, item.Origin)
			assert.Empty(t, item.Payload.(*plan.PersonPayload).Notes, "updates must not stamp the marker")
		})
	}
}

func TestPeopleUpdateUsesMappingWhenMirrorOmitsID(t *testing.T) {
	changed := alice
	changed.LastName = "Adams-Baker"
	existing := mirrorOf(alice, "", directory.OriginSystemGenerated)
	store := mapping.NewMemory(mapping.Entry{IdentityKey: alice.IdentityKey, MirrorID: "17", EntityType: directory.EntityPerson})

	p, err := newReconciler(t).People(context.Background(),
		&directory.Snapshot{People: []directory.Person{changed}},
		&directory.Snapshot{People: []directory.Person{existing}}, store)
	require.NoError(t, err)
	require.Len(t, p.Changes(), 1)
	assert.Equal(t, "17", p.Changes()[0].MirrorID)
}

func TestPeopleEmptySource(t *testing.T) {
	mirror := &directory.Snapshot{People: []directory.Person{mirrorOf(alice, "1", directory.OriginSystemGenerated)}}
	_, err := newReconciler(t).People(context.Background(), &directory.Snapshot{}, mirror, mapping.NewMemory())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsEmptySource(err))
}

func TestPeopleTeachersGetNoGroupMemberships(t *testing.T) {
	teacher := student("carol@school.example", "Carol", "Clark", "5a", "lehrkraefte")
	source := &directory.Snapshot{People: []directory.Person{alice, teacher}}

	p, err := newReconciler(t).People(context.Background(), source, nil, nil)
	require.NoError(t, err)

	for _, item := range p.Items {
		payload := item.Payload.(*plan.PersonPayload)
		if item.IdentityKey == teacher.IdentityKey {
			assert.Empty(t, payload.MemberOf)
			assert.NotNil(t, payload.MemberOf)
		} else {
			assert.Equal(t, []string{"5a"}, payload.MemberOf)
		}
	}
}

func TestPeopleDisplayNameCollision(t *testing.T) {
	twin := student("alice.adams2@school.example", "Alice", "Adams")
	manual := mirrorOf(twin, "9", directory.OriginManual)
	source := &directory.Snapshot{People: []directory.Person{alice, twin}}
	mirror := &directory.Snapshot{People: []directory.Person{manual}}

	p, err := newReconciler(t).People(context.Background(), source, mirror, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"create:alice@school.example"}, changes(p))

	name := p.Changes()[0].Payload.(*plan.PersonPayload).DisplayName
	assert.Regexp(t, regexp.MustCompile(`^Alice Adams-[a-z0-9]{8}$`), name)
	assert.Equal(t, "alice@school.example", p.Changes()[0].IdentityKey, "identity keys are never altered")
}

func TestPeopleCollisionWithinPlan(t *testing.T) {
	first := student("a1@school.example", "Sam", "Lee")
	second := student("a2@school.example", "Sam", "Lee")
	p, err := newReconciler(t).People(context.Background(),
		&directory.Snapshot{People: []directory.Person{first, second}}, nil, nil)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, item := range p.Changes() {
		names[item.Payload.(*plan.PersonPayload).DisplayName] = true
	}
	assert.Len(t, names, 2)
	assert.True(t, names["Sam Lee"])
}

func TestPeopleIdempotentAndConvergent(t *testing.T) {
	ctx := context.Background()
	carol := student("carol@school.example", "Carol", "Clark")
	dave := student("dave@school.example", "Dave", "Dunn")
	renamed := bob
	renamed.LastName = "Braun"

	source := &directory.Snapshot{People: []directory.Person{alice, renamed, carol}}
	mirror := &fakeMirror{nextID: 100, snapshot: directory.Snapshot{People: []directory.Person{
		mirrorOf(bob, "2", directory.OriginSystemGenerated),
		mirrorOf(dave, "3", directory.OriginSystemGenerated),
		mirrorOf(student("eve@school.example", "Eve", "Evans"), "4", directory.OriginManual),
	}}}

	r := newReconciler(t)
	first, err := r.People(ctx, source, &mirror.snapshot, mapping.NewMemory())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"delete:dave@school.example",
		"create:alice@school.example",
		"create:carol@school.example",
		"update:bob@school.example",
	}, changes(first))

	mirror.applyPeople(first)

	second, err := r.People(ctx, source, &mirror.snapshot, mapping.NewMemory())
	require.NoError(t, err)
	assert.Empty(t, changes(second), "second pass must be a no-op")

	// Every source identity is now present with source attributes.
	index, _ := mirror.snapshot.PeopleByKey()
	for _, want := range source.People {
		got, ok := index[want.IdentityKey]
		require.True(t, ok, want.IdentityKey)
		assert.Empty(t, differ.New().Person(got, want))
	}
	assert.Contains(t, index, "eve@school.example", "manual records survive")
}

func TestPeopleWithoutMirrorIDAreUnresolved(t *testing.T) {
	changed := alice
	changed.LastName = "Adams-Baker"
	mirror := &directory.Snapshot{People: []directory.Person{
		mirrorOf(alice, "", directory.OriginSystemGenerated),
		mirrorOf(bob, "", directory.OriginSystemGenerated),
	}}

	p, err := newReconciler(t).People(context.Background(),
		&directory.Snapshot{People: []directory.Person{changed}}, mirror, mapping.NewMemory())
	require.NoError(t, err)

	assert.Empty(t, changes(p))
	for _, item := range p.Items {
		assert.Equal(t, plan.ReasonUnresolved, item.Reason, item.IdentityKey)
	}
	assert.Len(t, p.Warnings, 2)
}
