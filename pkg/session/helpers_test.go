package session_test

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

// staticDirectory serves a fixed snapshot.
type staticDirectory struct {
	mu       sync.Mutex
	snapshot directory.Snapshot
	err      error
}

func (d *staticDirectory) Snapshot(context.Context) (*directory.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	snap := directory.Snapshot{
		People: slices.Clone(d.snapshot.People),
		Groups: slices.Clone(d.snapshot.Groups),
	}
	return &snap, nil
}

func (d *staticDirectory) set(people []directory.Person, groups ...directory.Group) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshot = directory.Snapshot{People: people, Groups: groups}
}

// fakeMirror is an in-memory mirror that serves snapshots and accepts
// mutations, assigning sequential ids to created records.
type fakeMirror struct {
	mu     sync.Mutex
	people map[string]directory.Person
	groups map[string]directory.Group
	nextID int
	calls  []string

	// fail rejects calls for the listed identity keys or group names.
	fail map[string]error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{
		people: map[string]directory.Person{},
		groups: map[string]directory.Group{},
		fail:   map[string]error{},
	}
}

func (m *fakeMirror) Snapshot(context.Context) (*directory.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := &directory.Snapshot{}
	for _, p := range m.people {
		snap.People = append(snap.People, p)
	}
	for _, g := range m.groups {
		snap.Groups = append(snap.Groups, g)
	}
	slices.SortFunc(snap.People, func(a, b directory.Person) int { return compare(a.IdentityKey, b.IdentityKey) })
	slices.SortFunc(snap.Groups, func(a, b directory.Group) int { return compare(a.Name, b.Name) })
	return snap, nil
}

func (m *fakeMirror) Create(_ context.Context, payload plan.Payload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch p := payload.(type) {
	case *plan.PersonPayload:
		m.calls = append(m.calls, "create:"+p.Username)
		if err := m.fail[p.Username]; err != nil {
			return "", err
		}
		m.nextID++
		id := strconv.Itoa(m.nextID)
		m.people[id] = personFrom(id, p)
		return id, nil
	case *plan.GroupPayload:
		m.calls = append(m.calls, "create:"+p.Name)
		if err := m.fail[p.Name]; err != nil {
			return "", err
		}
		id := fmt.Sprintf("g-%d", len(m.groups)+1)
		m.groups[id] = groupFrom(id, p)
		return id, nil
	}
	return "", fmt.Errorf("unexpected payload %T", payload)
}

func (m *fakeMirror) Update(_ context.Context, mirrorID string, payload plan.Payload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch p := payload.(type) {
	case *plan.PersonPayload:
		m.calls = append(m.calls, "update:"+p.Username)
		if err := m.fail[p.Username]; err != nil {
			return "", err
		}
		updated := personFrom(mirrorID, p)
		if p.Notes == "" {
			updated.Origin = m.people[mirrorID].Origin
		}
		m.people[mirrorID] = updated
	case *plan.GroupPayload:
		m.calls = append(m.calls, "update:"+p.Name)
		if err := m.fail[p.Name]; err != nil {
			return "", err
		}
		m.groups[mirrorID] = groupFrom(mirrorID, p)
	}
	return mirrorID, nil
}

func (m *fakeMirror) Delete(_ context.Context, entity directory.EntityType, mirrorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete:"+mirrorID)
	if entity == directory.EntityGroup {
		delete(m.groups, mirrorID)
		return nil
	}
	delete(m.people, mirrorID)
	return nil
}

func (m *fakeMirror) addManual(p directory.Person, id string) {
	m.add(p, id, directory.OriginManual)
}

// add stores a record that jamfsync did not create.
func (m *fakeMirror) add(p directory.Person, id string, origin directory.Origin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.MirrorID = id
	p.Origin = origin
	p.Groups = nil
	p.Role = ""
	m.people[id] = p
}

func (m *fakeMirror) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

func (m *fakeMirror) personByKey(key string) (directory.Person, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.people {
		if p.IdentityKey == key {
			return p, true
		}
	}
	return directory.Person{}, false
}

func (m *fakeMirror) groupByName(name string) (directory.Group, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.Name == name {
			return g, true
		}
	}
	return directory.Group{}, false
}

// personFrom stores a person the way Jamf does: the marker in the notes is
// the only provenance the mirror reports back.
func personFrom(id string, p *plan.PersonPayload) directory.Person {
	origin := directory.OriginUnknown
	if p.Notes != "" {
		origin = directory.OriginSystemGenerated
	}
	return directory.Person{
		IdentityKey: p.Username,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		LocationID:  p.LocationID,
		MirrorID:    id,
		DisplayName: p.DisplayName,
		Origin:      origin,
	}
}

func groupFrom(id string, p *plan.GroupPayload) directory.Group {
	return directory.Group{
		Name:       p.Name,
		LocationID: p.LocationID,
		MirrorID:   id,
		TeacherIDs: slices.Clone(p.TeacherIDs),
		StudentIDs: slices.Clone(p.StudentIDs),
		Origin:     directory.OriginSystemGenerated,
	}
}

func compare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
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

func class(name string, members ...string) directory.Group {
	return directory.Group{Name: name, Members: members, LocationID: "1", Marker: "jamfsync"}
}

// failingStore rejects every write.
type failingStore struct {
	*mapping.Memory
	err error
}

func (s *failingStore) Put(context.Context, mapping.Entry) error { return s.err }

type fixture struct {
	source *staticDirectory
	mirror *fakeMirror
	store  *mapping.Memory
}

func newFixture(people []directory.Person, groups ...directory.Group) *fixture {
	f := &fixture{
		source: &staticDirectory{},
		mirror: newFakeMirror(),
		store:  mapping.NewMemory(),
	}
	f.source.set(people, groups...)
	return f
}

func (f *fixture) session(t *testing.T, opts ...session.Option) *session.Session {
	t.Helper()
	opts = append([]session.Option{session.WithPersistMaxElapsed(20 * time.Millisecond)}, opts...)
	s, err := session.New(f.source, f.mirror, f.store, f.mirror, opts...)
	require.NoError(t, err)
	return s
}

func (f *fixture) entry(t *testing.T, key string, entity directory.EntityType) (mapping.Entry, bool) {
	t.Helper()
	e, ok, err := f.store.Get(context.Background(), key, entity)
	require.NoError(t, err)
	return e, ok
}
