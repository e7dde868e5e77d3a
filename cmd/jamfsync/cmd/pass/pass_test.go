package pass_test

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ervinkurbegovic/jamfsync"
	"github.com/ervinkurbegovic/jamfsync/cmd/jamfsync/cmd/pass"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/application"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/globals"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

type source []directory.Person

func (s source) Snapshot(context.Context) (*directory.Snapshot, error) {
	return &directory.Snapshot{People: append([]directory.Person(nil), s...)}, nil
}

type mirror struct {
	mu      sync.Mutex
	people  map[string]directory.Person
	rejects string
}

func (m *mirror) Snapshot(context.Context) (*directory.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := &directory.Snapshot{}
	for _, p := range m.people {
		snap.People = append(snap.People, p)
	}
	return snap, nil
}

func (m *mirror) Create(_ context.Context, payload plan.Payload) (string, error) {
	p := payload.(*plan.PersonPayload)
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Username == m.rejects {
		return "", errors.NewTransportError("POST", "users", 422, "invalid")
	}
	id := strconv.Itoa(len(m.people) + 1)
	m.people[id] = directory.Person{
		IdentityKey: p.Username, FirstName: p.FirstName, LastName: p.LastName, Email: p.Email,
		MirrorID: id, Origin: directory.OriginSystemGenerated,
	}
	return id, nil
}

func (m *mirror) Update(_ context.Context, id string, _ plan.Payload) (string, error) {
	return id, nil
}

func (m *mirror) Delete(_ context.Context, _ directory.EntityType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.people, id)
	return nil
}

func (m *mirror) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.people)
}

func newApp(m *mirror, out *bytes.Buffer) *application.Mock {
	people := source{
		{IdentityKey: "alice@school.de", FirstName: "Alice", LastName: "A", Email: "alice@school.de", Role: directory.RoleStudent},
		{IdentityKey: "bob@school.de", FirstName: "Bob", LastName: "B", Email: "bob@school.de", Role: directory.RoleStudent},
	}
	store := mapping.NewMemory()
	return &application.Mock{
		OutWriter: out,
		ClientFunc: func(_ context.Context, opts ...jamfsync.Option) (jamfsync.Client, error) {
			base := []jamfsync.Option{
				jamfsync.WithSource(people),
				jamfsync.WithMirror(m),
				jamfsync.WithMapping(store),
				jamfsync.WithPersistMaxElapsed(20 * time.Millisecond),
			}
			return jamfsync.New(append(base, opts...)...)
		},
	}
}

func TestRunAppliesAndPrints(t *testing.T) {
	m := &mirror{people: map[string]directory.Person{}}
	var out bytes.Buffer
	app := newApp(m, &out)

	err := pass.Run(context.Background(), app, &globals.SyncFlags{Yes: true, PeopleOnly: true}, &globals.Flags{Output: "json", Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, 2, m.size())
	assert.Contains(t, out.String(), `"created": 2`)
}

func TestRunDryRunChangesNothing(t *testing.T) {
	m := &mirror{people: map[string]directory.Person{}}
	var out bytes.Buffer

	err := pass.Run(context.Background(), newApp(m, &out), &globals.SyncFlags{DryRun: true}, &globals.Flags{Quiet: true})
	require.NoError(t, err)
	assert.Zero(t, m.size())
	assert.Contains(t, out.String(), "alice@school.de")
}

func TestRunDeclined(t *testing.T) {
	m := &mirror{people: map[string]directory.Person{}}
	app := newApp(m, &bytes.Buffer{})
	app.ConfirmerFunc = func(bool) session.Confirmer {
		return session.ConfirmFunc(func(context.Context, *plan.Plan) (bool, error) { return false, nil })
	}

	err := pass.Run(context.Background(), app, &globals.SyncFlags{}, &globals.Flags{Quiet: true})
	require.NoError(t, err)
	assert.Zero(t, m.size())
}

func TestRunReportsItemFailures(t *testing.T) {
	m := &mirror{people: map[string]directory.Person{}, rejects: "bob@school.de"}

	err := pass.Run(context.Background(), newApp(m, &bytes.Buffer{}), &globals.SyncFlags{Yes: true, PeopleOnly: true}, &globals.Flags{Quiet: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 item(s) failed")
	assert.Equal(t, 1, m.size())
}

func TestPurgeKeepsManualRecords(t *testing.T) {
	m := &mirror{people: map[string]directory.Person{}}
	var out bytes.Buffer
	app := newApp(m, &out)
	quiet := &globals.Flags{Output: "json", Quiet: true}

	require.NoError(t, pass.Run(context.Background(), app, &globals.SyncFlags{Yes: true, PeopleOnly: true}, quiet))
	m.people["99"] = directory.Person{IdentityKey: "carol@school.de", MirrorID: "99", Origin: directory.OriginManual}
	require.Equal(t, 3, m.size())

	out.Reset()
	require.NoError(t, pass.Purge(context.Background(), app, &globals.SyncFlags{DryRun: true}, directory.EntityPerson, quiet))
	assert.Equal(t, 3, m.size())
	assert.Contains(t, out.String(), `"action": "delete"`)

	require.NoError(t, pass.Purge(context.Background(), app, &globals.SyncFlags{Yes: true}, directory.EntityPerson, quiet))
	require.Equal(t, 1, m.size())
	assert.Equal(t, "carol@school.de", m.people["99"].IdentityKey)
}

func TestPurgeRejectsUnknownEntity(t *testing.T) {
	m := &mirror{people: map[string]directory.Person{}}
	err := pass.Purge(context.Background(), newApp(m, &bytes.Buffer{}), &globals.SyncFlags{Yes: true}, "device", &globals.Flags{Quiet: true})
	assert.True(t, errors.IsValidationError(err))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "no result", pass.Summary(nil))
	assert.Equal(t, "idle", pass.Summary(&session.Result{State: session.StateIdle}))
}
