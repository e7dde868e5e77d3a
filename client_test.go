package jamfsync_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ervinkurbegovic/jamfsync"
	"github.com/ervinkurbegovic/jamfsync/pkg/applier"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/lock"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

type source struct{ people []directory.Person }

func (s source) Snapshot(context.Context) (*directory.Snapshot, error) {
	return &directory.Snapshot{People: append([]directory.Person(nil), s.people...)}, nil
}

// mirror accepts every person mutation except those listed in reject.
type mirror struct {
	mu     sync.Mutex
	people map[string]directory.Person
	reject map[string]bool
}

func newMirror() *mirror {
	return &mirror{people: map[string]directory.Person{}, reject: map[string]bool{}}
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
	p, ok := payload.(*plan.PersonPayload)
	if !ok {
		return "", fmt.Errorf("unexpected payload %T", payload)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reject[p.Username] {
		return "", errors.NewTransportError("POST", "users", 422, "rejected")
	}
	id := strconv.Itoa(len(m.people) + 1)
	m.people[id] = directory.Person{
		IdentityKey: p.Username,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		LocationID:  p.LocationID,
		MirrorID:    id,
		Origin:      directory.OriginSystemGenerated,
	}
	return id, nil
}

func (m *mirror) Update(_ context.Context, mirrorID string, _ plan.Payload) (string, error) {
	return mirrorID, nil
}

func (m *mirror) Delete(_ context.Context, _ directory.EntityType, mirrorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.people, mirrorID)
	return nil
}

func (m *mirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.people)
}

func person(key, first string) directory.Person {
	return directory.Person{IdentityKey: key, FirstName: first, LastName: "X", Email: key, Role: directory.RoleStudent}
}

func newClient(t *testing.T, m *mirror, opts ...jamfsync.Option) jamfsync.Client {
	t.Helper()
	src := source{people: []directory.Person{person("alice@school.de", "Alice"), person("bob@school.de", "Bob")}}
	base := []jamfsync.Option{
		jamfsync.WithSource(src),
		jamfsync.WithMirror(m),
		jamfsync.WithMapping(mapping.NewMemory()),
		jamfsync.WithPersistMaxElapsed(20 * time.Millisecond),
	}
	c, err := jamfsync.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.AutoSyncOff() })
	return c
}

func TestNewRequiresDirectories(t *testing.T) {
	_, err := jamfsync.New(jamfsync.WithMirror(newMirror()))
	assert.True(t, errors.IsValidationError(err))

	_, err = jamfsync.New(jamfsync.WithSource(source{}))
	assert.True(t, errors.IsValidationError(err))

	_, err = jamfsync.New(jamfsync.WithSource(source{}), jamfsync.WithMirror(newMirror()), jamfsync.WithConcurrency(0))
	assert.True(t, errors.IsValidationError(err))
}

func TestNewDefaultsToMemoryMapping(t *testing.T) {
	c, err := jamfsync.New(jamfsync.WithSource(source{}), jamfsync.WithMirror(newMirror()))
	require.NoError(t, err)
	assert.IsType(t, &mapping.Memory{}, c.Mapping())
}

func TestSyncFiresHooks(t *testing.T) {
	m := newMirror()
	c := newClient(t, m)

	var applied []string
	var passes int
	c.OnApplied(func(o applier.Outcome) { applied = append(applied, o.Item.IdentityKey) })
	c.OnPass(func(result *session.Result, err error) {
		passes++
		assert.NoError(t, err)
		assert.NotNil(t, result)
	})

	result, err := c.Sync(context.Background(), jamfsync.WithPeopleOnly(true))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Report.Created)
	assert.ElementsMatch(t, []string{"alice@school.de", "bob@school.de"}, applied)
	assert.Equal(t, 1, passes)
	assert.Equal(t, 2, m.count())

	entries, err := c.Mapping().All(context.Background(), directory.EntityPerson)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSyncDryRunAppliesNothing(t *testing.T) {
	m := newMirror()
	c := newClient(t, m)

	var applied int
	c.OnApplied(func(applier.Outcome) { applied++ })

	result, err := c.Sync(context.Background(), jamfsync.WithDryRun(true))
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Len(t, result.People.Items, 2)
	assert.Zero(t, applied)
	assert.Zero(t, m.count())
}

func TestSyncReportsFailures(t *testing.T) {
	m := newMirror()
	m.reject["bob@school.de"] = true
	c := newClient(t, m)

	var failed []applier.Failure
	c.OnFailed(func(f applier.Failure) { failed = append(failed, f) })

	result, err := c.Sync(context.Background(), jamfsync.WithPeopleOnly(true))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Report.Created)
	require.Len(t, failed, 1)
	assert.Equal(t, "bob@school.de", failed[0].IdentityKey)
	assert.Equal(t, plan.ActionCreate, failed[0].Action)
}

func TestAutoSync(t *testing.T) {
	m := newMirror()
	c := newClient(t, m,
		jamfsync.WithAutoSyncInterval(10*time.Millisecond),
		jamfsync.WithAutoSyncOptions(jamfsync.WithPeopleOnly(true)),
	)

	var passes atomic.Int32
	c.OnPass(func(*session.Result, error) { passes.Add(1) })

	require.NoError(t, c.AutoSyncOn())
	assert.Eventually(t, func() bool { return passes.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.AutoSyncOff())
	assert.Equal(t, 2, m.count())

	// Stopping twice is harmless.
	require.NoError(t, c.AutoSyncOff())
}

func TestConcurrentSyncsShareOneLock(t *testing.T) {
	m := newMirror()
	c := newClient(t, m, jamfsync.WithLocker(lock.NewLocal("client-concurrent")))

	var (
		wg        sync.WaitGroup
		completed atomic.Int32
		refused   atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Sync(context.Background(), jamfsync.WithPeopleOnly(true))
			switch {
			case err == nil:
				completed.Add(1)
			case errors.IsSessionInUse(err):
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, completed.Load(), int32(1))
	assert.Equal(t, int32(8), completed.Load()+refused.Load())
	assert.Equal(t, 2, m.count(), "overlapping passes must not duplicate records")

	// The lock is free again once every pass returned.
	_, err := c.Sync(context.Background(), jamfsync.WithPeopleOnly(true))
	require.NoError(t, err)
}

func TestPurgeRemovesSyncedPeople(t *testing.T) {
	m := newMirror()
	c := newClient(t, m)
	_, err := c.Sync(context.Background(), jamfsync.WithPeopleOnly(true))
	require.NoError(t, err)
	require.Equal(t, 2, m.count())
	assert.Same(t, m, c.Mirror())

	var deleted []string
	c.OnApplied(func(o applier.Outcome) { deleted = append(deleted, o.Item.IdentityKey) })

	result, err := c.Purge(context.Background(), jamfsync.WithDryRun(true))
	require.NoError(t, err)
	assert.Len(t, result.People.ByAction(plan.ActionDelete), 2)
	assert.Equal(t, 2, m.count())
	assert.Empty(t, deleted, "dry runs fire no applied hooks")

	result, err = c.Purge(context.Background(), jamfsync.WithEntity(directory.EntityPerson))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Report.Deleted)
	assert.Zero(t, m.count())
	assert.ElementsMatch(t, []string{"alice@school.de", "bob@school.de"}, deleted)
}

func TestAutoSyncRejectsInvalidInterval(t *testing.T) {
	c := newClient(t, newMirror(), jamfsync.WithAutoSyncInterval(0))
	err := c.AutoSyncOn()
	assert.True(t, errors.IsValidationError(err))
}
