package mapping

import (
	"context"
	"maps"
	"sync"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
)

// Memory is an in-process Store used for dry runs and tests.
type Memory struct {
	mu      sync.RWMutex
	live    map[entryKey]Entry
	archive map[entryKey]Entry
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store seeded with entries.
func NewMemory(entries ...Entry) *Memory {
	m := &Memory{live: make(map[entryKey]Entry)}
	for _, e := range entries {
		m.live[entryKey{e.IdentityKey, e.EntityType}] = e
	}
	return m
}

// Get implements Reader.
func (m *Memory) Get(_ context.Context, key string, entity directory.EntityType) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.live[entryKey{key, entity}]
	return e, ok, nil
}

// All implements Reader.
func (m *Memory) All(_ context.Context, entity directory.EntityType) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.live))
	for k, e := range m.live {
		if k.entity == entity {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	evictMirrorID(m.live, entry)
	m.live[entryKey{entry.IdentityKey, entry.EntityType}] = entry
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string, entity directory.EntityType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, entryKey{key, entity})
	return nil
}

// Archive implements Store.
func (m *Memory) Archive(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archive = m.live
	m.live = make(map[entryKey]Entry)
	return nil
}

// Restore implements Store.
func (m *Memory) Restore(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.archive == nil {
		return ErrNoArchive
	}
	m.live = maps.Clone(m.archive)
	return nil
}

// evictMirrorID drops entries of the same entity type that claim entry's
// mirror id under a different identity key.
func evictMirrorID(live map[entryKey]Entry, entry Entry) {
	if entry.MirrorID == "" {
		return
	}
	for k, e := range live {
		if k.entity == entry.EntityType && e.MirrorID == entry.MirrorID && k.key != entry.IdentityKey {
			delete(live, k)
		}
	}
}
