// Package mappingtest holds the shared behavior tests for mapping.Store backends.
package mappingtest

import (
	"context"
	"testing"
	"time"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	pkgerrors "github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs the behavior every Store backend must share.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) mapping.Store) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	t.Run("put get delete", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.Get(ctx, "alice", directory.EntityPerson)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Put(ctx, mapping.Entry{IdentityKey: "alice", MirrorID: "1", EntityType: directory.EntityPerson, LastSyncAt: now}))
		e, ok, err := s.Get(ctx, "alice", directory.EntityPerson)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "1", e.MirrorID)

		_, ok, err = s.Get(ctx, "alice", directory.EntityGroup)
		require.NoError(t, err)
		assert.False(t, ok, "entity types are separate namespaces")

		require.NoError(t, s.Delete(ctx, "alice", directory.EntityPerson))
		require.NoError(t, s.Delete(ctx, "alice", directory.EntityPerson))
		_, ok, err = s.Get(ctx, "alice", directory.EntityPerson)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put upserts", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, mapping.Entry{IdentityKey: "alice", MirrorID: "1", EntityType: directory.EntityPerson, Fingerprint: "old"}))
		require.NoError(t, s.Put(ctx, mapping.Entry{IdentityKey: "alice", MirrorID: "1", EntityType: directory.EntityPerson, Fingerprint: "new"}))
		all, err := s.All(ctx, directory.EntityPerson)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "new", all[0].Fingerprint)
	})

	t.Run("mirror id stays unique per entity", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, mapping.Entry{IdentityKey: "alice", MirrorID: "7", EntityType: directory.EntityPerson}))
		require.NoError(t, s.Put(ctx, mapping.Entry{IdentityKey: "5a", MirrorID: "7", EntityType: directory.EntityGroup}))
		require.NoError(t, s.Put(ctx, mapping.Entry{IdentityKey: "bob", MirrorID: "7", EntityType: directory.EntityPerson}))

		people, err := s.All(ctx, directory.EntityPerson)
		require.NoError(t, err)
		require.Len(t, people, 1)
		assert.Equal(t, "bob", people[0].IdentityKey)

		groups, err := s.All(ctx, directory.EntityGroup)
		require.NoError(t, err)
		assert.Len(t, groups, 1)
	})

	t.Run("all is ordered", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"carol", "alice", "bob"} {
			require.NoError(t, s.Put(ctx, mapping.Entry{IdentityKey: k, MirrorID: k, EntityType: directory.EntityPerson}))
		}
		all, err := s.All(ctx, directory.EntityPerson)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"alice", "bob", "carol"}, []string{all[0].IdentityKey, all[1].IdentityKey, all[2].IdentityKey})
	})

	t.Run("archive and restore", func(t *testing.T) {
		s := newStore(t)
		assert.True(t, pkgerrors.IsNotFound(s.Restore(ctx)))

		require.NoError(t, s.Put(ctx, mapping.Entry{IdentityKey: "alice", MirrorID: "1", EntityType: directory.EntityPerson}))
		require.NoError(t, s.Archive(ctx))

		all, err := s.All(ctx, directory.EntityPerson)
		require.NoError(t, err)
		assert.Empty(t, all)

		require.NoError(t, s.Put(ctx, mapping.Entry{IdentityKey: "bob", MirrorID: "2", EntityType: directory.EntityPerson}))
		require.NoError(t, s.Restore(ctx))
		all, err = s.All(ctx, directory.EntityPerson)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "alice", all[0].IdentityKey)
	})
}
