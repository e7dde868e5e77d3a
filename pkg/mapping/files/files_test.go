package files_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping/files"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping/mappingtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	mappingtest.RunStoreContract(t, func(t *testing.T) mapping.Store {
		s, err := files.Open(filepath.Join(t.TempDir(), "mapping.yaml"))
		require.NoError(t, err)
		return s
	})
}

func TestStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "mapping.yaml")
	synced := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	s, err := files.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, mapping.Entry{
		IdentityKey: "alice@school.example",
		MirrorID:    "41",
		EntityType:  directory.EntityPerson,
		Fingerprint: "abc",
		LastSyncAt:  synced,
	}))

	reopened, err := files.Open(path)
	require.NoError(t, err)
	e, ok, err := reopened.Get(ctx, "alice@school.example", directory.EntityPerson)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "41", e.MirrorID)
	assert.Equal(t, "abc", e.Fingerprint)
	assert.True(t, synced.Equal(e.LastSyncAt))
}

func TestArchiveRenamesDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mapping.yaml")

	s, err := files.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, mapping.Entry{IdentityKey: "5a", MirrorID: "uuid-1", EntityType: directory.EntityGroup}))
	require.NoError(t, s.Archive(ctx))

	_, err = os.Stat(path + files.ArchiveSuffix)
	require.NoError(t, err)

	archived, err := files.Open(path + files.ArchiveSuffix)
	require.NoError(t, err)
	groups, err := archived.All(ctx, directory.EntityGroup)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestOpenRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entries: [:::"), 0o600))
	_, err := files.Open(path)
	assert.Error(t, err)
}

func TestFailedWriteLeavesEntriesUnchanged(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	alice := mapping.Entry{IdentityKey: "alice@school.example", MirrorID: "41", EntityType: directory.EntityPerson}

	s, err := files.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, alice))

	// A non-empty directory at the document path makes every rename fail.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "blocked"), 0o755))

	bob := mapping.Entry{IdentityKey: "bob@school.example", MirrorID: "42", EntityType: directory.EntityPerson}
	require.Error(t, s.Put(ctx, bob))
	_, ok, err := s.Get(ctx, bob.IdentityKey, directory.EntityPerson)
	require.NoError(t, err)
	assert.False(t, ok)

	require.Error(t, s.Delete(ctx, alice.IdentityKey, directory.EntityPerson))
	_, ok, err = s.Get(ctx, alice.IdentityKey, directory.EntityPerson)
	require.NoError(t, err)
	assert.True(t, ok)
}
