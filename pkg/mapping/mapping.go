// Package mapping persists the correspondence between source identities
// and the mirror records created for them.
//
// An Entry is the only state jamfsync keeps between passes. It answers
// "have we created this identity before, and under which mirror id", which
// is what makes repeated passes idempotent and deletes safe.
package mapping

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"time"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
)

// Entry links one source identity to one mirror record.
type Entry struct {
	IdentityKey string               `json:"identity_key" yaml:"identity_key"`
	MirrorID    string               `json:"mirror_id" yaml:"mirror_id"`
	EntityType  directory.EntityType `json:"entity_type" yaml:"entity_type"`
	Fingerprint string               `json:"fingerprint" yaml:"fingerprint"`
	LastSyncAt  time.Time            `json:"last_sync_at" yaml:"last_sync_at"`
}

// Reader is the read side of a Store. The reconciler only needs this.
type Reader interface {
	// Get returns the live entry for (key, entity) if one exists.
	Get(ctx context.Context, key string, entity directory.EntityType) (Entry, bool, error)

	// All returns every live entry of the given entity type ordered by identity key.
	All(ctx context.Context, entity directory.EntityType) ([]Entry, error)
}

// Store persists mapping entries.
type Store interface {
	Reader

	// Put upserts the entry keyed by (IdentityKey, EntityType). A different
	// live entry holding the same mirror id is evicted.
	Put(ctx context.Context, entry Entry) error

	// Delete removes the live entry for (key, entity). Missing entries are not an error.
	Delete(ctx context.Context, key string, entity directory.EntityType) error

	// Archive atomically moves the live entries to the archive, replacing any
	// previous archive, and leaves the live set empty.
	Archive(ctx context.Context) error

	// Restore swaps the archive back into place as the live set.
	Restore(ctx context.Context) error
}

// PersonFingerprint hashes the synced attributes of a person.
func PersonFingerprint(p directory.Person) string {
	return fingerprint(p.FirstName, p.LastName, p.Email, p.LocationID)
}

// GroupFingerprint hashes the synced attributes of a group with its
// resolved mirror membership. Id order does not matter.
func GroupFingerprint(name, locationID string, teacherIDs, studentIDs []string) string {
	return fingerprint(name, locationID, joinSorted(teacherIDs), joinSorted(studentIDs))
}

func fingerprint(fields ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

func joinSorted(ids []string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return strings.Join(sorted, ",")
}

type entryKey struct {
	key    string
	entity directory.EntityType
}

func sortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.IdentityKey, b.IdentityKey)
	})
}
