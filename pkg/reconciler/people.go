package reconciler

import (
	"context"
	"slices"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/logging"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
)

// People implements Reconciler.
func (r *reconciler) People(ctx context.Context, source, mirror *directory.Snapshot, store mapping.Reader) (*plan.Plan, error) {
	logger := logging.FromContext(ctx)

	// Step 1: Refuse an empty source
	if source == nil || len(source.People) == 0 {
		return nil, errors.NewEmptySourceError(string(directory.EntityPerson))
	}
	if mirror == nil {
		mirror = &directory.Snapshot{}
	}

	p := plan.New(directory.EntityPerson)
	if len(mirror.People) == 0 {
		logger.Info().Int("people", len(source.People)).Msg("Mirror is empty, planning initial sync")
	}
	if _, dups := mirror.PeopleByKey(); len(dups) > 0 {
		for _, d := range dups {
			p.Warn("mirror lists %s more than once, ignoring mirror id %s", d.IdentityKey, d.MirrorID)
		}
	}

	// Step 2: Split into create, update, delete and unchanged
	changes := r.opts.differ.People(mirror.People, source.People)
	teachers := r.teachers(source)

	// Step 3: Deletes, gated by provenance
	deleted := make(map[string]bool)
	for _, existing := range changes.Removed {
		origin, err := provenance(ctx, store, directory.EntityPerson, existing.IdentityKey, existing.MirrorID, existing.Origin)
		if err != nil {
			return nil, err
		}
		if origin != directory.OriginSystemGenerated {
			p.Add(plan.Item{
				Action:      plan.ActionNoop,
				Entity:      directory.EntityPerson,
				IdentityKey: existing.IdentityKey,
				MirrorID:    existing.MirrorID,
				Origin:      origin,
				Reason:      plan.ReasonProtected,
			})
			continue
		}
		if existing.MirrorID == "" {
			p.Warn("%s has no mirror id, cannot delete it", existing.IdentityKey)
			p.Add(plan.Item{
				Action:      plan.ActionNoop,
				Entity:      directory.EntityPerson,
				IdentityKey: existing.IdentityKey,
				Origin:      origin,
				Reason:      plan.ReasonUnresolved,
			})
			continue
		}
		deleted[existing.IdentityKey] = true
		p.Add(plan.Item{
			Action:      plan.ActionDelete,
			Entity:      directory.EntityPerson,
			IdentityKey: existing.IdentityKey,
			MirrorID:    existing.MirrorID,
			Origin:      origin,
		})
	}

	// Step 4: Reserve display names still present after the delete phase
	names := newNamer(r.opts.rand)
	for _, existing := range mirror.People {
		if !deleted[existing.IdentityKey] && existing.DisplayName != "" {
			names.reserve(existing.IdentityKey, existing.DisplayName)
		}
	}

	// Step 5: Creates
	for _, src := range changes.Added {
		payload := r.personPayload(src, teachers[src.IdentityKey], names.claim(src.IdentityKey, src.Name(), ""))
		payload.Notes = r.opts.personNotes
		p.Add(plan.Item{
			Action:      plan.ActionCreate,
			Entity:      directory.EntityPerson,
			IdentityKey: src.IdentityKey,
			Origin:      directory.OriginSystemGenerated,
			Payload:     payload,
			Fingerprint: mapping.PersonFingerprint(src),
		})
	}

	// Step 6: Updates, source values win
	for _, u := range changes.Updated {
		mirrorID, err := mirrorIDFor(ctx, store, directory.EntityPerson, u.Key, u.Existing.MirrorID)
		if err != nil {
			return nil, err
		}
		if mirrorID == "" {
			p.Warn("%s changed but has no mirror id, cannot update it", u.Key)
			p.Add(plan.Item{
				Action:      plan.ActionNoop,
				Entity:      directory.EntityPerson,
				IdentityKey: u.Key,
				Origin:      u.Existing.Origin,
				Reason:      plan.ReasonUnresolved,
				Changes:     u.Changes,
			})
			continue
		}
		p.Add(plan.Item{
			Action:      plan.ActionUpdate,
			Entity:      directory.EntityPerson,
			IdentityKey: u.Key,
			MirrorID:    mirrorID,
			Origin:      u.Existing.Origin,
			Payload:     r.personPayload(u.New, teachers[u.Key], names.claim(u.Key, u.New.Name(), u.Existing.DisplayName)),
			Fingerprint: mapping.PersonFingerprint(u.New),
			Changes:     u.Changes,
		})
	}

	// Step 7: Unchanged
	for _, pair := range changes.Unchanged {
		p.Add(plan.Item{
			Action:      plan.ActionNoop,
			Entity:      directory.EntityPerson,
			IdentityKey: pair.New.IdentityKey,
			MirrorID:    pair.Existing.MirrorID,
			Origin:      pair.Existing.Origin,
			Fingerprint: mapping.PersonFingerprint(pair.New),
			Reason:      plan.ReasonUnchanged,
		})
	}

	p.Sort()
	logger.Info().Str("summary", p.Summary()).Msg("Planned person phase")
	return p, nil
}

// personPayload builds the mirror body for a source person. Students are
// enrolled in their groups directly; teachers are bound to classes in the
// group phase instead. The provenance marker is left to the caller: only
// creates carry it, so an update never claims a record it did not create.
func (r *reconciler) personPayload(src directory.Person, teacher bool, displayName string) *plan.PersonPayload {
	memberOf := []string{}
	if !teacher {
		memberOf = slices.Clone(src.Groups)
		slices.Sort(memberOf)
	}
	return &plan.PersonPayload{
		Username:    src.IdentityKey,
		DisplayName: displayName,
		Email:       src.Email,
		FirstName:   src.FirstName,
		LastName:    src.LastName,
		LocationID:  src.LocationID,
		MemberOf:    memberOf,
	}
}

// mirrorIDFor prefers the id the mirror reported and falls back to the mapping.
func mirrorIDFor(ctx context.Context, store mapping.Reader, entity directory.EntityType, key, reported string) (string, error) {
	if reported != "" || store == nil {
		return reported, nil
	}
	entry, ok, err := store.Get(ctx, key, entity)
	if err != nil {
		return "", errors.WrapResource("fetch", "mapping", key, err)
	}
	if !ok {
		return "", nil
	}
	return entry.MirrorID, nil
}
