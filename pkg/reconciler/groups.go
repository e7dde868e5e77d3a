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

// membership is the resolved mirror id lists for one group.
type membership struct {
	teachers []string
	students []string
}

// Groups implements Reconciler.
func (r *reconciler) Groups(ctx context.Context, source, mirror *directory.Snapshot, store mapping.Reader) (*plan.Plan, error) {
	logger := logging.FromContext(ctx)
	if mirror == nil {
		mirror = &directory.Snapshot{}
	}

	// Step 1: Only sync-eligible groups participate
	if source == nil {
		return nil, errors.NewEmptySourceError(string(directory.EntityGroup))
	}
	if err := r.CheckSource(ctx, source, mirror, store); err != nil {
		return nil, err
	}
	eligible, sourceNames := r.mirrorNames(r.eligibleGroups(source))

	p := plan.New(directory.EntityGroup)

	// Step 2: Resolve person mirror ids
	ids, err := r.personIDs(ctx, mirror, store)
	if err != nil {
		return nil, err
	}
	teachers := r.teachers(source)
	var allTeacherIDs []string
	for key := range teachers {
		if id, ok := ids[key]; ok {
			allTeacherIDs = append(allTeacherIDs, id)
		}
	}
	allTeacherIDs = sortedUnique(allTeacherIDs)

	changes := r.opts.differ.Groups(mirror.Groups, eligible)

	// Step 3: Deletes, gated by provenance
	for _, existing := range changes.Removed {
		origin, err := provenance(ctx, store, directory.EntityGroup, existing.Name, existing.MirrorID, existing.Origin)
		if err != nil {
			return nil, err
		}
		item := plan.Item{
			Entity:      directory.EntityGroup,
			IdentityKey: existing.Name,
			MirrorID:    existing.MirrorID,
			Origin:      origin,
			Action:      plan.ActionDelete,
		}
		if origin != directory.OriginSystemGenerated {
			item.Action = plan.ActionNoop
			item.Reason = plan.ReasonProtected
		}
		p.Add(item)
	}

	// Step 4: Creates
	for _, g := range changes.Added {
		m := r.resolve(p, g, r.receivesAllTeachers(sourceNames[g.Name]), ids, teachers, allTeacherIDs)
		p.Add(plan.Item{
			Action:      plan.ActionCreate,
			Entity:      directory.EntityGroup,
			IdentityKey: g.Name,
			Origin:      directory.OriginSystemGenerated,
			Payload:     r.groupPayload(g, m),
			Fingerprint: mapping.GroupFingerprint(g.Name, g.LocationID, m.teachers, m.students),
		})
	}

	// Step 5: Existing groups get their membership recreated when it drifted
	for _, pair := range changes.Matched {
		existing, g := pair.Existing, pair.New
		origin, err := provenance(ctx, store, directory.EntityGroup, g.Name, existing.MirrorID, existing.Origin)
		if err != nil {
			return nil, err
		}
		if origin != directory.OriginSystemGenerated {
			p.Add(plan.Item{
				Action:      plan.ActionNoop,
				Entity:      directory.EntityGroup,
				IdentityKey: g.Name,
				MirrorID:    existing.MirrorID,
				Origin:      origin,
				Reason:      plan.ReasonProtected,
			})
			continue
		}

		m := r.resolve(p, g, r.receivesAllTeachers(sourceNames[g.Name]), ids, teachers, allTeacherIDs)
		fp := mapping.GroupFingerprint(g.Name, g.LocationID, m.teachers, m.students)
		drifted, err := r.drifted(ctx, store, existing, g, m, fp)
		if err != nil {
			return nil, err
		}

		item := plan.Item{
			Action:      plan.ActionNoop,
			Entity:      directory.EntityGroup,
			IdentityKey: g.Name,
			MirrorID:    existing.MirrorID,
			Origin:      origin,
			Fingerprint: fp,
			Reason:      plan.ReasonUnchanged,
		}
		if drifted {
			item.Action = plan.ActionUpdate
			item.Payload = r.groupPayload(g, m)
			item.Reason = ""
		}
		p.Add(item)
	}

	p.Sort()
	for _, w := range p.Warnings {
		logger.Warn().Msg(w)
	}
	logger.Info().Str("summary", p.Summary()).Msg("Planned group phase")
	return p, nil
}

// mirrorNames applies the configured prefix and suffix to the group names.
// The returned map leads from a mirror name back to the source name.
func (r *reconciler) mirrorNames(groups []directory.Group) ([]directory.Group, map[string]string) {
	out := make([]directory.Group, len(groups))
	names := make(map[string]string, len(groups))
	for i, g := range groups {
		source := g.Name
		g.Name = r.opts.groupPrefix + source + r.opts.groupSuffix
		names[g.Name] = source
		out[i] = g
	}
	return out, names
}

// personIDs maps identity keys to mirror person ids. Mapping entries win
// over ids reported by the mirror snapshot.
func (r *reconciler) personIDs(ctx context.Context, mirror *directory.Snapshot, store mapping.Reader) (map[string]string, error) {
	ids := make(map[string]string, len(mirror.People))
	for _, person := range mirror.People {
		if person.MirrorID != "" {
			ids[person.IdentityKey] = person.MirrorID
		}
	}
	if store == nil {
		return ids, nil
	}
	entries, err := store.All(ctx, directory.EntityPerson)
	if err != nil {
		return nil, errors.WrapResource("list", "mapping", string(directory.EntityPerson), err)
	}
	for _, e := range entries {
		ids[e.IdentityKey] = e.MirrorID
	}
	return ids, nil
}

// resolve classifies the members of g and looks up their mirror ids.
// Unresolvable members are skipped with a plan warning.
func (r *reconciler) resolve(p *plan.Plan, g directory.Group, allTeachers bool, ids map[string]string, teachers map[string]bool, allTeacherIDs []string) membership {
	var m membership
	for _, key := range g.Members {
		id, ok := ids[key]
		if !ok {
			p.Warn("member %s of group %s has no mirror id, skipping", key, g.Name)
			continue
		}
		if teachers[key] {
			m.teachers = append(m.teachers, id)
		} else {
			m.students = append(m.students, id)
		}
	}
	if allTeachers {
		m.teachers = slices.Clone(allTeacherIDs)
	}
	m.teachers = sortedUnique(m.teachers)
	m.students = sortedUnique(m.students)
	return m
}

// drifted decides whether an existing group needs its membership recreated.
// When the mirror reports membership it is compared directly; otherwise the
// fingerprint stored at the last successful sync stands in for it.
func (r *reconciler) drifted(ctx context.Context, store mapping.Reader, existing, desired directory.Group, m membership, fp string) (bool, error) {
	if existing.LocationID != "" && desired.LocationID != "" && existing.LocationID != desired.LocationID {
		return true, nil
	}
	if existing.MembershipKnown() {
		return !slices.Equal(sortedUnique(existing.TeacherIDs), m.teachers) ||
			!slices.Equal(sortedUnique(existing.StudentIDs), m.students), nil
	}
	if store == nil {
		return true, nil
	}
	entry, ok, err := store.Get(ctx, desired.Name, directory.EntityGroup)
	if err != nil {
		return false, errors.WrapResource("fetch", "mapping", desired.Name, err)
	}
	return !ok || entry.Fingerprint != fp, nil
}

func (r *reconciler) groupPayload(g directory.Group, m membership) *plan.GroupPayload {
	return &plan.GroupPayload{
		Name:        g.Name,
		Description: r.opts.groupDescription,
		LocationID:  g.LocationID,
		TeacherIDs:  nonNil(m.teachers),
		StudentIDs:  nonNil(m.students),
	}
}

func sortedUnique(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return nonNil(slices.Compact(out))
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
