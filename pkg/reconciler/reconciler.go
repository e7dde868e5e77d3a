// Package reconciler computes the plan that makes the mirror directory
// match the source directory.
//
// People are planned first by set difference on identity keys and an
// attribute comparison for the intersection. Groups are planned in a second
// phase because their membership lists need the mirror ids of people, which
// are only known once the person phase has been applied and persisted.
package reconciler

import (
	"context"
	"strings"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
)

// Reconciler plans mutations. Planning never mutates either directory.
type Reconciler interface {
	// CheckSource refuses sources that would empty the mirror.
	CheckSource(ctx context.Context, source, mirror *directory.Snapshot, store mapping.Reader) error

	// People plans the person phase.
	People(ctx context.Context, source, mirror *directory.Snapshot, store mapping.Reader) (*plan.Plan, error)

	// Groups plans the group phase. Person mirror ids are resolved through store.
	Groups(ctx context.Context, source, mirror *directory.Snapshot, store mapping.Reader) (*plan.Plan, error)

	// Purge plans the deletion of every system-generated mirror record of
	// one entity type, regardless of the source.
	Purge(ctx context.Context, mirror *directory.Snapshot, store mapping.Reader, entity directory.EntityType) (*plan.Plan, error)
}

type reconciler struct {
	opts *options
}

// New creates a new Reconciler with options.
func New(opts ...Option) (Reconciler, error) {
	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &reconciler{opts: options}, nil
}

// CheckSource implements Reconciler.
func (r *reconciler) CheckSource(ctx context.Context, source, mirror *directory.Snapshot, store mapping.Reader) error {
	if source == nil || len(source.People) == 0 {
		return errors.NewEmptySourceError(string(directory.EntityPerson))
	}
	if mirror == nil || len(r.eligibleGroups(source)) > 0 {
		return nil
	}
	for _, g := range mirror.Groups {
		origin, err := provenance(ctx, store, directory.EntityGroup, g.Name, g.MirrorID, g.Origin)
		if err != nil {
			return err
		}
		if origin == directory.OriginSystemGenerated {
			return errors.NewEmptySourceError(string(directory.EntityGroup))
		}
	}
	return nil
}

// eligibleGroups returns the source groups flagged for syncing.
func (r *reconciler) eligibleGroups(source *directory.Snapshot) []directory.Group {
	var out []directory.Group
	for _, g := range source.Groups {
		if g.Marker == r.opts.syncMarker {
			out = append(out, g)
		}
	}
	return out
}

// teachers returns the identity keys classified as teachers.
func (r *reconciler) teachers(source *directory.Snapshot) map[string]bool {
	set := make(map[string]bool)
	if g, ok := source.Group(r.opts.teacherGroup); ok {
		for _, key := range g.Members {
			set[key] = true
		}
	}
	for _, p := range source.People {
		if p.Role == directory.RoleTeacher || p.InGroup(r.opts.teacherGroup) {
			set[p.IdentityKey] = true
		}
	}
	return set
}

func (r *reconciler) receivesAllTeachers(groupName string) bool {
	pattern := r.opts.allTeachersPattern
	return pattern != "" && strings.Contains(strings.ToLower(groupName), strings.ToLower(pattern))
}

// provenance decides whether a mirror record was created by jamfsync. The
// mirror's own marker is authoritative; without one a live mapping entry
// pointing at the same mirror id counts as proof.
func provenance(ctx context.Context, store mapping.Reader, entity directory.EntityType, key, mirrorID string, origin directory.Origin) (directory.Origin, error) {
	if origin != directory.OriginUnknown {
		return origin, nil
	}
	if store == nil || mirrorID == "" {
		return directory.OriginManual, nil
	}
	entry, ok, err := store.Get(ctx, key, entity)
	if err != nil {
		return directory.OriginUnknown, errors.WrapResource("fetch", "mapping", key, err)
	}
	if ok && entry.MirrorID == mirrorID {
		return directory.OriginSystemGenerated, nil
	}
	return directory.OriginManual, nil
}
