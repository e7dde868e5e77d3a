package reconciler

import (
	"context"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/logging"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
)

// Purge implements Reconciler.
func (r *reconciler) Purge(ctx context.Context, mirror *directory.Snapshot, store mapping.Reader, entity directory.EntityType) (*plan.Plan, error) {
	if mirror == nil {
		mirror = &directory.Snapshot{}
	}
	type record struct {
		key, mirrorID string
		origin        directory.Origin
	}
	var records []record
	switch entity {
	case directory.EntityPerson:
		for _, person := range mirror.People {
			records = append(records, record{person.IdentityKey, person.MirrorID, person.Origin})
		}
	case directory.EntityGroup:
		for _, g := range mirror.Groups {
			records = append(records, record{g.Name, g.MirrorID, g.Origin})
		}
	default:
		return nil, &errors.ValidationError{Field: "entity", Value: entity, Message: "unknown entity type"}
	}

	p := plan.New(entity)
	for _, rec := range records {
		origin, err := provenance(ctx, store, entity, rec.key, rec.mirrorID, rec.origin)
		if err != nil {
			return nil, err
		}
		item := plan.Item{
			Action:      plan.ActionDelete,
			Entity:      entity,
			IdentityKey: rec.key,
			MirrorID:    rec.mirrorID,
			Origin:      origin,
		}
		switch {
		case origin != directory.OriginSystemGenerated:
			item.Action = plan.ActionNoop
			item.Reason = plan.ReasonProtected
		case rec.mirrorID == "":
			item.Action = plan.ActionNoop
			item.Reason = plan.ReasonUnresolved
			p.Warn("%s %s has no mirror id, cannot purge it", entity, rec.key)
		}
		p.Add(item)
	}

	p.Sort()
	logging.FromContext(ctx).Info().Str("summary", p.Summary()).Msg("Planned purge")
	return p, nil
}
