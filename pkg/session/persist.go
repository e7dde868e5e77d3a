package session

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ervinkurbegovic/jamfsync/pkg/applier"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/logging"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
)

// persist records every outcome of report in the mapping store.
//
// Successful creates upsert an entry and successful deletes remove it.
// Successful updates and unchanged NOOPs refresh or adopt an entry only for
// system-generated records, so a manual record never gains one. Failed and skipped items leave the mapping alone. Each write
// is retried; keys that still fail are collected into a single
// MappingPersistenceError after every other outcome has been written.
func (s *Session) persist(ctx context.Context, report *applier.Report) error {
	if report == nil {
		return nil
	}
	logger := logging.FromContext(ctx)

	var (
		failed  []string
		lastErr error
		written int
	)
	for _, o := range report.Outcomes {
		op, err := s.operation(ctx, o)
		if err != nil {
			failed = append(failed, o.Item.IdentityKey)
			lastErr = err
			continue
		}
		if op == nil {
			continue
		}
		if err := backoff.Retry(op, backoff.WithContext(s.backOff(), ctx)); err != nil {
			logger.Error().Err(err).Str("identity_key", o.Item.IdentityKey).Msg("Failed to persist mapping entry")
			failed = append(failed, o.Item.IdentityKey)
			lastErr = err
			continue
		}
		written++
	}

	logger.Debug().Int("written", written).Int("failed", len(failed)).Msg("Persisted mapping")
	if len(failed) > 0 {
		return errors.NewMappingPersistenceError("write", failed, lastErr)
	}
	return nil
}

// operation returns the store write for one outcome, or nil if none is needed.
func (s *Session) operation(ctx context.Context, o applier.Outcome) (backoff.Operation, error) {
	item := o.Item
	now := o.At
	if now.IsZero() {
		now = time.Now()
	}
	entry := mapping.Entry{
		IdentityKey: item.IdentityKey,
		MirrorID:    o.MirrorID,
		EntityType:  item.Entity,
		Fingerprint: item.Fingerprint,
		LastSyncAt:  now,
	}

	switch {
	case o.Succeeded() && item.Action == plan.ActionDelete:
		return func() error {
			return s.store.Delete(ctx, item.IdentityKey, item.Entity)
		}, nil

	case o.Succeeded():
		if entry.MirrorID == "" {
			return nil, &errors.ValidationError{
				Field:   "mirror_id",
				Message: "mirror returned no id for " + item.IdentityKey,
			}
		}
		if item.Action == plan.ActionCreate {
			return func() error { return s.store.Put(ctx, entry) }, nil
		}
		vouched, current, err := s.vouched(ctx, item, entry.MirrorID)
		if err != nil || !vouched {
			return nil, err
		}
		if current.MirrorID == entry.MirrorID && current.Fingerprint == entry.Fingerprint {
			return nil, nil
		}
		return func() error { return s.store.Put(ctx, entry) }, nil

	case item.Action == plan.ActionNoop && item.Reason == plan.ReasonUnchanged && item.MirrorID != "":
		entry.MirrorID = item.MirrorID
		vouched, current, err := s.vouched(ctx, item, item.MirrorID)
		if err != nil || !vouched {
			return nil, err
		}
		if current.MirrorID == item.MirrorID && current.Fingerprint == item.Fingerprint {
			return nil, nil
		}
		return func() error { return s.store.Put(ctx, entry) }, nil
	}
	return nil, nil
}

// vouched reports whether an entry may be written for a record jamfsync did
// not just create. A mapping entry doubles as provenance, so only records
// that carry the marker, or that an entry already binds under the same
// mirror id, qualify. It also returns the current entry, if any.
func (s *Session) vouched(ctx context.Context, item plan.Item, mirrorID string) (bool, mapping.Entry, error) {
	current, ok, err := s.store.Get(ctx, item.IdentityKey, item.Entity)
	if err != nil {
		return false, mapping.Entry{}, err
	}
	if item.Origin == directory.OriginSystemGenerated {
		return true, current, nil
	}
	return ok && current.MirrorID == mirrorID, current, nil
}

func (s *Session) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = s.persistMaxElapsed
	return b
}
