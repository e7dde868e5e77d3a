// Package applier executes plans against the mirror.
//
// Items run in phases: every DELETE completes before any CREATE starts and
// every CREATE completes before any UPDATE starts. Within a phase items run
// in parallel on a bounded pool. A failing item never aborts the pass; its
// error is recorded and the remaining items proceed.
package applier

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/logging"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
)

// Transport mutates the mirror. Implementations own their timeout and
// retry policy and must return a definite result for every call.
type Transport interface {
	Create(ctx context.Context, payload plan.Payload) (string, error)
	Update(ctx context.Context, mirrorID string, payload plan.Payload) (string, error)
	Delete(ctx context.Context, entity directory.EntityType, mirrorID string) error
}

// Applier applies plans.
type Applier struct {
	transport   Transport
	concurrency int
}

// New creates an Applier for transport.
func New(transport Transport, opts ...Option) (*Applier, error) {
	if transport == nil {
		return nil, &errors.ValidationError{Field: "transport", Message: "cannot be nil"}
	}
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return &Applier{transport: transport, concurrency: o.concurrency}, nil
}

// Apply executes p and reports per-item outcomes. The returned error is
// non-nil only when ctx was canceled; the report is valid either way and
// covers every item of the plan.
func (a *Applier) Apply(ctx context.Context, p *plan.Plan) (*Report, error) {
	report := NewReport()
	defer report.Finalize()
	if p == nil {
		return report, nil
	}

	logger := logging.FromContext(ctx)
	outcomes := make([]Outcome, len(p.Items))
	for i, item := range p.Items {
		outcomes[i] = Outcome{Item: item, MirrorID: item.MirrorID}
	}

	for _, phase := range plan.Phases {
		if err := ctx.Err(); err != nil {
			break
		}
		a.runPhase(ctx, phase, p.Items, outcomes)
	}

	for _, o := range outcomes {
		report.record(o)
	}

	logger.Info().
		Str("entity", string(p.Entity)).
		Str("summary", report.Summary()).
		Msg("Applied plan")

	if err := ctx.Err(); err != nil {
		return report, errors.WrapResource("apply", string(p.Entity)+" plan", "", err)
	}
	return report, nil
}

// runPhase applies every item of one action and waits for all of them.
func (a *Applier) runPhase(ctx context.Context, phase plan.Action, items []plan.Item, outcomes []Outcome) {
	logger := logging.FromContext(ctx)
	workers := pool.New().WithMaxGoroutines(a.concurrency)

	var mu sync.Mutex
	count := 0
	for i, item := range items {
		if item.Action != phase {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		count++
		workers.Go(func() {
			if ctx.Err() != nil {
				return
			}
			mirrorID, err := a.applyItem(ctx, item)

			mu.Lock()
			outcomes[i].Attempted = true
			outcomes[i].Err = err
			outcomes[i].At = time.Now()
			if mirrorID != "" {
				outcomes[i].MirrorID = mirrorID
			}
			mu.Unlock()

			event := logger.Debug()
			if err != nil {
				event = logger.Warn().Err(err)
			}
			event.Str("action", string(item.Action)).
				Str("entity", string(item.Entity)).
				Str("identity_key", item.IdentityKey).
				Str("mirror_id", mirrorID).
				Msg("Applied item")
		})
	}
	workers.Wait()

	if count > 0 {
		logger.Debug().Str("phase", string(phase)).Int("items", count).Msg("Phase complete")
	}
}

func (a *Applier) applyItem(ctx context.Context, item plan.Item) (string, error) {
	switch item.Action {
	case plan.ActionDelete:
		if item.Origin != directory.OriginSystemGenerated {
			return "", errors.NewProtectedRecordError(string(item.Entity), item.IdentityKey, item.MirrorID)
		}
		if item.MirrorID == "" {
			return "", &errors.ValidationError{Field: "mirror_id", Message: "delete of " + item.IdentityKey + " has no mirror id"}
		}
		return item.MirrorID, a.transport.Delete(ctx, item.Entity, item.MirrorID)
	case plan.ActionCreate:
		if item.Payload == nil {
			return "", &errors.ValidationError{Field: "payload", Message: "create of " + item.IdentityKey + " has no payload"}
		}
		return a.transport.Create(ctx, item.Payload)
	case plan.ActionUpdate:
		if item.Payload == nil || item.MirrorID == "" {
			return "", &errors.ValidationError{Field: "mirror_id", Message: "update of " + item.IdentityKey + " needs a mirror id and payload"}
		}
		return a.transport.Update(ctx, item.MirrorID, item.Payload)
	default:
		return "", nil
	}
}
