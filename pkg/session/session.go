// Package session runs sync passes.
//
// A pass holds an exclusive lock for its whole duration, snapshots both
// directories, plans and applies the person phase, records the outcome in
// the mapping store, and then does the same for groups. Group membership is
// resolved through the mapping, so people created in the first phase are
// available to the second.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ervinkurbegovic/jamfsync/pkg/applier"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/lock"
	"github.com/ervinkurbegovic/jamfsync/pkg/logging"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
	"github.com/ervinkurbegovic/jamfsync/pkg/reconciler"
)

// Directory produces point-in-time snapshots of one side of the sync.
type Directory interface {
	Snapshot(ctx context.Context) (*directory.Snapshot, error)
}

// Result describes one pass.
type Result struct {
	PassID string `json:"pass_id" yaml:"pass_id"`
	State  State  `json:"state" yaml:"state"`

	People *plan.Plan      `json:"people,omitempty" yaml:"people,omitempty"`
	Groups *plan.Plan      `json:"groups,omitempty" yaml:"groups,omitempty"`
	Report *applier.Report `json:"report,omitempty" yaml:"report,omitempty"`

	DryRun   bool `json:"dry_run" yaml:"dry_run"`
	Declined bool `json:"declined" yaml:"declined"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// Session owns the directories, the mapping and the lock for one
// source/mirror pair.
type Session struct {
	source     Directory
	mirror     Directory
	store      mapping.Store
	reconciler reconciler.Reconciler
	applier    *applier.Applier
	locker     lock.Locker
	confirmer  Confirmer

	persistMaxElapsed time.Duration
	stateHooks        []func(from, to State)

	mu    sync.Mutex
	state State
}

// New creates a Session.
func New(source, mirror Directory, store mapping.Store, transport applier.Transport, opts ...Option) (*Session, error) {
	if source == nil || mirror == nil {
		return nil, &errors.ValidationError{Field: "directory", Message: "source and mirror are required"}
	}
	if store == nil {
		return nil, &errors.ValidationError{Field: "store", Message: "cannot be nil"}
	}

	o := &options{
		confirmer:         AutoApprove,
		persistMaxElapsed: DefaultPersistMaxElapsed,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if o.reconciler == nil {
		r, err := reconciler.New()
		if err != nil {
			return nil, err
		}
		o.reconciler = r
	}
	if o.locker == nil {
		o.locker = lock.NewLocal(DefaultLockName)
	}

	a, err := applier.New(transport, o.applierOpts...)
	if err != nil {
		return nil, err
	}

	return &Session{
		source:            source,
		mirror:            mirror,
		store:             store,
		reconciler:        o.reconciler,
		applier:           a,
		locker:            o.locker,
		confirmer:         o.confirmer,
		persistMaxElapsed: o.persistMaxElapsed,
		stateHooks:        o.stateHooks,
		state:             StateIdle,
	}, nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run executes one pass. The returned Result is non-nil whenever the lock
// was acquired, including on failure, so callers can inspect partial plans
// and reports.
func (s *Session) Run(ctx context.Context, opts ...RunOption) (*Result, error) {
	return s.execute(ctx, "sync", s.run, opts...)
}

// Purge deletes every system-generated mirror record, groups first. The
// source is not consulted. WithDryRun and WithEntity apply; the other run
// options are ignored.
func (s *Session) Purge(ctx context.Context, opts ...RunOption) (*Result, error) {
	return s.execute(ctx, "purge", s.purge, opts...)
}

// execute holds the lock around body and fills in the bookkeeping of the
// Result.
func (s *Session) execute(ctx context.Context, kind string, body func(context.Context, *runOptions, *Result) error, opts ...RunOption) (*Result, error) {
	ro := &runOptions{}
	for _, opt := range opts {
		opt(ro)
	}

	acquired, err := s.locker.TryLock(ctx)
	if err != nil {
		return nil, errors.WrapResource("acquire", "lock", s.locker.Name(), err)
	}
	if !acquired {
		return nil, errors.NewSessionInUseError(s.locker.Name(), nil)
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("lock", s.locker.Name()).Msg("Failed to release lock")
		}
	}()

	s.reset()

	result := &Result{
		PassID:    uuid.NewString(),
		DryRun:    ro.dryRun,
		StartedAt: time.Now(),
		Report:    applier.NewReport(),
	}
	ctx = logging.WithPass(ctx, result.PassID)
	logger := logging.FromContext(ctx)
	logger.Info().Str("kind", kind).Bool("dry_run", ro.dryRun).Bool("people_only", ro.peopleOnly).Msg("Starting pass")

	err = body(ctx, ro, result)
	result.Report.Finalize()
	result.FinishedAt = time.Now()
	result.State = s.State()

	if err != nil {
		logger.Error().Err(err).Str("kind", kind).Str("state", string(result.State)).Msg("Pass failed")
		return result, err
	}
	logger.Info().
		Str("kind", kind).
		Str("summary", result.Report.Summary()).
		Bool("declined", result.Declined).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Pass finished")
	return result, nil
}

// reset returns a failed session to idle. Only called while holding the lock.
func (s *Session) reset() {
	s.mu.Lock()
	failed := s.state == StateFailed
	s.mu.Unlock()
	if failed {
		_ = s.transition(StateIdle)
	}
}

func (s *Session) run(ctx context.Context, ro *runOptions, result *Result) error {
	if err := s.transition(StateSnapshotting); err != nil {
		return err
	}
	source, mirror, err := s.snapshot(ctx)
	if err != nil {
		return s.fail(err)
	}

	if ro.rebuild && !ro.dryRun {
		logging.FromContext(ctx).Warn().Msg("Archiving mapping for rebuild")
		if err := s.store.Archive(ctx); err != nil {
			return s.fail(errors.NewMappingPersistenceError("archive", nil, err))
		}
	}

	if err := s.transition(StatePlanning); err != nil {
		return err
	}
	if err := s.reconciler.CheckSource(ctx, source, mirror, s.store); err != nil {
		return s.fail(err)
	}

	phaseCtx := logging.WithPhase(ctx, string(directory.EntityPerson))
	people, err := s.reconciler.People(phaseCtx, source, mirror, s.store)
	if err != nil {
		return s.fail(err)
	}
	result.People = people

	if ro.dryRun {
		if !ro.peopleOnly {
			groups, err := s.reconciler.Groups(logging.WithPhase(ctx, string(directory.EntityGroup)), source, mirror, s.store)
			if err != nil {
				return s.fail(err)
			}
			result.Groups = groups
		}
		return s.transition(StateIdle)
	}

	proceed, err := s.phase(phaseCtx, people, result)
	if err != nil || !proceed {
		return err
	}
	if ro.peopleOnly {
		return s.transition(StateIdle)
	}

	if err := s.transition(StatePlanning); err != nil {
		return err
	}
	phaseCtx = logging.WithPhase(ctx, string(directory.EntityGroup))
	groups, err := s.reconciler.Groups(phaseCtx, source, mirror, s.store)
	if err != nil {
		return s.fail(err)
	}
	result.Groups = groups

	proceed, err = s.phase(phaseCtx, groups, result)
	if err != nil || !proceed {
		return err
	}
	return s.transition(StateIdle)
}

func (s *Session) purge(ctx context.Context, ro *runOptions, result *Result) error {
	switch ro.entity {
	case "", directory.EntityPerson, directory.EntityGroup:
	default:
		return &errors.ValidationError{Field: "entity", Value: ro.entity, Message: "unknown entity type"}
	}
	if err := s.transition(StateSnapshotting); err != nil {
		return err
	}
	mirror, err := s.mirror.Snapshot(ctx)
	if err != nil {
		return s.fail(errors.WrapResource("snapshot", "directory", "mirror", err))
	}
	if mirror == nil {
		mirror = &directory.Snapshot{}
	}

	// Groups go first since their membership lists reference people.
	for _, entity := range []directory.EntityType{directory.EntityGroup, directory.EntityPerson} {
		if ro.entity != "" && ro.entity != entity {
			continue
		}
		if s.State() != StatePlanning {
			if err := s.transition(StatePlanning); err != nil {
				return err
			}
		}
		phaseCtx := logging.WithPhase(ctx, string(entity))
		p, err := s.reconciler.Purge(phaseCtx, mirror, s.store, entity)
		if err != nil {
			return s.fail(err)
		}
		if entity == directory.EntityGroup {
			result.Groups = p
		} else {
			result.People = p
		}
		if ro.dryRun {
			continue
		}
		proceed, err := s.phase(phaseCtx, p, result)
		if err != nil || !proceed {
			return err
		}
	}
	if s.State() == StateSnapshotting {
		if err := s.transition(StatePlanning); err != nil {
			return err
		}
	}
	return s.transition(StateIdle)
}

// snapshot reads both directories and validates the source.
func (s *Session) snapshot(ctx context.Context) (*directory.Snapshot, *directory.Snapshot, error) {
	source, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, nil, errors.WrapResource("snapshot", "directory", "source", err)
	}
	if source == nil {
		source = &directory.Snapshot{}
	}
	if err := source.Validate(); err != nil {
		return nil, nil, err
	}

	mirror, err := s.mirror.Snapshot(ctx)
	if err != nil {
		return nil, nil, errors.WrapResource("snapshot", "directory", "mirror", err)
	}
	if mirror == nil {
		mirror = &directory.Snapshot{}
	}

	logging.FromContext(ctx).Debug().
		Int("source_people", len(source.People)).
		Int("source_groups", len(source.Groups)).
		Int("mirror_people", len(mirror.People)).
		Int("mirror_groups", len(mirror.Groups)).
		Msg("Snapshots taken")
	return source, mirror, nil
}

// phase confirms, applies and persists one plan. It starts in planning and
// ends in persisting, idle (declined) or failed. proceed is false when the
// plan was declined.
func (s *Session) phase(ctx context.Context, p *plan.Plan, result *Result) (proceed bool, err error) {
	logger := logging.FromContext(ctx)
	for _, w := range p.Warnings {
		logger.Warn().Str("entity", string(p.Entity)).Msg(w)
	}

	if !p.IsEmpty() {
		ok, err := s.confirmer.Confirm(ctx, p)
		if err != nil {
			return false, s.fail(err)
		}
		if !ok {
			logger.Info().Str("entity", string(p.Entity)).Msg("Plan declined")
			result.Declined = true
			return false, s.transition(StateIdle)
		}
	}

	if err := s.transition(StateApplying); err != nil {
		return false, err
	}
	report, applyErr := s.applier.Apply(ctx, p)
	result.Report.Merge(report)

	if err := s.transition(StatePersisting); err != nil {
		return false, err
	}
	// Outcomes of a canceled pass are still recorded.
	if err := s.persist(context.WithoutCancel(ctx), report); err != nil {
		return false, s.fail(err)
	}
	if applyErr != nil {
		return false, s.fail(applyErr)
	}
	return true, nil
}
