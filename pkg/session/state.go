package session

import (
	"fmt"

	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
)

// State is the lifecycle state of a Session.
type State string

// States.
const (
	StateIdle         State = "idle"
	StateSnapshotting State = "snapshotting"
	StatePlanning     State = "planning"
	StateApplying     State = "applying"
	StatePersisting   State = "persisting"
	StateFailed       State = "failed"
)

// transitions lists the legal successors of each state. Any non-idle state
// may also move to failed.
var transitions = map[State][]State{
	StateIdle:         {StateSnapshotting},
	StateSnapshotting: {StatePlanning},
	StatePlanning:     {StateApplying, StateIdle},
	StateApplying:     {StatePersisting},
	StatePersisting:   {StatePlanning, StateIdle},
	StateFailed:       {StateIdle},
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return from != StateIdle && from != StateFailed
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *Session) transition(to State) error {
	s.mu.Lock()
	from := s.state
	if !CanTransition(from, to) {
		s.mu.Unlock()
		return &errors.ValidationError{
			Field:   "state",
			Value:   to,
			Message: fmt.Sprintf("illegal transition %s -> %s", from, to),
		}
	}
	s.state = to
	hooks := s.stateHooks
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(from, to)
	}
	return nil
}

// fail moves the session to failed and returns err unchanged.
func (s *Session) fail(err error) error {
	_ = s.transition(StateFailed)
	return err
}
