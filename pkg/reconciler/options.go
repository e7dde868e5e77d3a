package reconciler

import (
	"math/rand/v2"
	"time"

	"github.com/ervinkurbegovic/jamfsync/pkg/differ"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
)

// Defaults matching an IServ installation and the markers earlier
// jamfsync versions wrote into Jamf School.
const (
	DefaultTeacherGroup       = "lehrkraefte"
	DefaultSyncMarker         = "jamfsync"
	DefaultAllTeachersPattern = "klasse"
	DefaultPersonNotes        = "automatisch generierte Benutzer auf Basis der IServ-Benuter."
	DefaultGroupDescription   = "automatisch generierte Klasse auf Basis der IServ-Gruppen."
)

type options struct {
	teacherGroup       string
	syncMarker         string
	allTeachersPattern string
	personNotes        string
	groupDescription   string
	groupPrefix        string
	groupSuffix        string
	rand               *rand.Rand
	differ             differ.Differ
}

func defaultOptions() *options {
	seed := uint64(time.Now().UnixNano())
	return &options{
		teacherGroup:       DefaultTeacherGroup,
		syncMarker:         DefaultSyncMarker,
		allTeachersPattern: DefaultAllTeachersPattern,
		personNotes:        DefaultPersonNotes,
		groupDescription:   DefaultGroupDescription,
		rand:               rand.New(rand.NewPCG(seed, seed>>1)),
		differ:             differ.New(),
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithTeacherGroup sets the source group whose members are teachers.
func WithTeacherGroup(name string) Option {
	return func(o *options) error {
		if name == "" {
			return &errors.ValidationError{Field: "teacher_group", Message: "cannot be empty"}
		}
		o.teacherGroup = name
		return nil
	}
}

// WithSyncMarker sets the group marker value that makes a source group sync-eligible.
func WithSyncMarker(marker string) Option {
	return func(o *options) error {
		if marker == "" {
			return &errors.ValidationError{Field: "sync_marker", Message: "cannot be empty"}
		}
		o.syncMarker = marker
		return nil
	}
}

// WithAllTeachersPattern sets the substring that makes a group receive every
// teacher instead of only its own teacher members. Empty disables the rule.
func WithAllTeachersPattern(pattern string) Option {
	return func(o *options) error {
		o.allTeachersPattern = pattern
		return nil
	}
}

// WithPersonNotes sets the marker written into created people.
func WithPersonNotes(notes string) Option {
	return func(o *options) error {
		o.personNotes = notes
		return nil
	}
}

// WithGroupDescription sets the marker written into created groups.
func WithGroupDescription(description string) Option {
	return func(o *options) error {
		o.groupDescription = description
		return nil
	}
}

// WithGroupNameAffixes sets the text put before and after every source
// group name to form the mirror class name.
func WithGroupNameAffixes(prefix, suffix string) Option {
	return func(o *options) error {
		o.groupPrefix = prefix
		o.groupSuffix = suffix
		return nil
	}
}

// WithRand sets the random source used for name disambiguation.
func WithRand(r *rand.Rand) Option {
	return func(o *options) error {
		if r == nil {
			return &errors.ValidationError{Field: "rand", Message: "cannot be nil"}
		}
		o.rand = r
		return nil
	}
}

// WithDiffer replaces the attribute differ.
func WithDiffer(d differ.Differ) Option {
	return func(o *options) error {
		if d == nil {
			return &errors.ValidationError{Field: "differ", Message: "cannot be nil"}
		}
		o.differ = d
		return nil
	}
}
