package applier

import "github.com/ervinkurbegovic/jamfsync/pkg/errors"

// DefaultConcurrency is the number of items applied in parallel within a phase.
const DefaultConcurrency = 4

type options struct {
	concurrency int
}

func defaultOptions() *options {
	return &options{concurrency: DefaultConcurrency}
}

// Option configures an Applier.
type Option func(*options) error

// WithConcurrency bounds the number of in-flight mirror requests per phase.
func WithConcurrency(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return &errors.ValidationError{Field: "concurrency", Value: n, Message: "must be at least 1"}
		}
		o.concurrency = n
		return nil
	}
}
