package session

import (
	"context"

	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
)

// Confirmer decides whether a plan may be applied. Interactive prompts
// live behind this interface, never inside the session.
type Confirmer interface {
	Confirm(ctx context.Context, p *plan.Plan) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, p *plan.Plan) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, p *plan.Plan) (bool, error) {
	return f(ctx, p)
}

// AutoApprove accepts every plan.
var AutoApprove Confirmer = ConfirmFunc(func(context.Context, *plan.Plan) (bool, error) {
	return true, nil
})
