package app

import (
	"context"
	"fmt"
	"io"

	"github.com/ervinkurbegovic/jamfsync/internal/cmd/constants"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/globals"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/output"
	"github.com/ervinkurbegovic/jamfsync/internal/cmd/prompt"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

// Prompt asks on a terminal before a plan is applied.
type Prompt struct {
	in     io.Reader
	out    io.Writer
	format string
}

var _ session.Confirmer = (*Prompt)(nil)

// NewPrompt returns a Prompt that shows plans on out in a table and reads
// the answer from in.
func NewPrompt(in io.Reader, out io.Writer, format string) *Prompt {
	if format != constants.FormatWide {
		format = constants.FormatTable
	}
	return &Prompt{in: in, out: out, format: format}
}

// Confirm implements session.Confirmer. Anything but "y" or "yes" declines.
func (p *Prompt) Confirm(ctx context.Context, pl *plan.Plan) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if err := output.FormatPlans(p.out, []*plan.Plan{pl}, &globals.Flags{Output: p.format}); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "\n%s\n", pl.Summary())

	if !prompt.Ask(p.in, p.out, "Apply these changes?") {
		fmt.Fprintln(p.out, "Cancelled")
		return false, nil
	}
	return true, nil
}
