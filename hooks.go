package jamfsync

import (
	"sync"

	"github.com/ervinkurbegovic/jamfsync/pkg/applier"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

// Hook function types for sync events
type (
	// AppliedHook is called for every plan item the mirror accepted.
	AppliedHook func(outcome applier.Outcome)

	// FailedHook is called for every plan item that failed.
	FailedHook func(failure applier.Failure)

	// PassHook is called after every pass, including failed ones. result
	// may be nil when the pass never started.
	PassHook func(result *session.Result, err error)
)

// Hooks registers event callbacks.
type Hooks interface {
	OnApplied(AppliedHook)
	OnFailed(FailedHook)
	OnPass(PassHook)
}

// hooks manages event callbacks for sync passes
type hooks struct {
	mu        sync.RWMutex
	onApplied []AppliedHook
	onFailed  []FailedHook
	onPass    []PassHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnApplied implements Hooks.
func (c *client) OnApplied(fn AppliedHook) {
	c.hooks.add(func(h *hooks) { h.onApplied = append(h.onApplied, fn) })
}

// OnFailed implements Hooks.
func (c *client) OnFailed(fn FailedHook) {
	c.hooks.add(func(h *hooks) { h.onFailed = append(h.onFailed, fn) })
}

// OnPass implements Hooks.
func (c *client) OnPass(fn PassHook) {
	c.hooks.add(func(h *hooks) { h.onPass = append(h.onPass, fn) })
}

func (h *hooks) add(register func(*hooks)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	register(h)
}

// triggerReport fires the item hooks for one report.
func (h *hooks) triggerReport(report *applier.Report) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, o := range report.Outcomes {
		if !o.Succeeded() {
			continue
		}
		for _, hook := range h.onApplied {
			hook(o)
		}
	}
	for _, f := range report.Failures {
		for _, hook := range h.onFailed {
			hook(f)
		}
	}
}

func (h *hooks) triggerPass(result *session.Result, err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onPass {
		hook(result, err)
	}
}
