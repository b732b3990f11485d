package confini

import (
	"context"
	"sync"

	"github.com/ondata/confini/pkg/geometry"
	"github.com/ondata/confini/pkg/table"
)

// Hook function types for build events
type (
	// DefectsHook is called once per validated division with its defect count
	DefectsHook func(ctx context.Context, release, division string, defects int, diagnostics []geometry.Diagnostic)

	// DivisionEnrichedHook is called when the enriched table of a division was written
	DivisionEnrichedHook func(ctx context.Context, release, division string, t *table.Table)

	// ReleaseSkippedHook is called when a release could not be acquired
	ReleaseSkippedHook func(ctx context.Context, release string, err error)
)

// hooks manages event callbacks for build events
type hooks struct {
	mu         sync.RWMutex
	onDefects  []DefectsHook
	onEnriched []DivisionEnrichedHook
	onSkipped  []ReleaseSkippedHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnDefects registers a callback for defect reports
func (h *hooks) OnDefects(fn DefectsHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDefects = append(h.onDefects, fn)
}

// OnDivisionEnriched registers a callback for enriched divisions
func (h *hooks) OnDivisionEnriched(fn DivisionEnrichedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onEnriched = append(h.onEnriched, fn)
}

// OnReleaseSkipped registers a callback for skipped releases
func (h *hooks) OnReleaseSkipped(fn ReleaseSkippedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onSkipped = append(h.onSkipped, fn)
}

func (h *hooks) triggerDefects(ctx context.Context, release, division string, defects int, diagnostics []geometry.Diagnostic) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onDefects {
		fn(ctx, release, division, defects, diagnostics)
	}
}

func (h *hooks) triggerEnriched(ctx context.Context, release, division string, t *table.Table) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onEnriched {
		fn(ctx, release, division, t)
	}
}

func (h *hooks) triggerSkipped(ctx context.Context, release string, err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onSkipped {
		fn(ctx, release, err)
	}
}
