package orchestrate

import (
	"context"
	"time"

	"github.com/pellucid-labs/craftpilot/pkg/catalog"
	"github.com/pellucid-labs/craftpilot/pkg/resolver"
	"github.com/pellucid-labs/craftpilot/pkg/tools"
)

// CraftingOrchestrator executes the craft order strictly in sequence. Each
// step is issued as a batch of craft runs; completion is observed through
// the inventory delta on the step's output item. A step that the tool
// abandons short of its target is retried within the configured budget,
// re-issuing only the missing runs.
type CraftingOrchestrator struct {
	tool tools.CraftingTool
	inv  catalog.Inventory
	cfg  Config

	solver      string
	tasks       []*CraftingTask
	nextRetryAt time.Time
}

// NewCraftingOrchestrator wires the orchestrator to its collaborators.
func NewCraftingOrchestrator(tool tools.CraftingTool, inv catalog.Inventory, cfg Config) *CraftingOrchestrator {
	return &CraftingOrchestrator{tool: tool, inv: inv, cfg: cfg}
}

// SetSolverName selects the solver pushed to the tool before each step.
// Empty leaves the tool's current solver untouched.
func (o *CraftingOrchestrator) SetSolverName(name string) { o.solver = name }

// LoadPlan replaces the task list with the plan's craft order.
func (o *CraftingOrchestrator) LoadPlan(plan *resolver.ResolvedRecipe) {
	o.tasks = o.tasks[:0]
	for _, step := range plan.CraftOrder {
		o.tasks = append(o.tasks, &CraftingTask{
			RecipeID: step.Recipe.RecipeID,
			ItemID:   step.Recipe.ItemID,
			Name:     step.Recipe.Name,
			Runs:     step.Quantity,
			Units:    step.Units,
			Yield:    step.Recipe.Yield,
			Baseline: -1,
			Status:   StatusPending,
		})
	}
	o.nextRetryAt = time.Time{}
}

// Tasks returns the live task list in execution order.
func (o *CraftingOrchestrator) Tasks() []*CraftingTask { return o.tasks }

// Summary counts tasks per status.
func (o *CraftingOrchestrator) Summary() Summary {
	var s Summary
	for _, t := range o.tasks {
		s.count(t.Status)
	}
	return s
}

// Advance performs one tick of crafting work on the current step.
func (o *CraftingOrchestrator) Advance(ctx context.Context, now time.Time) error {
	t := o.current()
	if t == nil {
		return nil
	}

	switch t.Status {
	case StatusPending:
		return o.issue(ctx, t, now, t.Runs)

	case StatusInProgress:
		owned := o.inv.OwnedQuantity(t.ItemID)
		if t.Produced(owned) >= t.Units {
			return advance(&t.Status, StatusCompleted)
		}
		busy, err := o.tool.IsBusy(ctx)
		if err != nil {
			// Unreachable tool: wait, no attempt burned.
			return nil
		}
		if busy {
			return nil
		}
		// Idle but short of target: the tool gave up mid-step.
		if t.Attempts > o.cfg.RetryBudget {
			o.fail(t, "craft stopped short of target units")
			return nil
		}
		if now.Before(o.nextRetryAt) {
			return nil
		}
		missing := t.Units - t.Produced(owned)
		return o.issue(ctx, t, now, ceilDiv(missing, t.Yield))
	}
	return nil
}

// current returns the first non-terminal step, or nil when the order is
// exhausted.
func (o *CraftingOrchestrator) current() *CraftingTask {
	for _, t := range o.tasks {
		if !t.Status.Terminal() {
			return t
		}
	}
	return nil
}

func (o *CraftingOrchestrator) issue(ctx context.Context, t *CraftingTask, now time.Time, runs int) error {
	if t.Baseline < 0 {
		t.Baseline = o.inv.OwnedQuantity(t.ItemID)
	}
	if o.solver != "" && t.Attempts == 0 {
		if err := o.tool.SetSolver(ctx, t.RecipeID, o.solver); err != nil {
			t.LastError = err.Error()
		}
	}

	t.Attempts++
	o.nextRetryAt = now.Add(o.cfg.RetryDelay)
	if err := o.tool.CraftItem(ctx, t.RecipeID, runs); err != nil {
		// A rejected issuance burns the attempt; the stall path retries or
		// fails the step on a later tick.
		t.LastError = err.Error()
	}
	return advance(&t.Status, StatusInProgress)
}

// fail marks the step failed and skips every later step: craft steps feed
// their successors, so the rest of the order is unsatisfiable.
func (o *CraftingOrchestrator) fail(t *CraftingTask, msg string) {
	t.Status = StatusFailed
	t.LastError = msg
	seen := false
	for _, other := range o.tasks {
		if other == t {
			seen = true
			continue
		}
		if seen && !other.Status.Terminal() {
			other.Status = StatusSkipped
			other.LastError = "dependency failed: " + t.ItemID
		}
	}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
