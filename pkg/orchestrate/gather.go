package orchestrate

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/pellucid-labs/craftpilot/pkg/catalog"
	"github.com/pellucid-labs/craftpilot/pkg/resolver"
	"github.com/pellucid-labs/craftpilot/pkg/tools"
)

// Config tunes orchestrator behavior.
type Config struct {
	// RetryBudget is the number of retries allowed after the first attempt.
	RetryBudget int
	// RetryDelay is the minimum pause before a retry is issued.
	RetryDelay time.Duration
	// Order selects gathering task sequencing. Zero value is PlanOrder.
	Order OrderPolicy
}

// GatheringOrchestrator drives the external gathering tool through the
// gather list of a resolved plan. The tool has no per-item primitive, so
// issuance works by pushing the full set of runnable target items and
// enabling it; progress is read back from inventory deltas.
type GatheringOrchestrator struct {
	tool    tools.GatheringTool
	monitor *tools.Monitor
	diag    *tools.Diagnoser
	reset   tools.Resettable // nil when the tool exposes no reset surface
	inv     catalog.Inventory
	cfg     Config

	tasks       []*GatheringTask
	configured  []string
	started     bool
	stopped     bool
	retries     int
	nextRetryAt time.Time
	halt        tools.DisableReason
}

// NewGatheringOrchestrator wires the orchestrator to its collaborators.
// diag and reset may be nil when the tool offers no introspection.
func NewGatheringOrchestrator(tool tools.GatheringTool, monitor *tools.Monitor, diag *tools.Diagnoser, reset tools.Resettable, inv catalog.Inventory, cfg Config) *GatheringOrchestrator {
	return &GatheringOrchestrator{tool: tool, monitor: monitor, diag: diag, reset: reset, inv: inv, cfg: cfg}
}

// LoadPlan replaces the task list with the plan's outstanding gather lines.
// The ordering policy is applied here, once; Advance never reorders.
func (o *GatheringOrchestrator) LoadPlan(plan *resolver.ResolvedRecipe, now time.Time) {
	o.tasks = o.tasks[:0]
	for _, m := range plan.GatherList {
		if m.QuantityRemaining <= 0 {
			continue
		}
		o.tasks = append(o.tasks, &GatheringTask{
			ItemID:   m.ItemID,
			Name:     m.Name,
			Required: m.QuantityRemaining,
			Baseline: -1,
			Zone:     m.Zone,
			Windows:  m.Windows,
			Status:   StatusPending,
		})
	}
	orderTasks(o.tasks, o.cfg.Order, now)
	o.configured = nil
	o.started = false
	o.stopped = false
	o.retries = 0
	o.halt = ""
}

// Tasks returns the live task list in execution order.
func (o *GatheringOrchestrator) Tasks() []*GatheringTask { return o.tasks }

// Summary counts tasks per status.
func (o *GatheringOrchestrator) Summary() Summary {
	var s Summary
	for _, t := range o.tasks {
		s.count(t.Status)
	}
	return s
}

// Halted returns the disable reason that most recently failed a task,
// if any.
func (o *GatheringOrchestrator) Halted() (tools.DisableReason, bool) {
	return o.halt, o.halt != ""
}

// Advance performs one tick of gathering work: account progress from the
// inventory, reconcile the tool's target list, and react if the tool
// stopped on its own. It never blocks beyond the underlying tool calls.
func (o *GatheringOrchestrator) Advance(ctx context.Context, now time.Time) error {
	if o.Summary().Done() {
		return o.shutdown(ctx)
	}

	snap := o.monitor.Poll(ctx, now)
	if !snap.GathererAvailable {
		// Unreachable tool: wait for the next tick, no retry burned.
		return nil
	}

	if err := o.account(now); err != nil {
		return err
	}
	if o.Summary().Done() {
		return o.shutdown(ctx)
	}

	active := o.activeTargets(now)
	if len(active) == 0 {
		// Everything runnable is done; the rest waits on time windows.
		return o.shutdown(ctx)
	}
	if !slices.Equal(active, o.configured) {
		if err := o.tool.SetTargetItems(ctx, active); err != nil {
			// Transient bridge error: leave the list unsynced and try
			// again next tick.
			return nil
		}
		o.configured = active
	}

	if snap.GathererRunning {
		o.stopped = false
		return nil
	}

	if !o.started {
		if err := o.tool.Enable(ctx); err != nil {
			return nil
		}
		o.started = true
		o.stopped = false
		return nil
	}
	return o.handleStop(ctx, now)
}

// account records baselines, promotes runnable tasks and completes tasks
// whose inventory delta reached the requirement.
func (o *GatheringOrchestrator) account(now time.Time) error {
	for _, t := range o.tasks {
		if t.Status.Terminal() {
			continue
		}
		if !t.inWindow(now) {
			if t.Status == StatusPending || t.Status == StatusInProgress {
				if err := advance(&t.Status, StatusWaitingForWindow); err != nil {
					return err
				}
			}
			continue
		}
		owned := o.inv.OwnedQuantity(t.ItemID)
		if t.Baseline < 0 {
			t.Baseline = owned
		}
		if t.Status != StatusInProgress {
			if err := advance(&t.Status, StatusInProgress); err != nil {
				return err
			}
		}
		if t.Progress(owned) >= t.Required {
			if err := advance(&t.Status, StatusCompleted); err != nil {
				return err
			}
			o.retries = 0
		}
	}
	return nil
}

// activeTargets returns the item ids the tool should pursue right now.
func (o *GatheringOrchestrator) activeTargets(now time.Time) []string {
	var ids []string
	for _, t := range o.tasks {
		if !t.Status.Terminal() && t.inWindow(now) {
			ids = append(ids, t.ItemID)
		}
	}
	return ids
}

// handleStop reacts to the tool stopping on its own while work remains:
// diagnose, reset if that can help, and retry within budget. A task that
// runs out of options fails alone; the rest of the plan keeps going and
// the end-of-run failure policy decides what a failed task means.
func (o *GatheringOrchestrator) handleStop(ctx context.Context, now time.Time) error {
	if o.stopped && now.Before(o.nextRetryAt) {
		return nil
	}
	o.stopped = true

	reason := tools.ReasonUnknown
	if o.diag != nil {
		reason = o.diag.Snapshot(true).Reason
	}

	if retryable(reason) {
		if reason == tools.ReasonInternalError || reason == tools.ReasonStuckAtTarget {
			tools.ForceReset(o.reset)
		}
		if o.retries < o.cfg.RetryBudget {
			o.retries++
			o.nextRetryAt = now.Add(o.cfg.RetryDelay)
			if err := o.tool.Enable(ctx); err != nil {
				// Burned retry; the next stop cycle tries again.
				return nil
			}
			return nil
		}
		o.failCurrent(fmt.Sprintf("retry budget exhausted: %s", reason))
	} else {
		o.failCurrent(fmt.Sprintf("tool disabled: %s", reason))
	}

	// Restart fresh for whatever work remains. The failed item drops out
	// of the target list on the next tick.
	o.halt = reason
	o.retries = 0
	o.started = false
	o.stopped = false
	o.configured = nil
	return nil
}

// failCurrent fails the first non-terminal task, the one the tool was
// working on when it stopped.
func (o *GatheringOrchestrator) failCurrent(msg string) {
	for _, t := range o.tasks {
		if !t.Status.Terminal() {
			t.Status = StatusFailed
			t.LastError = msg
			return
		}
	}
}

// shutdown disables the tool once all runnable work is exhausted.
func (o *GatheringOrchestrator) shutdown(ctx context.Context) error {
	if o.configured == nil && !o.started {
		return nil
	}
	o.configured = nil
	o.started = false
	if err := o.tool.Disable(ctx); err != nil {
		return fmt.Errorf("disable gatherer: %w", err)
	}
	return nil
}

// retryable reports whether a disable reason is worth another enable.
// Reasons caused by the operator or by unmet preconditions are not.
func retryable(r tools.DisableReason) bool {
	switch r {
	case tools.ReasonPathfindingFailed,
		tools.ReasonTimeout,
		tools.ReasonTeleportFailed,
		tools.ReasonStuckAtTarget,
		tools.ReasonInternalError,
		tools.ReasonUnknown:
		return true
	}
	return false
}
