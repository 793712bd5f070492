package console

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/pellucid-labs/craftpilot/pkg/orchestrate"
	"github.com/pellucid-labs/craftpilot/pkg/workflow"
)

// handleTick advances the engine by n ticks (default 1), stepping the
// attached simulated world alongside.
func (c *Console) handleTick(ctx context.Context, parts []string) error {
	n := 1
	if len(parts) > 1 {
		parsed, err := strconv.Atoi(parts[1])
		if err != nil || parsed < 1 {
			return fmt.Errorf("tick count must be a positive integer, got %q", parts[1])
		}
		n = parsed
	}

	for i := 0; i < n; i++ {
		if err := c.engine.Tick(ctx, time.Now()); err != nil {
			return err
		}
		if c.world != nil {
			c.world.Step()
		}
		if c.engine.State().Phase.Terminal() {
			break
		}
	}
	fmt.Fprintf(c.output, "  %s\n", c.engine.StatusLine())
	return nil
}

// handleStatus shows the one-line run status.
func (c *Console) handleStatus() {
	fmt.Fprintf(c.output, "  %s\n", c.engine.StatusLine())
}

// handlePlan renders the resolved plan: gather list, craft order and
// unsourceable materials.
func (c *Console) handlePlan() {
	plan := c.engine.State().Plan
	if plan == nil {
		fmt.Fprintf(c.output, "No plan resolved yet.\n")
		return
	}

	fmt.Fprintf(c.output, "Plan for %s x%d:\n", plan.TargetItemID, plan.TargetQuantity)
	if len(plan.GatherList) > 0 {
		fmt.Fprintf(c.output, "Gather:\n")
		for _, m := range plan.GatherList {
			line := fmt.Sprintf("%s  need %d, own %d, gather %d",
				pad(m.ItemID, 24), m.QuantityNeeded, m.QuantityOwned, m.QuantityRemaining)
			if m.Zone != "" {
				line += "  @" + m.Zone
			}
			fmt.Fprintf(c.output, "  %s\n", line)
		}
	}
	if len(plan.CraftOrder) > 0 {
		fmt.Fprintf(c.output, "Craft:\n")
		for i, step := range plan.CraftOrder {
			fmt.Fprintf(c.output, "  %2d. %s x%d runs (%d units)\n",
				i+1, pad(step.Recipe.ItemID, 24), step.Quantity, step.Units)
		}
	}
	if len(plan.OtherMaterials) > 0 {
		fmt.Fprintf(c.output, "Other (no automatable source):\n")
		for _, m := range plan.OtherMaterials {
			fmt.Fprintf(c.output, "  %s  need %d\n", pad(m.ItemID, 24), m.QuantityRemaining)
		}
	}
}

// handleTasks renders the live task tables of both orchestrators.
func (c *Console) handleTasks() {
	gather := c.engine.GatherTasks()
	craft := c.engine.CraftTasks()
	if len(gather) == 0 && len(craft) == 0 {
		fmt.Fprintf(c.output, "No tasks loaded.\n")
		return
	}

	if len(gather) > 0 {
		fmt.Fprintf(c.output, "Gathering:\n")
		for _, t := range gather {
			fmt.Fprintf(c.output, "  %s %s %s\n",
				statusMark(t.Status), pad(t.ItemID, 24), pad(string(t.Status), 20))
			if t.LastError != "" {
				fmt.Fprintf(c.output, "       error: %s\n", t.LastError)
			}
		}
	}
	if len(craft) > 0 {
		fmt.Fprintf(c.output, "Crafting:\n")
		for _, t := range craft {
			fmt.Fprintf(c.output, "  %s %s %s attempts=%d\n",
				statusMark(t.Status), pad(t.ItemID, 24), pad(string(t.Status), 20), t.Attempts)
			if t.LastError != "" {
				fmt.Fprintf(c.output, "       error: %s\n", t.LastError)
			}
		}
	}
}

// handleDump outputs the full run state as JSON.
func (c *Console) handleDump() {
	state := c.engine.State()
	data, err := json.MarshalIndent(&state, "", "  ")
	if err != nil {
		fmt.Fprintf(c.output, "  Error marshaling state: %v\n", err)
		return
	}
	fmt.Fprintln(c.output, string(data))
}

// handleSnapshot saves a snapshot of the current run state.
func (c *Console) handleSnapshot() {
	state := c.engine.State()
	if state.RunID == "" {
		fmt.Fprintf(c.output, "No active run to snapshot.\n")
		return
	}
	path := filepath.Join(c.snapshotDir,
		fmt.Sprintf("%s-tick-%04d.json", state.RunID, state.Ticks))
	if err := workflow.SaveSnapshot(&state, path); err != nil {
		fmt.Fprintf(c.output, "  Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.output, "  Snapshot saved: %s\n", path)
}

// handleHelp displays available commands.
func (c *Console) handleHelp() {
	fmt.Fprintln(c.output, "Available commands:")
	fmt.Fprintln(c.output, "  tick [n] (t)     Advance the run by n ticks (default 1)")
	fmt.Fprintln(c.output, "  status (s)       Show the one-line run status")
	fmt.Fprintln(c.output, "  plan             Show the resolved plan")
	fmt.Fprintln(c.output, "  tasks            Show live gathering and crafting tasks")
	fmt.Fprintln(c.output, "  pause            Park the run; ticks become no-ops")
	fmt.Fprintln(c.output, "  resume           Return a paused run to its phase")
	fmt.Fprintln(c.output, "  cancel           Abort the run, disabling tools first")
	fmt.Fprintln(c.output, "  dump             Output full run state as JSON")
	fmt.Fprintln(c.output, "  snapshot         Save run state snapshot")
	fmt.Fprintln(c.output, "  help (?)         Show this help")
	fmt.Fprintln(c.output, "  quit (q)         Exit console")
}

// pad right-pads s to the given display width, accounting for wide runes in
// item names.
func pad(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + spaces(width-w)
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

func statusMark(s orchestrate.TaskStatus) string {
	switch s {
	case orchestrate.StatusCompleted:
		return "✓"
	case orchestrate.StatusFailed:
		return "✗"
	case orchestrate.StatusSkipped:
		return "-"
	case orchestrate.StatusInProgress:
		return ">"
	default:
		return " "
	}
}
