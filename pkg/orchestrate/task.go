// Package orchestrate executes a resolved plan against the external tools.
// The gathering orchestrator drives the batch-configured gathering tool and
// accounts progress through inventory deltas; the crafting orchestrator
// issues craft steps strictly in dependency order. Both advance one small
// slice of work per tick and never block.
package orchestrate

import (
	"fmt"
	"time"

	"github.com/pellucid-labs/craftpilot/pkg/catalog"
)

// TaskStatus is the lifecycle state of one plan task. Transitions are
// forward-only with one exception: an in-progress task parks in
// waiting_for_window while its time window is closed and resumes when it
// reopens. A terminal task never becomes runnable again.
type TaskStatus string

const (
	StatusPending          TaskStatus = "pending"
	StatusWaitingForWindow TaskStatus = "waiting_for_window"
	StatusInProgress       TaskStatus = "in_progress"
	StatusCompleted        TaskStatus = "completed"
	StatusFailed           TaskStatus = "failed"
	StatusSkipped          TaskStatus = "skipped"
)

var statusRank = map[TaskStatus]int{
	StatusPending:          0,
	StatusWaitingForWindow: 1,
	StatusInProgress:       2,
	StatusCompleted:        3,
	StatusFailed:           3,
	StatusSkipped:          3,
}

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return statusRank[s] == 3
}

// advance moves cur to next, enforcing the forward-only order. Same-rank
// moves between distinct states are rejected. The in-progress to
// waiting_for_window move is the one sanctioned oscillation: window
// suspension must be visible in the task status, not inferred from the
// target list.
func advance(cur *TaskStatus, next TaskStatus) error {
	if *cur == next {
		return nil
	}
	if *cur == StatusInProgress && next == StatusWaitingForWindow {
		*cur = next
		return nil
	}
	if statusRank[next] <= statusRank[*cur] {
		return fmt.Errorf("task transition %s -> %s goes backward", *cur, next)
	}
	*cur = next
	return nil
}

// GatheringTask tracks one gather-list line. Progress is counted from the
// inventory baseline recorded when the task first activates, so units owned
// before the run never count toward it.
type GatheringTask struct {
	ItemID   string               `json:"item_id"`
	Name     string               `json:"name,omitempty"`
	Required int                  `json:"required"`
	Baseline int                  `json:"baseline"` // -1 until activated
	Zone     string               `json:"zone,omitempty"`
	Windows  []catalog.TimeWindow `json:"windows,omitempty"`

	Status    TaskStatus `json:"status"`
	LastError string     `json:"last_error,omitempty"`
}

// Progress returns how many units have been acquired since activation,
// clamped to [0, Required].
func (t *GatheringTask) Progress(owned int) int {
	if t.Baseline < 0 {
		return 0
	}
	p := owned - t.Baseline
	if p < 0 {
		p = 0
	}
	if p > t.Required {
		p = t.Required
	}
	return p
}

// inWindow reports whether the task may run at the given wall-clock time.
// A task without windows is always eligible.
func (t *GatheringTask) inWindow(now time.Time) bool {
	if len(t.Windows) == 0 {
		return true
	}
	hour := now.Hour()
	for _, w := range t.Windows {
		if w.Contains(hour) {
			return true
		}
	}
	return false
}

// CraftingTask tracks one craft-order step. Steps depend on their
// predecessors, so a failed step skips everything after it.
type CraftingTask struct {
	RecipeID string `json:"recipe_id"`
	ItemID   string `json:"item_id"`
	Name     string `json:"name,omitempty"`
	Runs     int    `json:"runs"`
	Units    int    `json:"units"`
	Yield    int    `json:"yield"`
	Baseline int    `json:"baseline"` // -1 until issued

	Status    TaskStatus `json:"status"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"last_error,omitempty"`
}

// Produced returns how many units this step has produced since it was
// issued, clamped to [0, Units].
func (t *CraftingTask) Produced(owned int) int {
	if t.Baseline < 0 {
		return 0
	}
	p := owned - t.Baseline
	if p < 0 {
		p = 0
	}
	if p > t.Units {
		p = t.Units
	}
	return p
}

// Summary is a per-status task count for one orchestrator.
type Summary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Waiting    int `json:"waiting"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Done reports whether every task reached a terminal status.
func (s Summary) Done() bool {
	return s.Completed+s.Failed+s.Skipped == s.Total
}

// Succeeded reports whether every task completed.
func (s Summary) Succeeded() bool {
	return s.Completed == s.Total
}

func (s *Summary) count(status TaskStatus) {
	s.Total++
	switch status {
	case StatusPending:
		s.Pending++
	case StatusWaitingForWindow:
		s.Waiting++
	case StatusInProgress:
		s.InProgress++
	case StatusCompleted:
		s.Completed++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}
