package orchestrate

import (
	"sort"
	"time"
)

// OrderPolicy selects how gathering tasks are sequenced. The policy is
// applied once when the plan is loaded; a running orchestrator never
// reorders tasks.
type OrderPolicy string

const (
	// PlanOrder keeps the resolver's order (dependency-closure first-seen).
	PlanOrder OrderPolicy = "plan"
	// ZoneGrouped groups tasks sharing a zone to cut travel, preserving the
	// first-seen order of the zones themselves.
	ZoneGrouped OrderPolicy = "zone"
	// WindowUrgency puts tasks whose availability window closes soonest
	// first; windowless tasks run last.
	WindowUrgency OrderPolicy = "window"
)

func orderTasks(tasks []*GatheringTask, policy OrderPolicy, now time.Time) {
	switch policy {
	case ZoneGrouped:
		first := make(map[string]int, len(tasks))
		for i, t := range tasks {
			if _, seen := first[t.Zone]; !seen {
				first[t.Zone] = i
			}
		}
		sort.SliceStable(tasks, func(i, j int) bool {
			return first[tasks[i].Zone] < first[tasks[j].Zone]
		})
	case WindowUrgency:
		sort.SliceStable(tasks, func(i, j int) bool {
			return windowDeadline(tasks[i], now) < windowDeadline(tasks[j], now)
		})
	}
}

// windowDeadline returns the hours until the task's current or next window
// closes. Windowless tasks sort last.
func windowDeadline(t *GatheringTask, now time.Time) int {
	if len(t.Windows) == 0 {
		return 48
	}
	hour := now.Hour()
	best := 48
	for _, w := range t.Windows {
		var d int
		switch {
		case w.Contains(hour):
			d = hoursUntil(hour, w.EndHour)
		default:
			// closed now: deadline is the close of the next occurrence
			d = hoursUntil(hour, w.StartHour) + hoursUntil(w.StartHour, w.EndHour)
		}
		if d < best {
			best = d
		}
	}
	return best
}

func hoursUntil(from, to int) int {
	d := to - from
	if d <= 0 {
		d += 24
	}
	return d
}
