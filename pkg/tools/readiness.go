package tools

import (
	"context"
	"sync"
	"time"
)

// ReadinessSnapshot is a point-in-time view of tool reachability. Replaced
// wholesale on each refresh so readers never observe a torn update.
type ReadinessSnapshot struct {
	GathererAvailable   bool      `json:"gatherer_available"`
	GathererRunning     bool      `json:"gatherer_running"`
	PathfinderAvailable bool      `json:"pathfinder_available"`
	PathfinderReady     bool      `json:"pathfinder_ready"`
	BuildProgress       float64   `json:"build_progress"` // [0,1]
	TakenAt             time.Time `json:"taken_at"`
}

// FailureCategory is the single most specific blocking reason derived from
// a readiness snapshot.
type FailureCategory string

const (
	FailureNone                  FailureCategory = "none"
	FailureGathererUnavailable   FailureCategory = "gatherer_unavailable"
	FailureNavmeshBuilding       FailureCategory = "navmesh_building"
	FailurePathfinderUnavailable FailureCategory = "pathfinder_unavailable"
)

// Monitor maintains a cached readiness snapshot, refreshed at most once per
// interval. Probe failures are recorded, never propagated: Refresh always
// succeeds.
type Monitor struct {
	gatherer   GatheringTool
	pathfinder PathfindingTool // nil when not installed
	interval   time.Duration

	mu          sync.Mutex
	snap        ReadinessSnapshot
	lastRefresh time.Time
}

// NewMonitor creates a monitor for the given handles. pathfinder may be nil.
func NewMonitor(gatherer GatheringTool, pathfinder PathfindingTool, interval time.Duration) *Monitor {
	return &Monitor{gatherer: gatherer, pathfinder: pathfinder, interval: interval}
}

// Refresh probes both tools and swaps in a new snapshot. A probe that
// errors or panics marks the tool unavailable; an absent optional
// pathfinder synthesizes ready=true so a missing helper never blocks
// the pipeline permanently.
func (m *Monitor) Refresh(ctx context.Context) ReadinessSnapshot {
	snap := ReadinessSnapshot{TakenAt: time.Now()}

	if m.gatherer != nil {
		running, err := probeBool(ctx, m.gatherer.IsRunning)
		if err == nil {
			snap.GathererAvailable = true
			snap.GathererRunning = running
		}
	}

	if m.pathfinder == nil {
		// Optimistic defaults: absence of an optional tool is not a failure.
		snap.PathfinderReady = true
		snap.BuildProgress = 1.0
	} else {
		ready, err := probeBool(ctx, m.pathfinder.IsReady)
		if err == nil {
			snap.PathfinderAvailable = true
			snap.PathfinderReady = ready
			if progress, perr := probeFloat(ctx, m.pathfinder.BuildProgress); perr == nil {
				snap.BuildProgress = progress
			}
		} else {
			// Unreachable optional helper: same optimistic default, but the
			// snapshot still records that the probe failed.
			snap.PathfinderReady = true
			snap.BuildProgress = 1.0
		}
	}

	m.mu.Lock()
	m.snap = snap
	m.lastRefresh = snap.TakenAt
	m.mu.Unlock()
	return snap
}

// Poll refreshes only if the configured interval has elapsed; otherwise it
// returns the cached snapshot unchanged.
func (m *Monitor) Poll(ctx context.Context, now time.Time) ReadinessSnapshot {
	m.mu.Lock()
	stale := m.lastRefresh.IsZero() || now.Sub(m.lastRefresh) >= m.interval
	snap := m.snap
	m.mu.Unlock()

	if stale {
		return m.Refresh(ctx)
	}
	return snap
}

// Snapshot returns the cached snapshot without refreshing.
func (m *Monitor) Snapshot() ReadinessSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// DiagnoseFailure returns the most specific blocking reason in the last
// snapshot. Precedence is fixed: a missing mandatory gatherer outranks any
// pathfinder condition.
func (m *Monitor) DiagnoseFailure() FailureCategory {
	snap := m.Snapshot()
	switch {
	case !snap.GathererAvailable:
		return FailureGathererUnavailable
	case snap.PathfinderAvailable && !snap.PathfinderReady:
		return FailureNavmeshBuilding
	case m.pathfinder != nil && !snap.PathfinderAvailable:
		return FailurePathfinderUnavailable
	default:
		return FailureNone
	}
}

// probeBool calls f, converting panics in the tool bridge into errors.
func probeBool(ctx context.Context, f func(context.Context) (bool, error)) (v bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrToolUnavailable
		}
	}()
	return f(ctx)
}

func probeFloat(ctx context.Context, f func(context.Context) (float64, error)) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrToolUnavailable
		}
	}()
	return f(ctx)
}
