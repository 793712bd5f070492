package tools

import "time"

// StuckFailureThreshold is the consecutive-failure count above which a tool
// that is still nominally running is considered stuck at its current target.
const StuckFailureThreshold = 3

// Introspection is the capability interface for best-effort inspection of
// one external tool's private runtime state. Each field is independently
// optional: a false second return means the field could not be read, and
// degrades only the diagnoses that depend on it.
type Introspection interface {
	StatusText() (string, bool)
	QueueDepth() (int, bool)
	Busy() (bool, bool)
	FailureCount() (int, bool)
	CurrentTarget() (string, bool)
}

// Resettable is implemented by tools whose internal retry/failure counters
// can be cleared from outside.
type Resettable interface {
	ResetFailureCount() bool
	ClearRetryTimers() bool
}

// DisableSnapshot is the diagnosed state of one tool at a point in time.
// Replaced wholesale on each diagnosis call; fields that could not be read
// hold zero values and the matching *OK flag is false.
type DisableSnapshot struct {
	StatusText      string        `json:"status_text"`
	StatusTextOK    bool          `json:"status_text_ok"`
	QueueDepth      int           `json:"queue_depth"`
	QueueDepthOK    bool          `json:"queue_depth_ok"`
	Busy            bool          `json:"busy"`
	BusyOK          bool          `json:"busy_ok"`
	FailureCount    int           `json:"failure_count"`
	FailureCountOK  bool          `json:"failure_count_ok"`
	CurrentTarget   string        `json:"current_target"`
	CurrentTargetOK bool          `json:"current_target_ok"`
	Reason          DisableReason `json:"reason"`
	TakenAt         time.Time     `json:"taken_at"`
}

// Diagnoser classifies why an external tool stopped, from indirect signals
// only: the tool has no structured error channel.
type Diagnoser struct {
	Intro Introspection // nil when introspection is unavailable
}

// Snapshot reads every optional field and classifies the result. It never
// fails: a panicking or missing field read degrades that field to its zero
// value and the rest of the snapshot is still taken. workRemaining is the
// caller's view of whether the current plan still has outstanding work.
func (d *Diagnoser) Snapshot(workRemaining bool) DisableSnapshot {
	snap := DisableSnapshot{Reason: ReasonUnknown, TakenAt: time.Now()}
	if d.Intro == nil {
		return snap
	}

	snap.StatusText, snap.StatusTextOK = readString(d.Intro.StatusText)
	snap.QueueDepth, snap.QueueDepthOK = readInt(d.Intro.QueueDepth)
	snap.Busy, snap.BusyOK = readBool(d.Intro.Busy)
	snap.FailureCount, snap.FailureCountOK = readInt(d.Intro.FailureCount)
	snap.CurrentTarget, snap.CurrentTargetOK = readString(d.Intro.CurrentTarget)

	snap.Reason = classify(snap, workRemaining)
	return snap
}

// classify applies the ordered classification policy: free-text patterns
// first, structural inference second, Unknown last.
func classify(snap DisableSnapshot, workRemaining bool) DisableReason {
	if snap.StatusTextOK {
		if reason, ok := ClassifyStatusText(snap.StatusText); ok {
			return reason
		}
	}

	if snap.QueueDepthOK && snap.CurrentTargetOK &&
		snap.QueueDepth == 0 && snap.CurrentTarget == "" && !workRemaining {
		return ReasonListExhausted
	}
	if snap.FailureCountOK && snap.FailureCount > StuckFailureThreshold {
		return ReasonStuckAtTarget
	}
	if snap.QueueDepthOK && snap.BusyOK &&
		snap.QueueDepth == 0 && !snap.Busy && workRemaining {
		return ReasonInternalError
	}

	return ReasonUnknown
}

// ForceReset attempts a best-effort clear of the tool's internal failure
// counters and stale retry timers. Returns true iff at least one field was
// successfully reset. Panics in the bridge layer count as a failed reset of
// that field only.
func ForceReset(r Resettable) bool {
	if r == nil {
		return false
	}
	any := false
	if tryReset(r.ResetFailureCount) {
		any = true
	}
	if tryReset(r.ClearRetryTimers) {
		any = true
	}
	return any
}

func tryReset(f func() bool) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return f()
}

func readString(f func() (string, bool)) (v string, ok bool) {
	defer func() {
		if recover() != nil {
			v, ok = "", false
		}
	}()
	return f()
}

func readInt(f func() (int, bool)) (v int, ok bool) {
	defer func() {
		if recover() != nil {
			v, ok = 0, false
		}
	}()
	return f()
}

func readBool(f func() (bool, bool)) (v, ok bool) {
	defer func() {
		if recover() != nil {
			v, ok = false, false
		}
	}()
	return f()
}
