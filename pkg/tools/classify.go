package tools

import "strings"

// DisableReason is the classified cause for why an external tool stopped.
// Closed enumeration: new causes get a new constant, not free text.
type DisableReason string

const (
	ReasonUnknown                DisableReason = "unknown"
	ReasonUserStopped            DisableReason = "user_stopped"
	ReasonPathfindingFailed      DisableReason = "pathfinding_failed"
	ReasonInventoryFull          DisableReason = "inventory_full"
	ReasonMissingDependency      DisableReason = "missing_dependency"
	ReasonNoValidTargets         DisableReason = "no_valid_targets"
	ReasonTimeout                DisableReason = "timeout"
	ReasonTeleportFailed         DisableReason = "teleport_failed"
	ReasonPrerequisiteIncomplete DisableReason = "prerequisite_incomplete"
	ReasonListExhausted          DisableReason = "list_exhausted"
	ReasonStuckAtTarget          DisableReason = "stuck_at_target"
	ReasonInternalError          DisableReason = "internal_error"
)

// statusPatterns maps known substrings of tool status text to reasons.
// Ordered: first match wins. Free-text matching is brittle, so it lives
// only here; callers branch on DisableReason, never on the raw text.
var statusPatterns = []struct {
	substr string
	reason DisableReason
}{
	{"stopped by user", ReasonUserStopped},
	{"user requested stop", ReasonUserStopped},
	{"paused by user", ReasonUserStopped},
	{"failed to generate path", ReasonPathfindingFailed},
	{"no path to", ReasonPathfindingFailed},
	{"navigation failed", ReasonPathfindingFailed},
	{"inventory is full", ReasonInventoryFull},
	{"inventory full", ReasonInventoryFull},
	{"missing dependency", ReasonMissingDependency},
	{"plugin not installed", ReasonMissingDependency},
	{"no valid targets", ReasonNoValidTargets},
	{"no available nodes", ReasonNoValidTargets},
	{"nothing to gather", ReasonNoValidTargets},
	{"timed out", ReasonTimeout},
	{"timeout", ReasonTimeout},
	{"teleport failed", ReasonTeleportFailed},
	{"unable to teleport", ReasonTeleportFailed},
	{"prerequisite", ReasonPrerequisiteIncomplete},
	{"quest not complete", ReasonPrerequisiteIncomplete},
	{"requires unlock", ReasonPrerequisiteIncomplete},
}

// ClassifyStatusText maps a tool's free-text self-reported status to a
// DisableReason. Returns false when no known pattern matches. Pure function:
// extending the pattern table never touches control flow elsewhere.
func ClassifyStatusText(text string) (DisableReason, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return ReasonUnknown, false
	}
	for _, p := range statusPatterns {
		if strings.Contains(t, p.substr) {
			return p.reason, true
		}
	}
	return ReasonUnknown, false
}
