package tools

import "testing"

// TestClassifyStatusText is the exhaustive pattern table for free-text
// classification. New patterns get a row here, not new control flow.
func TestClassifyStatusText(t *testing.T) {
	cases := []struct {
		text    string
		want    DisableReason
		matched bool
	}{
		{"Stopped by user", ReasonUserStopped, true},
		{"  USER REQUESTED STOP  ", ReasonUserStopped, true},
		{"Gathering paused by user at node 12", ReasonUserStopped, true},
		{"Failed to generate path to node", ReasonPathfindingFailed, true},
		{"No path to destination", ReasonPathfindingFailed, true},
		{"navigation failed near waypoint 3", ReasonPathfindingFailed, true},
		{"Inventory is full", ReasonInventoryFull, true},
		{"inventory full, stopping", ReasonInventoryFull, true},
		{"missing dependency: navmesh provider", ReasonMissingDependency, true},
		{"plugin not installed", ReasonMissingDependency, true},
		{"No valid targets in range", ReasonNoValidTargets, true},
		{"no available nodes in zone", ReasonNoValidTargets, true},
		{"nothing to gather here", ReasonNoValidTargets, true},
		{"operation timed out", ReasonTimeout, true},
		{"request timeout after 30s", ReasonTimeout, true},
		{"Teleport failed: insufficient gil", ReasonTeleportFailed, true},
		{"unable to teleport to aetheryte", ReasonTeleportFailed, true},
		{"prerequisite quest missing", ReasonPrerequisiteIncomplete, true},
		{"quest not complete", ReasonPrerequisiteIncomplete, true},
		{"node requires unlock", ReasonPrerequisiteIncomplete, true},
		{"", ReasonUnknown, false},
		{"everything is fine", ReasonUnknown, false},
		{"状態不明", ReasonUnknown, false},
	}

	for _, tc := range cases {
		got, ok := ClassifyStatusText(tc.text)
		if got != tc.want || ok != tc.matched {
			t.Errorf("ClassifyStatusText(%q) = (%s, %v), want (%s, %v)",
				tc.text, got, ok, tc.want, tc.matched)
		}
	}
}
