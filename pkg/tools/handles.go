// Package tools defines the external automation tool handles the engine
// coordinates, the readiness monitor that tracks whether they are usable,
// and the diagnoser that classifies why a tool stopped. External tools are
// independently operating processes reachable only through narrow remote
// interfaces; every call here may be slow, fail, or panic in the bridge
// layer, and callers must treat results as best-effort.
package tools

import (
	"context"
	"errors"
)

// ErrToolUnavailable indicates the tool could not be reached. Recoverable:
// affected tasks wait or fail individually, the run is not aborted.
var ErrToolUnavailable = errors.New("tool unavailable")

// GatheringTool drives the external gathering automation. There is no
// per-item "gather now" primitive; issuance works by configuring the
// target list and enabling the tool.
type GatheringTool interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	IsRunning(ctx context.Context) (bool, error)
	IsReady(ctx context.Context, itemID string) (bool, error)
	SetTargetItems(ctx context.Context, itemIDs []string) error
}

// CraftingTool drives the external crafting automation.
type CraftingTool interface {
	CraftItem(ctx context.Context, recipeID string, amount int) error
	IsBusy(ctx context.Context) (bool, error)
	SetSolver(ctx context.Context, recipeID, name string) error
}

// PathfindingTool is the optional navigation helper. A missing pathfinder
// must never stall the pipeline; see Monitor for the optimistic defaults.
type PathfindingTool interface {
	IsReady(ctx context.Context) (bool, error)
	BuildProgress(ctx context.Context) (float64, error)
}
