// Package workflow drives a full recipe run through its phases: resolve the
// plan, validate prerequisites, load the orchestrators, gather, craft. The
// engine is tick-driven and cooperative: each Tick advances at most one small
// slice of work, and external callers (CLI loop, operator console, MCP
// server) decide when ticks happen.
package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/pellucid-labs/craftpilot/pkg/catalog"
	"github.com/pellucid-labs/craftpilot/pkg/orchestrate"
	"github.com/pellucid-labs/craftpilot/pkg/resolver"
	"github.com/pellucid-labs/craftpilot/pkg/tools"
)

// Phase is the engine's position in the run lifecycle. Runs move strictly
// forward; Paused is a parking state that remembers where to resume.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseResolving         Phase = "resolving"
	PhaseValidating        Phase = "validating"
	PhaseCheckingInventory Phase = "checking_inventory"
	PhaseGathering         Phase = "gathering"
	PhaseCrafting          Phase = "crafting"
	PhaseCompleted         Phase = "completed"
	PhasePaused            Phase = "paused"
	PhaseError             Phase = "error"
)

// Active reports whether the phase performs work on Tick.
func (p Phase) Active() bool {
	switch p {
	case PhaseResolving, PhaseValidating, PhaseCheckingInventory, PhaseGathering, PhaseCrafting:
		return true
	}
	return false
}

// Terminal reports whether the run has ended.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseError
}

// RunState is the complete engine state at a point in time. Serialized to
// JSON for snapshot persistence.
type RunState struct {
	RunID          string                   `json:"run_id"`
	TargetItemID   string                   `json:"target_item_id"`
	TargetQuantity int                      `json:"target_quantity"`
	Phase          Phase                    `json:"phase"`
	ResumePhase    Phase                    `json:"resume_phase,omitempty"`
	StartedAt      time.Time                `json:"started_at"`
	Ticks          int                      `json:"ticks"`
	Reason         string                   `json:"reason,omitempty"`
	Plan           *resolver.ResolvedRecipe `json:"plan,omitempty"`
}

// PlayerProfile holds the prerequisites the player brings to a run.
type PlayerProfile struct {
	Level       int      `yaml:"level"                  json:"level"`
	MasterBooks []string `yaml:"master_books,omitempty" json:"master_books,omitempty"`
	Specialist  bool     `yaml:"specialist,omitempty"   json:"specialist,omitempty"`
}

// Config tunes one engine instance.
type Config struct {
	Player      PlayerProfile
	Orchestrate orchestrate.Config
	// SuccessExpr decides whether a finished run counts as a success.
	// Defaults to "failed_craft == 0".
	SuccessExpr string
	// Solver is pushed to the crafting tool before each step. Empty leaves
	// the tool's current solver untouched.
	Solver string
	// OutputDir is the root for per-run artifacts (trace.jsonl, state.json,
	// run.yaml). Empty disables persistence.
	OutputDir string
}

// DefaultSuccessExpr is the failure policy applied when none is configured.
const DefaultSuccessExpr = "failed_craft == 0"

// Deps are the engine's collaborators. Everything is injected; the engine
// holds no global tool handles.
type Deps struct {
	Catalog   catalog.Catalog
	Inventory catalog.Inventory
	Resolver  *resolver.Resolver
	Monitor   *tools.Monitor
	Gatherer  tools.GatheringTool
	Crafter   tools.CraftingTool
	// Introspect and Reset are optional diagnostic surfaces of the
	// gathering tool.
	Introspect tools.Introspection
	Reset      tools.Resettable
}

// Engine is the phase state machine for one run at a time.
type Engine struct {
	mu      sync.Mutex
	deps    Deps
	cfg     Config
	success *vm.Program

	gather *orchestrate.GatheringOrchestrator
	craft  *orchestrate.CraftingOrchestrator

	state  RunState
	trace  *TraceWriter
	runDir string
}

// NewEngine validates the dependency set and compiles the failure policy.
func NewEngine(deps Deps, cfg Config) (*Engine, error) {
	switch {
	case deps.Catalog == nil:
		return nil, fmt.Errorf("engine requires a catalog")
	case deps.Inventory == nil:
		return nil, fmt.Errorf("engine requires an inventory")
	case deps.Resolver == nil:
		return nil, fmt.Errorf("engine requires a resolver")
	case deps.Monitor == nil:
		return nil, fmt.Errorf("engine requires a readiness monitor")
	case deps.Gatherer == nil:
		return nil, fmt.Errorf("engine requires a gathering tool")
	case deps.Crafter == nil:
		return nil, fmt.Errorf("engine requires a crafting tool")
	}

	if cfg.SuccessExpr == "" {
		cfg.SuccessExpr = DefaultSuccessExpr
	}
	program, err := expr.Compile(cfg.SuccessExpr, expr.Env(successEnv(orchestrate.Summary{}, orchestrate.Summary{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile success policy %q: %w", cfg.SuccessExpr, err)
	}

	var diag *tools.Diagnoser
	if deps.Introspect != nil {
		diag = &tools.Diagnoser{Intro: deps.Introspect}
	}

	e := &Engine{
		deps:    deps,
		cfg:     cfg,
		success: program,
		state:   RunState{Phase: PhaseIdle},
	}
	e.gather = orchestrate.NewGatheringOrchestrator(deps.Gatherer, deps.Monitor, diag, deps.Reset, deps.Inventory, cfg.Orchestrate)
	e.craft = orchestrate.NewCraftingOrchestrator(deps.Crafter, deps.Inventory, cfg.Orchestrate)
	e.craft.SetSolverName(cfg.Solver)
	return e, nil
}

// Start begins a new run. Only one run is active at a time.
func (e *Engine) Start(itemID string, quantity int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Phase.Active() || e.state.Phase == PhasePaused {
		return "", fmt.Errorf("run %s is still %s", e.state.RunID, e.state.Phase)
	}
	if quantity <= 0 {
		return "", fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	e.state = RunState{
		RunID:          GenerateRunID(),
		TargetItemID:   itemID,
		TargetQuantity: quantity,
		Phase:          PhaseResolving,
		StartedAt:      time.Now(),
	}

	if e.cfg.OutputDir != "" {
		e.runDir = filepath.Join(e.cfg.OutputDir, e.state.RunID)
		if err := os.MkdirAll(e.runDir, 0755); err != nil {
			return "", fmt.Errorf("create run dir: %w", err)
		}
		tw, err := NewTraceWriter(filepath.Join(e.runDir, "trace.jsonl"))
		if err != nil {
			return "", err
		}
		e.trace = tw
	}

	e.event("run_started", fmt.Sprintf("target %s x%d", itemID, quantity))
	return e.state.RunID, nil
}

// Tick advances the run by one cooperative slice of work. Idle, paused and
// terminal phases are no-ops.
func (e *Engine) Tick(ctx context.Context, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Phase.Active() {
		return nil
	}
	e.state.Ticks++

	switch e.state.Phase {
	case PhaseResolving:
		return e.tickResolve()
	case PhaseValidating:
		return e.tickValidate(ctx)
	case PhaseCheckingInventory:
		return e.tickCheckInventory(now)
	case PhaseGathering:
		return e.tickGather(ctx, now)
	case PhaseCrafting:
		return e.tickCraft(ctx, now)
	}
	return nil
}

func (e *Engine) tickResolve() error {
	plan, err := e.deps.Resolver.Resolve(e.state.TargetItemID, e.state.TargetQuantity, e.deps.Inventory)
	if err != nil {
		e.fail(fmt.Sprintf("resolution failed: %v", err))
		return nil
	}
	e.state.Plan = plan
	e.event("plan_resolved", fmt.Sprintf("%d gather, %d craft, %d other",
		len(plan.GatherList), len(plan.CraftOrder), len(plan.OtherMaterials)))
	e.transition(PhaseValidating)
	return nil
}

// tickValidate checks player prerequisites and tool readiness before any
// issuance. A warming pathfinder keeps the run in this phase; a missing
// mandatory tool or unmet prerequisite ends it.
func (e *Engine) tickValidate(ctx context.Context) error {
	var problems []string
	for _, step := range e.state.Plan.CraftOrder {
		r := step.Recipe
		if r.RequiredLevel > e.cfg.Player.Level {
			problems = append(problems, fmt.Sprintf("recipe %s requires level %d", r.RecipeID, r.RequiredLevel))
		}
		if r.MasterBook != "" && !slices.Contains(e.cfg.Player.MasterBooks, r.MasterBook) {
			problems = append(problems, fmt.Sprintf("recipe %s requires master book %s", r.RecipeID, r.MasterBook))
		}
		if r.Specialist && !e.cfg.Player.Specialist {
			problems = append(problems, fmt.Sprintf("recipe %s requires specialist", r.RecipeID))
		}
	}

	if e.state.Plan.GatherRemaining() > 0 {
		e.deps.Monitor.Refresh(ctx)
		switch e.deps.Monitor.DiagnoseFailure() {
		case tools.FailureGathererUnavailable:
			problems = append(problems, "gathering tool unavailable")
		case tools.FailureNavmeshBuilding:
			// Transient: stay in this phase and re-check next tick.
			return nil
		}
	}

	if len(problems) > 0 {
		e.fail("validation failed: " + strings.Join(problems, "; "))
		return nil
	}
	e.transition(PhaseCheckingInventory)
	return nil
}

// tickCheckInventory loads the orchestrators and skips phases that have no
// work: a plan fully covered by stock goes straight to done.
func (e *Engine) tickCheckInventory(now time.Time) error {
	e.gather.LoadPlan(e.state.Plan, now)
	e.craft.LoadPlan(e.state.Plan)

	gs, cs := e.gather.Summary(), e.craft.Summary()
	switch {
	case gs.Total == 0 && cs.Total == 0:
		e.finish(true, "plan already satisfied by inventory")
	case gs.Total == 0:
		e.event("phase_skipped", "no gathering required")
		e.transition(PhaseCrafting)
	default:
		e.transition(PhaseGathering)
	}
	return nil
}

// tickGather drives the gathering orchestrator. Failed gather tasks do not
// end the run by themselves: the plan continues and the failure policy
// judges the task counts once everything is done.
func (e *Engine) tickGather(ctx context.Context, now time.Time) error {
	if err := e.gather.Advance(ctx, now); err != nil {
		return err
	}
	s := e.gather.Summary()
	if !s.Done() {
		return nil
	}
	if s.Failed > 0 {
		reason, _ := e.gather.Halted()
		e.event("gather_degraded", fmt.Sprintf("%d gather tasks failed: %s", s.Failed, reason))
	}
	if e.craft.Summary().Total == 0 {
		e.finishByPolicy()
		return nil
	}
	e.transition(PhaseCrafting)
	return nil
}

func (e *Engine) tickCraft(ctx context.Context, now time.Time) error {
	if err := e.craft.Advance(ctx, now); err != nil {
		return err
	}
	if !e.craft.Summary().Done() {
		return nil
	}
	e.finishByPolicy()
	return nil
}

// finishByPolicy ends the run, with the compiled success policy deciding
// between Completed and Error from the final task counts.
func (e *Engine) finishByPolicy() {
	ok, err := e.evalSuccess()
	if err != nil {
		e.fail(fmt.Sprintf("failure policy error: %v", err))
		return
	}
	if !ok {
		gs, cs := e.gather.Summary(), e.craft.Summary()
		e.fail(fmt.Sprintf("failure policy rejected run: %d gather, %d craft tasks failed", gs.Failed, cs.Failed))
		return
	}
	e.finish(true, "run complete")
}

// Pause parks an active run. Pausing stops ticks from doing work; tool and
// task state are left exactly as they are.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Phase.Active() {
		return
	}
	e.state.ResumePhase = e.state.Phase
	e.state.Phase = PhasePaused
	e.event("paused", "")
}

// Resume returns a paused run to the phase it was parked in. A no-op on any
// other phase.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase != PhasePaused {
		return
	}
	e.state.Phase = e.state.ResumePhase
	e.state.ResumePhase = ""
	e.event("resumed", "")
}

// Cancel aborts the current run and returns the engine to Idle. It is
// valid from any state: a finished run has already shut its tools down,
// so cancel just clears the way for the next Start; an active or paused
// run gets its gathering tool disabled before any state is discarded, so
// an abandoned run never leaves a tool running.
func (e *Engine) Cancel(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase == PhaseIdle {
		return nil
	}
	if e.state.Phase.Terminal() {
		e.state = RunState{Phase: PhaseIdle}
		return nil
	}

	disableErr := e.deps.Gatherer.Disable(ctx)

	e.event("canceled", "")
	e.writeManifest("canceled", "")
	e.closeTrace()
	e.state = RunState{Phase: PhaseIdle}

	if disableErr != nil {
		return fmt.Errorf("disable gatherer on cancel: %w", disableErr)
	}
	return nil
}

// State returns a copy of the current run state.
func (e *Engine) State() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// GatherTasks returns the gathering task list in execution order.
func (e *Engine) GatherTasks() []*orchestrate.GatheringTask { return e.gather.Tasks() }

// CraftTasks returns the crafting task list in execution order.
func (e *Engine) CraftTasks() []*orchestrate.CraftingTask { return e.craft.Tasks() }

// Summaries returns the per-status counts of both orchestrators.
func (e *Engine) Summaries() (gather, craft orchestrate.Summary) {
	return e.gather.Summary(), e.craft.Summary()
}

// StatusLine renders a one-line run status for operator surfaces.
func (e *Engine) StatusLine() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase == PhaseIdle {
		return "idle"
	}
	gs, cs := e.gather.Summary(), e.craft.Summary()
	line := fmt.Sprintf("run %s phase=%s tick=%d target=%s x%d gather=%d/%d craft=%d/%d",
		e.state.RunID, e.state.Phase, e.state.Ticks,
		e.state.TargetItemID, e.state.TargetQuantity,
		gs.Completed, gs.Total, cs.Completed, cs.Total)
	if e.state.Reason != "" {
		line += " reason=" + e.state.Reason
	}
	return line
}

func (e *Engine) evalSuccess() (bool, error) {
	gs, cs := e.gather.Summary(), e.craft.Summary()
	out, err := expr.Run(e.success, successEnv(gs, cs))
	if err != nil {
		return false, err
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("success policy returned %T, want bool", out)
	}
	return ok, nil
}

func successEnv(gather, craft orchestrate.Summary) map[string]any {
	return map[string]any{
		"failed_craft":     craft.Failed,
		"skipped_craft":    craft.Skipped,
		"completed_craft":  craft.Completed,
		"total_craft":      craft.Total,
		"failed_gather":    gather.Failed,
		"completed_gather": gather.Completed,
		"total_gather":     gather.Total,
	}
}

// transition moves to the next phase and records it.
func (e *Engine) transition(next Phase) {
	e.state.Phase = next
	e.event("phase_transition", string(next))
	e.snapshot()
}

func (e *Engine) finish(success bool, reason string) {
	e.state.Phase = PhaseCompleted
	e.state.Reason = reason
	outcome := "completed"
	if !success {
		outcome = "error"
		e.state.Phase = PhaseError
	}
	e.event("run_finished", reason)
	e.snapshot()
	e.writeManifest(outcome, reason)
	e.closeTrace()
}

func (e *Engine) fail(reason string) {
	e.state.Phase = PhaseError
	e.state.Reason = reason
	e.event("run_finished", reason)
	e.snapshot()
	e.writeManifest("error", reason)
	e.closeTrace()
}

// event writes one trace line; tracing is best-effort and never fails the run.
func (e *Engine) event(kind, msg string) {
	if e.trace == nil {
		return
	}
	_ = e.trace.Write(TaskEvent{
		Type:      kind,
		Timestamp: time.Now(),
		RunID:     e.state.RunID,
		Phase:     e.state.Phase,
		Message:   msg,
		Tick:      e.state.Ticks,
	})
}

func (e *Engine) snapshot() {
	if e.runDir == "" {
		return
	}
	_ = SaveSnapshot(&e.state, filepath.Join(e.runDir, "state.json"))
}

func (e *Engine) writeManifest(outcome, reason string) {
	if e.runDir == "" {
		return
	}
	gs, cs := e.gather.Summary(), e.craft.Summary()
	_ = WriteManifest(&RunManifest{
		RunID:          e.state.RunID,
		TargetItemID:   e.state.TargetItemID,
		TargetQuantity: e.state.TargetQuantity,
		StartedAt:      e.state.StartedAt.Format(time.RFC3339),
		EndedAt:        time.Now().Format(time.RFC3339),
		Outcome:        outcome,
		Reason:         reason,
		Ticks:          e.state.Ticks,
		GatherSummary:  gs,
		CraftSummary:   cs,
	}, e.runDir)
}

func (e *Engine) closeTrace() {
	if e.trace != nil {
		_ = e.trace.Close()
		e.trace = nil
	}
	e.runDir = ""
}
