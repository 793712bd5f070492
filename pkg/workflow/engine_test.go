package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pellucid-labs/craftpilot/pkg/catalog"
	"github.com/pellucid-labs/craftpilot/pkg/orchestrate"
	"github.com/pellucid-labs/craftpilot/pkg/resolver"
	"github.com/pellucid-labs/craftpilot/pkg/tools"
	"github.com/pellucid-labs/craftpilot/pkg/tools/sim"
)

func testCatalogFile() *catalog.File {
	return &catalog.File{
		APIVersion: "catalog/v1",
		Meta:       catalog.Meta{Name: "engine-test"},
		Recipes: []catalog.RecipeNode{
			{
				ItemID:   "iron_ingot",
				RecipeID: "rcp_iron_ingot",
				Yield:    1,
				Ingredients: []catalog.IngredientRef{
					{ItemID: "iron_ore", Quantity: 2},
					{ItemID: "earth_shard", Quantity: 1},
				},
			},
		},
		Gatherables: []catalog.GatherableDef{
			{ItemID: "iron_ore", Class: catalog.GatherMiner, Zone: "highlands"},
			{ItemID: "earth_shard", Class: catalog.GatherMiner, Zone: "highlands"},
		},
	}
}

type harness struct {
	engine *Engine
	world  *sim.World
	inv    *catalog.MemoryInventory
}

func newHarness(t *testing.T, owned map[string]int, cfg Config) *harness {
	t.Helper()
	cf := testCatalogFile()
	cat := catalog.NewStatic(cf)
	inv := catalog.NewMemoryInventory(owned)
	world := sim.NewWorld(cf, inv)

	engine, err := NewEngine(Deps{
		Catalog:    cat,
		Inventory:  inv,
		Resolver:   &resolver.Resolver{Catalog: cat},
		Monitor:    tools.NewMonitor(world.Gatherer, world.Pathfinder, 0),
		Gatherer:   world.Gatherer,
		Crafter:    world.Crafter,
		Introspect: world.Gatherer,
		Reset:      world.Gatherer,
	}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return &harness{engine: engine, world: world, inv: inv}
}

// run ticks the engine and steps the simulated world until the run reaches
// a terminal phase or the tick budget runs out.
func (h *harness) run(t *testing.T, maxTicks int) Phase {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < maxTicks; i++ {
		if err := h.engine.Tick(ctx, now); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		h.world.Step()
		now = now.Add(time.Second)
		if h.engine.State().Phase.Terminal() {
			break
		}
	}
	return h.engine.State().Phase
}

// runUntil ticks until the engine reaches the wanted phase.
func (h *harness) runUntil(t *testing.T, want Phase, maxTicks int) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < maxTicks; i++ {
		if h.engine.State().Phase == want {
			return
		}
		if err := h.engine.Tick(ctx, now); err != nil {
			t.Fatal(err)
		}
		h.world.Step()
		now = now.Add(time.Second)
	}
	t.Fatalf("never reached phase %s, stuck at %s", want, h.engine.State().Phase)
}

func TestEngineEndToEndSimulatedRun(t *testing.T) {
	h := newHarness(t, nil, Config{Orchestrate: orchestrate.Config{RetryBudget: 2}})

	runID, err := h.engine.Start("iron_ingot", 3)
	if err != nil {
		t.Fatal(err)
	}
	if runID == "" {
		t.Fatal("empty run id")
	}

	if phase := h.run(t, 200); phase != PhaseCompleted {
		t.Fatalf("phase = %s (%s), want completed", phase, h.engine.State().Reason)
	}
	if got := h.inv.OwnedQuantity("iron_ingot"); got < 3 {
		t.Errorf("iron_ingot = %d, want at least 3", got)
	}
	if running, _ := h.world.Gatherer.IsRunning(context.Background()); running {
		t.Error("gatherer left running after a completed run")
	}
}

// TestEngineGatherPrecedesCraft: the engine never enters the crafting phase
// while gathering tasks are outstanding.
func TestEngineGatherPrecedesCraft(t *testing.T) {
	h := newHarness(t, nil, Config{})
	if _, err := h.engine.Start("iron_ingot", 2); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		if err := h.engine.Tick(ctx, now); err != nil {
			t.Fatal(err)
		}
		if h.engine.State().Phase == PhaseCrafting {
			gs, _ := h.engine.Summaries()
			if !gs.Done() {
				t.Fatalf("entered crafting with gather summary %+v", gs)
			}
		}
		if h.engine.State().Phase.Terminal() {
			return
		}
		h.world.Step()
		now = now.Add(time.Second)
	}
	t.Fatalf("run never finished, phase %s", h.engine.State().Phase)
}

// TestEnginePauseResume: pause parks the run without touching task state,
// ticks while paused do nothing, and resume returns to the parked phase.
func TestEnginePauseResume(t *testing.T) {
	h := newHarness(t, nil, Config{})
	if _, err := h.engine.Start("iron_ingot", 2); err != nil {
		t.Fatal(err)
	}
	h.runUntil(t, PhaseGathering, 50)

	before := h.engine.State()
	h.engine.Pause()
	if got := h.engine.State().Phase; got != PhasePaused {
		t.Fatalf("phase = %s, want paused", got)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := h.engine.Tick(ctx, time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	if got := h.engine.State().Ticks; got != before.Ticks {
		t.Errorf("ticks advanced to %d while paused, want %d", got, before.Ticks)
	}

	h.engine.Resume()
	after := h.engine.State()
	if after.Phase != before.Phase {
		t.Errorf("resumed phase = %s, want %s", after.Phase, before.Phase)
	}
	if after.ResumePhase != "" {
		t.Errorf("resume phase not cleared: %s", after.ResumePhase)
	}
}

func TestEngineResumeWithoutPauseIsNoop(t *testing.T) {
	h := newHarness(t, nil, Config{})
	h.engine.Resume()
	if got := h.engine.State().Phase; got != PhaseIdle {
		t.Errorf("phase = %s, want idle", got)
	}
}

// TestEngineCancelDisablesTool: cancel turns the gathering tool off before
// the run state is discarded.
func TestEngineCancelDisablesTool(t *testing.T) {
	h := newHarness(t, nil, Config{})
	if _, err := h.engine.Start("iron_ingot", 2); err != nil {
		t.Fatal(err)
	}
	h.runUntil(t, PhaseGathering, 50)

	ctx := context.Background()
	// One more tick so the orchestrator has enabled the tool.
	h.engine.Tick(ctx, time.Now())
	if running, _ := h.world.Gatherer.IsRunning(ctx); !running {
		t.Fatal("precondition: gatherer should be running mid-phase")
	}

	if err := h.engine.Cancel(ctx); err != nil {
		t.Fatal(err)
	}
	if running, _ := h.world.Gatherer.IsRunning(ctx); running {
		t.Error("gatherer still running after cancel")
	}
	state := h.engine.State()
	if state.Phase != PhaseIdle || state.Plan != nil {
		t.Errorf("state not discarded: phase=%s plan=%v", state.Phase, state.Plan)
	}
}

// TestEngineSkipsGatheringWhenStocked: raw materials already owned leave no
// gathering tasks, so the run goes straight from inventory check to craft.
func TestEngineSkipsGatheringWhenStocked(t *testing.T) {
	h := newHarness(t, map[string]int{"iron_ore": 4, "earth_shard": 2}, Config{})
	if _, err := h.engine.Start("iron_ingot", 2); err != nil {
		t.Fatal(err)
	}

	sawGathering := false
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 100 && !h.engine.State().Phase.Terminal(); i++ {
		h.engine.Tick(ctx, now)
		if h.engine.State().Phase == PhaseGathering {
			sawGathering = true
		}
		h.world.Step()
	}

	if sawGathering {
		t.Error("gathering phase entered despite fully stocked materials")
	}
	if got := h.engine.State().Phase; got != PhaseCompleted {
		t.Errorf("phase = %s (%s), want completed", got, h.engine.State().Reason)
	}
}

// TestEngineCompletesWhenTargetOwned: owning the target quantity produces an
// empty plan and an immediately completed run.
func TestEngineCompletesWhenTargetOwned(t *testing.T) {
	h := newHarness(t, map[string]int{"iron_ingot": 3}, Config{})
	if _, err := h.engine.Start("iron_ingot", 3); err != nil {
		t.Fatal(err)
	}
	if phase := h.run(t, 10); phase != PhaseCompleted {
		t.Errorf("phase = %s, want completed without any tool work", phase)
	}
}

func TestEngineValidationRejectsMissingPrerequisites(t *testing.T) {
	cf := testCatalogFile()
	cf.Recipes[0].RequiredLevel = 90
	cf.Recipes[0].MasterBook = "tome_viii"
	cat := catalog.NewStatic(cf)
	inv := catalog.NewMemoryInventory(nil)
	world := sim.NewWorld(cf, inv)

	engine, err := NewEngine(Deps{
		Catalog:   cat,
		Inventory: inv,
		Resolver:  &resolver.Resolver{Catalog: cat},
		Monitor:   tools.NewMonitor(world.Gatherer, nil, 0),
		Gatherer:  world.Gatherer,
		Crafter:   world.Crafter,
	}, Config{Player: PlayerProfile{Level: 10}})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := engine.Start("iron_ingot", 1); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 5 && !engine.State().Phase.Terminal(); i++ {
		engine.Tick(ctx, time.Now())
	}

	state := engine.State()
	if state.Phase != PhaseError {
		t.Fatalf("phase = %s, want error", state.Phase)
	}
	if !strings.Contains(state.Reason, "requires level 90") {
		t.Errorf("reason %q missing level check", state.Reason)
	}
	if !strings.Contains(state.Reason, "master book tome_viii") {
		t.Errorf("reason %q missing master book check", state.Reason)
	}
}

// TestEngineFailurePolicy: with the default policy, a craft step that
// exhausts its retry budget fails the run.
func TestEngineFailurePolicy(t *testing.T) {
	cf := testCatalogFile()
	cat := catalog.NewStatic(cf)
	inv := catalog.NewMemoryInventory(map[string]int{"iron_ore": 2, "earth_shard": 1})
	world := sim.NewWorld(cf, inv)

	engine, err := NewEngine(Deps{
		Catalog:   cat,
		Inventory: inv,
		Resolver:  &resolver.Resolver{Catalog: cat},
		Monitor:   tools.NewMonitor(world.Gatherer, nil, 0),
		Gatherer:  world.Gatherer,
		Crafter:   stuckCrafter{}, // accepts work, produces nothing
	}, Config{Orchestrate: orchestrate.Config{RetryBudget: 1}})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := engine.Start("iron_ingot", 1); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 20 && !engine.State().Phase.Terminal(); i++ {
		engine.Tick(ctx, now)
	}

	state := engine.State()
	if state.Phase != PhaseError {
		t.Fatalf("phase = %s, want error", state.Phase)
	}
	if !strings.Contains(state.Reason, "failure policy") {
		t.Errorf("reason %q should cite the failure policy", state.Reason)
	}
}

// stalledGatherer accepts configuration but never actually runs, so every
// gathering task eventually exhausts its retries and fails.
type stalledGatherer struct{}

func (stalledGatherer) Enable(ctx context.Context) error                         { return nil }
func (stalledGatherer) Disable(ctx context.Context) error                        { return nil }
func (stalledGatherer) IsRunning(ctx context.Context) (bool, error)              { return false, nil }
func (stalledGatherer) IsReady(ctx context.Context, itemID string) (bool, error) { return true, nil }
func (stalledGatherer) SetTargetItems(ctx context.Context, ids []string) error   { return nil }

// TestEngineGatherFailuresDeferredToPolicy: failed gathering tasks do not
// end the run on their own; the run carries on and the configured success
// policy judges the final task counts.
func TestEngineGatherFailuresDeferredToPolicy(t *testing.T) {
	cf := testCatalogFile()
	cat := catalog.NewStatic(cf)
	inv := catalog.NewMemoryInventory(nil)
	world := sim.NewWorld(cf, inv)
	gatherer := stalledGatherer{}

	engine, err := NewEngine(Deps{
		Catalog:   cat,
		Inventory: inv,
		Resolver:  &resolver.Resolver{Catalog: cat},
		Monitor:   tools.NewMonitor(gatherer, nil, 0),
		Gatherer:  gatherer,
		Crafter:   world.Crafter,
	}, Config{SuccessExpr: "failed_gather >= 0"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := engine.Start("iron_ingot", 1); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 100 && !engine.State().Phase.Terminal(); i++ {
		if err := engine.Tick(ctx, now); err != nil {
			t.Fatal(err)
		}
		world.Step()
	}

	state := engine.State()
	if state.Phase != PhaseCompleted {
		t.Fatalf("phase = %s (%s), want completed under a tolerant policy", state.Phase, state.Reason)
	}
	gs, _ := engine.Summaries()
	if gs.Failed == 0 {
		t.Error("expected failed gathering tasks")
	}
}

// TestEngineCancelResetsFinishedRun: cancel is valid from terminal phases
// and returns the engine to idle so a new run can start.
func TestEngineCancelResetsFinishedRun(t *testing.T) {
	h := newHarness(t, map[string]int{"iron_ingot": 1}, Config{})
	if _, err := h.engine.Start("iron_ingot", 1); err != nil {
		t.Fatal(err)
	}
	if phase := h.run(t, 10); phase != PhaseCompleted {
		t.Fatalf("phase = %s, want completed", phase)
	}

	ctx := context.Background()
	if err := h.engine.Cancel(ctx); err != nil {
		t.Fatal(err)
	}
	if got := h.engine.State().Phase; got != PhaseIdle {
		t.Fatalf("phase after cancel = %s, want idle", got)
	}
	if _, err := h.engine.Start("iron_ingot", 1); err != nil {
		t.Errorf("start after cancel: %v", err)
	}
}

type stuckCrafter struct{}

func (stuckCrafter) CraftItem(ctx context.Context, recipeID string, amount int) error { return nil }
func (stuckCrafter) IsBusy(ctx context.Context) (bool, error)                         { return false, nil }
func (stuckCrafter) SetSolver(ctx context.Context, recipeID, name string) error       { return nil }

// TestEngineArtifacts: a persisted run leaves trace.jsonl, state.json and
// run.yaml in its run directory.
func TestEngineArtifacts(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, nil, Config{OutputDir: dir})

	runID, err := h.engine.Start("iron_ingot", 1)
	if err != nil {
		t.Fatal(err)
	}
	if phase := h.run(t, 200); phase != PhaseCompleted {
		t.Fatalf("phase = %s, want completed", phase)
	}

	runDir := filepath.Join(dir, runID)
	for _, name := range []string{"trace.jsonl", "state.json", "run.yaml"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}

	state, err := LoadSnapshot(filepath.Join(runDir, "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	if state.RunID != runID || state.Phase != PhaseCompleted {
		t.Errorf("snapshot = %s/%s, want %s/completed", state.RunID, state.Phase, runID)
	}

	data, err := os.ReadFile(filepath.Join(runDir, "run.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	var manifest RunManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		t.Fatal(err)
	}
	if manifest.Outcome != "completed" {
		t.Errorf("manifest outcome = %s, want completed", manifest.Outcome)
	}
	if !manifest.CraftSummary.Succeeded() {
		t.Errorf("craft summary = %+v, want all completed", manifest.CraftSummary)
	}
}
