package resolver

import (
	"reflect"
	"testing"

	"github.com/pellucid-labs/craftpilot/pkg/catalog"
)

// testCatalog builds the static catalog used across resolver tests.
//
//	iron_ingot  = 1x iron_ore + 1x lightning_shard        (yield 1)
//	steel_joint = 2x iron_ingot + 1x beast_hide           (yield 2)
//	oak_lumber  = 3x oak_log                              (yield 1, also gatherable)
//	wall_panel  = 2x oak_lumber + 1x steel_joint          (yield 1)
func testCatalog() *catalog.Static {
	return catalog.NewStatic(&catalog.File{
		APIVersion: "catalog/v1",
		Meta:       catalog.Meta{Name: "test"},
		Recipes: []catalog.RecipeNode{
			{ItemID: "iron_ingot", RecipeID: "r-ingot", Yield: 1, Ingredients: []catalog.IngredientRef{
				{ItemID: "iron_ore", Quantity: 1},
				{ItemID: "lightning_shard", Quantity: 1},
			}},
			{ItemID: "steel_joint", RecipeID: "r-joint", Yield: 2, Ingredients: []catalog.IngredientRef{
				{ItemID: "iron_ingot", Quantity: 2},
				{ItemID: "beast_hide", Quantity: 1},
			}},
			{ItemID: "oak_lumber", RecipeID: "r-lumber", Yield: 1, Ingredients: []catalog.IngredientRef{
				{ItemID: "oak_log", Quantity: 3},
			}},
			{ItemID: "wall_panel", RecipeID: "r-panel", Yield: 1, Ingredients: []catalog.IngredientRef{
				{ItemID: "oak_lumber", Quantity: 2},
				{ItemID: "steel_joint", Quantity: 1},
			}},
		},
		Gatherables: []catalog.GatherableDef{
			{ItemID: "iron_ore", Class: catalog.GatherMiner, Zone: "highlands"},
			{ItemID: "lightning_shard", Class: catalog.GatherMiner, Zone: "highlands"},
			{ItemID: "oak_log", Class: catalog.GatherBotanist, Zone: "shroud"},
			{ItemID: "oak_lumber", Class: catalog.GatherBotanist, Zone: "shroud"},
		},
	})
}

func emptyInv() catalog.Inventory { return catalog.NewMemoryInventory(nil) }

func gatherByID(t *testing.T, plan *ResolvedRecipe, itemID string) *MaterialRequirement {
	t.Helper()
	for _, m := range plan.GatherList {
		if m.ItemID == itemID {
			return m
		}
	}
	t.Fatalf("gather list missing %q: %+v", itemID, plan.GatherList)
	return nil
}

// TestResolveIronIngotExample checks the worked example: target iron_ingot x5
// with 2 already owned nets to 3 crafts and 3+3 gathered shards/ore.
func TestResolveIronIngotExample(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}
	inv := catalog.NewMemoryInventory(map[string]int{"iron_ingot": 2})

	plan, err := r.Resolve("iron_ingot", 5, inv)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	if len(plan.CraftOrder) != 1 {
		t.Fatalf("expected 1 craft step, got %d", len(plan.CraftOrder))
	}
	step := plan.CraftOrder[0]
	if step.Recipe.ItemID != "iron_ingot" || step.Quantity != 3 {
		t.Errorf("craft step = %s x%d, want iron_ingot x3", step.Recipe.ItemID, step.Quantity)
	}

	ore := gatherByID(t, plan, "iron_ore")
	shard := gatherByID(t, plan, "lightning_shard")
	if ore.QuantityRemaining != 3 || shard.QuantityRemaining != 3 {
		t.Errorf("gather remaining = ore %d, shard %d, want 3/3", ore.QuantityRemaining, shard.QuantityRemaining)
	}
	if len(plan.OtherMaterials) != 0 {
		t.Errorf("unexpected other materials: %+v", plan.OtherMaterials)
	}
}

// TestResolveTopologicalOrder verifies every craft step's crafted ingredients
// appear at an earlier index, with the target last.
func TestResolveTopologicalOrder(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}
	plan, err := r.Resolve("wall_panel", 4, emptyInv())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	index := make(map[string]int)
	for i, s := range plan.CraftOrder {
		index[s.Recipe.ItemID] = i
	}
	for _, s := range plan.CraftOrder {
		for _, ing := range s.Recipe.Ingredients {
			dep, crafted := index[ing.ItemID]
			if crafted && dep >= index[s.Recipe.ItemID] {
				t.Errorf("ingredient %q at index %d not before consumer %q at %d",
					ing.ItemID, dep, s.Recipe.ItemID, index[s.Recipe.ItemID])
			}
		}
	}
	last := plan.CraftOrder[len(plan.CraftOrder)-1]
	if last.Recipe.ItemID != "wall_panel" {
		t.Errorf("root craft step must come last, got %q", last.Recipe.ItemID)
	}
}

// TestResolveClosureAccounting verifies the plan covers the full ingredient
// closure with no double counting: wall_panel x4 needs 4 joints -> 2 runs of
// steel_joint -> 4 ingots, plus 8 lumber (gathered by default policy).
func TestResolveClosureAccounting(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}
	plan, err := r.Resolve("wall_panel", 4, emptyInv())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	runs := make(map[string]int)
	for _, s := range plan.CraftOrder {
		runs[s.Recipe.ItemID] = s.Quantity
	}
	want := map[string]int{"wall_panel": 4, "steel_joint": 2, "iron_ingot": 4}
	if !reflect.DeepEqual(runs, want) {
		t.Errorf("craft runs = %v, want %v", runs, want)
	}

	if m := gatherByID(t, plan, "oak_lumber"); m.QuantityRemaining != 8 {
		t.Errorf("oak_lumber remaining = %d, want 8", m.QuantityRemaining)
	}
	if m := gatherByID(t, plan, "iron_ore"); m.QuantityRemaining != 4 {
		t.Errorf("iron_ore remaining = %d, want 4", m.QuantityRemaining)
	}
	if len(plan.OtherMaterials) != 1 || plan.OtherMaterials[0].ItemID != "beast_hide" {
		t.Fatalf("other materials = %+v, want beast_hide only", plan.OtherMaterials)
	}
	if plan.OtherMaterials[0].QuantityRemaining != 2 {
		t.Errorf("beast_hide remaining = %d, want 2", plan.OtherMaterials[0].QuantityRemaining)
	}
}

// TestResolvePartitionInvariant: no item id may appear in more than one list.
func TestResolvePartitionInvariant(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}
	plan, err := r.Resolve("wall_panel", 2, emptyInv())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	seen := make(map[string]string)
	record := func(itemID, list string) {
		if prev, ok := seen[itemID]; ok {
			t.Errorf("item %q appears in both %s and %s", itemID, prev, list)
		}
		seen[itemID] = list
	}
	for _, m := range plan.GatherList {
		record(m.ItemID, "gather")
	}
	for _, s := range plan.CraftOrder {
		record(s.Recipe.ItemID, "craft")
	}
	for _, m := range plan.OtherMaterials {
		record(m.ItemID, "other")
	}
}

// TestResolveDeterminism: identical inputs produce structurally identical plans.
func TestResolveDeterminism(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}
	inv := map[string]int{"iron_ingot": 1, "oak_log": 5}

	a, err := r.Resolve("wall_panel", 3, catalog.NewMemoryInventory(inv))
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	b, err := r.Resolve("wall_panel", 3, catalog.NewMemoryInventory(inv))
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("plans differ across identical resolutions:\n%+v\n%+v", a, b)
	}
}

// TestResolveIntermediatePruning: owning 100% of an intermediate's need
// prunes its sub-ingredients from the plan entirely.
func TestResolveIntermediatePruning(t *testing.T) {
	r := &Resolver{Catalog: testCatalog(), Policy: CraftFirst}
	// wall_panel x1 needs 2 lumber + 1 joint. Own 2 lumber and 1 joint:
	// only the panel itself remains.
	inv := catalog.NewMemoryInventory(map[string]int{"oak_lumber": 2, "steel_joint": 1})

	plan, err := r.Resolve("wall_panel", 1, inv)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if len(plan.CraftOrder) != 1 || plan.CraftOrder[0].Recipe.ItemID != "wall_panel" {
		t.Fatalf("craft order = %+v, want wall_panel only", plan.CraftOrder)
	}
	if len(plan.GatherList) != 0 || len(plan.OtherMaterials) != 0 {
		t.Errorf("pruned branches leaked into plan: gather=%+v other=%+v",
			plan.GatherList, plan.OtherMaterials)
	}
}

// TestResolvePartialOwnership nets the difference rather than all-or-nothing.
func TestResolvePartialOwnership(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}
	inv := catalog.NewMemoryInventory(map[string]int{"iron_ore": 2})

	plan, err := r.Resolve("iron_ingot", 5, inv)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	ore := gatherByID(t, plan, "iron_ore")
	if ore.QuantityNeeded != 5 || ore.QuantityOwned != 2 || ore.QuantityRemaining != 3 {
		t.Errorf("iron_ore = needed %d owned %d remaining %d, want 5/2/3",
			ore.QuantityNeeded, ore.QuantityOwned, ore.QuantityRemaining)
	}
}

// TestResolveCycleDetection: a cycle yields ResolutionError(Cycle), not a hang.
func TestResolveCycleDetection(t *testing.T) {
	cat := catalog.NewStatic(&catalog.File{
		APIVersion: "catalog/v1",
		Recipes: []catalog.RecipeNode{
			{ItemID: "a", RecipeID: "r-a", Yield: 1, Ingredients: []catalog.IngredientRef{{ItemID: "b", Quantity: 1}}},
			{ItemID: "b", RecipeID: "r-b", Yield: 1, Ingredients: []catalog.IngredientRef{{ItemID: "a", Quantity: 1}}},
		},
	})
	r := &Resolver{Catalog: cat}

	_, err := r.Resolve("a", 1, emptyInv())
	re, ok := err.(*ResolutionError)
	if !ok || re.Kind != ErrCycle {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if len(re.Path) == 0 || re.Path[len(re.Path)-1] != re.ItemID {
		t.Errorf("cycle path should end at the repeated item: %v", re.Path)
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}

	if _, err := r.Resolve("iron_ingot", 0, emptyInv()); err == nil {
		t.Error("quantity 0 should be rejected")
	}
	_, err := r.Resolve("iron_ore", 1, emptyInv())
	re, ok := err.(*ResolutionError)
	if !ok || re.Kind != ErrNoRecipe {
		t.Errorf("expected no-recipe error for uncraftable target, got %v", err)
	}
}

// TestResolveSourcePolicy: dual-sourced oak_lumber flips between gathering
// and crafting depending on the configured policy.
func TestResolveSourcePolicy(t *testing.T) {
	cases := []struct {
		name       string
		policy     SourcePolicy
		wantGather bool
	}{
		{"default gather-first", nil, true},
		{"craft-first", CraftFirst, false},
		{"expr prefers gathering small remainders", mustExprPolicy(t, `remaining <= 10`), true},
		{"expr prefers crafting large remainders", mustExprPolicy(t, `remaining > 100`), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &Resolver{Catalog: testCatalog(), Policy: tc.policy}
			plan, err := r.Resolve("wall_panel", 1, emptyInv())
			if err != nil {
				t.Fatalf("Resolve error: %v", err)
			}
			inGather := false
			for _, m := range plan.GatherList {
				if m.ItemID == "oak_lumber" {
					inGather = true
				}
			}
			if inGather != tc.wantGather {
				t.Errorf("oak_lumber gathered = %v, want %v", inGather, tc.wantGather)
			}
			if !tc.wantGather {
				// Crafting lumber pulls oak_log into the gather list.
				if m := gatherByID(t, plan, "oak_log"); m.QuantityRemaining != 6 {
					t.Errorf("oak_log remaining = %d, want 6", m.QuantityRemaining)
				}
			}
		})
	}
}

func mustExprPolicy(t *testing.T, src string) *ExprPolicy {
	t.Helper()
	p, err := NewExprPolicy(src)
	if err != nil {
		t.Fatalf("NewExprPolicy(%q): %v", src, err)
	}
	return p
}

// TestResolveGatherMetadata: zone and class survive into the plan so the
// orchestrator can group by zone.
func TestResolveGatherMetadata(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}
	plan, err := r.Resolve("iron_ingot", 1, emptyInv())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	ore := gatherByID(t, plan, "iron_ore")
	if ore.Zone != "highlands" || ore.GatherClass != catalog.GatherMiner {
		t.Errorf("iron_ore metadata = zone %q class %q", ore.Zone, ore.GatherClass)
	}
}
