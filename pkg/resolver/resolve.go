package resolver

import (
	"slices"

	"github.com/pellucid-labs/craftpilot/pkg/catalog"
)

// GatherableSource is an optional catalog capability: catalogs that know
// zones and time windows for gatherables implement it so the plan carries
// that metadata into the orchestrator.
type GatherableSource interface {
	Gatherable(itemID string) *catalog.GatherableDef
}

// Resolver expands recipe dependency trees into executable plans.
type Resolver struct {
	Catalog catalog.Catalog
	Policy  SourcePolicy // nil defaults to GatherFirst
}

// Resolve computes the plan for producing quantity units of target, netting
// out inventory at every node. The returned plan is owned exclusively by the
// caller and shares no mutable state with other resolutions.
func (r *Resolver) Resolve(target string, quantity int, inv catalog.Inventory) (*ResolvedRecipe, error) {
	if quantity <= 0 {
		return nil, &ResolutionError{Kind: ErrBadQuantity, ItemID: target}
	}
	root := r.Catalog.GetRecipe(target)
	if root == nil {
		return nil, &ResolutionError{Kind: ErrNoRecipe, ItemID: target}
	}

	policy := r.Policy
	if policy == nil {
		policy = GatherFirst
	}

	st := &resolution{
		cat:       r.Catalog,
		inv:       inv,
		policy:    policy,
		ownedSnap: make(map[string]int),
		ownedLeft: make(map[string]int),
		leaves:    make(map[string]*leafAcc),
		crafts:    make(map[string]*craftAcc),
	}

	if err := st.expandCraft(root, quantity, nil); err != nil {
		return nil, err
	}

	return st.buildPlan(target, quantity), nil
}

// leafAcc accumulates requirements for one non-crafted leaf item.
type leafAcc struct {
	itemID    string
	gross     int // total needed across all branches
	fromStock int // covered by owned inventory
	gather    bool
	craftable bool
	class     catalog.GatherClass
}

// craftAcc accumulates requirements for one crafted item.
type craftAcc struct {
	recipe    *catalog.RecipeNode
	gross     int
	fromStock int
	units     int // net units to craft
	runs      int // ceil(units/yield)
}

type resolution struct {
	cat       catalog.Catalog
	inv       catalog.Inventory
	policy    SourcePolicy
	ownedSnap map[string]int
	ownedLeft map[string]int
	leaves    map[string]*leafAcc
	leafOrder []string
	crafts    map[string]*craftAcc
}

// takeStock nets qty against the item's remaining uncommitted stock and
// returns (taken, remaining). The inventory snapshot is taken on first
// encounter so repeated branches never double-count owned quantity.
func (st *resolution) takeStock(itemID string, qty int) (int, int) {
	if _, ok := st.ownedSnap[itemID]; !ok {
		n := st.inv.OwnedQuantity(itemID)
		st.ownedSnap[itemID] = n
		st.ownedLeft[itemID] = n
	}
	take := st.ownedLeft[itemID]
	if take > qty {
		take = qty
	}
	st.ownedLeft[itemID] -= take
	return take, qty - take
}

// expand routes one ingredient requirement to gathering, crafting, or the
// other-materials list.
func (st *resolution) expand(itemID string, qty int, path []string) error {
	take, rem := st.takeStock(itemID, qty)
	if rem == 0 {
		// Owned stock covers this node entirely: the branch is pruned and
		// its sub-ingredients never enter the plan.
		return nil
	}

	recipe := st.cat.GetRecipe(itemID)
	gatherable, class := st.cat.IsGatherable(itemID)

	// An item keeps its first classification for the whole resolution:
	// the partition invariant forbids one item appearing in both lists.
	if acc, ok := st.leaves[itemID]; ok {
		acc.gross += qty
		acc.fromStock += take
		return nil
	}
	if _, ok := st.crafts[itemID]; ok && recipe != nil {
		st.ownedLeft[itemID] += take
		return st.expandCraft(recipe, qty, path)
	}

	useGather := gatherable
	if gatherable && recipe != nil {
		prefer, err := st.policy.PreferGather(PolicyInput{
			ItemID:      itemID,
			Needed:      qty,
			Owned:       st.ownedSnap[itemID],
			Remaining:   rem,
			GatherClass: class,
			Collectable: recipe.Collectable,
		})
		if err != nil {
			return &ResolutionError{Kind: ErrPolicy, ItemID: itemID, Err: err}
		}
		useGather = prefer
	}

	if recipe == nil || useGather {
		st.addLeaf(itemID, qty, take, gatherable, recipe != nil, class)
		return nil
	}

	// Give back the stock we consumed above; expandCraft nets again so the
	// accounting stays in one place.
	st.ownedLeft[itemID] += take
	return st.expandCraft(recipe, qty, path)
}

func (st *resolution) addLeaf(itemID string, qty, take int, gatherable, craftable bool, class catalog.GatherClass) {
	acc, ok := st.leaves[itemID]
	if !ok {
		acc = &leafAcc{itemID: itemID, gather: gatherable, craftable: craftable, class: class}
		st.leaves[itemID] = acc
		st.leafOrder = append(st.leafOrder, itemID)
	}
	acc.gross += qty
	acc.fromStock += take
}

// expandCraft accumulates craft runs for one recipe and expands only the
// delta of ingredient need created by newly added runs, so shared
// sub-ingredients across branches are summed once rather than duplicated.
func (st *resolution) expandCraft(recipe *catalog.RecipeNode, qty int, path []string) error {
	itemID := recipe.ItemID
	if slices.Contains(path, itemID) {
		return &ResolutionError{Kind: ErrCycle, ItemID: itemID, Path: append(slices.Clone(path), itemID)}
	}

	take, rem := st.takeStock(itemID, qty)

	acc, ok := st.crafts[itemID]
	if !ok {
		acc = &craftAcc{recipe: recipe}
		st.crafts[itemID] = acc
	}
	acc.gross += qty
	acc.fromStock += take
	if rem == 0 {
		return nil
	}

	prevRuns := acc.runs
	acc.units += rem
	acc.runs = ceilDiv(acc.units, recipe.Yield)
	deltaRuns := acc.runs - prevRuns
	if deltaRuns == 0 {
		return nil
	}

	childPath := append(path, itemID)
	for _, ing := range recipe.Ingredients {
		if err := st.expand(ing.ItemID, deltaRuns*ing.Quantity, childPath); err != nil {
			return err
		}
	}
	return nil
}

// buildPlan assembles the final partition. CraftOrder is produced by a
// post-order walk of the craft graph from the root, so every ingredient step
// precedes the steps that consume it and the root comes last.
func (st *resolution) buildPlan(target string, quantity int) *ResolvedRecipe {
	plan := &ResolvedRecipe{
		TargetItemID:   target,
		TargetQuantity: quantity,
	}

	gsrc, _ := st.cat.(GatherableSource)
	for _, itemID := range st.leafOrder {
		acc := st.leaves[itemID]
		req := &MaterialRequirement{
			ItemID:            itemID,
			QuantityNeeded:    acc.gross,
			QuantityOwned:     st.ownedSnap[itemID],
			QuantityRemaining: acc.gross - acc.fromStock,
			Craftable:         acc.craftable,
			Gatherable:        acc.gather,
			GatherClass:       acc.class,
		}
		if req.QuantityRemaining < 0 {
			req.QuantityRemaining = 0
		}
		if acc.gather {
			if gsrc != nil {
				if def := gsrc.Gatherable(itemID); def != nil {
					req.Name = def.Name
					req.Zone = def.Zone
					req.Windows = def.Windows
				}
			}
			plan.GatherList = append(plan.GatherList, req)
		} else {
			plan.OtherMaterials = append(plan.OtherMaterials, req)
		}
	}

	visited := make(map[string]bool)
	var walk func(itemID string)
	walk = func(itemID string) {
		acc, ok := st.crafts[itemID]
		if !ok || visited[itemID] {
			return
		}
		visited[itemID] = true
		for _, ing := range acc.recipe.Ingredients {
			walk(ing.ItemID)
		}
		if acc.runs > 0 {
			plan.CraftOrder = append(plan.CraftOrder, CraftStep{
				Recipe:   acc.recipe,
				Quantity: acc.runs,
				Units:    acc.units,
			})
		}
	}
	walk(target)

	return plan
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		b = 1
	}
	return (a + b - 1) / b
}
