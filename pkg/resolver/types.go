// Package resolver turns a target item and quantity into an executable plan:
// what to gather, what to craft in which order, and what has no automatable
// source. Inventory is netted at every node of the dependency tree, so owned
// intermediates prune their own sub-ingredients from the plan.
package resolver

import "github.com/pellucid-labs/craftpilot/pkg/catalog"

// MaterialRequirement is one line of a resolved plan. Created fresh on every
// resolution; never shared between runs.
type MaterialRequirement struct {
	ItemID            string              `json:"item_id"`
	Name              string              `json:"name,omitempty"`
	QuantityNeeded    int                 `json:"quantity_needed"`
	QuantityOwned     int                 `json:"quantity_owned"`
	QuantityRemaining int                 `json:"quantity_remaining"`
	Craftable         bool                `json:"craftable"`
	Gatherable        bool                `json:"gatherable"`
	Collectable       bool                `json:"collectable,omitempty"`
	GatherClass       catalog.GatherClass `json:"gather_class,omitempty"`
	Zone              string              `json:"zone,omitempty"`
	Windows           []catalog.TimeWindow `json:"windows,omitempty"`
}

// CraftStep is one entry of the craft order: run the recipe Quantity times.
type CraftStep struct {
	Recipe   *catalog.RecipeNode `json:"recipe"`
	Quantity int                 `json:"quantity"` // craft runs, ceil(units/yield)
	Units    int                 `json:"units"`    // net units this step must produce
}

// ResolvedRecipe is the output of one resolution. The three lists partition
// the ingredient closure: no item id appears in more than one list.
type ResolvedRecipe struct {
	TargetItemID   string                 `json:"target_item_id"`
	TargetQuantity int                    `json:"target_quantity"`
	GatherList     []*MaterialRequirement `json:"gather_list"`
	CraftOrder     []CraftStep            `json:"craft_order"`
	OtherMaterials []*MaterialRequirement `json:"other_materials"`
}

// GatherRemaining sums the outstanding quantity across the gather list.
func (r *ResolvedRecipe) GatherRemaining() int {
	total := 0
	for _, m := range r.GatherList {
		total += m.QuantityRemaining
	}
	return total
}
