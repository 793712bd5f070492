// Package catalog defines the recipe and gatherable item data model and the
// read-only collaborator interfaces the rest of the engine depends on.
package catalog

// GatherClass identifies which gathering discipline can collect an item.
type GatherClass string

const (
	GatherNone     GatherClass = "none"
	GatherMiner    GatherClass = "miner"
	GatherBotanist GatherClass = "botanist"
	GatherFisher   GatherClass = "fisher"
	GatherUnknown  GatherClass = "unknown"
)

// IngredientRef is one line of a recipe's ingredient list.
type IngredientRef struct {
	ItemID   string `yaml:"item_id"  json:"item_id"  jsonschema:"required"`
	Quantity int    `yaml:"quantity" json:"quantity" jsonschema:"required,minimum=1"`
}

// RecipeNode describes how to craft one item. Immutable once loaded;
// the resolver and orchestrators never mutate it.
type RecipeNode struct {
	ItemID        string          `yaml:"item_id"                  json:"item_id"   jsonschema:"required"`
	RecipeID      string          `yaml:"recipe_id"                json:"recipe_id" jsonschema:"required"`
	Name          string          `yaml:"name,omitempty"           json:"name,omitempty"`
	RequiredLevel int             `yaml:"required_level,omitempty" json:"required_level,omitempty"`
	Yield         int             `yaml:"yield"                    json:"yield"     jsonschema:"required,minimum=1"`
	Durability    int             `yaml:"durability,omitempty"     json:"durability,omitempty"`
	SuggestedStat int             `yaml:"suggested_stat,omitempty" json:"suggested_stat,omitempty"`
	Ingredients   []IngredientRef `yaml:"ingredients"              json:"ingredients" jsonschema:"required,minItems=1"`
	Collectable   bool            `yaml:"collectable,omitempty"    json:"collectable,omitempty"`
	Expert        bool            `yaml:"expert,omitempty"         json:"expert,omitempty"`
	Specialist    bool            `yaml:"specialist,omitempty"     json:"specialist,omitempty"`
	MasterBook    string          `yaml:"master_book,omitempty"    json:"master_book,omitempty"`
}

// TimeWindow is a recurring hour-of-day availability window [Start, End).
// Windows may wrap midnight (Start > End).
type TimeWindow struct {
	StartHour int `yaml:"start_hour" json:"start_hour" jsonschema:"required,minimum=0,maximum=23"`
	EndHour   int `yaml:"end_hour"   json:"end_hour"   jsonschema:"required,minimum=0,maximum=24"`
}

// Contains reports whether the given hour of day falls inside the window.
func (w TimeWindow) Contains(hour int) bool {
	if w.StartHour <= w.EndHour {
		return hour >= w.StartHour && hour < w.EndHour
	}
	// wraps midnight
	return hour >= w.StartHour || hour < w.EndHour
}

// GatherableDef describes an item obtainable by a gathering discipline,
// including where and when it can be collected.
type GatherableDef struct {
	ItemID  string       `yaml:"item_id"           json:"item_id" jsonschema:"required"`
	Name    string       `yaml:"name,omitempty"    json:"name,omitempty"`
	Class   GatherClass  `yaml:"class"             json:"class"   jsonschema:"required,enum=miner,enum=botanist,enum=fisher"`
	Zone    string       `yaml:"zone,omitempty"    json:"zone,omitempty"`
	Windows []TimeWindow `yaml:"windows,omitempty" json:"windows,omitempty"`
}

// Catalog is the read-only recipe catalog collaborator.
type Catalog interface {
	// GetRecipe returns the recipe that produces itemID, or nil if the item
	// is not craftable.
	GetRecipe(itemID string) *RecipeNode

	// IsGatherable reports whether itemID can be gathered and by which class.
	IsGatherable(itemID string) (bool, GatherClass)
}

// Inventory is the read-only inventory collaborator. Counts may be stale by
// one polling interval; callers must treat them as snapshots.
type Inventory interface {
	OwnedQuantity(itemID string) int
}
