package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the top-level catalog YAML document.
type File struct {
	APIVersion  string          `yaml:"apiVersion"            json:"apiVersion" jsonschema:"required,enum=catalog/v1"`
	Meta        Meta            `yaml:"meta"                  json:"meta"       jsonschema:"required"`
	Recipes     []RecipeNode    `yaml:"recipes,omitempty"     json:"recipes,omitempty"`
	Gatherables []GatherableDef `yaml:"gatherables,omitempty" json:"gatherables,omitempty"`
}

// Meta contains catalog metadata.
type Meta struct {
	Name        string `yaml:"name"                  json:"name" jsonschema:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// LoadFile reads and parses a catalog YAML file with strict unknown-field
// rejection.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a catalog from an io.Reader with strict unknown-field rejection.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cf File
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &cf, nil
}

// Static is an in-memory Catalog built from a parsed File.
type Static struct {
	recipes     map[string]*RecipeNode
	gatherables map[string]*GatherableDef
}

// NewStatic indexes a parsed catalog file for lookup.
func NewStatic(cf *File) *Static {
	s := &Static{
		recipes:     make(map[string]*RecipeNode, len(cf.Recipes)),
		gatherables: make(map[string]*GatherableDef, len(cf.Gatherables)),
	}
	for i := range cf.Recipes {
		r := &cf.Recipes[i]
		s.recipes[r.ItemID] = r
	}
	for i := range cf.Gatherables {
		g := &cf.Gatherables[i]
		s.gatherables[g.ItemID] = g
	}
	return s
}

// GetRecipe returns the recipe producing itemID, or nil.
func (s *Static) GetRecipe(itemID string) *RecipeNode {
	return s.recipes[itemID]
}

// IsGatherable reports whether itemID has a gatherable source.
func (s *Static) IsGatherable(itemID string) (bool, GatherClass) {
	g, ok := s.gatherables[itemID]
	if !ok {
		return false, GatherNone
	}
	return true, g.Class
}

// Gatherable returns the full gatherable definition for itemID, or nil.
// The orchestrator uses this for zone grouping and time windows.
func (s *Static) Gatherable(itemID string) *GatherableDef {
	return s.gatherables[itemID]
}
