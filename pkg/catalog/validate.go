package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "recipes[2].yield")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile performs the full 3-phase validation pipeline on a catalog file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*File, []*ValidationError) {
	var allErrors []*ValidationError

	cf, err := LoadFile(path)
	if err != nil {
		allErrors = append(allErrors, &ValidationError{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		})
		return nil, allErrors
	}

	allErrors = append(allErrors, validateSemantic(cf)...)
	allErrors = append(allErrors, ValidateDomain(cf)...)

	if len(allErrors) > 0 {
		return cf, allErrors
	}
	return cf, nil
}

// validateSemantic validates the catalog against the generated JSON Schema.
func validateSemantic(cf *File) []*ValidationError {
	data, err := json.Marshal(cf)
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("marshal for schema validation: %v", err))}
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("generate schema: %v", err))}
	}

	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("unmarshal schema: %v", err))}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("catalog-v1.json", schemaDoc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("add schema resource: %v", err))}
	}

	sch, err := c.Compile("catalog-v1.json")
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("compile schema: %v", err))}
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("unmarshal document: %v", err))}
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = append(errs, semanticErr(err.Error()))
		}
		return errs
	}
	return nil
}

func semanticErr(msg string) *ValidationError {
	return &ValidationError{Phase: "semantic", Message: msg, Severity: "error"}
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain applies catalog rules the JSON Schema cannot express:
// unique item ids per section, positive quantities, known ingredient
// references, well-formed time windows.
func ValidateDomain(cf *File) []*ValidationError {
	var errs []*ValidationError
	domainErr := func(path, msg string) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: path, Message: msg, Severity: "error"})
	}
	domainWarn := func(path, msg string) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: path, Message: msg, Severity: "warning"})
	}

	known := make(map[string]bool)
	seenRecipe := make(map[string]bool)
	for i, r := range cf.Recipes {
		path := fmt.Sprintf("recipes[%d]", i)
		if seenRecipe[r.ItemID] {
			domainErr(path, fmt.Sprintf("duplicate recipe for item %q", r.ItemID))
		}
		seenRecipe[r.ItemID] = true
		known[r.ItemID] = true
		if r.Yield < 1 {
			domainErr(path+".yield", fmt.Sprintf("yield must be >= 1, got %d", r.Yield))
		}
		for j, ing := range r.Ingredients {
			if ing.Quantity < 1 {
				domainErr(fmt.Sprintf("%s.ingredients[%d].quantity", path, j),
					fmt.Sprintf("quantity must be >= 1, got %d", ing.Quantity))
			}
			if ing.ItemID == r.ItemID {
				domainErr(fmt.Sprintf("%s.ingredients[%d]", path, j),
					fmt.Sprintf("recipe for %q lists itself as an ingredient", r.ItemID))
			}
		}
	}

	seenGather := make(map[string]bool)
	for i, g := range cf.Gatherables {
		path := fmt.Sprintf("gatherables[%d]", i)
		if seenGather[g.ItemID] {
			domainErr(path, fmt.Sprintf("duplicate gatherable for item %q", g.ItemID))
		}
		seenGather[g.ItemID] = true
		known[g.ItemID] = true
		switch g.Class {
		case GatherMiner, GatherBotanist, GatherFisher:
		default:
			domainErr(path+".class", fmt.Sprintf("unknown gather class %q", g.Class))
		}
		for j, w := range g.Windows {
			if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 24 {
				domainErr(fmt.Sprintf("%s.windows[%d]", path, j),
					fmt.Sprintf("hours out of range: [%d, %d)", w.StartHour, w.EndHour))
			}
			if w.StartHour == w.EndHour {
				domainErr(fmt.Sprintf("%s.windows[%d]", path, j), "empty window: start_hour equals end_hour")
			}
		}
	}

	// Ingredients that are neither craftable nor gatherable resolve to the
	// "other materials" list at runtime; flag them so catalog authors notice.
	for i, r := range cf.Recipes {
		for j, ing := range r.Ingredients {
			if !known[ing.ItemID] {
				domainWarn(fmt.Sprintf("recipes[%d].ingredients[%d]", i, j),
					fmt.Sprintf("ingredient %q has no recipe or gatherable source (vendor/drop-only)", ing.ItemID))
			}
		}
	}

	return errs
}

// HasErrors reports whether the list contains at least one error-severity entry.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}
