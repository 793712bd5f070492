package resolver

import (
	"fmt"
	"strings"
)

// ErrorKind classifies why a resolution failed.
type ErrorKind string

const (
	ErrNoRecipe    ErrorKind = "no_recipe"
	ErrCycle       ErrorKind = "cycle"
	ErrBadQuantity ErrorKind = "bad_quantity"
	ErrPolicy      ErrorKind = "policy"
)

// ResolutionError is fatal to a workflow run: no retry, surfaced immediately.
type ResolutionError struct {
	Kind   ErrorKind
	ItemID string
	Path   []string // expansion path at the point of failure (cycle errors)
	Err    error    // underlying error (policy errors)
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case ErrNoRecipe:
		return fmt.Sprintf("no recipe found for item %q", e.ItemID)
	case ErrCycle:
		return fmt.Sprintf("dependency cycle detected at item %q (path: %s)", e.ItemID, strings.Join(e.Path, " -> "))
	case ErrBadQuantity:
		return fmt.Sprintf("quantity must be positive for item %q", e.ItemID)
	case ErrPolicy:
		return fmt.Sprintf("source policy failed for item %q: %v", e.ItemID, e.Err)
	}
	return fmt.Sprintf("resolution failed for item %q", e.ItemID)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
