package resolver

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pellucid-labs/craftpilot/pkg/catalog"
)

// PolicyInput describes one dual-sourced item (both craftable and gatherable)
// at the moment the resolver must pick a source for it.
type PolicyInput struct {
	ItemID      string
	Needed      int
	Owned       int
	Remaining   int
	GatherClass catalog.GatherClass
	Collectable bool
}

// SourcePolicy decides whether a dual-sourced item is gathered or crafted.
// Whether gather-first or craft-first is the right default is a judgment
// call, so it is a pluggable strategy rather than a hardcoded rule.
type SourcePolicy interface {
	PreferGather(in PolicyInput) (bool, error)
}

type fixedPolicy bool

func (f fixedPolicy) PreferGather(PolicyInput) (bool, error) { return bool(f), nil }

// GatherFirst always gathers dual-sourced items. This is the default:
// gathering is assumed cheaper and more automatable than crafting.
var GatherFirst SourcePolicy = fixedPolicy(true)

// CraftFirst always crafts dual-sourced items.
var CraftFirst SourcePolicy = fixedPolicy(false)

// ExprPolicy evaluates a compiled expr-lang boolean expression per item.
// The expression sees: item_id, needed, owned, remaining, gather_class,
// collectable. Example: `remaining <= 20 || gather_class == "botanist"`.
type ExprPolicy struct {
	source  string
	program *vm.Program
}

// NewExprPolicy compiles the expression once; evaluation errors are surfaced
// per item at resolve time.
func NewExprPolicy(source string) (*ExprPolicy, error) {
	program, err := expr.Compile(source, expr.Env(policyEnv(PolicyInput{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile source policy %q: %w", source, err)
	}
	return &ExprPolicy{source: source, program: program}, nil
}

// PreferGather runs the expression for one item.
func (p *ExprPolicy) PreferGather(in PolicyInput) (bool, error) {
	out, err := expr.Run(p.program, policyEnv(in))
	if err != nil {
		return false, fmt.Errorf("eval source policy %q: %w", p.source, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("source policy %q did not return bool (got %T)", p.source, out)
	}
	return result, nil
}

func policyEnv(in PolicyInput) map[string]interface{} {
	return map[string]interface{}{
		"item_id":      in.ItemID,
		"needed":       in.Needed,
		"owned":        in.Owned,
		"remaining":    in.Remaining,
		"gather_class": string(in.GatherClass),
		"collectable":  in.Collectable,
	}
}
