package mcpserve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pellucid-labs/craftpilot/pkg/catalog"
	"github.com/pellucid-labs/craftpilot/pkg/resolver"
	"github.com/pellucid-labs/craftpilot/pkg/tools"
	"github.com/pellucid-labs/craftpilot/pkg/tools/sim"
	"github.com/pellucid-labs/craftpilot/pkg/workflow"
)

// HandleValidate implements the craftpilot/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	cf, errs := catalog.ValidateFile(path)
	if catalog.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	return textResult(fmt.Sprintf("✓ %s is valid (%d recipes, %d gatherables)",
		cf.Meta.Name, len(cf.Recipes), len(cf.Gatherables))), nil
}

// HandleResolve implements the craftpilot/resolve MCP tool.
func HandleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	item, _ := args["item"].(string)
	if path == "" || item == "" {
		return errorResult("path and item arguments are required"), nil
	}

	cf, errs := catalog.ValidateFile(path)
	if catalog.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	policy, err := parsePolicy(args["policy"])
	if err != nil {
		return errorResult(err.Error()), nil
	}

	res := &resolver.Resolver{
		Catalog: catalog.NewStatic(cf),
		Policy:  policy,
	}
	// Owned quantities come from the caller, not a live inventory.
	inv := catalog.NewMemoryInventory(ownArg(args))
	plan, err := res.Resolve(item, intArg(args, "quantity", 1), inv)
	if err != nil {
		return errorResult(fmt.Sprintf("resolve: %s", err)), nil
	}

	data, _ := json.MarshalIndent(plan, "", "  ")
	return textResult(string(data)), nil
}

// HandleRun implements the craftpilot/run MCP tool: a full run against
// simulated tools, safe for AI agents.
func HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	item, _ := args["item"].(string)
	if path == "" || item == "" {
		return errorResult("path and item arguments are required"), nil
	}

	cf, errs := catalog.ValidateFile(path)
	if catalog.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	quantity := intArg(args, "quantity", 1)
	maxTicks := intArg(args, "max_ticks", 1000)

	cat := catalog.NewStatic(cf)
	inv := catalog.NewMemoryInventory(ownArg(args))
	world := sim.NewWorld(cf, inv)

	engine, err := workflow.NewEngine(workflow.Deps{
		Catalog:    cat,
		Inventory:  inv,
		Resolver:   &resolver.Resolver{Catalog: cat},
		Monitor:    tools.NewMonitor(world.Gatherer, world.Pathfinder, 0),
		Gatherer:   world.Gatherer,
		Crafter:    world.Crafter,
		Introspect: world.Gatherer,
		Reset:      world.Gatherer,
	}, workflow.Config{Player: workflow.PlayerProfile{Level: 100, Specialist: true}})
	if err != nil {
		return errorResult(err.Error()), nil
	}

	runID, err := engine.Start(item, quantity)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	now := time.Now()
	for i := 0; i < maxTicks && !engine.State().Phase.Terminal(); i++ {
		if err := engine.Tick(ctx, now); err != nil {
			return errorResult(fmt.Sprintf("tick: %s", err)), nil
		}
		world.Step()
		now = now.Add(time.Second)
	}

	state := engine.State()
	gs, cs := engine.Summaries()
	response := map[string]any{
		"run_id":   runID,
		"phase":    state.Phase,
		"ticks":    state.Ticks,
		"target":   map[string]any{"item": item, "quantity": quantity, "owned": inv.OwnedQuantity(item)},
		"gathered": gs,
		"crafted":  cs,
	}
	if state.Reason != "" {
		response["reason"] = state.Reason
	}
	data, _ := json.MarshalIndent(response, "", "  ")

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: state.Phase != workflow.PhaseCompleted,
	}, nil
}

// HandleSchema implements the craftpilot/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := catalog.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// parsePolicy maps the policy argument to a SourcePolicy: the fixed names
// "gather" and "craft", or an expression over the policy environment.
func parsePolicy(raw any) (resolver.SourcePolicy, error) {
	s, _ := raw.(string)
	switch s {
	case "", "gather":
		return resolver.GatherFirst, nil
	case "craft":
		return resolver.CraftFirst, nil
	default:
		return resolver.NewExprPolicy(s)
	}
}

func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok && v > 0 {
		return int(v)
	}
	return def
}

func ownArg(args map[string]any) map[string]int {
	raw, ok := args["own"].(map[string]any)
	if !ok {
		return nil
	}
	own := make(map[string]int, len(raw))
	for k, v := range raw {
		if n, ok := v.(float64); ok {
			own[k] = int(n)
		}
	}
	return own
}

func formatErrors(errs []*catalog.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
