package mcpserve

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

const testCatalogYAML = `apiVersion: catalog/v1
meta:
  name: mcp-test
recipes:
  - item_id: iron_ingot
    recipe_id: rcp_iron_ingot
    yield: 1
    ingredients:
      - item_id: iron_ore
        quantity: 2
gatherables:
  - item_id: iron_ore
    class: miner
    zone: highlands
`

func writeTestCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(testCatalogYAML), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func callArgs(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func TestHandleValidate_MissingPath(t *testing.T) {
	result, err := HandleValidate(context.Background(), callArgs(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing path")
	}
}

func TestHandleValidate_GoodCatalog(t *testing.T) {
	path := writeTestCatalog(t)
	result, err := HandleValidate(context.Background(), callArgs(map[string]any{"path": path}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Errorf("expected success, got %v", result.Content)
	}
}

func TestHandleResolve_ProducesPlan(t *testing.T) {
	path := writeTestCatalog(t)
	result, err := HandleResolve(context.Background(), callArgs(map[string]any{
		"path":     path,
		"item":     "iron_ingot",
		"quantity": float64(3),
		"own":      map[string]any{"iron_ore": float64(2)},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("expected success, got %v", result.Content)
	}
	text := result.Content[0].(mcp.TextContent).Text
	if !strings.Contains(text, `"iron_ore"`) || !strings.Contains(text, `"craft_order"`) {
		t.Errorf("plan output missing expected fields: %s", text)
	}
}

func TestHandleResolve_BadPolicy(t *testing.T) {
	path := writeTestCatalog(t)
	result, err := HandleResolve(context.Background(), callArgs(map[string]any{
		"path":   path,
		"item":   "iron_ingot",
		"policy": "not a ( valid expression",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for malformed policy expression")
	}
}

func TestHandleRun_SimulatedRun(t *testing.T) {
	path := writeTestCatalog(t)
	result, err := HandleRun(context.Background(), callArgs(map[string]any{
		"path":     path,
		"item":     "iron_ingot",
		"quantity": float64(2),
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("expected completed run, got %v", result.Content)
	}
	text := result.Content[0].(mcp.TextContent).Text
	if !strings.Contains(text, `"phase": "completed"`) {
		t.Errorf("run output missing completed phase: %s", text)
	}
}

func TestHandleSchema(t *testing.T) {
	result, err := HandleSchema(context.Background(), callArgs(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Error("expected success for schema export")
	}
	if len(result.Content) == 0 {
		t.Error("expected schema content")
	}
}
