// Package mcpserve exposes craftpilot over the Model Context Protocol so AI
// agents can validate catalogs, resolve plans and drive simulated runs.
package mcpserve

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with craftpilot tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"craftpilot",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("craftpilot/validate",
			mcp.WithDescription("Validate a craftpilot catalog YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the catalog YAML file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("craftpilot/resolve",
			mcp.WithDescription("Resolve a target item into a gather/craft plan against a catalog"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the catalog YAML file")),
			mcp.WithString("item", mcp.Required(), mcp.Description("Target item id")),
			mcp.WithNumber("quantity", mcp.Description("Target quantity (default 1)")),
			mcp.WithObject("own", mcp.Description("Owned item counts, item id to quantity")),
			mcp.WithString("policy", mcp.Description("Source policy for dual-sourced items: gather, craft, or an expression")),
		),
		HandleResolve,
	)

	s.AddTool(
		mcp.NewTool("craftpilot/run",
			mcp.WithDescription("Execute a full resolve-gather-craft run against simulated tools"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the catalog YAML file")),
			mcp.WithString("item", mcp.Required(), mcp.Description("Target item id")),
			mcp.WithNumber("quantity", mcp.Description("Target quantity (default 1)")),
			mcp.WithObject("own", mcp.Description("Owned item counts, item id to quantity")),
			mcp.WithNumber("max_ticks", mcp.Description("Tick budget before the run is abandoned (default 1000)")),
		),
		HandleRun,
	)

	s.AddTool(
		mcp.NewTool("craftpilot/schema",
			mcp.WithDescription("Export the craftpilot catalog JSON Schema"),
		),
		HandleSchema,
	)

	return s
}
