// Package main provides the craftpilot-mcp binary, an MCP server for AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/pellucid-labs/craftpilot/pkg/mcpserve"
)

var version = "dev"

func main() {
	s := mcpserve.NewServer(version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
