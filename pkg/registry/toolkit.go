// Package registry provides toolkit registration and management.
package registry

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Toolkit is the interface that all composable toolkits must implement.
type Toolkit interface {
	// Kind returns the toolkit type (e.g., "metabase").
	Kind() string

	// Name returns the instance name from config.
	Name() string

	// Connection returns the connection identifier for audit logging.
	Connection() string

	// RegisterTools registers all tools with the MCP server.
	RegisterTools(s *mcp.Server)

	// Tools returns a list of tool names provided by this toolkit.
	Tools() []string

	// Close releases resources.
	Close() error
}

// ToolkitFactory creates a toolkit from configuration.
type ToolkitFactory func(name string, config map[string]any) (Toolkit, error)

// ToolkitConfig holds configuration for a toolkit instance.
type ToolkitConfig struct {
	Kind   string
	Name   string
	Config map[string]any
}
