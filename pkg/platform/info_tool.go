package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Info contains information about the server deployment.
type Info struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Toolkits    []string `json:"toolkits"`
	Tools       []string `json:"tools"`
	Features    Features `json:"features"`
}

// Features describes enabled server features.
type Features struct {
	AuditLogging bool `json:"audit_logging"`
	Resources    bool `json:"resources"`
}

// infoInput is empty since this tool has no parameters.
type infoInput struct{}

// registerInfoTool registers the metabase_info tool with the MCP server.
func (p *Platform) registerInfoTool() {
	mcp.AddTool(p.mcpServer, &mcp.Tool{
		Name:        "metabase_info",
		Description: p.buildInfoToolDescription(),
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ infoInput) (*mcp.CallToolResult, any, error) {
		return p.handleInfo(ctx, req)
	})
}

// buildInfoToolDescription builds the tool description from configuration.
func (p *Platform) buildInfoToolDescription() string {
	base := "Get information about this Metabase MCP server"
	if p.config.Server.Name != "" && p.config.Server.Name != "mcp-metabase" {
		base = fmt.Sprintf("Get information about %s", p.config.Server.Name)
	}
	return base + ", including the connected Metabase instances and available tools. " +
		"Call this first to understand what capabilities are available."
}

// handleInfo handles the metabase_info tool call.
func (p *Platform) handleInfo(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, any, error) {
	toolkits := make([]string, 0, len(p.config.Toolkits))
	for kind := range p.config.Toolkits {
		toolkits = append(toolkits, kind)
	}
	sort.Strings(toolkits)

	tools := p.toolkitRegistry.Tools()
	sort.Strings(tools)

	info := Info{
		Name:        p.config.Server.Name,
		Version:     p.config.Server.Version,
		Description: p.config.Server.Description,
		Toolkits:    toolkits,
		Tools:       tools,
		Features: Features{
			AuditLogging: p.config.Audit.Enabled,
			Resources:    p.config.Resources.Enabled,
		},
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{ //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError, not as Go errors
			Content: []mcp.Content{
				&mcp.TextContent{Text: "Error: " + err.Error()},
			},
			IsError: true,
		}, nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}
