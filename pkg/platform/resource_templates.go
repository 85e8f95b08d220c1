package platform

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yosida95/uritemplate/v3"
)

// Resource template URI patterns.
const (
	databaseTablesTemplateURI = "metabase://database/{database_id}/tables"
	cardTemplateURI           = "metabase://card/{card_id}"
)

// registerResourceTemplates registers all MCP resource templates.
// Only called when resources.enabled is true.
func (p *Platform) registerResourceTemplates() {
	if !p.config.Resources.Enabled {
		return
	}

	p.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: databaseTablesTemplateURI,
		Name:        "Database Tables",
		Description: "Metadata for all tables in a Metabase database, including names, schemas, and fields",
		MIMEType:    "application/json",
	}, p.handleDatabaseTablesResource)

	p.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: cardTemplateURI,
		Name:        "Card Definition",
		Description: "The saved question (card) definition, including its dataset query and visualization settings",
		MIMEType:    "application/json",
	}, p.handleCardResource)
}

// parseTemplateVars extracts named variables from a URI using a URI template.
func parseTemplateVars(templateStr, uri string) (map[string]string, error) {
	tmpl, err := uritemplate.New(templateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", templateStr, err)
	}

	match := tmpl.Match(uri)
	if match == nil {
		return nil, fmt.Errorf("uri %q does not match template %q", uri, templateStr)
	}

	result := make(map[string]string)
	for _, name := range tmpl.Varnames() {
		val := match.Get(name)
		result[name] = val.String()
	}
	return result, nil
}

// handleDatabaseTablesResource handles metabase://database/{database_id}/tables requests.
func (p *Platform) handleDatabaseTablesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	vars, err := parseTemplateVars(databaseTablesTemplateURI, uri)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}

	databaseID, err := strconv.Atoi(vars["database_id"])
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}

	client := p.metabaseClient()
	if client == nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}

	raw, err := client.DoRaw(ctx, http.MethodGet, fmt.Sprintf("/database/%d/metadata", databaseID), nil)
	if err != nil {
		return nil, fmt.Errorf("reading database metadata: %w", err)
	}

	return rawResourceResult(uri, raw), nil
}

// handleCardResource handles metabase://card/{card_id} requests.
func (p *Platform) handleCardResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	vars, err := parseTemplateVars(cardTemplateURI, uri)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}

	cardID, err := strconv.Atoi(vars["card_id"])
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}

	client := p.metabaseClient()
	if client == nil {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}

	raw, err := client.DoRaw(ctx, http.MethodGet, fmt.Sprintf("/card/%d", cardID), nil)
	if err != nil {
		return nil, fmt.Errorf("reading card: %w", err)
	}

	return rawResourceResult(uri, raw), nil
}

// rawResourceResult wraps a raw JSON payload in a resource result.
func rawResourceResult(uri string, raw []byte) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(raw),
			},
		},
	}
}
