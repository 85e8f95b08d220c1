// Package metabase provides a Metabase toolkit for the MCP server.
package metabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	mbclient "github.com/txn2/mcp-metabase/pkg/metabase"
)

// defaultTimeout is the default Metabase request timeout.
const defaultTimeout = 30 * time.Second

// ToolName identifies a tool provided by this toolkit.
type ToolName string

// Tool names exposed by the Metabase toolkit.
const (
	ToolListDatabases    ToolName = "list_databases"
	ToolListCards        ToolName = "list_cards"
	ToolExecuteCard      ToolName = "execute_card"
	ToolExecuteQuery     ToolName = "execute_query"
	ToolCreateCard       ToolName = "create_card"
	ToolListCollections  ToolName = "list_collections"
	ToolCreateCollection ToolName = "create_collection"
	ToolListTables       ToolName = "list_tables"
	ToolGetTableFields   ToolName = "get_table_fields"
)

// defaultDescriptions are the baseline tool descriptions, overridable via config.
var defaultDescriptions = map[ToolName]string{
	ToolListDatabases:    "List all databases in Metabase",
	ToolListCards:        "List all questions/cards in Metabase",
	ToolExecuteCard:      "Execute a Metabase question/card and get results",
	ToolExecuteQuery:     "Execute a SQL query against a Metabase database",
	ToolCreateCard:       "Create a new question/card in Metabase",
	ToolListCollections:  "List all collections in Metabase",
	ToolCreateCollection: "Create a new collection in Metabase",
	ToolListTables:       "List all tables in a database with formatted markdown output",
	ToolGetTableFields:   "Get all fields/columns in a table",
}

// Config holds Metabase toolkit configuration.
type Config struct {
	URL            string                      `yaml:"url"`
	APIKey         string                      `yaml:"api_key"`
	Username       string                      `yaml:"username"`
	Password       string                      `yaml:"password"`
	Timeout        time.Duration               `yaml:"timeout"`
	ReadOnly       bool                        `yaml:"read_only"`
	ConnectionName string                      `yaml:"connection_name"`
	Descriptions   map[string]string           `yaml:"descriptions"`
	Annotations    map[string]AnnotationConfig `yaml:"annotations"`
}

// Toolkit exposes Metabase REST operations as MCP tools.
type Toolkit struct {
	name        string
	config      Config
	client      *mbclient.Client
	interceptor QueryInterceptor
}

// New creates a new Metabase toolkit.
func New(name string, cfg Config) (*Toolkit, error) {
	cfg = applyDefaults(name, cfg)

	client, err := mbclient.New(mbclient.Config{
		URL:      cfg.URL,
		APIKey:   cfg.APIKey,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating metabase client: %w", err)
	}

	t := &Toolkit{
		name:   name,
		config: cfg,
		client: client,
	}
	if cfg.ReadOnly {
		t.interceptor = NewReadOnlyInterceptor()
	}
	return t, nil
}

// NewWithClient creates a toolkit around an existing client. Used by tests
// and by callers that manage the client lifecycle themselves.
func NewWithClient(name string, cfg Config, client *mbclient.Client) *Toolkit {
	cfg = applyDefaults(name, cfg)
	t := &Toolkit{name: name, config: cfg, client: client}
	if cfg.ReadOnly {
		t.interceptor = NewReadOnlyInterceptor()
	}
	return t
}

// applyDefaults applies default values to the configuration.
func applyDefaults(name string, cfg Config) Config {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ConnectionName == "" {
		cfg.ConnectionName = name
	}
	return cfg
}

// Kind returns the toolkit kind.
func (*Toolkit) Kind() string {
	return "metabase"
}

// Name returns the toolkit instance name.
func (t *Toolkit) Name() string {
	return t.name
}

// Connection returns the connection name for audit logging.
func (t *Toolkit) Connection() string {
	return t.config.ConnectionName
}

// Tools returns the list of tool names provided by this toolkit.
// Write tools are omitted in read-only mode.
func (t *Toolkit) Tools() []string {
	names := []string{
		string(ToolListDatabases),
		string(ToolListCards),
		string(ToolExecuteCard),
		string(ToolExecuteQuery),
		string(ToolListCollections),
		string(ToolListTables),
		string(ToolGetTableFields),
	}
	if !t.config.ReadOnly {
		names = append(names, string(ToolCreateCard), string(ToolCreateCollection))
	}
	return names
}

// Client returns the underlying Metabase client for direct use.
func (t *Toolkit) Client() *mbclient.Client {
	return t.client
}

// Config returns the toolkit configuration.
func (t *Toolkit) Config() Config {
	return t.config
}

// Close releases resources.
func (t *Toolkit) Close() error {
	if t.client != nil {
		if err := t.client.Close(); err != nil {
			return fmt.Errorf("closing metabase client: %w", err)
		}
	}
	return nil
}

// description returns the tool description, honoring config overrides.
func (t *Toolkit) description(name ToolName) string {
	if d, ok := t.config.Descriptions[string(name)]; ok {
		return d
	}
	return defaultDescriptions[name]
}

// annotations returns the tool annotations, honoring config overrides.
func (t *Toolkit) annotations(name ToolName, defaults *mcp.ToolAnnotations) *mcp.ToolAnnotations {
	cfg, ok := t.config.Annotations[string(name)]
	if !ok {
		return defaults
	}
	ann := &mcp.ToolAnnotations{}
	if defaults != nil {
		*ann = *defaults
	}
	if cfg.ReadOnlyHint != nil {
		ann.ReadOnlyHint = *cfg.ReadOnlyHint
	}
	if cfg.DestructiveHint != nil {
		ann.DestructiveHint = cfg.DestructiveHint
	}
	if cfg.IdempotentHint != nil {
		ann.IdempotentHint = *cfg.IdempotentHint
	}
	if cfg.OpenWorldHint != nil {
		ann.OpenWorldHint = cfg.OpenWorldHint
	}
	return ann
}

// readOnlyAnnotations marks a tool as a read-only, idempotent lookup.
func readOnlyAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true}
}

// tool assembles an mcp.Tool definition for registration.
func (t *Toolkit) tool(name ToolName, defaults *mcp.ToolAnnotations) *mcp.Tool {
	return &mcp.Tool{
		Name:        string(name),
		Description: t.description(name),
		Annotations: t.annotations(name, defaults),
	}
}

// RegisterTools registers Metabase tools with the MCP server.
// Write tools (create_card, create_collection) are skipped in read-only mode.
func (t *Toolkit) RegisterTools(s *mcp.Server) {
	mcp.AddTool(s, t.tool(ToolListDatabases, readOnlyAnnotations()), t.handleListDatabases)
	mcp.AddTool(s, t.tool(ToolListCards, readOnlyAnnotations()), t.handleListCards)
	mcp.AddTool(s, t.tool(ToolExecuteCard, readOnlyAnnotations()), t.handleExecuteCard)
	mcp.AddTool(s, t.tool(ToolExecuteQuery, nil), t.handleExecuteQuery)
	mcp.AddTool(s, t.tool(ToolListCollections, readOnlyAnnotations()), t.handleListCollections)
	mcp.AddTool(s, t.tool(ToolListTables, readOnlyAnnotations()), t.handleListTables)
	mcp.AddTool(s, t.tool(ToolGetTableFields, readOnlyAnnotations()), t.handleGetTableFields)

	if t.config.ReadOnly {
		return
	}
	mcp.AddTool(s, t.tool(ToolCreateCard, nil), t.handleCreateCard)
	mcp.AddTool(s, t.tool(ToolCreateCollection, nil), t.handleCreateCollection)
}

// Tool input types.

type listDatabasesInput struct{}

type listCardsInput struct{}

type executeCardInput struct {
	CardID     int            `json:"card_id" jsonschema:"the ID of the card (saved question) to execute"`
	Parameters map[string]any `json:"parameters,omitempty" jsonschema:"optional parameter values for the card"`
}

type executeQueryInput struct {
	DatabaseID       int              `json:"database_id" jsonschema:"the ID of the database to query"`
	Query            string           `json:"query" jsonschema:"the native SQL query to execute"`
	NativeParameters []map[string]any `json:"native_parameters,omitempty" jsonschema:"optional template parameters for the native query"`
}

type createCardInput struct {
	Name                  string         `json:"name" jsonschema:"display name for the new card"`
	DatabaseID            int            `json:"database_id" jsonschema:"the ID of the database the card queries"`
	Query                 string         `json:"query" jsonschema:"the native SQL query the card runs"`
	Description           string         `json:"description,omitempty" jsonschema:"optional card description"`
	CollectionID          *int           `json:"collection_id,omitempty" jsonschema:"optional collection to place the card in"`
	VisualizationSettings map[string]any `json:"visualization_settings,omitempty" jsonschema:"optional visualization settings"`
}

type listCollectionsInput struct{}

type createCollectionInput struct {
	Name        string `json:"name" jsonschema:"display name for the new collection"`
	Description string `json:"description,omitempty" jsonschema:"optional collection description"`
	Color       string `json:"color,omitempty" jsonschema:"optional hex color for the collection"`
	ParentID    *int   `json:"parent_id,omitempty" jsonschema:"optional parent collection ID"`
}

type listTablesInput struct {
	DatabaseID int `json:"database_id" jsonschema:"the ID of the database to list tables for"`
}

type getTableFieldsInput struct {
	TableID int `json:"table_id" jsonschema:"the ID of the table to describe"`
}

// Tool handlers. Metabase and client errors are returned inside the
// CallToolResult per the MCP protocol, never as Go errors.

func (t *Toolkit) handleListDatabases(ctx context.Context, _ *mcp.CallToolRequest, _ listDatabasesInput) (*mcp.CallToolResult, any, error) {
	return t.proxy(ctx, http.MethodGet, "/database", nil)
}

func (t *Toolkit) handleListCards(ctx context.Context, _ *mcp.CallToolRequest, _ listCardsInput) (*mcp.CallToolResult, any, error) {
	return t.proxy(ctx, http.MethodGet, "/card", nil)
}

func (t *Toolkit) handleExecuteCard(ctx context.Context, _ *mcp.CallToolRequest, args executeCardInput) (*mcp.CallToolResult, any, error) {
	payload := map[string]any{}
	if len(args.Parameters) > 0 {
		payload["parameters"] = args.Parameters
	}
	return t.proxy(ctx, http.MethodPost, fmt.Sprintf("/card/%d/query", args.CardID), payload)
}

func (t *Toolkit) handleExecuteQuery(ctx context.Context, _ *mcp.CallToolRequest, args executeQueryInput) (*mcp.CallToolResult, any, error) {
	sql := args.Query
	if t.interceptor != nil {
		intercepted, err := t.interceptor.Intercept(ctx, sql, ToolExecuteQuery)
		if err != nil {
			return errorResult(err), nil, nil
		}
		sql = intercepted
	}

	native := map[string]any{"query": sql}
	if len(args.NativeParameters) > 0 {
		native["parameters"] = args.NativeParameters
	}
	payload := map[string]any{
		"database": args.DatabaseID,
		"type":     "native",
		"native":   native,
	}
	return t.proxy(ctx, http.MethodPost, "/dataset", payload)
}

func (t *Toolkit) handleCreateCard(ctx context.Context, _ *mcp.CallToolRequest, args createCardInput) (*mcp.CallToolResult, any, error) {
	settings := args.VisualizationSettings
	if settings == nil {
		settings = map[string]any{}
	}
	payload := map[string]any{
		"name":        args.Name,
		"database_id": args.DatabaseID,
		"dataset_query": map[string]any{
			"database": args.DatabaseID,
			"type":     "native",
			"native":   map[string]any{"query": args.Query},
		},
		"display":                "table",
		"visualization_settings": settings,
	}
	if args.Description != "" {
		payload["description"] = args.Description
	}
	if args.CollectionID != nil {
		payload["collection_id"] = *args.CollectionID
	}
	return t.proxy(ctx, http.MethodPost, "/card", payload)
}

func (t *Toolkit) handleListCollections(ctx context.Context, _ *mcp.CallToolRequest, _ listCollectionsInput) (*mcp.CallToolResult, any, error) {
	return t.proxy(ctx, http.MethodGet, "/collection", nil)
}

func (t *Toolkit) handleCreateCollection(ctx context.Context, _ *mcp.CallToolRequest, args createCollectionInput) (*mcp.CallToolResult, any, error) {
	payload := map[string]any{"name": args.Name}
	if args.Description != "" {
		payload["description"] = args.Description
	}
	if args.Color != "" {
		payload["color"] = args.Color
	}
	if args.ParentID != nil {
		payload["parent_id"] = *args.ParentID
	}
	return t.proxy(ctx, http.MethodPost, "/collection", payload)
}

func (t *Toolkit) handleListTables(ctx context.Context, _ *mcp.CallToolRequest, args listTablesInput) (*mcp.CallToolResult, any, error) {
	var metadata databaseMetadata
	path := fmt.Sprintf("/database/%d/metadata", args.DatabaseID)
	if err := t.client.Get(ctx, path, &metadata); err != nil {
		return errorResult(err), nil, nil
	}
	return textResult(formatTablesMarkdown(args.DatabaseID, metadata.Tables)), nil, nil
}

func (t *Toolkit) handleGetTableFields(ctx context.Context, _ *mcp.CallToolRequest, args getTableFieldsInput) (*mcp.CallToolResult, any, error) {
	return t.proxy(ctx, http.MethodGet, fmt.Sprintf("/table/%d/query_metadata", args.TableID), nil)
}

// proxy forwards a request to Metabase and relays the JSON response verbatim.
func (t *Toolkit) proxy(ctx context.Context, method, path string, body any) (*mcp.CallToolResult, any, error) {
	raw, err := t.client.DoRaw(ctx, method, path, body)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return rawResult(raw), nil, nil
}

// rawResult wraps a raw Metabase JSON response in a tool result.
func rawResult(raw json.RawMessage) *mcp.CallToolResult {
	return textResult(string(raw))
}

// textResult wraps text in a tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// errorResult wraps an error in a tool result.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
	}
}
