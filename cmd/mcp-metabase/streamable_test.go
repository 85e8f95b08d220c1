package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-metabase/pkg/platform"
)

const (
	testAPIKey        = "test-key-12345"
	fmtConnectFailed  = "Connect failed: %v"
	fmtCallToolFailed = "CallTool failed: %v"
)

// authRoundTripper adds an Authorization header to all outgoing requests.
type authRoundTripper struct {
	token string
	base  http.RoundTripper
}

func (a *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+a.token)
	resp, err := a.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("round trip: %w", err)
	}
	return resp, nil
}

// newFakeMetabase starts a fake Metabase API.
func newFakeMetabase(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/database":
			_, _ = w.Write([]byte(`[{"id":1,"name":"Sample Database"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newTestPlatform builds a platform pointed at a fake Metabase with API
// key auth enabled and create_* tools denied.
func newTestPlatform(t *testing.T, metabaseURL string) *platform.Platform {
	t.Helper()

	cfg := &platform.Config{
		Toolkits: map[string]any{
			"metabase": map[string]any{
				"url":     metabaseURL,
				"api_key": "mb_upstream_key",
			},
		},
	}
	cfg.Auth.APIKeys.Enabled = true
	cfg.Auth.APIKeys.Keys = []platform.APIKeyDef{
		{Key: testAPIKey, Name: "test", Roles: []string{"admin"}},
	}
	cfg.Auth.Rules.Deny = []string{"create_*"}
	platform.ApplyDefaults(cfg)

	p, err := platform.New(platform.WithConfig(cfg))
	if err != nil {
		t.Fatalf("creating platform: %v", err)
	}
	t.Cleanup(func() { _ = p.Stop(context.Background()) })
	return p
}

// newTestEndpoint serves the platform over Streamable HTTP with the
// same gateway chain main uses.
func newTestEndpoint(t *testing.T, p *platform.Platform) *httptest.Server {
	t.Helper()
	server := p.MCPServer()
	streamHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	httpServer := httptest.NewServer(corsMiddleware(authGateway(p)(streamHandler)))
	t.Cleanup(httpServer.Close)
	return httpServer
}

func connectStreamable(ctx context.Context, t *testing.T, endpoint, token string) *mcp.ClientSession {
	t.Helper()

	httpClient := http.DefaultClient
	if token != "" {
		httpClient = &http.Client{
			Transport: &authRoundTripper{token: token, base: http.DefaultTransport},
		}
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: httpClient,
	}, nil)
	if err != nil {
		t.Fatalf(fmtConnectFailed, err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestStreamableHTTP_ToolCall_WithAPIKey(t *testing.T) {
	ctx := context.Background()
	metabase := newFakeMetabase(t)
	p := newTestPlatform(t, metabase.URL)
	endpoint := newTestEndpoint(t, p)

	session := connectStreamable(ctx, t, endpoint.URL, testAPIKey)

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "list_databases"})
	if err != nil {
		t.Fatalf(fmtCallToolFailed, err)
	}
	if result.IsError {
		tc, _ := result.Content[0].(*mcp.TextContent)
		t.Fatalf("tool returned error: %s", tc.Text)
	}

	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	if !strings.Contains(tc.Text, "Sample Database") {
		t.Errorf("expected database listing, got: %q", tc.Text)
	}
}

func TestStreamableHTTP_MissingKey_Rejected(t *testing.T) {
	ctx := context.Background()
	metabase := newFakeMetabase(t)
	p := newTestPlatform(t, metabase.URL)
	endpoint := newTestEndpoint(t, p)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	_, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: endpoint.URL}, nil)
	if err == nil {
		t.Fatal("expected connect to fail without a key")
	}
}

func TestStreamableHTTP_InvalidKey_ToolCallDenied(t *testing.T) {
	ctx := context.Background()
	metabase := newFakeMetabase(t)
	p := newTestPlatform(t, metabase.URL)
	endpoint := newTestEndpoint(t, p)

	session := connectStreamable(ctx, t, endpoint.URL, "wrong-key")

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "list_databases"})
	if err != nil {
		t.Fatalf(fmtCallToolFailed, err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for invalid key")
	}
	tc, _ := result.Content[0].(*mcp.TextContent)
	if !strings.Contains(tc.Text, "authentication failed") {
		t.Errorf("expected authentication failure, got: %q", tc.Text)
	}
}

func TestStreamableHTTP_DeniedTool(t *testing.T) {
	ctx := context.Background()
	metabase := newFakeMetabase(t)
	p := newTestPlatform(t, metabase.URL)
	endpoint := newTestEndpoint(t, p)

	session := connectStreamable(ctx, t, endpoint.URL, testAPIKey)

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "create_collection",
		Arguments: map[string]any{"name": "Reports"},
	})
	if err != nil {
		t.Fatalf(fmtCallToolFailed, err)
	}
	if !result.IsError {
		t.Fatal("expected tool error (rule denial), but got success")
	}
	tc, _ := result.Content[0].(*mcp.TextContent)
	if !strings.Contains(tc.Text, "not authorized") {
		t.Errorf("expected 'not authorized' in error, got: %q", tc.Text)
	}
}
