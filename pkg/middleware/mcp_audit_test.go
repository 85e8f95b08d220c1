package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingAuditLogger captures events for assertions. Logging is
// asynchronous, so it signals on a channel when an event arrives.
type recordingAuditLogger struct {
	mu     sync.Mutex
	events []AuditEvent
	logged chan struct{}
}

func newRecordingAuditLogger() *recordingAuditLogger {
	return &recordingAuditLogger{logged: make(chan struct{}, 8)}
}

func (r *recordingAuditLogger) Log(_ context.Context, event AuditEvent) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.logged <- struct{}{}
	return nil
}

func (r *recordingAuditLogger) waitForEvent(t *testing.T) AuditEvent {
	t.Helper()
	select {
	case <-r.logged:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1]
}

func newAuditTestRequest(toolName string, args map[string]any) *mcpTestRequest {
	params := &mcp.CallToolParamsRaw{Name: toolName}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			panic(err)
		}
		params.Arguments = raw
	}
	return &mcpTestRequest{
		ServerRequest: mcp.ServerRequest[*mcp.CallToolParamsRaw]{Params: params},
	}
}

func TestMCPAuditMiddleware_Success(t *testing.T) {
	logger := newRecordingAuditLogger()

	pc := NewPlatformContext("req-123")
	pc.ToolName = "execute_query"
	pc.UserID = "user1"
	pc.ToolkitKind = "metabase"
	pc.ToolkitName = "primary"
	ctx := WithPlatformContext(context.Background(), pc)

	next := func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "ok"}},
		}, nil
	}

	handler := MCPAuditMiddleware(logger)(next)
	req := newAuditTestRequest("execute_query", map[string]any{
		"database_id": 2,
		"query":       "SELECT 1",
	})

	_, err := handler(ctx, "tools/call", req)
	require.NoError(t, err)

	event := logger.waitForEvent(t)
	assert.Equal(t, "req-123", event.RequestID)
	assert.Equal(t, "user1", event.UserID)
	assert.Equal(t, "execute_query", event.ToolName)
	assert.Equal(t, "metabase", event.ToolkitKind)
	assert.True(t, event.Success)
	assert.Empty(t, event.ErrorMessage)
	assert.Equal(t, "SELECT 1", event.Parameters["query"])
}

func TestMCPAuditMiddleware_ErrorResult(t *testing.T) {
	logger := newRecordingAuditLogger()

	pc := NewPlatformContext("req-456")
	pc.ToolName = "execute_query"
	ctx := WithPlatformContext(context.Background(), pc)

	next := func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "Error: query failed"}},
		}, nil
	}

	handler := MCPAuditMiddleware(logger)(next)
	_, err := handler(ctx, "tools/call", newAuditTestRequest("execute_query", nil))
	require.NoError(t, err)

	event := logger.waitForEvent(t)
	assert.False(t, event.Success)
	assert.Equal(t, "Error: query failed", event.ErrorMessage)
}

func TestMCPAuditMiddleware_HandlerError(t *testing.T) {
	logger := newRecordingAuditLogger()

	pc := NewPlatformContext("req-789")
	ctx := WithPlatformContext(context.Background(), pc)

	next := func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		return nil, errors.New("transport broke")
	}

	handler := MCPAuditMiddleware(logger)(next)
	_, err := handler(ctx, "tools/call", newAuditTestRequest("list_databases", nil))
	require.Error(t, err)

	event := logger.waitForEvent(t)
	assert.False(t, event.Success)
	assert.Equal(t, "transport broke", event.ErrorMessage)
}

func TestMCPAuditMiddleware_NoPlatformContext(t *testing.T) {
	logger := newRecordingAuditLogger()

	next := func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		return &mcp.CallToolResult{}, nil
	}

	handler := MCPAuditMiddleware(logger)(next)
	_, err := handler(context.Background(), "tools/call", newAuditTestRequest("list_databases", nil))
	require.NoError(t, err)

	select {
	case <-logger.logged:
		t.Fatal("expected no audit event without platform context")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMCPAuditMiddleware_IgnoresOtherMethods(t *testing.T) {
	logger := newRecordingAuditLogger()

	handler := MCPAuditMiddleware(logger)(
		func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
			return &mcp.ListToolsResult{}, nil
		})

	_, err := handler(context.Background(), "tools/list", newAuditTestRequest("", nil))
	require.NoError(t, err)

	select {
	case <-logger.logged:
		t.Fatal("expected no audit event for non tool-call methods")
	case <-time.After(50 * time.Millisecond):
	}
}
