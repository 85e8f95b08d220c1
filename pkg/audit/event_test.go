package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	event := NewEvent("list_databases")

	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, "list_databases", event.ToolName)
}

func TestEvent_Builders(t *testing.T) {
	event := NewEvent("execute_query").
		WithRequestID("req-1").
		WithUser("user-1", "user@example.com").
		WithToolkit("metabase", "primary").
		WithConnection("primary").
		WithParameters(map[string]any{"query": "SELECT 1"}).
		WithResult(false, "query failed", 42)

	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, "user-1", event.UserID)
	assert.Equal(t, "user@example.com", event.UserEmail)
	assert.Equal(t, "metabase", event.ToolkitKind)
	assert.Equal(t, "primary", event.ToolkitName)
	assert.Equal(t, "primary", event.Connection)
	assert.Equal(t, "SELECT 1", event.Parameters["query"])
	assert.False(t, event.Success)
	assert.Equal(t, "query failed", event.ErrorMessage)
	assert.Equal(t, int64(42), event.DurationMS)
}

func TestGenerateEventID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := generateEventID()
		require.False(t, seen[id], "duplicate event ID %s", id)
		seen[id] = true
	}
}

func TestSanitizeParameters(t *testing.T) {
	params := map[string]any{
		"query":    "SELECT 1",
		"password": "hunter2",
		"api_key":  "mb_secret",
		"token":    "abc",
	}

	sanitized := SanitizeParameters(params)

	assert.Equal(t, "SELECT 1", sanitized["query"])
	assert.Equal(t, "[REDACTED]", sanitized["password"])
	assert.Equal(t, "[REDACTED]", sanitized["api_key"])
	assert.Equal(t, "[REDACTED]", sanitized["token"])

	// Original map is untouched
	assert.Equal(t, "hunter2", params["password"])
}

func TestSanitizeParameters_Nil(t *testing.T) {
	assert.Nil(t, SanitizeParameters(nil))
}
