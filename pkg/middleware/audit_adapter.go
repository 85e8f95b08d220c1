package middleware

import (
	"context"

	"github.com/txn2/mcp-metabase/pkg/audit"
)

// auditStoreAdapter adapts an audit.Logger to the middleware.AuditLogger
// interface, sanitizing parameters before they are persisted.
type auditStoreAdapter struct {
	logger audit.Logger
}

// NewAuditStoreAdapter creates an AuditLogger backed by an audit store.
func NewAuditStoreAdapter(logger audit.Logger) AuditLogger {
	return &auditStoreAdapter{logger: logger}
}

// Log records an audit event by converting from middleware.AuditEvent to
// audit.Event.
func (a *auditStoreAdapter) Log(ctx context.Context, event AuditEvent) error {
	auditEvent := audit.NewEvent(event.ToolName).
		WithRequestID(event.RequestID).
		WithUser(event.UserID, event.UserEmail).
		WithToolkit(event.ToolkitKind, event.ToolkitName).
		WithConnection(event.Connection).
		WithParameters(audit.SanitizeParameters(event.Parameters)).
		WithResult(event.Success, event.ErrorMessage, event.DurationMS)

	// Keep the timestamp captured when the call started
	auditEvent.Timestamp = event.Timestamp

	return a.logger.Log(ctx, *auditEvent)
}
