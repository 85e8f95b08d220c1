// Package middleware provides MCP protocol-level middleware for
// authentication, authorization, and audit logging.
package middleware

import (
	"context"
	"time"
)

// contextKey is a private type for context keys.
type contextKey int

const (
	platformContextKey contextKey = iota
	tokenContextKey
)

// PlatformContext holds request-scoped state shared between middleware.
type PlatformContext struct {
	// Request identification
	RequestID string
	StartTime time.Time

	// User information
	UserID     string
	UserEmail  string
	UserClaims map[string]any
	Roles      []string

	// Tool information
	ToolName    string
	ToolkitKind string
	ToolkitName string
	Connection  string

	// Authorization
	Authorized bool
	AuthzError string

	// Transport metadata ("stdio", "sse", "http")
	Transport string
}

// NewPlatformContext creates a new platform context.
func NewPlatformContext(requestID string) *PlatformContext {
	return &PlatformContext{
		RequestID:  requestID,
		StartTime:  time.Now(),
		UserClaims: make(map[string]any),
	}
}

// WithPlatformContext adds platform context to the context.
func WithPlatformContext(ctx context.Context, pc *PlatformContext) context.Context {
	return context.WithValue(ctx, platformContextKey, pc)
}

// GetPlatformContext retrieves platform context from the context.
// Returns nil if no platform context is present.
func GetPlatformContext(ctx context.Context) *PlatformContext {
	if pc, ok := ctx.Value(platformContextKey).(*PlatformContext); ok {
		return pc
	}
	return nil
}

// WithToken adds an authentication token to the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// GetToken retrieves an authentication token from the context.
func GetToken(ctx context.Context) string {
	if token, ok := ctx.Value(tokenContextKey).(string); ok {
		return token
	}
	return ""
}
