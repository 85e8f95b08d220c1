package middleware

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolkitLookup provides toolkit metadata for a given tool name.
type ToolkitLookup interface {
	// GetToolkitForTool returns toolkit info (kind, name, connection) for a tool.
	// Returns found=false if the tool is not found in any registered toolkit.
	GetToolkitForTool(toolName string) (kind, name, connection string, found bool)
}

// MCPToolCallMiddleware creates MCP protocol-level middleware that intercepts
// tools/call requests and enforces authentication and authorization.
//
// For tools/call requests, it:
//  1. Extracts the tool name from the request
//  2. Creates a PlatformContext with the tool information
//  3. Runs authentication to identify the user
//  4. Runs authorization to check if the user can access the tool
//  5. Either proceeds with the call or returns an access denied error
func MCPToolCallMiddleware(authenticator Authenticator, authorizer Authorizer) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			// Only intercept tools/call requests
			if method != "tools/call" {
				return next(ctx, method, req)
			}

			toolName, err := extractToolName(req)
			if err != nil {
				return createErrorResult(fmt.Sprintf("invalid request: %v", err)), nil
			}

			pc := NewPlatformContext(uuid.NewString())
			pc.ToolName = toolName
			ctx = WithPlatformContext(ctx, pc)

			userInfo, err := authenticator.Authenticate(ctx)
			if err != nil {
				return createErrorResult("authentication failed: " + err.Error()), nil
			}

			if userInfo != nil {
				pc.UserID = userInfo.UserID
				pc.UserEmail = userInfo.Email
				pc.UserClaims = userInfo.Claims
				pc.Roles = userInfo.Roles
			}

			authorized, reason := authorizer.IsAuthorized(ctx, pc.UserID, pc.Roles, toolName)
			pc.Authorized = authorized
			if !authorized {
				pc.AuthzError = reason
				return createErrorResult("not authorized: " + reason), nil
			}

			return next(ctx, method, req)
		}
	}
}

// MCPToolkitInfoMiddleware annotates the PlatformContext with toolkit
// metadata for the called tool, for downstream audit logging.
func MCPToolkitInfoMiddleware(lookup ToolkitLookup) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != "tools/call" {
				return next(ctx, method, req)
			}

			pc := GetPlatformContext(ctx)
			if pc != nil && pc.ToolName != "" {
				if kind, name, connection, found := lookup.GetToolkitForTool(pc.ToolName); found {
					pc.ToolkitKind = kind
					pc.ToolkitName = name
					pc.Connection = connection
				}
			}

			return next(ctx, method, req)
		}
	}
}

// extractToolName extracts the tool name from a tools/call request.
func extractToolName(req mcp.Request) (string, error) {
	params := req.GetParams()
	if params == nil {
		return "", fmt.Errorf("missing params")
	}

	callParams, ok := params.(*mcp.CallToolParamsRaw)
	if !ok {
		return "", fmt.Errorf("unexpected params type: %T", params)
	}

	// Type assertion can succeed with a nil pointer
	if callParams == nil {
		return "", fmt.Errorf("missing params")
	}

	if callParams.Name == "" {
		return "", fmt.Errorf("missing tool name")
	}

	return callParams.Name, nil
}

// createErrorResult creates an MCP result for an authorization error.
func createErrorResult(errMsg string) mcp.Result {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: errMsg},
		},
	}
}
