package auth

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/txn2/mcp-metabase/pkg/middleware"
)

// ToolRules defines tool access rules. Deny rules are checked first, then
// allow rules. An empty allow list permits every tool not denied.
type ToolRules struct {
	Allow []string `json:"allow" yaml:"allow"`
	Deny  []string `json:"deny" yaml:"deny"`
}

// RuleAuthorizer implements middleware.Authorizer using glob-style tool rules.
type RuleAuthorizer struct {
	rules ToolRules
}

// NewRuleAuthorizer creates an authorizer from tool rules.
func NewRuleAuthorizer(rules ToolRules) *RuleAuthorizer {
	return &RuleAuthorizer{rules: rules}
}

// IsAuthorized checks the tool name against the deny and allow rules.
func (a *RuleAuthorizer) IsAuthorized(_ context.Context, _ string, _ []string, toolName string) (authorized bool, reason string) {
	for _, pattern := range a.rules.Deny {
		if matchPattern(pattern, toolName) {
			return false, fmt.Sprintf("tool %s is denied", toolName)
		}
	}

	if len(a.rules.Allow) == 0 {
		return true, ""
	}

	for _, pattern := range a.rules.Allow {
		if matchPattern(pattern, toolName) {
			return true, ""
		}
	}

	return false, fmt.Sprintf("tool %s is not in the allow list", toolName)
}

// matchPattern checks if a tool name matches a glob-style pattern.
func matchPattern(pattern, name string) bool {
	matched, err := filepath.Match(pattern, name)
	if err != nil {
		return false
	}
	return matched
}

// Verify interface compliance.
var _ middleware.Authorizer = (*RuleAuthorizer)(nil)
