package metabase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// QueryInterceptor inspects SQL before it is sent to Metabase. It may
// rewrite the statement or reject it with an error.
type QueryInterceptor interface {
	Intercept(ctx context.Context, sql string, tool ToolName) (string, error)
}

// ReadOnlyInterceptor blocks write operations when read_only mode is enabled.
// This interceptor detects SQL statements that modify data or schema.
type ReadOnlyInterceptor struct{}

// NewReadOnlyInterceptor creates a new read-only query interceptor.
func NewReadOnlyInterceptor() *ReadOnlyInterceptor {
	return &ReadOnlyInterceptor{}
}

// writeKeywords are SQL keywords that indicate write operations.
// These are matched at the beginning of SQL statements (after stripping comments/whitespace).
var writeKeywords = []string{
	"INSERT",
	"UPDATE",
	"DELETE",
	"DROP",
	"CREATE",
	"ALTER",
	"TRUNCATE",
	"GRANT",
	"REVOKE",
	"MERGE",
	"CALL",
	"EXECUTE",
}

// writePattern matches SQL statements that start with write keywords.
// Handles optional leading whitespace and common comment styles.
var writePattern = regexp.MustCompile(
	`(?i)^\s*(?:--[^\n]*\n\s*|/\*[\s\S]*?\*/\s*)*\s*(` +
		strings.Join(writeKeywords, "|") +
		`)(?:\s|$|;|\()`,
)

// Intercept checks if the query is a write operation and blocks it in read-only mode.
func (r *ReadOnlyInterceptor) Intercept(_ context.Context, sql string, _ ToolName) (string, error) {
	if isWriteQuery(sql) {
		return "", fmt.Errorf("write operations not allowed in read-only mode")
	}
	return sql, nil
}

// isWriteQuery checks if the SQL query is a write operation.
func isWriteQuery(sql string) bool {
	return writePattern.MatchString(strings.TrimSpace(sql))
}

// Verify interface compliance.
var _ QueryInterceptor = (*ReadOnlyInterceptor)(nil)
