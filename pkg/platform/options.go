package platform

import (
	"database/sql"

	"github.com/txn2/mcp-metabase/pkg/middleware"
	"github.com/txn2/mcp-metabase/pkg/registry"
)

// Options configures the platform.
type Options struct {
	// Config is the server configuration.
	Config *Config

	// DB is the audit database connection (optional).
	DB *sql.DB

	// Authenticator (optional, will be created from config if not provided).
	Authenticator middleware.Authenticator

	// Authorizer (optional, will be created from config if not provided).
	Authorizer middleware.Authorizer

	// AuditLogger (optional, will be created from config if not provided).
	AuditLogger middleware.AuditLogger

	// ToolkitRegistry (optional, will be created if not provided).
	ToolkitRegistry *registry.Registry
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithDB sets the audit database connection.
func WithDB(db *sql.DB) Option {
	return func(o *Options) {
		o.DB = db
	}
}

// WithAuthenticator sets the authenticator.
func WithAuthenticator(a middleware.Authenticator) Option {
	return func(o *Options) {
		o.Authenticator = a
	}
}

// WithAuthorizer sets the authorizer.
func WithAuthorizer(a middleware.Authorizer) Option {
	return func(o *Options) {
		o.Authorizer = a
	}
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(logger middleware.AuditLogger) Option {
	return func(o *Options) {
		o.AuditLogger = logger
	}
}

// WithToolkitRegistry sets the toolkit registry.
func WithToolkitRegistry(reg *registry.Registry) Option {
	return func(o *Options) {
		o.ToolkitRegistry = reg
	}
}
