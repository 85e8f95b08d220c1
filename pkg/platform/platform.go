package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-metabase/pkg/audit"
	auditpostgres "github.com/txn2/mcp-metabase/pkg/audit/postgres"
	"github.com/txn2/mcp-metabase/pkg/auth"
	"github.com/txn2/mcp-metabase/pkg/health"
	mbclient "github.com/txn2/mcp-metabase/pkg/metabase"
	"github.com/txn2/mcp-metabase/pkg/middleware"
	"github.com/txn2/mcp-metabase/pkg/registry"
	mbtoolkit "github.com/txn2/mcp-metabase/pkg/toolkits/metabase"
)

// auditCleanupInterval is how often expired audit logs are purged.
const auditCleanupInterval = 6 * time.Hour

// Platform wires the toolkit registry, auth, audit, and the MCP server.
type Platform struct {
	config *Config

	mcpServer *mcp.Server
	lifecycle *Lifecycle
	health    *health.Checker

	toolkitRegistry *registry.Registry

	authenticator middleware.Authenticator
	authorizer    middleware.Authorizer
	auditLogger   middleware.AuditLogger
}

// New creates a new platform instance.
func New(opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := options.Config.Validate(); err != nil {
		return nil, err
	}

	p := &Platform{
		config:    options.Config,
		lifecycle: NewLifecycle(),
		health:    health.NewChecker(),
	}

	if options.DB != nil {
		p.lifecycle.RegisterCloser(options.DB)
	}

	if err := p.initRegistry(options); err != nil {
		return nil, fmt.Errorf("initializing toolkits: %w", err)
	}
	if err := p.initAuth(options); err != nil {
		return nil, fmt.Errorf("initializing auth: %w", err)
	}
	p.initAudit(options)
	p.finalizeSetup()

	return p, nil
}

// initRegistry creates the toolkit registry and instantiates configured toolkits.
func (p *Platform) initRegistry(opts *Options) error {
	if opts.ToolkitRegistry != nil {
		p.toolkitRegistry = opts.ToolkitRegistry
		return nil
	}

	p.toolkitRegistry = registry.NewRegistry()
	p.toolkitRegistry.RegisterFactory("metabase", func(name string, config map[string]any) (registry.Toolkit, error) {
		cfg, err := mbtoolkit.ParseConfig(config)
		if err != nil {
			return nil, err
		}
		return mbtoolkit.New(name, cfg)
	})

	for kind, raw := range p.config.Toolkits {
		config, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("toolkit %s config must be a mapping", kind)
		}
		if err := p.toolkitRegistry.CreateAndRegister(registry.ToolkitConfig{
			Kind:   kind,
			Name:   kind,
			Config: config,
		}); err != nil {
			return err
		}
	}

	p.lifecycle.RegisterCloser(p.toolkitRegistry)
	return nil
}

// initAuth creates the authenticator and authorizer from config.
func (p *Platform) initAuth(opts *Options) error {
	if opts.Authenticator != nil {
		p.authenticator = opts.Authenticator
	} else if p.config.Auth.APIKeys.Enabled {
		keys := make([]auth.APIKey, 0, len(p.config.Auth.APIKeys.Keys))
		for _, k := range p.config.Auth.APIKeys.Keys {
			keys = append(keys, auth.APIKey{Key: k.Key, Name: k.Name, Roles: k.Roles})
		}
		p.authenticator = auth.NewChainedAuthenticator(
			auth.ChainedAuthConfig{AllowAnonymous: p.config.Auth.AllowAnonymous},
			auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{Keys: keys}),
		)
	} else {
		p.authenticator = &middleware.NoopAuthenticator{}
	}

	if opts.Authorizer != nil {
		p.authorizer = opts.Authorizer
	} else {
		p.authorizer = auth.NewRuleAuthorizer(auth.ToolRules{
			Allow: p.config.Auth.Rules.Allow,
			Deny:  p.config.Auth.Rules.Deny,
		})
	}
	return nil
}

// initAudit creates the audit logger. With a database it logs to PostgreSQL,
// otherwise to slog.
func (p *Platform) initAudit(opts *Options) {
	if opts.AuditLogger != nil {
		p.auditLogger = opts.AuditLogger
		return
	}

	if !p.config.Audit.Enabled {
		p.auditLogger = &middleware.NoopAuditLogger{}
		return
	}

	if opts.DB != nil {
		store := auditpostgres.New(opts.DB, auditpostgres.Config{
			RetentionDays: p.config.Audit.RetentionDays,
		})
		store.StartCleanupRoutine(auditCleanupInterval)
		p.lifecycle.RegisterCloser(store)
		p.auditLogger = middleware.NewAuditStoreAdapter(store)
		return
	}

	p.auditLogger = middleware.NewAuditStoreAdapter(audit.NewSlogLogger(nil))
}

// finalizeSetup builds the MCP server, attaches middleware, and registers
// tools and resources.
func (p *Platform) finalizeSetup() {
	p.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    p.config.Server.Name,
		Version: p.config.Server.Version,
	}, nil)

	// Middleware is added innermost first: the tool-call middleware must be
	// outermost so the platform context it creates is visible to the
	// toolkit-info and audit middleware.
	p.mcpServer.AddReceivingMiddleware(middleware.MCPAuditMiddleware(p.auditLogger))
	p.mcpServer.AddReceivingMiddleware(middleware.MCPToolkitInfoMiddleware(p.toolkitRegistry))
	p.mcpServer.AddReceivingMiddleware(middleware.MCPToolCallMiddleware(p.authenticator, p.authorizer))

	p.toolkitRegistry.RegisterAllTools(p.mcpServer)
	p.registerInfoTool()
	p.registerResourceTemplates()
}

// metabaseClient returns the client of the first registered metabase toolkit.
func (p *Platform) metabaseClient() *mbclient.Client {
	for _, tk := range p.toolkitRegistry.GetByKind("metabase") {
		if mb, ok := tk.(*mbtoolkit.Toolkit); ok {
			return mb.Client()
		}
	}
	return nil
}

// MCPServer returns the underlying MCP server.
func (p *Platform) MCPServer() *mcp.Server {
	return p.mcpServer
}

// Registry returns the toolkit registry.
func (p *Platform) Registry() *registry.Registry {
	return p.toolkitRegistry
}

// Health returns the readiness checker.
func (p *Platform) Health() *health.Checker {
	return p.health
}

// Config returns the server configuration.
func (p *Platform) Config() *Config {
	return p.config
}

// Start runs lifecycle start callbacks and marks the platform ready.
func (p *Platform) Start(ctx context.Context) error {
	if err := p.lifecycle.Start(ctx); err != nil {
		return err
	}
	p.health.SetReady()
	return nil
}

// Stop drains the platform and runs lifecycle stop callbacks in reverse order.
func (p *Platform) Stop(ctx context.Context) error {
	p.health.SetDraining()
	return p.lifecycle.Stop(ctx)
}
