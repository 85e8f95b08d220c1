// Package platform provides the main server orchestration.
package platform

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Transport names accepted by ServerConfig.Transport.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// Config holds the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Audit     AuditConfig     `yaml:"audit"`
	Resources ResourcesConfig `yaml:"resources"`
	Toolkits  map[string]any  `yaml:"toolkits"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
	Transport   string `yaml:"transport"` // "stdio", "sse", "http"
	Address     string `yaml:"address"`
}

// AuthConfig configures inbound authentication and authorization.
type AuthConfig struct {
	APIKeys        APIKeyAuthConfig `yaml:"api_keys"`
	AllowAnonymous bool             `yaml:"allow_anonymous"` // default: false
	Rules          ToolRulesDef     `yaml:"rules"`
}

// APIKeyAuthConfig configures API key authentication.
type APIKeyAuthConfig struct {
	Enabled bool        `yaml:"enabled"`
	Keys    []APIKeyDef `yaml:"keys"`
}

// APIKeyDef defines an API key.
type APIKeyDef struct {
	Key   string   `yaml:"key"`
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

// ToolRulesDef defines tool access rules.
type ToolRulesDef struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

// DatabaseConfig configures the audit database connection.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// AuditConfig configures audit logging.
type AuditConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// ResourcesConfig configures MCP resource templates.
type ResourcesConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoadConfig loads configuration from a file.
// The path is expected to come from command line arguments, controlled by
// the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ApplyDefaults applies default values to a programmatically built config.
func ApplyDefaults(cfg *Config) {
	applyDefaults(cfg)
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = "mcp-metabase"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "1.0.0"
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = TransportStdio
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = 90
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	switch c.Server.Transport {
	case TransportStdio, TransportSSE, TransportHTTP:
	default:
		errs = append(errs, fmt.Sprintf("server.transport must be one of stdio, sse, http (got %q)", c.Server.Transport))
	}

	if c.Auth.APIKeys.Enabled && len(c.Auth.APIKeys.Keys) == 0 {
		errs = append(errs, "auth.api_keys.keys is required when API key auth is enabled")
	}

	if len(c.Toolkits) == 0 {
		errs = append(errs, "at least one toolkit must be configured")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
