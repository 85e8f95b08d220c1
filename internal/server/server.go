// Package server provides a factory for creating the Metabase MCP platform.
package server

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/txn2/mcp-metabase/pkg/database/migrate"
	"github.com/txn2/mcp-metabase/pkg/platform"
)

// Version is set at build time.
var Version = "dev"

// New creates a platform from a config file, or from environment
// variables when configPath is empty.
func New(configPath string) (*platform.Platform, error) {
	var cfg *platform.Config
	var err error

	if configPath != "" {
		cfg, err = platform.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg, err = ConfigFromEnv()
		if err != nil {
			return nil, err
		}
	}

	opts := []platform.Option{platform.WithConfig(cfg)}

	if cfg.Database.DSN != "" {
		db, err := openDatabase(cfg)
		if err != nil {
			return nil, fmt.Errorf("opening audit database: %w", err)
		}
		opts = append(opts, platform.WithDB(db))
	}

	return platform.New(opts...)
}

// ConfigFromEnv builds a single-toolkit configuration from METABASE_*
// environment variables.
func ConfigFromEnv() (*platform.Config, error) {
	baseURL := os.Getenv("METABASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("METABASE_URL is required")
	}

	toolkit := map[string]any{"url": baseURL}
	if apiKey := os.Getenv("METABASE_API_KEY"); apiKey != "" {
		toolkit["api_key"] = apiKey
	}
	if email := os.Getenv("METABASE_USER_EMAIL"); email != "" {
		toolkit["username"] = email
	}
	if password := os.Getenv("METABASE_PASSWORD"); password != "" {
		toolkit["password"] = password
	}

	cfg := &platform.Config{
		Toolkits: map[string]any{"metabase": toolkit},
	}
	cfg.Server.Version = Version
	platform.ApplyDefaults(cfg)

	return cfg, nil
}

func openDatabase(cfg *platform.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	if err := migrate.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}
