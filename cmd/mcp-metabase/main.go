// Package main provides the entry point for the mcp-metabase server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	mcpserver "github.com/txn2/mcp-metabase/internal/server"
	httpauth "github.com/txn2/mcp-metabase/pkg/http"
	"github.com/txn2/mcp-metabase/pkg/platform"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serverOptions struct {
	configPath  string
	transport   string
	address     string
	showVersion bool
}

func parseFlags() serverOptions {
	opts := serverOptions{}
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.transport, "transport", "", "Transport type: stdio, sse, http")
	flag.StringVar(&opts.address, "address", "", "Listen address for sse and http transports")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return opts
}

func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}

// resolveOptions fills unset flags from the platform config. Explicit
// flags win over config values.
func resolveOptions(p *platform.Platform, opts *serverOptions) {
	if opts.transport == "" {
		opts.transport = p.Config().Server.Transport
	}
	if opts.address == "" {
		opts.address = p.Config().Server.Address
	}
}

func run() error {
	opts := parseFlags()

	if opts.showVersion {
		fmt.Printf("mcp-metabase version %s\n", mcpserver.Version)
		return nil
	}

	ctx := setupSignalHandler()

	p, err := mcpserver.New(opts.configPath)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	resolveOptions(p, &opts)

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("starting platform: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = p.Stop(stopCtx)
	}()

	return startServer(ctx, p, opts)
}

func startServer(ctx context.Context, p *platform.Platform, opts serverOptions) error {
	switch opts.transport {
	case platform.TransportStdio:
		return p.MCPServer().Run(ctx, &mcp.StdioTransport{})
	case platform.TransportSSE, platform.TransportHTTP:
		return serveHTTP(ctx, p, opts)
	default:
		return fmt.Errorf("unknown transport: %s", opts.transport)
	}
}

func serveHTTP(ctx context.Context, p *platform.Platform, opts serverOptions) error {
	server := p.MCPServer()

	var endpoint http.Handler
	if opts.transport == platform.TransportSSE {
		endpoint = mcp.NewSSEHandler(func(*http.Request) *mcp.Server { return server }, nil)
	} else {
		endpoint = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", p.Health().LivenessHandler())
	mux.HandleFunc("/readyz", p.Health().ReadinessHandler())
	mux.Handle("/", corsMiddleware(authGateway(p)(endpoint)))

	httpServer := &http.Server{
		Addr:              opts.address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("serving MCP over HTTP",
		"transport", opts.transport,
		"address", opts.address,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down HTTP server: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	}
}

// authGateway selects the token-extraction middleware for the MCP
// endpoint. With API keys enabled the token is required up front;
// otherwise it is passed through for the protocol middleware to judge.
func authGateway(p *platform.Platform) func(http.Handler) http.Handler {
	cfg := p.Config()
	if cfg.Auth.APIKeys.Enabled && !cfg.Auth.AllowAnonymous {
		return httpauth.RequireAuth()
	}
	return httpauth.OptionalAuth()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			"Authorization, Content-Type, Mcp-Session-Id, Mcp-Protocol-Version, X-API-Key, Last-Event-ID")
		w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
