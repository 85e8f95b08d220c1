// Package metabase provides an HTTP client for the Metabase REST API.
package metabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// defaultTimeout is the default HTTP timeout for Metabase requests.
const defaultTimeout = 30 * time.Second

// AuthMethod identifies how the client authenticates to Metabase.
type AuthMethod string

const (
	// AuthMethodAPIKey authenticates with the X-API-KEY header.
	AuthMethodAPIKey AuthMethod = "api_key"

	// AuthMethodSession authenticates with a session token obtained from
	// POST /api/session using username/password credentials.
	AuthMethodSession AuthMethod = "session"
)

// Config holds Metabase client configuration.
type Config struct {
	// URL is the Metabase base URL (e.g. https://metabase.example.com).
	URL string

	// APIKey authenticates via X-API-KEY. Takes precedence over
	// username/password when set.
	APIKey string

	// Username and Password authenticate via session tokens.
	Username string
	Password string

	// Timeout is the HTTP request timeout. Defaults to 30s.
	Timeout time.Duration
}

// APIError is returned when Metabase responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("metabase API request failed with status %d: %s %s: %s",
		e.StatusCode, e.Method, e.Path, e.Body)
}

// Client is an authenticated HTTP client for the Metabase REST API.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	username   string
	password   string
	authMethod AuthMethod
	httpClient *http.Client

	mu           sync.Mutex
	sessionToken string
}

// New creates a new Metabase client.
func New(cfg Config) (*Client, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	authMethod := AuthMethodSession
	if cfg.APIKey != "" {
		authMethod = AuthMethodAPIKey
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		username:   cfg.Username,
		password:   cfg.Password,
		authMethod: authMethod,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// validateConfig validates the required configuration fields.
func validateConfig(cfg Config) error {
	if cfg.URL == "" {
		return fmt.Errorf("metabase url is required")
	}
	if cfg.APIKey == "" && (cfg.Username == "" || cfg.Password == "") {
		return fmt.Errorf("either api key or both username and password are required")
	}
	return nil
}

// AuthMethod returns the authentication method in use.
func (c *Client) AuthMethod() AuthMethod {
	return c.authMethod
}

// BaseURL returns the normalized Metabase base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// sessionResponse is the body returned by POST /api/session.
type sessionResponse struct {
	ID string `json:"id"`
}

// login obtains a session token from POST /api/session and caches it.
// Callers must hold c.mu.
func (c *Client) login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return fmt.Errorf("encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/session", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("authenticating to metabase: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodPost,
			Path:       "/session",
			Body:       string(respBody),
		}
	}

	var session sessionResponse
	if err := json.Unmarshal(respBody, &session); err != nil {
		return fmt.Errorf("decoding session response: %w", err)
	}
	if session.ID == "" {
		return fmt.Errorf("metabase session response missing token")
	}

	c.sessionToken = session.ID
	return nil
}

// token returns the credential for the auth header, obtaining a session
// token on first use for session auth.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.authMethod == AuthMethodAPIKey {
		return c.apiKey, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionToken == "" {
		if err := c.login(ctx); err != nil {
			return "", err
		}
	}
	return c.sessionToken, nil
}

// invalidateSession discards a cached session token so the next request
// re-authenticates.
func (c *Client) invalidateSession(stale string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionToken == stale {
		c.sessionToken = ""
	}
}

// Do performs an authenticated request against <base>/api<path>. A non-nil
// body is JSON-encoded; a non-nil out receives the decoded JSON response.
// When session auth returns 401 the client re-authenticates once and
// retries the request.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	raw, err := c.DoRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// DoRaw performs an authenticated request and returns the raw JSON body.
func (c *Client) DoRaw(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := c.doOnce(ctx, method, path, body, token)

	// A stale session token surfaces as a 401. Re-authenticate once and retry.
	var apiErr *APIError
	if err != nil && c.authMethod == AuthMethodSession &&
		errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		c.invalidateSession(token)
		token, err = c.token(ctx)
		if err != nil {
			return nil, err
		}
		raw, err = c.doOnce(ctx, method, path, body, token)
	}

	return raw, err
}

// doOnce performs a single authenticated request.
func (c *Client) doOnce(ctx context.Context, method, path string, body any, token string) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api"+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating %s %s request: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	switch c.authMethod {
	case AuthMethodAPIKey:
		req.Header.Set("X-API-KEY", token)
	case AuthMethodSession:
		req.Header.Set("X-Metabase-Session", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       string(respBody),
		}
	}

	return respBody, nil
}

// Get performs an authenticated GET request.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post performs an authenticated POST request.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Close releases idle connections held by the underlying HTTP client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
