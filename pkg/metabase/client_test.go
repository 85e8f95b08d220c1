package metabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey   = "mb_test_key_123"
	testUsername = "analyst@example.com"
	testPassword = "hunter2hunter2"
	testSession  = "sess-token-abc"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "api key", cfg: Config{URL: "http://mb", APIKey: testAPIKey}},
		{name: "session credentials", cfg: Config{URL: "http://mb", Username: testUsername, Password: testPassword}},
		{name: "missing url", cfg: Config{APIKey: testAPIKey}, wantErr: true},
		{name: "missing password", cfg: Config{URL: "http://mb", Username: testUsername}, wantErr: true},
		{name: "missing username", cfg: Config{URL: "http://mb", Password: testPassword}, wantErr: true},
		{name: "no credentials", cfg: Config{URL: "http://mb"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, client)
		})
	}
}

func TestNew_AuthMethodSelection(t *testing.T) {
	client, err := New(Config{URL: "http://mb", APIKey: testAPIKey, Username: testUsername, Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, AuthMethodAPIKey, client.AuthMethod(), "api key takes precedence")

	client, err = New(Config{URL: "http://mb", Username: testUsername, Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, AuthMethodSession, client.AuthMethod())
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	client, err := New(Config{URL: "http://mb/", APIKey: testAPIKey})
	require.NoError(t, err)
	assert.Equal(t, "http://mb", client.BaseURL())
}

func TestDo_APIKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testAPIKey, r.Header.Get("X-API-KEY"))
		assert.Empty(t, r.Header.Get("X-Metabase-Session"))
		assert.Equal(t, "/api/database", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"id":1,"name":"Sample"}]}`))
	}))
	defer srv.Close()

	client, err := New(Config{URL: srv.URL, APIKey: testAPIKey})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, client.Get(context.Background(), "/database", &out))
	assert.Contains(t, out, "data")
}

func TestDo_SessionLogin(t *testing.T) {
	var logins atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/session" {
			logins.Add(1)
			var creds map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, testUsername, creds["username"])
			assert.Equal(t, testPassword, creds["password"])
			_, _ = w.Write([]byte(`{"id":"` + testSession + `"}`))
			return
		}
		assert.Equal(t, testSession, r.Header.Get("X-Metabase-Session"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, err := New(Config{URL: srv.URL, Username: testUsername, Password: testPassword})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Get(ctx, "/card", nil))
	require.NoError(t, client.Get(ctx, "/collection", nil))
	assert.Equal(t, int32(1), logins.Load(), "session token is cached")
}

func TestDo_SessionReauthOn401(t *testing.T) {
	var logins atomic.Int32
	tokens := []string{"stale-token", "fresh-token"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/session" {
			n := logins.Add(1)
			_, _ = w.Write([]byte(`{"id":"` + tokens[n-1] + `"}`))
			return
		}
		if r.Header.Get("X-Metabase-Session") == "stale-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Unauthenticated"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client, err := New(Config{URL: srv.URL, Username: testUsername, Password: testPassword})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, client.Get(context.Background(), "/database", &out))
	assert.Equal(t, int32(2), logins.Load(), "re-authenticates once on 401")
	assert.Equal(t, true, out["ok"])
}

func TestDo_APIKey401NotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := New(Config{URL: srv.URL, APIKey: testAPIKey})
	require.NoError(t, err)

	err = client.Get(context.Background(), "/database", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_ErrorPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Invalid query"}`))
	}))
	defer srv.Close()

	client, err := New(Config{URL: srv.URL, APIKey: testAPIKey})
	require.NoError(t, err)

	err = client.Post(context.Background(), "/dataset", map[string]any{"database": 1}, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Invalid query")
	assert.Contains(t, err.Error(), "status 400")
}

func TestDo_PostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, float64(7), body["database"])
		_, _ = w.Write([]byte(`{"row_count":0}`))
	}))
	defer srv.Close()

	client, err := New(Config{URL: srv.URL, APIKey: testAPIKey})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, client.Post(context.Background(), "/dataset", map[string]any{"database": 7}, &out))
	assert.Equal(t, float64(0), out["row_count"])
}

func TestDo_LoginFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/session" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors":{"password":"did not match stored password"}}`))
			return
		}
		t.Error("request should not proceed past failed login")
	}))
	defer srv.Close()

	client, err := New(Config{URL: srv.URL, Username: testUsername, Password: "wrong"})
	require.NoError(t, err)

	err = client.Get(context.Background(), "/database", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClose(t *testing.T) {
	client, err := New(Config{URL: "http://mb", APIKey: testAPIKey})
	require.NoError(t, err)
	require.NoError(t, client.Close())
}
