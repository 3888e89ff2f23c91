package transport_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/osonify-auth/internal/errors"
	"github.com/jrsteele09/osonify-auth/internal/utils"
	"github.com/jrsteele09/osonify-auth/metrics"
	"github.com/jrsteele09/osonify-auth/transport"
	"github.com/stretchr/testify/require"
)

type captured struct {
	method string
	path   string
	header http.Header
	body   string
}

func setupTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, chan captured) {
	t.Helper()
	calls := make(chan captured, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		calls <- captured{method: r.Method, path: r.URL.RequestURI(), header: r.Header.Clone(), body: string(data)}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_URL(t *testing.T) {
	c := transport.New("https://api.example.com/", transport.ModeInteractive)
	require.Equal(t, "https://api.example.com", c.BaseURL())
	require.Equal(t, "https://api.example.com/api/v1/users/me", c.URL("/api/v1/users/me"))
	require.Equal(t, "https://api.example.com/health", c.URL("health"))
	require.Equal(t, "http://other.example.com/x", c.URL("http://other.example.com/x"))
	require.Equal(t, "https://other.example.com/x", c.URL("https://other.example.com/x"))
}

func TestClient_Bodies(t *testing.T) {
	srv, calls := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := transport.New(srv.URL, transport.ModeInteractive)
	ctx := context.Background()

	tests := []struct {
		name        string
		body        any
		wantBody    string
		contentType string
	}{
		{name: "nil", body: nil, wantBody: ""},
		{name: "json object", body: map[string]int{"a": 1}, wantBody: "{\"a\":1}", contentType: "application/json"},
		{name: "string", body: "plain", wantBody: "plain"},
		{name: "bytes", body: []byte("raw"), wantBody: "raw"},
		{name: "reader", body: strings.NewReader("stream"), wantBody: "stream"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := c.Do(ctx, transport.Request{Path: "/x", Method: http.MethodPost, Body: tc.body})
			require.NoError(t, err)
			require.True(t, resp.NoContent)

			got := <-calls
			require.Equal(t, tc.wantBody, got.body)
			require.Equal(t, tc.contentType, got.header.Get("Content-Type"))
			require.Equal(t, "application/json", got.header.Get("Accept"))
			require.NotEmpty(t, got.header.Get(transport.RequestIDHeader))
		})
	}

	t.Run("multipart sets its own boundary", func(t *testing.T) {
		_, err := c.Do(ctx, transport.Request{Path: "/upload", Method: http.MethodPost, Body: &transport.MultipartBody{
			Fields: map[string]string{"title": "deck"},
			Files:  []transport.MultipartFile{{Field: "file", FileName: "a.txt", Content: strings.NewReader("hello")}},
		}})
		require.NoError(t, err)
		got := <-calls
		require.True(t, strings.HasPrefix(got.header.Get("Content-Type"), "multipart/form-data; boundary="))
		require.Contains(t, got.body, "hello")
	})

	t.Run("explicit content type wins", func(t *testing.T) {
		req := transport.Request{Path: "/x", Method: http.MethodPost, Body: map[string]string{}}
		_, err := c.Do(ctx, req.WithHeader("Content-Type", "application/vnd.custom+json"))
		require.NoError(t, err)
		got := <-calls
		require.Equal(t, "application/vnd.custom+json", got.header.Get("Content-Type"))
	})

	t.Run("unencodable body", func(t *testing.T) {
		_, err := c.Do(ctx, transport.Request{Path: "/x", Method: http.MethodPost, Body: make(chan int)})
		require.Error(t, err)
		require.True(t, errors.Is(err, errors.ErrUnsupportedBodyValue))
		require.True(t, transport.IsNetworkFailure(err))
		require.Len(t, calls, 0)
	})
}

func TestClient_Responses(t *testing.T) {
	srv, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			writeJSON(w, http.StatusOK, map[string]string{"id": "u1"})
		case "/text":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("pong"))
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		}
	})
	c := transport.New(srv.URL, transport.ModeInteractive)
	ctx := context.Background()

	resp, err := c.Do(ctx, transport.Request{Path: "/json"})
	require.NoError(t, err)
	require.True(t, resp.JSON)
	var user struct{ ID string }
	require.NoError(t, resp.Decode(&user))
	require.Equal(t, "u1", user.ID)

	resp, err = c.Do(ctx, transport.Request{Path: "/text"})
	require.NoError(t, err)
	require.False(t, resp.JSON)
	require.Equal(t, "pong", resp.Text())
	var s string
	require.NoError(t, resp.Decode(&s))
	require.Equal(t, "pong", s)
	require.Error(t, resp.Decode(&user))

	resp, err = c.Do(ctx, transport.Request{Path: "/empty"})
	require.NoError(t, err)
	require.True(t, resp.NoContent)
	require.Empty(t, resp.Body)
	require.NoError(t, resp.Decode(&user))
}

func TestClient_Errors(t *testing.T) {
	srv, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/message":
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad plan"})
		case "/detail":
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "field required"}}})
		case "/text":
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		case "/bare":
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	c := transport.New(srv.URL, transport.ModeInteractive)
	ctx := context.Background()

	tests := []struct {
		path    string
		status  int
		message string
		check   func(error) bool
	}{
		{path: "/message", status: 400, message: "bad plan", check: transport.IsValidation},
		{path: "/detail", status: 422, message: `[{"msg":"field required"}]`, check: transport.IsValidation},
		{path: "/text", status: 502, message: "upstream down", check: transport.IsServerFailure},
		{path: "/bare", status: 401, message: "Unauthorized", check: transport.IsUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			_, err := c.Do(ctx, transport.Request{Path: tc.path, Method: http.MethodPut})
			var te *transport.TransportError
			require.True(t, errors.As(err, &te))
			require.Equal(t, tc.status, te.Status)
			require.Equal(t, tc.message, te.Message)
			require.Equal(t, http.MethodPut, te.Method)
			require.Equal(t, srv.URL+tc.path, te.Path)
			require.True(t, tc.check(err))
		})
	}

	t.Run("network failure is status 0", func(t *testing.T) {
		dead := transport.New("http://127.0.0.1:1", transport.ModeInteractive)
		_, err := dead.Do(ctx, transport.Request{Path: "/x"})
		require.True(t, transport.IsNetworkFailure(err))
		require.False(t, transport.IsUnauthorized(err))
	})
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusNoContent)
	})
	defer close(release)

	t.Run("interactive aborts with 408", func(t *testing.T) {
		c := transport.New(srv.URL, transport.ModeInteractive, transport.WithTimeout(50*time.Millisecond))
		_, err := c.Do(context.Background(), transport.Request{Path: "/slow"})
		var te *transport.TransportError
		require.True(t, errors.As(err, &te))
		require.Equal(t, http.StatusRequestTimeout, te.Status)
		require.Equal(t, transport.TimeoutMessage, te.Message)
		require.True(t, transport.IsTimeout(err))
		require.False(t, transport.IsUnauthorized(err))
	})

	t.Run("per request override", func(t *testing.T) {
		c := transport.New(srv.URL, transport.ModeInteractive, transport.WithTimeout(time.Hour))
		_, err := c.Do(context.Background(), transport.Request{Path: "/slow", Timeout: 50 * time.Millisecond})
		require.True(t, transport.IsTimeout(err))
	})

	t.Run("server mode has no client timeout", func(t *testing.T) {
		c := transport.New(srv.URL, transport.ModeServer, transport.WithTimeout(10*time.Millisecond))
		done := make(chan error, 1)
		go func() {
			_, err := c.Do(context.Background(), transport.Request{Path: "/slow", Cache: transport.CacheNoStore})
			done <- err
		}()
		select {
		case err := <-done:
			t.Fatalf("server mode request returned early: %v", err)
		case <-time.After(150 * time.Millisecond):
		}
		release <- struct{}{}
		require.NoError(t, <-done)
	})
}

func TestClient_Cache(t *testing.T) {
	var hits atomic.Int32
	srv, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"auth": r.Header.Get("Authorization")})
	})
	ctx := context.Background()

	t.Run("server mode caches GET by credentials", func(t *testing.T) {
		hits.Store(0)
		c := transport.New(srv.URL, transport.ModeServer)
		alice := transport.Request{Path: "/users/me"}.WithHeader("Authorization", "Bearer alice")
		bob := transport.Request{Path: "/users/me"}.WithHeader("Authorization", "Bearer bob")

		first, err := c.Do(ctx, alice)
		require.NoError(t, err)
		require.False(t, first.Cached)
		second, err := c.Do(ctx, alice)
		require.NoError(t, err)
		require.True(t, second.Cached)
		third, err := c.Do(ctx, bob)
		require.NoError(t, err)
		require.False(t, third.Cached)
		require.Contains(t, third.Text(), "bob")
		require.Equal(t, int32(2), hits.Load())

		c.PurgeCache()
		_, err = c.Do(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, int32(3), hits.Load())
	})

	t.Run("cached entries expire", func(t *testing.T) {
		hits.Store(0)
		c := transport.New(srv.URL, transport.ModeServer, transport.WithCache(8, 50*time.Millisecond))
		_, err := c.Do(ctx, transport.Request{Path: "/users/me"})
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			resp, err := c.Do(ctx, transport.Request{Path: "/users/me"})
			return err == nil && !resp.Cached
		}, 2*time.Second, 20*time.Millisecond)
		require.GreaterOrEqual(t, hits.Load(), int32(2))
	})

	t.Run("interactive mode does not cache", func(t *testing.T) {
		hits.Store(0)
		c := transport.New(srv.URL, transport.ModeInteractive)
		for i := 0; i < 2; i++ {
			_, err := c.Do(ctx, transport.Request{Path: "/users/me"})
			require.NoError(t, err)
		}
		require.Equal(t, int32(2), hits.Load())
	})

	t.Run("per request override and non GET", func(t *testing.T) {
		hits.Store(0)
		c := transport.New(srv.URL, transport.ModeServer)
		for i := 0; i < 2; i++ {
			_, err := c.Do(ctx, transport.Request{Path: "/a", Cache: transport.CacheNoStore})
			require.NoError(t, err)
			_, err = c.Do(ctx, transport.Request{Path: "/b", Method: http.MethodPost})
			require.NoError(t, err)
		}
		require.Equal(t, int32(4), hits.Load())
	})
}

func TestClient_ForwardsIncomingCookies(t *testing.T) {
	srv, calls := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := transport.WithIncomingCookies(context.Background(), "access_token=a1; theme=dark")

	server := transport.New(srv.URL, transport.ModeServer)
	_, err := server.Do(ctx, transport.Request{Path: "/x", Cache: transport.CacheNoStore})
	require.NoError(t, err)
	require.Equal(t, "access_token=a1; theme=dark", (<-calls).header.Get("Cookie"))

	_, err = server.Do(ctx, transport.Request{Path: "/x", Cache: transport.CacheNoStore}.WithHeader("Cookie", "mine=1"))
	require.NoError(t, err)
	require.Equal(t, "mine=1", (<-calls).header.Get("Cookie"))

	interactive := transport.New(srv.URL, transport.ModeInteractive)
	_, err = interactive.Do(ctx, transport.Request{Path: "/x"})
	require.NoError(t, err)
	require.Empty(t, (<-calls).header.Get("Cookie"))
}

func TestClient_Metrics(t *testing.T) {
	srv, _ := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	m := metrics.New()
	c := transport.New(srv.URL, transport.ModeInteractive, transport.WithMetrics(m))
	_, err := c.Do(context.Background(), transport.Request{Path: "/x"})
	require.Error(t, err)
	require.Equal(t, 1.0, m.RequestCount(http.MethodGet, 401))
}

func TestRequest_AuthRequired(t *testing.T) {
	require.True(t, transport.Request{}.AuthRequired())
	require.True(t, transport.Request{RequireAuth: utils.Ptr(true)}.AuthRequired())
	require.False(t, transport.Request{RequireAuth: utils.Ptr(false)}.AuthRequired())
}
