package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/osonify-auth/authapi"
	"github.com/jrsteele09/osonify-auth/authapi/backendfake"
	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/internal/config"
	"github.com/jrsteele09/osonify-auth/server"
	"github.com/jrsteele09/osonify-auth/token/cookiestore"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	backend *backendfake.Backend
	server  *server.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	backend := backendfake.New(t)
	t.Setenv("ENV", "test")
	t.Setenv("API_BASE_URL", backend.URL())
	t.Setenv("API_PREFIX", backendfake.Prefix)

	pages := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "page "+r.URL.Path)
	})
	srv, err := server.New(config.New(), server.WithPages(pages))
	require.NoError(t, err)
	return &testFixture{backend: backend, server: srv}
}

type requestOption func(*http.Request)

func withCookie(name, value string) requestOption {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

func withReferer(referer string) requestOption {
	return func(r *http.Request) {
		r.Header.Set("Referer", referer)
	}
}

func withJSON(body string) requestOption {
	return func(r *http.Request) {
		r.Body = io.NopCloser(strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
}

func (f *testFixture) do(method, target string, opts ...requestOption) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, nil)
	for _, opt := range opts {
		opt(r)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, r)
	return rec
}

func cookies(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func userCookie(t *testing.T, user authmodel.UserProfile) string {
	t.Helper()
	data, err := json.Marshal(user)
	require.NoError(t, err)
	return url.QueryEscape(string(data))
}

func TestCallback(t *testing.T) {
	widgetQuery := "?id=42&first_name=Ada&auth_date=1700000000&hash=h"

	t.Run("widget redirect logs in", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.AddTelegram(42, authmodel.AuthResponse{ID: "u42", Token: authmodel.TokenPair{AccessToken: "T1", RefreshToken: "R1"}})
		f.backend.AddUser("T1", authmodel.UserProfile{ID: "u42", FirstName: "Ada"})

		rec := f.do(http.MethodGet, server.RouteAuthCallback+widgetQuery, withReferer("https://app.osonify.ai/ru/login"))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/ru/", rec.Header().Get("Location"))

		c := cookies(rec)
		require.Equal(t, "T1", c[cookiestore.AccessCookieName].Value)
		require.True(t, c[cookiestore.AccessCookieName].HttpOnly)
		require.Equal(t, "R1", c[cookiestore.RefreshCookieName].Value)
		require.Contains(t, c, cookiestore.UserCookieName)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodGet, server.RouteAuthCallback+"?id=42")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "Missing required Telegram data", decode(t, rec)["error"])
		require.Zero(t, f.backend.Count(authapi.TelegramPath))
	})

	t.Run("rejected by backend", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodGet, server.RouteAuthCallback+widgetQuery)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "Authentication failed", decode(t, rec)["error"])
		require.NotContains(t, cookies(rec), cookiestore.AccessCookieName)
	})

	t.Run("client completed login", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodPost, server.RouteAuthCallback,
			withJSON(`{"type":"widget","tokens":{"access_token":"T9","refresh_token":"R9"},"user":{"id":"u9"}}`))
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		require.Equal(t, true, body["success"])
		require.Equal(t, "/en/", body["redirect"])
		require.Equal(t, "T9", cookies(rec)[cookiestore.AccessCookieName].Value)
	})

	t.Run("client login with nested user id", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodPost, server.RouteAuthCallback,
			withJSON(`{"type":"widget","tokens":{"access_token":"T9","refresh_token":"R9"},"user":{"user":{"id":"u9","first_name":"Ann"}}}`))
		require.Equal(t, http.StatusOK, rec.Code)

		raw, err := url.QueryUnescape(cookies(rec)[cookiestore.UserCookieName].Value)
		require.NoError(t, err)
		var user authmodel.UserProfile
		require.NoError(t, json.Unmarshal([]byte(raw), &user))
		require.Equal(t, "u9", user.ID)
		require.Equal(t, "Ann", user.FirstName)
	})
}

func TestTelegramLogin(t *testing.T) {
	t.Run("invalid payload", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodPost, server.RouteAuthTelegram, withJSON(`{"id":42}`))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Equal(t, "Invalid Telegram data", decode(t, rec)["detail"])
	})

	t.Run("returns the login response", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.AddTelegram(42, authmodel.AuthResponse{ID: "u42", Token: authmodel.TokenPair{AccessToken: "T1", RefreshToken: "R1"}})
		f.backend.AddUser("T1", authmodel.UserProfile{ID: "u42"})

		rec := f.do(http.MethodPost, server.RouteAuthTelegram,
			withJSON(`{"id":42,"first_name":"Ada","auth_date":1700000000,"hash":"h"}`))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp authmodel.AuthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "u42", resp.ID)
		require.Equal(t, "T1", resp.Token.AccessToken)
	})
}

func TestWebAppLogin(t *testing.T) {
	t.Run("missing init data", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodPost, server.RouteAuthWebApp)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Equal(t, "init_data is required", decode(t, rec)["detail"])
	})

	t.Run("sets cookies", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.AddWebApp("query_id=1", authmodel.AuthResponse{ID: "u1", Token: authmodel.TokenPair{AccessToken: "T1", RefreshToken: "R1"}})
		f.backend.AddUser("T1", authmodel.UserProfile{ID: "u1"})

		rec := f.do(http.MethodPost, server.RouteAuthWebApp+"?init_data="+url.QueryEscape("query_id=1"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		require.Equal(t, "T1", cookies(rec)[cookiestore.AccessCookieName].Value)
	})

	t.Run("backend failure", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodPost, server.RouteAuthWebApp+"?init_data=forged")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Contains(t, decode(t, rec)["detail"], "Invalid init data")
	})
}

func TestRefresh(t *testing.T) {
	t.Run("no refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodPost, server.RouteAuthRefresh, withReferer("https://app/uz/settings"))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/uz/login", rec.Header().Get("Location"))
		require.Zero(t, f.backend.Count(authapi.RefreshPath))
	})

	t.Run("rotates the pair", func(t *testing.T) {
		f := setupTestFixture(t)
		user := authmodel.UserProfile{ID: "u1", FirstName: "Ada"}
		f.backend.AddRefresh("R1", authmodel.TokenPair{AccessToken: "A2", RefreshToken: "R2"}, &user)

		rec := f.do(http.MethodPost, server.RouteAuthRefresh,
			withCookie(cookiestore.AccessCookieName, "A1"),
			withCookie(cookiestore.RefreshCookieName, "R1"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, true, decode(t, rec)["success"])

		c := cookies(rec)
		require.Equal(t, "A2", c[cookiestore.AccessCookieName].Value)
		require.Equal(t, "R2", c[cookiestore.RefreshCookieName].Value)
		require.Contains(t, c, cookiestore.UserCookieName)
		require.Equal(t, []string{"Bearer R1"}, f.backend.AuthHeaders(authapi.RefreshPath))
		require.Equal(t, []string{"Bearer A2"}, f.backend.AuthHeaders(authapi.ProfilePath))
	})

	t.Run("rejected refresh clears cookies", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodPost, server.RouteAuthRefresh,
			withCookie(cookiestore.AccessCookieName, "A1"),
			withCookie(cookiestore.RefreshCookieName, "stale"))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/en/login", rec.Header().Get("Location"))
		require.Equal(t, -1, cookies(rec)[cookiestore.AccessCookieName].MaxAge)
		require.Equal(t, -1, cookies(rec)[cookiestore.RefreshCookieName].MaxAge)
	})
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	rec := f.do(http.MethodPost, server.RouteAuthLogout,
		withReferer("https://app/ru/"),
		withCookie(cookiestore.AccessCookieName, "A1"),
		withCookie(cookiestore.RefreshCookieName, "R1"))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/ru/login", rec.Header().Get("Location"))
	require.Equal(t, []authmodel.LogoutRequest{{AccessToken: "A1", RefreshToken: "R1"}}, f.backend.Logouts())
	for _, name := range []string{cookiestore.AccessCookieName, cookiestore.RefreshCookieName, cookiestore.UserCookieName} {
		require.Equal(t, -1, cookies(rec)[name].MaxAge, name)
	}
}

func TestCurrentUser(t *testing.T) {
	t.Run("profile cookie fast path", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodGet, server.RouteAuthMe,
			withCookie(cookiestore.AccessCookieName, "A1"),
			withCookie(cookiestore.UserCookieName, userCookie(t, authmodel.UserProfile{ID: "u1", FirstName: "Ada"})))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "Ada", decode(t, rec)["first_name"])
		require.Zero(t, f.backend.Count(authapi.ProfilePath))
	})

	t.Run("fetches and mirrors the profile", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.AddUser("A1", authmodel.UserProfile{ID: "u1", FirstName: "Ada"})
		rec := f.do(http.MethodGet, server.RouteAuthMe, withCookie(cookiestore.AccessCookieName, "A1"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "u1", decode(t, rec)["id"])
		require.Contains(t, cookies(rec), cookiestore.UserCookieName)
	})

	t.Run("refreshes an expired access token", func(t *testing.T) {
		f := setupTestFixture(t)
		user := authmodel.UserProfile{ID: "u1"}
		f.backend.AddRefresh("R1", authmodel.TokenPair{AccessToken: "A2", RefreshToken: "R2"}, &user)

		rec := f.do(http.MethodGet, server.RouteAuthMe,
			withCookie(cookiestore.AccessCookieName, "expired"),
			withCookie(cookiestore.RefreshCookieName, "R1"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "A2", cookies(rec)[cookiestore.AccessCookieName].Value)
		require.Equal(t, []string{"Bearer expired", "Bearer A2"}, f.backend.AuthHeaders(authapi.ProfilePath))
	})

	t.Run("not signed in", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodGet, server.RouteAuthMe)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
	})

	t.Run("expired session", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(http.MethodGet, server.RouteAuthMe,
			withCookie(cookiestore.AccessCookieName, "expired"),
			withCookie(cookiestore.RefreshCookieName, "stale"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, -1, cookies(rec)[cookiestore.AccessCookieName].MaxAge)
	})
}

func TestRequireSession(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		token    string
		status   int
		location string
	}{
		{name: "page without token", path: "/en/dashboard", status: http.StatusSeeOther, location: "/en/login"},
		{name: "locale taken from path", path: "/uz/dashboard", status: http.StatusSeeOther, location: "/uz/login"},
		{name: "unprefixed page", path: "/dashboard", status: http.StatusSeeOther, location: "/en/login"},
		{name: "page with token", path: "/ru/dashboard", token: "A1", status: http.StatusOK},
		{name: "login without token", path: "/en/login", status: http.StatusOK},
		{name: "login with token", path: "/ru/login", token: "A1", status: http.StatusSeeOther, location: "/ru/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			var opts []requestOption
			if tt.token != "" {
				opts = append(opts, withCookie(cookiestore.AccessCookieName, tt.token))
			}
			rec := f.do(http.MethodGet, tt.path, opts...)
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.location, rec.Header().Get("Location"))
			if tt.status == http.StatusOK {
				require.Equal(t, "page "+tt.path, rec.Body.String())
				require.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupTestFixture(t)
	f.do(http.MethodPost, server.RouteAuthWebApp+"?init_data=forged")

	rec := f.do(http.MethodGet, server.RouteMetrics)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `osonify_auth_logins_total{flow="mini_app",outcome="failure"} 1`)
}
