// Package backendfake is an in-memory stand-in for the backend auth and
// profile endpoints, served over httptest.
package backendfake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/osonify-auth/authapi"
	"github.com/jrsteele09/osonify-auth/authmodel"
)

const (
	Prefix   = "/api/v1"
	EchoPath = "/echo"
)

type refreshGrant struct {
	next authmodel.TokenPair
	user *authmodel.UserProfile
}

// Backend records every call so tests can assert on counts and headers.
type Backend struct {
	server *httptest.Server

	lock         sync.Mutex
	users        map[string]authmodel.UserProfile
	grants       map[string]refreshGrant
	webapp       map[string]authmodel.AuthResponse
	telegram     map[int64]authmodel.AuthResponse
	counts       map[string]int
	authHeaders  map[string][]string
	logouts      []authmodel.LogoutRequest
	refreshDelay time.Duration
}

// New starts a backend that is closed with the test.
func New(t testing.TB) *Backend {
	b := &Backend{
		users:       map[string]authmodel.UserProfile{},
		grants:      map[string]refreshGrant{},
		webapp:      map[string]authmodel.AuthResponse{},
		telegram:    map[int64]authmodel.AuthResponse{},
		counts:      map[string]int{},
		authHeaders: map[string][]string{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+Prefix+authapi.WebAppPath, b.handleWebApp)
	mux.HandleFunc("POST "+Prefix+authapi.TelegramPath, b.handleTelegram)
	mux.HandleFunc("POST "+Prefix+authapi.RefreshPath, b.handleRefresh)
	mux.HandleFunc("POST "+Prefix+authapi.LogoutPath, b.handleLogout)
	mux.HandleFunc("GET "+Prefix+authapi.ProfilePath, b.handleProfile)
	mux.HandleFunc(Prefix+EchoPath, b.handleEcho)
	b.server = httptest.NewServer(b.record(mux))
	t.Cleanup(b.server.Close)
	return b
}

func (b *Backend) URL() string {
	return b.server.URL
}

// AddUser makes access a valid bearer token for user.
func (b *Backend) AddUser(access string, user authmodel.UserProfile) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.users[access] = user
}

// RevokeAccess makes access invalid.
func (b *Backend) RevokeAccess(access string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	delete(b.users, access)
}

// AddRefresh makes refresh redeemable once for next. When user is non-nil
// the new access token is valid for that user; otherwise it is rejected.
func (b *Backend) AddRefresh(refresh string, next authmodel.TokenPair, user *authmodel.UserProfile) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.grants[refresh] = refreshGrant{next: next, user: user}
}

func (b *Backend) AddWebApp(initData string, resp authmodel.AuthResponse) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.webapp[initData] = resp
}

func (b *Backend) AddTelegram(id int64, resp authmodel.AuthResponse) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.telegram[id] = resp
}

// SetRefreshDelay holds every refresh response for d.
func (b *Backend) SetRefreshDelay(d time.Duration) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.refreshDelay = d
}

// Count returns the number of calls to an endpoint path such as
// authapi.RefreshPath.
func (b *Backend) Count(path string) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.counts[Prefix+path]
}

// AuthHeaders returns the Authorization header of every call to path.
func (b *Backend) AuthHeaders(path string) []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]string(nil), b.authHeaders[Prefix+path]...)
}

func (b *Backend) Logouts() []authmodel.LogoutRequest {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]authmodel.LogoutRequest(nil), b.logouts...)
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.lock.Lock()
		b.counts[r.URL.Path]++
		b.authHeaders[r.URL.Path] = append(b.authHeaders[r.URL.Path], r.Header.Get("Authorization"))
		b.lock.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleWebApp(w http.ResponseWriter, r *http.Request) {
	initData := r.URL.Query().Get("init_data")
	if initData == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "init_data is required"})
		return
	}
	b.lock.Lock()
	resp, ok := b.webapp[initData]
	b.lock.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid init data"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleTelegram(w http.ResponseWriter, r *http.Request) {
	var data authmodel.TelegramLoginData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	b.lock.Lock()
	resp, ok := b.telegram[data.ID]
	b.lock.Unlock()
	if !ok || data.Hash == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid hash"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.lock.Lock()
	delay := b.refreshDelay
	b.lock.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	refresh := bearer(r)
	b.lock.Lock()
	grant, ok := b.grants[refresh]
	if ok {
		delete(b.grants, refresh)
		if grant.user != nil {
			b.users[grant.next.AccessToken] = *grant.user
		}
	}
	b.lock.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid refresh token"})
		return
	}
	id := ""
	if grant.user != nil {
		id = grant.user.ID
	}
	writeJSON(w, http.StatusOK, authmodel.AuthResponse{ID: id, Token: grant.next})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req authmodel.LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	b.lock.Lock()
	b.logouts = append(b.logouts, req)
	delete(b.users, req.AccessToken)
	delete(b.grants, req.RefreshToken)
	b.lock.Unlock()
	writeJSON(w, http.StatusOK, authmodel.LogoutResponse{Message: "Logged out"})
}

func (b *Backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := b.userFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleEcho is a generic protected resource.
func (b *Backend) handleEcho(w http.ResponseWriter, r *http.Request) {
	user, ok := b.userFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": user.ID, "method": r.Method})
}

func (b *Backend) userFor(r *http.Request) (authmodel.UserProfile, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	user, ok := b.users[bearer(r)]
	return user, ok
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
