// Package cookiestore is the token store for server-rendered requests.
// Tokens travel in HttpOnly cookies: they are read from the incoming
// request and written back as Set-Cookie headers on the response.
package cookiestore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/internal/config"
	"github.com/jrsteele09/osonify-auth/token"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
	UserCookieName    = "user_data"
)

var (
	_ token.Store        = (*Store)(nil)
	_ token.ProfileStore = (*Store)(nil)
)

// Store is scoped to one request. Writes are staged so that later reads
// in the same request see them before the client has stored the cookies.
type Store struct {
	r   *http.Request
	w   http.ResponseWriter
	cfg config.CookieConfig

	lock   sync.Mutex
	staged *authmodel.TokenPair
	user   *authmodel.UserProfile
	// cleared hides the request cookies after Clear.
	cleared bool
}

func New(r *http.Request, w http.ResponseWriter, cfg config.CookieConfig) *Store {
	return &Store{r: r, w: w, cfg: cfg}
}

func (s *Store) Get() (*authmodel.TokenPair, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.staged != nil {
		pair := *s.staged
		return &pair, nil
	}
	if s.cleared {
		return nil, nil
	}
	pair := authmodel.TokenPair{
		AccessToken:  cookieValue(s.r, AccessCookieName),
		RefreshToken: cookieValue(s.r, RefreshCookieName),
	}
	if pair.IsZero() {
		return nil, nil
	}
	return &pair, nil
}

// Set stages both cookies together.
func (s *Store) Set(pair authmodel.TokenPair) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.staged = &pair
	s.cleared = false
	s.setCookie(AccessCookieName, pair.AccessToken, s.cfg.GetAccessTokenMaxAge())
	s.setCookie(RefreshCookieName, pair.RefreshToken, s.cfg.GetRefreshTokenMaxAge())
	return nil
}

// Clear expires the token cookies and the profile cookie.
func (s *Store) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.staged = nil
	s.user = nil
	s.cleared = true
	for _, name := range []string{AccessCookieName, RefreshCookieName, UserCookieName} {
		s.setCookie(name, "", -1)
	}
	return nil
}

func (s *Store) GetUser() (*authmodel.UserProfile, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.user != nil {
		user := *s.user
		return &user, nil
	}
	if s.cleared {
		return nil, nil
	}
	raw := cookieValue(s.r, UserCookieName)
	if raw == "" {
		return nil, nil
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, fmt.Errorf("[cookiestore GetUser] unescape: %w", err)
	}
	var user authmodel.UserProfile
	if err := json.Unmarshal([]byte(decoded), &user); err != nil {
		return nil, fmt.Errorf("[cookiestore GetUser] decode: %w", err)
	}
	return &user, nil
}

// SetUser mirrors the profile into a cookie with the refresh token lifetime.
func (s *Store) SetUser(user authmodel.UserProfile) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("[cookiestore SetUser] marshal: %w", err)
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.user = &user
	s.setCookie(UserCookieName, url.QueryEscape(string(data)), s.cfg.GetRefreshTokenMaxAge())
	return nil
}

func (s *Store) setCookie(name, value string, maxAge time.Duration) {
	if s.w == nil {
		return
	}
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.GetSecureCookies(),
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(maxAge.Seconds())
	}
	dropSetCookie(s.w.Header(), name)
	http.SetCookie(s.w, c)
}

// dropSetCookie removes an earlier Set-Cookie for name so that a response
// carries one header per cookie.
func dropSetCookie(h http.Header, name string) {
	prefix := name + "="
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
}

func cookieValue(r *http.Request, name string) string {
	if r == nil {
		return ""
	}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
