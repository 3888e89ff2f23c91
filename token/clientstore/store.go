// Package clientstore is the token store for long-lived interactive
// processes. Tokens are kept in a Storage backend with readable cookies in
// an http.CookieJar as a fallback.
package clientstore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/internal/errors"
	"github.com/jrsteele09/osonify-auth/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// TokensKey holds the JSON encoded token pair.
	TokensKey = "auth-tokens"
	// UserKey holds the JSON encoded user profile.
	UserKey = "auth-user"

	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"

	DefaultAccessMaxAge  = time.Hour
	DefaultRefreshMaxAge = 7 * 24 * time.Hour
)

var (
	_ token.Store        = (*Store)(nil)
	_ token.ProfileStore = (*Store)(nil)
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCookieFallback mirrors tokens into jar for baseURL.
func WithCookieFallback(jar http.CookieJar, baseURL *url.URL) StoreOption {
	return func(s *Store) {
		s.jar = jar
		s.jarURL = baseURL
	}
}

// WithCookieMaxAge sets the lifetime of the fallback cookies.
func WithCookieMaxAge(access, refresh time.Duration) StoreOption {
	return func(s *Store) {
		s.accessMaxAge = access
		s.refreshMaxAge = refresh
	}
}

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store implements token.Store over a Storage backend.
type Store struct {
	storage       Storage
	jar           http.CookieJar
	jarURL        *url.URL
	accessMaxAge  time.Duration
	refreshMaxAge time.Duration
	logger        zerolog.Logger
	lock          sync.Mutex

	// stale is set when the storage missed the last write. Get then answers
	// from the fallback cookies until a storage write succeeds.
	stale       bool
	userCleared bool
}

func New(storage Storage, opts ...StoreOption) *Store {
	s := &Store{
		storage:       storage,
		accessMaxAge:  DefaultAccessMaxAge,
		refreshMaxAge: DefaultRefreshMaxAge,
		logger:        log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the stored pair. The fallback cookies are consulted when the
// storage is empty, fails, or missed the last write.
func (s *Store) Get() (*authmodel.TokenPair, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.stale {
		return s.fromCookies(), nil
	}

	raw, ok, err := s.storage.GetItem(TokensKey)
	if err != nil {
		s.logger.Err(err).Msg("[Store Get] storage unavailable, using cookie fallback")
		return s.fromCookies(), nil
	}
	if !ok || raw == "" {
		return s.fromCookies(), nil
	}

	var pair authmodel.TokenPair
	if err := json.Unmarshal([]byte(raw), &pair); err != nil {
		s.logger.Err(err).Msg("[Store Get] corrupt token entry")
		return s.fromCookies(), nil
	}
	if pair.IsZero() {
		return nil, nil
	}
	return &pair, nil
}

// Set writes the pair as one value. If the storage write fails the pair
// is still kept in the cookie fallback, which Get prefers from then on.
func (s *Store) Set(pair authmodel.TokenPair) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("[Store Set] marshal: %w", err)
	}
	storageErr := s.storage.SetItem(TokensKey, string(data))
	s.writeCookies(pair.AccessToken, pair.RefreshToken, s.accessMaxAge, s.refreshMaxAge)

	if storageErr != nil {
		if s.jar == nil {
			return errors.Wrapf(errors.ErrStorageUnavailable, "[Store Set] %v", storageErr)
		}
		s.stale = true
		s.logger.Err(storageErr).Msg("[Store Set] storage write failed, kept in cookie fallback")
		return nil
	}
	s.stale = false
	return nil
}

// Clear removes tokens, the cached profile and the fallback cookies. If
// the storage cannot be emptied the error is returned, and Get and GetUser
// still report nothing until the next successful write.
func (s *Store) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	var firstErr error
	for _, key := range []string{TokensKey, UserKey} {
		if err := s.storage.RemoveItem(key); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("[Store Clear] %s: %w", key, err)
		}
	}
	s.writeCookies("", "", -1, -1)
	s.stale = firstErr != nil
	s.userCleared = firstErr != nil
	return firstErr
}

func (s *Store) GetUser() (*authmodel.UserProfile, error) {
	s.lock.Lock()
	cleared := s.userCleared
	s.lock.Unlock()
	if cleared {
		return nil, nil
	}

	raw, ok, err := s.storage.GetItem(UserKey)
	if err != nil {
		return nil, fmt.Errorf("[Store GetUser] %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var user authmodel.UserProfile
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("[Store GetUser] decode: %w", err)
	}
	return &user, nil
}

func (s *Store) SetUser(user authmodel.UserProfile) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("[Store SetUser] marshal: %w", err)
	}
	if err := s.storage.SetItem(UserKey, string(data)); err != nil {
		return fmt.Errorf("[Store SetUser] %w", err)
	}
	s.lock.Lock()
	s.userCleared = false
	s.lock.Unlock()
	return nil
}

func (s *Store) fromCookies() *authmodel.TokenPair {
	if s.jar == nil || s.jarURL == nil {
		return nil
	}
	var pair authmodel.TokenPair
	for _, c := range s.jar.Cookies(s.jarURL) {
		switch c.Name {
		case AccessCookieName:
			pair.AccessToken = c.Value
		case RefreshCookieName:
			pair.RefreshToken = c.Value
		}
	}
	if pair.IsZero() {
		return nil
	}
	return &pair
}

func (s *Store) writeCookies(access, refresh string, accessMaxAge, refreshMaxAge time.Duration) {
	if s.jar == nil || s.jarURL == nil {
		return
	}
	s.jar.SetCookies(s.jarURL, []*http.Cookie{
		fallbackCookie(AccessCookieName, access, accessMaxAge),
		fallbackCookie(RefreshCookieName, refresh, refreshMaxAge),
	})
}

// fallbackCookie is readable by the process (no HttpOnly) so it can stand
// in for the storage. A negative maxAge deletes the cookie.
func fallbackCookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.MaxAge = -1
		return c
	}
	c.MaxAge = int(maxAge.Seconds())
	return c
}
