// Package session holds the observable authentication state of one
// execution context: one Manager per process in interactive mode and one
// per incoming request in server mode.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/internal/errors"
	"github.com/jrsteele09/osonify-auth/token"
	"github.com/jrsteele09/osonify-auth/token/refresh"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Backend is the subset of *authapi.Service the manager calls.
type Backend interface {
	Logout(ctx context.Context, pair authmodel.TokenPair) (*authmodel.LogoutResponse, error)
	Profile(ctx context.Context) (*authmodel.UserProfile, error)
}

// InitDataFunc returns Mini-App init data, or "" when the process was not
// launched from a Mini-App host.
type InitDataFunc func() string

// MiniAppLoginFunc runs the Mini-App login flow. It is expected to end in
// SetAuth.
type MiniAppLoginFunc func(ctx context.Context, initData string) error

type ManagerOption func(*Manager)

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithBackend enables remote logout and profile hydration.
func WithBackend(b Backend) ManagerOption {
	return func(m *Manager) {
		m.backend = b
	}
}

// WithMiniApp makes InitializeAuth try the Mini-App flow first.
func WithMiniApp(initData InitDataFunc, login MiniAppLoginFunc) ManagerOption {
	return func(m *Manager) {
		m.initData = initData
		m.miniAppLogin = login
	}
}

// Manager owns the Session. State changes go through SetAuth,
// UpdateTokens, ClearAuth and InitializeAuth.
type Manager struct {
	store        token.Store
	profiles     token.ProfileStore
	backend      Backend
	initData     InitDataFunc
	miniAppLogin MiniAppLoginFunc
	logger       zerolog.Logger
	refreshing   func() bool

	lock        sync.RWMutex
	state       Session
	initialized bool

	listenersLock sync.Mutex
	listeners     []listenerEntry
	nextListener  int
}

type listenerEntry struct {
	id int
	fn Listener
}

// NewManager creates an empty session over store. When store also
// implements token.ProfileStore the user profile is persisted with it.
func NewManager(store token.Store, opts ...ManagerOption) *Manager {
	m := &Manager{store: store, logger: log.Logger}
	if ps, ok := store.(token.ProfileStore); ok {
		m.profiles = ps
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bind follows the coordinator: refreshed pairs update the session and a
// failed refresh clears it.
func (m *Manager) Bind(c *refresh.Coordinator) {
	m.lock.Lock()
	m.refreshing = c.Refreshing
	m.lock.Unlock()

	c.OnRefreshed(func(_ context.Context, pair authmodel.TokenPair) {
		m.applyTokens(pair)
	})
	c.OnFailure(func(_ context.Context, err error) {
		m.logger.Debug().Err(err).Msg("refresh failed, session cleared")
		m.reset()
	})
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Session {
	m.lock.RLock()
	defer m.lock.RUnlock()
	out := m.state.clone()
	if m.refreshing != nil && m.refreshing() {
		out.IsRefreshing = true
	}
	return out
}

func (m *Manager) State() State {
	return m.Snapshot().State()
}

// SetAuth completes a login: the user is normalized, tokens and profile are
// persisted and the session becomes authenticated.
func (m *Manager) SetAuth(resp authmodel.AuthResponse, user authmodel.UserProfile) error {
	if err := resp.Validate(); err != nil {
		return fmt.Errorf("[Manager SetAuth] %w", err)
	}
	normalized := user.Normalize()
	pair := resp.Token

	if err := m.store.Set(pair); err != nil {
		return fmt.Errorf("[Manager SetAuth] store tokens: %w", err)
	}
	m.persistUser(normalized)

	m.lock.Lock()
	old := m.state.Tokens
	m.state = Session{User: &normalized, Tokens: &pair, IsAuthenticated: true}
	m.lock.Unlock()

	m.emit(Event{Kind: TokensUpdated, Old: old, New: &pair})
	return nil
}

// UpdateTokens records a refresh result made outside the coordinator.
func (m *Manager) UpdateTokens(pair authmodel.TokenPair) error {
	if err := m.store.Set(pair); err != nil {
		return fmt.Errorf("[Manager UpdateTokens] %w", err)
	}
	m.applyTokens(pair)
	return nil
}

// ClearAuth empties the store and the session.
func (m *Manager) ClearAuth() error {
	err := m.store.Clear()
	m.reset()
	if err != nil {
		return fmt.Errorf("[Manager ClearAuth] %w", err)
	}
	return nil
}

// SetUser replaces the profile of the session.
func (m *Manager) SetUser(user authmodel.UserProfile) {
	normalized := user.Normalize()
	m.persistUser(normalized)

	m.lock.Lock()
	defer m.lock.Unlock()
	m.state.User = &normalized
}

func (m *Manager) SetLoading(loading bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.state.IsLoading = loading
}

func (m *Manager) SetRefreshing(refreshing bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.state.IsRefreshing = refreshing
}

// InitializeAuth runs once per Manager. A Mini-App launch logs in with the
// host's init data; otherwise the session is restored from the store.
func (m *Manager) InitializeAuth(ctx context.Context) error {
	m.lock.Lock()
	if m.initialized {
		m.lock.Unlock()
		return errors.ErrAlreadyInitialized
	}
	m.initialized = true
	m.state.IsLoading = true
	m.lock.Unlock()
	defer m.SetLoading(false)

	if m.initData != nil && m.miniAppLogin != nil {
		if initData := m.initData(); initData != "" {
			if err := m.miniAppLogin(ctx, initData); err != nil {
				m.logger.Err(err).Msg("[Manager InitializeAuth] mini app login failed")
				m.reset()
				return err
			}
			return nil
		}
	}
	return m.hydrate(ctx)
}

// Sync adopts what another process wrote to a shared store without
// writing it back. A store emptied elsewhere clears the session.
func (m *Manager) Sync() error {
	pair, err := m.store.Get()
	if err != nil {
		return fmt.Errorf("[Manager Sync] %w", err)
	}
	current := m.Snapshot().Tokens
	switch {
	case pair == nil && current != nil:
		m.reset()
	case pair != nil && (current == nil || *current != *pair):
		m.applyTokens(*pair)
	}
	return nil
}

// Logout revokes the pair on the backend when both tokens are known, then
// clears the session whatever the backend answered.
func (m *Manager) Logout(ctx context.Context) error {
	pair, err := m.store.Get()
	if err != nil {
		m.logger.Err(err).Msg("[Manager Logout] read tokens")
	}
	if m.backend != nil && pair != nil && pair.AccessToken != "" && pair.RefreshToken != "" {
		if _, err := m.backend.Logout(ctx, *pair); err != nil {
			m.logger.Err(err).Msg("[Manager Logout] backend logout failed")
		}
	}
	return m.ClearAuth()
}

// Subscribe registers fn for session events. Listeners run synchronously,
// in registration order, outside the session lock. The returned function
// removes the listener.
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	m.listenersLock.Lock()
	defer m.listenersLock.Unlock()
	m.nextListener++
	id := m.nextListener
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenersLock.Lock()
			defer m.listenersLock.Unlock()
			for i, l := range m.listeners {
				if l.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (m *Manager) hydrate(ctx context.Context) error {
	pair, err := m.store.Get()
	if err != nil {
		return fmt.Errorf("[Manager hydrate] %w", err)
	}
	if pair == nil || pair.AccessToken == "" {
		return nil
	}

	var user *authmodel.UserProfile
	if m.profiles != nil {
		if user, err = m.profiles.GetUser(); err != nil {
			m.logger.Err(err).Msg("[Manager hydrate] read persisted profile")
		}
	}
	if user == nil && m.backend != nil {
		if user, err = m.backend.Profile(ctx); err != nil {
			m.logger.Err(err).Msg("[Manager hydrate] fetch profile")
			return nil
		}
		m.persistUser(user.Normalize())
	}
	if user == nil {
		return nil
	}

	// The profile fetch may have refreshed the pair.
	if current, err := m.store.Get(); err == nil && current != nil {
		pair = current
	}
	normalized := user.Normalize()
	m.lock.Lock()
	old := m.state.Tokens
	m.state.User = &normalized
	m.state.Tokens = pair
	m.state.IsAuthenticated = true
	m.lock.Unlock()

	m.emit(Event{Kind: TokensUpdated, Old: old, New: pair})
	return nil
}

func (m *Manager) applyTokens(pair authmodel.TokenPair) {
	m.lock.Lock()
	old := m.state.Tokens
	m.state.Tokens = &pair
	m.lock.Unlock()

	m.emit(Event{Kind: TokensUpdated, Old: old, New: &pair})
}

func (m *Manager) reset() {
	m.lock.Lock()
	old := m.state.Tokens
	m.state = Session{}
	m.lock.Unlock()

	m.emit(Event{Kind: Cleared, Old: old})
}

func (m *Manager) persistUser(user authmodel.UserProfile) {
	if m.profiles == nil {
		return
	}
	if err := m.profiles.SetUser(user); err != nil {
		m.logger.Err(err).Msg("[Manager] persist profile")
	}
}

func (m *Manager) emit(ev Event) {
	m.listenersLock.Lock()
	listeners := make([]listenerEntry, len(m.listeners))
	copy(listeners, m.listeners)
	m.listenersLock.Unlock()

	for _, l := range listeners {
		l.fn(ev)
	}
}
