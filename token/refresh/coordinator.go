// Package refresh coordinates access token renewal. At most one refresh
// call is in flight per Coordinator; concurrent callers share its outcome.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/internal/errors"
	"github.com/jrsteele09/osonify-auth/metrics"
	"github.com/jrsteele09/osonify-auth/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const flightKey = "refresh"

// Refresher calls the refresh endpoint. *authapi.Service implements it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*authmodel.AuthResponse, error)
}

// Redirector sends the user to the login entry point after the session
// could not be renewed.
type Redirector interface {
	RedirectToLogin(ctx context.Context)
}

// RedirectorFunc adapts a function to Redirector.
type RedirectorFunc func(ctx context.Context)

func (f RedirectorFunc) RedirectToLogin(ctx context.Context) { f(ctx) }

type CoordinatorOption func(*Coordinator)

func WithRedirector(r Redirector) CoordinatorOption {
	return func(c *Coordinator) {
		c.redirector = r
	}
}

func WithLogger(logger zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// Coordinator owns the refresh state of one execution context.
type Coordinator struct {
	store      token.Store
	refresher  Refresher
	redirector Redirector
	logger     zerolog.Logger
	metrics    *metrics.Metrics

	group      singleflight.Group
	refreshing atomic.Bool

	failureLock sync.Mutex
	failure     *failedRefresh

	hooksLock   sync.RWMutex
	onRefreshed []func(ctx context.Context, pair authmodel.TokenPair)
	onFailure   []func(ctx context.Context, err error)
}

// failedRefresh remembers the access token a failed refresh was started for,
// so callers that saw the same token share that failure.
type failedRefresh struct {
	access string
	err    error
}

func NewCoordinator(store token.Store, refresher Refresher, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:     store,
		refresher: refresher,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnRefreshed registers fn to run after a new pair has been stored.
func (c *Coordinator) OnRefreshed(fn func(ctx context.Context, pair authmodel.TokenPair)) {
	c.hooksLock.Lock()
	defer c.hooksLock.Unlock()
	c.onRefreshed = append(c.onRefreshed, fn)
}

// OnFailure registers fn to run after a failed refresh cleared the store.
func (c *Coordinator) OnFailure(fn func(ctx context.Context, err error)) {
	c.hooksLock.Lock()
	defer c.hooksLock.Unlock()
	c.onFailure = append(c.onFailure, fn)
}

// Refreshing reports whether a refresh call is in flight.
func (c *Coordinator) Refreshing() bool {
	return c.refreshing.Load()
}

// Store is the token store the coordinator writes to.
func (c *Coordinator) Store() token.Store {
	return c.store
}

// Refresh returns a usable access token to replace staleAccess, the token
// the caller saw rejected ("" if it had none). If the store already holds a
// different token another caller has refreshed and that token is returned.
// Otherwise the caller joins the in-flight refresh, or starts one.
func (c *Coordinator) Refresh(ctx context.Context, staleAccess string) (string, error) {
	if current := token.AccessToken(c.store); current != "" && current != staleAccess {
		c.metrics.ObserveRefresh(metrics.RefreshReused, 0)
		return current, nil
	}

	// The shared call must outlive any single waiter's cancellation.
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), staleAccess)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RefreshIfExpiring refreshes when the stored access token expires within
// leeway. It reports whether a refresh was made.
func (c *Coordinator) RefreshIfExpiring(ctx context.Context, leeway time.Duration) (bool, error) {
	access := token.AccessToken(c.store)
	if access == "" {
		return false, nil
	}
	exp, err := token.ExpiresAt(access)
	if err != nil {
		return false, nil
	}
	if exp.Sub(NowTimeFunc()) >= leeway {
		return false, nil
	}
	c.logger.Debug().Time("exp", exp).Msg("access token close to expiry, refreshing")
	if _, err := c.Refresh(ctx, access); err != nil {
		return false, err
	}
	return true, nil
}

// refresh runs inside the flight. The store is read again here because a
// caller may reach DoChan after an earlier flight for the same stale token
// has already finished.
func (c *Coordinator) refresh(ctx context.Context, staleAccess string) (string, error) {
	pair, _ := c.store.Get()
	var current, refreshToken string
	if pair != nil {
		current, refreshToken = pair.AccessToken, pair.RefreshToken
	}
	if current != "" && current != staleAccess {
		c.metrics.ObserveRefresh(metrics.RefreshReused, 0)
		return current, nil
	}
	if current == "" {
		if err := c.failedFor(staleAccess); err != nil {
			return "", err
		}
	}

	c.refreshing.Store(true)
	defer c.refreshing.Store(false)
	start := NowTimeFunc()

	if refreshToken == "" {
		return "", c.fail(ctx, start, current, errors.ErrNoRefreshToken)
	}

	resp, err := c.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return "", c.fail(ctx, start, current, fmt.Errorf("%w: %w", errors.ErrRefreshRejected, err))
	}

	next := resp.Token
	if next.RefreshToken == "" {
		next.RefreshToken = refreshToken
	}
	if err := c.store.Set(next); err != nil {
		return "", c.fail(ctx, start, current, fmt.Errorf("[Coordinator refresh] store: %w", err))
	}
	c.failureLock.Lock()
	c.failure = nil
	c.failureLock.Unlock()
	c.metrics.ObserveRefresh(metrics.RefreshSuccess, NowTimeFunc().Sub(start))
	c.logger.Debug().Str("user_id", resp.ID).Msg("tokens refreshed")

	c.hooksLock.RLock()
	hooks := append([]func(context.Context, authmodel.TokenPair){}, c.onRefreshed...)
	c.hooksLock.RUnlock()
	for _, fn := range hooks {
		fn(ctx, next)
	}
	return next.AccessToken, nil
}

// failedFor returns the error of the last failed refresh if it was started
// for staleAccess.
func (c *Coordinator) failedFor(staleAccess string) error {
	if staleAccess == "" {
		return nil
	}
	c.failureLock.Lock()
	defer c.failureLock.Unlock()
	if c.failure != nil && c.failure.access == staleAccess {
		return c.failure.err
	}
	return nil
}

// Expire tears the session down after a request was rejected even with a
// freshly refreshed token. The returned error wraps errors.ErrAuthExpired
// and cause.
func (c *Coordinator) Expire(ctx context.Context, cause error) error {
	err := fmt.Errorf("%w: %w", errors.ErrAuthExpired, cause)
	c.logger.Err(err).Msg("[Coordinator Expire] session expired, clearing session")
	return c.teardown(ctx, err)
}

// fail tears the session down after a failed refresh. It is never retried.
func (c *Coordinator) fail(ctx context.Context, start time.Time, access string, err error) error {
	if access != "" {
		c.failureLock.Lock()
		c.failure = &failedRefresh{access: access, err: err}
		c.failureLock.Unlock()
	}
	c.metrics.ObserveRefresh(metrics.RefreshFailure, NowTimeFunc().Sub(start))
	c.logger.Err(err).Msg("[Coordinator refresh] refresh failed, clearing session")
	return c.teardown(ctx, err)
}

func (c *Coordinator) teardown(ctx context.Context, err error) error {
	if clearErr := c.store.Clear(); clearErr != nil {
		c.logger.Err(clearErr).Msg("[Coordinator refresh] clear store")
	}

	c.hooksLock.RLock()
	hooks := append([]func(context.Context, error){}, c.onFailure...)
	c.hooksLock.RUnlock()
	for _, fn := range hooks {
		fn(ctx, err)
	}
	if c.redirector != nil {
		c.redirector.RedirectToLogin(ctx)
	}
	return err
}
