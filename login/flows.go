// Package login implements the entry points that end in an authenticated
// session: the Mini-App launch, the Telegram login widget callback and, in
// development builds, a manually entered debug token.
package login

import (
	"context"
	"fmt"

	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/internal/errors"
	"github.com/jrsteele09/osonify-auth/metrics"
	"github.com/jrsteele09/osonify-auth/session"
	"github.com/jrsteele09/osonify-auth/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Flow string

const (
	FlowMiniApp Flow = "mini_app"
	FlowWidget  Flow = "widget"
	FlowDebug   Flow = "debug"
)

// Error is a recoverable login failure.
type Error struct {
	Flow Flow
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s login failed: %v", e.Flow, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Service is the subset of *authapi.Service the flows call.
type Service interface {
	LoginWithWebApp(ctx context.Context, initData string) (*authmodel.AuthResponse, error)
	LoginWithTelegram(ctx context.Context, data authmodel.TelegramLoginData) (*authmodel.AuthResponse, error)
	Profile(ctx context.Context) (*authmodel.UserProfile, error)
	ProfileWithToken(ctx context.Context, accessToken string) (*authmodel.UserProfile, error)
}

type FlowsOption func(*Flows)

// WithDebugMode enables the debug flow at runtime. It has no effect in
// production builds.
func WithDebugMode(enabled bool) FlowsOption {
	return func(f *Flows) {
		f.debugEnabled = enabled
	}
}

func WithMetrics(m *metrics.Metrics) FlowsOption {
	return func(f *Flows) {
		f.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) FlowsOption {
	return func(f *Flows) {
		f.logger = logger
	}
}

type Flows struct {
	service      Service
	store        token.Store
	session      *session.Manager
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	debugEnabled bool
}

// New returns the flows for one execution context. store must be the store
// the service's client reads its bearer token from.
func New(service Service, store token.Store, manager *session.Manager, opts ...FlowsOption) *Flows {
	f := &Flows{service: service, store: store, session: manager, logger: log.Logger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// MiniApp exchanges the host application's init data for a session.
func (f *Flows) MiniApp(ctx context.Context, initData string) (err error) {
	defer func() { f.observe(FlowMiniApp, err) }()

	if initData == "" {
		return &Error{Flow: FlowMiniApp, Err: errors.ErrMissingInitData}
	}
	resp, err := f.service.LoginWithWebApp(ctx, initData)
	if err != nil {
		return &Error{Flow: FlowMiniApp, Err: err}
	}
	return f.complete(ctx, FlowMiniApp, resp)
}

// Widget forwards the widget payload unchanged; the backend checks the
// signature.
func (f *Flows) Widget(ctx context.Context, data authmodel.TelegramLoginData) (err error) {
	defer func() { f.observe(FlowWidget, err) }()

	if err := data.Validate(); err != nil {
		return &Error{Flow: FlowWidget, Err: err}
	}
	resp, err := f.service.LoginWithTelegram(ctx, data)
	if err != nil {
		return &Error{Flow: FlowWidget, Err: err}
	}
	return f.complete(ctx, FlowWidget, resp)
}

// complete stores the pair so the profile request is authenticated, then
// hands both to the session.
func (f *Flows) complete(ctx context.Context, flow Flow, resp *authmodel.AuthResponse) error {
	if err := f.store.Set(resp.Token); err != nil {
		return &Error{Flow: flow, Err: err}
	}
	profile, err := f.service.Profile(ctx)
	if err != nil {
		if clearErr := f.store.Clear(); clearErr != nil {
			f.logger.Err(clearErr).Msg("[Flows complete] clear store")
		}
		return &Error{Flow: flow, Err: fmt.Errorf("%w: %w", errors.ErrProfileUnavailable, err)}
	}
	if err := f.session.SetAuth(*resp, *profile); err != nil {
		return &Error{Flow: flow, Err: err}
	}
	f.logger.Info().Str("flow", string(flow)).Str("user_id", resp.ID).Msg("logged in")
	return nil
}

func (f *Flows) observe(flow Flow, err error) {
	f.metrics.ObserveLogin(string(flow), err)
	if err != nil {
		f.logger.Err(err).Str("flow", string(flow)).Msg("[Flows] login failed")
	}
}
