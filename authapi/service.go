// Package authapi calls the backend authentication and profile endpoints.
package authapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/internal/utils"
	"github.com/jrsteele09/osonify-auth/transport"
)

// Endpoint paths relative to the API prefix.
const (
	WebAppPath   = "/auth/webapp"
	TelegramPath = "/auth/telegram"
	RefreshPath  = "/auth/refresh"
	LogoutPath   = "/auth/logout"
	ProfilePath  = "/users/me"
)

// Service wraps a transport.Doer. Pass the raw transport client where
// token handling must not apply (the refresh coordinator) and the
// authenticated api client everywhere else.
type Service struct {
	doer   transport.Doer
	prefix string
}

func New(doer transport.Doer, prefix string) *Service {
	return &Service{doer: doer, prefix: prefix}
}

func (s *Service) path(p string) string {
	return s.prefix + p
}

// LoginWithWebApp exchanges Mini-App init data for a token pair.
func (s *Service) LoginWithWebApp(ctx context.Context, initData string) (*authmodel.AuthResponse, error) {
	return s.authResponse(ctx, transport.Request{
		Path:        s.path(WebAppPath) + "?init_data=" + url.QueryEscape(initData),
		Method:      http.MethodPost,
		RequireAuth: utils.Ptr(false),
		Cache:       transport.CacheNoStore,
	})
}

// LoginWithTelegram forwards the widget payload for signature verification.
func (s *Service) LoginWithTelegram(ctx context.Context, data authmodel.TelegramLoginData) (*authmodel.AuthResponse, error) {
	return s.authResponse(ctx, transport.Request{
		Path:        s.path(TelegramPath),
		Method:      http.MethodPost,
		Body:        data,
		RequireAuth: utils.Ptr(false),
		Cache:       transport.CacheNoStore,
	})
}

// Refresh trades a refresh token for a new pair. The refresh token is sent
// as the bearer credential instead of the access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*authmodel.AuthResponse, error) {
	req := transport.Request{
		Path:        s.path(RefreshPath),
		Method:      http.MethodPost,
		RequireAuth: utils.Ptr(false),
		Cache:       transport.CacheNoStore,
	}
	return s.authResponse(ctx, req.WithHeader("Authorization", "Bearer "+refreshToken))
}

// Logout revokes the pair. The tokens travel in the body.
func (s *Service) Logout(ctx context.Context, pair authmodel.TokenPair) (*authmodel.LogoutResponse, error) {
	resp, err := s.doer.Do(ctx, transport.Request{
		Path:   s.path(LogoutPath),
		Method: http.MethodPost,
		Body: authmodel.LogoutRequest{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		},
		RequireAuth: utils.Ptr(false),
		Cache:       transport.CacheNoStore,
	})
	if err != nil {
		return nil, err
	}
	out := &authmodel.LogoutResponse{}
	if err := resp.Decode(out); err != nil {
		return nil, fmt.Errorf("[authapi Logout] %w", err)
	}
	return out, nil
}

// Profile fetches the current user with whatever credentials the doer
// attaches.
func (s *Service) Profile(ctx context.Context) (*authmodel.UserProfile, error) {
	return s.profile(ctx, transport.Request{Path: s.path(ProfilePath), Method: http.MethodGet})
}

// ProfileWithToken fetches the user identified by accessToken, bypassing
// any stored credentials.
func (s *Service) ProfileWithToken(ctx context.Context, accessToken string) (*authmodel.UserProfile, error) {
	req := transport.Request{
		Path:        s.path(ProfilePath),
		Method:      http.MethodGet,
		RequireAuth: utils.Ptr(false),
	}
	return s.profile(ctx, req.WithHeader("Authorization", "Bearer "+accessToken))
}

func (s *Service) profile(ctx context.Context, req transport.Request) (*authmodel.UserProfile, error) {
	resp, err := s.doer.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	user := &authmodel.UserProfile{}
	if err := resp.Decode(user); err != nil {
		return nil, fmt.Errorf("[authapi Profile] %w", err)
	}
	return user, nil
}

func (s *Service) authResponse(ctx context.Context, req transport.Request) (*authmodel.AuthResponse, error) {
	resp, err := s.doer.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	out := &authmodel.AuthResponse{}
	if err := resp.Decode(out); err != nil {
		return nil, fmt.Errorf("[authapi %s] decode: %w", req.Path, err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
