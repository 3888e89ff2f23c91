// Package api is the authenticated backend client. It attaches the stored
// access token and, on a 401, refreshes once and retries once.
package api

import (
	"context"
	"fmt"

	"github.com/jrsteele09/osonify-auth/internal/errors"
	"github.com/jrsteele09/osonify-auth/token"
	"github.com/jrsteele09/osonify-auth/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxRetryCount bounds the refresh-and-retry loop.
const MaxRetryCount = 1

// TokenRefresher is implemented by *refresh.Coordinator.
type TokenRefresher interface {
	Refresh(ctx context.Context, staleAccess string) (string, error)
	Expire(ctx context.Context, cause error) error
}

type ClientOption func(*Client)

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

var _ transport.Doer = (*Client)(nil)

type Client struct {
	raw       transport.Doer
	store     token.Store
	refresher TokenRefresher
	logger    zerolog.Logger
}

func New(raw transport.Doer, store token.Store, refresher TokenRefresher, opts ...ClientOption) *Client {
	c := &Client{raw: raw, store: store, refresher: refresher, logger: log.Logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes req. A missing token is not an error: the request goes out
// without credentials and the backend decides. Only 401 responses to
// requests that require auth are handled here; every other error is
// returned as it is.
func (c *Client) Do(ctx context.Context, req transport.Request) (*transport.Response, error) {
	// Explicit credentials are the caller's business.
	if !req.AuthRequired() || req.Headers.Get("Authorization") != "" {
		return c.raw.Do(ctx, req)
	}

	access := token.AccessToken(c.store)
	for retryCount := 0; ; retryCount++ {
		sent := req
		if access != "" {
			sent = req.WithHeader("Authorization", "Bearer "+access)
		}

		resp, err := c.raw.Do(ctx, sent)
		if err == nil || !transport.IsUnauthorized(err) {
			return resp, err
		}
		if retryCount >= MaxRetryCount {
			return nil, c.refresher.Expire(ctx, err)
		}

		c.logger.Debug().Str("path", req.Path).Int("retry", retryCount+1).Msg("unauthorized, refreshing token")
		next, refreshErr := c.refresher.Refresh(ctx, access)
		if refreshErr != nil {
			if errors.Is(refreshErr, context.Canceled) || errors.Is(refreshErr, context.DeadlineExceeded) {
				return nil, refreshErr
			}
			return nil, fmt.Errorf("%w: %w", errors.ErrAuthExpired, refreshErr)
		}
		access = next
	}
}
