package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/osonify-auth/internal/utils"
	"github.com/jrsteele09/osonify-auth/transport"
)

// RequestOption adjusts a request built by the typed helpers.
type RequestOption func(*transport.Request)

// WithoutAuth sends the request without a bearer token.
func WithoutAuth() RequestOption {
	return func(r *transport.Request) {
		r.RequireAuth = utils.Ptr(false)
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *transport.Request) {
		*r = r.WithHeader(key, value)
	}
}

func WithCache(policy transport.CachePolicy) RequestOption {
	return func(r *transport.Request) {
		r.Cache = policy
	}
}

func WithTimeout(d time.Duration) RequestOption {
	return func(r *transport.Request) {
		r.Timeout = d
	}
}

func Get[T any](ctx context.Context, d transport.Doer, path string, opts ...RequestOption) (T, error) {
	return call[T](ctx, d, http.MethodGet, path, nil, opts)
}

func Post[T any](ctx context.Context, d transport.Doer, path string, body any, opts ...RequestOption) (T, error) {
	return call[T](ctx, d, http.MethodPost, path, body, opts)
}

func Put[T any](ctx context.Context, d transport.Doer, path string, body any, opts ...RequestOption) (T, error) {
	return call[T](ctx, d, http.MethodPut, path, body, opts)
}

func Patch[T any](ctx context.Context, d transport.Doer, path string, body any, opts ...RequestOption) (T, error) {
	return call[T](ctx, d, http.MethodPatch, path, body, opts)
}

func Delete[T any](ctx context.Context, d transport.Doer, path string, opts ...RequestOption) (T, error) {
	return call[T](ctx, d, http.MethodDelete, path, nil, opts)
}

// call decodes the response into T. A 204 yields the zero T.
func call[T any](ctx context.Context, d transport.Doer, method, path string, body any, opts []RequestOption) (T, error) {
	var out T
	req := transport.Request{Path: path, Method: method, Body: body}
	for _, opt := range opts {
		opt(&req)
	}
	resp, err := d.Do(ctx, req)
	if err != nil {
		return out, err
	}
	if err := resp.Decode(&out); err != nil {
		return out, fmt.Errorf("[api %s %s] %w", method, path, err)
	}
	return out, nil
}
