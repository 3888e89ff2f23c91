// Package transport performs backend HTTP calls: URL resolution, body and
// response codecs, the timeout and cache policies of each execution mode
// and the error shape every caller sees.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/osonify-auth/internal/config"
	"github.com/jrsteele09/osonify-auth/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mode selects the execution context defaults.
type Mode int

const (
	// ModeInteractive is a long-lived process: client timeout, no caching.
	ModeInteractive Mode = iota
	// ModeServer renders pages for incoming requests: no client timeout,
	// shared GET cache, incoming cookies forwarded.
	ModeServer
)

func (m Mode) String() string {
	if m == ModeServer {
		return "server"
	}
	return "interactive"
}

const (
	DefaultTimeout = 15 * time.Second

	RequestIDHeader = "X-Request-ID"
)

type incomingCookieKey struct{}

// WithIncomingCookies attaches the Cookie header of the request being
// served so that server mode calls forward it to the backend.
func WithIncomingCookies(ctx context.Context, cookieHeader string) context.Context {
	if cookieHeader == "" {
		return ctx
	}
	return context.WithValue(ctx, incomingCookieKey{}, cookieHeader)
}

func incomingCookies(ctx context.Context) string {
	v, _ := ctx.Value(incomingCookieKey{}).(string)
	return v
}

// Doer is implemented by every client that can execute a Request.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the interactive timeout. Zero or negative disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithCache bounds the number of cached GET responses and how long each
// one is served.
func WithCache(size int, ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cache = newResponseCache(size, ttl)
	}
}

var _ Doer = (*Client)(nil)

// Client executes requests without any token handling. It is safe for
// concurrent use and is shared by every request in server mode.
type Client struct {
	baseURL    string
	mode       Mode
	timeout    time.Duration
	httpClient *http.Client
	cache      *responseCache
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

func New(baseURL string, mode Mode, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		mode:       mode,
		timeout:    DefaultTimeout,
		httpClient: http.DefaultClient,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = newResponseCache(defaultCacheEntries, defaultCacheTTL)
	}
	return c
}

// NewFromConfig builds a client for the configured backend.
func NewFromConfig(cfg config.TransportConfig, mode Mode, opts ...ClientOption) *Client {
	opts = append([]ClientOption{WithTimeout(cfg.GetRequestTimeout())}, opts...)
	return New(cfg.GetAPIBaseURL(), mode, opts...)
}

func (c *Client) Mode() Mode {
	return c.mode
}

// BaseURL is the backend origin without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PurgeCache drops every cached response.
func (c *Client) PurgeCache() {
	c.cache.purge()
}

// URL resolves a path against the base URL. Absolute http(s) URLs are
// returned unchanged.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) cachePolicy(req Request) CachePolicy {
	if req.Cache != CacheDefault {
		return req.Cache
	}
	if c.mode == ModeServer {
		return CacheForce
	}
	return CacheNoStore
}

func (c *Client) timeoutFor(req Request) time.Duration {
	if c.mode == ModeServer {
		return 0
	}
	if req.Timeout != 0 {
		return req.Timeout
	}
	return c.timeout
}

// Do executes req. Every non-2xx response and every failure to get a
// response is returned as a *TransportError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.method()
	fullURL := c.URL(req.Path)

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, &TransportError{Status: 0, Message: err.Error(), Path: fullURL, Method: method, Err: err}
	}

	var cancel context.CancelFunc = func() {}
	timeout := c.timeoutFor(req)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, &TransportError{Status: 0, Message: err.Error(), Path: fullURL, Method: method, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range req.Headers {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if httpReq.Header.Get(RequestIDHeader) == "" {
		httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	}
	if c.mode == ModeServer && httpReq.Header.Get("Cookie") == "" {
		if cookies := incomingCookies(ctx); cookies != "" {
			httpReq.Header.Set("Cookie", cookies)
		}
	}

	logger := c.logger.With().
		Str("request_id", httpReq.Header.Get(RequestIDHeader)).
		Str("method", method).
		Str("url", fullURL).
		Logger()

	useCache := c.cachePolicy(req) == CacheForce && method == http.MethodGet
	key := cacheKey(method, fullURL, httpReq.Header)
	if useCache {
		if cached, ok := c.cache.get(key); ok {
			logger.Debug().Int("status", cached.Status).Msg("backend response served from cache")
			hit := *cached
			hit.Cached = true
			return &hit, nil
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		te := c.failure(ctx, err, timeout, fullURL, method)
		c.metrics.ObserveRequest(method, te.Status)
		logger.Debug().Err(err).Int("status", te.Status).Dur("took", time.Since(start)).Msg("backend request failed")
		return nil, te
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		te := c.failure(ctx, err, timeout, fullURL, method)
		c.metrics.ObserveRequest(method, te.Status)
		logger.Debug().Err(err).Int("status", te.Status).Msg("reading backend response failed")
		return nil, te
	}
	c.metrics.ObserveRequest(method, resp.StatusCode)
	logger.Debug().Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(resp.StatusCode, resp.Header.Get("Content-Type"), data, method, fullURL)
	}

	out := &Response{
		Status:    resp.StatusCode,
		Header:    resp.Header.Clone(),
		NoContent: resp.StatusCode == http.StatusNoContent,
		JSON:      isJSON(resp.Header.Get("Content-Type")),
	}
	if !out.NoContent {
		out.Body = data
	}
	if useCache {
		c.cache.put(key, out)
	}
	return out, nil
}

// failure maps a transport level error. Running out of the client timeout
// becomes a 408; anything else, including caller cancellation, is status 0.
func (c *Client) failure(ctx context.Context, err error, timeout time.Duration, path, method string) *TransportError {
	if timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TransportError{Status: http.StatusRequestTimeout, Message: TimeoutMessage, Path: path, Method: method, Err: err}
	}
	msg := err.Error()
	if msg == "" {
		msg = "Unknown error occurred"
	}
	return &TransportError{Status: 0, Message: msg, Path: path, Method: method, Err: fmt.Errorf("[Client Do] %w", err)}
}
