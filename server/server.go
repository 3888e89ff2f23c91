// Package server is the backend-for-frontend: the /api/auth routes that
// keep the session in HttpOnly cookies and the guard in front of pages.
package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/osonify-auth/internal/config"
	"github.com/jrsteele09/osonify-auth/metrics"
	"github.com/jrsteele09/osonify-auth/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Option func(*Server)

// WithTransport replaces the backend client built from the configuration.
func WithTransport(c *transport.Client) Option {
	return func(s *Server) {
		s.transport = c
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithPages sets the handler for everything outside /api/auth. Requests
// reach it only after the session guard.
func WithPages(h http.Handler) Option {
	return func(s *Server) {
		s.pages = h
	}
}

type Server struct {
	env       string // Environment (e.g., "DEV", "production")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	transport *transport.Client
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	pages     http.Handler
}

func New(cfg config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("[Server New] invalid configuration: %w", err)
	}

	s := &Server{
		env:    cfg.GetEnv(),
		mux:    http.NewServeMux(),
		config: cfg,
		logger: log.Logger,
		pages:  http.NotFoundHandler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.transport == nil {
		s.transport = transport.NewFromConfig(cfg, transport.ModeServer,
			transport.WithLogger(s.logger),
			transport.WithMetrics(s.metrics),
		)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	displayMethod := Gray + fmt.Sprintf(" %-7s", method) + ResetColor
	if color, ok := methodColors[method]; ok {
		displayMethod = color + fmt.Sprintf(" %-7s", method) + ResetColor
	}
	s.logger.Info().Msgf("[%-19s] %s", displayMethod, path)
}
