package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/osonify-auth/api"
	"github.com/jrsteele09/osonify-auth/authapi"
	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/login"
	"github.com/jrsteele09/osonify-auth/session"
	"github.com/jrsteele09/osonify-auth/token/cookiestore"
	"github.com/jrsteele09/osonify-auth/token/refresh"
	"github.com/jrsteele09/osonify-auth/transport"
)

// requestSession is the token store, refresh coordinator and session for a
// single incoming request. Nothing in it outlives the request.
type requestSession struct {
	ctx         context.Context
	store       *cookiestore.Store
	coordinator *refresh.Coordinator
	service     *authapi.Service
	manager     *session.Manager
	flows       *login.Flows
}

func (s *Server) newRequestSession(w http.ResponseWriter, r *http.Request) *requestSession {
	prefix := s.config.GetAPIPrefix()
	store := cookiestore.New(r, w, s.config)

	coordinator := refresh.NewCoordinator(store, authapi.New(s.transport, prefix),
		refresh.WithLogger(s.logger),
		refresh.WithMetrics(s.metrics),
	)
	service := authapi.New(api.New(s.transport, store, coordinator, api.WithLogger(s.logger)), prefix)
	manager := session.NewManager(store, session.WithBackend(service), session.WithLogger(s.logger))
	manager.Bind(coordinator)

	return &requestSession{
		ctx:         transport.WithIncomingCookies(r.Context(), r.Header.Get("Cookie")),
		store:       store,
		coordinator: coordinator,
		service:     service,
		manager:     manager,
		flows: login.New(service, store, manager,
			login.WithMetrics(s.metrics),
			login.WithLogger(s.logger),
			login.WithDebugMode(s.config.GetDebugMode()),
		),
	}
}

// authResponse reports the session's tokens in the backend's login shape.
func (rs *requestSession) authResponse() authmodel.AuthResponse {
	snap := rs.manager.Snapshot()
	body := authmodel.AuthResponse{}
	if snap.User != nil {
		body.ID = snap.User.ID
	}
	if snap.Tokens != nil {
		body.Token = *snap.Tokens
	}
	return body
}
