package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/internal/errors"
	"github.com/jrsteele09/osonify-auth/login"
	"github.com/jrsteele09/osonify-auth/token"
	"github.com/jrsteele09/osonify-auth/transport"
)

// TelegramLoginHandler exchanges a widget payload for tokens and answers
// with the backend's login response.
func (s *Server) TelegramLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var data authmodel.TelegramLoginData
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data.ID == 0 || data.Hash == "" || data.AuthDate == 0 {
			writeJSON(w, http.StatusUnprocessableEntity, detailBody{Detail: "Invalid Telegram data"})
			return
		}

		rs := s.newRequestSession(w, r)
		if err := rs.flows.Widget(rs.ctx, data); err != nil {
			writeJSON(w, http.StatusInternalServerError, detailBody{Detail: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, rs.authResponse())
	}
}

// WebAppLoginHandler exchanges Mini-App init data for tokens.
func (s *Server) WebAppLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initData := r.URL.Query().Get("init_data")
		if initData == "" {
			writeJSON(w, http.StatusUnprocessableEntity, detailBody{Detail: "init_data is required"})
			return
		}

		rs := s.newRequestSession(w, r)
		if err := rs.flows.MiniApp(rs.ctx, initData); err != nil {
			writeJSON(w, http.StatusInternalServerError, detailBody{Detail: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, rs.authResponse())
	}
}

// RefreshHandler rotates the cookie pair and refreshes the profile cookie.
// Any failure clears the cookies and sends the visitor to the login page.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loginPage := localePath(requestLocale(r), s.config.GetLoginPath())
		rs := s.newRequestSession(w, r)

		pair, err := rs.store.Get()
		if err != nil || pair == nil || pair.RefreshToken == "" {
			redirectTo(w, r, loginPage)
			return
		}
		if _, err := rs.coordinator.Refresh(rs.ctx, pair.AccessToken); err != nil {
			s.logger.Err(err).Msg("[Server RefreshHandler] refresh failed")
			redirectTo(w, r, loginPage)
			return
		}

		profile, err := rs.service.Profile(rs.ctx)
		if err != nil {
			s.logger.Err(err).Msg("[Server RefreshHandler] profile after refresh")
		} else {
			rs.manager.SetUser(*profile)
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// LogoutHandler revokes the pair on the backend, clears the cookies and
// redirects to the login page.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs := s.newRequestSession(w, r)
		if err := rs.manager.Logout(rs.ctx); err != nil {
			s.logger.Err(err).Msg("[Server LogoutHandler] clear session")
		}
		redirectTo(w, r, localePath(requestLocale(r), s.config.GetLoginPath()))
	}
}

type debugLoginBody struct {
	AccessToken    string                 `json:"access_token"`
	SkipValidation bool                   `json:"skip_validation,omitempty"`
	User           *authmodel.UserProfile `json:"user,omitempty"`
}

// DebugLoginHandler logs in with a pasted token. It answers 403 unless the
// build and the configuration both allow debug login.
func (s *Server) DebugLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !login.DebugAvailable || !s.config.GetDebugMode() {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "Debug login is only available in development"})
			return
		}

		var body debugLoginBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AccessToken == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "access_token is required"})
			return
		}

		rs := s.newRequestSession(w, r)
		if err := rs.flows.Debug(rs.ctx, body.AccessToken, body.SkipValidation); err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Invalid token", Message: err.Error()})
			return
		}
		if body.User != nil {
			rs.manager.SetUser(*body.User)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"user":    rs.manager.Snapshot().User,
		})
	}
}

// CurrentUserHandler answers with the signed-in user, or null and 401.
// The profile cookie is used when present; otherwise the backend is asked
// and the answer is mirrored into the cookie.
func (s *Server) CurrentUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs := s.newRequestSession(w, r)

		user, err := rs.store.GetUser()
		if err != nil {
			s.logger.Err(err).Msg("[Server CurrentUserHandler] read profile cookie")
		}
		if user != nil && token.AccessToken(rs.store) != "" {
			writeJSON(w, http.StatusOK, user)
			return
		}
		if token.AccessToken(rs.store) == "" {
			writeJSON(w, http.StatusUnauthorized, nil)
			return
		}

		profile, err := rs.service.Profile(rs.ctx)
		switch {
		case err == nil:
			rs.manager.SetUser(*profile)
			writeJSON(w, http.StatusOK, rs.manager.Snapshot().User)
		case transport.IsUnauthorized(err) || errors.Is(err, errors.ErrAuthExpired):
			writeJSON(w, http.StatusUnauthorized, nil)
		default:
			s.logger.Err(err).Msg("[Server CurrentUserHandler] fetch profile")
			writeJSON(w, http.StatusBadGateway, detailBody{Detail: err.Error()})
		}
	}
}
