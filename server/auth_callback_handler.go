package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/login"
)

// callbackBody is either a raw widget payload or the result of a login the
// client already completed (type, tokens and user all set).
type callbackBody struct {
	authmodel.TelegramLoginData
	Type   string                 `json:"type,omitempty"`
	Tokens *authmodel.TokenPair   `json:"tokens,omitempty"`
	User   *authmodel.UserProfile `json:"user,omitempty"`
}

// TelegramCallbackHandler completes the login widget flow. GET carries the
// widget fields as query parameters, POST as JSON.
func (s *Server) TelegramCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var data authmodel.TelegramLoginData
		if r.Method == http.MethodPost {
			var body callbackBody
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body", Message: err.Error()})
				return
			}
			if body.Type != "" && body.Tokens != nil && body.User != nil {
				s.acceptClientLogin(w, r, body)
				return
			}
			data = body.TelegramLoginData
		} else {
			parsed, err := login.ParseWidgetQuery(r.URL.Query())
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "Missing required Telegram data", Message: err.Error()})
				return
			}
			data = parsed
		}

		if data.ID == 0 || data.FirstName == "" || data.Hash == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Missing required Telegram data"})
			return
		}

		rs := s.newRequestSession(w, r)
		if err := rs.flows.Widget(rs.ctx, data); err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Authentication failed", Message: err.Error()})
			return
		}
		redirectTo(w, r, localePath(requestLocale(r), RouteHome))
	}
}

// acceptClientLogin stores a pair the client obtained itself.
func (s *Server) acceptClientLogin(w http.ResponseWriter, r *http.Request, body callbackBody) {
	rs := s.newRequestSession(w, r)
	if err := rs.manager.SetAuth(authmodel.AuthResponse{ID: body.User.ID, Token: *body.Tokens}, *body.User); err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Authentication failed", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"redirect": localePath(requestLocale(r), RouteHome),
	})
}
