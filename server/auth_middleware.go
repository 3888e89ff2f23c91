package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/osonify-auth/token/cookiestore"
)

// RequireSession guards page routes. Without an access_token cookie the
// visitor is sent to the login page of their locale; with one, the login
// page sends them home. Public routes pass through either way.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			locale, page := splitLocale(r.URL.Path)
			loginPath := s.config.GetLoginPath()
			hasToken := hasCookie(r, cookiestore.AccessCookieName)

			if hasToken && page == loginPath {
				redirectTo(w, r, localePath(locale, RouteHome))
				return
			}
			if isPublicRoute(page, loginPath) || strings.HasPrefix(r.URL.Path, "/api/") {
				next(w, r)
				return
			}
			if !hasToken {
				redirectTo(w, r, localePath(locale, loginPath))
				return
			}
			next(w, r)
		}
	}
}

func isPublicRoute(page, loginPath string) bool {
	return strings.HasPrefix(page, loginPath) || strings.HasPrefix(page, RouteAuthPrefix)
}

func hasCookie(r *http.Request, name string) bool {
	c, err := r.Cookie(name)
	return err == nil && c.Value != ""
}
