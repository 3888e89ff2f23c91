package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
)

const defaultLocale = "en"

var (
	// localePrefix matches a supported locale as the first path segment.
	localePrefix = regexp.MustCompile(`^/(en|ru|uz)(/|$)`)
	// refererLocale matches a supported locale anywhere in a Referer URL.
	refererLocale = regexp.MustCompile(`/(en|ru|uz)/`)
)

// splitLocale separates a leading locale segment from the page path.
func splitLocale(path string) (locale, page string) {
	m := localePrefix.FindStringSubmatch(path)
	if m == nil {
		return defaultLocale, path
	}
	page = strings.TrimPrefix(path, "/"+m[1])
	if page == "" {
		page = "/"
	}
	return m[1], page
}

// requestLocale reads the locale of the page that issued an API request.
func requestLocale(r *http.Request) string {
	if m := refererLocale.FindStringSubmatch(r.Header.Get("Referer")); m != nil {
		return m[1]
	}
	return defaultLocale
}

func localePath(locale, page string) string {
	return "/" + locale + "/" + strings.TrimPrefix(page, "/")
}

func redirectTo(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// detailBody matches the backend's own error shape.
type detailBody struct {
	Detail string `json:"detail"`
}
