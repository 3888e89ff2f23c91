package config

import (
	"strings"
	"time"
)

const (
	apiBaseURLVar     = "API_BASE_URL"
	apiPrefixVar      = "API_PREFIX"
	requestTimeoutVar = "REQUEST_TIMEOUT"

	defaultAPIBaseURL = "https://api.osonify.ai"
)

type TransportConfig interface {
	GetAPIBaseURL() string
	GetAPIPrefix() string
	GetRequestTimeout() time.Duration
}

type Transport struct{ source }

var _ TransportConfig = Transport{}

func (t Transport) GetAPIBaseURL() string {
	return strings.TrimRight(t.get(apiBaseURLVar, defaultAPIBaseURL), "/")
}

// GetAPIPrefix is prepended to every backend endpoint path (e.g. "/api/v1").
func (t Transport) GetAPIPrefix() string {
	return strings.TrimRight(t.get(apiPrefixVar, "/api/v1"), "/")
}

// GetRequestTimeout applies to interactive requests only.
func (t Transport) GetRequestTimeout() time.Duration {
	return t.getDuration(requestTimeoutVar, 15*time.Second)
}
