package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TimeoutMessage is the message of the synthetic 408 produced when an
// interactive request runs out of time.
const TimeoutMessage = "Request timeout"

// TransportError is returned for every failed backend call. Status is 0 when
// the request never got a response.
type TransportError struct {
	Status  int
	Message string
	Path    string
	Method  string
	// Data is the decoded error body: json.RawMessage for JSON bodies,
	// string for text bodies, nil otherwise.
	Data any
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusOf returns the status of a TransportError in err's chain, or -1.
func StatusOf(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return -1
}

func IsNetworkFailure(err error) bool { return StatusOf(err) == 0 }
func IsTimeout(err error) bool        { return StatusOf(err) == http.StatusRequestTimeout }
func IsUnauthorized(err error) bool   { return StatusOf(err) == http.StatusUnauthorized }

// IsValidation reports a 4xx other than 401 and 408.
func IsValidation(err error) bool {
	s := StatusOf(err)
	return s >= 400 && s < 500 && s != http.StatusUnauthorized && s != http.StatusRequestTimeout
}

func IsServerFailure(err error) bool {
	s := StatusOf(err)
	return s >= 500 && s < 600
}

// errorFromResponse builds the error for a non-2xx response. The message
// prefers the body's "message", then "detail", then a text body, then the
// status text.
func errorFromResponse(status int, contentType string, body []byte, method, path string) *TransportError {
	te := &TransportError{Status: status, Path: path, Method: method}
	if isJSON(contentType) {
		te.Data = json.RawMessage(body)
		te.Message = messageFromJSON(body)
	} else if text := strings.TrimSpace(string(body)); text != "" {
		te.Data = string(body)
		te.Message = text
	}
	if te.Message == "" {
		te.Message = http.StatusText(status)
	}
	return te
}

func messageFromJSON(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Detail  json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, raw := range []json.RawMessage{payload.Message, payload.Detail} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		// FastAPI validation errors put a list under "detail".
		return string(raw)
	}
	return ""
}
