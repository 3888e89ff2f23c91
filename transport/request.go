package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/jrsteele09/osonify-auth/internal/errors"
)

// CachePolicy mirrors the fetch cache modes the backend client supports.
type CachePolicy string

const (
	// CacheDefault means use the mode's default.
	CacheDefault CachePolicy = ""
	// CacheForce serves GET responses from the shared response cache.
	CacheForce CachePolicy = "force-cache"
	// CacheNoStore always goes to the network and stores nothing.
	CacheNoStore CachePolicy = "no-store"
)

// Request describes one backend call.
type Request struct {
	Path   string
	Method string
	// Body is omitted when nil. []byte, string, io.Reader and
	// *MultipartBody are sent as they are; anything else is encoded as JSON.
	Body any
	// RequireAuth defaults to true when nil.
	RequireAuth *bool
	Headers     http.Header
	Cache       CachePolicy
	// Timeout overrides the client timeout for interactive requests.
	Timeout time.Duration
}

// AuthRequired reports whether the request should carry a bearer token.
func (r Request) AuthRequired() bool {
	return r.RequireAuth == nil || *r.RequireAuth
}

// WithHeader returns a copy of r with the header set.
func (r Request) WithHeader(key, value string) Request {
	h := r.Headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(key, value)
	r.Headers = h
	return r
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// MultipartFile is one file part of a MultipartBody.
type MultipartFile struct {
	Field    string
	FileName string
	Content  io.Reader
}

// MultipartBody is sent as multipart/form-data with its own boundary.
type MultipartBody struct {
	Fields map[string]string
	Files  []MultipartFile
}

func (m *MultipartBody) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range m.Fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("[MultipartBody encode] field %s: %w", k, err)
		}
	}
	for _, f := range m.Files {
		part, err := mw.CreateFormFile(f.Field, f.FileName)
		if err != nil {
			return nil, "", fmt.Errorf("[MultipartBody encode] file %s: %w", f.FileName, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("[MultipartBody encode] copy %s: %w", f.FileName, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("[MultipartBody encode] close: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// encodeBody returns the body reader and the content type to set, if any.
func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case *MultipartBody:
		if b == nil {
			return nil, "", nil
		}
		return b.encode()
	case []byte:
		return bytes.NewReader(b), "", nil
	case string:
		return bytes.NewReader([]byte(b)), "", nil
	case io.Reader:
		return b, "", nil
	case json.RawMessage:
		return bytes.NewReader(b), "application/json", nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", errors.Wrapf(errors.ErrUnsupportedBodyValue, "%T: %v", body, err)
	}
	return bytes.NewReader(data), "application/json", nil
}
