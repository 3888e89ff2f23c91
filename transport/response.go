package transport

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// Response is a successful backend response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	// NoContent is set for 204 responses; Body is empty.
	NoContent bool
	// JSON is set when the response declared a JSON content type.
	JSON bool
	// Cached is set when the response came from the shared cache.
	Cached bool
}

// Decode unmarshals a JSON body into v. A 204 leaves v untouched. A text
// body can only be decoded into *string.
func (r *Response) Decode(v any) error {
	if r == nil || r.NoContent || v == nil {
		return nil
	}
	if r.JSON {
		if len(r.Body) == 0 {
			return nil
		}
		if err := json.Unmarshal(r.Body, v); err != nil {
			return fmt.Errorf("[Response Decode] %w", err)
		}
		return nil
	}
	if s, ok := v.(*string); ok {
		*s = string(r.Body)
		return nil
	}
	return fmt.Errorf("[Response Decode] cannot decode %q body into %T", r.Header.Get("Content-Type"), v)
}

// Text returns the body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
