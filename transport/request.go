package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request is a pending request. Its body is held as bytes so it can be sent
// again when the session manager retries it after a refresh.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	// Retried is set once the request has been re-issued after a 401.
	// A request is retried at most once.
	Retried bool

	// Anonymous requests carry no session credentials and are never
	// refreshed. Session endpoints use it.
	Anonymous bool
}

// NewRequest builds a request without a body.
func NewRequest(method, path string) *Request {
	return &Request{Method: method, Path: path, Header: http.Header{}}
}

// NewJSONRequest builds a request with a JSON encoded body.
func NewJSONRequest(method, path string, body any) (*Request, error) {
	req := NewRequest(method, path)
	if body == nil {
		return req, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	req.Body = b
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (r *Request) httpRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	target := baseURL + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, err
	}
	for k, values := range r.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	return httpReq, nil
}

// Response is a received response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Request    *Request
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// BearerToken returns the token carried in an Authorization header, if any.
func BearerToken(h http.Header) string {
	auth := h.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
