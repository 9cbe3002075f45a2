package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	sharedErrors "github.com/khanhnv2901/idprecon/internal/shared/errors"
)

// Key attributes a probe to exactly one (phase, check, connection) triple.
type Key struct {
	Phase      int
	Check      string
	Connection string
}

func (k Key) String() string {
	if k.Connection == "" {
		return fmt.Sprintf("phase%d/%s", k.Phase, k.Check)
	}
	return fmt.Sprintf("phase%d/%s/%s", k.Phase, k.Check, k.Connection)
}

// Request describes one HTTP call. It is a value; the Executor builds a fresh
// *http.Request per attempt.
type Request struct {
	Key    Key
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewGetRequest builds a GET probe for rawURL.
func NewGetRequest(key Key, rawURL string) Request {
	return Request{
		Key:    key,
		Method: http.MethodGet,
		URL:    rawURL,
		Header: http.Header{"Accept": []string{"application/json"}},
	}
}

// NewJSONRequest builds a probe whose body is payload encoded as JSON.
func NewJSONRequest(key Key, method, rawURL string, payload any) (Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("%w: encode body: %v", sharedErrors.ErrInvalidRequest, err)
	}
	return Request{
		Key:    key,
		Method: method,
		URL:    rawURL,
		Header: http.Header{
			"Content-Type": []string{"application/json"},
			"Accept":       []string{"application/json"},
		},
		Body: body,
	}, nil
}

// WithHeader returns a copy of r with header name set to value.
func (r Request) WithHeader(name, value string) Request {
	h := r.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(name, value)
	r.Header = h
	return r
}

// Summary renders the request for evidence: method and path plus query, with
// credentials in the body left out.
func (r Request) Summary() string {
	target := r.URL
	if u, err := url.Parse(r.URL); err == nil {
		target = u.RequestURI()
	}
	return strings.TrimSpace(r.Method + " " + target)
}

func (r Request) build(ctx context.Context) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, err
	}
	for name, values := range r.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	return req, nil
}
