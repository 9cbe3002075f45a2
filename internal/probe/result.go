package probe

import (
	"net/http"
	"time"

	"github.com/khanhnv2901/idprecon/internal/classifier"
	consts "github.com/khanhnv2901/idprecon/internal/shared/constants"
)

// Result is the outcome of one Execute call. Exactly one of a response
// (StatusCode > 0) or Failure is set.
type Result struct {
	Key        Key
	Request    string
	StatusCode int
	Header     http.Header
	Body       []byte
	Elapsed    time.Duration
	Attempts   int
	Failure    *Failure
}

// Failed reports whether the probe ended without a usable response.
func (r Result) Failed() bool {
	return r.Failure != nil
}

// Response converts the result into classifier input. injectedHost is the
// attacker host planted in the request, if any.
func (r Result) Response(injectedHost string) classifier.Response {
	return classifier.Response{
		StatusCode:   r.StatusCode,
		Header:       r.Header,
		Body:         r.Body,
		InjectedHost: injectedHost,
	}
}

// Excerpt returns the start of the body, bounded for evidence.
func (r Result) Excerpt() string {
	if r.Failure != nil {
		return r.Failure.Error()
	}
	if len(r.Body) <= consts.EvidenceExcerptBytes {
		return string(r.Body)
	}
	return string(r.Body[:consts.EvidenceExcerptBytes]) + "..."
}
