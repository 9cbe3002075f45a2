package classifier

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// classifyRedirect decides whether a redirect lands on the injected host.
// Only an exact host match counts; the injected string showing up in a path
// or query of the Location is SAFE. Without an injected host (script URI
// attempts) any non-script Location is SAFE.
func classifyRedirect(resp Response, body errorBody) Outcome {
	location := ""
	if resp.Header != nil {
		location = resp.Header.Get("Location")
	}
	if location == "" {
		if resp.StatusCode == http.StatusOK && body.isJSON && !body.hasError() {
			return Unclear
		}
		return Safe
	}
	if isScriptURI(location) {
		return Vulnerable
	}
	target := NormalizeHostname(resp.InjectedHost)
	if target == "" {
		return Safe
	}
	if NormalizeHost(location) == target {
		return Vulnerable
	}
	return Safe
}

// NormalizeHost extracts the host a browser would navigate to when following
// location. Backslashes are read as slashes and protocol-relative URLs are
// resolved against https. Relative locations return "".
func NormalizeHost(location string) string {
	loc := strings.TrimSpace(location)
	loc = strings.ReplaceAll(loc, "\\", "/")
	if strings.HasPrefix(loc, "//") {
		loc = "https:" + loc
	}
	u, err := url.Parse(loc)
	if err != nil || u.Host == "" {
		return ""
	}
	return NormalizeHostname(u.Hostname())
}

// NormalizeHostname lower-cases host and strips any port and trailing dot.
func NormalizeHostname(host string) string {
	h := strings.TrimSpace(strings.ToLower(host))
	if h == "" {
		return ""
	}
	if strings.Contains(h, "://") {
		if u, err := url.Parse(h); err == nil {
			h = u.Hostname()
		}
	}
	if splitHost, _, err := net.SplitHostPort(h); err == nil {
		h = splitHost
	}
	h = strings.Trim(h, "[]")
	return strings.TrimSuffix(h, ".")
}

// isScriptURI reports whether location navigates to a javascript: URI.
func isScriptURI(location string) bool {
	loc := strings.ToLower(strings.TrimSpace(location))
	return strings.HasPrefix(loc, "javascript:")
}
