package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	sharedErrors "github.com/khanhnv2901/idprecon/internal/shared/errors"
)

// NewHTTPClient builds the client used for probes: no redirect following,
// per-request timeout, and an optional HTTP(S) or SOCKS5 proxy.
func NewHTTPClient(timeout time.Duration, proxyURL string) (*http.Client, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
	}

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("%w: proxy %q", sharedErrors.ErrConfiguration, proxyURL)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		case "socks5", "socks5h":
			socks, err := proxy.FromURL(u, dialer)
			if err != nil {
				return nil, fmt.Errorf("%w: socks proxy: %v", sharedErrors.ErrConfiguration, err)
			}
			transport.DialContext = socksDialContext(socks)
		default:
			return nil, fmt.Errorf("%w: unsupported proxy scheme %q", sharedErrors.ErrConfiguration, u.Scheme)
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

func socksDialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}
