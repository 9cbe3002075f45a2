package scan

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	consts "github.com/khanhnv2901/idprecon/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/idprecon/internal/shared/errors"
)

// ConfigError describes an invalid or missing configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match every ConfigError against ErrConfiguration.
func (e *ConfigError) Unwrap() error {
	return sharedErrors.ErrConfiguration
}

// Options is the raw, unvalidated input used to build a ScanConfig.
type Options struct {
	Domain             string
	ClientID           string
	TargetAppURL       string
	ConnectionWordlist string
	CustomConnections  []string
	ConnectionKeyword  string
	EnumerateUser      string
	OutputDir          string
	RateLimitDelay     time.Duration
	Workers            int
	Proxy              string
	UserAgent          string
	Cleanup            bool
	Phases             PhaseSet
	AttackerHost       string
	AppConnection      string
	ManagementToken    string
	RequestTimeout     time.Duration
	MaxRetries         int
	MaxRPS             float64
	TrustWordlist      bool
}

// DefaultOptions returns Options populated with the scanner defaults.
func DefaultOptions() Options {
	phases, _ := NewPhaseSet()
	return Options{
		OutputDir:      consts.DefaultOutputDir,
		RateLimitDelay: consts.DefaultRateLimitDelay,
		Workers:        consts.DefaultWorkers,
		UserAgent:      consts.DefaultUserAgent,
		Cleanup:        true,
		Phases:         phases,
		AttackerHost:   consts.DefaultAttackerHost,
		AppConnection:  consts.DefaultAppConnection,
		RequestTimeout: consts.DefaultRequestTimeout,
		MaxRetries:     consts.DefaultMaxRetries,
	}
}

// ScanConfig is the validated, immutable input of a scan run.
type ScanConfig struct {
	domain             string
	baseURL            string
	clientID           string
	targetAppURL       string
	connectionWordlist string
	customConnections  []string
	connectionKeyword  string
	enumerateUser      string
	outputDir          string
	rateLimitDelay     time.Duration
	workers            int
	proxy              string
	userAgent          string
	cleanup            bool
	phases             PhaseSet
	attackerHost       string
	appConnection      string
	managementToken    string
	requestTimeout     time.Duration
	maxRetries         int
	maxRPS             float64
	trustWordlist      bool
}

// NewScanConfig validates opts and freezes them into a ScanConfig.
// Every returned error matches ErrConfiguration.
func NewScanConfig(opts Options) (ScanConfig, error) {
	var errs []error

	domain, baseURL, err := normalizeDomain(opts.Domain)
	if err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(opts.ClientID) == "" {
		errs = append(errs, &ConfigError{Field: "client_id", Reason: "is required"})
	}
	targetApp, err := normalizeAppURL(opts.TargetAppURL)
	if err != nil {
		errs = append(errs, err)
	}
	if opts.Workers < 1 {
		errs = append(errs, &ConfigError{Field: "workers", Reason: "must be at least 1"})
	}
	if opts.RateLimitDelay < 0 {
		errs = append(errs, &ConfigError{Field: "rate_limit_delay", Reason: "must not be negative"})
	}
	if opts.MaxRetries < 0 {
		errs = append(errs, &ConfigError{Field: "max_retries", Reason: "must not be negative"})
	}
	if opts.MaxRPS < 0 {
		errs = append(errs, &ConfigError{Field: "max_rps", Reason: "must not be negative"})
	}
	if opts.Proxy != "" {
		if err := validateProxy(opts.Proxy); err != nil {
			errs = append(errs, err)
		}
	}
	if user := strings.TrimSpace(opts.EnumerateUser); user != "" && !strings.Contains(user, "@") {
		errs = append(errs, &ConfigError{Field: "enumerate_user", Reason: "must be an email address"})
	}
	if opts.TrustWordlist && len(opts.CustomConnections) == 0 {
		errs = append(errs, &ConfigError{Field: "trust_wordlist", Reason: "requires a connection wordlist"})
	}
	if len(errs) > 0 {
		return ScanConfig{}, errors.Join(errs...)
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = consts.DefaultRequestTimeout
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = consts.DefaultUserAgent
	}
	attackerHost := strings.ToLower(strings.TrimSpace(opts.AttackerHost))
	if attackerHost == "" {
		attackerHost = consts.DefaultAttackerHost
	}
	appConnection := strings.TrimSpace(opts.AppConnection)
	if appConnection == "" {
		appConnection = consts.DefaultAppConnection
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = consts.DefaultOutputDir
	}

	custom := make([]string, 0, len(opts.CustomConnections))
	for _, name := range opts.CustomConnections {
		if name = strings.TrimSpace(name); name != "" {
			custom = append(custom, name)
		}
	}

	return ScanConfig{
		domain:             domain,
		baseURL:            baseURL,
		clientID:           strings.TrimSpace(opts.ClientID),
		targetAppURL:       targetApp,
		connectionWordlist: opts.ConnectionWordlist,
		customConnections:  custom,
		connectionKeyword:  strings.TrimSpace(opts.ConnectionKeyword),
		enumerateUser:      strings.TrimSpace(opts.EnumerateUser),
		outputDir:          outputDir,
		rateLimitDelay:     opts.RateLimitDelay,
		workers:            opts.Workers,
		proxy:              opts.Proxy,
		userAgent:          userAgent,
		cleanup:            opts.Cleanup,
		phases:             opts.Phases,
		attackerHost:       attackerHost,
		appConnection:      appConnection,
		managementToken:    opts.ManagementToken,
		requestTimeout:     timeout,
		maxRetries:         opts.MaxRetries,
		maxRPS:             opts.MaxRPS,
		trustWordlist:      opts.TrustWordlist,
	}, nil
}

// normalizeDomain accepts "tenant.example.com" or a full origin such as
// "http://127.0.0.1:8080" and returns the host plus the base URL to probe.
func normalizeDomain(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", &ConfigError{Field: "domain", Reason: "is required"}
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || u.Host == "" {
		return "", "", &ConfigError{Field: "domain", Reason: fmt.Sprintf("%q is not a valid host", raw)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", &ConfigError{Field: "domain", Reason: "scheme must be http or https"}
	}
	if u.Path != "" || u.RawQuery != "" {
		return "", "", &ConfigError{Field: "domain", Reason: "must not contain a path or query"}
	}
	return strings.ToLower(u.Host), u.Scheme + "://" + strings.ToLower(u.Host), nil
}

func normalizeAppURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ConfigError{Field: "target_app", Reason: "is required"}
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", &ConfigError{Field: "target_app", Reason: fmt.Sprintf("%q is not an absolute URL", raw)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &ConfigError{Field: "target_app", Reason: "scheme must be http or https"}
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func validateProxy(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return &ConfigError{Field: "proxy", Reason: fmt.Sprintf("%q is not a valid proxy URL", raw)}
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
		return nil
	default:
		return &ConfigError{Field: "proxy", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
}

// Getters

func (c ScanConfig) Domain() string {
	return c.domain
}

// BaseURL is the tenant origin every tenant-level probe is sent to.
func (c ScanConfig) BaseURL() string {
	return c.baseURL
}

func (c ScanConfig) ClientID() string {
	return c.clientID
}

func (c ScanConfig) TargetAppURL() string {
	return c.targetAppURL
}

func (c ScanConfig) ConnectionWordlist() string {
	return c.connectionWordlist
}

// CustomConnections returns the connection names loaded from the wordlist file.
func (c ScanConfig) CustomConnections() []string {
	out := make([]string, len(c.customConnections))
	copy(out, c.customConnections)
	return out
}

func (c ScanConfig) ConnectionKeyword() string {
	return c.connectionKeyword
}

func (c ScanConfig) EnumerateUser() string {
	return c.enumerateUser
}

func (c ScanConfig) OutputDir() string {
	return c.outputDir
}

func (c ScanConfig) RateLimitDelay() time.Duration {
	return c.rateLimitDelay
}

func (c ScanConfig) Workers() int {
	return c.workers
}

func (c ScanConfig) Proxy() string {
	return c.proxy
}

func (c ScanConfig) UserAgent() string {
	return c.userAgent
}

func (c ScanConfig) Cleanup() bool {
	return c.cleanup
}

func (c ScanConfig) Phases() PhaseSet {
	return c.phases
}

func (c ScanConfig) AttackerHost() string {
	return c.attackerHost
}

func (c ScanConfig) AppConnection() string {
	return c.appConnection
}

func (c ScanConfig) ManagementToken() string {
	return c.managementToken
}

func (c ScanConfig) RequestTimeout() time.Duration {
	return c.requestTimeout
}

func (c ScanConfig) MaxRetries() int {
	return c.maxRetries
}

func (c ScanConfig) MaxRPS() float64 {
	return c.maxRPS
}

func (c ScanConfig) TrustWordlist() bool {
	return c.trustWordlist
}
