package scan

import (
	"time"

	"github.com/khanhnv2901/idprecon/internal/domain/finding"
)

// ScanReport is the frozen result tree of one scan. Phase blocks are nil when
// the phase was not selected, so they disappear from the serialized document.
type ScanReport struct {
	Metadata    Metadata          `json:"scan_metadata" yaml:"scan_metadata"`
	Phase1      *ReconBlock       `json:"phase1_reconnaissance,omitempty" yaml:"phase1_reconnaissance,omitempty"`
	Phase2      *DiscoveryBlock   `json:"phase2_connections,omitempty" yaml:"phase2_connections,omitempty"`
	Phase3      *ConnectionsBlock `json:"phase3_per_connection,omitempty" yaml:"phase3_per_connection,omitempty"`
	Phase4      *ApplicationBlock `json:"phase4_application_attacks,omitempty" yaml:"phase4_application_attacks,omitempty"`
	RiskSummary RiskSummary       `json:"risk_summary" yaml:"risk_summary"`
	Findings    []finding.Record  `json:"findings" yaml:"findings"`
}

// Metadata describes the run itself.
type Metadata struct {
	ScanID           string          `json:"scan_id" yaml:"scan_id"`
	TargetDomain     string          `json:"target_domain" yaml:"target_domain"`
	ClientID         string          `json:"client_id" yaml:"client_id"`
	TargetAppURL     string          `json:"target_app_url" yaml:"target_app_url"`
	Phases           []int           `json:"phases" yaml:"phases"`
	ScanStart        time.Time       `json:"scan_start" yaml:"scan_start"`
	ScanEnd          time.Time       `json:"scan_end" yaml:"scan_end"`
	DurationSeconds  float64         `json:"scan_duration_seconds" yaml:"scan_duration_seconds"`
	TotalRequests    int             `json:"total_requests" yaml:"total_requests"`
	RateLimitedCount int             `json:"rate_limited_count" yaml:"rate_limited_count"`
	ErrorCount       int             `json:"error_count" yaml:"error_count"`
	Canceled         bool            `json:"canceled,omitempty" yaml:"canceled,omitempty"`
	Cleanup          *CleanupSummary `json:"cleanup,omitempty" yaml:"cleanup,omitempty"`
}

// CleanupSummary reports what happened to the test accounts a scan created.
type CleanupSummary struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	Registered int      `json:"registered" yaml:"registered"`
	Deleted    int      `json:"deleted" yaml:"deleted"`
	Failed     []string `json:"failed,omitempty" yaml:"failed,omitempty"`
	Pending    []string `json:"pending,omitempty" yaml:"pending,omitempty"`
	Reason     string   `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// OpenIDSummary is what Phase 1 learned from the discovery document.
type OpenIDSummary struct {
	Issuer               string            `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	GrantTypesSupported  []string          `json:"grant_types_supported" yaml:"grant_types_supported"`
	SigningAlgorithms    []string          `json:"id_token_signing_alg_values_supported" yaml:"id_token_signing_alg_values_supported"`
	PasswordGrantEnabled bool              `json:"password_grant_enabled" yaml:"password_grant_enabled"`
	WeakAlgorithms       []string          `json:"weak_algorithms" yaml:"weak_algorithms"`
	Endpoints            map[string]string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
}

// RedirectSummary records an open-redirect sweep.
type RedirectSummary struct {
	Tested          int      `json:"total_tested" yaml:"total_tested"`
	FirstVulnerable string   `json:"first_vulnerable,omitempty" yaml:"first_vulnerable,omitempty"`
	Vulnerable      []string `json:"vulnerable_bypasses" yaml:"vulnerable_bypasses"`
	Unclear         []string `json:"unclear,omitempty" yaml:"unclear,omitempty"`
	Errors          []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// CORSSummary records the token endpoint's CORS behaviour.
type CORSSummary struct {
	AllowOrigin      string   `json:"allow_origin,omitempty" yaml:"allow_origin,omitempty"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials"`
	AllowsAnyOrigin  bool     `json:"allows_wildcard_origin" yaml:"allows_wildcard_origin"`
	ReflectsOrigin   bool     `json:"reflects_attacker_origin" yaml:"reflects_attacker_origin"`
	Issues           []string `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// ReconBlock is the Phase 1 result block.
type ReconBlock struct {
	OpenID   *OpenIDSummary   `json:"openid_configuration,omitempty" yaml:"openid_configuration,omitempty"`
	CORS     *CORSSummary     `json:"cors,omitempty" yaml:"cors,omitempty"`
	Redirect *RedirectSummary `json:"open_redirect,omitempty" yaml:"open_redirect,omitempty"`
	Checks   []CheckRecord    `json:"checks" yaml:"checks"`
}

// UnclearCandidate is a connection name discovery could not resolve.
type UnclearCandidate struct {
	Name       string     `json:"name" yaml:"name"`
	Provenance Provenance `json:"provenance" yaml:"provenance"`
	Reason     string     `json:"reason" yaml:"reason"`
}

// DiscoveryBlock is the Phase 2 result block.
type DiscoveryBlock struct {
	Method               string             `json:"method_used" yaml:"method_used"`
	PasswordGrantEnabled bool               `json:"password_grant_enabled" yaml:"password_grant_enabled"`
	Keyword              string             `json:"used_combinations_for,omitempty" yaml:"used_combinations_for,omitempty"`
	TotalTested          int                `json:"total_tested" yaml:"total_tested"`
	Found                []string           `json:"discovered_connections" yaml:"discovered_connections"`
	NotFound             []string           `json:"not_found" yaml:"not_found"`
	Unclear              []UnclearCandidate `json:"unclear" yaml:"unclear"`
	Checks               []CheckRecord      `json:"checks" yaml:"checks"`
}

// ConnectionsBlock is the Phase 3 result block.
type ConnectionsBlock struct {
	Source   string              `json:"source" yaml:"source"`
	Note     string              `json:"note,omitempty" yaml:"note,omitempty"`
	Profiles []ConnectionProfile `json:"connections" yaml:"connections"`
}

// ApplicationBlock is the Phase 4 result block.
type ApplicationBlock struct {
	TargetAppURL string           `json:"target_app_url" yaml:"target_app_url"`
	AppRedirect  *RedirectSummary `json:"app_open_redirect,omitempty" yaml:"app_open_redirect,omitempty"`
	Logout       *RedirectSummary `json:"logout_return_to,omitempty" yaml:"logout_return_to,omitempty"`
	Checks       []CheckRecord    `json:"checks" yaml:"checks"`
}

// RiskSummary aggregates the active findings of a report.
type RiskSummary struct {
	OverallRisk      finding.Severity `json:"overall_risk" yaml:"overall_risk"`
	CriticalFindings int              `json:"critical_findings" yaml:"critical_findings"`
	HighFindings     int              `json:"high_findings" yaml:"high_findings"`
	MediumFindings   int              `json:"medium_findings" yaml:"medium_findings"`
	LowFindings      int              `json:"low_findings" yaml:"low_findings"`
	InfoFindings     int              `json:"info_findings" yaml:"info_findings"`
	TotalChecks      int              `json:"total_checks" yaml:"total_checks"`
	VulnerableChecks int              `json:"vulnerable_checks" yaml:"vulnerable_checks"`
	SkippedChecks    int              `json:"skipped_checks" yaml:"skipped_checks"`
	FailedChecks     int              `json:"failed_checks" yaml:"failed_checks"`
	Recommendations  []string         `json:"recommendations" yaml:"recommendations"`
}

// Count returns the number of active findings with the given severity.
func (r RiskSummary) Count(s finding.Severity) int {
	switch s {
	case finding.SeverityCritical:
		return r.CriticalFindings
	case finding.SeverityHigh:
		return r.HighFindings
	case finding.SeverityMedium:
		return r.MediumFindings
	case finding.SeverityLow:
		return r.LowFindings
	case finding.SeverityInfo:
		return r.InfoFindings
	default:
		return 0
	}
}
