package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/khanhnv2901/idprecon/internal/classifier"
	"github.com/khanhnv2901/idprecon/internal/domain/finding"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/probe"
)

// weakSigningAlgorithms are id_token algorithms that should never be
// advertised by a tenant serving public clients.
var weakSigningAlgorithms = []string{"none", "HS256"}

// Recon runs the Phase 1 tenant checks.
type Recon struct {
	prober Prober
	target Target
	logger *zap.Logger
}

// NewRecon creates the Phase 1 checks.
func NewRecon(prober Prober, target Target, logger *zap.Logger) *Recon {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recon{prober: prober, target: target, logger: logger.With(zap.Int("phase", int(scan.PhaseRecon)))}
}

type openIDDocument struct {
	Issuer                string   `json:"issuer"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	UserinfoEndpoint      string   `json:"userinfo_endpoint"`
	JWKSURI               string   `json:"jwks_uri"`
	EndSessionEndpoint    string   `json:"end_session_endpoint"`
	GrantTypesSupported   []string `json:"grant_types_supported"`
	SigningAlgorithms     []string `json:"id_token_signing_alg_values_supported"`
}

// OpenIDConfiguration fetches the discovery document (check 1.1).
func (r *Recon) OpenIDConfiguration(ctx context.Context) (*scan.OpenIDSummary, Report) {
	record := newRecord(CheckOpenID, scan.PhaseRecon, "")
	res := r.prober.Execute(ctx, probe.NewGetRequest(probe.Key{Phase: int(scan.PhaseRecon), Check: CheckOpenID},
		r.target.endpoint("/.well-known/openid-configuration")))
	if res.Failed() {
		return nil, Report{Record: failRecord(record, res)}
	}
	if res.StatusCode != http.StatusOK {
		record.Status = scan.CheckError
		record.Reason = fmt.Sprintf("HTTP %d", res.StatusCode)
		return nil, Report{Record: record}
	}

	var doc openIDDocument
	if err := json.Unmarshal(res.Body, &doc); err != nil {
		record.Status = scan.CheckError
		record.Reason = fmt.Sprintf("decode discovery document: %v", err)
		return nil, Report{Record: record}
	}

	summary := &scan.OpenIDSummary{
		Issuer:               doc.Issuer,
		GrantTypesSupported:  nonNil(doc.GrantTypesSupported),
		SigningAlgorithms:    nonNil(doc.SigningAlgorithms),
		PasswordGrantEnabled: slices.Contains(doc.GrantTypesSupported, "password"),
		WeakAlgorithms:       []string{},
		Endpoints:            map[string]string{},
	}
	for _, alg := range doc.SigningAlgorithms {
		for _, weak := range weakSigningAlgorithms {
			if strings.EqualFold(alg, weak) {
				summary.WeakAlgorithms = append(summary.WeakAlgorithms, alg)
			}
		}
	}
	for name, value := range map[string]string{
		"authorization_endpoint": doc.AuthorizationEndpoint,
		"token_endpoint":         doc.TokenEndpoint,
		"userinfo_endpoint":      doc.UserinfoEndpoint,
		"jwks_uri":               doc.JWKSURI,
		"end_session_endpoint":   doc.EndSessionEndpoint,
	} {
		if value != "" {
			summary.Endpoints[name] = value
		}
	}

	report := Report{}
	evidence := evidenceOf(res, "")
	evidence.Response = ""
	if summary.PasswordGrantEnabled {
		evidence.Note = "grant_types_supported: " + strings.Join(summary.GrantTypesSupported, ", ")
		report.Findings = append(report.Findings, finding.Spec{
			CheckID:     CheckOpenID,
			Rule:        RulePasswordGrantAdvertised,
			Phase:       int(scan.PhaseRecon),
			Severity:    finding.SeverityMedium,
			Title:       "Resource owner password grant advertised",
			Description: "The tenant advertises the password grant, which lets clients submit user credentials directly to the token endpoint.",
			Evidence:    []finding.Evidence{evidence},
		})
	} else {
		evidence.Note = "grant_types_supported: " + strings.Join(summary.GrantTypesSupported, ", ")
		report.Findings = append(report.Findings, finding.Spec{
			CheckID:     CheckOpenID,
			Rule:        RulePasswordGrantNotAdvertised,
			Phase:       int(scan.PhaseRecon),
			Severity:    finding.SeverityInfo,
			Title:       "Password grant not advertised",
			Description: "The discovery document does not list the password grant.",
			Evidence:    []finding.Evidence{evidence},
		})
	}
	if len(summary.WeakAlgorithms) > 0 {
		severity := finding.SeverityLow
		if slices.ContainsFunc(summary.WeakAlgorithms, func(a string) bool { return strings.EqualFold(a, "none") }) {
			severity = finding.SeverityHigh
		}
		algEvidence := evidenceOf(res, "id_token_signing_alg_values_supported: "+strings.Join(summary.SigningAlgorithms, ", "))
		algEvidence.Response = ""
		report.Findings = append(report.Findings, finding.Spec{
			CheckID:     CheckOpenID,
			Rule:        RuleWeakSigningAlgorithm,
			Phase:       int(scan.PhaseRecon),
			Severity:    severity,
			Title:       "Weak ID token signing algorithms advertised",
			Description: fmt.Sprintf("The tenant advertises %s for ID token signing.", strings.Join(summary.WeakAlgorithms, ", ")),
			Evidence:    []finding.Evidence{algEvidence},
		})
	}

	record.Details["issuer"] = summary.Issuer
	record.Details["password_grant_enabled"] = summary.PasswordGrantEnabled
	record.Details["weak_algorithms"] = summary.WeakAlgorithms
	if summary.PasswordGrantEnabled || len(summary.WeakAlgorithms) > 0 {
		record.Status = scan.CheckVulnerable
	}
	report.Record = record
	r.logger.Info("openid configuration",
		zap.Bool("password_grant", summary.PasswordGrantEnabled),
		zap.Strings("weak_algorithms", summary.WeakAlgorithms))
	return summary, report
}

// CORS sends a preflight from the attacker origin to the token endpoint
// (check 1.2).
func (r *Recon) CORS(ctx context.Context) (*scan.CORSSummary, Report) {
	record := newRecord(CheckCORS, scan.PhaseRecon, "")
	origin := r.target.attackerURL()
	req := probe.Request{
		Key:    probe.Key{Phase: int(scan.PhaseRecon), Check: CheckCORS},
		Method: http.MethodOptions,
		URL:    r.target.endpoint("/oauth/token"),
		Header: http.Header{
			"Origin":                         []string{origin},
			"Access-Control-Request-Method":  []string{http.MethodPost},
			"Access-Control-Request-Headers": []string{"Content-Type"},
		},
	}
	res := r.prober.Execute(ctx, req)
	if res.Failed() {
		return nil, Report{Record: failRecord(record, res)}
	}

	summary := classifier.AnalyzeCORS(res.Header, origin)
	report := Report{}
	evidence := evidenceOf(res, "Access-Control-Allow-Origin: "+summary.AllowOrigin)
	evidence.Response = ""

	switch {
	case summary.AllowsAnyOrigin:
		report.Findings = append(report.Findings, finding.Spec{
			CheckID:     CheckCORS,
			Rule:        RuleCORSWildcard,
			Phase:       int(scan.PhaseRecon),
			Severity:    finding.SeverityHigh,
			Title:       "Token endpoint allows any origin",
			Description: "The token endpoint answers preflights with Access-Control-Allow-Origin: *.",
			Evidence:    []finding.Evidence{evidence},
		})
	case summary.ReflectsOrigin:
		severity := finding.SeverityHigh
		description := "The token endpoint reflects an arbitrary Origin header."
		if summary.AllowCredentials {
			severity = finding.SeverityCritical
			description += " Credentials are allowed as well, so a hostile page can make authenticated requests."
		}
		report.Findings = append(report.Findings, finding.Spec{
			CheckID:     CheckCORS,
			Rule:        RuleCORSReflected,
			Phase:       int(scan.PhaseRecon),
			Severity:    severity,
			Title:       "Token endpoint reflects attacker origin",
			Description: description,
			Evidence:    []finding.Evidence{evidence},
		})
	}

	record.Details["allow_origin"] = summary.AllowOrigin
	record.Details["allow_credentials"] = summary.AllowCredentials
	if summary.AllowsAnyOrigin || summary.ReflectsOrigin {
		record.Status = scan.CheckVulnerable
	}
	report.Record = record
	return &summary, report
}

// authorizeBypasses lists the redirect_uri values tried against /authorize.
func (r *Recon) authorizeBypasses() []redirectAttempt {
	app := r.target.TargetAppURL
	attacker := r.target.AttackerHost
	appHost := ""
	if u, err := url.Parse(app); err == nil {
		appHost = u.Hostname()
	}

	candidates := []struct{ uri, host string }{
		{r.target.attackerURL(), attacker},
		{"http://localhost:9999", "localhost"},
		{app + "@" + attacker, attacker},
		{app + "/../../../" + attacker, attacker},
		{app + "%2f%2f" + attacker, attacker},
		{app + "." + attacker, appHost + "." + attacker},
		{"javascript:alert(1)", ""},
	}

	attempts := make([]redirectAttempt, 0, len(candidates))
	for _, c := range candidates {
		q := url.Values{}
		q.Set("client_id", r.target.ClientID)
		q.Set("response_type", "code")
		q.Set("redirect_uri", c.uri)
		q.Set("state", "test")
		q.Set("scope", "openid")
		attempts = append(attempts, redirectAttempt{
			label:        c.uri,
			injectedHost: c.host,
			request: probe.NewGetRequest(probe.Key{Phase: int(scan.PhaseRecon), Check: CheckAuthorizeRedirect},
				r.target.endpoint("/authorize?"+q.Encode())),
		})
	}
	return attempts
}

// AuthorizeRedirect validates redirect_uri handling at /authorize (check 1.3).
func (r *Recon) AuthorizeRedirect(ctx context.Context) (*scan.RedirectSummary, Report) {
	sweep := sweepRedirects(ctx, r.prober, r.authorizeBypasses())
	report := Report{Record: sweep.record(newRecord(CheckAuthorizeRedirect, scan.PhaseRecon, ""))}

	if len(sweep.hits) > 0 {
		evidence := make([]finding.Evidence, 0, len(sweep.hits))
		for i, hit := range sweep.hits {
			evidence = append(evidence, evidenceOf(hit, "Location: "+hit.Header.Get("Location")+" for "+sweep.summary.Vulnerable[i]))
		}
		report.Findings = append(report.Findings, finding.Spec{
			CheckID:  CheckAuthorizeRedirect,
			Rule:     RuleAuthorizeOpenRedirect,
			Phase:    int(scan.PhaseRecon),
			Severity: finding.SeverityHigh,
			Title:    "Open redirect at /authorize",
			Description: fmt.Sprintf("%d of %d redirect_uri bypasses were accepted; first: %s. Authorization codes can be sent to an attacker.",
				len(sweep.hits), sweep.summary.Tested, sweep.summary.FirstVulnerable),
			Evidence: evidence,
		})
	}
	r.logger.Info("authorize redirect sweep",
		zap.Int("tested", sweep.summary.Tested),
		zap.Int("vulnerable", len(sweep.summary.Vulnerable)))
	return &sweep.summary, report
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
