package checker

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/khanhnv2901/idprecon/internal/domain/finding"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/probe"
)

// redirectParameters are the query parameters applications commonly read a
// post-login or post-logout destination from.
var redirectParameters = []string{"returnTo", "redirect", "redirect_uri", "next", "url", "return_url", "continue"}

// AppChecks runs the Phase 4 application-level checks.
type AppChecks struct {
	prober Prober
	target Target
	logger *zap.Logger
}

// NewAppChecks creates the Phase 4 checks.
func NewAppChecks(prober Prober, target Target, logger *zap.Logger) *AppChecks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppChecks{prober: prober, target: target, logger: logger.With(zap.Int("phase", int(scan.PhaseApplication)))}
}

func (a *AppChecks) appAttempts() ([]redirectAttempt, error) {
	base, err := url.Parse(a.target.TargetAppURL)
	if err != nil {
		return nil, fmt.Errorf("parse target app url: %w", err)
	}
	attempts := make([]redirectAttempt, 0, len(redirectParameters))
	for _, param := range redirectParameters {
		u := *base
		q := u.Query()
		q.Set(param, a.target.attackerURL())
		u.RawQuery = q.Encode()
		attempts = append(attempts, redirectAttempt{
			label:        param,
			injectedHost: a.target.AttackerHost,
			request:      probe.NewGetRequest(probe.Key{Phase: int(scan.PhaseApplication), Check: CheckAppRedirect}, u.String()),
		})
	}
	return attempts, nil
}

// AppRedirect injects the attacker URL into each redirect parameter of the
// target application (check 4.1).
func (a *AppChecks) AppRedirect(ctx context.Context) (*scan.RedirectSummary, Report) {
	record := newRecord(CheckAppRedirect, scan.PhaseApplication, "")
	attempts, err := a.appAttempts()
	if err != nil {
		record.Status = scan.CheckError
		record.Reason = err.Error()
		return nil, Report{Record: record}
	}

	sweep := sweepRedirects(ctx, a.prober, attempts)
	report := Report{Record: sweep.record(record)}
	if len(sweep.hits) > 0 {
		report.Findings = append(report.Findings, redirectFinding(sweep, CheckAppRedirect, RuleAppOpenRedirect, finding.SeverityHigh,
			"Open redirect in the target application",
			fmt.Sprintf("The application redirects to %s through the %s parameter.", a.target.AttackerHost, sweep.summary.FirstVulnerable)))
	}
	a.logger.Info("application redirect sweep",
		zap.Int("tested", sweep.summary.Tested),
		zap.Int("vulnerable", len(sweep.summary.Vulnerable)))
	return &sweep.summary, report
}

// LogoutRedirect checks returnTo validation at the tenant logout endpoint
// (check 4.2).
func (a *AppChecks) LogoutRedirect(ctx context.Context) (*scan.RedirectSummary, Report) {
	q := url.Values{}
	q.Set("client_id", a.target.ClientID)
	q.Set("returnTo", a.target.attackerURL())
	attempts := []redirectAttempt{{
		label:        "returnTo",
		injectedHost: a.target.AttackerHost,
		request:      probe.NewGetRequest(probe.Key{Phase: int(scan.PhaseApplication), Check: CheckLogoutRedirect}, a.target.endpoint("/v2/logout?"+q.Encode())),
	}}

	sweep := sweepRedirects(ctx, a.prober, attempts)
	report := Report{Record: sweep.record(newRecord(CheckLogoutRedirect, scan.PhaseApplication, ""))}
	if len(sweep.hits) > 0 {
		report.Findings = append(report.Findings, redirectFinding(sweep, CheckLogoutRedirect, RuleLogoutOpenRedirect, finding.SeverityMedium,
			"Logout accepts arbitrary returnTo",
			fmt.Sprintf("/v2/logout redirected to %s; users can be sent to a phishing page right after signing out.", a.target.AttackerHost)))
	}
	return &sweep.summary, report
}

func redirectFinding(sweep redirectSweep, checkID, rule string, severity finding.Severity, title, description string) finding.Spec {
	evidence := make([]finding.Evidence, 0, len(sweep.hits))
	for i, hit := range sweep.hits {
		evidence = append(evidence, evidenceOf(hit, "Location: "+hit.Header.Get("Location")+" via "+sweep.summary.Vulnerable[i]))
	}
	return finding.Spec{
		CheckID:     checkID,
		Rule:        rule,
		Phase:       int(scan.PhaseApplication),
		Severity:    severity,
		Title:       title,
		Description: description,
		Evidence:    evidence,
	}
}
