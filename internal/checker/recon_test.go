package checker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhnv2901/idprecon/internal/domain/finding"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/testutil"
)

func TestOpenIDConfigurationFlagsPasswordGrantAndWeakAlgorithms(t *testing.T) {
	tenant := testutil.NewTenant(t).
		WithGrantTypes("authorization_code", "password").
		WithSigningAlgorithms("RS256", "HS256", "none")
	recon := NewRecon(newProber(t), targetFor(tenant), nil)

	summary, report := recon.OpenIDConfiguration(context.Background())
	require.NotNil(t, summary)
	assert.True(t, summary.PasswordGrantEnabled)
	assert.Equal(t, []string{"HS256", "none"}, summary.WeakAlgorithms)
	assert.Equal(t, tenant.URL()+"/oauth/token", summary.Endpoints["token_endpoint"])
	assert.Equal(t, scan.CheckVulnerable, report.Record.Status)
	assert.ElementsMatch(t, []string{RulePasswordGrantAdvertised, RuleWeakSigningAlgorithm}, findingRules(report))
	for _, f := range report.Findings {
		if f.Rule == RuleWeakSigningAlgorithm {
			assert.Equal(t, finding.SeverityHigh, f.Severity)
		}
	}
}

func TestOpenIDConfigurationCleanTenant(t *testing.T) {
	tenant := testutil.NewTenant(t)
	recon := NewRecon(newProber(t), targetFor(tenant), nil)

	summary, report := recon.OpenIDConfiguration(context.Background())
	require.NotNil(t, summary)
	assert.False(t, summary.PasswordGrantEnabled)
	assert.Empty(t, summary.WeakAlgorithms)
	assert.Equal(t, scan.CheckPassed, report.Record.Status)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, RulePasswordGrantNotAdvertised, report.Findings[0].Rule)
	assert.Equal(t, finding.SeverityInfo, report.Findings[0].Severity)
}

func TestOpenIDConfigurationUnreachable(t *testing.T) {
	tenant := testutil.NewTenant(t).WithFailures("/.well-known/openid-configuration", 5)
	recon := NewRecon(newProber(t), targetFor(tenant), nil)

	summary, report := recon.OpenIDConfiguration(context.Background())
	assert.Nil(t, summary)
	assert.Equal(t, scan.CheckError, report.Record.Status)
	assert.NotEmpty(t, report.Record.Reason)
	assert.Empty(t, report.Findings)
}

func TestCORSReflectedWithCredentialsIsCritical(t *testing.T) {
	tenant := testutil.NewTenant(t).WithCORS(true, false)
	recon := NewRecon(newProber(t), targetFor(tenant), nil)

	summary, report := recon.CORS(context.Background())
	require.NotNil(t, summary)
	assert.True(t, summary.ReflectsOrigin)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, RuleCORSReflected, report.Findings[0].Rule)
	assert.Equal(t, finding.SeverityCritical, report.Findings[0].Severity)
}

func TestCORSStrictTenant(t *testing.T) {
	tenant := testutil.NewTenant(t)
	recon := NewRecon(newProber(t), targetFor(tenant), nil)

	summary, report := recon.CORS(context.Background())
	require.NotNil(t, summary)
	assert.Empty(t, report.Findings)
	assert.Equal(t, scan.CheckPassed, report.Record.Status)
}

func TestAuthorizeRedirectRecordsFirstAndAllVulnerable(t *testing.T) {
	tenant := testutil.NewTenant(t).WithOpenAuthorize(func(uri string) bool {
		return strings.Contains(uri, "attacker.com")
	})
	target := targetFor(tenant)
	target.TargetAppURL = "https://app.example.com"
	recon := NewRecon(newProber(t), target, nil)

	summary, report := recon.AuthorizeRedirect(context.Background())
	require.NotNil(t, summary)
	assert.Equal(t, 7, summary.Tested)
	assert.Equal(t, "https://attacker.com", summary.FirstVulnerable)

	// The traversal and encoded variants keep the application host, so an
	// exact host comparison does not count them.
	assert.Equal(t, []string{
		"https://attacker.com",
		"https://app.example.com@attacker.com",
		"https://app.example.com.attacker.com",
	}, summary.Vulnerable)
	assert.Equal(t, scan.CheckVulnerable, report.Record.Status)
	require.Len(t, report.Findings, 1)
	assert.Len(t, report.Findings[0].Evidence, 3)
}

func TestAuthorizeRedirectStrictTenant(t *testing.T) {
	tenant := testutil.NewTenant(t)
	recon := NewRecon(newProber(t), targetFor(tenant), nil)

	summary, report := recon.AuthorizeRedirect(context.Background())
	assert.Empty(t, summary.Vulnerable)
	assert.Empty(t, summary.FirstVulnerable)
	assert.Equal(t, scan.CheckPassed, report.Record.Status)
	assert.Empty(t, report.Findings)
}

func TestAuthorizeRedirectErrorPageIsClean(t *testing.T) {
	tenant := testutil.NewTenant(t).WithAuthorizeErrorPage()
	recon := NewRecon(newProber(t), targetFor(tenant), nil)

	summary, report := recon.AuthorizeRedirect(context.Background())
	require.NotNil(t, summary)
	assert.Equal(t, 7, summary.Tested)
	assert.Empty(t, summary.Vulnerable)
	assert.Empty(t, summary.Unclear)
	assert.Equal(t, scan.CheckPassed, report.Record.Status)
	assert.Empty(t, report.Record.Reason)
	assert.Empty(t, report.Findings)
}
