package checker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/testutil"
)

func TestAppRedirectFlagsOpenParameter(t *testing.T) {
	tenant := testutil.NewTenant(t).WithOpenAppParams("next")
	checks := NewAppChecks(newProber(t), targetFor(tenant), nil)

	summary, report := checks.AppRedirect(context.Background())
	require.NotNil(t, summary)
	assert.Equal(t, len(redirectParameters), summary.Tested)
	assert.Equal(t, []string{"next"}, summary.Vulnerable)
	assert.Equal(t, "next", summary.FirstVulnerable)
	assert.Equal(t, scan.CheckVulnerable, report.Record.Status)
	assert.Equal(t, []string{RuleAppOpenRedirect}, findingRules(report))
	assert.Equal(t, len(redirectParameters), tenant.Requests("/app"))
}

func TestAppRedirectStrictApplication(t *testing.T) {
	tenant := testutil.NewTenant(t)
	checks := NewAppChecks(newProber(t), targetFor(tenant), nil)

	summary, report := checks.AppRedirect(context.Background())
	assert.Empty(t, summary.Vulnerable)
	assert.Equal(t, scan.CheckPassed, report.Record.Status)
	assert.Empty(t, report.Findings)
}

func TestLogoutRedirect(t *testing.T) {
	tests := []struct {
		name     string
		open     bool
		status   scan.CheckStatus
		findings []string
	}{
		{name: "open returnTo", open: true, status: scan.CheckVulnerable, findings: []string{RuleLogoutOpenRedirect}},
		{name: "allow-listed returnTo", open: false, status: scan.CheckPassed, findings: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenant := testutil.NewTenant(t)
			if tt.open {
				tenant.WithOpenLogout()
			}
			checks := NewAppChecks(newProber(t), targetFor(tenant), nil)

			summary, report := checks.LogoutRedirect(context.Background())
			assert.Equal(t, 1, summary.Tested)
			assert.Equal(t, tt.status, report.Record.Status)
			assert.Equal(t, tt.findings, findingRules(report))
		})
	}
}

func TestLogoutRedirectUnreachable(t *testing.T) {
	tenant := testutil.NewTenant(t).WithFailures("/v2/logout", 10)
	checks := NewAppChecks(newProber(t), targetFor(tenant), nil)

	summary, report := checks.LogoutRedirect(context.Background())
	assert.Len(t, summary.Errors, 1)
	assert.Equal(t, scan.CheckError, report.Record.Status)
}
