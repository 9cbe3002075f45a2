package checker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhnv2901/idprecon/internal/classifier"
	"github.com/khanhnv2901/idprecon/internal/domain/finding"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/testutil"
)

const appConnection = "Username-Password-Authentication"

func TestUsernameEnumerationSkippedWithoutEmail(t *testing.T) {
	tenant := testutil.NewTenant(t)
	checks := NewAccountChecks(newProber(t), targetFor(tenant), NewRegistry(), nil)

	exists, report := checks.UsernameEnumeration(context.Background(), appConnection)
	assert.False(t, exists)
	assert.Equal(t, scan.CheckSkipped, report.Record.Status)
	assert.Zero(t, tenant.Requests("/dbconnections/signup"))
}

func TestUsernameEnumerationExistingUser(t *testing.T) {
	tenant := testutil.NewTenant(t).WithExistingUser("ceo@victim.com")
	target := targetFor(tenant)
	target.EnumerateUser = "ceo@victim.com"
	checks := NewAccountChecks(newProber(t), target, NewRegistry(), nil)

	exists, report := checks.UsernameEnumeration(context.Background(), appConnection)
	assert.True(t, exists)
	assert.Equal(t, scan.CheckVulnerable, report.Record.Status)
	assert.Equal(t, []string{RuleUsernameEnumeration}, findingRules(report))
}

func TestUsernameEnumerationCreatesAndRegisters(t *testing.T) {
	tenant := testutil.NewTenant(t)
	target := targetFor(tenant)
	target.EnumerateUser = "nobody@victim.com"
	registry := NewRegistry()
	checks := NewAccountChecks(newProber(t), target, registry, nil)

	exists, report := checks.UsernameEnumeration(context.Background(), appConnection)
	assert.False(t, exists)
	assert.Equal(t, scan.CheckPassed, report.Record.Status)
	require.Equal(t, 1, registry.Len())
	assert.Equal(t, "nobody@victim.com", registry.Identities()[0].Email)
}

func TestPasswordPolicyGood(t *testing.T) {
	tenant := testutil.NewTenant(t)
	registry := NewRegistry()
	checks := NewAccountChecks(newProber(t), targetFor(tenant), registry, nil)

	result, report := checks.PasswordPolicy(context.Background(), appConnection)
	assert.Equal(t, scan.PolicyGood, result.Tier)
	assert.Equal(t, "Password1!", result.WeakestAccepted)
	assert.Len(t, result.Rungs, len(classifier.PasswordLadder()))
	assert.Equal(t, scan.CheckPassed, report.Record.Status)
	assert.Empty(t, report.Findings)

	// Password1! and Pass123456789! were accepted and must be cleaned up.
	assert.Equal(t, 2, registry.Len())
	assert.Len(t, tenant.Created(), 2)
}

func TestPasswordPolicyAcceptEverythingIsLow(t *testing.T) {
	tenant := testutil.NewTenant(t).WithPasswordPolicy(testutil.AcceptAll)
	registry := NewRegistry()
	checks := NewAccountChecks(newProber(t), targetFor(tenant), registry, nil)

	result, report := checks.PasswordPolicy(context.Background(), appConnection)
	assert.Equal(t, scan.PolicyLow, result.Tier)
	assert.Equal(t, "a", result.WeakestAccepted)
	assert.Equal(t, scan.CheckVulnerable, report.Record.Status)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, finding.SeverityHigh, report.Findings[0].Severity)
	assert.Equal(t, len(classifier.PasswordLadder()), registry.Len())
}

func TestPasswordPolicySignupDisabledStopsEarly(t *testing.T) {
	tenant := testutil.NewTenant(t).WithSignupDisabled(appConnection)
	checks := NewAccountChecks(newProber(t), targetFor(tenant), NewRegistry(), nil)

	result, report := checks.PasswordPolicy(context.Background(), appConnection)
	assert.Equal(t, scan.PolicyUnknown, result.Tier)
	assert.Equal(t, scan.CheckSkipped, report.Record.Status)
	assert.Equal(t, 1, tenant.Requests("/dbconnections/signup"))
}

func TestPublicSignupOnAppConnection(t *testing.T) {
	tenant := testutil.NewTenant(t)
	registry := NewRegistry()
	checks := NewAccountChecks(newProber(t), targetFor(tenant), registry, nil)

	result, reports := checks.PublicSignup(context.Background(), appConnection)
	require.Len(t, reports, 2)
	assert.True(t, result.Enabled)
	assert.False(t, result.CrossConnection)
	require.NotNil(t, result.Identity)
	assert.Equal(t, []string{RulePublicSignup}, findingRules(reports[0]))
	assert.Equal(t, scan.CheckPassed, reports[1].Record.Status)
	assert.Equal(t, 1, registry.Len())
}

func TestPublicSignupCrossConnection(t *testing.T) {
	tenant := testutil.NewTenant(t).WithDatabaseConnections(appConnection, "Legacy-Database")
	checks := NewAccountChecks(newProber(t), targetFor(tenant), NewRegistry(), nil)

	result, reports := checks.PublicSignup(context.Background(), "Legacy-Database")
	assert.True(t, result.CrossConnection)
	assert.Equal(t, scan.CheckVulnerable, reports[1].Record.Status)
	assert.Equal(t, []string{RuleCrossConnectionSignup}, findingRules(reports[1]))
}

func TestPublicSignupDisabled(t *testing.T) {
	tenant := testutil.NewTenant(t).WithSignupDisabled(appConnection)
	registry := NewRegistry()
	checks := NewAccountChecks(newProber(t), targetFor(tenant), registry, nil)

	result, reports := checks.PublicSignup(context.Background(), appConnection)
	assert.False(t, result.Enabled)
	assert.Equal(t, scan.CheckPassed, reports[0].Record.Status)
	assert.Empty(t, reports[0].Findings)
	assert.Zero(t, registry.Len())
}
