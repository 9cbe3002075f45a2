package scan

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhnv2901/idprecon/internal/checker"
	"github.com/khanhnv2901/idprecon/internal/classifier"
	"github.com/khanhnv2901/idprecon/internal/domain/finding"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/probe"
	"github.com/khanhnv2901/idprecon/internal/testutil"
)

const appConnection = "Username-Password-Authentication"

func configFor(t *testing.T, tenant *testutil.Tenant, mutate func(*scan.Options)) scan.ScanConfig {
	t.Helper()
	opts := scan.DefaultOptions()
	opts.Domain = tenant.URL()
	opts.ClientID = "client-123"
	opts.TargetAppURL = tenant.AppURL()
	opts.RateLimitDelay = 0
	opts.Workers = 3
	opts.MaxRetries = 1
	opts.RequestTimeout = 2 * time.Second
	if mutate != nil {
		mutate(&opts)
	}
	cfg, err := scan.NewScanConfig(opts)
	require.NoError(t, err)
	return cfg
}

func newExecutor(t *testing.T) *probe.Executor {
	t.Helper()
	exec, err := probe.NewExecutor(probe.Options{MaxRetries: 1, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return exec
}

func phases(t *testing.T, ps ...scan.Phase) scan.PhaseSet {
	t.Helper()
	set, err := scan.NewPhaseSet(ps...)
	require.NoError(t, err)
	return set
}

func TestRunOmitsUnselectedPhases(t *testing.T) {
	tenant := testutil.NewTenant(t)
	cfg := configFor(t, tenant, func(o *scan.Options) {
		o.Phases = phases(t, scan.PhaseRecon, scan.PhaseConnections)
	})

	rep := NewOrchestrator(cfg, newExecutor(t), nil).Run(context.Background())

	require.NotNil(t, rep.Phase1)
	require.NotNil(t, rep.Phase3)
	assert.Nil(t, rep.Phase2)
	assert.Nil(t, rep.Phase4)
	assert.Equal(t, "none", rep.Phase3.Source)
	assert.Empty(t, rep.Phase3.Profiles)
	assert.Equal(t, []int{1, 3}, rep.Metadata.Phases)
	assert.Zero(t, tenant.Requests("/dbconnections/signup"))

	data, err := json.Marshal(rep)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "phase1_reconnaissance")
	assert.Contains(t, doc, "phase3_per_connection")
	assert.NotContains(t, doc, "phase2_connections")
	assert.NotContains(t, doc, "phase4_application_attacks")
}

func TestRunEndToEndAgainstMockTenant(t *testing.T) {
	tenant := testutil.NewTenant(t).
		WithGrantTypes("authorization_code", "password", "refresh_token").
		WithManagementToken("mgmt-token")
	cfg := configFor(t, tenant, func(o *scan.Options) {
		o.ManagementToken = "mgmt-token"
	})
	exec := newExecutor(t)

	rep := NewOrchestrator(cfg, exec, nil).WithStats(exec.Stats()).Run(context.Background())

	// Phase 1
	require.NotNil(t, rep.Phase1)
	assert.True(t, rep.Phase1.OpenID.PasswordGrantEnabled)
	assert.Len(t, rep.Phase1.Checks, 3)

	// Phase 2
	require.NotNil(t, rep.Phase2)
	assert.Equal(t, string(checker.MethodPasswordGrant), rep.Phase2.Method)
	assert.True(t, rep.Phase2.PasswordGrantEnabled)
	assert.Equal(t, []string{appConnection}, rep.Phase2.Found)
	assert.Contains(t, rep.Phase2.NotFound, "google-oauth2")
	assert.Empty(t, rep.Phase2.Unclear)

	// Phase 3
	require.NotNil(t, rep.Phase3)
	assert.Equal(t, "discovery", rep.Phase3.Source)
	require.Len(t, rep.Phase3.Profiles, 1)
	profile := rep.Phase3.Profiles[0]
	assert.Equal(t, appConnection, profile.Connection)
	assert.Equal(t, scan.PolicyGood, profile.PasswordPolicy)
	assert.Equal(t, "Password1!", profile.WeakestAccepted)
	assert.True(t, profile.SignupEnabled)
	assert.False(t, profile.CrossConnectionSignup)
	assert.Len(t, profile.Checks, 4)

	// Phase 4
	require.NotNil(t, rep.Phase4)
	assert.Empty(t, rep.Phase4.AppRedirect.Vulnerable)

	// The accepted grant replaces the advertised one.
	var advertised, accepted *finding.Record
	for i := range rep.Findings {
		switch rep.Findings[i].Rule {
		case checker.RulePasswordGrantAdvertised:
			advertised = &rep.Findings[i]
		case checker.RulePasswordGrantAccepted:
			accepted = &rep.Findings[i]
		}
	}
	require.NotNil(t, advertised)
	require.NotNil(t, accepted)
	assert.True(t, advertised.Superseded)
	assert.Equal(t, advertised.ID, accepted.Supersedes)

	// Every created account is deleted.
	created := tenant.Created()
	require.Len(t, created, 3)
	require.NotNil(t, rep.Metadata.Cleanup)
	assert.Equal(t, 3, rep.Metadata.Cleanup.Registered)
	assert.Equal(t, 3, rep.Metadata.Cleanup.Deleted)
	assert.Len(t, tenant.Deleted(), 3)

	assert.Greater(t, rep.Metadata.TotalRequests, 0)
	assert.NotEmpty(t, rep.Metadata.ScanID)
	assert.False(t, rep.Metadata.Canceled)
	assert.Equal(t, finding.SeverityMedium, rep.RiskSummary.OverallRisk)
	assert.NotEmpty(t, rep.RiskSummary.Recommendations)
}

// cancelingProber cancels the run once the tenant has created limit
// accounts.
type cancelingProber struct {
	inner  checker.Prober
	tenant *testutil.Tenant
	limit  int
	cancel context.CancelFunc
}

func (p *cancelingProber) Execute(ctx context.Context, req probe.Request) probe.Result {
	res := p.inner.Execute(ctx, req)
	if len(p.tenant.Created()) >= p.limit {
		p.cancel()
	}
	return res
}

type recordingDeleter struct {
	mu     sync.Mutex
	emails []string
}

func (d *recordingDeleter) Delete(_ context.Context, id checker.Identity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails = append(d.emails, id.Email)
	return nil
}

func TestRunCleansUpAccountsCreatedBeforeInterrupt(t *testing.T) {
	tenant := testutil.NewTenant(t).WithPasswordPolicy(testutil.AcceptAll)
	cfg := configFor(t, tenant, func(o *scan.Options) {
		o.Phases = phases(t, scan.PhaseConnections, scan.PhaseApplication)
		o.CustomConnections = []string{appConnection}
		o.TrustWordlist = true
		o.Workers = 1
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	prober := &cancelingProber{inner: newExecutor(t), tenant: tenant, limit: 2, cancel: cancel}
	deleter := &recordingDeleter{}

	rep := NewOrchestrator(cfg, prober, nil).WithDeleter(deleter).Run(ctx)

	assert.True(t, rep.Metadata.Canceled)
	assert.Nil(t, rep.Phase4, "phases after the interrupt are not run")

	var createdEmails []string
	for _, u := range tenant.Created() {
		createdEmails = append(createdEmails, u.Email)
	}
	require.Len(t, createdEmails, 2)
	sort.Strings(createdEmails)
	sort.Strings(deleter.emails)
	assert.Equal(t, createdEmails, deleter.emails)
	assert.Equal(t, 2, rep.Metadata.Cleanup.Deleted)

	require.NotNil(t, rep.Phase3)
	require.Len(t, rep.Phase3.Profiles, 1)
	statuses := map[string]scan.CheckStatus{}
	for _, c := range rep.Phase3.Profiles[0].Checks {
		statuses[c.CheckID] = c.Status
	}
	assert.Equal(t, scan.CheckSkipped, statuses[checker.CheckPublicSignup])
	assert.Equal(t, scan.CheckSkipped, statuses[checker.CheckCrossConnection])
}

func TestRunReportsConnectionsLeftUntestedByInterrupt(t *testing.T) {
	names := []string{"db-a", "db-b", "db-c", "db-d", "db-e", "db-f"}
	tenant := testutil.NewTenant(t).
		WithDatabaseConnections(names...).
		WithPasswordPolicy(testutil.AcceptAll)
	cfg := configFor(t, tenant, func(o *scan.Options) {
		o.Phases = phases(t, scan.PhaseConnections)
		o.CustomConnections = names
		o.TrustWordlist = true
		o.EnumerateUser = "victim@example.com"
		o.Workers = 1
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	prober := &cancelingProber{inner: newExecutor(t), tenant: tenant, limit: 1, cancel: cancel}

	rep := NewOrchestrator(cfg, prober, nil).WithDeleter(&recordingDeleter{}).Run(ctx)

	assert.True(t, rep.Metadata.Canceled)
	require.NotNil(t, rep.Phase3)
	require.Len(t, rep.Phase3.Profiles, len(names))

	var got []string
	untested := 0
	for _, p := range rep.Phase3.Profiles {
		got = append(got, p.Connection)
		require.Len(t, p.Checks, 4, p.Connection)
		allSkipped := true
		for _, c := range p.Checks {
			if c.Status != scan.CheckSkipped {
				allSkipped = false
				continue
			}
			assert.Equal(t, "scan canceled", c.Reason)
			assert.Equal(t, p.Connection, c.Connection)
		}
		if allSkipped {
			untested++
		}
	}
	assert.Equal(t, names, got)
	assert.Equal(t, len(names)-1, untested)
}

func TestRunWithCleanupDisabledReportsPendingAccounts(t *testing.T) {
	tenant := testutil.NewTenant(t)
	cfg := configFor(t, tenant, func(o *scan.Options) {
		o.Phases = phases(t, scan.PhaseConnections)
		o.CustomConnections = []string{appConnection}
		o.TrustWordlist = true
		o.Cleanup = false
	})
	deleter := &recordingDeleter{}

	rep := NewOrchestrator(cfg, newExecutor(t), nil).WithDeleter(deleter).Run(context.Background())

	require.NotNil(t, rep.Metadata.Cleanup)
	assert.False(t, rep.Metadata.Cleanup.Enabled)
	assert.Equal(t, 3, rep.Metadata.Cleanup.Registered)
	assert.Len(t, rep.Metadata.Cleanup.Pending, 3)
	assert.Empty(t, deleter.emails)
	assert.Equal(t, "wordlist", rep.Phase3.Source)
	assert.Equal(t, "cleanup disabled", rep.Metadata.Cleanup.Reason)
}

func TestRunWithoutManagementTokenReportsCleanupUnavailable(t *testing.T) {
	tenant := testutil.NewTenant(t).WithManagementToken("mgmt-token")
	cfg := configFor(t, tenant, func(o *scan.Options) {
		o.Phases = phases(t, scan.PhaseConnections)
		o.CustomConnections = []string{appConnection}
		o.TrustWordlist = true
	})
	require.True(t, cfg.Cleanup())

	rep := NewOrchestrator(cfg, newExecutor(t), nil).Run(context.Background())

	require.NotNil(t, rep.Metadata.Cleanup)
	assert.False(t, rep.Metadata.Cleanup.Enabled)
	assert.Equal(t, "cleanup unavailable: no management token", rep.Metadata.Cleanup.Reason)
	assert.Equal(t, 3, rep.Metadata.Cleanup.Registered)
	assert.Len(t, rep.Metadata.Cleanup.Pending, 3)
	assert.Zero(t, rep.Metadata.Cleanup.Deleted)
	assert.Empty(t, tenant.Deleted())
}

type phaseRecorder struct {
	mu      sync.Mutex
	started []scan.Phase
}

func (r *phaseRecorder) PhaseStarted(p scan.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, p)
}
func (r *phaseRecorder) PhaseCompleted(scan.Phase, time.Duration)    {}
func (r *phaseRecorder) ConnectionProbed(string, classifier.Outcome) {}

func TestRunExecutesPhasesInAscendingOrder(t *testing.T) {
	tenant := testutil.NewTenant(t)
	set, err := scan.ParsePhases("4,1")
	require.NoError(t, err)
	cfg := configFor(t, tenant, func(o *scan.Options) { o.Phases = set })
	recorder := &phaseRecorder{}

	NewOrchestrator(cfg, newExecutor(t), nil).WithObserver(recorder).Run(context.Background())

	assert.Equal(t, []scan.Phase{scan.PhaseRecon, scan.PhaseApplication}, recorder.started)
}
