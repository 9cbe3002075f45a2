package scan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanhnv2901/idprecon/internal/checker"
	"github.com/khanhnv2901/idprecon/internal/classifier"
	"github.com/khanhnv2901/idprecon/internal/discovery"
	"github.com/khanhnv2901/idprecon/internal/domain/finding"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/probe"
	"github.com/khanhnv2901/idprecon/internal/report"
	consts "github.com/khanhnv2901/idprecon/internal/shared/constants"
)

// StatsSource exposes the request counters of the probe executor.
type StatsSource interface {
	Snapshot() probe.StatsSnapshot
}

// Observer is told about the progress of a run. Implementations must be
// safe for concurrent use.
type Observer interface {
	PhaseStarted(phase scan.Phase)
	PhaseCompleted(phase scan.Phase, elapsed time.Duration)
	ConnectionProbed(name string, outcome classifier.Outcome)
}

type nopObserver struct{}

func (nopObserver) PhaseStarted(scan.Phase)                     {}
func (nopObserver) PhaseCompleted(scan.Phase, time.Duration)    {}
func (nopObserver) ConnectionProbed(string, classifier.Outcome) {}

// Orchestrator sequences the scan phases for one validated configuration.
type Orchestrator struct {
	cfg      scan.ScanConfig
	prober   checker.Prober
	stats    StatsSource
	deleter  checker.Deleter
	observer Observer
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator sending every request through
// prober.
func NewOrchestrator(cfg scan.ScanConfig, prober checker.Prober, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		prober:   prober,
		observer: nopObserver{},
		logger:   logger,
	}
}

// WithStats sets where request statistics for the metadata come from.
func (o *Orchestrator) WithStats(stats StatsSource) *Orchestrator {
	o.stats = stats
	return o
}

// WithDeleter replaces the management API deleter used for cleanup.
func (o *Orchestrator) WithDeleter(d checker.Deleter) *Orchestrator {
	o.deleter = d
	return o
}

// WithObserver registers a progress observer.
func (o *Orchestrator) WithObserver(obs Observer) *Orchestrator {
	if obs != nil {
		o.observer = obs
	}
	return o
}

// run is the state shared by the phases of one Run call.
type run struct {
	acc         *Accumulator
	registry    *checker.Registry
	target      checker.Target
	discovered  []scan.ConnectionCandidate
	discoveryOK bool
}

// Run executes the selected phases in ascending order and returns the
// assembled report. A canceled ctx stops the run between checks; the
// report then holds whatever completed, and cleanup still runs.
func (o *Orchestrator) Run(ctx context.Context) scan.ScanReport {
	start := time.Now().UTC()
	scanID := uuid.NewString()
	logger := o.logger.With(zap.String("scan_id", scanID), zap.String("domain", o.cfg.Domain()))

	st := &run{
		acc:      NewAccumulator(),
		registry: checker.NewRegistry(),
		target:   checker.TargetFromConfig(o.cfg),
	}

	logger.Info("scan started", zap.Ints("phases", o.cfg.Phases().Ints()))
	for _, phase := range o.cfg.Phases().Ordered() {
		if ctx.Err() != nil {
			logger.Warn("scan interrupted, remaining phases skipped", zap.Int("next_phase", int(phase)))
			break
		}

		o.observer.PhaseStarted(phase)
		phaseStart := time.Now()
		switch phase {
		case scan.PhaseRecon:
			o.runRecon(ctx, st, logger)
		case scan.PhaseDiscovery:
			o.runDiscovery(ctx, st, logger)
		case scan.PhaseConnections:
			o.runConnections(ctx, st, logger)
		case scan.PhaseApplication:
			o.runApplication(ctx, st, logger)
		}
		elapsed := time.Since(phaseStart)
		o.observer.PhaseCompleted(phase, elapsed)
		logger.Info("phase completed", zap.Int("phase", int(phase)), zap.Duration("elapsed", elapsed))
	}

	cleanup := o.cleanup(ctx, st, logger)

	end := time.Now().UTC()
	meta := scan.Metadata{
		ScanID:          scanID,
		TargetDomain:    o.cfg.Domain(),
		ClientID:        o.cfg.ClientID(),
		TargetAppURL:    o.cfg.TargetAppURL(),
		Phases:          o.cfg.Phases().Ints(),
		ScanStart:       start,
		ScanEnd:         end,
		DurationSeconds: end.Sub(start).Seconds(),
		Canceled:        ctx.Err() != nil,
		Cleanup:         cleanup,
	}
	if o.stats != nil {
		snap := o.stats.Snapshot()
		meta.TotalRequests = snap.TotalRequests
		meta.RateLimitedCount = snap.RateLimitedCount
		meta.ErrorCount = snap.ErrorCount
	}

	rep := report.Assemble(st.acc.Snapshot(meta))
	logger.Info("scan finished",
		zap.String("overall_risk", string(rep.RiskSummary.OverallRisk)),
		zap.Int("findings", len(report.Active(rep.Findings))),
		zap.Bool("canceled", meta.Canceled))
	return rep
}

func (o *Orchestrator) record(st *run, r checker.Report, logger *zap.Logger) scan.CheckRecord {
	if err := st.acc.AddReport(r); err != nil {
		logger.Error("invalid finding dropped", zap.String("check", r.Record.CheckID), zap.Error(err))
	}
	return r.Record
}

func (o *Orchestrator) runRecon(ctx context.Context, st *run, logger *zap.Logger) {
	recon := checker.NewRecon(o.prober, st.target, logger)
	block := &scan.ReconBlock{}

	openid, rep := recon.OpenIDConfiguration(ctx)
	block.OpenID = openid
	block.Checks = append(block.Checks, o.record(st, rep, logger))

	cors, rep := recon.CORS(ctx)
	block.CORS = cors
	block.Checks = append(block.Checks, o.record(st, rep, logger))

	redirect, rep := recon.AuthorizeRedirect(ctx)
	block.Redirect = redirect
	block.Checks = append(block.Checks, o.record(st, rep, logger))

	st.acc.SetRecon(block)
}

func (o *Orchestrator) runDiscovery(ctx context.Context, st *run, logger *zap.Logger) {
	enum := checker.NewEnumerator(o.prober, st.target, st.registry, logger)
	detection := enum.DetectPasswordGrant(ctx)
	grant := checker.GrantReport(detection)
	for _, spec := range grant.Findings {
		if _, err := st.acc.Supersede(spec, checker.RulePasswordGrantAdvertised, checker.RulePasswordGrantNotAdvertised); err != nil {
			logger.Error("invalid finding dropped", zap.String("check", spec.CheckID), zap.Error(err))
		}
	}
	enum = enum.WithMethod(detection.Method())
	logger.Info("enumeration method selected", zap.String("method", string(enum.Method())))

	candidates := discovery.BuildCandidates(o.cfg.CustomConnections(), o.cfg.ConnectionKeyword())
	result := discovery.NewEngine(enum, o.cfg.Workers(), logger).
		WithProgress(o.observer.ConnectionProbed).
		Discover(ctx, candidates)

	enumRecord := o.record(st, connectionsReport(result, enum.Method()), logger)
	st.discovered = result.FoundCandidates(candidates)
	st.discoveryOK = true

	st.acc.SetDiscovery(&scan.DiscoveryBlock{
		Method:               string(enum.Method()),
		PasswordGrantEnabled: detection.Outcome == classifier.GrantEnabled,
		Keyword:              o.cfg.ConnectionKeyword(),
		TotalTested:          result.TotalTested,
		Found:                result.Found,
		NotFound:             result.NotFound,
		Unclear:              result.Unclear,
		Checks:               []scan.CheckRecord{grant.Record, enumRecord},
	})
}

func connectionsReport(result discovery.Result, method checker.Method) checker.Report {
	record := scan.CheckRecord{
		CheckID: checker.CheckConnectionEnum,
		Name:    checker.CheckName(checker.CheckConnectionEnum),
		Phase:   int(scan.PhaseDiscovery),
		Status:  scan.CheckPassed,
		Details: map[string]any{
			"method":       string(method),
			"total_tested": result.TotalTested,
			"found":        len(result.Found),
			"unclear":      len(result.Unclear),
		},
	}

	switch {
	case len(result.Found) > 0:
		record.Status = scan.CheckVulnerable
	case result.Canceled:
		record.Status = scan.CheckInconclusive
		record.Reason = "discovery interrupted"
	case len(result.Unclear) > 0:
		record.Status = scan.CheckInconclusive
		record.Reason = fmt.Sprintf("%d candidates gave unclear answers", len(result.Unclear))
	}

	r := checker.Report{Record: record}
	if len(result.Found) > 0 {
		r.Findings = append(r.Findings, finding.Spec{
			CheckID:  checker.CheckConnectionEnum,
			Rule:     checker.RuleConnectionsDiscovered,
			Phase:    int(scan.PhaseDiscovery),
			Severity: finding.SeverityMedium,
			Title:    fmt.Sprintf("%d connections enumerable", len(result.Found)),
			Description: fmt.Sprintf("Connection names can be confirmed without authentication (%s): %s.",
				method, strings.Join(result.Found, ", ")),
		})
	}
	return r
}

// phase3Targets returns the connections Phase 3 may test and where they
// came from.
func (o *Orchestrator) phase3Targets(st *run) ([]scan.ConnectionCandidate, string, string) {
	if st.discoveryOK {
		if len(st.discovered) == 0 {
			return nil, "discovery", "no connection was confirmed during discovery"
		}
		return st.discovered, "discovery", ""
	}
	if o.cfg.TrustWordlist() {
		return discovery.TrustedCandidates(o.cfg.CustomConnections()), "wordlist", "connections taken from the wordlist without discovery"
	}
	return nil, "none", "discovery was not run and trust_wordlist is not set; no connection was tested"
}

type connectionOutcome struct {
	profile scan.ConnectionProfile
	reports []checker.Report
}

func (o *Orchestrator) runConnections(ctx context.Context, st *run, logger *zap.Logger) {
	targets, source, note := o.phase3Targets(st)
	block := &scan.ConnectionsBlock{Source: source, Note: note, Profiles: []scan.ConnectionProfile{}}
	if len(targets) == 0 {
		logger.Warn("no connections to test", zap.String("reason", note))
		st.acc.SetConnections(block)
		return
	}

	checks := checker.NewAccountChecks(o.prober, st.target, st.registry, logger)
	outcomes := checker.Run(ctx, checker.Runner{Concurrency: o.cfg.Workers()}, targets,
		func(ctx context.Context, c scan.ConnectionCandidate) connectionOutcome {
			return testConnection(ctx, checks, c.Name)
		})

	// the runner stops claiming targets once ctx is canceled
	tested := make(map[string]bool, len(outcomes))
	for _, out := range outcomes {
		tested[out.profile.Connection] = true
	}
	for _, c := range targets {
		if !tested[c.Name] {
			outcomes = append(outcomes, untestedConnection(c.Name))
		}
	}

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].profile.Connection < outcomes[j].profile.Connection
	})
	for _, out := range outcomes {
		for _, r := range out.reports {
			o.record(st, r, logger)
		}
		block.Profiles = append(block.Profiles, out.profile)
	}
	st.acc.SetConnections(block)
}

// testConnection runs the Phase 3 checks of one connection. Checks after a
// cancellation are recorded as skipped.
func testConnection(ctx context.Context, checks *checker.AccountChecks, connection string) connectionOutcome {
	builder := scan.NewProfileBuilder(connection)
	var reports []checker.Report
	add := func(r checker.Report) {
		reports = append(reports, r)
		builder.AddCheck(r.Record)
	}
	skipped := func(id string) {
		add(canceledCheck(id))
	}

	if ctx.Err() != nil {
		skipped(checker.CheckUsernameEnum)
	} else {
		exists, r := checks.UsernameEnumeration(ctx, connection)
		if exists {
			if email, ok := r.Record.Details["tested_email"].(string); ok {
				builder.AddValidUser(email)
			}
		}
		add(r)
	}

	if ctx.Err() != nil {
		skipped(checker.CheckPasswordPolicy)
	} else {
		policy, r := checks.PasswordPolicy(ctx, connection)
		builder.SetPasswordPolicy(policy.Tier, policy.WeakestAccepted)
		add(r)
	}

	if ctx.Err() != nil {
		skipped(checker.CheckPublicSignup)
		skipped(checker.CheckCrossConnection)
	} else {
		signup, rs := checks.PublicSignup(ctx, connection)
		builder.SetSignup(signup.Enabled, signup.CrossConnection)
		for _, r := range rs {
			add(r)
		}
	}

	return connectionOutcome{profile: builder.Finalize(), reports: reports}
}

// untestedConnection is the profile of a connection no worker reached
// before the run was canceled.
func untestedConnection(connection string) connectionOutcome {
	builder := scan.NewProfileBuilder(connection)
	var reports []checker.Report
	for _, id := range []string{checker.CheckUsernameEnum, checker.CheckPasswordPolicy, checker.CheckPublicSignup, checker.CheckCrossConnection} {
		r := canceledCheck(id)
		reports = append(reports, r)
		builder.AddCheck(r.Record)
	}
	return connectionOutcome{profile: builder.Finalize(), reports: reports}
}

func canceledCheck(id string) checker.Report {
	return checker.Report{Record: scan.CheckRecord{
		CheckID: id,
		Name:    checker.CheckName(id),
		Phase:   int(scan.PhaseConnections),
		Status:  scan.CheckSkipped,
		Reason:  "scan canceled",
	}}
}

func (o *Orchestrator) runApplication(ctx context.Context, st *run, logger *zap.Logger) {
	app := checker.NewAppChecks(o.prober, st.target, logger)
	block := &scan.ApplicationBlock{TargetAppURL: o.cfg.TargetAppURL()}

	redirect, rep := app.AppRedirect(ctx)
	block.AppRedirect = redirect
	block.Checks = append(block.Checks, o.record(st, rep, logger))

	logout, rep := app.LogoutRedirect(ctx)
	block.Logout = logout
	block.Checks = append(block.Checks, o.record(st, rep, logger))

	st.acc.SetApplication(block)
}

// cleanup deletes the registered test accounts on a context detached from
// the run, so an interrupted scan still removes what it created.
func (o *Orchestrator) cleanup(ctx context.Context, st *run, logger *zap.Logger) *scan.CleanupSummary {
	deleter, reason := o.cleanupDeleter()
	if st.registry.Len() == 0 {
		return &scan.CleanupSummary{Enabled: deleter != nil, Reason: reason}
	}
	if deleter == nil {
		logger.Warn("test accounts left on the tenant", zap.String("reason", reason), zap.Int("accounts", st.registry.Len()))
		return checker.PendingSummary(st.registry, reason)
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), consts.DefaultCleanupTimeout)
	defer cancel()

	summary := checker.Cleanup(cctx, st.registry, deleter, logger)
	logger.Info("cleanup finished",
		zap.Int("registered", summary.Registered),
		zap.Int("deleted", summary.Deleted),
		zap.Int("pending", len(summary.Pending)),
		zap.Int("failed", len(summary.Failed)))
	return summary
}

// cleanupDeleter returns the deleter for this run, or nil and the reason
// nothing can be deleted. The management API needs a token.
func (o *Orchestrator) cleanupDeleter() (checker.Deleter, string) {
	switch {
	case !o.cfg.Cleanup():
		return nil, "cleanup disabled"
	case o.deleter != nil:
		return o.deleter, ""
	case o.cfg.ManagementToken() == "":
		return nil, "cleanup unavailable: no management token"
	default:
		return checker.NewHTTPDeleter(o.prober, o.cfg.BaseURL(), o.cfg.ManagementToken()), ""
	}
}
