package checker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/khanhnv2901/idprecon/internal/classifier"
	"github.com/khanhnv2901/idprecon/internal/domain/finding"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/probe"
	sharedErrors "github.com/khanhnv2901/idprecon/internal/shared/errors"
)

// AccountChecks runs the Phase 3 checks against one connection at a time.
// It is safe for concurrent use across connections.
type AccountChecks struct {
	prober   Prober
	target   Target
	registry *Registry
	logger   *zap.Logger
}

// NewAccountChecks creates the Phase 3 checks.
func NewAccountChecks(prober Prober, target Target, registry *Registry, logger *zap.Logger) *AccountChecks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountChecks{
		prober:   prober,
		target:   target,
		registry: registry,
		logger:   logger.With(zap.Int("phase", int(scan.PhaseConnections))),
	}
}

func (a *AccountChecks) signup(ctx context.Context, check, connection, email, password string) probe.Result {
	req, err := signupRequest(a.target, probe.Key{Phase: int(scan.PhaseConnections), Check: check, Connection: connection},
		connection, email, password)
	if err != nil {
		return probe.Result{Failure: &probe.Failure{Kind: probe.FailureInvalidRequest, Detail: err.Error()}}
	}
	return executeSignup(ctx, a.prober, req)
}

// UsernameEnumeration signs up the configured email on connection (check
// 3.1). It is skipped when no email is configured. exists reports a
// confirmed existing account.
func (a *AccountChecks) UsernameEnumeration(ctx context.Context, connection string) (exists bool, report Report) {
	record := newRecord(CheckUsernameEnum, scan.PhaseConnections, connection)
	email := a.target.EnumerateUser
	if email == "" {
		record.Status = scan.CheckSkipped
		record.Reason = "no enumerate-user email configured"
		return false, Report{Record: record}
	}
	record.Details["tested_email"] = email

	res := a.signup(ctx, CheckUsernameEnum, connection, email, enumerationPassword)
	if res.Failed() {
		return false, Report{Record: failRecord(record, res)}
	}
	record.Details["response_code"] = res.StatusCode

	outcome := classifier.Classify(classifier.KindSignupEnumeration, res.Response(""))
	record.Details["outcome"] = string(outcome)
	switch outcome {
	case classifier.UserExists:
		record.Status = scan.CheckVulnerable
		report.Findings = append(report.Findings, finding.Spec{
			CheckID:     CheckUsernameEnum,
			Rule:        RuleUsernameEnumeration,
			Phase:       int(scan.PhaseConnections),
			Connection:  connection,
			Severity:    finding.SeverityMedium,
			Title:       "Signup reveals existing users",
			Description: fmt.Sprintf("Signing up %s on %s answered that the user already exists.", email, connection),
			Evidence:    []finding.Evidence{evidenceOf(res, "")},
		})
		exists = true
	case classifier.UserCreated:
		registerCreated(a.registry, CheckUsernameEnum, connection, email, res)
		record.Details["account_created"] = true
	case classifier.SignupDisabled:
		record.Reason = "signup is disabled, enumeration through signup is not possible"
	default:
		record.Status = scan.CheckInconclusive
		record.Reason = sharedErrors.ErrAmbiguousResponse.Error()
	}
	report.Record = record
	return exists, report
}

// PolicyResult is the outcome of the password ladder.
type PolicyResult struct {
	Tier            scan.PolicyTier
	WeakestAccepted string
	Rungs           []classifier.RungResult
}

// PasswordPolicy walks the full ladder on connection (check 3.2). Every rung
// is tested because acceptance is not monotonic across policy settings. The
// walk only stops early when signup turns out to be disabled.
func (a *AccountChecks) PasswordPolicy(ctx context.Context, connection string) (PolicyResult, Report) {
	record := newRecord(CheckPasswordPolicy, scan.PhaseConnections, connection)
	var (
		results  []classifier.RungResult
		failures []string
		accepted []finding.Evidence
	)

	for _, rung := range classifier.PasswordLadder() {
		if ctx.Err() != nil {
			failures = append(failures, rung.Label+": scan canceled")
			break
		}
		email := TestEmail("policy_test", rung.Label)
		res := a.signup(ctx, CheckPasswordPolicy, connection, email, rung.Password)
		if res.Failed() {
			failures = append(failures, fmt.Sprintf("%s: %v", rung.Label, res.Failure))
			continue
		}
		outcome := classifier.Classify(classifier.KindPasswordPolicy, res.Response(""))
		if outcome.CreatesResource() {
			registerCreated(a.registry, CheckPasswordPolicy, connection, email, res)
			accepted = append(accepted, evidenceOf(res, fmt.Sprintf("accepted %q (%s)", rung.Password, rung.Label)))
		}
		results = append(results, classifier.RungResult{Rung: rung, Outcome: outcome})
		a.logger.Debug("password rung",
			zap.String("connection", connection),
			zap.String("rung", rung.Label),
			zap.String("outcome", string(outcome)))
		if outcome == classifier.SignupDisabled {
			break
		}
	}

	tier, weakest := classifier.DeriveTier(results)
	result := PolicyResult{Tier: tier, WeakestAccepted: weakest, Rungs: results}

	rungs := make(map[string]string, len(results))
	for _, r := range results {
		rungs[r.Rung.Label] = string(r.Outcome)
	}
	record.Details["password_policy"] = string(tier)
	record.Details["rungs"] = rungs
	if weakest != "" {
		record.Details["weakest_accepted"] = weakest
	}
	if len(failures) > 0 {
		record.Details["failures"] = failures
	}

	report := Report{}
	switch {
	case tier.IsWeak():
		record.Status = scan.CheckVulnerable
		severity := finding.SeverityMedium
		if tier == scan.PolicyLow {
			severity = finding.SeverityHigh
		}
		report.Findings = append(report.Findings, finding.Spec{
			CheckID:     CheckPasswordPolicy,
			Rule:        RuleWeakPasswordPolicy,
			Phase:       int(scan.PhaseConnections),
			Connection:  connection,
			Severity:    severity,
			Title:       fmt.Sprintf("Weak password policy (%s)", tier),
			Description: fmt.Sprintf("%s accepted the password %q at signup.", connection, weakest),
			Evidence:    accepted,
		})
	case tier == scan.PolicyUnknown:
		if len(results) == 0 && len(failures) > 0 {
			record.Status = scan.CheckError
			record.Reason = "every password probe failed"
		} else if len(results) > 0 && results[len(results)-1].Outcome == classifier.SignupDisabled {
			record.Status = scan.CheckSkipped
			record.Reason = sharedErrors.ErrSignupDisabled.Error()
		} else {
			record.Status = scan.CheckInconclusive
			record.Reason = "no rung produced a recognizable answer"
		}
	}
	report.Record = record
	a.logger.Info("password policy", zap.String("connection", connection), zap.String("tier", string(tier)))
	return result, report
}

// SignupResult is the outcome of the public signup probe.
type SignupResult struct {
	Enabled         bool
	CrossConnection bool
	Identity        *Identity
}

// PublicSignup creates a throwaway account on connection (check 3.3) and
// derives cross-connection signup (check 3.4): signup that works on a
// connection other than the application's own.
func (a *AccountChecks) PublicSignup(ctx context.Context, connection string) (SignupResult, []Report) {
	record := newRecord(CheckPublicSignup, scan.PhaseConnections, connection)
	cross := newRecord(CheckCrossConnection, scan.PhaseConnections, connection)
	email := TestEmail("signup_test", "")

	res := a.signup(ctx, CheckPublicSignup, connection, email, enumerationPassword)
	if res.Failed() {
		cross.Status = scan.CheckSkipped
		cross.Reason = "public signup could not be tested"
		return SignupResult{}, []Report{{Record: failRecord(record, res)}, {Record: cross}}
	}

	result := SignupResult{}
	report := Report{}
	outcome := classifier.Classify(classifier.KindPublicSignup, res.Response(""))
	record.Details["outcome"] = string(outcome)
	switch outcome {
	case classifier.UserCreated:
		id := registerCreated(a.registry, CheckPublicSignup, connection, email, res)
		result.Enabled = true
		result.Identity = &id
		record.Status = scan.CheckVulnerable
		record.Details["public_signup_enabled"] = true
		record.Details["test_account_created"] = email
		report.Findings = append(report.Findings, finding.Spec{
			CheckID:     CheckPublicSignup,
			Rule:        RulePublicSignup,
			Phase:       int(scan.PhaseConnections),
			Connection:  connection,
			Severity:    finding.SeverityMedium,
			Title:       "Public signup enabled",
			Description: fmt.Sprintf("Anyone can create accounts on %s; the scan created %s.", connection, email),
			Evidence:    []finding.Evidence{evidenceOf(res, "")},
		})
	case classifier.SignupDisabled:
		record.Details["public_signup_enabled"] = false
	default:
		record.Status = scan.CheckInconclusive
		record.Reason = fmt.Sprintf("%s: %s", sharedErrors.ErrResourceCreation, res.Excerpt())
	}
	report.Record = record

	crossReport := Report{}
	switch {
	case record.Status == scan.CheckInconclusive:
		cross.Status = scan.CheckSkipped
		cross.Reason = "public signup status unknown"
	case result.Enabled && connection != a.target.AppConnection:
		result.CrossConnection = true
		cross.Status = scan.CheckVulnerable
		crossReport.Findings = append(crossReport.Findings, finding.Spec{
			CheckID:    CheckCrossConnection,
			Rule:       RuleCrossConnectionSignup,
			Phase:      int(scan.PhaseConnections),
			Connection: connection,
			Severity:   finding.SeverityHigh,
			Title:      "Signup possible on a connection the application does not use",
			Description: fmt.Sprintf("Accounts can be created on %s although the application signs users up on %s; such accounts may reach the application through the shared tenant.",
				connection, a.target.AppConnection),
			Evidence: []finding.Evidence{evidenceOf(res, "")},
		})
	}
	cross.Details["app_connection"] = a.target.AppConnection
	crossReport.Record = cross

	return result, []Report{report, crossReport}
}
