package checker

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/khanhnv2901/idprecon/internal/classifier"
	"github.com/khanhnv2901/idprecon/internal/domain/finding"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/probe"
)

// Method is how connection names are tested.
type Method string

const (
	// MethodPasswordGrant probes the token endpoint; works for every
	// connection type.
	MethodPasswordGrant Method = "password_grant"
	// MethodSignup probes the signup endpoint; finds database connections only.
	MethodSignup Method = "signup_enumeration"
)

const (
	dummyUsername       = "test@test.com"
	dummyPassword       = "dummy_password_123"
	enumerationPassword = "TestPassword123!"
)

// GrantDetection is the result of the password grant probe.
type GrantDetection struct {
	Outcome classifier.Outcome
	Result  probe.Result
}

// Method picks the enumeration method. An unclear answer keeps the token
// endpoint, which also reveals non-database connections.
func (g GrantDetection) Method() Method {
	if g.Outcome == classifier.GrantDisabled {
		return MethodSignup
	}
	return MethodPasswordGrant
}

// Enumerator probes single connection names.
type Enumerator struct {
	prober   Prober
	target   Target
	registry *Registry
	method   Method
	logger   *zap.Logger
}

// NewEnumerator creates an Enumerator using the token endpoint. Use
// WithMethod to switch to signup enumeration.
func NewEnumerator(prober Prober, target Target, registry *Registry, logger *zap.Logger) *Enumerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enumerator{
		prober:   prober,
		target:   target,
		registry: registry,
		method:   MethodPasswordGrant,
		logger:   logger.With(zap.Int("phase", int(scan.PhaseDiscovery))),
	}
}

// WithMethod returns a copy of e that probes with m.
func (e *Enumerator) WithMethod(m Method) *Enumerator {
	clone := *e
	clone.method = m
	return &clone
}

// Method returns the active enumeration method.
func (e *Enumerator) Method() Method {
	return e.method
}

func (e *Enumerator) tokenRequest(check, connection string) (probe.Request, error) {
	return probe.NewJSONRequest(
		probe.Key{Phase: int(scan.PhaseDiscovery), Check: check, Connection: connection},
		http.MethodPost,
		e.target.endpoint("/oauth/token"),
		map[string]string{
			"client_id":  e.target.ClientID,
			"connection": connection,
			"grant_type": "password",
			"username":   dummyUsername,
			"password":   dummyPassword,
			"scope":      "openid",
		},
	)
}

// DetectPasswordGrant sends one password grant with the application's
// connection and classifies whether the grant is allowed (check 2.2).
func (e *Enumerator) DetectPasswordGrant(ctx context.Context) GrantDetection {
	req, err := e.tokenRequest(CheckPasswordGrant, e.target.AppConnection)
	if err != nil {
		return GrantDetection{Outcome: classifier.Unclear, Result: probe.Result{Failure: &probe.Failure{Kind: probe.FailureInvalidRequest, Detail: err.Error()}}}
	}
	res := e.prober.Execute(ctx, req)
	if res.Failed() {
		return GrantDetection{Outcome: classifier.Unclear, Result: res}
	}
	outcome := classifier.Classify(classifier.KindGrantDetection, res.Response(""))
	e.logger.Info("password grant detection", zap.String("outcome", string(outcome)))
	return GrantDetection{Outcome: outcome, Result: res}
}

// GrantReport turns the detection into a check record and, when conclusive,
// a finding.
func GrantReport(g GrantDetection) Report {
	record := newRecord(CheckPasswordGrant, scan.PhaseDiscovery, "")
	record.Details["method_used"] = string(g.Method())
	report := Report{}

	switch g.Outcome {
	case classifier.GrantEnabled:
		record.Status = scan.CheckVulnerable
		record.Details["password_grant_enabled"] = true
		report.Findings = append(report.Findings, finding.Spec{
			CheckID:     CheckPasswordGrant,
			Rule:        RulePasswordGrantAccepted,
			Phase:       int(scan.PhaseDiscovery),
			Severity:    finding.SeverityMedium,
			Title:       "Password grant accepted by the token endpoint",
			Description: "The token endpoint processed a resource owner password grant for this client, so credentials can be tested directly and connections enumerated.",
			Evidence:    []finding.Evidence{evidenceOf(g.Result, "")},
		})
	case classifier.GrantDisabled:
		record.Details["password_grant_enabled"] = false
		report.Findings = append(report.Findings, finding.Spec{
			CheckID:     CheckPasswordGrant,
			Rule:        RulePasswordGrantRejected,
			Phase:       int(scan.PhaseDiscovery),
			Severity:    finding.SeverityInfo,
			Title:       "Password grant rejected for this client",
			Description: "The token endpoint refuses the password grant; connections are enumerated through signup instead.",
			Evidence:    []finding.Evidence{evidenceOf(g.Result, "")},
		})
	default:
		if g.Result.Failed() {
			record = failRecord(record, g.Result)
		} else {
			record.Status = scan.CheckInconclusive
			record.Reason = fmt.Sprintf("unrecognized response (HTTP %d), assuming the grant is available", g.Result.StatusCode)
		}
	}
	report.Record = record
	return report
}

// ProbeConnection tests one connection name with the active method. A
// signup that actually creates an account is registered for cleanup.
func (e *Enumerator) ProbeConnection(ctx context.Context, name string) (classifier.Outcome, probe.Result) {
	if e.method == MethodSignup {
		return e.probeSignup(ctx, name)
	}
	req, err := e.tokenRequest(CheckConnectionEnum, name)
	if err != nil {
		return classifier.Unclear, probe.Result{Failure: &probe.Failure{Kind: probe.FailureInvalidRequest, Detail: err.Error()}}
	}
	res := e.prober.Execute(ctx, req)
	if res.Failed() {
		return classifier.Unclear, res
	}
	return classifier.Classify(classifier.KindConnection, res.Response("")), res
}

func (e *Enumerator) probeSignup(ctx context.Context, name string) (classifier.Outcome, probe.Result) {
	email := TestEmail("enumtest", "")
	req, err := signupRequest(e.target, probe.Key{Phase: int(scan.PhaseDiscovery), Check: CheckConnectionEnum, Connection: name},
		name, email, enumerationPassword)
	if err != nil {
		return classifier.Unclear, probe.Result{Failure: &probe.Failure{Kind: probe.FailureInvalidRequest, Detail: err.Error()}}
	}
	res := executeSignup(ctx, e.prober, req)
	if res.Failed() {
		return classifier.Unclear, res
	}
	if classifier.Classify(classifier.KindSignupEnumeration, res.Response("")) == classifier.UserCreated {
		registerCreated(e.registry, CheckConnectionEnum, name, email, res)
	}
	return classifier.Classify(classifier.KindConnectionSignup, res.Response("")), res
}

// executeSignup sends a request that may create an account. Nothing is sent
// once ctx is canceled, but a request already sent is not abandoned: the
// tenant may have created the account, and only the response tells which
// account to delete. The per-request timeout still bounds it.
func executeSignup(ctx context.Context, prober Prober, req probe.Request) probe.Result {
	if err := ctx.Err(); err != nil {
		return probe.Result{Key: req.Key, Request: req.Summary(), Failure: &probe.Failure{Kind: probe.FailureCanceled, Detail: err.Error()}}
	}
	return prober.Execute(context.WithoutCancel(ctx), req)
}

// signupRequest builds a /dbconnections/signup call.
func signupRequest(t Target, key probe.Key, connection, email, password string) (probe.Request, error) {
	return probe.NewJSONRequest(key, http.MethodPost, t.endpoint("/dbconnections/signup"), map[string]string{
		"client_id":  t.ClientID,
		"email":      email,
		"password":   password,
		"connection": connection,
	})
}
