package checker

import (
	"context"
	"fmt"

	"github.com/khanhnv2901/idprecon/internal/classifier"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/probe"
)

// redirectAttempt is one injected redirect target.
type redirectAttempt struct {
	label        string
	injectedHost string
	request      probe.Request
}

type redirectSweep struct {
	summary scan.RedirectSummary
	hits    []probe.Result
	unclear []probe.Result
	failed  int
}

// sweepRedirects sends every attempt in order and classifies the Location
// each one produces. One failed attempt never stops the sweep.
func sweepRedirects(ctx context.Context, prober Prober, attempts []redirectAttempt) redirectSweep {
	sweep := redirectSweep{summary: scan.RedirectSummary{Tested: len(attempts), Vulnerable: []string{}}}
	for _, a := range attempts {
		if ctx.Err() != nil {
			sweep.summary.Errors = append(sweep.summary.Errors, fmt.Sprintf("%s: not tested, scan canceled", a.label))
			sweep.failed++
			continue
		}
		res := prober.Execute(ctx, a.request)
		if res.Failed() {
			sweep.summary.Errors = append(sweep.summary.Errors, fmt.Sprintf("%s: %v", a.label, res.Failure))
			sweep.failed++
			continue
		}
		switch classifier.Classify(classifier.KindOpenRedirect, res.Response(a.injectedHost)) {
		case classifier.Vulnerable:
			if sweep.summary.FirstVulnerable == "" {
				sweep.summary.FirstVulnerable = a.label
			}
			sweep.summary.Vulnerable = append(sweep.summary.Vulnerable, a.label)
			sweep.hits = append(sweep.hits, res)
		case classifier.Unclear:
			sweep.summary.Unclear = append(sweep.summary.Unclear, a.label)
			sweep.unclear = append(sweep.unclear, res)
		}
	}
	return sweep
}

// record derives the check status from the sweep.
func (s redirectSweep) record(record scan.CheckRecord) scan.CheckRecord {
	record.Details["total_tested"] = s.summary.Tested
	record.Details["vulnerable_bypasses"] = s.summary.Vulnerable
	switch {
	case len(s.summary.Vulnerable) > 0:
		record.Status = scan.CheckVulnerable
	case s.failed == s.summary.Tested && s.summary.Tested > 0:
		record.Status = scan.CheckError
		record.Reason = "every redirect probe failed"
	case len(s.summary.Unclear) > 0 || s.failed > 0:
		record.Status = scan.CheckInconclusive
		record.Reason = fmt.Sprintf("%d unclear, %d failed", len(s.summary.Unclear), s.failed)
	}
	return record
}
