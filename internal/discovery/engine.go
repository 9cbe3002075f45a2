package discovery

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/khanhnv2901/idprecon/internal/checker"
	"github.com/khanhnv2901/idprecon/internal/classifier"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/probe"
	sharedErrors "github.com/khanhnv2901/idprecon/internal/shared/errors"
)

// Prober tests a single connection name.
type Prober interface {
	ProbeConnection(ctx context.Context, name string) (classifier.Outcome, probe.Result)
}

// Result partitions the candidates of one discovery run. Every partition is
// sorted.
type Result struct {
	TotalTested int
	Found       []string
	NotFound    []string
	Unclear     []scan.UnclearCandidate
	Canceled    bool
}

// FoundCandidates returns the found names as candidates, keeping their
// provenance.
func (r Result) FoundCandidates(candidates []scan.ConnectionCandidate) []scan.ConnectionCandidate {
	found := make(map[string]bool, len(r.Found))
	for _, name := range r.Found {
		found[name] = true
	}
	out := make([]scan.ConnectionCandidate, 0, len(r.Found))
	for _, c := range dedupe(candidates) {
		if found[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

// OnProbe is called after each candidate completes.
type OnProbe func(name string, outcome classifier.Outcome)

// Engine runs discovery on a bounded worker pool.
type Engine struct {
	prober  Prober
	workers int
	logger  *zap.Logger
	onProbe OnProbe
}

// NewEngine creates an engine probing with up to workers concurrent probes.
func NewEngine(prober Prober, workers int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	return &Engine{prober: prober, workers: workers, logger: logger.With(zap.Int("phase", int(scan.PhaseDiscovery)))}
}

// WithProgress registers a callback invoked after every probe. It must be
// safe for concurrent use.
func (e *Engine) WithProgress(fn OnProbe) *Engine {
	e.onProbe = fn
	return e
}

type probeOutcome struct {
	candidate scan.ConnectionCandidate
	outcome   classifier.Outcome
	result    probe.Result
}

// Discover probes every distinct candidate exactly once. Failed probes mark
// their candidate unclear and never stop the run. After cancellation no new
// candidates are claimed; the ones left untested are reported unclear.
func (e *Engine) Discover(ctx context.Context, candidates []scan.ConnectionCandidate) Result {
	unique := dedupe(candidates)
	e.logger.Info("connection discovery started", zap.Int("candidates", len(unique)), zap.Int("workers", e.workers))

	outcomes := checker.Run(ctx, checker.Runner{Concurrency: e.workers}, unique,
		func(ctx context.Context, c scan.ConnectionCandidate) probeOutcome {
			outcome, res := e.prober.ProbeConnection(ctx, c.Name)
			e.logger.Debug("connection probed",
				zap.String("connection", c.Name),
				zap.String("outcome", string(outcome)),
				zap.Int("status", res.StatusCode))
			if e.onProbe != nil {
				e.onProbe(c.Name, outcome)
			}
			return probeOutcome{candidate: c, outcome: outcome, result: res}
		})

	result := Result{
		TotalTested: len(outcomes),
		Found:       []string{},
		NotFound:    []string{},
		Unclear:     []scan.UnclearCandidate{},
	}
	processed := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		processed[o.candidate.Name] = true
		switch o.outcome {
		case classifier.Found:
			result.Found = append(result.Found, o.candidate.Name)
		case classifier.NotFound:
			result.NotFound = append(result.NotFound, o.candidate.Name)
		default:
			result.Unclear = append(result.Unclear, scan.UnclearCandidate{
				Name:       o.candidate.Name,
				Provenance: o.candidate.Provenance,
				Reason:     unclearReason(o.result),
			})
		}
	}
	for _, c := range unique {
		if processed[c.Name] {
			continue
		}
		result.Canceled = true
		result.Unclear = append(result.Unclear, scan.UnclearCandidate{
			Name:       c.Name,
			Provenance: c.Provenance,
			Reason:     "not tested: " + sharedErrors.ErrCanceled.Error(),
		})
	}

	sort.Strings(result.Found)
	sort.Strings(result.NotFound)
	sort.Slice(result.Unclear, func(i, j int) bool { return result.Unclear[i].Name < result.Unclear[j].Name })

	e.logger.Info("connection discovery finished",
		zap.Int("tested", result.TotalTested),
		zap.Int("found", len(result.Found)),
		zap.Int("unclear", len(result.Unclear)))
	return result
}

func unclearReason(res probe.Result) string {
	if res.Failed() {
		return res.Failure.Error()
	}
	return fmt.Sprintf("%s: HTTP %d: %s", sharedErrors.ErrAmbiguousResponse, res.StatusCode, res.Excerpt())
}
