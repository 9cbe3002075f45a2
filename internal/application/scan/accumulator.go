package scan

import (
	"errors"
	"fmt"
	"sync"

	"github.com/khanhnv2901/idprecon/internal/checker"
	"github.com/khanhnv2901/idprecon/internal/domain/finding"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/report"
)

// Accumulator collects the output of one run. Findings are append-only:
// a finding is never removed, only marked superseded by a later one.
type Accumulator struct {
	mu          sync.Mutex
	findings    []finding.Finding
	superseded  map[string]bool
	recon       *scan.ReconBlock
	discovery   *scan.DiscoveryBlock
	connections *scan.ConnectionsBlock
	application *scan.ApplicationBlock
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{superseded: make(map[string]bool)}
}

// Add records a finding and returns its id.
func (a *Accumulator) Add(spec finding.Spec) (string, error) {
	f, err := finding.New(spec)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.appendLocked(f), nil
}

func (a *Accumulator) appendLocked(f finding.Finding) string {
	id := fmt.Sprintf("F-%03d", len(a.findings)+1)
	a.findings = append(a.findings, f.WithID(id))
	return id
}

// Supersede records spec as the replacement of the most recent active
// finding whose rule is one of rules. Without such a finding spec is added
// as is.
func (a *Accumulator) Supersede(spec finding.Spec, rules ...string) (string, error) {
	f, err := finding.New(spec)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.findings) - 1; i >= 0; i-- {
		old := a.findings[i]
		if a.superseded[old.ID()] || !hasRule(rules, old.Rule()) {
			continue
		}
		a.superseded[old.ID()] = true
		return a.appendLocked(f.Superseding(old.ID())), nil
	}
	return a.appendLocked(f), nil
}

func hasRule(rules []string, rule string) bool {
	for _, r := range rules {
		if r == rule {
			return true
		}
	}
	return false
}

// AddReport records every finding of a check report.
func (a *Accumulator) AddReport(r checker.Report) error {
	var errs []error
	for _, spec := range r.Findings {
		if _, err := a.Add(spec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Findings returns the recorded findings in the order they were added.
func (a *Accumulator) Findings() []finding.Finding {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]finding.Finding, len(a.findings))
	copy(out, a.findings)
	return out
}

// IsSuperseded reports whether the finding with id was replaced.
func (a *Accumulator) IsSuperseded(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.superseded[id]
}

func (a *Accumulator) SetRecon(b *scan.ReconBlock) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recon = b
}

func (a *Accumulator) SetDiscovery(b *scan.DiscoveryBlock) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discovery = b
}

func (a *Accumulator) SetConnections(b *scan.ConnectionsBlock) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connections = b
}

func (a *Accumulator) SetApplication(b *scan.ApplicationBlock) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.application = b
}

// Snapshot freezes the accumulated state for the report assembler.
func (a *Accumulator) Snapshot(meta scan.Metadata) report.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	records := make([]finding.Record, 0, len(a.findings))
	for _, f := range a.findings {
		rec := f.ToRecord()
		rec.Superseded = a.superseded[f.ID()]
		records = append(records, rec)
	}

	return report.Snapshot{
		Metadata:    meta,
		Recon:       a.recon,
		Discovery:   a.discovery,
		Connections: a.connections,
		Application: a.application,
		Findings:    records,
	}
}
