// Package report folds the outputs of a scan into the final ScanReport and
// renders it as JSON, YAML or a plain-text summary.
package report

import (
	"sort"

	"github.com/khanhnv2901/idprecon/internal/domain/finding"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	consts "github.com/khanhnv2901/idprecon/internal/shared/constants"
)

// Snapshot is everything a run produced. Nil blocks belong to phases that
// did not run.
type Snapshot struct {
	Metadata    scan.Metadata
	Recon       *scan.ReconBlock
	Discovery   *scan.DiscoveryBlock
	Connections *scan.ConnectionsBlock
	Application *scan.ApplicationBlock
	Findings    []finding.Record
}

// Assemble builds the report for a snapshot. It never fails: an empty
// snapshot yields metadata, an INFO risk level and an empty finding list.
func Assemble(s Snapshot) scan.ScanReport {
	findings := make([]finding.Record, len(s.Findings))
	copy(findings, s.Findings)

	return scan.ScanReport{
		Metadata:    s.Metadata,
		Phase1:      s.Recon,
		Phase2:      s.Discovery,
		Phase3:      s.Connections,
		Phase4:      s.Application,
		RiskSummary: summarize(findings, allChecks(s)),
		Findings:    findings,
	}
}

// Active returns the findings that were not superseded.
func Active(findings []finding.Record) []finding.Record {
	out := make([]finding.Record, 0, len(findings))
	for _, f := range findings {
		if !f.Superseded {
			out = append(out, f)
		}
	}
	return out
}

func allChecks(s Snapshot) []scan.CheckRecord {
	var checks []scan.CheckRecord
	if s.Recon != nil {
		checks = append(checks, s.Recon.Checks...)
	}
	if s.Discovery != nil {
		checks = append(checks, s.Discovery.Checks...)
	}
	if s.Connections != nil {
		for _, p := range s.Connections.Profiles {
			checks = append(checks, p.Checks...)
		}
	}
	if s.Application != nil {
		checks = append(checks, s.Application.Checks...)
	}
	return checks
}

func summarize(findings []finding.Record, checks []scan.CheckRecord) scan.RiskSummary {
	summary := scan.RiskSummary{
		OverallRisk:     finding.SeverityInfo,
		Recommendations: []string{},
	}

	active := Active(findings)
	for _, f := range active {
		switch f.Severity {
		case finding.SeverityCritical:
			summary.CriticalFindings++
		case finding.SeverityHigh:
			summary.HighFindings++
		case finding.SeverityMedium:
			summary.MediumFindings++
		case finding.SeverityLow:
			summary.LowFindings++
		default:
			summary.InfoFindings++
		}
		if f.Severity.Rank() > summary.OverallRisk.Rank() {
			summary.OverallRisk = f.Severity
		}
	}

	for _, c := range checks {
		summary.TotalChecks++
		switch c.Status {
		case scan.CheckVulnerable:
			summary.VulnerableChecks++
		case scan.CheckSkipped:
			summary.SkippedChecks++
		case scan.CheckError:
			summary.FailedChecks++
		}
	}

	summary.Recommendations = recommend(active)
	return summary
}

// recommend ranks the remediation advice for active findings by severity,
// dropping duplicates and keeping the top entries.
func recommend(active []finding.Record) []string {
	ranked := make([]finding.Record, len(active))
	copy(ranked, active)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Severity.Rank() > ranked[j].Severity.Rank()
	})

	out := []string{}
	seen := make(map[string]bool)
	for _, f := range ranked {
		advice := Recommendation(f.Rule)
		if advice == "" {
			continue
		}
		line := string(f.Severity) + ": " + advice
		if seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
		if len(out) == consts.MaxRecommendations {
			break
		}
	}
	return out
}
