package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/idprecon/internal/domain/finding"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/idprecon/internal/shared/errors"
)

// Format is a report rendering.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatYAML Format = "yaml"
)

// Extension returns the file extension used for the format.
func (f Format) Extension() string {
	switch f {
	case FormatText:
		return "txt"
	default:
		return string(f)
	}
}

// ParseFormats parses a list such as "json,text".
func ParseFormats(values []string) ([]Format, error) {
	var out []Format
	seen := make(map[Format]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			f := Format(strings.ToLower(strings.TrimSpace(part)))
			if f == "" {
				continue
			}
			if f == "txt" {
				f = FormatText
			}
			switch f {
			case FormatJSON, FormatText, FormatYAML:
			default:
				return nil, fmt.Errorf("%w: %q", sharedErrors.ErrUnknownFormat, part)
			}
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	if len(out) == 0 {
		out = []Format{FormatJSON, FormatText}
	}
	return out, nil
}

// Render serializes r in the given format.
func Render(r scan.ScanReport, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
		}
		return buf.Bytes(), nil
	case FormatText:
		var buf bytes.Buffer
		if err := WriteText(&buf, r); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %q", sharedErrors.ErrUnknownFormat, format)
	}
}

var (
	heavyRule = strings.Repeat("=", 70)
	lightRule = strings.Repeat("-", 70)
)

// WriteText writes the human-readable summary of r.
func WriteText(w io.Writer, r scan.ScanReport) error {
	tw := &textWriter{w: w}
	meta := r.Metadata

	tw.line(heavyRule)
	tw.line("IDENTITY TENANT RECON SUMMARY")
	tw.line(heavyRule)
	tw.line("")
	tw.printf("Target Domain: %s\n", meta.TargetDomain)
	tw.printf("Client ID: %s\n", meta.ClientID)
	tw.printf("Target App: %s\n", meta.TargetAppURL)
	tw.printf("Scan ID: %s\n", meta.ScanID)
	tw.printf("Scan Start: %s\n", meta.ScanStart.Format("2006-01-02 15:04:05 MST"))
	tw.printf("Duration: %.1f seconds\n", meta.DurationSeconds)
	tw.printf("Requests: %d (rate limited: %d, errors: %d)\n", meta.TotalRequests, meta.RateLimitedCount, meta.ErrorCount)
	if meta.Canceled {
		tw.line("Status: INTERRUPTED, results are partial")
	}
	tw.line("")

	tw.section("RISK SUMMARY")
	risk := r.RiskSummary
	tw.printf("Overall Risk Level: %s\n\n", risk.OverallRisk)
	for _, s := range finding.AllSeverities() {
		tw.printf("%s Findings: %d\n", titleCase(string(s)), risk.Count(s))
	}
	tw.printf("\nChecks: %d total, %d vulnerable, %d skipped, %d failed\n\n",
		risk.TotalChecks, risk.VulnerableChecks, risk.SkippedChecks, risk.FailedChecks)

	if r.Phase2 != nil && len(r.Phase2.Found) > 0 {
		tw.printf("Discovered Connections: %s\n\n", strings.Join(r.Phase2.Found, ", "))
	}

	if len(risk.Recommendations) > 0 {
		tw.section("TOP RECOMMENDATIONS")
		for i, rec := range risk.Recommendations {
			tw.printf("%d. %s\n", i+1, rec)
		}
		tw.line("")
	}

	tw.section("DETAILED FINDINGS")
	active := Active(r.Findings)
	if len(active) == 0 {
		tw.line("No findings.")
		tw.line("")
	}
	for _, s := range finding.AllSeverities() {
		for _, f := range active {
			if f.Severity != s {
				continue
			}
			tw.printf("[%s] %s %s\n", f.Severity, f.ID, f.Title)
			tw.printf("  Check: %s (phase %d)\n", f.CheckID, f.Phase)
			if f.Connection != "" {
				tw.printf("  Connection: %s\n", f.Connection)
			}
			if f.Description != "" {
				tw.printf("  Risk: %s\n", f.Description)
			}
			if f.Supersedes != "" {
				tw.printf("  Supersedes: %s\n", f.Supersedes)
			}
			tw.line("")
		}
	}

	if cleanup := meta.Cleanup; cleanup != nil && cleanup.Registered > 0 {
		tw.section("TEST ACCOUNTS")
		tw.printf("Created: %d, deleted: %d\n", cleanup.Registered, cleanup.Deleted)
		if cleanup.Reason != "" {
			tw.printf("Not deleted: %s\n", cleanup.Reason)
		}
		for _, p := range cleanup.Pending {
			tw.printf("  pending: %s\n", p)
		}
		for _, f := range cleanup.Failed {
			tw.printf("  failed: %s\n", f)
		}
		tw.line("")
	}

	tw.line(heavyRule)
	tw.line("END OF REPORT")
	tw.line(heavyRule)
	return tw.err
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return s[:1] + strings.ToLower(s[1:])
}

// textWriter remembers the first write error so the summary can be written
// without checking every line.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) line(s string) {
	t.printf("%s\n", s)
}

func (t *textWriter) section(title string) {
	t.line(lightRule)
	t.line(title)
	t.line(lightRule)
	t.line("")
}
