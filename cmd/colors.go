package cmd

import (
	"strings"

	"github.com/fatih/color"

	"github.com/khanhnv2901/idprecon/internal/domain/finding"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorSevere  = color.New(color.FgRed, color.Bold).SprintFunc()
)

func formatStatusWithColor(status string) string {
	switch strings.ToLower(status) {
	case "ok", "passed", "found":
		return colorSuccess(status)
	case "vulnerable", "error":
		return colorError(status)
	case "skipped", "unclear":
		return colorWarn(status)
	default:
		return status
	}
}

func formatSeverityWithColor(s finding.Severity) string {
	switch s {
	case finding.SeverityCritical:
		return colorSevere(s.String())
	case finding.SeverityHigh:
		return colorError(s.String())
	case finding.SeverityMedium:
		return colorWarn(s.String())
	case finding.SeverityLow:
		return colorInfo(s.String())
	default:
		return s.String()
	}
}
