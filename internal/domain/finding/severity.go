package finding

import "strings"

// Severity represents the severity level of a finding.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// AllSeverities returns every severity, highest first.
func AllSeverities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}
}

// Rank returns a numeric rank for ordering. Critical=5 ... Info=1, unknown=0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity normalizes a severity name; unknown names map to INFO.
func ParseSeverity(value string) Severity {
	s := Severity(strings.ToUpper(strings.TrimSpace(value)))
	if s.IsValid() {
		return s
	}
	return SeverityInfo
}
