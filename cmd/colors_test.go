package cmd

import (
	"testing"

	"github.com/fatih/color"

	"github.com/khanhnv2901/idprecon/internal/domain/finding"
)

func TestFormatStatusWithColor(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})

	tests := []struct {
		name   string
		status string
		want   string
	}{
		{name: "passed", status: "passed", want: "passed"},
		{name: "vulnerable upper case", status: "VULNERABLE", want: "VULNERABLE"},
		{name: "skipped", status: "skipped", want: "skipped"},
		{name: "unknown", status: "pending", want: "pending"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatStatusWithColor(tt.status); got != tt.want {
				t.Fatalf("formatStatusWithColor(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestFormatSeverityWithColor(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})

	for _, sev := range finding.AllSeverities() {
		if got := formatSeverityWithColor(sev); got != sev.String() {
			t.Fatalf("formatSeverityWithColor(%s) = %q", sev, got)
		}
	}
}
