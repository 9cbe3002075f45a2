package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func TestVariationsCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	c := &cobra.Command{Use: "variations"}
	c.SetOut(&out)
	c.SetErr(&errOut)

	if err := variationsCmd.RunE(c, []string{"acme"}); err != nil {
		t.Fatalf("variations: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) < 3 || lines[0] != "acme" || lines[1] != "Acme" || lines[2] != "ACME" {
		t.Fatalf("unexpected leading variations: %v", lines)
	}
	if !strings.Contains(errOut.String(), "variations for \"acme\"") {
		t.Fatalf("expected count on stderr, got %q", errOut.String())
	}
}

func TestVariationsCommandRejectsBlankKeyword(t *testing.T) {
	c := &cobra.Command{Use: "variations"}
	c.SetOut(&bytes.Buffer{})
	if err := variationsCmd.RunE(c, []string{"   "}); err == nil {
		t.Fatal("expected an error for a blank keyword")
	}
}

func TestWriteCheckCatalog(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})

	var out bytes.Buffer
	if err := writeCheckCatalog(&out); err != nil {
		t.Fatalf("writeCheckCatalog: %v", err)
	}

	listing := out.String()
	for _, want := range []string{"1.1", "Password Policy", "Logout Redirect", "Report formats: json, text, yaml"} {
		if !strings.Contains(listing, want) {
			t.Fatalf("expected %q in catalog listing, got %q", want, listing)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() {
		versionCmd.SetOut(nil)
		_ = versionCmd.Flags().Set("detailed", "false")
	})

	versionCmd.Run(versionCmd, nil)
	if got := out.String(); got != "idprecon version dev\n" {
		t.Fatalf("unexpected version output %q", got)
	}

	out.Reset()
	if err := versionCmd.Flags().Set("detailed", "true"); err != nil {
		t.Fatalf("failed to set detailed flag: %v", err)
	}
	versionCmd.Run(versionCmd, nil)
	if !strings.Contains(out.String(), "Go Version:") || !strings.Contains(out.String(), "Checks:     11") {
		t.Fatalf("expected detailed output, got %q", out.String())
	}
}
