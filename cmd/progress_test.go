package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/khanhnv2901/idprecon/internal/classifier"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
)

func TestProgressPrinterLifecycle(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})

	var out bytes.Buffer
	printer := newProgressPrinter(&out)

	printer.Start()
	printer.PhaseStarted(scan.PhaseDiscovery)
	printer.ConnectionProbed("Username-Password-Authentication", classifier.Found)
	printer.ConnectionProbed("google-oauth2", classifier.NotFound)
	printer.ConnectionProbed("flaky", classifier.Unclear)
	time.Sleep(350 * time.Millisecond) // allow ticker to tick at least once
	printer.PhaseCompleted(scan.PhaseDiscovery, 1500*time.Millisecond)
	printer.Stop()

	output := out.String()
	if !strings.Contains(output, "Probed:3 Found:1 Unclear:1") {
		t.Fatalf("expected discovery counters in output, got %q", output)
	}
	if !strings.Contains(output, "Phase 2: Connection Discovery completed in 1.5s") {
		t.Fatalf("expected phase completion line, got %q", output)
	}
}

func TestProgressPrinterStopWithoutStart(t *testing.T) {
	var out bytes.Buffer
	printer := newProgressPrinter(&out)

	done := make(chan struct{})
	go func() {
		printer.Stop()
		printer.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a printer that was never started")
	}
}
