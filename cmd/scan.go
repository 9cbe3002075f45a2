package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/khanhnv2901/idprecon/internal/application"
	"github.com/khanhnv2901/idprecon/internal/domain/finding"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/report"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the phased reconnaissance scan against a tenant",
	Long: `Run the four scan phases against a tenant:

  1  Reconnaissance        OpenID configuration, CORS, /authorize redirect_uri
  2  Connection discovery  password grant detection and connection enumeration
  3  Per-connection tests  username enumeration, password policy, public signup
  4  Application attacks   open redirect parameters and logout returnTo

Phase 3 creates test accounts. They are deleted at the end of the scan when
--management-token (or IDPRECON_MANAGEMENT_TOKEN) is set; otherwise, or with
--no-cleanup, they are listed in the report for manual removal.`,
	Example: `  idprecon scan --domain tenant.example.com --client-id abc123 --target-app https://app.example.com
  idprecon scan --domain tenant.example.com --client-id abc123 --target-app https://app.example.com \
    --phases 1,2 --connections-keyword acme --format json,yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyConfigDefaults(cmd, scanConfig)
		return runScan(cmd, scanConfig)
	},
}

func runScan(cmd *cobra.Command, runtimeCfg *ScanRuntimeConfig) error {
	formats, err := report.ParseFormats(runtimeCfg.Formats)
	if err != nil {
		return &InvalidSettingError{Name: "format", Err: err}
	}

	cfg, err := runtimeCfg.ScanConfig()
	if err != nil {
		return err
	}

	log := logger
	if log == nil {
		log = zap.NewNop()
	}

	container, err := application.NewContainer(cfg, log)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	out := cmd.OutOrStdout()
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\n%s Received %s, finalizing partial results and cleaning up...\n", colorWarn("!"), sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	printScanHeader(out, cfg)

	var progress *progressPrinter
	if !runtimeCfg.NoProgress {
		progress = newProgressPrinter(out)
		container.Orchestrator.WithObserver(progress)
		progress.Start()
	}

	rep := container.Orchestrator.Run(ctx)
	if progress != nil {
		progress.Stop()
	}

	// partial results are still written after an interrupt
	paths, err := container.ReportRepo.Save(context.WithoutCancel(ctx), rep, formats)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	if runtimeCfg.MetricsFile != "" {
		if err := container.Stats.WriteTextfile(runtimeCfg.MetricsFile); err != nil {
			log.Warn("failed to write metrics file", zap.String("path", runtimeCfg.MetricsFile), zap.Error(err))
		}
	}

	printScanSummary(out, rep, paths)
	return nil
}

func printScanHeader(w io.Writer, cfg scan.ScanConfig) {
	fmt.Fprintf(w, "%s Target:  %s\n", colorInfo("→"), cfg.Domain())
	fmt.Fprintf(w, "%s Client:  %s\n", colorInfo("→"), cfg.ClientID())
	fmt.Fprintf(w, "%s App:     %s\n", colorInfo("→"), cfg.TargetAppURL())
	fmt.Fprintf(w, "%s Phases:  %v  Workers: %d  Delay: %s\n", colorInfo("→"), cfg.Phases().Ints(), cfg.Workers(), cfg.RateLimitDelay())
	if cfg.Phases().Contains(scan.PhaseConnections) {
		if cfg.Cleanup() && cfg.ManagementToken() == "" {
			fmt.Fprintf(w, "%s No management token: test accounts will be listed for manual cleanup\n", colorWarn("!"))
		} else if !cfg.Cleanup() {
			fmt.Fprintf(w, "%s Cleanup disabled: test accounts will be left on the tenant\n", colorWarn("!"))
		}
	}
	fmt.Fprintln(w)
}

func printScanSummary(w io.Writer, rep scan.ScanReport, paths []string) {
	meta := rep.Metadata
	risk := rep.RiskSummary

	fmt.Fprintln(w)
	if meta.Canceled {
		fmt.Fprintf(w, "%s Scan interrupted; report contains partial results\n", colorWarn("!"))
	}
	fmt.Fprintf(w, "Scan %s finished in %.1fs (%d requests, %d rate limited, %d errors)\n",
		meta.ScanID, meta.DurationSeconds, meta.TotalRequests, meta.RateLimitedCount, meta.ErrorCount)
	fmt.Fprintf(w, "Overall risk: %s\n", formatSeverityWithColor(risk.OverallRisk))
	for _, sev := range finding.AllSeverities() {
		if n := risk.Count(sev); n > 0 {
			fmt.Fprintf(w, "  %-8s %d\n", formatSeverityWithColor(sev), n)
		}
	}

	if rep.Phase2 != nil && len(rep.Phase2.Found) > 0 {
		fmt.Fprintf(w, "Discovered connections: %v\n", rep.Phase2.Found)
	}

	if c := meta.Cleanup; c != nil && c.Registered > 0 {
		status := colorSuccess(fmt.Sprintf("%d/%d deleted", c.Deleted, c.Registered))
		if len(c.Failed)+len(c.Pending) > 0 {
			status = colorWarn(fmt.Sprintf("%d/%d deleted, %d need manual removal", c.Deleted, c.Registered, len(c.Failed)+len(c.Pending)))
		}
		if c.Reason != "" {
			status += " (" + c.Reason + ")"
		}
		fmt.Fprintf(w, "Test accounts: %s\n", status)
	}

	for _, p := range paths {
		fmt.Fprintf(w, "%s Report written to %s\n", colorSuccess("✓"), p)
	}
}

func init() {
	registerScanFlags(scanCmd.Flags(), scanConfig)
}

func registerScanFlags(flags *pflag.FlagSet, cfg *ScanRuntimeConfig) {
	flags.StringVar(&cfg.Domain, "domain", "", "tenant domain, e.g. tenant.example.com (required)")
	flags.StringVar(&cfg.ClientID, "client-id", "", "client identifier of the target application (required)")
	flags.StringVar(&cfg.TargetApp, "target-app", "", "URL of the application using the tenant (required)")
	flags.StringVar(&cfg.ConnectionWordlist, "connection-wordlist", "", "file with additional connection names, one per line")
	flags.StringVar(&cfg.ConnectionKeyword, "connections-keyword", "", "keyword used to generate connection name variations")
	flags.StringVar(&cfg.EnumerateUser, "enumerate-user", "", "email address to test for username enumeration")
	flags.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "directory for report files")
	flags.Float64Var(&cfg.RateLimitSecs, "rate-limit-delay", cfg.RateLimitSecs, "delay in seconds before each request")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of concurrent workers")
	flags.StringVar(&cfg.Proxy, "proxy", "", "proxy URL (http, https or socks5)")
	flags.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent header sent with every request")
	flags.Var(invertedBool{&cfg.NoCleanup}, "cleanup", "delete created test accounts at the end of the scan")
	flags.Lookup("cleanup").NoOptDefVal = "true"
	flags.BoolVar(&cfg.NoCleanup, "no-cleanup", cfg.NoCleanup, "leave created test accounts on the tenant")
	flags.StringVar(&cfg.Phases, "phases", cfg.Phases, "comma separated phases to run")
	flags.StringVar(&cfg.AttackerHost, "attacker-host", cfg.AttackerHost, "host injected into redirect and origin probes")
	flags.StringVar(&cfg.AppConnection, "app-connection", cfg.AppConnection, "connection the application signs users into")
	flags.StringVar(&cfg.ManagementToken, "management-token", "", "management API token used to delete test accounts")
	flags.IntVar(&cfg.TimeoutSecs, "timeout", cfg.TimeoutSecs, "per-request timeout in seconds")
	flags.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "retries for transient failures and 429 responses")
	flags.Float64Var(&cfg.MaxRPS, "max-rps", 0, "global request ceiling per second (0 disables)")
	flags.BoolVar(&cfg.TrustWordlist, "trust-wordlist", false, "test wordlist connections in Phase 3 without Phase 2 confirmation")
	flags.StringSliceVar(&cfg.Formats, "format", cfg.Formats, "report formats: json, text, yaml")
	flags.StringVar(&cfg.MetricsFile, "metrics-file", "", "write request metrics in Prometheus text format to this file")
	flags.BoolVar(&cfg.NoProgress, "no-progress", false, "disable the progress line")

	flags.SetNormalizeFunc(normalizeScanFlag)
}

// scanFlagAliases keeps earlier flag spellings working.
var scanFlagAliases = map[string]string{
	"rate-limit": "rate-limit-delay",
	"output-dir": "output",
}

func normalizeScanFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if alias, ok := scanFlagAliases[name]; ok {
		name = alias
	}
	return pflag.NormalizedName(name)
}

// invertedBool is a boolean flag that stores the negation of its value, so
// --cleanup and --no-cleanup share one setting.
type invertedBool struct {
	dst *bool
}

func (b invertedBool) String() string {
	if b.dst == nil {
		return "true"
	}
	return strconv.FormatBool(!*b.dst)
}

func (b invertedBool) Set(value string) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return err
	}
	*b.dst = !v
	return nil
}

func (b invertedBool) Type() string {
	return "bool"
}
