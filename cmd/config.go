package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/idprecon/internal/discovery"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/report"
	consts "github.com/khanhnv2901/idprecon/internal/shared/constants"
)

// ScanRuntimeConfig captures the flag-driven settings of the scan command.
type ScanRuntimeConfig struct {
	Domain             string
	ClientID           string
	TargetApp          string
	ConnectionWordlist string
	ConnectionKeyword  string
	EnumerateUser      string
	OutputDir          string
	RateLimitSecs      float64
	Workers            int
	Proxy              string
	UserAgent          string
	NoCleanup          bool
	Phases             string
	AttackerHost       string
	AppConnection      string
	ManagementToken    string
	TimeoutSecs        int
	MaxRetries         int
	MaxRPS             float64
	TrustWordlist      bool
	Formats            []string
	MetricsFile        string
	NoProgress         bool
}

var scanConfig = newScanRuntimeConfig()

func newScanRuntimeConfig() *ScanRuntimeConfig {
	return &ScanRuntimeConfig{
		OutputDir:     consts.DefaultOutputDir,
		RateLimitSecs: consts.DefaultRateLimitDelay.Seconds(),
		Workers:       consts.DefaultWorkers,
		UserAgent:     consts.DefaultUserAgent,
		Phases:        "1,2,3,4",
		AttackerHost:  consts.DefaultAttackerHost,
		AppConnection: consts.DefaultAppConnection,
		TimeoutSecs:   int(consts.DefaultRequestTimeout / time.Second),
		MaxRetries:    consts.DefaultMaxRetries,
		Formats:       []string{string(report.FormatJSON), string(report.FormatText)},
	}
}

// applyConfigDefaults merges config file and environment values into the
// runtime config when the user did not explicitly set the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command, cfg *ScanRuntimeConfig) {
	flags := cmd.Flags()

	stringSettings := []struct {
		flag string
		key  string
		dst  *string
	}{
		{"domain", "scan.domain", &cfg.Domain},
		{"client-id", "scan.client_id", &cfg.ClientID},
		{"target-app", "scan.target_app", &cfg.TargetApp},
		{"connection-wordlist", "scan.connection_wordlist", &cfg.ConnectionWordlist},
		{"output", "scan.output_dir", &cfg.OutputDir},
		{"proxy", "scan.proxy", &cfg.Proxy},
		{"user-agent", "scan.user_agent", &cfg.UserAgent},
		{"phases", "scan.phases", &cfg.Phases},
		{"attacker-host", "scan.attacker_host", &cfg.AttackerHost},
		{"app-connection", "scan.app_connection", &cfg.AppConnection},
		{"management-token", "management_token", &cfg.ManagementToken},
		{"metrics-file", "scan.metrics_file", &cfg.MetricsFile},
	}
	for _, s := range stringSettings {
		if viper.IsSet(s.key) {
			dst := s.dst
			applyStringDefault(flags, s.flag, viper.GetString(s.key), func(v string) { *dst = v })
		}
	}

	if viper.IsSet("scan.workers") {
		applyIntDefault(flags, "workers", viper.GetInt("scan.workers"), func(v int) { cfg.Workers = v })
	}
	if viper.IsSet("scan.timeout_secs") {
		applyIntDefault(flags, "timeout", viper.GetInt("scan.timeout_secs"), func(v int) { cfg.TimeoutSecs = v })
	}
	if viper.IsSet("scan.max_retries") {
		applyIntDefault(flags, "max-retries", viper.GetInt("scan.max_retries"), func(v int) { cfg.MaxRetries = v })
	}
	if viper.IsSet("scan.rate_limit") {
		applyFloatDefault(flags, "rate-limit-delay", viper.GetFloat64("scan.rate_limit"), func(v float64) { cfg.RateLimitSecs = v })
	}
	if viper.IsSet("scan.max_rps") {
		applyFloatDefault(flags, "max-rps", viper.GetFloat64("scan.max_rps"), func(v float64) { cfg.MaxRPS = v })
	}
	if viper.IsSet("scan.cleanup") && !flagChanged(flags, "cleanup") {
		applyBoolDefault(flags, "no-cleanup", !viper.GetBool("scan.cleanup"), func(v bool) { cfg.NoCleanup = v })
	}
	if viper.IsSet("scan.trust_wordlist") {
		applyBoolDefault(flags, "trust-wordlist", viper.GetBool("scan.trust_wordlist"), func(v bool) { cfg.TrustWordlist = v })
	}
	if viper.IsSet("scan.formats") {
		if flag := flags.Lookup("format"); flag == nil || !flag.Changed {
			cfg.Formats = viper.GetStringSlice("scan.formats")
		}
	}
}

// Options converts the runtime config into scan options, loading the
// connection wordlist from disk when one is given.
func (c *ScanRuntimeConfig) Options() (scan.Options, error) {
	opts := scan.DefaultOptions()

	phases, err := scan.ParsePhases(c.Phases)
	if err != nil {
		return scan.Options{}, &InvalidSettingError{Name: "phases", Value: c.Phases, Err: err}
	}

	if c.ConnectionWordlist != "" {
		names, err := discovery.LoadWordlist(c.ConnectionWordlist)
		if err != nil {
			return scan.Options{}, fmt.Errorf("failed to load connection wordlist: %w", err)
		}
		opts.CustomConnections = names
	}

	opts.Domain = c.Domain
	opts.ClientID = c.ClientID
	opts.TargetAppURL = c.TargetApp
	opts.ConnectionWordlist = c.ConnectionWordlist
	opts.ConnectionKeyword = c.ConnectionKeyword
	opts.EnumerateUser = c.EnumerateUser
	opts.OutputDir = c.OutputDir
	opts.RateLimitDelay = time.Duration(c.RateLimitSecs * float64(time.Second))
	opts.Workers = c.Workers
	opts.Proxy = c.Proxy
	opts.UserAgent = c.UserAgent
	opts.Cleanup = !c.NoCleanup
	opts.Phases = phases
	opts.AttackerHost = c.AttackerHost
	opts.AppConnection = c.AppConnection
	opts.ManagementToken = c.ManagementToken
	opts.RequestTimeout = time.Duration(c.TimeoutSecs) * time.Second
	opts.MaxRetries = c.MaxRetries
	opts.MaxRPS = c.MaxRPS
	opts.TrustWordlist = c.TrustWordlist
	return opts, nil
}

// ScanConfig validates the runtime config into an immutable scan.ScanConfig.
func (c *ScanRuntimeConfig) ScanConfig() (scan.ScanConfig, error) {
	opts, err := c.Options()
	if err != nil {
		return scan.ScanConfig{}, err
	}
	return scan.NewScanConfig(opts)
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	flag := flags.Lookup(name)
	return flag != nil && flag.Changed
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyFloatDefault(flags *pflag.FlagSet, name string, value float64, setter func(float64)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyBoolDefault(flags *pflag.FlagSet, name string, value bool, setter func(bool)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyStringDefault(flags *pflag.FlagSet, name, value string, setter func(string)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}
