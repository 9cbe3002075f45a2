package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "IDPRECON"

var cfgFile string
var verbose bool
var logger *zap.Logger

var rootCmd = &cobra.Command{
	Use:   "idprecon",
	Short: "Black-box misconfiguration scanner for identity platform tenants (authorized testing only)",
	Long: `idprecon probes the public endpoints of an identity platform tenant for
common misconfigurations: exposed grants, open redirects, connection
enumeration, weak signup policies and permissive CORS.

Only run it against tenants you are authorized to assess. Phase 3 creates
test accounts, which are deleted at the end of the scan when a management
token is provided.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}

		l, err := newLogger(verbose, viper.GetString("log_level"))
		if err != nil {
			return err
		}
		logger = l

		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("loaded config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(colorError("Error:"), err)
		os.Exit(1)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".idprecon")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// only a missing default config file is tolerated
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return &ConfigFileError{Path: viper.ConfigFileUsed(), Err: err}
		}
	}
	return nil
}

// newLogger builds the process logger. Production output is JSON on stderr
// so it never interleaves with the progress line on stdout.
func newLogger(verbose bool, level string) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	if level == "" {
		level = "warn"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, &InvalidSettingError{Name: "log_level", Value: level, Err: err}
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.idprecon.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable development logging at debug level")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(variationsCmd)
	rootCmd.AddCommand(checksCmd)
	rootCmd.AddCommand(versionCmd)
}
