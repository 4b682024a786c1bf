// Package cmd implements the jobprocessor CLI.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebu/mcma-projects-sub000/internal/config"
	"github.com/ebu/mcma-projects-sub000/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records the build metadata injected via ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	flagConfigFile string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "jobprocessor",
	Short: "Media job processing service",
	Long: `jobprocessor orchestrates media processing jobs across registered
services: it accepts jobs over REST, matches them to capable services via
the capability registry, dispatches job assignments and reconciles the
asynchronous status notifications the services send back.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Printf("jobprocessor %s (commit %s, built %s)\n",
			versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	},
}

// loadConfig loads the configuration honoring the persistent flags.
func loadConfig(ctx context.Context) (*config.Config, error) {
	var overrides []map[string]any
	if flagLogLevel != "" {
		overrides = append(overrides, map[string]any{
			"logging": map[string]any{"level": flagLogLevel},
		})
	}
	return config.Load(ctx, flagConfigFile, overrides...)
}

// newLogger builds the logger from the loaded config.
func newLogger(cfg *config.Config, profile string) (*zap.Logger, error) {
	if profile == "" {
		profile = cfg.Logging.Profile
	}
	return observability.NewLogger(cfg.Logging.Level, profile)
}
