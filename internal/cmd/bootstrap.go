package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebu/mcma-projects-sub000/internal/observability"
	"github.com/ebu/mcma-projects-sub000/pkg/manifest"
	"github.com/ebu/mcma-projects-sub000/pkg/registry"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Register manifest services and job profiles",
	Long: `Ensure the services and job profiles declared in a bootstrap
manifest exist in the capability registry. Existing resources are left
untouched; missing ones are created.

Examples:
  # Bootstrap from the manifest configured in jobprocessor.yaml
  jobprocessor bootstrap

  # Bootstrap from an explicit manifest
  jobprocessor bootstrap --manifest deploy/services.yaml`,
	RunE: runBootstrap,
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
	bootstrapCmd.Flags().String("manifest", "", "Path to the bootstrap manifest (overrides config)")
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, observability.ProfileConsole)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	path, _ := cmd.Flags().GetString("manifest")
	if path == "" {
		path = cfg.Manifest.Path
	}
	if path == "" {
		return fmt.Errorf("no manifest given: set --manifest or manifest.path in config")
	}

	m, err := manifest.Load(path)
	if err != nil {
		return err
	}

	reg, err := registry.NewHTTPClient(registry.HTTPConfig{
		ServicesEndpoint:      cfg.Registry.ServicesEndpoint,
		JobProfilesEndpoint:   cfg.Registry.JobProfilesEndpoint,
		NotificationsEndpoint: cfg.Registry.NotificationsEndpoint,
		AuthHeader:            cfg.Registry.AuthHeader,
		AuthValue:             cfg.Registry.AuthValue,
		Timeout:               cfg.Registry.Timeout,
	})
	if err != nil {
		return fmt.Errorf("create registry client: %w", err)
	}

	result, err := manifest.Bootstrap(ctx, m, reg, log)
	if err != nil {
		return err
	}

	log.Info("Bootstrap complete",
		zap.Int("services_created", result.ServicesCreated),
		zap.Int("services_found", result.ServicesFound),
		zap.Int("profiles_created", result.ProfilesCreated),
		zap.Int("profiles_found", result.ProfilesFound))
	return nil
}
