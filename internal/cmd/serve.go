package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ebu/mcma-projects-sub000/internal/observability"
	"github.com/ebu/mcma-projects-sub000/internal/server"
	"github.com/ebu/mcma-projects-sub000/internal/server/handlers"
	"github.com/ebu/mcma-projects-sub000/pkg/dispatch"
	"github.com/ebu/mcma-projects-sub000/pkg/jobstore"
	"github.com/ebu/mcma-projects-sub000/pkg/lifecycle"
	"github.com/ebu/mcma-projects-sub000/pkg/locator"
	"github.com/ebu/mcma-projects-sub000/pkg/manifest"
	"github.com/ebu/mcma-projects-sub000/pkg/matcher"
	"github.com/ebu/mcma-projects-sub000/pkg/mutex"
	"github.com/ebu/mcma-projects-sub000/pkg/registry"
	"github.com/ebu/mcma-projects-sub000/pkg/resourcestore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job processor server",
	Long: `Run the REST server and the operation worker pool.

The server accepts jobs, queues lifecycle operations and reconciles
notifications from remote services. SIGINT/SIGTERM trigger a graceful
shutdown: the listener drains, then the workers finish in-flight
operations.

Examples:
  # Run with the default config search path
  jobprocessor serve

  # Run with an explicit config file
  jobprocessor serve --config /etc/jobprocessor/jobprocessor.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, observability.ProfileStructured)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	rs, err := resourcestore.Open(ctx, resourcestore.Config{
		Path:      cfg.Store.Path,
		URL:       cfg.Store.URL,
		AuthToken: cfg.Store.AuthToken,
	})
	if err != nil {
		return fmt.Errorf("open resource store: %w", err)
	}
	defer func() { _ = rs.Close() }()

	store := jobstore.New(rs, cfg.BaseURL())
	locks := mutex.NewFactory(rs, mutex.Config{
		TTL:            cfg.Mutex.TTL,
		AcquireTimeout: cfg.Mutex.AcquireTimeout,
		RetryInterval:  cfg.Mutex.RetryInterval,
	}, log)

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

	if cfg.Manifest.Path != "" {
		m, err := manifest.Load(cfg.Manifest.Path)
		if err != nil {
			return err
		}
		result, err := manifest.Bootstrap(ctx, m, reg, log)
		if err != nil {
			return fmt.Errorf("bootstrap registry: %w", err)
		}
		log.Info("Registry bootstrap complete",
			zap.Int("services_created", result.ServicesCreated),
			zap.Int("profiles_created", result.ProfilesCreated))
	}

	match := matcher.New(reg, matcher.Config{RequestTimeout: cfg.Registry.Timeout}, log)

	resolver, err := locator.NewResolver(ctx, locator.ResolverConfig{
		Region:          cfg.Locator.Region,
		Endpoint:        cfg.Locator.Endpoint,
		Profile:         cfg.Locator.Profile,
		AccessKeyID:     cfg.Locator.AccessKeyID,
		SecretAccessKey: cfg.Locator.SecretAccessKey,
		ForcePathStyle:  cfg.Locator.ForcePathStyle,
		PresignExpiry:   cfg.Locator.PresignExpiry,
	})
	if err != nil {
		return fmt.Errorf("create locator resolver: %w", err)
	}

	processor, err := lifecycle.NewProcessor(lifecycle.Options{
		Store:    store,
		Locks:    locks,
		Registry: reg,
		Matcher:  match,
		Resolver: resolver,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	dispatcher, err := dispatch.NewLocal(dispatch.Config{
		QueueSize:     cfg.Dispatcher.QueueSize,
		Workers:       cfg.Dispatcher.Workers,
		RatePerSecond: cfg.Dispatcher.RatePerSecond,
		Burst:         cfg.Dispatcher.Burst,
		JobTypeFilter: cfg.Dispatcher.JobTypeFilter,
		MaxAttempts:   cfg.Dispatcher.MaxAttempts,
		RetryDelay:    cfg.Dispatcher.RetryDelay,
	}, processor, log)
	if err != nil {
		return err
	}
	if err := dispatcher.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	defer func() { _ = dispatcher.Close() }()

	api, err := handlers.NewAPI(store, dispatcher, log, versionInfo.Version)
	if err != nil {
		return err
	}
	srv := server.New(cfg.Server, api, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Job processor stopped")
	return nil
}
