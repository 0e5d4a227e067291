package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/sitetime/internal/host"
	"github.com/goodtune/sitetime/internal/host/api"
	"github.com/goodtune/sitetime/internal/metrics"
	"github.com/goodtune/sitetime/internal/systemd"
	"github.com/goodtune/sitetime/internal/tracker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracking daemon",
	Long:  `Run the tracker with its bridge API and metrics endpoint until interrupted.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}

	// Setup logger
	logger := setupLogger(cfg.Logging, os.Stdout)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", path).
		Msg("Starting sitetime")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("key", cfg.Storage.Key).
		Msg("Storage initialized")

	tabs, err := host.NewRegistry(cfg.Tracking.TabCacheSize)
	if err != nil {
		return fmt.Errorf("failed to initialize tab registry: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Tracker
	domainTracker := tracker.New(store, tabs, tracker.Config{
		FlushInterval:   cfg.Tracking.FlushEvery(),
		ExcludedSchemes: cfg.Tracking.ExcludedSchemes,
	}, logger)

	if err := domainTracker.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize tracker: %w", err)
	}
	domainTracker.Start(ctx)

	logger.Info().Msg("Tracker initialized")

	// Initialize bridge API
	apiServer := api.NewServer(api.Config{
		ListenAddr:     cfg.Server.APIAddr(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ChartLimit:     cfg.Dashboard.ChartLimit,
	}, tabs, domainTracker, store, logger)

	if sdListeners.Activated && sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}

	if err := apiServer.Start(); err != nil {
		stopTracking(logger, nil, domainTracker)
		return fmt.Errorf("failed to start bridge API: %w", err)
	}

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 || sdListeners.Metrics != nil {
		metricsServer = metrics.NewServer(cfg.Server.MetricsAddr(), logger)

		// Use systemd socket-activated listener if available
		if sdListeners.Activated && sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}

		if err := metricsServer.Start(); err != nil {
			stopTracking(logger, apiServer, domainTracker)
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
	}

	logger.Info().Msg("sitetime startup complete")
	logger.Info().Msgf("Bridge API: http://%s", apiServer.Addr())
	if metricsServer != nil {
		logger.Info().Msgf("Metrics: http://%s/metrics", metricsServer.Addr())
	}

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	stopTracking(logger, apiServer, domainTracker)

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	logger.Info().Msg("sitetime stopped")

	return nil
}

type stopper interface {
	Stop() error
}

// stopTracking shuts the bridge API, when running, then the flush loop, and
// books the final session. No events arrive once the API is down, so the
// last flush sees the final session.
func stopTracking(logger zerolog.Logger, apiServer stopper, domainTracker *tracker.Tracker) {
	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping bridge API")
		}
	}

	domainTracker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	domainTracker.OnProcessSuspending(ctx)
}
