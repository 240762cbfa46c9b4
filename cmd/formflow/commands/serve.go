package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marmos91/formflow/internal/logger"
	"github.com/marmos91/formflow/internal/telemetry"
	"github.com/marmos91/formflow/pkg/api"
	"github.com/marmos91/formflow/pkg/config"
	"github.com/marmos91/formflow/pkg/metrics"
	"github.com/marmos91/formflow/pkg/multipart"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/formflow/pkg/metrics/prometheus"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload gateway",
	Long: `Start the FormFlow upload gateway with the specified configuration.

The gateway accepts streaming multipart uploads on POST /upload and writes
file content into the configured store as it arrives.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/formflow/config.yaml.

Examples:
  # Start with default config location
  formflow serve

  # Start with custom config file
  formflow serve --config /etc/formflow/config.yaml

  # Reapply logging settings when the config file changes
  formflow serve --watch

  # Start with environment variable overrides
  FORMFLOW_LOGGING_LEVEL=DEBUG formflow serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reapply logging configuration on config file change")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Pyroscope profiling (if enabled)
	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Profiling.Enabled,
		ServiceName:    "formflow",
		ServiceVersion: Version,
		Endpoint:       cfg.Profiling.Endpoint,
		ProfileTypes:   cfg.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Profiling.Endpoint, "profile_types", cfg.Profiling.ProfileTypes)
	}

	// Initialize metrics (if enabled)
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "endpoint", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Open the configured store
	st, err := config.BuildStore(ctx, cfg.Store, metrics.NewStoreMetrics())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}()
	logger.Info("Store initialized", logger.KeyStore, cfg.Store.Backend)

	// Decoder options shared by all requests
	decOptions := []multipart.Option{
		multipart.WithBufferSize(cfg.Decoder.BufferSize.Int()),
		multipart.WithMaxValueSize(cfg.Decoder.MaxValueSize.Int64()),
	}
	if m := metrics.NewDecoderMetrics(); m != nil {
		decOptions = append(decOptions, multipart.WithMetrics(m))
	}

	server := api.NewServer(cfg.Server, st, decOptions...)

	// Reapply logging config when the config file changes
	if serveWatch {
		stopWatch, err := watchConfig(GetConfigFile())
		if err != nil {
			return err
		}
		defer stopWatch()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Gateway is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Gateway shutdown error", "error", err)
			return err
		}
		logger.Info("Gateway stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Gateway error", "error", err)
			return err
		}
	}

	return nil
}

// watchConfig watches the config file and reapplies the logging section on
// change. Only logging settings are hot-reloaded; everything else needs a
// restart. Returns a stop function.
func watchConfig(configFile string) (func(), error) {
	path := configFile
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	logger.Info("Watching config file for logging changes", logger.KeyPath, path)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				cfg, err := config.Load(path)
				if err != nil {
					logger.Warn("config reload failed", "error", err)
					continue
				}
				logger.SetLevel(cfg.Logging.Level)
				logger.SetFormat(cfg.Logging.Format)
				logger.Info("logging configuration reapplied",
					"level", cfg.Logging.Level,
					"format", cfg.Logging.Format,
				)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
