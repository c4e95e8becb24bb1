package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"nxapi-hq/nxapi/pkg/config"
	"nxapi-hq/nxapi/pkg/providers"
	"nxapi-hq/nxapi/pkg/providers/session"
	"nxapi-hq/nxapi/pkg/proxy"
	"nxapi-hq/nxapi/pkg/routing"
	"nxapi-hq/nxapi/pkg/server"
	"nxapi-hq/nxapi/pkg/telemetry/logging"
	"nxapi-hq/nxapi/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway server",
	Long: `Start the gateway server with the specified configuration.

The server listens on the configured address and serves OpenAI-style
chat completion requests through the enabled vendor backends.

Examples:
  # Start with default config
  nxapi run

  # Start with custom config
  nxapi run --config /etc/nxapi/config.yaml

  # Override listen address
  nxapi run --listen 0.0.0.0:8080

  # Validate config without starting server
  nxapi run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("nxapi v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	sessions := session.NewStore()
	defer sessions.Close()
	if cfg.Session.JanitorSchedule != "" {
		if err := sessions.StartJanitor(cfg.Session.JanitorSchedule); err != nil {
			return fmt.Errorf("invalid session janitor schedule %q: %w", cfg.Session.JanitorSchedule, err)
		}
		slog.Debug("session janitor started", "schedule", cfg.Session.JanitorSchedule)
	}

	registry := routing.NewRegistry(cfg.ProviderConfigs(), sessions)
	defer registry.Close()
	fmt.Printf("✓ Providers enabled (%d vendors)\n", len(cfg.Providers))

	// Token files are watched so rotated credentials take effect on the
	// next request without a restart.
	watcher, err := config.NewCredentialWatcher(cfg, registry.RotateCredential)
	if err != nil {
		return fmt.Errorf("failed to watch credential files: %w", err)
	}
	if watcher != nil {
		defer watcher.Close()
		fmt.Println("✓ Credential rotation watcher started")
	}

	orchestrator := proxy.NewOrchestrator(registry)
	collector := metrics.NewCollector()
	sessions.SetOnRefresh(collector.RecordSessionRefresh)
	providers.PowObserver = func(_ string, d time.Duration) {
		collector.RecordPowDuration(d)
	}

	srv := server.New(server.Config{
		ListenAddress:   cfg.Server.ListenAddress,
		ReadTimeout:     cfg.Server.ReadTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, orchestrator, collector)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Completions endpoint: http://%s/v1/chat/completions\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		slog.Error("server stopped", "error", err)
		return fmt.Errorf("server error: %w", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}
