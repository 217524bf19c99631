package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghostfacexx/nfcmitm/internal/eventlog"
	"github.com/ghostfacexx/nfcmitm/internal/logger"
	"github.com/ghostfacexx/nfcmitm/internal/protocol/relay"
	"github.com/ghostfacexx/nfcmitm/internal/telemetry"
	"github.com/ghostfacexx/nfcmitm/pkg/api"
	"github.com/ghostfacexx/nfcmitm/pkg/config"
	"github.com/ghostfacexx/nfcmitm/pkg/metrics"
	promMetrics "github.com/ghostfacexx/nfcmitm/pkg/metrics/prometheus"
	"github.com/ghostfacexx/nfcmitm/pkg/policy"
	"github.com/ghostfacexx/nfcmitm/pkg/signer"
)

var (
	serveTCPPort  int
	serveHTTPPort int
	serveKeyPath  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay proxy",
	Long: `Start the TCP relay listener and the HTTP relay server.

Flags override the configuration file. The policy blob referenced by the
configuration (or created empty) governs the bypass behavior at runtime.

Examples:
  # Start with the default config location
  nfcmitm serve

  # Explicit ports and signing key
  nfcmitm serve --tcp-port 9037 --http-port 8080 --config ./config.yaml --key ./signer.pem

  # Environment variable overrides
  NFCMITM_LOGGING_LEVEL=DEBUG nfcmitm serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&serveTCPPort, "tcp-port", 0, "TCP relay port (overrides config)")
	serveCmd.Flags().IntVar(&serveHTTPPort, "http-port", 0, "HTTP relay port (overrides config)")
	serveCmd.Flags().StringVar(&serveKeyPath, "key", "", "RSA private key path (overrides policy blob)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	if serveTCPPort > 0 {
		cfg.Relay.Port = serveTCPPort
	}
	if serveHTTPPort > 0 {
		cfg.HTTP.Port = serveHTTPPort
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return exitWith(ExitConfigError, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry (opt-in).
	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "nfcmitm",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	logger.Info("Configuration loaded", "source", configSource())
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint)
	}

	// Policy store: the key load happens here, before the accept loop.
	pol, err := openPolicy(cfg)
	if err != nil {
		return err
	}
	snapshot := pol.Snapshot()
	logger.Info("Policy loaded",
		"mitm_enabled", snapshot.MITMEnabled,
		"bypass_pin", snapshot.BypassPIN,
		"cdcvm_enabled", snapshot.CDCVMEnabled,
		"enhanced_limits", snapshot.EnhancedLimits,
		"block_all", snapshot.BlockAll,
		"signed", pol.Signer().Enabled())

	// Metrics registry must exist before constructors run.
	var metricsServer *metrics.Server
	var relayMetrics metrics.RelayMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		relayMetrics = promMetrics.NewRelayMetrics()
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Bounded event sink with its single consumer.
	sink := eventlog.NewSink(cfg.EventQueueSize)
	go sink.Run(ctx)
	if relayMetrics != nil {
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					relayMetrics.SetEventsDropped(sink.Dropped())
				}
			}
		}()
	}

	relayServer := relay.NewServer(relay.Config{
		Host:          cfg.Relay.Host,
		Port:          cfg.Relay.Port,
		MaxSessions:   cfg.Relay.MaxSessions,
		IdleTimeout:   cfg.Relay.IdleTimeout,
		WriteDeadline: cfg.Relay.WriteDeadline,
		FrameBudget:   cfg.Relay.FrameBudget,
		GracePeriod:   cfg.Relay.GracePeriod,
		ChecksumLimit: cfg.Relay.ChecksumLimit,
	}, pol, sink, relayMetrics)

	errCh := make(chan error, 2)
	serverDone := make(chan error, 1)

	go func() {
		serverDone <- relayServer.Serve(ctx)
	}()

	if cfg.HTTP.IsEnabled() {
		httpServer := api.NewServer(cfg.HTTP, api.RouterDeps{
			Policy:         pol,
			Metrics:        relayMetrics,
			Ready:          func() bool { return relayServer.Addr() != "" },
			ActiveSessions: relayServer.SessionCount,
		})
		go func() {
			if err := httpServer.Start(ctx); err != nil {
				errCh <- exitWith(ExitBindError, err)
			}
		}()
		logger.Info("HTTP relay enabled", "port", cfg.HTTP.Port)
	}

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				errCh <- exitWith(ExitBindError, err)
			}
		}()
	}

	if cfg.Policy.Watch && cfg.Policy.Path != "" {
		go func() {
			if err := pol.Watch(ctx, cfg.Policy.Path); err != nil {
				logger.Warn("Policy watch stopped", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("Relay proxy is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()
	case err := <-serverDone:
		cancel()
		if err != nil {
			return exitWith(ExitBindError, err)
		}
		return nil
	case err := <-errCh:
		cancel()
		return err
	}

	// The relay drains in-flight sessions inside its own grace period.
	select {
	case err := <-serverDone:
		if err != nil {
			logger.Error("Relay shutdown error", "error", err)
			return err
		}
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn("Shutdown timeout exceeded")
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// openPolicy builds the policy store from the blob and the --key override.
// An unreadable key is fatal with exit code 3.
func openPolicy(cfg *config.Config) (*policy.Store, error) {
	pol, err := policy.Open(cfg.Policy.Path)
	if err != nil {
		if errors.Is(err, signer.ErrKeyUnreadable) {
			return nil, exitWith(ExitKeyError, err)
		}
		return nil, exitWith(ExitConfigError, err)
	}

	if serveKeyPath != "" {
		if err := pol.Update(policy.Patch{PrivateKeyPath: &serveKeyPath}); err != nil {
			return nil, exitWith(ExitKeyError, err)
		}
	}
	return pol, nil
}

func configSource() string {
	if cfgFile != "" {
		return cfgFile
	}
	if config.DefaultConfigExists() {
		return config.DefaultConfigPath()
	}
	return "defaults"
}
