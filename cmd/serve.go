package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/mailgateway/internal/config"
	"github.com/teemow/mailgateway/internal/extract"
	"github.com/teemow/mailgateway/internal/gateway"
	"github.com/teemow/mailgateway/internal/graph"
	"github.com/teemow/mailgateway/internal/instrumentation"
	"github.com/teemow/mailgateway/internal/logging"
)

const startupTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mail gateway",
		Long: `Run the HTTP gateway.

Every route except /, /healthz and /readyz requires the Api-Key header to
match the configured key (--api-key, MAILGATEWAY_API_KEY or API_KEY).

Prometheus metrics are served on a separate listener (--metrics-addr) unless
disabled with --metrics-enabled=false or INSTRUMENTATION_ENABLED=false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg config.Config) error {
	logger := newLogger(cfg)

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.APIKeyDefaulted {
		logger.Warn("No API key configured, using the built-in default key. " +
			"Set --api-key or MAILGATEWAY_API_KEY before exposing the gateway.")
	}

	provider, err := newInstrumentation(shutdownCtx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), gateway.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("Error during instrumentation shutdown", logging.Err(err))
		}
	}()

	// Start metrics server if enabled
	var metricsServer *gateway.MetricsServer
	if cfg.MetricsEnabled && provider.Enabled() {
		metricsServer, err = gateway.NewMetricsServer(gateway.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			Path:                    cfg.Telemetry.PrometheusEndpoint,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		if err := startAndWait("metrics server", metricsServer.StartWithReadySignal); err != nil {
			return err
		}
		logger.Info("Metrics server started", slog.String("addr", metricsServer.Addr()))
	}

	mail, extractor := newMailStack(cfg, provider, logger)

	srv, err := gateway.New(gateway.Config{
		Addr:       cfg.Listen,
		APIKey:     cfg.APIKey,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
		TrustProxy: cfg.TrustProxy,
	}, mail, extractor,
		gateway.WithLogger(logger),
		gateway.WithMetrics(provider.Metrics()),
	)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	serverErr := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		if err := srv.StartWithReadySignal(ready); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ready:
		srv.Health().SetReady(true)
	case err := <-serverErr:
		return fmt.Errorf("gateway failed to start: %w", err)
	}

	select {
	case <-shutdownCtx.Done():
		logger.Info("Shutdown signal received")
	case err, ok := <-serverErr:
		if ok && err != nil {
			return fmt.Errorf("gateway stopped with error: %w", err)
		}
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), gateway.DefaultShutdownTimeout)
	defer cancelShutdown()

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("gateway shutdown: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// newInstrumentation creates the OpenTelemetry provider from the telemetry
// settings.
func newInstrumentation(ctx context.Context, cfg config.Config) (*instrumentation.Provider, error) {
	provider, err := instrumentation.NewProvider(ctx, cfg.Telemetry.Instrumentation(version))
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	return provider, nil
}

// newMailStack wires the Graph client and the extractor to the configured
// endpoints and instrumentation.
func newMailStack(cfg config.Config, provider *instrumentation.Provider, logger *slog.Logger) (*graph.Client, *extract.Extractor) {
	metrics := provider.Metrics()
	audit := instrumentation.NewAuditLogger(logger, cfg.Telemetry.Audit())

	refresher := graph.NewRefresher(
		graph.WithTokenURL(cfg.TokenURL),
		graph.WithRefresherMetrics(metrics),
		graph.WithRefresherLogger(logger),
	)
	mail := graph.NewClient(
		graph.WithBaseURL(cfg.GraphBaseURL),
		graph.WithTokenSource(refresher),
		graph.WithMetrics(metrics),
		graph.WithAuditLogger(audit),
		graph.WithLogger(logger),
		graph.WithDeleteConcurrency(cfg.DeleteConcurrency),
	)
	extractor := extract.New(
		extract.WithLogger(logger),
		extract.WithMetrics(metrics),
	)
	return mail, extractor
}

// startAndWait runs start in the background and waits until it signals
// readiness, fails, or the startup timeout passes.
func startAndWait(name string, start func(ready chan<- struct{}) error) error {
	ready := make(chan struct{})
	startErr := make(chan error, 1)
	go func() {
		if err := start(ready); err != nil && !errors.Is(err, http.ErrServerClosed) {
			startErr <- err
		}
		close(startErr)
	}()

	select {
	case <-ready:
		return nil
	case err := <-startErr:
		if err == nil {
			return fmt.Errorf("%s stopped during startup", name)
		}
		return fmt.Errorf("%s failed to start: %w", name, err)
	case <-time.After(startupTimeout):
		return fmt.Errorf("%s startup timed out", name)
	}
}
