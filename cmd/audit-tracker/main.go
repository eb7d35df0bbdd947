// audit-tracker is the HTTP API server that submits channel audits to the
// processor and tracks them to completion.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audittracker/internal/api"
	"audittracker/internal/audit"
	"audittracker/internal/config"
	"audittracker/internal/gateway"
	"audittracker/internal/health"
	"audittracker/internal/notify"
	"audittracker/internal/observability"
	"audittracker/internal/processor"
	"audittracker/internal/tracker"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

// processorBackend is what the tracker needs from the processor, plus a
// readiness probe.
type processorBackend interface {
	tracker.Gateway
	health.ReadinessChecker
}

func run() error {
	ctx := context.Background()

	// Load configuration
	svcCfg := config.LoadServiceConfig()
	trackerCfg := tracker.LoadConfigFromEnv()
	notifyCfg := notify.LoadConfigFromEnv()

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Connect to the processor, or simulate one in-process
	var backend processorBackend
	if svcCfg.ProcessorURL != "" {
		gwCfg := gateway.LoadConfigFromEnv()
		gwCfg.BaseURL = svcCfg.ProcessorURL
		client, err := gateway.New(gwCfg)
		if err != nil {
			return err
		}
		backend = client
		slog.Info("Using remote processor", "url", svcCfg.ProcessorURL)
	} else {
		backend = processor.NewSimulator(processor.LoadConfigFromEnv())
		slog.Warn("No PROCESSOR_URL configured - using in-process simulator")
	}

	// Create result sink and tracker
	reports := tracker.NewMemorySink()
	jobTracker := tracker.New(trackerCfg, backend, reports, metrics)

	// Create health checker
	healthChecker := health.NewChecker()
	healthChecker.Require("processor", backend)
	healthChecker.Require("tracker", jobTracker)

	// Create outcome notifier
	var notifier audit.Notifier
	var dispatcher *notify.Dispatcher
	if notifyCfg.Enabled() {
		dispatcher = notify.New(notifyCfg, metrics)
		notifier = dispatcher
		healthChecker.Optional("notifier", dispatcher)
		slog.Info("Outcome notifications enabled", "destinations", len(notifyCfg.URLs))
	}

	// Create audit service
	auditService := audit.NewService(backend, jobTracker, reports, notifier, metrics)

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		AuditService:  auditService,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        svcCfg.APIKey,
		CORSOrigins:   svcCfg.CORSOrigins,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY_FILE configured")
	}

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	// Start API server
	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		closeTracker(jobTracker)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	// Wait for load balancers to stop sending traffic
	if svcCfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
		time.Sleep(svcCfg.ShutdownDrainWait)
	}

	// Phase 2: Graceful shutdown - stop accepting new connections, finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Phase 3: Stop polling. Unfinished jobs keep running on the processor
	// and can be tracked again after restart.
	closeTracker(jobTracker)

	// Phase 4: Drain outcome notifications
	if dispatcher != nil {
		slog.Info("Draining outcome notifier")
		notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer notifyCancel()
		if err := dispatcher.Close(notifyCtx); err != nil {
			slog.Warn("Notifier shutdown error", "error", err)
		}

		stats := dispatcher.Stats()
		slog.Info("Notifier stats",
			"delivered", stats.Delivered,
			"failed", stats.Failed,
			"dropped", stats.Dropped,
		)
	}

	slog.Info("Shutdown complete", "reports", reports.Len())
	return nil
}

func closeTracker(t *tracker.Tracker) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.Close(ctx); err != nil {
		slog.Warn("Tracker shutdown error", "error", err)
	}
}
