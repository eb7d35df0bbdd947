// audit-processor serves the simulated audit processor over HTTP, for local
// development against a real network hop.
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
	"audittracker/internal/config"
	"audittracker/internal/health"
	"audittracker/internal/processor"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Processor failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	port := config.GetEnv("PORT", "8081")
	apiKey := config.GetSecretFile(config.GetEnv("API_KEY_FILE", ""))

	sim := processor.NewSimulator(processor.LoadConfigFromEnv())

	healthChecker := health.NewChecker()
	healthChecker.Require("simulator", sim)
	probes := api.NewHandler(nil, healthChecker)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", probes.Livez)
	mux.HandleFunc("GET /readyz", probes.Readyz)
	mux.Handle("/", api.AuthMiddleware(apiKey)(processor.NewHandler(sim)))

	var h http.Handler = mux
	h = api.LoggingMiddleware()(h)
	h = api.RecoveryMiddleware()(h)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      h,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting processor", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		return err
	}

	healthChecker.SetShuttingDown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	slog.Info("Processor stopped", "jobs", sim.Len())
	return nil
}
