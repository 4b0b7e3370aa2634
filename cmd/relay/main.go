package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/health-report-analyzer/internal/bootstrap"
	"github.com/kirillkom/health-report-analyzer/internal/config"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewRelayApp(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.RelayMetricsPort,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		app.Logger.Info("relay_metrics_listening", "port", cfg.RelayMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("relay_metrics_server_failed", "error", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		app.Logger.Error("relay_stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.APIShutdownTimeout)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
