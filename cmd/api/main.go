package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"github.com/kirillkom/health-report-analyzer/internal/bootstrap"
	"github.com/kirillkom/health-report-analyzer/internal/config"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	go app.Sessions.Run(ctx, cfg.SessionSweepInterval)

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		log.Fatalf("api listen error: %v", err)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	server := &http.Server{
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		app.Logger.Info("api_listening", "addr", listener.Addr().String(), "max_connections", cfg.APIMaxConnections)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.APIShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("api_shutdown_failed", "error", err)
	}
}
