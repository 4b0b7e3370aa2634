package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/kirillkom/health-report-analyzer/internal/adapters/observer"
	"github.com/kirillkom/health-report-analyzer/internal/config"
	"github.com/kirillkom/health-report-analyzer/internal/infrastructure/events/memory"
	"github.com/kirillkom/health-report-analyzer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/health-report-analyzer/internal/infrastructure/resilience"
	"github.com/kirillkom/health-report-analyzer/internal/observability/logging"
	"github.com/kirillkom/health-report-analyzer/internal/observability/metrics"
)

// RelayApp consumes workflow events from NATS and feeds out-of-process
// observers.
type RelayApp struct {
	Config config.Config
	Logger *slog.Logger

	Relay   *nats.Relay
	Mascot  *observer.Mascot
	Toaster *observer.Toaster
	Metrics *metrics.WorkflowMetrics

	bus *memory.Bus
}

func NewRelayApp(_ context.Context, cfg config.Config) (*RelayApp, error) {
	logger := logging.NewLogger(os.Stdout, "relay", cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	if cfg.NATSURL == "" {
		return nil, errors.New("NATS_URL is required for the relay")
	}

	relay, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutorWithLogger(resilience.FromAppConfig(cfg), logger),
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init event relay: %w", err)
	}

	mascot := observer.NewMascot(logger)
	toaster := observer.NewToaster(cfg.ToastHistory, logger)
	workflowMetrics := metrics.NewWorkflowMetrics("relay", nil)

	bus := memory.NewBus(cfg.EventBufferSize, logger)
	bus.Subscribe("mascot", mascot)
	bus.Subscribe("toaster", toaster)
	bus.Subscribe("metrics", workflowMetrics)

	return &RelayApp{
		Config:  cfg,
		Logger:  logger,
		Relay:   relay,
		Mascot:  mascot,
		Toaster: toaster,
		Metrics: workflowMetrics,
		bus:     bus,
	}, nil
}

// Run blocks until ctx is done.
func (a *RelayApp) Run(ctx context.Context) error {
	a.Logger.Info("relay_subscribed", "subject", a.Relay.Subject("*"), "queue_group", a.Config.NATSQueueGroup)
	return a.Relay.SubscribeEvents(ctx, a.Config.NATSQueueGroup, memory.HandlerFunc(a.bus.Publish))
}

func (a *RelayApp) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", a.Metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

func (a *RelayApp) Close() {
	a.bus.Close()
	a.Relay.Close()
}
