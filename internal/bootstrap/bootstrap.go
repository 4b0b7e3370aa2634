package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	httpadapter "github.com/kirillkom/health-report-analyzer/internal/adapters/http"
	"github.com/kirillkom/health-report-analyzer/internal/adapters/observer"
	"github.com/kirillkom/health-report-analyzer/internal/config"
	"github.com/kirillkom/health-report-analyzer/internal/core/simulation"
	"github.com/kirillkom/health-report-analyzer/internal/core/usecase"
	"github.com/kirillkom/health-report-analyzer/internal/core/validation"
	"github.com/kirillkom/health-report-analyzer/internal/infrastructure/classifier/stub"
	"github.com/kirillkom/health-report-analyzer/internal/infrastructure/events/memory"
	"github.com/kirillkom/health-report-analyzer/internal/infrastructure/export"
	"github.com/kirillkom/health-report-analyzer/internal/infrastructure/extractor/baseline"
	"github.com/kirillkom/health-report-analyzer/internal/infrastructure/inspector/pdfmeta"
	"github.com/kirillkom/health-report-analyzer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/health-report-analyzer/internal/infrastructure/resilience"
	"github.com/kirillkom/health-report-analyzer/internal/observability/logging"
	"github.com/kirillkom/health-report-analyzer/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Sessions  *usecase.SessionRegistry
	Presenter *usecase.ResultPresenter
	Mascot    *observer.Mascot
	Toaster   *observer.Toaster

	HTTPMetrics     *metrics.HTTPServerMetrics
	WorkflowMetrics *metrics.WorkflowMetrics
	Executor        *resilience.Executor
	Relay           *nats.Relay

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewLogger(os.Stdout, "api", cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	return NewWithLogger(ctx, cfg, logger)
}

func NewWithLogger(_ context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	executor := resilience.NewExecutorWithLogger(resilience.FromAppConfig(cfg), logger)

	inspector := pdfmeta.NewInspector()
	extractor := resilience.NewGuardedExtractor(baseline.NewExtractor(inspector), executor)
	classifier := resilience.NewGuardedClassifier(stub.NewClassifier(), executor)

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	workflowMetrics := metrics.NewWorkflowMetrics("api", httpMetrics.Registry())
	mascot := observer.NewMascot(logger)
	toaster := observer.NewToaster(cfg.ToastHistory, logger)

	bus := memory.NewBus(cfg.EventBufferSize, logger)
	bus.Subscribe("mascot", mascot)
	bus.Subscribe("toaster", toaster)
	bus.Subscribe("metrics", workflowMetrics)

	var relay *nats.Relay
	if cfg.NATSURL != "" {
		var err error
		relay, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			bus.Close()
			return nil, fmt.Errorf("init event relay: %w", err)
		}
		bus.Subscribe("nats", relay)
	}

	deps := usecase.WorkflowDeps{
		Validator: validation.NewMetricValidator(validation.ParseEditPolicy(cfg.EditPolicy)),
		Extraction: usecase.NewExtractionSimulator(extractor, simulation.Schedule{
			Step:     cfg.ExtractionStep,
			Interval: cfg.ExtractionInterval,
		}, cfg.StageTimeout),
		Analysis: usecase.NewAnalysisEngine(classifier, simulation.Schedule{
			Step:     cfg.AnalysisStep,
			Interval: cfg.AnalysisInterval,
		}, cfg.StageTimeout),
		Publisher:        bus,
		Logger:           logger,
		MaxDocumentBytes: cfg.MaxUploadBytes,
	}
	sessions := usecase.NewSessionRegistry(deps, usecase.SessionOptions{
		MaxSessions: cfg.MaxSessions,
		IdleTimeout: cfg.SessionIdleTimeout,
	})
	workflowMetrics.RegisterSessionGauge(sessions.Len)

	presenter := usecase.NewResultPresenter(export.NewService(logger), logger)

	logger.Info("app_initialized",
		"edit_policy", deps.Validator.Policy(),
		"max_sessions", cfg.MaxSessions,
		"relay_enabled", relay != nil,
	)

	return &App{
		Config:          cfg,
		Logger:          logger,
		Sessions:        sessions,
		Presenter:       presenter,
		Mascot:          mascot,
		Toaster:         toaster,
		HTTPMetrics:     httpMetrics,
		WorkflowMetrics: workflowMetrics,
		Executor:        executor,
		Relay:           relay,

		closeFn: func() {
			sessions.CloseAll()
			bus.Close()
			if relay != nil {
				relay.Close()
			}
		},
	}, nil
}

// Handler builds the HTTP API over the app's sessions.
func (a *App) Handler() http.Handler {
	return httpadapter.NewRouter(a.Config, a.Sessions, a.Presenter,
		httpadapter.WithMetrics(a.HTTPMetrics),
		httpadapter.WithCompanion(a.Mascot, a.Toaster),
		httpadapter.WithHealthDetails(a.healthDetails),
	).Handler()
}

func (a *App) healthDetails() map[string]any {
	return map[string]any{
		"sessions":      a.Sessions.Len(),
		"breakers":      a.Executor.BreakerStates(),
		"relay_enabled": a.Relay != nil,
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
