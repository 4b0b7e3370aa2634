package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

// WorkflowMetrics observes workflow events. It implements ports.EventHandler.
type WorkflowMetrics struct {
	service  string
	registry *prometheus.Registry

	eventsTotal     *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	runTotal        *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runInFlight     *prometheus.GaugeVec
	resultsTotal    *prometheus.CounterVec
	exportsTotal    *prometheus.CounterVec
	confidenceScore prometheus.Histogram

	mu      sync.Mutex
	started map[runKey]time.Time
}

type runKey struct {
	session string
	stage   domain.Stage
}

// NewWorkflowMetrics registers its collectors in registry, or in a private
// registry when registry is nil.
func NewWorkflowMetrics(service string, registry *prometheus.Registry) *WorkflowMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "health",
			Subsystem: "workflow",
			Name:      "events_total",
			Help:      "Workflow events observed by type and stage.",
		},
		[]string{"service", "type", "stage"},
	)
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "health",
			Subsystem: "workflow",
			Name:      "stage_transitions_total",
			Help:      "Stage transitions by source and target stage.",
		},
		[]string{"service", "from", "to"},
	)
	runTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "health",
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Finished extraction and analysis runs by status.",
		},
		[]string{"service", "stage", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "health",
			Subsystem: "workflow",
			Name:      "run_duration_seconds",
			Help:      "Extraction and analysis run duration in seconds by status.",
			Buckets:   []float64{0.1, 0.5, 1, 1.5, 2, 3, 5, 10, 30},
		},
		[]string{"service", "stage", "status"},
	)
	runInFlight := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "health",
			Subsystem: "workflow",
			Name:      "runs_in_flight",
			Help:      "Number of running extraction and analysis jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"stage"},
	)
	resultsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "health",
			Subsystem: "workflow",
			Name:      "results_total",
			Help:      "Classification results by status.",
		},
		[]string{"service", "status"},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "health",
			Subsystem: "workflow",
			Name:      "exports_total",
			Help:      "Result exports by format.",
		},
		[]string{"service", "format"},
	)
	confidenceScore := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "health",
			Subsystem:   "workflow",
			Name:        "result_confidence",
			Help:        "Distribution of classification confidence.",
			Buckets:     []float64{50, 60, 70, 80, 90, 95, 100},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(eventsTotal, transitions, runTotal, runDuration, runInFlight, resultsTotal, exportsTotal, confidenceScore)

	return &WorkflowMetrics{
		service:         service,
		registry:        registry,
		eventsTotal:     eventsTotal,
		transitions:     transitions,
		runTotal:        runTotal,
		runDuration:     runDuration,
		runInFlight:     runInFlight,
		resultsTotal:    resultsTotal,
		exportsTotal:    exportsTotal,
		confidenceScore: confidenceScore,
		started:         make(map[runKey]time.Time),
	}
}

func (m *WorkflowMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterSessionGauge exposes the live session count.
func (m *WorkflowMetrics) RegisterSessionGauge(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   "health",
			Subsystem:   "workflow",
			Name:        "sessions_active",
			Help:        "Number of open workflow sessions.",
			ConstLabels: prometheus.Labels{"service": m.service},
		},
		func() float64 { return float64(count()) },
	))
}

func (m *WorkflowMetrics) HandleEvent(_ context.Context, event domain.Event) error {
	m.eventsTotal.WithLabelValues(m.service, string(event.Type), string(event.Stage)).Inc()

	switch event.Type {
	case domain.EventStageChanged:
		m.transitions.WithLabelValues(m.service, string(event.From), string(event.Stage)).Inc()
		if isRunStage(event.From) {
			m.abandonRun(event.SessionID, event.From)
		}
		if isRunStage(event.Stage) {
			m.startRun(event.SessionID, event.Stage, event.At)
		}
	case domain.EventCompleted:
		m.finishRun(event.SessionID, event.Stage, event.At, "success")
		if event.Result != nil {
			m.resultsTotal.WithLabelValues(m.service, event.Result.Status).Inc()
			m.confidenceScore.Observe(float64(event.Result.Confidence))
		}
	case domain.EventFailed:
		m.finishRun(event.SessionID, event.Stage, event.At, "error")
	case domain.EventExported:
		m.exportsTotal.WithLabelValues(m.service, string(event.Format)).Inc()
	case domain.EventClosed:
		if isRunStage(event.Stage) {
			m.abandonRun(event.SessionID, event.Stage)
		}
	}
	return nil
}

func (m *WorkflowMetrics) startRun(session string, stage domain.Stage, at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started[runKey{session: session, stage: stage}] = at
	m.runInFlight.WithLabelValues(string(stage)).Inc()
}

func (m *WorkflowMetrics) finishRun(session string, stage domain.Stage, at time.Time, status string) {
	if at.IsZero() {
		at = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := runKey{session: session, stage: stage}
	start, ok := m.started[key]
	if !ok {
		return
	}
	delete(m.started, key)
	m.runInFlight.WithLabelValues(string(stage)).Dec()
	m.runTotal.WithLabelValues(m.service, string(stage), status).Inc()
	if d := at.Sub(start); d >= 0 {
		m.runDuration.WithLabelValues(m.service, string(stage), status).Observe(d.Seconds())
	}
}

// abandonRun drops a run that left its stage without completing, e.g. reset.
func (m *WorkflowMetrics) abandonRun(session string, stage domain.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := runKey{session: session, stage: stage}
	if _, ok := m.started[key]; !ok {
		return
	}
	delete(m.started, key)
	m.runInFlight.WithLabelValues(string(stage)).Dec()
	m.runTotal.WithLabelValues(m.service, string(stage), "cancelled").Inc()
}

func isRunStage(stage domain.Stage) bool {
	return stage == domain.StageExtracting || stage == domain.StageAnalyzing
}
