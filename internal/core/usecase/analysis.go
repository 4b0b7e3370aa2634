package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
	"github.com/kirillkom/health-report-analyzer/internal/core/ports"
	"github.com/kirillkom/health-report-analyzer/internal/core/simulation"
)

const (
	DefaultAnalysisStep     = 12
	DefaultAnalysisInterval = 150 * time.Millisecond
)

type AnalysisCallbacks struct {
	OnProgress func(progress int) bool
	OnComplete func(result domain.ClassificationResult)
	OnFailure  func(err error)
}

// AnalysisEngine paces metrics-to-classification inference. The decision
// itself belongs to the classifier.
type AnalysisEngine struct {
	schedule   simulation.Schedule
	classifier ports.Classifier
	timeout    time.Duration
}

func NewAnalysisEngine(classifier ports.Classifier, schedule simulation.Schedule, timeout time.Duration) *AnalysisEngine {
	if schedule.Step <= 0 {
		schedule.Step = DefaultAnalysisStep
	}
	if schedule.Interval <= 0 {
		schedule.Interval = DefaultAnalysisInterval
	}
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	return &AnalysisEngine{
		schedule:   schedule,
		classifier: classifier,
		timeout:    timeout,
	}
}

func (e *AnalysisEngine) Schedule() simulation.Schedule {
	return e.schedule
}

// Start runs the analysis on a value copy of the snapshot.
func (e *AnalysisEngine) Start(ctx context.Context, snapshot domain.HealthMetricsSnapshot, cb AnalysisCallbacks) *simulation.Job {
	return simulation.Start(ctx, e.schedule, cb.OnProgress, func(jobCtx context.Context) {
		classifyCtx, cancel := context.WithTimeout(jobCtx, e.timeout)
		defer cancel()

		result, err := e.classifier.Classify(classifyCtx, snapshot)
		if err != nil {
			cb.OnFailure(domain.WrapError(domain.ErrAnalysisFailed, "classify metrics", err))
			return
		}
		if err := checkResult(result); err != nil {
			cb.OnFailure(domain.WrapError(domain.ErrAnalysisFailed, "classify metrics", err))
			return
		}
		cb.OnComplete(result)
	})
}

func checkResult(result domain.ClassificationResult) error {
	if result.Prediction != domain.PredictionNotDetected && result.Prediction != domain.PredictionDetected {
		return fmt.Errorf("prediction %d is not binary", result.Prediction)
	}
	if result.Confidence < 0 || result.Confidence > 100 {
		return fmt.Errorf("confidence %d outside [0,100]", result.Confidence)
	}
	return nil
}
