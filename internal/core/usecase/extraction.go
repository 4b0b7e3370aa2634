package usecase

import (
	"context"
	"time"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
	"github.com/kirillkom/health-report-analyzer/internal/core/ports"
	"github.com/kirillkom/health-report-analyzer/internal/core/simulation"
)

const (
	DefaultExtractionStep     = 10
	DefaultExtractionInterval = 200 * time.Millisecond
	DefaultStageTimeout       = 30 * time.Second
)

// ExtractionCallbacks receive the output of one extraction run. OnProgress
// returning false stops the run.
type ExtractionCallbacks struct {
	OnProgress func(progress int) bool
	OnComplete func(snapshot domain.HealthMetricsSnapshot)
	OnFailure  func(err error)
}

// ExtractionSimulator paces document-to-metrics extraction and hands the
// document to the extractor once progress reaches 100.
type ExtractionSimulator struct {
	schedule  simulation.Schedule
	extractor ports.MetricsExtractor
	timeout   time.Duration
}

func NewExtractionSimulator(extractor ports.MetricsExtractor, schedule simulation.Schedule, timeout time.Duration) *ExtractionSimulator {
	if schedule.Step <= 0 {
		schedule.Step = DefaultExtractionStep
	}
	if schedule.Interval <= 0 {
		schedule.Interval = DefaultExtractionInterval
	}
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	return &ExtractionSimulator{
		schedule:  schedule,
		extractor: extractor,
		timeout:   timeout,
	}
}

func (s *ExtractionSimulator) Schedule() simulation.Schedule {
	return s.schedule
}

func (s *ExtractionSimulator) Start(ctx context.Context, doc domain.UploadedDocument, cb ExtractionCallbacks) *simulation.Job {
	return simulation.Start(ctx, s.schedule, cb.OnProgress, func(jobCtx context.Context) {
		extractCtx, cancel := context.WithTimeout(jobCtx, s.timeout)
		defer cancel()

		snapshot, err := s.extractor.Extract(extractCtx, doc)
		if err != nil {
			cb.OnFailure(domain.WrapError(domain.ErrExtractionFailed, "extract metrics", err))
			return
		}
		cb.OnComplete(snapshot)
	})
}
