package ports

import (
	"context"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

// WorkflowSession is the inbound contract for one health report analysis run.
type WorkflowSession interface {
	ID() string
	Upload(ctx context.Context, doc domain.UploadedDocument) error
	UpdateMetric(field domain.MetricField, raw string) (domain.MetricValue, error)
	RunAnalysis(ctx context.Context) error
	Reset()
	View() domain.WorkflowView
	// RecordExport publishes an exported event in the session's sequence.
	RecordExport(format domain.ExportFormat, filename string) error
}

// SessionManager owns the lifecycle of workflow sessions.
type SessionManager interface {
	Create(ctx context.Context) (WorkflowSession, error)
	Get(id string) (WorkflowSession, error)
	Close(id string) error
}

// ResultPresenter projects completed results and forwards export intents.
type ResultPresenter interface {
	Present(result domain.ClassificationResult) domain.ResultView
	ExportAs(ctx context.Context, session WorkflowSession, format domain.ExportFormat) (domain.ExportArtifact, error)
}
