package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
	"github.com/kirillkom/health-report-analyzer/internal/core/ports"
)

const (
	ToneSuccess = "success"
	ToneAlert   = "alert"
)

// ResultPresenter is a read-only projection of completed results. Export
// generation is delegated to the exporter.
type ResultPresenter struct {
	exporter ports.Exporter
	logger   *slog.Logger
	now      func() time.Time
}

func NewResultPresenter(exporter ports.Exporter, logger *slog.Logger) *ResultPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultPresenter{
		exporter: exporter,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *ResultPresenter) Present(result domain.ClassificationResult) domain.ResultView {
	tone := ToneSuccess
	if result.DiseaseDetected() {
		tone = ToneAlert
	}
	return domain.ResultView{
		Prediction:      result.Prediction,
		Status:          result.Status,
		Confidence:      result.Confidence,
		ConfidenceLabel: fmt.Sprintf("%d%% Confidence", result.Confidence),
		Explanation:     result.Explanation,
		Tone:            tone,
	}
}

// ExportAs renders the session's completed result and records the export in
// the session's event sequence.
func (p *ResultPresenter) ExportAs(ctx context.Context, session ports.WorkflowSession, format domain.ExportFormat) (domain.ExportArtifact, error) {
	view := session.View()
	parsed, ok := domain.ParseExportFormat(string(format))
	if !ok {
		return domain.ExportArtifact{}, domain.WrapError(domain.ErrUnsupportedExportFormat, "export result", fmt.Errorf("format=%q", format))
	}
	if view.Result == nil || view.Snapshot == nil {
		return domain.ExportArtifact{}, domain.WrapError(domain.ErrResultNotReady, "export result", fmt.Errorf("stage=%s", view.Stage))
	}
	if p.exporter == nil {
		return domain.ExportArtifact{}, domain.WrapError(domain.ErrUnsupportedExportFormat, "export result", fmt.Errorf("no exporter configured"))
	}

	artifact, err := p.exporter.Export(ctx, domain.ExportRequest{
		SessionID:   view.SessionID,
		Format:      parsed,
		Document:    view.Document,
		Snapshot:    *view.Snapshot,
		Result:      *view.Result,
		GeneratedAt: p.now().UTC(),
	})
	if err != nil {
		return domain.ExportArtifact{}, fmt.Errorf("export result: %w", err)
	}

	// The artifact is already rendered; a session reset meanwhile only loses
	// the announcement.
	if err := session.RecordExport(parsed, artifact.Filename); err != nil {
		p.logger.Warn("export_event_not_recorded", "session_id", view.SessionID, "error", err)
	}
	return artifact, nil
}
