package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

type exporterFake struct {
	req domain.ExportRequest
	err error
}

func (f *exporterFake) Export(_ context.Context, req domain.ExportRequest) (domain.ExportArtifact, error) {
	f.req = req
	if f.err != nil {
		return domain.ExportArtifact{}, f.err
	}
	return domain.ExportArtifact{
		Filename:    "health-report." + string(req.Format),
		ContentType: "text/plain",
		Data:        []byte("ok"),
	}, nil
}

// viewSession serves a fixed view and records export announcements.
type viewSession struct {
	view      domain.WorkflowView
	recordErr error
	exports   []domain.Event
}

func (s *viewSession) ID() string { return s.view.SessionID }

func (s *viewSession) Upload(context.Context, domain.UploadedDocument) error { return nil }

func (s *viewSession) UpdateMetric(domain.MetricField, string) (domain.MetricValue, error) {
	return domain.MetricValue{}, nil
}

func (s *viewSession) RunAnalysis(context.Context) error { return nil }

func (s *viewSession) Reset() {}

func (s *viewSession) View() domain.WorkflowView { return s.view }

func (s *viewSession) RecordExport(format domain.ExportFormat, filename string) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.exports = append(s.exports, domain.Event{Type: domain.EventExported, Format: format, Message: filename})
	return nil
}

func completedView() domain.WorkflowView {
	snapshot := domain.DefaultExtractionResult
	result := healthyResult()
	return domain.WorkflowView{
		SessionID: "session-1",
		Stage:     domain.StageResult,
		Document:  &domain.UploadedDocument{Name: "report.pdf", Size: 500000, MediaType: domain.MediaTypePDF},
		Snapshot:  &snapshot,
		Result:    &result,
	}
}

func TestPresentHealthyResult(t *testing.T) {
	p := NewResultPresenter(nil, nil)

	view := p.Present(healthyResult())
	if view.Tone != ToneSuccess {
		t.Fatalf("expected success tone, got %s", view.Tone)
	}
	if view.ConfidenceLabel != "94% Confidence" {
		t.Fatalf("unexpected label: %q", view.ConfidenceLabel)
	}
	if view.Status != "No Disease Detected" || view.Prediction != 0 {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestPresentDetectedResultUsesAlertTone(t *testing.T) {
	p := NewResultPresenter(nil, nil)

	view := p.Present(domain.ClassificationResult{Prediction: domain.PredictionDetected, Status: "Disease Detected", Confidence: 71})
	if view.Tone != ToneAlert {
		t.Fatalf("expected alert tone, got %s", view.Tone)
	}
	if view.ConfidenceLabel != "71% Confidence" {
		t.Fatalf("unexpected label: %q", view.ConfidenceLabel)
	}
}

func TestExportAsForwardsRequestAndRecordsExport(t *testing.T) {
	exporter := &exporterFake{}
	session := &viewSession{view: completedView()}
	p := NewResultPresenter(exporter, nil)

	artifact, err := p.ExportAs(context.Background(), session, "CSV")
	if err != nil {
		t.Fatalf("ExportAs() error = %v", err)
	}
	if artifact.Filename != "health-report.csv" {
		t.Fatalf("unexpected filename: %s", artifact.Filename)
	}
	if exporter.req.Format != domain.ExportCSV || exporter.req.SessionID != "session-1" {
		t.Fatalf("unexpected request: %+v", exporter.req)
	}
	if exporter.req.Snapshot != domain.DefaultExtractionResult || exporter.req.Result.Confidence != 94 {
		t.Fatalf("request must carry snapshot and result: %+v", exporter.req)
	}
	if exporter.req.GeneratedAt.IsZero() {
		t.Fatalf("expected generation time")
	}

	if len(session.exports) != 1 || session.exports[0].Format != domain.ExportCSV {
		t.Fatalf("expected one recorded export, got %+v", session.exports)
	}
	if session.exports[0].Message != "health-report.csv" {
		t.Fatalf("unexpected recorded filename: %q", session.exports[0].Message)
	}
}

func TestExportAsKeepsArtifactWhenSessionMovedOn(t *testing.T) {
	session := &viewSession{
		view:      completedView(),
		recordErr: domain.WrapError(domain.ErrResultNotReady, "record export", errors.New("stage=upload")),
	}
	p := NewResultPresenter(&exporterFake{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	artifact, err := p.ExportAs(context.Background(), session, domain.ExportJSON)
	if err != nil {
		t.Fatalf("ExportAs() error = %v", err)
	}
	if artifact.Filename != "health-report.json" {
		t.Fatalf("unexpected filename: %s", artifact.Filename)
	}
}

func TestExportAsRequiresResult(t *testing.T) {
	p := NewResultPresenter(&exporterFake{}, nil)

	view := completedView()
	view.Result = nil
	view.Stage = domain.StageReview
	session := &viewSession{view: view}
	_, err := p.ExportAs(context.Background(), session, domain.ExportPDF)
	if !domain.IsKind(err, domain.ErrResultNotReady) {
		t.Fatalf("expected ErrResultNotReady, got %v", err)
	}
	if len(session.exports) != 0 {
		t.Fatalf("rejected export must not be recorded")
	}
}

func TestExportAsRejectsUnknownFormat(t *testing.T) {
	p := NewResultPresenter(&exporterFake{}, nil)

	_, err := p.ExportAs(context.Background(), &viewSession{view: completedView()}, "docx")
	if !domain.IsKind(err, domain.ErrUnsupportedExportFormat) {
		t.Fatalf("expected ErrUnsupportedExportFormat, got %v", err)
	}
}

func TestExportAsPropagatesExporterError(t *testing.T) {
	session := &viewSession{view: completedView()}
	p := NewResultPresenter(&exporterFake{err: errors.New("disk full")}, nil)

	_, err := p.ExportAs(context.Background(), session, domain.ExportJSON)
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(session.exports) != 0 {
		t.Fatalf("failed export must not be recorded")
	}
}
