package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

func testRequest(format domain.ExportFormat) domain.ExportRequest {
	return domain.ExportRequest{
		SessionID: "session-1",
		Format:    format,
		Document:  &domain.UploadedDocument{Name: "report.pdf", Size: 500000, MediaType: domain.MediaTypePDF},
		Snapshot:  domain.DefaultExtractionResult,
		Result: domain.ClassificationResult{
			Prediction:  domain.PredictionNotDetected,
			Status:      "No Disease Detected",
			Confidence:  94,
			Explanation: "All indicators are within optimal ranges.",
		},
		GeneratedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
}

func newTestService() *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExportCSV(t *testing.T) {
	artifact, err := newTestService().Export(context.Background(), testRequest(domain.ExportCSV))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if artifact.Filename != "health-report-20260304-050607.csv" {
		t.Fatalf("unexpected filename: %s", artifact.Filename)
	}

	records, err := csv.NewReader(bytes.NewReader(artifact.Data)).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	values := map[string]string{}
	for _, rec := range records[1:] {
		values[rec[0]] = rec[1]
	}
	if values["Age (years)"] != "45" || values["BMI"] != "24.5" || values["Smoking History"] != "no" {
		t.Fatalf("unexpected metric values: %v", values)
	}
	if values["Status"] != "No Disease Detected" || values["Confidence (%)"] != "94" {
		t.Fatalf("unexpected result values: %v", values)
	}
}

func TestExportJSON(t *testing.T) {
	artifact, err := newTestService().Export(context.Background(), testRequest(domain.ExportJSON))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if artifact.ContentType != "application/json" {
		t.Fatalf("unexpected content type: %s", artifact.ContentType)
	}

	var report Report
	if err := json.Unmarshal(artifact.Data, &report); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(report.Metrics) != len(domain.MetricSpecs()) {
		t.Fatalf("expected every metric, got %d", len(report.Metrics))
	}
	if report.Result.Confidence != 94 || report.Document == nil || report.Document.Name != "report.pdf" {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestExportXLSX(t *testing.T) {
	artifact, err := newTestService().Export(context.Background(), testRequest(domain.ExportXLSX))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(artifact.Data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if rows[0][0] != "Metric" || rows[0][1] != "Value" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	found := false
	for _, row := range rows {
		if len(row) == 2 && row[0] == "Cholesterol (mg/dL)" && row[1] == "200" {
			found = true
		}
	}
	if !found {
		t.Fatalf("cholesterol row missing: %v", rows)
	}
}

func TestExportPDF(t *testing.T) {
	artifact, err := newTestService().Export(context.Background(), testRequest(domain.ExportPDF))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !bytes.HasPrefix(artifact.Data, []byte("%PDF-")) {
		t.Fatalf("expected pdf header, got %q", artifact.Data[:8])
	}
	if artifact.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type: %s", artifact.ContentType)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	_, err := newTestService().Export(context.Background(), testRequest("docx"))
	if !domain.IsKind(err, domain.ErrUnsupportedExportFormat) {
		t.Fatalf("expected ErrUnsupportedExportFormat, got %v", err)
	}
}

func TestFormatsListsEveryRenderer(t *testing.T) {
	got := newTestService().Formats()
	if len(got) != 4 || got[0] != domain.ExportPDF {
		t.Fatalf("unexpected formats: %v", got)
	}
}
