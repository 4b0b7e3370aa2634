package baseline

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

type inspectorFake struct {
	err   error
	calls int
}

func (f *inspectorFake) Inspect(_ context.Context, doc domain.UploadedDocument) (domain.UploadedDocument, error) {
	f.calls++
	return doc, f.err
}

func TestExtractReturnsDefaultSnapshot(t *testing.T) {
	inspector := &inspectorFake{}
	e := NewExtractor(inspector)

	got, err := e.Extract(context.Background(), domain.UploadedDocument{Name: "report.pdf", Size: 500000, MediaType: domain.MediaTypePDF})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := domain.HealthMetricsSnapshot{
		Age: 45, BloodPressure: 120, Cholesterol: 200, Glucose: 95, HeartRate: 72,
		BMI: 24.5, Smoking: domain.SmokingNo, Exercise: domain.ExerciseRegular,
	}
	if got != want {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if inspector.calls != 1 {
		t.Fatalf("expected one inspection, got %d", inspector.calls)
	}
}

func TestExtractFailsOnUnreadableDocument(t *testing.T) {
	e := NewExtractor(&inspectorFake{err: domain.WrapError(domain.ErrInvalidInput, "inspect pdf", errors.New("no pages"))})

	_, err := e.Extract(context.Background(), domain.UploadedDocument{Name: "empty.pdf", MediaType: domain.MediaTypePDF})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExtractWithoutInspector(t *testing.T) {
	got, err := NewExtractor(nil).Extract(context.Background(), domain.UploadedDocument{Name: "scan.png"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != domain.DefaultExtractionResult {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}
