package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

type flakyClassifier struct {
	failures int
	calls    int
	err      error
}

func (f *flakyClassifier) Classify(context.Context, domain.HealthMetricsSnapshot) (domain.ClassificationResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return domain.ClassificationResult{}, f.err
	}
	return domain.ClassificationResult{Status: "No Disease Detected", Confidence: 94}, nil
}

type flakyExtractor struct {
	calls int
	err   error
}

func (f *flakyExtractor) Extract(context.Context, domain.UploadedDocument) (domain.HealthMetricsSnapshot, error) {
	f.calls++
	if f.err != nil {
		return domain.HealthMetricsSnapshot{}, f.err
	}
	return domain.DefaultExtractionResult, nil
}

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	}
}

func TestGuardedClassifierRetriesTemporaryFailures(t *testing.T) {
	next := &flakyClassifier{failures: 2, err: domain.WrapError(domain.ErrTemporary, "classify", errors.New("busy"))}
	g := NewGuardedClassifier(next, NewExecutor(fastConfig()))

	got, err := g.Classify(context.Background(), domain.DefaultExtractionResult)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Confidence != 94 || next.calls != 3 {
		t.Fatalf("unexpected result %+v after %d calls", got, next.calls)
	}
}

func TestGuardedClassifierDoesNotRetryPermanentFailures(t *testing.T) {
	next := &flakyClassifier{failures: 5, err: errors.New("bad model")}
	g := NewGuardedClassifier(next, NewExecutor(fastConfig()))

	if _, err := g.Classify(context.Background(), domain.DefaultExtractionResult); err == nil {
		t.Fatalf("expected error")
	}
	if next.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", next.calls)
	}
}

func TestGuardedExtractorReportsOpenBreakerAsTemporary(t *testing.T) {
	exec := NewExecutor(fastConfig())
	next := &flakyExtractor{err: errors.New("unreadable")}
	g := NewGuardedExtractor(next, exec)

	for i := 0; i < 2; i++ {
		_, _ = g.Extract(context.Background(), domain.UploadedDocument{Name: "report.pdf"})
	}
	_, err := g.Extract(context.Background(), domain.UploadedDocument{Name: "report.pdf"})
	if !domain.IsKind(err, domain.ErrTemporary) || !IsCircuitOpen(err) {
		t.Fatalf("expected open breaker as ErrTemporary, got %v", err)
	}
	if next.calls != 2 {
		t.Fatalf("open breaker must short-circuit, got %d calls", next.calls)
	}
	if state := exec.BreakerStates()[OperationExtract]; state != "open" {
		t.Fatalf("expected open breaker state, got %q", state)
	}
}

func TestClassifyDomainErrorIgnoresCancellation(t *testing.T) {
	class := ClassifyDomainError(context.Canceled)
	if class.Retryable || class.RecordFailure {
		t.Fatalf("unexpected classification: %+v", class)
	}
}

// byNameExtractor rejects every document named reject as unreadable input.
type byNameExtractor struct {
	reject string
	calls  int
}

func (f *byNameExtractor) Extract(_ context.Context, doc domain.UploadedDocument) (domain.HealthMetricsSnapshot, error) {
	f.calls++
	if doc.Name == f.reject {
		return domain.HealthMetricsSnapshot{}, domain.WrapError(domain.ErrInvalidInput, "inspect pdf", errors.New("malformed PDF"))
	}
	return domain.DefaultExtractionResult, nil
}

func TestGuardedExtractorCorruptUploadsDoNotOpenBreaker(t *testing.T) {
	exec := NewExecutor(fastConfig())
	next := &byNameExtractor{reject: "bad.pdf"}
	g := NewGuardedExtractor(next, exec)

	for i := 0; i < 5; i++ {
		_, err := g.Extract(context.Background(), domain.UploadedDocument{Name: "bad.pdf"})
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("upload %d: expected invalid input, got %v", i, err)
		}
	}

	got, err := g.Extract(context.Background(), domain.UploadedDocument{Name: "report.pdf"})
	if err != nil {
		t.Fatalf("valid upload after corrupt ones: %v", err)
	}
	if got != domain.DefaultExtractionResult {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if next.calls != 6 {
		t.Fatalf("expected every upload to reach the extractor, got %d calls", next.calls)
	}
	if state := exec.BreakerStates()[OperationExtract]; state != "closed" {
		t.Fatalf("expected closed breaker, got %q", state)
	}
}

func TestClassifyDomainErrorSkipsCallerFaults(t *testing.T) {
	for _, kind := range []error{
		domain.ErrInvalidInput,
		domain.ErrUnsupportedFileType,
		domain.ErrDocumentTooLarge,
		domain.ErrValidation,
	} {
		class := ClassifyDomainError(domain.WrapError(kind, "upload", errors.New("rejected")))
		if class.Retryable || class.RecordFailure {
			t.Fatalf("%v: unexpected classification %+v", kind, class)
		}
	}

	class := ClassifyDomainError(domain.WrapError(domain.ErrExtractionFailed, "extract", errors.New("stalled")))
	if !class.RecordFailure {
		t.Fatalf("extraction failure must count against the breaker: %+v", class)
	}
}
