package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
	"github.com/kirillkom/health-report-analyzer/internal/core/ports"
)

const (
	OperationClassify     = "classifier.classify"
	OperationExtract      = "extractor.extract"
	OperationRelayPublish = "nats.publish"
)

// callerFaults are rejections caused by what one user sent. They say nothing
// about the health of the dependency, so they never move a breaker.
var callerFaults = []error{
	domain.ErrInvalidInput,
	domain.ErrUnsupportedFileType,
	domain.ErrDocumentTooLarge,
	domain.ErrValidation,
}

// ClassifyDomainError retries ErrTemporary. Caller cancellation and caller
// faults are neither retried nor counted against the breaker.
func ClassifyDomainError(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	for _, kind := range callerFaults {
		if domain.IsKind(err, kind) {
			return ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return ErrorClassification{Retryable: false, RecordFailure: true}
}

// GuardedClassifier runs a classifier through the executor.
type GuardedClassifier struct {
	next     ports.Classifier
	executor *Executor
}

func NewGuardedClassifier(next ports.Classifier, executor *Executor) *GuardedClassifier {
	return &GuardedClassifier{next: next, executor: executor}
}

func (g *GuardedClassifier) Classify(ctx context.Context, snapshot domain.HealthMetricsSnapshot) (domain.ClassificationResult, error) {
	var result domain.ClassificationResult
	err := g.executor.Execute(ctx, OperationClassify, func(ctx context.Context) error {
		r, err := g.next.Classify(ctx, snapshot)
		if err != nil {
			return err
		}
		result = r
		return nil
	}, ClassifyDomainError)
	if err != nil {
		return domain.ClassificationResult{}, wrapOpen(OperationClassify, err)
	}
	return result, nil
}

// GuardedExtractor runs an extractor through the executor.
type GuardedExtractor struct {
	next     ports.MetricsExtractor
	executor *Executor
}

func NewGuardedExtractor(next ports.MetricsExtractor, executor *Executor) *GuardedExtractor {
	return &GuardedExtractor{next: next, executor: executor}
}

func (g *GuardedExtractor) Extract(ctx context.Context, doc domain.UploadedDocument) (domain.HealthMetricsSnapshot, error) {
	var snapshot domain.HealthMetricsSnapshot
	err := g.executor.Execute(ctx, OperationExtract, func(ctx context.Context) error {
		s, err := g.next.Extract(ctx, doc)
		if err != nil {
			return err
		}
		snapshot = s
		return nil
	}, ClassifyDomainError)
	if err != nil {
		return domain.HealthMetricsSnapshot{}, wrapOpen(OperationExtract, err)
	}
	return snapshot, nil
}

func wrapOpen(operation string, err error) error {
	if IsCircuitOpen(err) && !domain.IsKind(err, domain.ErrTemporary) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
