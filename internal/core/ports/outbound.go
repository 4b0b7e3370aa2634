package ports

import (
	"context"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

// MetricsExtractor turns an accepted document into a metrics snapshot.
type MetricsExtractor interface {
	Extract(ctx context.Context, doc domain.UploadedDocument) (domain.HealthMetricsSnapshot, error)
}

// Classifier scores a frozen snapshot.
type Classifier interface {
	Classify(ctx context.Context, snapshot domain.HealthMetricsSnapshot) (domain.ClassificationResult, error)
}

// DocumentInspector checks that an uploaded document is readable and fills in
// metadata such as page count.
type DocumentInspector interface {
	Inspect(ctx context.Context, doc domain.UploadedDocument) (domain.UploadedDocument, error)
}

// EventPublisher delivers workflow events to observers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// EventHandler is implemented by observers (mascot, toasts, metrics, relays).
type EventHandler interface {
	HandleEvent(ctx context.Context, event domain.Event) error
}

// Exporter renders a result into a downloadable artifact.
type Exporter interface {
	Export(ctx context.Context, req domain.ExportRequest) (domain.ExportArtifact, error)
}
