// Package baseline implements ports.MetricsExtractor without reading any
// values from the document.
package baseline

import (
	"context"
	"fmt"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
	"github.com/kirillkom/health-report-analyzer/internal/core/ports"
)

type Extractor struct {
	inspector ports.DocumentInspector
	snapshot  domain.HealthMetricsSnapshot
}

// NewExtractor returns an extractor that yields domain.DefaultExtractionResult
// for every readable document. inspector may be nil.
func NewExtractor(inspector ports.DocumentInspector) *Extractor {
	return &Extractor{
		inspector: inspector,
		snapshot:  domain.DefaultExtractionResult,
	}
}

func (e *Extractor) Extract(ctx context.Context, doc domain.UploadedDocument) (domain.HealthMetricsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.HealthMetricsSnapshot{}, err
	}
	if e.inspector != nil {
		if _, err := e.inspector.Inspect(ctx, doc); err != nil {
			return domain.HealthMetricsSnapshot{}, fmt.Errorf("inspect %s: %w", doc.Name, err)
		}
	}
	return e.snapshot, nil
}
