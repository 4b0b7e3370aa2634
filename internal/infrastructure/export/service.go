// Package export renders completed analyses into downloadable files.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

// Renderer produces the bytes of one export format.
type Renderer interface {
	ContentType() string
	Render(report Report) ([]byte, error)
}

// Service dispatches export requests to the renderer registered for the
// requested format.
type Service struct {
	renderers map[domain.ExportFormat]Renderer
	logger    *slog.Logger
}

// NewService registers the csv, json, xlsx and pdf renderers.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		renderers: map[domain.ExportFormat]Renderer{
			domain.ExportCSV:  CSVRenderer{},
			domain.ExportJSON: JSONRenderer{},
			domain.ExportXLSX: XLSXRenderer{},
			domain.ExportPDF:  PDFRenderer{},
		},
		logger: logger,
	}
}

func (s *Service) Formats() []domain.ExportFormat {
	out := make([]domain.ExportFormat, 0, len(s.renderers))
	for _, f := range []domain.ExportFormat{domain.ExportPDF, domain.ExportCSV, domain.ExportJSON, domain.ExportXLSX} {
		if _, ok := s.renderers[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

func (s *Service) Export(ctx context.Context, req domain.ExportRequest) (domain.ExportArtifact, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExportArtifact{}, err
	}
	renderer, ok := s.renderers[req.Format]
	if !ok {
		return domain.ExportArtifact{}, domain.WrapError(domain.ErrUnsupportedExportFormat, "export", fmt.Errorf("format=%q", req.Format))
	}

	start := time.Now()
	report := NewReport(req)
	data, err := renderer.Render(report)
	if err != nil {
		return domain.ExportArtifact{}, fmt.Errorf("render %s: %w", req.Format, err)
	}

	artifact := domain.ExportArtifact{
		Filename:    Filename(req.GeneratedAt, req.Format),
		ContentType: renderer.ContentType(),
		Data:        data,
	}
	s.logger.Info("export_rendered",
		"session_id", req.SessionID,
		"format", req.Format,
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return artifact, nil
}

func Filename(at time.Time, format domain.ExportFormat) string {
	if at.IsZero() {
		at = time.Now()
	}
	return fmt.Sprintf("health-report-%s.%s", at.UTC().Format("20060102-150405"), format)
}
