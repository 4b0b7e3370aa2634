// Package pdfmeta checks that uploaded documents are readable. It looks at
// structure only; document text is never parsed.
package pdfmeta

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

var imageContentTypes = map[domain.MediaType]string{
	domain.MediaTypeJPG:  "image/jpeg",
	domain.MediaTypeJPEG: "image/jpeg",
	domain.MediaTypePNG:  "image/png",
}

type Inspector struct{}

func NewInspector() *Inspector {
	return &Inspector{}
}

// Inspect returns doc with PageCount filled in. Documents uploaded without
// content are passed through unchanged.
func (i *Inspector) Inspect(ctx context.Context, doc domain.UploadedDocument) (domain.UploadedDocument, error) {
	if err := ctx.Err(); err != nil {
		return doc, err
	}
	if len(doc.Content) == 0 {
		return doc, nil
	}

	switch doc.MediaType {
	case domain.MediaTypePDF:
		pages, err := countPages(doc.Content)
		if err != nil {
			return doc, domain.WrapError(domain.ErrInvalidInput, "inspect pdf", err)
		}
		if pages < 1 {
			return doc, domain.WrapError(domain.ErrInvalidInput, "inspect pdf", fmt.Errorf("document %q has no pages", doc.Name))
		}
		doc.PageCount = pages
	case domain.MediaTypeJPG, domain.MediaTypeJPEG, domain.MediaTypePNG:
		want := imageContentTypes[doc.MediaType]
		if got := http.DetectContentType(doc.Content); got != want {
			return doc, domain.WrapError(domain.ErrInvalidInput, "inspect image", fmt.Errorf("content is %s, expected %s", got, want))
		}
		doc.PageCount = 1
	default:
		return doc, domain.WrapError(domain.ErrUnsupportedFileType, "inspect document", fmt.Errorf("type=%q", doc.MediaType))
	}
	return doc, nil
}

func countPages(content []byte) (pages int, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = 0
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}
