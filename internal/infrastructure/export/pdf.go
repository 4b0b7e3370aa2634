package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

type PDFRenderer struct{}

func (PDFRenderer) ContentType() string { return "application/pdf" }

func (PDFRenderer) Render(report Report) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Health Report Analysis", true)
	doc.AddPage()
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFont("Helvetica", "B", 18)
	doc.CellFormat(0, 12, "Health Report Analysis", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(0, 6, "Generated "+report.GeneratedAt.Format(time.RFC1123), "", 1, "L", false, 0, "")
	if report.Document != nil {
		doc.CellFormat(0, 6, tr("Source: "+report.Document.Name), "", 1, "L", false, 0, "")
	}
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 14)
	doc.CellFormat(0, 10, tr(report.Result.Status), "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 11)
	doc.CellFormat(0, 7, fmt.Sprintf("%d%% Confidence", report.Result.Confidence), "", 1, "L", false, 0, "")
	doc.MultiCell(0, 6, tr(report.Result.Explanation), "", "L", false)
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 11)
	doc.SetFillColor(230, 236, 245)
	doc.CellFormat(90, 8, "Metric", "1", 0, "L", true, 0, "")
	doc.CellFormat(90, 8, "Value", "1", 1, "L", true, 0, "")
	doc.SetFont("Helvetica", "", 11)
	for _, m := range report.Metrics {
		doc.CellFormat(90, 7, tr(m.Label), "1", 0, "L", false, 0, "")
		doc.CellFormat(90, 7, tr(m.Value), "1", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf write: %w", err)
	}
	return buf.Bytes(), nil
}
