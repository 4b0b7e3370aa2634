package export

import (
	"strconv"
	"time"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

// Report is the format-neutral content of an export.
type Report struct {
	SessionID   string        `json:"session_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Document    *DocumentInfo `json:"document,omitempty"`
	Metrics     []MetricRow   `json:"metrics"`
	Result      ResultInfo    `json:"result"`
}

type DocumentInfo struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	MediaType string `json:"media_type"`
	PageCount int    `json:"page_count,omitempty"`
}

type MetricRow struct {
	Field domain.MetricField `json:"field"`
	Label string             `json:"label"`
	Value string             `json:"value"`
}

type ResultInfo struct {
	Prediction   int       `json:"prediction"`
	Status       string    `json:"status"`
	Confidence   int       `json:"confidence"`
	Explanation  string    `json:"explanation"`
	ClassifiedAt time.Time `json:"classified_at"`
}

func NewReport(req domain.ExportRequest) Report {
	generated := req.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	report := Report{
		SessionID:   req.SessionID,
		GeneratedAt: generated.UTC(),
		Result: ResultInfo{
			Prediction:   int(req.Result.Prediction),
			Status:       req.Result.Status,
			Confidence:   req.Result.Confidence,
			Explanation:  req.Result.Explanation,
			ClassifiedAt: req.Result.ClassifiedAt,
		},
	}
	if req.Document != nil {
		report.Document = &DocumentInfo{
			Name:      req.Document.Name,
			Size:      req.Document.Size,
			MediaType: string(req.Document.MediaType),
			PageCount: req.Document.PageCount,
		}
	}
	for _, spec := range domain.MetricSpecs() {
		value, ok := req.Snapshot.Get(spec.Field)
		if !ok {
			continue
		}
		report.Metrics = append(report.Metrics, MetricRow{Field: spec.Field, Label: spec.Label, Value: value.String()})
	}
	return report
}

// Rows flattens the report into label/value pairs shared by the tabular
// renderers.
func (r Report) Rows() [][2]string {
	rows := make([][2]string, 0, len(r.Metrics)+8)
	if r.Document != nil {
		rows = append(rows,
			[2]string{"Document", r.Document.Name},
			[2]string{"Document Type", r.Document.MediaType},
			[2]string{"Document Size (bytes)", strconv.FormatInt(r.Document.Size, 10)},
		)
	}
	for _, m := range r.Metrics {
		rows = append(rows, [2]string{m.Label, m.Value})
	}
	rows = append(rows,
		[2]string{"Prediction", strconv.Itoa(r.Result.Prediction)},
		[2]string{"Status", r.Result.Status},
		[2]string{"Confidence (%)", strconv.Itoa(r.Result.Confidence)},
		[2]string{"Explanation", r.Result.Explanation},
		[2]string{"Generated At", r.GeneratedAt.Format(time.RFC3339)},
	)
	return rows
}
