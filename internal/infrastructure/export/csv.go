package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

type CSVRenderer struct{}

func (CSVRenderer) ContentType() string { return "text/csv; charset=utf-8" }

func (CSVRenderer) Render(report Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Metric", "Value"}); err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	for _, row := range report.Rows() {
		if err := w.Write(row[:]); err != nil {
			return nil, fmt.Errorf("csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}
	return buf.Bytes(), nil
}
