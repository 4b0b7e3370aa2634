package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Health Report"

type XLSXRenderer struct{}

func (XLSXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSXRenderer) Render(report Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(xlsxSheet, cell, v)
	}

	write(1, 1, "Metric")
	write(2, 1, "Value")
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(xlsxSheet, "A1", "B1", style)
	}

	row := 2
	for _, pair := range report.Rows() {
		write(1, row, pair[0])
		write(2, row, pair[1])
		row++
	}

	_ = f.SetColWidth(xlsxSheet, "A", "A", 28)
	_ = f.SetColWidth(xlsxSheet, "B", "B", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
