package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"datafit/pkg/contracts/domain"
)

// utf8BOM lets spreadsheet applications detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options controls CSV output.
type Options struct {
	BOMPrefix bool
}

// SummaryHeaders returns the header row: "column" followed by the
// indicator names in catalog order.
func SummaryHeaders(catalog []domain.ReportIndicator) []string {
	headers := make([]string, 0, len(catalog)+1)
	headers = append(headers, "column")
	for _, ind := range catalog {
		headers = append(headers, ind.Name)
	}
	return headers
}

// SummaryRecords returns one record per column of report. A cell is empty
// when the column has no active value for that indicator.
func SummaryRecords(catalog []domain.ReportIndicator, report *domain.Report) [][]string {
	records := make([][]string, 0, len(report.Columns))
	for _, col := range report.Columns {
		byIndicator := make(map[int64]domain.OptionalFloat, len(col.IndicatorValues))
		for _, v := range col.IndicatorValues {
			byIndicator[v.ReportIndicatorID] = v.Value
		}

		record := make([]string, 0, len(catalog)+1)
		record = append(record, col.Name)
		for _, ind := range catalog {
			record = append(record, formatValue(byIndicator[ind.ID]))
		}
		records = append(records, record)
	}
	return records
}

// WriteReportSummary writes the indicator table of report to w.
func WriteReportSummary(w io.Writer, catalog []domain.ReportIndicator, report *domain.Report, opts Options) error {
	if report == nil {
		return fmt.Errorf("report is required")
	}

	if opts.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(SummaryHeaders(catalog)); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range SummaryRecords(catalog, report) {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
