package dataprocessing

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	apperrors "datafit/internal/errors"
)

// Sheet is the raw content of a worksheet: the first row as headers and every
// following row as data. Rows may be shorter than the header when trailing cells are empty.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Width returns the number of columns spanned by the header or any data row.
func (s *Sheet) Width() int {
	width := len(s.Headers)
	for _, row := range s.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// Cell returns the raw value at (row, col), or "" when the row is short.
func (s *Sheet) Cell(row, col int) string {
	if col < len(s.Rows[row]) {
		return s.Rows[row][col]
	}
	return ""
}

// ParseSheet reads the first worksheet of an .xlsx workbook.
// Cells are read unformatted so number formats do not leak into the values.
func ParseSheet(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeBadRequest, "could not read spreadsheet", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewBadRequestError("spreadsheet has no worksheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read rows of sheet %q", sheets[0]), err)
	}

	if len(rows) == 0 {
		return nil, apperrors.NewBadRequestError("spreadsheet has no header row")
	}

	return &Sheet{
		Name:    sheets[0],
		Headers: rows[0],
		Rows:    rows[1:],
	}, nil
}
