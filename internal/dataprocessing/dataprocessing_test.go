package dataprocessing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "datafit/internal/errors"
	"datafit/internal/infrastructure"
	"datafit/pkg/contracts/domain"
)

// buildWorkbook writes rows to the first sheet of a new workbook. nil cells stay empty.
func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for r, row := range rows {
		for c, value := range row {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, value))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func validate(t *testing.T, rows [][]interface{}) ([]CandidateColumn, error) {
	t.Helper()
	sheet, err := ParseSheet(buildWorkbook(t, rows))
	require.NoError(t, err)
	return NewValidator(infrastructure.NopLogger()).Validate(context.Background(), sheet)
}

func TestParseSheetReadsFirstWorksheet(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "data"))
	_, err := f.NewSheet("ignored")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("data", "A1", &[]interface{}{"A", "B"}))
	require.NoError(t, f.SetSheetRow("data", "A2", &[]interface{}{1, 2.5}))
	require.NoError(t, f.SetSheetRow("ignored", "A1", &[]interface{}{"X"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	sheet, err := ParseSheet(buf)
	require.NoError(t, err)

	assert.Equal(t, "data", sheet.Name)
	assert.Equal(t, []string{"A", "B"}, sheet.Headers)
	assert.Equal(t, [][]string{{"1", "2.5"}}, sheet.Rows)
}

func TestParseSheetRejectsGarbage(t *testing.T) {
	_, err := ParseSheet(strings.NewReader("this is not a workbook"))
	require.Error(t, err)
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestParseSheetRejectsEmptyWorkbook(t *testing.T) {
	_, err := ParseSheet(buildWorkbook(t, nil))
	require.Error(t, err)
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestValidateAcceptsNumericColumns(t *testing.T) {
	cols, err := validate(t, [][]interface{}{
		{"A", "B"},
		{1, 4},
		{2, 5},
		{3, 6},
		{4, 7},
		{7, 7},
		{7, 7},
	})
	require.NoError(t, err)
	require.Len(t, cols, 2)

	assert.Equal(t, "A", cols[0].Name)
	assert.Equal(t, []float64{1, 2, 3, 4, 7, 7}, domain.Present(cols[0].Values))
	assert.Equal(t, "B", cols[1].Name)
	assert.Equal(t, []float64{4, 5, 6, 7, 7, 7}, domain.Present(cols[1].Values))
}

func TestValidateKeepsGapsAndZeros(t *testing.T) {
	cols, err := validate(t, [][]interface{}{
		{" padded "},
		{0},
		{nil},
		{0},
		{"  "},
		{-3.5},
	})
	require.NoError(t, err)
	require.Len(t, cols, 1)

	assert.Equal(t, "padded", cols[0].Name, "header is trimmed")
	assert.Equal(t, []domain.OptionalFloat{
		domain.Some(0), domain.None(), domain.Some(0), domain.None(), domain.Some(-3.5),
	}, cols[0].Values)
}

func TestValidateDropsColumnsSilently(t *testing.T) {
	cols, err := validate(t, [][]interface{}{
		{"ok", "text", "short", "this header is far too long"},
		{1, 1, 1, 1},
		{2, "n/a", 2, 2},
		{3, 3, nil, 3},
	})
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "ok", cols[0].Name)
}

func TestValidateStructuralRejections(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]interface{}
		wantMsg string
	}{
		{
			name:    "duplicate header",
			rows:    [][]interface{}{{"A", "A"}, {1, 2}, {3, 4}, {5, 6}},
			wantMsg: "duplicate column header",
		},
		{
			name:    "duplicate after trimming",
			rows:    [][]interface{}{{"A", " A "}, {1, 2}, {3, 4}, {5, 6}},
			wantMsg: "duplicate column header",
		},
		{
			name:    "empty header",
			rows:    [][]interface{}{{"A", "   ", "C"}, {1, 2, 3}, {1, 2, 3}, {1, 2, 3}},
			wantMsg: "empty header",
		},
		{
			name:    "missing header",
			rows:    [][]interface{}{{"A"}, {1, 2}, {3, 4}, {5, 6}},
			wantMsg: "has no header",
		},
		{
			name:    "no data rows",
			rows:    [][]interface{}{{"A", "B"}},
			wantMsg: "no data rows",
		},
		{
			name:    "every column too short",
			rows:    [][]interface{}{{"A", "B"}, {1, 2}, {3, nil}},
			wantMsg: ErrNoValidColumns,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validate(t, tt.rows)
			require.Error(t, err)
			assert.True(t, apperrors.IsBadRequest(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateDuplicateHeaderBeatsBadContent(t *testing.T) {
	_, err := validate(t, [][]interface{}{{"A", "A"}, {"x", "y"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate column header")
}

func TestAcceptedColumnsHaveEnoughValues(t *testing.T) {
	cols, err := validate(t, [][]interface{}{
		{"three", "two", "four"},
		{1, 1, 1},
		{nil, nil, 2},
		{2, 2, 3},
		{3, nil, 4},
	})
	require.NoError(t, err)

	names := make([]string, 0, len(cols))
	for _, c := range cols {
		assert.GreaterOrEqual(t, domain.CountPresent(c.Values), MinPresentValues)
		assert.Len(t, c.Values, 4)
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"three", "four"}, names)
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		raw   string
		want  domain.OptionalFloat
		valid bool
	}{
		{"", domain.None(), true},
		{" 1.5 ", domain.Some(1.5), true},
		{"1e3", domain.Some(1000), true},
		{"0", domain.Some(0), true},
		{"NaN", domain.None(), false},
		{"inf", domain.None(), false},
		{"1,5", domain.None(), false},
		{"abc", domain.None(), false},
		{"0x1p3", domain.None(), false},
		{"-0X1.8p1", domain.None(), false},
		{"0x10", domain.None(), false},
		{"+2", domain.Some(2), true},
		{"-0.5", domain.Some(-0.5), true},
	}

	for _, tt := range tests {
		got, ok := parseCell(tt.raw)
		assert.Equal(t, tt.valid, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
