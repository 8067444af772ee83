package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	apperrors "datafit/internal/errors"
	"datafit/pkg/contracts/domain"
)

// MinPresentValues is the fewest non-missing cells a column needs to be kept.
const MinPresentValues = 3

// ErrNoValidColumns is the message used when every column was dropped.
const ErrNoValidColumns = "no valid columns in dataset"

// CandidateColumn is a column that passed validation but is not persisted yet.
type CandidateColumn struct {
	Name   string
	Values []domain.OptionalFloat
}

// Validator checks sheet structure and filters columns by content.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a validator that logs dropped columns on logger.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{logger: logger.With(slog.String("component", "column_validator"))}
}

// Validate returns the accepted columns of sheet in sheet order.
//
// Header problems (empty, duplicated after trimming, or missing) reject the sheet
// before any column is read. A column is dropped when a cell is neither empty nor
// a finite number, when its header is longer than domain.MaxColumnNameLength, or
// when it has fewer than MinPresentValues values. No surviving column is a BadRequest.
func (v *Validator) Validate(ctx context.Context, sheet *Sheet) ([]CandidateColumn, error) {
	names, err := checkHeaders(sheet)
	if err != nil {
		return nil, err
	}

	accepted := make([]CandidateColumn, 0, len(names))
	for col, name := range names {
		if utf8.RuneCountInString(name) > domain.MaxColumnNameLength {
			v.logger.WarnContext(ctx, "column dropped",
				slog.String("column", name),
				slog.String("reason", "name too long"))
			continue
		}

		values, ok := parseColumn(sheet, col)
		if !ok {
			v.logger.WarnContext(ctx, "column dropped",
				slog.String("column", name),
				slog.String("reason", "non-numeric cell"))
			continue
		}

		if present := domain.CountPresent(values); present < MinPresentValues {
			v.logger.WarnContext(ctx, "column dropped",
				slog.String("column", name),
				slog.String("reason", "too few values"),
				slog.Int("present", present))
			continue
		}

		accepted = append(accepted, CandidateColumn{Name: name, Values: values})
	}

	if len(accepted) == 0 {
		return nil, apperrors.NewBadRequestError(ErrNoValidColumns)
	}

	v.logger.DebugContext(ctx, "sheet validated",
		slog.String("sheet", sheet.Name),
		slog.Int("columns", len(names)),
		slog.Int("accepted", len(accepted)),
		slog.Int("rows", len(sheet.Rows)))

	return accepted, nil
}

// checkHeaders returns the trimmed header names or a structural rejection.
func checkHeaders(sheet *Sheet) ([]string, error) {
	if len(sheet.Rows) == 0 {
		return nil, apperrors.NewBadRequestError("spreadsheet has no data rows")
	}

	width := sheet.Width()
	names := make([]string, width)
	seen := make(map[string]int, width)

	for col := 0; col < width; col++ {
		if col >= len(sheet.Headers) {
			return nil, apperrors.NewBadRequestError(fmt.Sprintf("column %d has no header", col+1))
		}

		name := strings.TrimSpace(sheet.Headers[col])
		if name == "" {
			return nil, apperrors.NewBadRequestError(fmt.Sprintf("column %d has an empty header", col+1))
		}
		if first, dup := seen[name]; dup {
			return nil, apperrors.NewBadRequestError(
				fmt.Sprintf("duplicate column header %q in columns %d and %d", name, first+1, col+1))
		}

		seen[name] = col
		names[col] = name
	}

	return names, nil
}

// parseColumn converts column col to optional floats. ok is false when a
// non-empty cell is not a finite number.
func parseColumn(sheet *Sheet, col int) ([]domain.OptionalFloat, bool) {
	values := make([]domain.OptionalFloat, len(sheet.Rows))
	for row := range sheet.Rows {
		cell, ok := parseCell(sheet.Cell(row, col))
		if !ok {
			return nil, false
		}
		values[row] = cell
	}
	return values, true
}

func parseCell(raw string) (domain.OptionalFloat, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.None(), true
	}
	if isHexLiteral(trimmed) {
		return domain.None(), false
	}

	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return domain.None(), false
	}
	return domain.Some(v), true
}

// isHexLiteral reports strings such as "0x1p3" that strconv.ParseFloat accepts
// but a spreadsheet user does not mean as a number.
func isHexLiteral(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
