package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"datafit/pkg/contracts/domain"
)

type indicatorValueRow struct {
	ID                int64           `db:"id"`
	ColumnID          int64           `db:"column_id"`
	ReportIndicatorID int64           `db:"report_indicator_id"`
	IndicatorName     string          `db:"indicator_name"`
	Value             sql.NullFloat64 `db:"value"`
	IsActive          bool            `db:"is_active"`
}

func (r indicatorValueRow) toDomain() domain.IndicatorValue {
	v := domain.None()
	if r.Value.Valid {
		v = domain.Some(r.Value.Float64)
	}
	return domain.IndicatorValue{
		ID:                r.ID,
		ColumnID:          r.ColumnID,
		ReportIndicatorID: r.ReportIndicatorID,
		IndicatorName:     r.IndicatorName,
		Value:             v,
		IsActive:          r.IsActive,
	}
}

const selectIndicatorValues = `
	SELECT v.id, v.column_id, v.report_indicator_id, i.name AS indicator_name, v.value, v.is_active
	FROM indicator_values v
	JOIN report_indicators i ON i.id = v.report_indicator_id`

// IndicatorValueRepo stores computed indicator values.
type IndicatorValueRepo struct {
	base
}

// Create inserts an active value for (column, indicator). A missing value is stored as NULL.
func (r *IndicatorValueRepo) Create(ctx context.Context, columnID, indicatorID int64, value domain.OptionalFloat) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var stored sql.NullFloat64
	if value.Valid {
		stored = sql.NullFloat64{Float64: value.Float64, Valid: true}
	}

	query := r.db.Rebind(`
		INSERT INTO indicator_values (column_id, report_indicator_id, value, is_active)
		VALUES (?, ?, ?, TRUE)
		RETURNING id`)

	var id int64
	if err := r.db.QueryRowxContext(ctx, query, columnID, indicatorID, stored).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert indicator value: %w", err)
	}
	return id, nil
}

// ListActiveByColumn returns the column's active values in creation order.
func (r *IndicatorValueRepo) ListActiveByColumn(ctx context.Context, columnID int64) ([]domain.IndicatorValue, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(selectIndicatorValues + `
		WHERE v.column_id = ? AND v.is_active = TRUE
		ORDER BY v.id`)

	var rows []indicatorValueRow
	if err := r.db.SelectContext(ctx, &rows, query, columnID); err != nil {
		return nil, fmt.Errorf("failed to list indicator values of column %d: %w", columnID, err)
	}

	out := make([]domain.IndicatorValue, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// GetActive returns one active value.
func (r *IndicatorValueRepo) GetActive(ctx context.Context, id int64) (*domain.IndicatorValue, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(selectIndicatorValues + `
		WHERE v.id = ? AND v.is_active = TRUE`)

	return r.getOne(ctx, query, id)
}

// GetActiveByName returns the latest active value of the named indicator for a column.
// The name comparison is case-insensitive.
func (r *IndicatorValueRepo) GetActiveByName(ctx context.Context, columnID int64, name string) (*domain.IndicatorValue, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(selectIndicatorValues + `
		WHERE v.column_id = ? AND LOWER(i.name) = LOWER(?) AND v.is_active = TRUE
		ORDER BY v.id DESC
		LIMIT 1`)

	return r.getOne(ctx, query, columnID, name)
}

func (r *IndicatorValueRepo) getOne(ctx context.Context, query string, args ...interface{}) (*domain.IndicatorValue, error) {
	var row indicatorValueRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get indicator value: %w", err)
	}
	v := row.toDomain()
	return &v, nil
}

// Deactivate soft-deletes one active value.
func (r *IndicatorValueRepo) Deactivate(ctx context.Context, id int64) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE indicator_values SET is_active = FALSE WHERE id = ? AND is_active = TRUE`), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate indicator value: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
