package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"datafit/pkg/contracts/domain"
)

type columnRow struct {
	ID         int64  `db:"id"`
	Name       string `db:"name"`
	ValuesJSON string `db:"values_json"`
	IsActive   bool   `db:"is_active"`
}

func (r columnRow) toDomain() (*domain.Column, error) {
	var values []domain.OptionalFloat
	if err := json.Unmarshal([]byte(r.ValuesJSON), &values); err != nil {
		return nil, fmt.Errorf("failed to decode values of column %d: %w", r.ID, err)
	}
	return &domain.Column{
		ID:       r.ID,
		Name:     r.Name,
		Values:   values,
		IsActive: r.IsActive,
	}, nil
}

// ColumnRepo stores validated columns. Values are kept as a JSON array with null for missing cells.
type ColumnRepo struct {
	base
}

// Create inserts an active column and returns its id.
func (r *ColumnRepo) Create(ctx context.Context, column *domain.Column) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	encoded, err := json.Marshal(column.Values)
	if err != nil {
		return 0, fmt.Errorf("failed to encode column values: %w", err)
	}

	query := r.db.Rebind(`
		INSERT INTO report_columns (name, values_json, is_active)
		VALUES (?, ?, TRUE)
		RETURNING id`)

	var id int64
	if err := r.db.QueryRowxContext(ctx, query, column.Name, string(encoded)).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert column: %w", err)
	}

	column.ID = id
	column.IsActive = true
	return id, nil
}

// GetActive returns an active column without its indicator values.
func (r *ColumnRepo) GetActive(ctx context.Context, id int64) (*domain.Column, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`
		SELECT id, name, values_json, is_active
		FROM report_columns
		WHERE id = ? AND is_active = TRUE`)

	var row columnRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get column: %w", err)
	}
	return row.toDomain()
}

// ListActiveByReport returns the report's active columns in upload order.
func (r *ColumnRepo) ListActiveByReport(ctx context.Context, reportID int64) ([]domain.Column, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`
		SELECT c.id, c.name, c.values_json, c.is_active
		FROM report_columns c
		JOIN report_column_links l ON l.column_id = c.id
		WHERE l.report_id = ? AND c.is_active = TRUE
		ORDER BY l.position`)

	var rows []columnRow
	if err := r.db.SelectContext(ctx, &rows, query, reportID); err != nil {
		return nil, fmt.Errorf("failed to list columns of report %d: %w", reportID, err)
	}

	out := make([]domain.Column, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

// BelongsToReport reports whether the column is linked to the report.
func (r *ColumnRepo) BelongsToReport(ctx context.Context, reportID, columnID int64) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`SELECT COUNT(*) FROM report_column_links WHERE report_id = ? AND column_id = ?`)

	var n int
	if err := r.db.GetContext(ctx, &n, query, reportID, columnID); err != nil {
		return false, fmt.Errorf("failed to check column link: %w", err)
	}
	return n > 0, nil
}

// Deactivate soft-deletes an active column and every indicator value it owns.
func (r *ColumnRepo) Deactivate(ctx context.Context, id int64) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE report_columns SET is_active = FALSE WHERE id = ? AND is_active = TRUE`), id)
		if err != nil {
			return fmt.Errorf("failed to deactivate column: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return deactivateColumnValues(ctx, tx, id)
	})
}

func deactivateColumnValues(ctx context.Context, tx *sqlx.Tx, columnID int64) error {
	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE indicator_values SET is_active = FALSE WHERE column_id = ? AND is_active = TRUE`), columnID); err != nil {
		return fmt.Errorf("failed to deactivate indicator values of column %d: %w", columnID, err)
	}
	return nil
}
