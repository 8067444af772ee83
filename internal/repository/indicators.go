package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"datafit/pkg/contracts/domain"
)

type indicatorRow struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// IndicatorRepo reads the report indicator catalog.
type IndicatorRepo struct {
	base
}

// List returns the whole catalog in ascending id order.
func (r *IndicatorRepo) List(ctx context.Context) ([]domain.ReportIndicator, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []indicatorRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, name FROM report_indicators ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list report indicators: %w", err)
	}

	out := make([]domain.ReportIndicator, len(rows))
	for i, row := range rows {
		out[i] = domain.ReportIndicator{ID: row.ID, Name: row.Name}
	}
	return out, nil
}

// Get returns one catalog entry.
func (r *IndicatorRepo) Get(ctx context.Context, id int64) (*domain.ReportIndicator, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var row indicatorRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT id, name FROM report_indicators WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report indicator: %w", err)
	}
	return &domain.ReportIndicator{ID: row.ID, Name: row.Name}, nil
}

// Seed inserts the names that are not in the catalog yet and returns how many were added.
func (r *IndicatorRepo) Seed(ctx context.Context, names []string) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`INSERT INTO report_indicators (name) VALUES (?) ON CONFLICT (name) DO NOTHING`)

	added := 0
	for _, name := range names {
		res, err := r.db.ExecContext(ctx, query, name)
		if err != nil {
			return added, fmt.Errorf("failed to seed report indicator %q: %w", name, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}
	return added, nil
}
