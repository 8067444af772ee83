package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"datafit/pkg/contracts/domain"
)

type reportRow struct {
	ID                       int64  `db:"id"`
	OwnerID                  int64  `db:"owner_id"`
	StorageLink              string `db:"storage_link"`
	UploadedAt               int64  `db:"uploaded_at"`
	FitsCorrelationAnalysis  bool   `db:"fits_correlation_analysis"`
	FitsDiscriminantAnalysis bool   `db:"fits_discriminant_analysis"`
	IsActive                 bool   `db:"is_active"`
}

func (r reportRow) toDomain() *domain.Report {
	return &domain.Report{
		ID:                       r.ID,
		OwnerID:                  r.OwnerID,
		StorageLink:              r.StorageLink,
		UploadedAt:               fromUnixNano(r.UploadedAt),
		Columns:                  []domain.Column{},
		FitsCorrelationAnalysis:  r.FitsCorrelationAnalysis,
		FitsDiscriminantAnalysis: r.FitsDiscriminantAnalysis,
		IsActive:                 r.IsActive,
	}
}

const selectReports = `
	SELECT id, owner_id, storage_link, uploaded_at,
	       fits_correlation_analysis, fits_discriminant_analysis, is_active
	FROM reports`

// ReportRepo stores reports and their ordered column references.
type ReportRepo struct {
	base
}

// Create inserts an active report together with its column links and returns its id.
func (r *ReportRepo) Create(ctx context.Context, report *domain.Report) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if report.UploadedAt.IsZero() {
		report.UploadedAt = time.Now().UTC()
	}

	var id int64
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			INSERT INTO reports (owner_id, storage_link, uploaded_at,
				fits_correlation_analysis, fits_discriminant_analysis, is_active)
			VALUES (?, ?, ?, ?, ?, TRUE)
			RETURNING id`)
		if err := tx.QueryRowxContext(ctx, query,
			report.OwnerID, report.StorageLink, report.UploadedAt.UnixNano(),
			report.FitsCorrelationAnalysis, report.FitsDiscriminantAnalysis).Scan(&id); err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}

		link := tx.Rebind(`INSERT INTO report_column_links (report_id, column_id, position) VALUES (?, ?, ?)`)
		for pos, columnID := range report.ColumnIDs() {
			if _, err := tx.ExecContext(ctx, link, id, columnID, pos); err != nil {
				return fmt.Errorf("failed to link column %d: %w", columnID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	report.ID = id
	report.IsActive = true
	return id, nil
}

// GetActive returns an active report without its columns.
func (r *ReportRepo) GetActive(ctx context.Context, id int64) (*domain.Report, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var row reportRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(selectReports+` WHERE id = ? AND is_active = TRUE`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return row.toDomain(), nil
}

// ListActiveByOwner returns the owner's active reports, newest first.
func (r *ReportRepo) ListActiveByOwner(ctx context.Context, ownerID int64) ([]domain.Report, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(selectReports + `
		WHERE owner_id = ? AND is_active = TRUE
		ORDER BY uploaded_at DESC, id DESC`)

	var rows []reportRow
	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list reports of owner %d: %w", ownerID, err)
	}

	out := make([]domain.Report, len(rows))
	for i, row := range rows {
		out[i] = *row.toDomain()
	}
	return out, nil
}

// Deactivate soft-deletes an active report, every column it references and
// every indicator value of those columns, in one transaction.
func (r *ReportRepo) Deactivate(ctx context.Context, id int64) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE reports SET is_active = FALSE WHERE id = ? AND is_active = TRUE`), id)
		if err != nil {
			return fmt.Errorf("failed to deactivate report: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		var columnIDs []int64
		if err := tx.SelectContext(ctx, &columnIDs,
			tx.Rebind(`SELECT column_id FROM report_column_links WHERE report_id = ? ORDER BY position`), id); err != nil {
			return fmt.Errorf("failed to list columns of report %d: %w", id, err)
		}

		for _, columnID := range columnIDs {
			if _, err := tx.ExecContext(ctx,
				tx.Rebind(`UPDATE report_columns SET is_active = FALSE WHERE id = ? AND is_active = TRUE`), columnID); err != nil {
				return fmt.Errorf("failed to deactivate column %d: %w", columnID, err)
			}
			if err := deactivateColumnValues(ctx, tx, columnID); err != nil {
				return err
			}
		}
		return nil
	})
}
