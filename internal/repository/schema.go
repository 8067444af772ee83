package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// schema is shared by both drivers; {{pk}} is replaced by the auto-increment
// primary key type.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS owners (
		id {{pk}},
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'customer',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS report_indicators (
		id {{pk}},
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS report_columns (
		id {{pk}},
		name TEXT NOT NULL,
		values_json TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS indicator_values (
		id {{pk}},
		column_id BIGINT NOT NULL REFERENCES report_columns(id),
		report_indicator_id BIGINT NOT NULL REFERENCES report_indicators(id),
		value DOUBLE PRECISION,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_indicator_values_column ON indicator_values(column_id)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id {{pk}},
		owner_id BIGINT NOT NULL REFERENCES owners(id),
		storage_link TEXT NOT NULL,
		uploaded_at BIGINT NOT NULL,
		fits_correlation_analysis BOOLEAN NOT NULL,
		fits_discriminant_analysis BOOLEAN NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_owner ON reports(owner_id, uploaded_at)`,
	`CREATE TABLE IF NOT EXISTS report_column_links (
		report_id BIGINT NOT NULL REFERENCES reports(id),
		column_id BIGINT NOT NULL REFERENCES report_columns(id),
		position INTEGER NOT NULL,
		PRIMARY KEY (report_id, column_id)
	)`,
}

func primaryKeyType(driver string) string {
	if driver == DriverPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// schemaStatements renders the schema for driver.
func schemaStatements(driver string) []string {
	pk := primaryKeyType(driver)
	stmts := make([]string, len(schema))
	for i, stmt := range schema {
		stmts[i] = strings.ReplaceAll(stmt, "{{pk}}", pk)
	}
	return stmts
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	b := base{db: s.db, timeout: s.timeout}
	return b.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range schemaStatements(s.driver) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return nil
	})
}
