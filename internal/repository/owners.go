package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"datafit/pkg/contracts/domain"
)

type ownerRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Email     string `db:"email"`
	Role      string `db:"role"`
	IsActive  bool   `db:"is_active"`
	CreatedAt int64  `db:"created_at"`
}

func (r ownerRow) toDomain() *domain.Owner {
	return &domain.Owner{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Role:      domain.Role(r.Role),
		IsActive:  r.IsActive,
		CreatedAt: fromUnixNano(r.CreatedAt),
	}
}

// OwnerRepo stores owner accounts.
type OwnerRepo struct {
	base
}

// Create inserts an active owner and returns its id.
func (r *OwnerRepo) Create(ctx context.Context, owner *domain.Owner) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = time.Now().UTC()
	}

	query := r.db.Rebind(`
		INSERT INTO owners (name, email, role, is_active, created_at)
		VALUES (?, ?, ?, TRUE, ?)
		RETURNING id`)

	var id int64
	if err := r.db.QueryRowxContext(ctx, query,
		owner.Name, owner.Email, string(owner.Role), owner.CreatedAt.UnixNano()).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert owner: %w", err)
	}

	owner.ID = id
	owner.IsActive = true
	return id, nil
}

// GetActive returns an active owner.
func (r *OwnerRepo) GetActive(ctx context.Context, id int64) (*domain.Owner, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`
		SELECT id, name, email, role, is_active, created_at
		FROM owners
		WHERE id = ? AND is_active = TRUE`)

	var row ownerRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}
	return row.toDomain(), nil
}
