package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "datafit/internal/errors"
	"datafit/pkg/contracts/domain"
)

// OwnerService creates and resolves owner accounts.
type OwnerService struct {
	owners   OwnerRepository
	validate *validator.Validate
	logger   *slog.Logger
}

// NewOwnerService creates an owner service.
func NewOwnerService(owners OwnerRepository, logger *slog.Logger) *OwnerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OwnerService{
		owners:   owners,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "owner_service")),
	}
}

// CreateOwner validates and stores a new active owner.
func (s *OwnerService) CreateOwner(ctx context.Context, name, email string, role domain.Role) (*domain.Owner, error) {
	owner := &domain.Owner{
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
		Role:  role,
	}
	if owner.Role == "" {
		owner.Role = domain.RoleCustomer
	}

	if err := s.validate.StructCtx(ctx, owner); err != nil {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("invalid owner: %v", err))
	}
	if _, err := s.owners.Create(ctx, owner); err != nil {
		return nil, apperrors.NewStorageError("failed to create owner", err)
	}

	s.logger.InfoContext(ctx, "owner created",
		slog.Int64("owner_id", owner.ID),
		slog.String("role", string(owner.Role)))
	return owner, nil
}

// GetOwner returns an active owner.
func (s *OwnerService) GetOwner(ctx context.Context, id int64) (*domain.Owner, error) {
	owner, err := s.owners.GetActive(ctx, id)
	if err != nil {
		return nil, fromRepo(err, fmt.Sprintf("owner %d", id), "failed to load owner")
	}
	return owner, nil
}
