package services

import (
	"errors"

	apperrors "datafit/internal/errors"
	"datafit/internal/repository"
)

// fromRepo maps a repository error to an AppError. A missing row becomes a
// NotFound for resource; anything else is a storage failure described by op.
func fromRepo(err error, resource, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(resource)
	}
	return apperrors.NewStorageError(op, err)
}
