package service

import (
	"errors"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// mapRepoError converts repository sentinels into API errors.
func mapRepoError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", nil)
	}
	return apperrors.NewInternalError(err)
}

func requireCaller(caller *domain.User) error {
	if caller == nil {
		return apperrors.NewUnauthorized("Authentication required")
	}
	return nil
}
