package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/validation"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// UserService implements admin user management. Callers are gated to the
// admin role at the router.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
	logger     *zap.Logger
}

// CreateUserInput describes an admin-created account.
type CreateUserInput struct {
	Name       string
	Email      string
	Password   string
	Role       domain.Role
	Department *domain.Department
}

// UpdateUserInput is a partial update; nil fields are left unchanged.
type UpdateUserInput struct {
	Name       *string
	Email      *string
	Role       *domain.Role
	Department *domain.Department
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, bcryptCost int, logger *zap.Logger) *UserService {
	return &UserService{users: users, bcryptCost: bcryptCost, logger: logger}
}

// List returns every user, newest first.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}

// Stats counts users by role.
func (s *UserService) Stats(ctx context.Context) (domain.UserStats, error) {
	stats, err := s.users.Stats(ctx)
	if err != nil {
		return stats, apperrors.NewInternalError(err)
	}
	return stats, nil
}

// Create adds a user with any role.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if name == "" || email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("Email, password, and name are required", nil)
	}
	if err := checkPasswordLength(input.Password); err != nil {
		return nil, err
	}
	if !validEmail(email) {
		return nil, apperrors.NewValidationError("Invalid email format", nil)
	}
	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if err := validateRoleDepartment(role, input.Department); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Department:   agentDepartment(role, input.Department),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("Email already registered", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Update applies a partial update and re-checks the agent department rule
// against the resulting user.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "User")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("Name cannot be empty", nil)
		}
		user.Name = name
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if !validEmail(email) {
			return nil, apperrors.NewValidationError("Invalid email format", nil)
		}
		user.Email = email
	}
	if input.Role != nil {
		user.Role = *input.Role
	}
	if input.Department != nil {
		dept := *input.Department
		user.Department = &dept
	}
	if err := validateRoleDepartment(user.Role, user.Department); err != nil {
		return nil, err
	}
	user.Department = agentDepartment(user.Role, user.Department)

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("Email already registered", nil)
		}
		return nil, mapRepoError(err, "User")
	}
	return user, nil
}

// Delete removes a user permanently.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return mapRepoError(err, "User")
	}
	s.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}

func validateRoleDepartment(role domain.Role, dept *domain.Department) error {
	if !role.Valid() {
		return apperrors.NewValidationError("Invalid role. Must be one of: user, agent, admin", nil)
	}
	if dept != nil && !dept.Valid() {
		return apperrors.NewValidationError("Invalid department. Must be one of: IT, HR, Admin", nil)
	}
	if role == domain.RoleAgent && dept == nil {
		return apperrors.NewValidationError("Department is required for agents", nil)
	}
	return nil
}

// agentDepartment drops the department of non-agents.
func agentDepartment(role domain.Role, dept *domain.Department) *domain.Department {
	if role != domain.RoleAgent {
		return nil
	}
	return dept
}

func validEmail(email string) bool {
	return validation.Email(email)
}
