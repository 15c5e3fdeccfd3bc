package service

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/repository"
	apperrors "github.com/spec-kit/announce-service/pkg/util/errorutil"
)

// UserService manages the people allowed to create and decide tickets.
type UserService struct {
	users repository.UserRepository
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// UserCreateInput describes a new user.
type UserCreateInput struct {
	UserID    int64
	Name      string
	Admin     bool
	Whitelist bool
}

// Create adds a user keyed by the external user id.
func (s *UserService) Create(ctx context.Context, input UserCreateInput) (*domain.User, error) {
	if input.UserID == 0 {
		return nil, apperrors.NewInvalidArgument("user_id is required", nil)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewInvalidArgument("name is required", nil)
	}
	now := timeNow()
	user := &domain.User{
		UserID:    input.UserID,
		Name:      name,
		Admin:     input.Admin,
		Whitelist: input.Whitelist,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "user", map[string]any{"user_id": input.UserID})
	}
	return user, nil
}

// Get loads a single user or fails with NotFound.
func (s *UserService) Get(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user", map[string]any{"user_id": userID})
	}
	return user, nil
}

// Find returns the user as a one-element list, or an empty list.
func (s *UserService) Find(ctx context.Context, userID int64) ([]domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return []domain.User{}, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return []domain.User{*user}, nil
}

// List returns users matching the filter.
func (s *UserService) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	filter.Limit = listLimit(filter.Limit)
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}

// Update changes permission bits or the display name.
func (s *UserService) Update(ctx context.Context, userID int64, patch domain.UserPatch) (*domain.User, error) {
	if patch.IsEmpty() {
		return nil, apperrors.NewInvalidArgument("no fields to update", nil)
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperrors.NewInvalidArgument("name must not be empty", nil)
		}
		patch.Name = &name
	}
	user, err := s.users.Update(ctx, userID, patch)
	if err != nil {
		return nil, mapRepoError(err, "user", map[string]any{"user_id": userID})
	}
	return user, nil
}

// Delete removes the user. It reports whether anything was removed.
func (s *UserService) Delete(ctx context.Context, userID int64) (bool, error) {
	deleted, err := s.users.Delete(ctx, userID)
	if err != nil {
		return false, apperrors.NewInternalError(err)
	}
	return deleted, nil
}

// IsAdmin reports whether the user may approve or reject tickets. Unknown
// users are not admins.
func (s *UserService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	user, err := s.lookup(ctx, userID)
	if err != nil || user == nil {
		return false, err
	}
	return user.Admin, nil
}

// InWhitelist reports whether the user may create tickets.
func (s *UserService) InWhitelist(ctx context.Context, userID int64) (bool, error) {
	user, err := s.lookup(ctx, userID)
	if err != nil || user == nil {
		return false, err
	}
	return user.Whitelist, nil
}

func (s *UserService) lookup(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}
