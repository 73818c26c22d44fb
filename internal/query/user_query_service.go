package query

import (
	"context"

	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/models"
)

// UserQueryService reads user views from the Redis cache (with a store fallback).
type UserQueryService struct {
	readRepo *repository.UserReadRepository
	store    repository.Store
}

func NewUserQueryService(readRepo *repository.UserReadRepository, store repository.Store) *UserQueryService {
	return &UserQueryService{readRepo: readRepo, store: store}
}

func (s *UserQueryService) GetUser(ctx context.Context, q cqrs.GetUserQuery) (*models.UserView, error) {
	return s.readRepo.GetByID(ctx, q.UserID)
}

func (s *UserQueryService) ListUsers(ctx context.Context) ([]models.UserListItem, error) {
	return s.readRepo.List(ctx)
}

// GetUserIDByUsername resolves a principal name; apperrors.ErrUserNotFound means the
// principal is unknown.
func (s *UserQueryService) GetUserIDByUsername(ctx context.Context, username string) (int64, error) {
	user, err := s.store.Users().FindByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}
