package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/cardservice/internal/models"
	"github.com/nkiryanov/cardservice/internal/repository"
)

// UserService covers the administrative user directory operations.
// Registration and login live in the auth service.
type UserService struct {
	// Repository to access long term data
	storage repository.Storage
}

func NewService(storage repository.Storage) *UserService {
	return &UserService{storage: storage}
}

func (s *UserService) ListWithCardCounts(ctx context.Context) ([]models.UserWithCardCount, error) {
	return s.storage.User().ListUsersWithCardCounts(ctx)
}

func (s *UserService) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return s.storage.User().GetUserByUsername(ctx, username)
}

func (s *UserService) Delete(ctx context.Context, userID uuid.UUID) error {
	return s.storage.User().DeleteUser(ctx, userID)
}
