package user

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/cardservice/internal/apperrors"
	"github.com/nkiryanov/cardservice/internal/models"
	"github.com/nkiryanov/cardservice/internal/repository"
	"github.com/nkiryanov/cardservice/internal/repository/postgres"
	"github.com/nkiryanov/cardservice/internal/testutil"
)

func Test_UserService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withTx := func(t *testing.T, fn func(s *UserService, storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			fn(NewService(storage), storage)
		})
	}

	createUser := func(t *testing.T, storage repository.Storage, username string) models.User {
		t.Helper()

		user, err := storage.User().CreateUser(t.Context(), repository.CreateUserParams{
			Username:       username,
			HashedPassword: "hashedpassword123",
			FullName:       "Ivanov Ivan Ivanovich",
			Role:           models.RoleUser,
		})
		require.NoError(t, err)
		return user
	}

	t.Run("list with card counts", func(t *testing.T) {
		withTx(t, func(s *UserService, storage repository.Storage) {
			user := createUser(t, storage, "counted")

			_, err := storage.Card().CreateCard(t.Context(), repository.CreateCardParams{
				NumberToken: "some-token",
				Owner:       user.FullName,
				Status:      models.CardStatusActive,
				ExpiryDate:  time.Now().AddDate(4, 0, 0),
				Balance:     decimal.Zero,
				UserID:      user.ID,
			})
			require.NoError(t, err)

			users, err := s.ListWithCardCounts(t.Context())
			require.NoError(t, err)
			require.Len(t, users, 1)
			assert.Equal(t, user.ID, users[0].ID)
			assert.Equal(t, int64(1), users[0].CardCount)
		})
	})

	t.Run("find by username", func(t *testing.T) {
		withTx(t, func(s *UserService, storage repository.Storage) {
			created := createUser(t, storage, "findable")

			got, err := s.FindByUsername(t.Context(), "findable")
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)

			_, err = s.FindByUsername(t.Context(), "missing")
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("delete", func(t *testing.T) {
		withTx(t, func(s *UserService, storage repository.Storage) {
			created := createUser(t, storage, "denied")

			err := s.Delete(t.Context(), created.ID)
			require.NoError(t, err)

			err = s.Delete(t.Context(), uuid.New())
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})
}
