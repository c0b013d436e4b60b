package card

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/cardservice/internal/apperrors"
	"github.com/nkiryanov/cardservice/internal/cardnumber"
	"github.com/nkiryanov/cardservice/internal/models"
	"github.com/nkiryanov/cardservice/internal/repository"
	"github.com/nkiryanov/cardservice/internal/repository/postgres"
	"github.com/nkiryanov/cardservice/internal/testutil"
)

// fixedEncoder always produces the same token, so every issued number collides
type fixedEncoder struct{ token string }

func (e fixedEncoder) Encode(string) string { return e.token }

func createUser(t *testing.T, storage repository.Storage, username string) models.User {
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

func createCard(t *testing.T, storage repository.Storage, userID uuid.UUID, token string, status models.CardStatus) models.Card {
	t.Helper()

	card, err := storage.Card().CreateCard(t.Context(), repository.CreateCardParams{
		NumberToken: token,
		Owner:       "Ivanov Ivan Ivanovich",
		Status:      status,
		ExpiryDate:  time.Now().AddDate(4, 0, 0),
		Balance:     decimal.Zero,
		UserID:      userID,
	})
	require.NoError(t, err)
	return card
}

func Test_CardService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	encoder, err := cardnumber.NewEncoder("test-secret")
	require.NoError(t, err)

	// Begin new db transaction and create new CardService over it
	// Rollback transaction when test stops
	withTx := func(t *testing.T, fn func(s *CardService, storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			fn(NewService(encoder, storage), storage)
		})
	}

	t.Run("IssueCard", func(t *testing.T) {
		t.Run("issues active zero balance card", func(t *testing.T) {
			withTx(t, func(s *CardService, storage repository.Storage) {
				user := createUser(t, storage, "holder")

				card, err := s.IssueCard(t.Context(), user.ID, "")

				require.NoError(t, err)
				assert.Equal(t, models.CardStatusActive, card.Status)
				assert.True(t, card.Balance.IsZero())
				assert.Equal(t, "Ivanov Ivan Ivanovich", card.Owner, "owner should default to user's full name")
				assert.Equal(t, user.ID, card.UserID)
				assert.NotEmpty(t, card.NumberToken)

				wantExpiry := time.Date(time.Now().Year()+4, time.Now().Month(), 1, 0, 0, 0, 0, time.UTC)
				assert.Equal(t, wantExpiry.Year(), card.ExpiryDate.Year())
				assert.Equal(t, wantExpiry.Month(), card.ExpiryDate.Month())
				assert.Equal(t, 1, card.ExpiryDate.Day(), "expiry should be normalized to first of month")
			})
		})

		t.Run("owner override", func(t *testing.T) {
			withTx(t, func(s *CardService, storage repository.Storage) {
				user := createUser(t, storage, "holder")

				card, err := s.IssueCard(t.Context(), user.ID, "Petrov Petr Petrovich")

				require.NoError(t, err)
				assert.Equal(t, "Petrov Petr Petrovich", card.Owner)
			})
		})

		t.Run("unknown user", func(t *testing.T) {
			withTx(t, func(s *CardService, _ repository.Storage) {
				_, err := s.IssueCard(t.Context(), uuid.New(), "")

				assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
			})
		})

		t.Run("gives up when tokens keep colliding", func(t *testing.T) {
			// Needs real single-statement transactions for the retry
			// loop, so runs on the pool and cleans up after itself
			storage := postgres.NewStorage(pg.Pool)
			s := NewService(fixedEncoder{token: "always-the-same"}, storage)

			user := createUser(t, storage, "collider")
			t.Cleanup(func() {
				_ = storage.User().DeleteUser(context.Background(), user.ID)
			})

			_, err := s.IssueCard(t.Context(), user.ID, "")
			require.NoError(t, err, "first issue takes the token")

			_, err = s.IssueCard(t.Context(), user.ID, "")
			assert.ErrorIs(t, err, apperrors.ErrCardNumberExhausted)
		})
	})

	t.Run("RequestBlock", func(t *testing.T) {
		t.Run("owner blocks own card", func(t *testing.T) {
			withTx(t, func(s *CardService, storage repository.Storage) {
				user := createUser(t, storage, "holder")
				card := createCard(t, storage, user.ID, "token-1", models.CardStatusActive)

				blocked, err := s.RequestBlock(t.Context(), card.ID, models.PrincipalFromUser(user))

				require.NoError(t, err)
				assert.Equal(t, models.CardStatusBlocked, blocked.Status)

				ops, err := storage.Operation().ListByCard(t.Context(), card.ID)
				require.NoError(t, err)
				require.Len(t, ops, 1)
				assert.Equal(t, models.OperationBlock, ops[0].Type)
				assert.Equal(t, "Card blocked by user request", ops[0].Description)
			})
		})

		t.Run("blocking blocked card is no-op", func(t *testing.T) {
			withTx(t, func(s *CardService, storage repository.Storage) {
				user := createUser(t, storage, "holder")
				card := createCard(t, storage, user.ID, "token-1", models.CardStatusBlocked)

				got, err := s.RequestBlock(t.Context(), card.ID, models.PrincipalFromUser(user))

				require.NoError(t, err)
				assert.Equal(t, models.CardStatusBlocked, got.Status)

				ops, err := storage.Operation().ListByCard(t.Context(), card.ID)
				require.NoError(t, err)
				assert.Empty(t, ops, "no-op should leave no ledger entry")
			})
		})

		t.Run("expired card can't be blocked", func(t *testing.T) {
			withTx(t, func(s *CardService, storage repository.Storage) {
				user := createUser(t, storage, "holder")
				card := createCard(t, storage, user.ID, "token-1", models.CardStatusExpired)

				_, err := s.RequestBlock(t.Context(), card.ID, models.PrincipalFromUser(user))

				assert.ErrorIs(t, err, apperrors.ErrBlockExpiredCard)
			})
		})

		t.Run("other user's card is forbidden", func(t *testing.T) {
			withTx(t, func(s *CardService, storage repository.Storage) {
				owner := createUser(t, storage, "owner")
				stranger := createUser(t, storage, "stranger")
				card := createCard(t, storage, owner.ID, "token-1", models.CardStatusActive)

				_, err := s.RequestBlock(t.Context(), card.ID, models.PrincipalFromUser(stranger))

				assert.ErrorIs(t, err, apperrors.ErrBlockOtherUsersCard)
			})
		})

		t.Run("admin may block anyone's card", func(t *testing.T) {
			withTx(t, func(s *CardService, storage repository.Storage) {
				owner := createUser(t, storage, "owner")
				card := createCard(t, storage, owner.ID, "token-1", models.CardStatusActive)

				admin := models.Principal{IsAdmin: true, UserID: uuid.New()}
				blocked, err := s.RequestBlock(t.Context(), card.ID, admin)

				require.NoError(t, err)
				assert.Equal(t, models.CardStatusBlocked, blocked.Status)
			})
		})

		t.Run("unknown card", func(t *testing.T) {
			withTx(t, func(s *CardService, storage repository.Storage) {
				user := createUser(t, storage, "holder")

				_, err := s.RequestBlock(t.Context(), uuid.New(), models.PrincipalFromUser(user))

				assert.ErrorIs(t, err, apperrors.ErrCardNotFound)
			})
		})
	})

	t.Run("RequestUnblock", func(t *testing.T) {
		t.Run("owner unblocks own card", func(t *testing.T) {
			withTx(t, func(s *CardService, storage repository.Storage) {
				user := createUser(t, storage, "holder")
				card := createCard(t, storage, user.ID, "token-1", models.CardStatusBlocked)

				active, err := s.RequestUnblock(t.Context(), card.ID, models.PrincipalFromUser(user))

				require.NoError(t, err)
				assert.Equal(t, models.CardStatusActive, active.Status)

				ops, err := storage.Operation().ListByCard(t.Context(), card.ID)
				require.NoError(t, err)
				require.Len(t, ops, 1)
				assert.Equal(t, models.OperationUnblock, ops[0].Type)
			})
		})

		t.Run("unblocking active card is no-op", func(t *testing.T) {
			withTx(t, func(s *CardService, storage repository.Storage) {
				user := createUser(t, storage, "holder")
				card := createCard(t, storage, user.ID, "token-1", models.CardStatusActive)

				got, err := s.RequestUnblock(t.Context(), card.ID, models.PrincipalFromUser(user))

				require.NoError(t, err)
				assert.Equal(t, models.CardStatusActive, got.Status)

				ops, err := storage.Operation().ListByCard(t.Context(), card.ID)
				require.NoError(t, err)
				assert.Empty(t, ops)
			})
		})

		t.Run("expired card stays expired", func(t *testing.T) {
			withTx(t, func(s *CardService, storage repository.Storage) {
				user := createUser(t, storage, "holder")
				card := createCard(t, storage, user.ID, "token-1", models.CardStatusExpired)

				_, err := s.RequestUnblock(t.Context(), card.ID, models.PrincipalFromUser(user))

				assert.ErrorIs(t, err, apperrors.ErrActivateExpiredCard)
			})
		})

		t.Run("other user's card is forbidden", func(t *testing.T) {
			withTx(t, func(s *CardService, storage repository.Storage) {
				owner := createUser(t, storage, "owner")
				stranger := createUser(t, storage, "stranger")
				card := createCard(t, storage, owner.ID, "token-1", models.CardStatusBlocked)

				_, err := s.RequestUnblock(t.Context(), card.ID, models.PrincipalFromUser(stranger))

				assert.ErrorIs(t, err, apperrors.ErrUnblockOtherUsersCard)
			})
		})
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		t.Run("admin override ignores no-op and ownership rules", func(t *testing.T) {
			withTx(t, func(s *CardService, storage repository.Storage) {
				user := createUser(t, storage, "holder")
				card := createCard(t, storage, user.ID, "token-1", models.CardStatusActive)

				expired, err := s.UpdateStatus(t.Context(), card.ID, models.CardStatusExpired)
				require.NoError(t, err)
				assert.Equal(t, models.CardStatusExpired, expired.Status)

				// Expired cards may still be blocked administratively
				blocked, err := s.UpdateStatus(t.Context(), card.ID, models.CardStatusBlocked)
				require.NoError(t, err)
				assert.Equal(t, models.CardStatusBlocked, blocked.Status)

				ops, err := storage.Operation().ListByCard(t.Context(), card.ID)
				require.NoError(t, err)
				assert.Empty(t, ops, "administrative override leaves no ledger entries")
			})
		})

		t.Run("expired card can't be activated", func(t *testing.T) {
			withTx(t, func(s *CardService, storage repository.Storage) {
				user := createUser(t, storage, "holder")
				card := createCard(t, storage, user.ID, "token-1", models.CardStatusExpired)

				_, err := s.UpdateStatus(t.Context(), card.ID, models.CardStatusActive)

				assert.ErrorIs(t, err, apperrors.ErrActivateExpiredCard)
			})
		})

		t.Run("concurrent unblock can't resurrect expiring card", func(t *testing.T) {
			// Expiring a card and unblocking it race on the same row.
			// Whoever wins, the card must end up EXPIRED: either the
			// unblock lands first and gets expired over, or it runs
			// second and hits the expired-activation guard. Needs real
			// concurrent transactions, so runs on the pool.
			storage := postgres.NewStorage(pg.Pool)
			s := NewService(encoder, storage)

			user := createUser(t, storage, "racer")
			t.Cleanup(func() {
				_ = storage.User().DeleteUser(context.Background(), user.ID)
			})
			principal := models.PrincipalFromUser(user)

			for i := 0; i < 20; i++ {
				card := createCard(t, storage, user.ID, fmt.Sprintf("race-token-%d", i), models.CardStatusBlocked)

				var wg sync.WaitGroup
				var unblockErr error
				wg.Add(2)
				go func() {
					defer wg.Done()
					_, err := s.UpdateStatus(t.Context(), card.ID, models.CardStatusExpired)
					assert.NoError(t, err)
				}()
				go func() {
					defer wg.Done()
					_, unblockErr = s.RequestUnblock(t.Context(), card.ID, principal)
				}()
				wg.Wait()

				got, err := storage.Card().GetCard(t.Context(), card.ID)
				require.NoError(t, err)
				require.Equal(t, models.CardStatusExpired, got.Status, "no interleaving may leave the card non-expired")
				if unblockErr != nil {
					assert.ErrorIs(t, unblockErr, apperrors.ErrActivateExpiredCard)
				}
			}
		})
	})

	t.Run("GetBalance", func(t *testing.T) {
		withTx(t, func(s *CardService, storage repository.Storage) {
			owner := createUser(t, storage, "owner")
			stranger := createUser(t, storage, "stranger")
			card := createCard(t, storage, owner.ID, "token-1", models.CardStatusActive)

			balance, err := s.GetBalance(t.Context(), card.ID, models.PrincipalFromUser(owner))
			require.NoError(t, err)
			assert.True(t, balance.IsZero())

			_, err = s.GetBalance(t.Context(), card.ID, models.PrincipalFromUser(stranger))
			assert.ErrorIs(t, err, apperrors.ErrBalanceAccessDenied)

			admin := models.Principal{IsAdmin: true, UserID: uuid.New()}
			_, err = s.GetBalance(t.Context(), card.ID, admin)
			assert.NoError(t, err, "admin sees any balance")
		})
	})

	t.Run("ListUserCards", func(t *testing.T) {
		withTx(t, func(s *CardService, storage repository.Storage) {
			owner := createUser(t, storage, "owner")
			stranger := createUser(t, storage, "stranger")
			createCard(t, storage, owner.ID, "token-1", models.CardStatusActive)
			createCard(t, storage, owner.ID, "token-2", models.CardStatusBlocked)

			cards, total, err := s.ListUserCards(t.Context(), owner.ID, models.PrincipalFromUser(owner), repository.SearchCardsParams{Limit: 10})
			require.NoError(t, err)
			assert.Equal(t, int64(2), total)
			assert.Len(t, cards, 2)

			_, _, err = s.ListUserCards(t.Context(), owner.ID, models.PrincipalFromUser(stranger), repository.SearchCardsParams{Limit: 10})
			assert.ErrorIs(t, err, apperrors.ErrCardsAccessDenied)
		})
	})

	t.Run("ListOperations", func(t *testing.T) {
		withTx(t, func(s *CardService, storage repository.Storage) {
			owner := createUser(t, storage, "owner")
			stranger := createUser(t, storage, "stranger")
			card := createCard(t, storage, owner.ID, "token-1", models.CardStatusActive)

			_, err := s.RequestBlock(t.Context(), card.ID, models.PrincipalFromUser(owner))
			require.NoError(t, err)

			ops, err := s.ListOperations(t.Context(), card.ID, models.PrincipalFromUser(owner))
			require.NoError(t, err)
			require.Len(t, ops, 1)

			_, err = s.ListOperations(t.Context(), card.ID, models.PrincipalFromUser(stranger))
			assert.ErrorIs(t, err, apperrors.ErrCardsAccessDenied)
		})
	})
}
