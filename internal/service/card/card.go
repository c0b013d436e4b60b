package card

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardservice/internal/apperrors"
	"github.com/nkiryanov/cardservice/internal/cardnumber"
	"github.com/nkiryanov/cardservice/internal/models"
	"github.com/nkiryanov/cardservice/internal/repository"
)

// How many fresh numbers issuance tries before giving up with a conflict
const maxNumberAttempts = 10

// Cards live this long from issue date
const cardLifetimeYears = 4

// NumberEncoder derives the unique lookup token for a plaintext card number
type NumberEncoder interface {
	Encode(plain string) string
}

// CardService guards every card status transition. Nothing else in the
// service is allowed to flip a card's status.
type CardService struct {
	encoder NumberEncoder

	// Repository to access long term data
	storage repository.Storage
}

func NewService(encoder NumberEncoder, storage repository.Storage) *CardService {
	return &CardService{
		encoder: encoder,
		storage: storage,
	}
}

// RequestBlock is the self-service block path.
// Non-admin callers may only block their own cards. Blocking an already
// blocked card is a no-op, blocking an expired card is rejected.
func (s *CardService) RequestBlock(ctx context.Context, cardID uuid.UUID, principal models.Principal) (models.Card, error) {
	var card models.Card

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		// Lock the row: the guards below must run against a state no
		// concurrent status update can change before our write lands.
		locked, err := storage.Card().GetCardsForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		card = locked[0]

		if !principal.IsAdmin && card.UserID != principal.UserID {
			return apperrors.ErrBlockOtherUsersCard
		}

		switch card.Status {
		case models.CardStatusBlocked:
			// Already blocked: idempotent no-op, no ledger entry
			return nil
		case models.CardStatusExpired:
			return apperrors.ErrBlockExpiredCard
		}

		card, err = storage.Card().UpdateStatus(ctx, cardID, models.CardStatusBlocked)
		if err != nil {
			return err
		}

		_, err = storage.Operation().Append(ctx, repository.AppendOperationParams{
			CardID:      card.ID,
			Type:        models.OperationBlock,
			Amount:      decimal.Zero,
			Description: "Card blocked by user request",
		})
		return err
	})
	if err != nil {
		return models.Card{}, err
	}

	return card, nil
}

// RequestUnblock is the self-service unblock path.
// Expired cards can never be made active again, whoever asks.
func (s *CardService) RequestUnblock(ctx context.Context, cardID uuid.UUID, principal models.Principal) (models.Card, error) {
	var card models.Card

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		locked, err := storage.Card().GetCardsForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		card = locked[0]

		if !principal.IsAdmin && card.UserID != principal.UserID {
			return apperrors.ErrUnblockOtherUsersCard
		}

		switch card.Status {
		case models.CardStatusExpired:
			return apperrors.ErrActivateExpiredCard
		case models.CardStatusActive:
			// Already active: idempotent no-op, no ledger entry
			return nil
		}

		card, err = storage.Card().UpdateStatus(ctx, cardID, models.CardStatusActive)
		if err != nil {
			return err
		}

		_, err = storage.Operation().Append(ctx, repository.AppendOperationParams{
			CardID:      card.ID,
			Type:        models.OperationUnblock,
			Amount:      decimal.Zero,
			Description: "Card unblocked by user request",
		})
		return err
	})
	if err != nil {
		return models.Card{}, err
	}

	return card, nil
}

// UpdateStatus is the administrative override. It skips ownership and
// no-op rules and is the only way to mark a card EXPIRED. The single
// guard is that an expired card can't be made active.
func (s *CardService) UpdateStatus(ctx context.Context, cardID uuid.UUID, status models.CardStatus) (models.Card, error) {
	var card models.Card

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		locked, err := storage.Card().GetCardsForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		card = locked[0]

		if card.Status == models.CardStatusExpired && status == models.CardStatusActive {
			return apperrors.ErrActivateExpiredCard
		}

		card, err = storage.Card().UpdateStatus(ctx, cardID, status)
		return err
	})
	if err != nil {
		return models.Card{}, err
	}

	return card, nil
}

// IssueCard creates a card for the user: random 16-digit number, owner
// name from the user profile unless overridden, expiry four years out
// normalized to the first of the month, ACTIVE and zero balance.
//
// The encoded number must be unique. The insert is retried with fresh
// numbers a bounded number of times, then the whole request is given up
// with apperrors.ErrCardNumberExhausted so the caller may retry.
func (s *CardService) IssueCard(ctx context.Context, userID uuid.UUID, ownerOverride string) (models.Card, error) {
	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return models.Card{}, err
	}

	owner := strings.TrimSpace(ownerOverride)
	if owner == "" {
		owner = user.FullName
	}

	now := time.Now()
	expiry := time.Date(now.Year()+cardLifetimeYears, now.Month(), 1, 0, 0, 0, 0, time.UTC)

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := cardnumber.Generate()
		if err != nil {
			return models.Card{}, err
		}

		card, err := s.storage.Card().CreateCard(ctx, repository.CreateCardParams{
			NumberToken: s.encoder.Encode(number),
			Owner:       owner,
			Status:      models.CardStatusActive,
			ExpiryDate:  expiry,
			Balance:     decimal.Zero,
			UserID:      user.ID,
		})

		switch {
		case err == nil:
			return card, nil
		case errors.Is(err, apperrors.ErrCardNumberTaken):
			continue
		default:
			return models.Card{}, fmt.Errorf("can't issue card. Err: %w", err)
		}
	}

	return models.Card{}, apperrors.ErrCardNumberExhausted
}

// GetBalance returns the card balance. Non-admin callers may only view
// balances of their own cards.
func (s *CardService) GetBalance(ctx context.Context, cardID uuid.UUID, principal models.Principal) (decimal.Decimal, error) {
	card, err := s.storage.Card().GetCard(ctx, cardID)
	if err != nil {
		return decimal.Zero, err
	}

	if !principal.IsAdmin && card.UserID != principal.UserID {
		return decimal.Zero, apperrors.ErrBalanceAccessDenied
	}

	return card.Balance, nil
}

// ListUserCards lists one user's cards with filters and pagination.
// Non-admin callers may only list their own cards.
func (s *CardService) ListUserCards(ctx context.Context, userID uuid.UUID, principal models.Principal, arg repository.SearchCardsParams) ([]models.Card, int64, error) {
	if !principal.IsAdmin && userID != principal.UserID {
		return nil, 0, apperrors.ErrCardsAccessDenied
	}

	arg.UserID = userID
	return s.storage.Card().SearchCards(ctx, arg)
}

// ListAllCards lists every card. The caller is expected to be an
// administrator, the role gate lives in the HTTP layer.
func (s *CardService) ListAllCards(ctx context.Context, arg repository.SearchCardsParams) ([]models.Card, int64, error) {
	arg.UserID = uuid.Nil
	return s.storage.Card().SearchCards(ctx, arg)
}

// ListOperations returns the card's audit trail, newest first.
// Non-admin callers may only view their own cards' history.
func (s *CardService) ListOperations(ctx context.Context, cardID uuid.UUID, principal models.Principal) ([]models.Operation, error) {
	card, err := s.storage.Card().GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	if !principal.IsAdmin && card.UserID != principal.UserID {
		return nil, apperrors.ErrCardsAccessDenied
	}

	return s.storage.Operation().ListByCard(ctx, card.ID)
}
