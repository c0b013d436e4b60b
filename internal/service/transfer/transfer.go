package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardservice/internal/apperrors"
	"github.com/nkiryanov/cardservice/internal/logger"
	"github.com/nkiryanov/cardservice/internal/models"
	"github.com/nkiryanov/cardservice/internal/repository"
)

// NumberEncoder derives the unique lookup token for a plaintext card number
type NumberEncoder interface {
	Encode(plain string) string
}

// TransferService moves money between two cards of one user.
// It is the only mutator of card balances.
type TransferService struct {
	encoder NumberEncoder
	logger  logger.Logger

	// Repository to access long term data
	storage repository.Storage
}

func NewService(encoder NumberEncoder, storage repository.Storage, l logger.Logger) *TransferService {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &TransferService{
		encoder: encoder,
		logger:  l,
		storage: storage,
	}
}

// Transfer debits fromNumber and credits toNumber by amount, for cards
// that both belong to actingUserID.
//
// Preconditions, first failure wins:
//  1. a non-admin principal may act only as itself
//  2. both cards resolve by encoded number
//  3. both cards belong to actingUserID (even when an admin acts on the
//     user's behalf)
//  4. neither card is blocked, both are active
//  5. source balance covers the amount
//
// Balance updates, ledger entries and the transfer record commit in a
// single transaction: all of them or none. Card rows are locked for the
// duration in ascending id order.
func (s *TransferService) Transfer(
	ctx context.Context,
	principal models.Principal,
	actingUserID uuid.UUID,
	fromNumber string,
	toNumber string,
	amount decimal.Decimal,
) (models.Transfer, error) {
	if !principal.IsAdmin && principal.UserID != actingUserID {
		return models.Transfer{}, apperrors.ErrTransferAccessDenied
	}

	// Upstream validation rejects non-positive amounts already, re-check anyway
	if !amount.IsPositive() {
		return models.Transfer{}, apperrors.ErrNonPositiveAmount
	}

	fromToken := s.encoder.Encode(fromNumber)
	toToken := s.encoder.Encode(toNumber)
	if fromToken == toToken {
		return models.Transfer{}, apperrors.ErrSameCard
	}

	var transfer models.Transfer
	var pendingCreated bool

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		from, err := storage.Card().GetCardByToken(ctx, fromToken)
		if errors.Is(err, apperrors.ErrCardNotFound) {
			return apperrors.ErrSourceCardNotFound
		}
		if err != nil {
			return err
		}

		to, err := storage.Card().GetCardByToken(ctx, toToken)
		if errors.Is(err, apperrors.ErrCardNotFound) {
			return apperrors.ErrTargetCardNotFound
		}
		if err != nil {
			return err
		}

		// Re-read both rows under lock: every check below runs against
		// the state no concurrent transfer can change under us.
		locked, err := storage.Card().GetCardsForUpdate(ctx, from.ID, to.ID)
		if err != nil {
			return err
		}
		for _, c := range locked {
			switch c.ID {
			case from.ID:
				from = c
			case to.ID:
				to = c
			}
		}

		if from.UserID != actingUserID || to.UserID != actingUserID {
			return apperrors.ErrTransferNotOwnCards
		}

		if from.Status == models.CardStatusBlocked {
			return apperrors.ErrSourceCardBlocked
		}
		if to.Status == models.CardStatusBlocked {
			return apperrors.ErrTargetCardBlocked
		}
		if from.Status != models.CardStatusActive || to.Status != models.CardStatusActive {
			return apperrors.ErrCardsNotActive
		}

		if from.Balance.LessThan(amount) {
			return apperrors.ErrInsufficientFunds
		}

		transfer, err = storage.Transfer().CreateTransfer(ctx, repository.CreateTransferParams{
			FromCardID: from.ID,
			ToCardID:   to.ID,
			Amount:     amount,
		})
		if err != nil {
			return err
		}
		pendingCreated = true

		if _, err = storage.Card().UpdateBalance(ctx, from.ID, from.Balance.Sub(amount)); err != nil {
			return err
		}
		if _, err = storage.Card().UpdateBalance(ctx, to.ID, to.Balance.Add(amount)); err != nil {
			return err
		}

		_, err = storage.Operation().Append(ctx, repository.AppendOperationParams{
			CardID:      from.ID,
			Type:        models.OperationTransferOut,
			Amount:      amount,
			Description: "Transfer to card",
		})
		if err != nil {
			return err
		}

		_, err = storage.Operation().Append(ctx, repository.AppendOperationParams{
			CardID:      to.ID,
			Type:        models.OperationTransferIn,
			Amount:      amount,
			Description: "Transfer from card",
		})
		if err != nil {
			return err
		}

		transfer, err = storage.Transfer().UpdateStatus(ctx, transfer.ID, models.TransferSuccess)
		return err
	})
	if err != nil {
		// The transaction rolled back whole, so no partial balance
		// movement survives. If the failure happened after the pending
		// record existed, keep a FAILED transfer for the audit trail.
		// Best effort: the money is consistent either way.
		if pendingCreated {
			s.recordFailed(ctx, transfer)
		}
		return models.Transfer{}, err
	}

	return transfer, nil
}

func (s *TransferService) recordFailed(ctx context.Context, t models.Transfer) {
	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		failed, err := storage.Transfer().CreateTransfer(ctx, repository.CreateTransferParams{
			FromCardID: t.FromCardID,
			ToCardID:   t.ToCardID,
			Amount:     t.Amount,
		})
		if err != nil {
			return err
		}

		_, err = storage.Transfer().UpdateStatus(ctx, failed.ID, models.TransferFailed)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to record failed transfer", "error", fmt.Errorf("recording failed transfer: %w", err))
	}
}
