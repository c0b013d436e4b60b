package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardservice/internal/apperrors"
	"github.com/nkiryanov/cardservice/internal/models"
	"github.com/nkiryanov/cardservice/internal/repository"
)

type CardRepo struct {
	db DBTX
}

const createCard = `-- name: CreateCard
INSERT INTO cards (id, number_token, owner, status, expiry_date, balance, user_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, number_token, owner, status, expiry_date, balance, user_id
`

func (r *CardRepo) CreateCard(ctx context.Context, arg repository.CreateCardParams) (models.Card, error) {
	rows, _ := r.db.Query(ctx, createCard,
		uuid.New(), arg.NumberToken, arg.Owner, string(arg.Status), arg.ExpiryDate, arg.Balance, arg.UserID,
	)
	card, err := pgx.CollectOneRow(rows, rowToCard)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return card, apperrors.ErrCardNumberTaken
		}

		return card, fmt.Errorf("db error: %w", err)
	}

	return card, nil
}

const getCard = `-- name: GetCard
SELECT id, created_at, number_token, owner, status, expiry_date, balance, user_id FROM cards
WHERE id = $1
`

func (r *CardRepo) GetCard(ctx context.Context, cardID uuid.UUID) (models.Card, error) {
	rows, _ := r.db.Query(ctx, getCard, cardID)
	card, err := pgx.CollectOneRow(rows, rowToCard)

	switch {
	case err == nil:
		return card, nil
	case errors.Is(err, pgx.ErrNoRows):
		return card, apperrors.ErrCardNotFound
	default:
		return card, fmt.Errorf("db error: %w", err)
	}
}

const getCardByToken = `-- name: GetCardByToken
SELECT id, created_at, number_token, owner, status, expiry_date, balance, user_id FROM cards
WHERE number_token = $1
`

func (r *CardRepo) GetCardByToken(ctx context.Context, token string) (models.Card, error) {
	rows, _ := r.db.Query(ctx, getCardByToken, token)
	card, err := pgx.CollectOneRow(rows, rowToCard)

	switch {
	case err == nil:
		return card, nil
	case errors.Is(err, pgx.ErrNoRows):
		return card, apperrors.ErrCardNotFound
	default:
		return card, fmt.Errorf("db error: %w", err)
	}
}

// Rows are locked in ascending id order so that two transactions locking
// the same pair of cards always take the locks in the same order.
const getCardsForUpdate = `-- name: GetCardsForUpdate
SELECT id, created_at, number_token, owner, status, expiry_date, balance, user_id FROM cards
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE
`

func (r *CardRepo) GetCardsForUpdate(ctx context.Context, cardIDs ...uuid.UUID) ([]models.Card, error) {
	rows, _ := r.db.Query(ctx, getCardsForUpdate, cardIDs)
	cards, err := pgx.CollectRows(rows, rowToCard)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	if len(cards) != len(cardIDs) {
		return nil, apperrors.ErrCardNotFound
	}

	return cards, nil
}

const updateCardStatus = `-- name: UpdateCardStatus
UPDATE cards
SET status = $2
WHERE id = $1
RETURNING id, created_at, number_token, owner, status, expiry_date, balance, user_id
`

func (r *CardRepo) UpdateStatus(ctx context.Context, cardID uuid.UUID, status models.CardStatus) (models.Card, error) {
	rows, _ := r.db.Query(ctx, updateCardStatus, cardID, string(status))
	card, err := pgx.CollectOneRow(rows, rowToCard)

	switch {
	case err == nil:
		return card, nil
	case errors.Is(err, pgx.ErrNoRows):
		return card, apperrors.ErrCardNotFound
	default:
		return card, fmt.Errorf("db error: %w", err)
	}
}

const updateCardBalance = `-- name: UpdateCardBalance
UPDATE cards
SET balance = $2
WHERE id = $1
RETURNING id, created_at, number_token, owner, status, expiry_date, balance, user_id
`

func (r *CardRepo) UpdateBalance(ctx context.Context, cardID uuid.UUID, balance decimal.Decimal) (models.Card, error) {
	rows, _ := r.db.Query(ctx, updateCardBalance, cardID, balance)
	card, err := pgx.CollectOneRow(rows, rowToCard)

	switch {
	case err == nil:
		return card, nil
	case errors.Is(err, pgx.ErrNoRows):
		return card, apperrors.ErrCardNotFound
	default:
		return card, fmt.Errorf("db error: %w", err)
	}
}

const searchCards = `-- name: SearchCards
SELECT id, created_at, number_token, owner, status, expiry_date, balance, user_id,
       count(*) OVER() AS total
FROM cards
WHERE ($1::uuid IS NULL OR user_id = $1)
  AND ($2::text = '' OR status = $2)
  AND ($3::text = '' OR owner ILIKE '%' || $3 || '%')
ORDER BY created_at, id
LIMIT $4 OFFSET $5
`

func (r *CardRepo) SearchCards(ctx context.Context, arg repository.SearchCardsParams) ([]models.Card, int64, error) {
	var userID *uuid.UUID
	if arg.UserID != uuid.Nil {
		userID = &arg.UserID
	}

	var total int64
	rows, _ := r.db.Query(ctx, searchCards, userID, string(arg.Status), arg.Owner, arg.Limit, arg.Offset)
	cards, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Card, error) {
		var c models.Card
		var status string
		err := row.Scan(&c.ID, &c.CreatedAt, &c.NumberToken, &c.Owner, &status, &c.ExpiryDate, &c.Balance, &c.UserID, &total)
		if err != nil {
			return c, err
		}
		c.Status, err = models.ParseCardStatus(status)
		return c, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return cards, total, nil
}

func rowToCard(row pgx.CollectableRow) (models.Card, error) {
	var c models.Card
	var status string

	err := row.Scan(&c.ID, &c.CreatedAt, &c.NumberToken, &c.Owner, &status, &c.ExpiryDate, &c.Balance, &c.UserID)
	if err != nil {
		return c, err
	}

	// Reject unknown statuses at the store boundary
	c.Status, err = models.ParseCardStatus(status)
	return c, err
}
