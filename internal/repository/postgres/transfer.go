package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/cardservice/internal/apperrors"
	"github.com/nkiryanov/cardservice/internal/models"
	"github.com/nkiryanov/cardservice/internal/repository"
)

type TransferRepo struct {
	db DBTX
}

const createTransfer = `-- name: CreateTransfer
INSERT INTO transfers (id, from_card_id, to_card_id, amount, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, from_card_id, to_card_id, amount, status
`

func (r *TransferRepo) CreateTransfer(ctx context.Context, arg repository.CreateTransferParams) (models.Transfer, error) {
	rows, _ := r.db.Query(ctx, createTransfer, uuid.New(), arg.FromCardID, arg.ToCardID, arg.Amount, models.TransferPending)
	transfer, err := pgx.CollectOneRow(rows, rowToTransfer)
	if err != nil {
		return transfer, fmt.Errorf("db error: %w", err)
	}

	return transfer, nil
}

const updateTransferStatus = `-- name: UpdateTransferStatus
UPDATE transfers
SET status = $2
WHERE id = $1
RETURNING id, created_at, from_card_id, to_card_id, amount, status
`

func (r *TransferRepo) UpdateStatus(ctx context.Context, transferID uuid.UUID, status string) (models.Transfer, error) {
	rows, _ := r.db.Query(ctx, updateTransferStatus, transferID, status)
	transfer, err := pgx.CollectOneRow(rows, rowToTransfer)

	switch {
	case err == nil:
		return transfer, nil
	case errors.Is(err, pgx.ErrNoRows):
		return transfer, apperrors.ErrTransferNotFound
	default:
		return transfer, fmt.Errorf("db error: %w", err)
	}
}

const getTransfer = `-- name: GetTransfer
SELECT id, created_at, from_card_id, to_card_id, amount, status FROM transfers
WHERE id = $1
`

func (r *TransferRepo) GetTransfer(ctx context.Context, transferID uuid.UUID) (models.Transfer, error) {
	rows, _ := r.db.Query(ctx, getTransfer, transferID)
	transfer, err := pgx.CollectOneRow(rows, rowToTransfer)

	switch {
	case err == nil:
		return transfer, nil
	case errors.Is(err, pgx.ErrNoRows):
		return transfer, apperrors.ErrTransferNotFound
	default:
		return transfer, fmt.Errorf("db error: %w", err)
	}
}

func rowToTransfer(row pgx.CollectableRow) (models.Transfer, error) {
	var t models.Transfer
	err := row.Scan(&t.ID, &t.CreatedAt, &t.FromCardID, &t.ToCardID, &t.Amount, &t.Status)
	return t, err
}
