package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/cardservice/internal/models"
	"github.com/nkiryanov/cardservice/internal/repository"
)

// OperationRepo is the card audit trail. Append only: there is no
// update or delete on purpose.
type OperationRepo struct {
	db DBTX
}

const appendOperation = `-- name: AppendOperation
INSERT INTO operations (id, card_id, operation_type, amount, description)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, card_id, operation_type, amount, description
`

func (r *OperationRepo) Append(ctx context.Context, arg repository.AppendOperationParams) (models.Operation, error) {
	rows, _ := r.db.Query(ctx, appendOperation, uuid.New(), arg.CardID, arg.Type, arg.Amount, arg.Description)
	op, err := pgx.CollectOneRow(rows, rowToOperation)
	if err != nil {
		return op, fmt.Errorf("db error: %w", err)
	}

	return op, nil
}

const listOperationsByCard = `-- name: ListOperationsByCard
SELECT id, created_at, card_id, operation_type, amount, description FROM operations
WHERE card_id = $1
ORDER BY created_at DESC, id
`

func (r *OperationRepo) ListByCard(ctx context.Context, cardID uuid.UUID) ([]models.Operation, error) {
	rows, _ := r.db.Query(ctx, listOperationsByCard, cardID)
	ops, err := pgx.CollectRows(rows, rowToOperation)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ops, nil
}

func rowToOperation(row pgx.CollectableRow) (models.Operation, error) {
	var o models.Operation
	var description *string

	err := row.Scan(&o.ID, &o.CreatedAt, &o.CardID, &o.Type, &o.Amount, &description)
	if description != nil {
		o.Description = *description
	}
	return o, err
}
