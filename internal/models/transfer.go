package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransferPending = "PENDING"
	TransferSuccess = "SUCCESS"
	TransferFailed  = "FAILED"
)

type Transfer struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	FromCardID uuid.UUID
	ToCardID   uuid.UUID
	Amount     decimal.Decimal
	Status     string
}
