package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OperationBlock       = "BLOCK"
	OperationUnblock     = "UNBLOCK"
	OperationTransferIn  = "TRANSFER_IN"
	OperationTransferOut = "TRANSFER_OUT"
)

// Operation is a single entry of the per-card audit trail.
// Entries are appended once and never updated or deleted.
type Operation struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	CardID      uuid.UUID
	Type        string
	Amount      decimal.Decimal
	Description string
}
