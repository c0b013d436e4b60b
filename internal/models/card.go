package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
	CardStatusExpired CardStatus = "EXPIRED"
)

// ParseCardStatus validates a raw status value at the boundary.
// The persisted column is a plain string, so anything read from outside
// (requests, db rows) has to pass through here.
func ParseCardStatus(s string) (CardStatus, error) {
	switch status := CardStatus(s); status {
	case CardStatusActive, CardStatusBlocked, CardStatusExpired:
		return status, nil
	default:
		return "", fmt.Errorf("unknown card status %q", s)
	}
}

type Card struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	NumberToken string
	Owner       string
	Status      CardStatus
	ExpiryDate  time.Time
	Balance     decimal.Decimal
	UserID      uuid.UUID
}
