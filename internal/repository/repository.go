package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardservice/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// Admin listing: every user and how many cards each one holds
	ListUsersWithCardCounts(ctx context.Context) ([]models.UserWithCardCount, error)

	// Delete user by id
	// If user not found must return apperrors.ErrUserNotFound
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

type CreateUserParams struct {
	Username       string
	HashedPassword string
	FullName       string
	Role           string
}

// Card repository interface
type CardRepo interface {
	// Create card
	// If the number token is already taken must return apperrors.ErrCardNumberTaken
	CreateCard(ctx context.Context, arg CreateCardParams) (models.Card, error)

	// Get card by id or by its encoded number token
	// If card not found must return apperrors.ErrCardNotFound
	GetCard(ctx context.Context, cardID uuid.UUID) (models.Card, error)
	GetCardByToken(ctx context.Context, token string) (models.Card, error)

	// Lock the given cards for the rest of the surrounding transaction
	// and return their fresh states. Rows are locked in ascending id
	// order whatever order the ids come in, so two transfers over the
	// same pair can't deadlock each other.
	// Must be called inside Storage.InTx.
	GetCardsForUpdate(ctx context.Context, cardIDs ...uuid.UUID) ([]models.Card, error)

	// Persist a new status. Returns the updated card.
	UpdateStatus(ctx context.Context, cardID uuid.UUID, status models.CardStatus) (models.Card, error)

	// Persist a new balance. Returns the updated card.
	UpdateBalance(ctx context.Context, cardID uuid.UUID, balance decimal.Decimal) (models.Card, error)

	// Filtered paginated listing. Zero-value filter fields are ignored.
	SearchCards(ctx context.Context, arg SearchCardsParams) ([]models.Card, int64, error)
}

type CreateCardParams struct {
	NumberToken string
	Owner       string
	Status      models.CardStatus
	ExpiryDate  time.Time
	Balance     decimal.Decimal
	UserID      uuid.UUID
}

type SearchCardsParams struct {
	// Limit to cards of this user if set
	UserID uuid.UUID

	// Filters, each skipped when zero
	Status models.CardStatus
	Owner  string

	// Pagination
	Limit  int
	Offset int
}

// Operation ledger interface: append only, no updates or deletes
type OperationRepo interface {
	Append(ctx context.Context, arg AppendOperationParams) (models.Operation, error)
	ListByCard(ctx context.Context, cardID uuid.UUID) ([]models.Operation, error)
}

type AppendOperationParams struct {
	CardID      uuid.UUID
	Type        string
	Amount      decimal.Decimal
	Description string
}

// Transfer repository interface
type TransferRepo interface {
	// Insert transfer in PENDING status
	CreateTransfer(ctx context.Context, arg CreateTransferParams) (models.Transfer, error)

	// Move transfer to a terminal status
	UpdateStatus(ctx context.Context, transferID uuid.UUID, status string) (models.Transfer, error)

	// If transfer not found must return apperrors.ErrTransferNotFound
	GetTransfer(ctx context.Context, transferID uuid.UUID) (models.Transfer, error)
}

type CreateTransferParams struct {
	FromCardID uuid.UUID
	ToCardID   uuid.UUID
	Amount     decimal.Decimal
}

// Storage aggregates every repo over one database handle.
// InTx runs fn with a Storage bound to a single transaction: everything
// fn does commits together or rolls back together.
type Storage interface {
	User() UserRepo
	Card() CardRepo
	Operation() OperationRepo
	Transfer() TransferRepo

	InTx(ctx context.Context, fn func(Storage) error) error
}
