package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	ErrCardNotFound       = errors.New("card not found")
	ErrSourceCardNotFound = errors.New("source card not found")
	ErrTargetCardNotFound = errors.New("target card not found")
	ErrTransferNotFound   = errors.New("transfer not found")

	// Card lifecycle rule violations
	ErrBlockOtherUsersCard   = errors.New("cannot request block for another user's card")
	ErrUnblockOtherUsersCard = errors.New("cannot request unblock for another user's card")
	ErrBlockExpiredCard      = errors.New("cannot block expired card")
	ErrActivateExpiredCard   = errors.New("cannot activate expired card")
	ErrCardNumberTaken       = errors.New("card number already taken")
	ErrCardNumberExhausted   = errors.New("failed to generate unique card number, please retry")
	ErrBalanceAccessDenied   = errors.New("access denied to other user's card balance")
	ErrCardsAccessDenied     = errors.New("access denied to other user's cards")

	// Transfer rule violations
	ErrTransferAccessDenied = errors.New("access denied to initiate transfer for another user")
	ErrTransferNotOwnCards  = errors.New("transfer allowed only between user's own cards")
	ErrSourceCardBlocked    = errors.New("source card is blocked")
	ErrTargetCardBlocked    = errors.New("target card is blocked")
	ErrCardsNotActive       = errors.New("both cards must be active")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrNonPositiveAmount    = errors.New("transfer amount must be positive")
	ErrSameCard             = errors.New("source and target cards must differ")
)
