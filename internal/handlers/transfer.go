package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardservice/internal/apperrors"
	"github.com/nkiryanov/cardservice/internal/handlers/render"
	"github.com/nkiryanov/cardservice/internal/handlers/userctx"
	"github.com/nkiryanov/cardservice/internal/logger"
)

func handleTransfer(ts transferService, l logger.Logger) http.Handler {
	type request struct {
		FromCardNumber string          `json:"fromCardNumber" validate:"required,cardnumber"`
		ToCardNumber   string          `json:"toCardNumber" validate:"required,cardnumber"`
		Amount         decimal.Decimal `json:"amount" validate:"required"`
	}
	type response struct {
		ID        uuid.UUID `json:"id"`
		Amount    float64   `json:"amount"`
		Status    string    `json:"status"`
		CreatedAt time.Time `json:"createdAt"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.Principal(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		userID, err := uuid.Parse(r.PathValue("userId"))
		if err != nil {
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		transfer, err := ts.Transfer(r.Context(), principal, userID, data.FromCardNumber, data.ToCardNumber, data.Amount)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrTransferAccessDenied):
				render.ServiceError(w, "Access denied", http.StatusForbidden)
			case errors.Is(err, apperrors.ErrTransferNotOwnCards):
				render.ServiceError(w, "Transfers are allowed between own cards only", http.StatusForbidden)
			case errors.Is(err, apperrors.ErrSourceCardNotFound):
				render.ServiceError(w, "Source card not found", http.StatusNotFound)
			case errors.Is(err, apperrors.ErrTargetCardNotFound):
				render.ServiceError(w, "Target card not found", http.StatusNotFound)
			case errors.Is(err, apperrors.ErrSameCard):
				render.ServiceError(w, "Source and target cards must differ", http.StatusBadRequest)
			case errors.Is(err, apperrors.ErrNonPositiveAmount):
				render.ServiceError(w, "Transfer amount must be positive", http.StatusBadRequest)
			case errors.Is(err, apperrors.ErrSourceCardBlocked):
				render.ServiceError(w, "Source card is blocked", http.StatusBadRequest)
			case errors.Is(err, apperrors.ErrTargetCardBlocked):
				render.ServiceError(w, "Target card is blocked", http.StatusBadRequest)
			case errors.Is(err, apperrors.ErrCardsNotActive):
				render.ServiceError(w, "Both cards must be active", http.StatusBadRequest)
			case errors.Is(err, apperrors.ErrInsufficientFunds):
				render.ServiceError(w, "Insufficient funds", http.StatusBadRequest)
			default:
				l.Error("Failed to transfer", "user_id", userID, "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		amount, _ := transfer.Amount.Float64()
		render.JSONWithStatus(w, response{
			ID:        transfer.ID,
			Amount:    amount,
			Status:    transfer.Status,
			CreatedAt: transfer.CreatedAt,
		}, http.StatusCreated)
	})
}
