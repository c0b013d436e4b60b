package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/cardservice/internal/apperrors"
	"github.com/nkiryanov/cardservice/internal/cardnumber"
	"github.com/nkiryanov/cardservice/internal/handlers/render"
	"github.com/nkiryanov/cardservice/internal/handlers/userctx"
	"github.com/nkiryanov/cardservice/internal/logger"
	"github.com/nkiryanov/cardservice/internal/models"
	"github.com/nkiryanov/cardservice/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CardResponse is the external card view. The number is always masked.
type CardResponse struct {
	ID         uuid.UUID `json:"id"`
	Number     string    `json:"number"`
	Owner      string    `json:"owner"`
	Status     string    `json:"status"`
	ExpiryDate string    `json:"expiryDate"`
	Balance    float64   `json:"balance"`
	UserID     uuid.UUID `json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toCardResponse(c models.Card) CardResponse {
	balance, _ := c.Balance.Float64()

	return CardResponse{
		ID:         c.ID,
		Number:     cardnumber.Mask(c.NumberToken),
		Owner:      c.Owner,
		Status:     string(c.Status),
		ExpiryDate: c.ExpiryDate.Format("2006-01-02"),
		Balance:    balance,
		UserID:     c.UserID,
		CreatedAt:  c.CreatedAt,
	}
}

// searchParamsFromQuery reads list filters from the url query.
// Unknown status values are not an error here, they just match nothing.
func searchParamsFromQuery(r *http.Request) repository.SearchCardsParams {
	q := r.URL.Query()

	size, err := strconv.Atoi(q.Get("size"))
	if err != nil || size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 0 {
		page = 0
	}

	// Free text search covers the owner name only, so "q" is just
	// another spelling of the owner filter
	owner := q.Get("owner")
	if owner == "" {
		owner = q.Get("q")
	}

	return repository.SearchCardsParams{
		Status: models.CardStatus(q.Get("status")),
		Owner:  owner,
		Limit:  size,
		Offset: page * size,
	}
}

func handleListCards(cs cardService, l logger.Logger) http.Handler {
	type response struct {
		Cards []CardResponse `json:"cards"`
		Total int64          `json:"total"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.Principal(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		params := searchParamsFromQuery(r)

		var cards []models.Card
		var total int64
		var err error
		if principal.IsAdmin {
			cards, total, err = cs.ListAllCards(r.Context(), params)
		} else {
			cards, total, err = cs.ListUserCards(r.Context(), principal.UserID, principal, params)
		}
		if err != nil {
			l.Error("Failed to list cards", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		views := make([]CardResponse, 0, len(cards))
		for _, c := range cards {
			views = append(views, toCardResponse(c))
		}
		render.JSON(w, response{Cards: views, Total: total})
	})
}

func handleIssueCard(cs cardService, l logger.Logger) http.Handler {
	type request struct {
		Owner string `json:"owner" validate:"omitempty,fullname"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.PathValue("userId"))
		if err != nil {
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return
		}

		var owner string
		if r.ContentLength > 0 {
			data, err := render.BindAndValidate[request](w, r)
			if err != nil {
				return
			}
			owner = data.Owner
		}

		card, err := cs.IssueCard(r.Context(), userID, owner)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserNotFound):
				render.ServiceError(w, "User not found", http.StatusNotFound)
			case errors.Is(err, apperrors.ErrCardNumberExhausted):
				render.ServiceError(w, "Failed to allocate card number", http.StatusConflict)
			default:
				l.Error("Failed to issue card", "user_id", userID, "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSONWithStatus(w, toCardResponse(card), http.StatusCreated)
	})
}

func handleUpdateCardStatus(cs cardService, l logger.Logger) http.Handler {
	type request struct {
		Status string `json:"status" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cardID, err := uuid.Parse(r.PathValue("cardId"))
		if err != nil {
			render.ServiceError(w, "Card not found", http.StatusNotFound)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		status, err := models.ParseCardStatus(data.Status)
		if err != nil {
			render.ServiceError(w, "Unknown card status", http.StatusBadRequest)
			return
		}

		card, err := cs.UpdateStatus(r.Context(), cardID, status)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrCardNotFound):
				render.ServiceError(w, "Card not found", http.StatusNotFound)
			case errors.Is(err, apperrors.ErrActivateExpiredCard):
				render.ServiceError(w, "Cannot activate expired card", http.StatusBadRequest)
			default:
				l.Error("Failed to update card status", "card_id", cardID, "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, toCardResponse(card))
	})
}

func handleBlockCard(cs cardService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.Principal(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		cardID, err := uuid.Parse(r.PathValue("cardId"))
		if err != nil {
			render.ServiceError(w, "Card not found", http.StatusNotFound)
			return
		}

		card, err := cs.RequestBlock(r.Context(), cardID, principal)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrCardNotFound):
				render.ServiceError(w, "Card not found", http.StatusNotFound)
			case errors.Is(err, apperrors.ErrBlockOtherUsersCard):
				render.ServiceError(w, "Cannot block another user's card", http.StatusForbidden)
			case errors.Is(err, apperrors.ErrBlockExpiredCard):
				render.ServiceError(w, "Cannot block expired card", http.StatusBadRequest)
			default:
				l.Error("Failed to block card", "card_id", cardID, "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, toCardResponse(card))
	})
}

func handleUnblockCard(cs cardService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.Principal(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		cardID, err := uuid.Parse(r.PathValue("cardId"))
		if err != nil {
			render.ServiceError(w, "Card not found", http.StatusNotFound)
			return
		}

		card, err := cs.RequestUnblock(r.Context(), cardID, principal)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrCardNotFound):
				render.ServiceError(w, "Card not found", http.StatusNotFound)
			case errors.Is(err, apperrors.ErrUnblockOtherUsersCard):
				render.ServiceError(w, "Cannot activate another user's card", http.StatusForbidden)
			case errors.Is(err, apperrors.ErrActivateExpiredCard):
				render.ServiceError(w, "Cannot activate expired card", http.StatusBadRequest)
			default:
				l.Error("Failed to unblock card", "card_id", cardID, "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, toCardResponse(card))
	})
}

func handleCardBalance(cs cardService, l logger.Logger) http.Handler {
	type response struct {
		Balance float64 `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.Principal(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		cardID, err := uuid.Parse(r.PathValue("cardId"))
		if err != nil {
			render.ServiceError(w, "Card not found", http.StatusNotFound)
			return
		}

		balance, err := cs.GetBalance(r.Context(), cardID, principal)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrCardNotFound):
				render.ServiceError(w, "Card not found", http.StatusNotFound)
			case errors.Is(err, apperrors.ErrBalanceAccessDenied):
				render.ServiceError(w, "Access denied", http.StatusForbidden)
			default:
				l.Error("Failed to get card balance", "card_id", cardID, "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		value, _ := balance.Float64()
		render.JSON(w, response{Balance: value})
	})
}

func handleCardOperations(cs cardService, l logger.Logger) http.Handler {
	type operation struct {
		ID          uuid.UUID `json:"id"`
		Type        string    `json:"type"`
		Amount      float64   `json:"amount"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.Principal(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		cardID, err := uuid.Parse(r.PathValue("cardId"))
		if err != nil {
			render.ServiceError(w, "Card not found", http.StatusNotFound)
			return
		}

		ops, err := cs.ListOperations(r.Context(), cardID, principal)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrCardNotFound):
				render.ServiceError(w, "Card not found", http.StatusNotFound)
			case errors.Is(err, apperrors.ErrCardsAccessDenied):
				render.ServiceError(w, "Access denied", http.StatusForbidden)
			default:
				l.Error("Failed to list card operations", "card_id", cardID, "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		views := make([]operation, 0, len(ops))
		for _, op := range ops {
			amount, _ := op.Amount.Float64()
			views = append(views, operation{
				ID:          op.ID,
				Type:        op.Type,
				Amount:      amount,
				Description: op.Description,
				CreatedAt:   op.CreatedAt,
			})
		}
		render.JSON(w, views)
	})
}
