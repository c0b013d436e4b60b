package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/cardservice/internal/apperrors"
	"github.com/nkiryanov/cardservice/internal/handlers/render"
	"github.com/nkiryanov/cardservice/internal/logger"
)

type userView struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullName"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func handleListUsers(us userService, l logger.Logger) http.Handler {
	type userWithCards struct {
		userView
		CardCount int64 `json:"cardCount"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		users, err := us.ListWithCardCounts(r.Context())
		if err != nil {
			l.Error("Failed to list users", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		views := make([]userWithCards, 0, len(users))
		for _, u := range users {
			views = append(views, userWithCards{
				userView: userView{
					ID:        u.ID,
					Username:  u.Username,
					FullName:  u.FullName,
					Role:      u.Role,
					CreatedAt: u.CreatedAt,
				},
				CardCount: u.CardCount,
			})
		}
		render.JSON(w, views)
	})
}

func handleSearchUser(us userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := r.URL.Query().Get("username")
		if username == "" {
			render.ServiceError(w, "Query parameter 'username' is required", http.StatusBadRequest)
			return
		}

		user, err := us.FindByUsername(r.Context(), username)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserNotFound):
				render.ServiceError(w, "User not found", http.StatusNotFound)
			default:
				l.Error("Failed to find user", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, userView{
			ID:        user.ID,
			Username:  user.Username,
			FullName:  user.FullName,
			Role:      user.Role,
			CreatedAt: user.CreatedAt,
		})
	})
}

func handleDeleteUser(us userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.PathValue("userId"))
		if err != nil {
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return
		}

		if err := us.Delete(r.Context(), userID); err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserNotFound):
				render.ServiceError(w, "User not found", http.StatusNotFound)
			default:
				l.Error("Failed to delete user", "user_id", userID, "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}
