package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/cardservice/internal/apperrors"
	"github.com/nkiryanov/cardservice/internal/handlers/render"
	"github.com/nkiryanov/cardservice/internal/logger"
)

func handleRegister(as authService, cs cardService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required,username"`
		Password string `json:"password" validate:"required,min=8"`
		FullName string `json:"fullName" validate:"required,fullname"`
	}
	type response struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, token, err := as.Register(r.Context(), data.Username, data.Password, data.FullName)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserAlreadyExists):
				render.ServiceError(w, "User already exists", http.StatusConflict)
			default:
				l.Error("Failed to register user", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		// Every new user starts with one card. The user row is already
		// committed, so a failed issuance must not fail the registration.
		if _, err := cs.IssueCard(r.Context(), user.ID, ""); err != nil {
			l.Error("Failed to issue initial card", "user_id", user.ID, "error", err)
		}

		render.JSONWithStatus(w, response{Token: token, Username: user.Username}, http.StatusCreated)
	})
}

func handleLogin(as authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type response struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, token, err := as.Login(r.Context(), data.Username, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserNotFound):
				render.ServiceError(w, "User not found", http.StatusUnauthorized)
			default:
				l.Error("Failed to login user", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, response{Token: token, Username: user.Username})
	})
}
