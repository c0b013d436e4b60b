package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/cardservice/internal/handlers/render"
	"github.com/nkiryanov/cardservice/internal/handlers/userctx"
	"github.com/nkiryanov/cardservice/internal/models"
)

type authService interface {
	Auth(ctx context.Context, r *http.Request) (models.User, error)
}

type Auth struct {
	service authService
}

func NewAuth(as authService) *Auth {
	return &Auth{service: as}
}

// Auth resolves the request credentials into a user and stores it in
// the request context. Unauthenticated requests are rejected.
func (m *Auth) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.service.Auth(r.Context(), r)
		if err != nil {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := userctx.New(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin is the coarse role gate for administrative routes.
// Must run after Auth. Services still apply their own ownership rules.
func (m *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if !user.IsAdmin() {
			render.ServiceError(w, "Access denied", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
