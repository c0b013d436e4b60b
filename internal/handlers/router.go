package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardservice/internal/handlers/middleware"
	"github.com/nkiryanov/cardservice/internal/logger"
	"github.com/nkiryanov/cardservice/internal/models"
	"github.com/nkiryanov/cardservice/internal/repository"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	as authService,
	cs cardService,
	ts transferService,
	us userService,
	l logger.Logger,
) http.Handler {
	authmw := middleware.NewAuth(as)
	withAuth := authmw.Auth
	withAdmin := func(h http.Handler) http.Handler {
		return authmw.Auth(authmw.RequireAdmin(h))
	}

	mux := http.NewServeMux()

	mux.Handle("POST /api/auth/register", handleRegister(as, cs, l))
	mux.Handle("POST /api/auth/login", handleLogin(as, l))

	mux.Handle("GET /api/cards", withAuth(handleListCards(cs, l)))
	mux.Handle("POST /api/cards/{userId}", withAdmin(handleIssueCard(cs, l)))
	mux.Handle("PATCH /api/cards/{cardId}/status", withAdmin(handleUpdateCardStatus(cs, l)))
	mux.Handle("POST /api/cards/{cardId}/block", withAuth(handleBlockCard(cs, l)))
	mux.Handle("POST /api/cards/{cardId}/unblock", withAuth(handleUnblockCard(cs, l)))
	mux.Handle("GET /api/cards/{cardId}/balance", withAuth(handleCardBalance(cs, l)))
	mux.Handle("GET /api/cards/{cardId}/operations", withAuth(handleCardOperations(cs, l)))

	mux.Handle("POST /api/users/{userId}/transfers", withAuth(handleTransfer(ts, l)))

	mux.Handle("GET /api/admin/users", withAdmin(handleListUsers(us, l)))
	mux.Handle("GET /api/admin/users/search", withAdmin(handleSearchUser(us, l)))
	mux.Handle("DELETE /api/admin/users/{userId}", withAdmin(handleDeleteUser(us, l)))

	return chain(mux,
		middleware.LoggerMiddleware(l),
	)
}

type authService interface {
	// Register user. Has to return apperrors.ErrUserAlreadyExists if username is taken
	Register(ctx context.Context, username string, password string, fullName string) (models.User, string, error)

	// Login user. Has to return apperrors.ErrUserNotFound for unknown user or wrong password
	Login(ctx context.Context, username string, password string) (models.User, string, error)

	// Resolve request credentials into a user
	Auth(ctx context.Context, r *http.Request) (models.User, error)
}

type cardService interface {
	IssueCard(ctx context.Context, userID uuid.UUID, ownerOverride string) (models.Card, error)
	RequestBlock(ctx context.Context, cardID uuid.UUID, principal models.Principal) (models.Card, error)
	RequestUnblock(ctx context.Context, cardID uuid.UUID, principal models.Principal) (models.Card, error)
	UpdateStatus(ctx context.Context, cardID uuid.UUID, status models.CardStatus) (models.Card, error)
	GetBalance(ctx context.Context, cardID uuid.UUID, principal models.Principal) (decimal.Decimal, error)
	ListUserCards(ctx context.Context, userID uuid.UUID, principal models.Principal, arg repository.SearchCardsParams) ([]models.Card, int64, error)
	ListAllCards(ctx context.Context, arg repository.SearchCardsParams) ([]models.Card, int64, error)
	ListOperations(ctx context.Context, cardID uuid.UUID, principal models.Principal) ([]models.Operation, error)
}

type transferService interface {
	Transfer(ctx context.Context, principal models.Principal, actingUserID uuid.UUID, fromNumber string, toNumber string, amount decimal.Decimal) (models.Transfer, error)
}

type userService interface {
	ListWithCardCounts(ctx context.Context) ([]models.UserWithCardCount, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}
