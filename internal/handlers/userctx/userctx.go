package userctx

import (
	"context"

	"github.com/nkiryanov/cardservice/internal/models"
)

type ctxKey string

const userKey ctxKey = "user"

// Create a new context with the authenticated user
func New(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// Extract the user from the context
func FromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey).(models.User)
	return u, ok
}

// Principal of the user stored in context.
// Handlers pass it down to services explicitly.
func Principal(ctx context.Context) (models.Principal, bool) {
	u, ok := FromContext(ctx)
	if !ok {
		return models.Principal{}, false
	}
	return models.PrincipalFromUser(u), true
}
