package models

import "github.com/google/uuid"

// Principal is the resolved identity of the caller for a single operation.
// Services take it as an explicit argument instead of reading auth state
// from the request context, so ownership checks stay pure functions of
// their inputs.
type Principal struct {
	IsAdmin bool
	UserID  uuid.UUID
}

func PrincipalFromUser(u User) Principal {
	return Principal{IsAdmin: u.IsAdmin(), UserID: u.ID}
}
