package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Username       string
	HashedPassword string
	FullName       string
	Role           string
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserWithCardCount is the admin listing projection.
type UserWithCardCount struct {
	User
	CardCount int64
}
