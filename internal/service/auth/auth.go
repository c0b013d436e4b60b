package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nkiryanov/cardservice/internal/apperrors"
	"github.com/nkiryanov/cardservice/internal/models"
	"github.com/nkiryanov/cardservice/internal/repository"
)

type Config struct {
	// Secret key to sign user access token payload
	SecretKey string

	// Hasher to use during user registration or login process
	Hasher PasswordHasher

	// Access token lifetime
	TokenTTL time.Duration
}

// Auth service
type AuthService struct {
	// Manager to issue and verify access tokens
	tokens *TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// Repository to access long term data
	storage repository.Storage
}

func NewService(cfg Config, storage repository.Storage) (*AuthService, error) {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}

	tokens, err := NewTokenManager(TokenManagerConfig{SecretKey: cfg.SecretKey, TokenTTL: cfg.TokenTTL})
	if err != nil {
		return nil, err
	}

	return &AuthService{
		tokens:  tokens,
		hasher:  hasher,
		storage: storage,
	}, nil
}

// Register creates a regular user and logs it in.
// Returns apperrors.ErrUserAlreadyExists if the username is taken.
func (s *AuthService) Register(ctx context.Context, username string, password string, fullName string) (models.User, string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, "", fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Username:       username,
		HashedPassword: hash,
		FullName:       fullName,
		Role:           models.RoleUser,
	})
	if err != nil {
		return models.User{}, "", err
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return models.User{}, "", err
	}

	return user, token, nil
}

// Login verifies credentials and returns a fresh access token.
// Wrong username and wrong password are both apperrors.ErrUserNotFound,
// the caller can't tell which part was wrong.
func (s *AuthService) Login(ctx context.Context, username string, password string) (models.User, string, error) {
	user, err := s.storage.User().GetUserByUsername(ctx, username)
	if err != nil {
		return models.User{}, "", apperrors.ErrUserNotFound
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, "", apperrors.ErrUserNotFound
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return models.User{}, "", err
	}

	return user, token, nil
}

// Auth resolves the request's bearer token into a user
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	header := r.Header.Get("Authorization")

	access, found := strings.CutPrefix(header, "Bearer ")
	if !found || access == "" {
		return models.User{}, errors.New("no bearer token in request")
	}

	claims, err := s.tokens.Parse(access)
	if err != nil {
		return models.User{}, err
	}

	// The user is loaded fresh: a deleted user's token must stop working
	return s.storage.User().GetUserByID(ctx, claims.UserID)
}

// EnsureAdmin creates the administrator account if no user with that
// username exists yet. Returns true when the account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, username string, password string, fullName string) (bool, error) {
	_, err := s.storage.User().GetUserByUsername(ctx, username)

	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return false, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("can't use this as password, error=%w", err)
	}

	_, err = s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Username:       username,
		HashedPassword: hash,
		FullName:       fullName,
		Role:           models.RoleAdmin,
	})
	if err != nil {
		return false, err
	}

	return true, nil
}
