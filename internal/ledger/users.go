package ledger

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "dayledger/internal/errors"
	"dayledger/internal/models"
	"dayledger/internal/storage"
)

// Users handles registration against a generation that stores users.
// Session and token issuance live in the auth collaborator, not here.
type Users struct {
	dir storage.UserDirectory
}

// NewUsers creates a Users service.
func NewUsers(dir storage.UserDirectory) *Users {
	return &Users{dir: dir}
}

// Register creates a user with a bcrypt-hashed credential. A taken
// username surfaces as ErrDuplicateUsername so the caller can re-prompt.
func (u *Users) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return u.dir.CreateUser(ctx, username, string(hash))
}

// Lookup finds a user by username.
func (u *Users) Lookup(ctx context.Context, username string) (*models.User, error) {
	return u.dir.UserByUsername(ctx, strings.TrimSpace(username))
}
