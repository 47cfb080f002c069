package auth

import (
	"context"

	"github.com/pkg/errors"

	"github.com/medtrack/claims-app/claims/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserInactive       = errors.New("user account is inactive")
)

// Authenticate verifies a username/password pair against the credential
// store. The hardcoded credential list from early builds is gone; every
// account lives in the users table.
func Authenticate(ctx context.Context, r models.Repository, username, password string) (*models.User, error) {
	user, err := r.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, errors.Wrap(err, "could not look up user")
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrUserInactive
	}
	if !Hash(user.PasswordHash).IsHashOf(password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
