// Package auth checks portal credentials and issues API tokens.
package auth

import (
	"context"
	"errors"
)

var ErrInvalidCredentials = errors.New("auth: invalid username or password")

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Identity struct {
	Username string `json:"username"`
}

// Authenticator verifies credentials. Implementations must be safe for
// concurrent use.
type Authenticator interface {
	Authenticate(ctx context.Context, c Credentials) (Identity, error)
}
