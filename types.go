package tasks

import (
	"context"
	"time"
)

// Identity holds the attributes of an authenticated identity
type Identity interface {
	ID() string
	Email() string
	Role() string
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	TokenService() TokenService
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAuthScheme() string
	GetPasswordMinLength() int
	GetResetTokenWindow() time.Duration
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}
