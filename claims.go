package tasks

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the read surface of a validated session token. Claims
// are a snapshot taken at issuance: the authentication middleware
// re-resolves the live user record and downstream code must prefer that
// record over anything embedded here.
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Role() string
	HasRole(role string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string `json:"uid,omitempty"`
	UserEmail string `json:"email,omitempty"`
	UserRole  string `json:"role,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user id, falling back to the subject claim
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Email returns the email embedded at issuance
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Role returns the role embedded at issuance
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// HasRole checks if the embedded role equals the given role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
