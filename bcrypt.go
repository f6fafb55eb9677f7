package tasks

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultMinPasswordLength is the policy floor when no configuration
// overrides it.
const DefaultMinPasswordLength = 6

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash is a temporary password
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}

// PasswordPolicy is the plaintext policy applied before hashing.
type PasswordPolicy struct {
	MinLength int
}

// DefaultPasswordPolicy uses the package default minimum length.
var DefaultPasswordPolicy = PasswordPolicy{MinLength: DefaultMinPasswordLength}

// NewPasswordPolicy returns a policy with the given minimum length,
// falling back to the default when the value is not positive.
func NewPasswordPolicy(minLength int) PasswordPolicy {
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	return PasswordPolicy{MinLength: minLength}
}

// Validate reports whether the plaintext satisfies the policy. It never
// errors: callers check before attempting to hash.
func (p PasswordPolicy) Validate(password string) bool {
	min := p.MinLength
	if min <= 0 {
		min = DefaultMinPasswordLength
	}
	return len(password) >= min
}
