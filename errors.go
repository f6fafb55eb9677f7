package tasks

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Domain errors. Message strings are part of the public API contract:
// clients match on them, so changing one is a breaking change.
var (
	// ErrInvalidCredentials is returned both when no account matches the
	// email and when the password does not verify, so callers cannot tell
	// which of the two failed.
	ErrInvalidCredentials = goerrors.New("Email and/or password are not valid.", goerrors.CategoryAuth).
				WithCode(goerrors.CodeUnauthorized).
				WithTextCode("INVALID_CREDENTIALS")

	// ErrAccountInactive blocks every authenticated and reset-initiation
	// flow for deactivated accounts. Login reports it with its own
	// message, which does reveal that the account exists; that behavior
	// is long-standing and kept for compatibility.
	ErrAccountInactive = goerrors.New("User account is not active.", goerrors.CategoryAuth).
				WithCode(goerrors.CodeUnauthorized).
				WithTextCode("ACCOUNT_INACTIVE")

	// ErrRouteNotAuthorized is the uniform rejection for requests that
	// fail the authentication or role gates.
	ErrRouteNotAuthorized = goerrors.New("User is not authorized to access this route.", goerrors.CategoryAuth).
				WithCode(goerrors.CodeUnauthorized).
				WithTextCode("NOT_AUTHORIZED")

	// ErrIdentityNotFound is returned for lookups that target a missing
	// user account.
	ErrIdentityNotFound = goerrors.New("User account could not be found.", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound).
				WithTextCode("IDENTITY_NOT_FOUND")

	// ErrResetNotAllowed rejects password-reset initiation for inactive
	// accounts.
	ErrResetNotAllowed = goerrors.New("User is not authorized to make this request.", goerrors.CategoryAuth).
				WithCode(goerrors.CodeUnauthorized).
				WithTextCode("RESET_NOT_ALLOWED")

	// ErrResetTokenInvalid covers both unknown and expired reset tokens;
	// the two cases are deliberately indistinguishable.
	ErrResetTokenInvalid = goerrors.New("The password reset token is either invalid or expired.", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound).
				WithTextCode("RESET_TOKEN_INVALID")

	// ErrPasswordPolicy is returned when a new password fails the
	// minimum length policy.
	ErrPasswordPolicy = goerrors.New("Password is not valid.", goerrors.CategoryValidation).
				WithTextCode("PASSWORD_POLICY")

	// ErrDuplicateValues surfaces persistence uniqueness violations,
	// rendered as a 400 rather than a 409.
	ErrDuplicateValues = goerrors.New("Unique values are required.", goerrors.CategoryConflict).
				WithTextCode("DUPLICATE_VALUES")

	// ErrResourceNotFound is the rendering for malformed identifiers:
	// an id that cannot be parsed behaves like a missing resource.
	ErrResourceNotFound = goerrors.New("The specified resource could not be found.", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound).
				WithTextCode("RESOURCE_NOT_FOUND")

	// ErrTokenExpired is returned when a session token's expiry has passed.
	ErrTokenExpired = goerrors.New("Authentication token is expired.", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized).
			WithTextCode("TOKEN_EXPIRED")

	// ErrTokenMalformed covers bad signatures and undecodable tokens.
	ErrTokenMalformed = goerrors.New("Authentication token is invalid.", goerrors.CategoryAuth).
				WithCode(goerrors.CodeUnauthorized).
				WithTextCode("TOKEN_MALFORMED")

	// ErrMismatchedHashAndPassword is the bcrypt mismatch sentinel.
	ErrMismatchedHashAndPassword = goerrors.New("hashed password does not match", goerrors.CategoryAuth).
					WithCode(goerrors.CodeUnauthorized).
					WithTextCode("PASSWORD_MISMATCH")

	// ErrNoEmptyString rejects hashing an empty password.
	ErrNoEmptyString = goerrors.New("value must not be an empty string", goerrors.CategoryBadInput)
)

// IsUniqueViolation reports whether err is a uniqueness constraint
// failure from the database driver. Only these map to the duplicate
// values error; any other persistence failure stays internal.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
