// Package tasks implements the authentication and authorization core of
// a small task management API plus the repositories backing it.
//
// Credentials:
//   - Passwords are stored as bcrypt hashes and verified with
//     ComparePasswordAndHash. PasswordPolicy enforces the minimum length
//     before any hash is produced.
//
// Sessions:
//   - TokenService issues and validates stateless HS256 JWTs carrying
//     the user id, email and role. Tokens are snapshots: every protected
//     request re-resolves the live user record so deactivation takes
//     effect without a server-side revocation list.
//
// Password reset:
//   - A reset is a bare random token stored on the user row together
//     with an expiry. The token is single-window: finalizing the reset
//     clears both fields in the same statement that replaces the hash.
//
// The HTTP surface lives in the rest subpackage; command handlers in
// this package (register, password reset, password change) carry the
// side-effecting flows and run inside repository transactions.
package tasks
