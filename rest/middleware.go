package rest

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"

	"github.com/goliatone/go-tasks"
)

// userLocalsKey is where RequireAuth leaves the resolved user record.
const userLocalsKey = "user"

// RequireAuth extracts and verifies the bearer token, then re-resolves
// the live user record. A missing, deleted, or deactivated account
// rejects the request even when the token itself still verifies.
func RequireAuth(repo tasks.RepositoryManager, tokens tasks.TokenService, scheme string) fiber.Handler {
	if scheme == "" {
		scheme = "Bearer"
	}

	return func(c *fiber.Ctx) error {
		raw := extractBearerToken(c.Get(fiber.HeaderAuthorization), scheme)
		if raw == "" {
			return tasks.ErrRouteNotAuthorized
		}

		claims, err := tokens.Validate(raw)
		if err != nil {
			return tasks.ErrRouteNotAuthorized
		}

		uid, err := uuid.Parse(claims.UserID())
		if err != nil {
			return tasks.ErrRouteNotAuthorized
		}

		user, err := repo.Users().FindByID(c.UserContext(), uid)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return tasks.ErrRouteNotAuthorized
			}
			return err
		}

		if !user.IsActive {
			return tasks.ErrRouteNotAuthorized
		}

		c.Locals(userLocalsKey, user)

		ctx := tasks.WithContext(c.UserContext(), user)
		ctx = tasks.WithClaimsContext(ctx, claims)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// RequireAdmin gates a route on the admin role. It must run after
// RequireAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := RequestUser(c)
		if user == nil || user.Role != tasks.RoleAdmin {
			return tasks.ErrRouteNotAuthorized
		}
		return c.Next()
	}
}

// RequestUser returns the user resolved by RequireAuth, or nil.
func RequestUser(c *fiber.Ctx) *tasks.User {
	user, ok := c.Locals(userLocalsKey).(*tasks.User)
	if !ok {
		return nil
	}
	return user
}

func extractBearerToken(header, scheme string) string {
	if header == "" {
		return ""
	}

	prefix := scheme + " "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}

	return strings.TrimSpace(header[len(prefix):])
}
