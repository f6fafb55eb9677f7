// Package rest exposes the HTTP surface: auth flows, owner-scoped task
// CRUD, and admin user management, all under /api/v1 with a uniform
// response envelope.
package rest

import (
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-tasks"
)

// Envelope is the uniform response shape for every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
}

func sendData(c *fiber.Ctx, status int, data any) error {
	if data == nil {
		data = struct{}{}
	}
	return c.Status(status).JSON(Envelope{
		Success: true,
		Data:    data,
	})
}

func sendError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Envelope{
		Success: false,
		Data:    struct{}{},
		Error:   message,
	})
}

// statusFromCategory maps domain error categories onto HTTP statuses.
// Conflict renders as 400, not 409, and authz failures share 401 with
// authn failures.
func statusFromCategory(richErr *goerrors.Error) int {
	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return fiber.StatusUnauthorized
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, goerrors.CategoryConflict:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// NewErrorHandler builds the app level error handler that converts any
// returned error into the response envelope. Domain errors carry their
// client facing message; anything unrecognized becomes a 500 with the
// raw error string and no internal detail beyond it.
func NewErrorHandler(logger tasks.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = tasks.DefaultLogger()
	}

	return func(c *fiber.Ctx, err error) error {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			status := statusFromCategory(richErr)
			if status == fiber.StatusInternalServerError {
				logger.Error("request failed: %v", err)
			}
			return sendError(c, status, richErr.Message)
		}

		var fiberErr *fiber.Error
		if goerrors.As(err, &fiberErr) {
			return sendError(c, fiberErr.Code, fiberErr.Message)
		}

		logger.Error("request failed: %v", err)
		return sendError(c, fiber.StatusInternalServerError, err.Error())
	}
}
