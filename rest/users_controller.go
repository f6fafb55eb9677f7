package rest

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"

	"github.com/goliatone/go-tasks"
)

// UsersController handles admin user management. Every route is behind
// both the authentication and the admin gates.
type UsersController struct {
	Repo   tasks.RepositoryManager
	Policy tasks.PasswordPolicy
	Logger tasks.Logger
}

// CreateUserRequest payload. Unlike self registration, an admin may set
// the active flag and role directly.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	IsActive bool   `json:"is_active"`
	Role     string `json:"user_role"`
}

// Validate will run validation rules
func (r CreateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Role, validation.In(tasks.RoleUser, tasks.RoleAdmin)),
	)
}

// UpdateUserRequest payload. Absent fields keep their stored values.
type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	IsActive *bool   `json:"is_active"`
	Role     *string `json:"user_role"`
}

// Validate will run validation rules
func (r UpdateUserRequest) Validate() error {
	if r.Role != nil && !tasks.IsValidRole(*r.Role) {
		return goerrors.New("user_role must be a valid role", goerrors.CategoryValidation)
	}
	if r.Email != nil {
		return validation.Validate(*r.Email, validation.Required, is.Email)
	}
	return nil
}

func (u *UsersController) List(c *fiber.Ctx) error {
	records, err := u.Repo.Users().ListAll(c.UserContext())
	if err != nil {
		return err
	}

	return sendData(c, fiber.StatusOK, records)
}

func (u *UsersController) Create(c *fiber.Ctx) error {
	payload := new(CreateUserRequest)
	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	if !u.Policy.Validate(payload.Password) {
		return tasks.ErrPasswordPolicy
	}

	hash, err := tasks.HashPassword(payload.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	record := &tasks.User{
		Email:        payload.Email,
		PasswordHash: hash,
		IsActive:     payload.IsActive,
		Role:         payload.Role,
	}

	record, err = u.Repo.Users().Create(c.UserContext(), record)
	if err != nil {
		if tasks.IsUniqueViolation(err) {
			return goerrors.Wrap(err, goerrors.CategoryConflict, tasks.ErrDuplicateValues.Message).
				WithTextCode("DUPLICATE_VALUES")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	return sendData(c, fiber.StatusCreated, record)
}

func (u *UsersController) Get(c *fiber.Ctx) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}

	record, err := u.Repo.Users().FindByID(c.UserContext(), id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return tasks.ErrIdentityNotFound
		}
		return err
	}

	return sendData(c, fiber.StatusOK, record)
}

func (u *UsersController) Update(c *fiber.Ctx) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}

	payload := new(UpdateUserRequest)
	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	update := tasks.UserUpdate{
		Email:    payload.Email,
		IsActive: payload.IsActive,
		Role:     payload.Role,
	}

	if payload.Password != nil {
		if !u.Policy.Validate(*payload.Password) {
			return tasks.ErrPasswordPolicy
		}

		hash, err := tasks.HashPassword(*payload.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
		update.Password = &hash
	}

	record, err := u.Repo.Users().UpdateFields(c.UserContext(), id, update)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return tasks.ErrIdentityNotFound
		}
		if tasks.IsUniqueViolation(err) {
			return goerrors.Wrap(err, goerrors.CategoryConflict, tasks.ErrDuplicateValues.Message).
				WithTextCode("DUPLICATE_VALUES")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user")
	}

	return sendData(c, fiber.StatusOK, record)
}

func (u *UsersController) Delete(c *fiber.Ctx) error {
	id, err := parseUserID(c)
	if err != nil {
		return err
	}

	user, err := u.Repo.Users().FindByID(c.UserContext(), id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return tasks.ErrIdentityNotFound
		}
		return err
	}

	if err := u.Repo.Users().Remove(c.UserContext(), id); err != nil {
		if repository.IsRecordNotFound(err) {
			return tasks.ErrIdentityNotFound
		}
		return err
	}

	return sendData(c, fiber.StatusOK, user)
}

// parseUserID maps a malformed id to the resource not found error, the
// same behavior a missing record gets.
func parseUserID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, tasks.ErrResourceNotFound
	}
	return id, nil
}
