package rest

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-tasks"
)

// AuthController handles the five credential flows.
type AuthController struct {
	Auther *tasks.Auther
	Repo   tasks.RepositoryManager
	Policy tasks.PasswordPolicy
	Mailer tasks.Mailer
	Window time.Duration
	Logger tasks.Logger
	// DeterministicIDs derives new account ids from the email.
	DeterministicIDs bool
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	token, err := a.Auther.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("Login error: %v", err)
		return err
	}

	return sendData(c, fiber.StatusOK, fiber.Map{"token": token})
}

// RegisterRequest payload
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) Register(c *fiber.Ctx) error {
	payload := new(RegisterRequest)

	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	register := tasks.NewRegisterUserHandler(a.Repo, a.Policy)
	msg := tasks.RegisterUserMessage{
		Email:     payload.Email,
		Password:  payload.Password,
		UseHashid: a.DeterministicIDs,
	}

	if err := register.Execute(c.UserContext(), msg); err != nil {
		a.Logger.Error("Register error: %v", err)
		return err
	}

	return sendData(c, fiber.StatusOK, nil)
}

// ForgotPasswordRequest payload
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Validate will run validation rules
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ForgotPassword(c *fiber.Ctx) error {
	payload := new(ForgotPasswordRequest)

	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	initReset := tasks.NewInitializePasswordResetHandler(a.Repo, a.Mailer, a.Window, a.Logger)
	msg := tasks.InitializePasswordResetMessage{
		Email:    payload.Email,
		ResetURL: c.BaseURL() + "/api/v1/auth/resetpassword",
	}

	if err := initReset.Execute(c.UserContext(), msg); err != nil {
		a.Logger.Error("ForgotPassword error: %v", err)
		return err
	}

	return sendData(c, fiber.StatusOK, nil)
}

// PasswordRequest payload for reset and change flows
type PasswordRequest struct {
	Password string `json:"password"`
}

// Validate will run validation rules
func (r PasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) ResetPassword(c *fiber.Ctx) error {
	payload := new(PasswordRequest)

	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body")
	}

	finalize := tasks.NewFinalizePasswordResetHandler(a.Repo, a.Policy)
	msg := tasks.FinalizePasswordResetMessage{
		Token:    c.Params("resetToken"),
		Password: payload.Password,
	}

	if err := finalize.Execute(c.UserContext(), msg); err != nil {
		a.Logger.Error("ResetPassword error: %v", err)
		return err
	}

	return sendData(c, fiber.StatusOK, nil)
}

func (a *AuthController) ChangePassword(c *fiber.Ctx) error {
	user := RequestUser(c)
	if user == nil {
		return tasks.ErrRouteNotAuthorized
	}

	payload := new(PasswordRequest)

	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body")
	}

	change := tasks.NewChangePasswordHandler(a.Repo, a.Policy)
	msg := tasks.ChangePasswordMessage{
		UserID:   user.ID,
		Password: payload.Password,
	}

	if err := change.Execute(c.UserContext(), msg); err != nil {
		a.Logger.Error("ChangePassword error: %v", err)
		return err
	}

	return sendData(c, fiber.StatusOK, nil)
}
