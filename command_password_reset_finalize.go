package tasks

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token      string `json:"token"`
	Password   string `json:"password"`
	OnResponse func(user *User)
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset_finalize" }

// FinalizePasswordResetHandler consumes a reset token and replaces the
// password. Lookup and consumption run in one transaction, so a token
// works exactly once.
type FinalizePasswordResetHandler struct {
	repo   RepositoryManager
	policy PasswordPolicy
}

func NewFinalizePasswordResetHandler(repo RepositoryManager, policy PasswordPolicy) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{repo: repo, policy: policy}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Token == "" {
		return ErrResetTokenInvalid
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByResetTokenTx(ctx, tx, event.Token, time.Now())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrResetTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		// token validity is decided before the password policy, so an
		// invalid token reports not found even with a bad password
		if !h.policy.Validate(event.Password) {
			return ErrPasswordPolicy
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		if err := h.repo.Users().ResetPasswordTx(ctx, tx, user.ID, hash); err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrResetTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to replace password")
		}

		user.ResetToken = ""
		user.ResetTokenExpiresAt = nil

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
