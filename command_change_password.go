package tasks

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	UserID     uuid.UUID `json:"-"`
	Password   string    `json:"password"`
	OnResponse func(user *User)
}

func (p ChangePasswordMessage) Type() string { return "user.change_password" }

// ChangePasswordHandler replaces the password of an authenticated user.
// Any pending reset token is cleared along with the old hash.
type ChangePasswordHandler struct {
	repo   RepositoryManager
	policy PasswordPolicy
}

func NewChangePasswordHandler(repo RepositoryManager, policy PasswordPolicy) *ChangePasswordHandler {
	return &ChangePasswordHandler{repo: repo, policy: policy}
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if !h.policy.Validate(event.Password) {
		return ErrPasswordPolicy
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByIDWithPasswordTx(ctx, tx, event.UserID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password change")
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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to change password")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
