package tasks

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	UseHashid  bool
	OnResponse func(user *User)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates new accounts. Accounts start inactive
// with the default role; an admin flips them active later.
type RegisterUserHandler struct {
	repo   RepositoryManager
	policy PasswordPolicy
}

func NewRegisterUserHandler(repo RepositoryManager, policy PasswordPolicy) *RegisterUserHandler {
	return &RegisterUserHandler{repo: repo, policy: policy}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if !h.policy.Validate(event.Password) {
		return ErrPasswordPolicy
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.Role = RoleUser
		user.IsActive = false
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			if IsUniqueViolation(err) {
				return goerrors.Wrap(err, goerrors.CategoryConflict, ErrDuplicateValues.Message).
					WithTextCode("DUPLICATE_VALUES")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist user account")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
