package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email string `json:"email"`
	// ResetURL is the link prefix the token gets appended to, taken
	// from the inbound request's base URL.
	ResetURL   string `json:"-"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	User      *User
	Token     string
	ExpiresAt time.Time
	Success   bool
}

// InitializePasswordResetHandler stamps a fresh reset token on an
// active account and dispatches the notification. Issuing a new token
// replaces any previous one still pending.
type InitializePasswordResetHandler struct {
	repo   RepositoryManager
	mailer Mailer
	window time.Duration
	logger Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, mailer Mailer, window time.Duration, logger Logger) *InitializePasswordResetHandler {
	if window <= 0 {
		window = DefaultResetTokenWindow
	}
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}
	if logger == nil {
		logger = defLogger{}
	}
	return &InitializePasswordResetHandler{
		repo:   repo,
		mailer: mailer,
		window: window,
		logger: logger,
	}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		if !user.IsActive {
			return ErrResetNotAllowed
		}

		token, err := GenerateResetToken()
		if err != nil {
			return err
		}

		expiresAt := time.Now().Add(h.window)
		if user, err = h.repo.Users().SetResetTokenTx(ctx, tx, user.ID, token, expiresAt); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist password reset token")
		}

		resp.User = user
		resp.Token = token
		resp.ExpiresAt = expiresAt

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	// The token already persisted; a delivery failure still has to reach
	// the caller so the client knows no link went out.
	if err := h.dispatchNotification(ctx, resp.User.Email, event.ResetURL, resp.Token); err != nil {
		return err
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *InitializePasswordResetHandler) dispatchNotification(ctx context.Context, email, resetURL, token string) error {
	link := token
	if resetURL != "" {
		link = strings.TrimSuffix(resetURL, "/") + "/" + token
	}

	msg := MailMessage{
		To:      email,
		Subject: "Password reset",
		Body:    fmt.Sprintf("Use the following link to reset your password:\n%s\n\nThe link expires in %s.", link, h.window),
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		h.logger.Error("password reset notification error: %v", err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send password reset notification")
	}

	return nil
}
