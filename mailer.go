package tasks

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/goliatone/go-errors"
)

// MailMessage is the outbound email contract the auth flows produce.
type MailMessage struct {
	To      string
	Subject string
	Body    string
}

// Mailer dispatches password reset notifications. Delivery mechanics
// are an external concern; the flows only need a send that can fail.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

var _ Mailer = (*SMTPMailer)(nil)

// Send delivers the message, honoring context cancellation before the
// dial. The SMTP exchange itself is not cancellable mid-flight.
func (m *SMTPMailer) Send(ctx context.Context, msg MailMessage) error {
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.CategoryOperation, "context cancelled before email dispatch")
	default:
	}

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}

	from := m.From
	if m.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.FromName, m.From)
	}

	payload := strings.Join([]string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"",
		msg.Body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	if err := smtp.SendMail(addr, auth, m.From, []string{msg.To}, []byte(payload)); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to send email")
	}

	return nil
}

// logMailer prints the notification instead of delivering it. It is the
// default collaborator for development and tests.
type logMailer struct {
	logger Logger
}

// NewLogMailer returns a Mailer that only logs dispatches.
func NewLogMailer(logger Logger) Mailer {
	if logger == nil {
		logger = defLogger{}
	}
	return logMailer{logger: logger}
}

func (l logMailer) Send(_ context.Context, msg MailMessage) error {
	l.logger.Info("email dispatch to=%s subject=%q\n%s", msg.To, msg.Subject, msg.Body)
	return nil
}
