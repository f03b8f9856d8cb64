package mailer

import (
	"context"

	"github.com/Daskott/luna/shared"
	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"
)

const ErrMissingConfig = "Missing SMTP env vars"

// Result reports the outcome of a single email delivery.
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Mailer sends plain text emails through an SMTP relay using STARTTLS.
type Mailer struct {
	config shared.SmtpConfig
	send   func(ctx context.Context, msg *mail.Msg) error
}

func New(config shared.SmtpConfig) *Mailer {
	m := &Mailer{config: config}
	m.send = m.dialAndSend
	return m
}

// Configured reports whether user, password and sender are all set.
func (m *Mailer) Configured() bool {
	return m.config.User != "" && m.config.Pass != "" && m.from() != ""
}

// SendEmail delivers one message. Without SMTP credentials it fails immediately
// and never touches the network.
func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) Result {
	if !m.Configured() {
		return Result{Error: ErrMissingConfig}
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from()); err != nil {
		return Result{Error: errors.Wrap(err, "invalid sender").Error()}
	}
	if err := msg.To(to); err != nil {
		return Result{Error: errors.Wrapf(err, "invalid recipient %q", to).Error()}
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.send(ctx, msg); err != nil {
		return Result{Error: err.Error()}
	}

	return Result{OK: true}
}

func (m *Mailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(m.host(),
		mail.WithPort(m.port()),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.config.User),
		mail.WithPassword(m.config.Pass),
	)
	if err != nil {
		return errors.Wrap(err, "mailer.dialAndSend")
	}

	return client.DialAndSendWithContext(ctx, msg)
}

func (m *Mailer) from() string {
	if m.config.From != "" {
		return m.config.From
	}
	return m.config.User
}

func (m *Mailer) host() string {
	if m.config.Host == "" {
		return "smtp.gmail.com"
	}
	return m.config.Host
}

func (m *Mailer) port() int {
	if m.config.Port == 0 {
		return 587
	}
	return m.config.Port
}
