package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
)

// Mail is a composed plain-text email.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends composed mail.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"noreply@localhost"`
}

// SMTPMailer sends mail through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	m := &SMTPMailer{
		addr: net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		from: cfg.From,
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m
}

// Send delivers m. net/smtp has no context support, so ctx is only checked
// before dialling.
func (s *SMTPMailer) Send(ctx context.Context, m Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{m.To}, []byte(s.format(m))); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (s *SMTPMailer) format(m Mail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(m.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(m.Subject)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(m.Body)
	return b.String()
}

// headerValue folds line breaks so a value cannot start a new header.
func headerValue(v string) string {
	return strings.Join(strings.FieldsFunc(v, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}

// Compose turns a queued message into mail. baseURL prefixes the
// registrations link, e.g. "https://echo.uib.no/registrations/".
func Compose(msg Message, baseURL string) (Mail, error) {
	if msg.To == "" {
		return Mail{}, fmt.Errorf("message %s has no recipient", msg.ID)
	}
	switch msg.Kind {
	case KindConfirmation:
		return composeConfirmation(msg), nil
	case KindRegistrationsLink:
		if msg.RegistrationsLink == "" {
			return Mail{}, fmt.Errorf("message %s has no registrations link", msg.ID)
		}
		return Mail{
			To:      msg.To,
			Subject: fmt.Sprintf("Registrations for %s", titleOrSlug(msg)),
			Body: fmt.Sprintf("Hi!\n\nThe registrations for %s are available at\n\n%s%s\n\nKeep this link private.\n",
				titleOrSlug(msg), baseURL, msg.RegistrationsLink),
		}, nil
	}
	return Mail{}, fmt.Errorf("message %s has unknown kind %q", msg.ID, msg.Kind)
}

func composeConfirmation(msg Message) Mail {
	greeting := "Hi!"
	if msg.FirstName != "" {
		greeting = fmt.Sprintf("Hi %s!", msg.FirstName)
	}
	if msg.WaitListPosition != nil {
		return Mail{
			To:      msg.To,
			Subject: fmt.Sprintf("You are on the wait list for %s", msg.Slug),
			Body: fmt.Sprintf("%s\n\nYou are number %d on the wait list for %s. "+
				"We will let you know if a spot opens up.\n", greeting, *msg.WaitListPosition, msg.Slug),
		}
	}
	return Mail{
		To:      msg.To,
		Subject: fmt.Sprintf("Registration confirmed for %s", msg.Slug),
		Body:    fmt.Sprintf("%s\n\nYou have a spot at %s. See you there!\n", greeting, msg.Slug),
	}
}

func titleOrSlug(msg Message) string {
	if msg.Title != "" {
		return msg.Title
	}
	return msg.Slug
}
