// AngelaMos | 2026
// mailer.go

package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"

	"gopkg.in/gomail.v2"

	"github.com/angelamos/consultancy-api/internal/config"
)

const verificationSubject = "Verify your email address"

var verificationTemplate = template.Must(template.New("verify").Parse(`<p>Hello {{.Name}},</p>
<p>Thanks for signing up with {{.AppName}}. Confirm your email address by opening the link below:</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>The link expires in 24 hours. If you did not create an account you can ignore this message.</p>`))

type verificationData struct {
	Name    string
	AppName string
	Link    string
}

// SMTPMailer delivers mail through a single SMTP relay.
type SMTPMailer struct {
	dialer  *gomail.Dialer
	from    string
	appName string
}

func NewSMTPMailer(cfg config.MailConfig, appName string) *SMTPMailer {
	m := gomail.NewMessage()
	return &SMTPMailer{
		dialer: gomail.NewDialer(
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.Username,
			cfg.Password,
		),
		from:    m.FormatAddress(cfg.FromEmail, cfg.FromName),
		appName: appName,
	}
}

func (s *SMTPMailer) SendVerification(
	ctx context.Context,
	to, name, link string,
) error {
	body, err := renderVerification(name, s.appName, link)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", verificationSubject)
	m.SetBody("text/html", body)

	return s.send(ctx, m)
}

// send honours ctx cancellation; gomail itself has no context support, so a
// cancelled send may still complete in the background.
func (s *SMTPMailer) send(ctx context.Context, m *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

// LogMailer writes outgoing mail to the logger. Used when mail is disabled.
// The verification token is masked unless revealLinks is set.
type LogMailer struct {
	logger      *slog.Logger
	revealLinks bool
}

func NewLogMailer(logger *slog.Logger, revealLinks bool) *LogMailer {
	return &LogMailer{logger: logger, revealLinks: revealLinks}
}

func (l *LogMailer) SendVerification(
	_ context.Context,
	to, _, link string,
) error {
	if !l.revealLinks {
		link = redactToken(link)
	}
	l.logger.Info("verification email",
		"to", to,
		"link", link,
	)
	return nil
}

const redacted = "REDACTED"

func redactToken(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return redacted
	}

	q := u.Query()
	if !q.Has("token") {
		return link
	}
	q.Set("token", redacted)
	u.RawQuery = q.Encode()
	return u.String()
}

// New picks the SMTP mailer when mail is enabled.
func New(cfg config.MailConfig, appName string, logger *slog.Logger) Sender {
	if cfg.Enabled {
		return NewSMTPMailer(cfg, appName)
	}
	return NewLogMailer(logger, cfg.LogLinks)
}

type Sender interface {
	SendVerification(ctx context.Context, to, name, link string) error
}

func renderVerification(name, appName, link string) (string, error) {
	var buf bytes.Buffer
	err := verificationTemplate.Execute(&buf, verificationData{
		Name:    name,
		AppName: appName,
		Link:    link,
	})
	if err != nil {
		return "", fmt.Errorf("render verification email: %w", err)
	}
	return buf.String(), nil
}
