package notifications

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/librarium/librarium/internal/siteconfig"
)

// MailerPort sends one rendered notification email.
type MailerPort interface {
	Send(ctx context.Context, settings siteconfig.EmailSettings, to []string, subject, htmlBody string) error
}

// SMTPMailer delivers mail through the administrator-configured SMTP relay.
type SMTPMailer struct{}

// NewSMTPMailer constructs an SMTPMailer.
func NewSMTPMailer() *SMTPMailer {
	return &SMTPMailer{}
}

// Send delivers a multipart/alternative message with both a stripped text
// part and the HTML body.
func (m *SMTPMailer) Send(ctx context.Context, settings siteconfig.EmailSettings, to []string, subject, htmlBody string) error {
	if len(to) == 0 {
		return errors.New("notifications: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := settings.FromEmail
	if settings.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", settings.FromName), settings.FromEmail)
	}

	const boundary = "librarium-alt"
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/alternative; boundary=" + boundary + "\r\n")
	b.WriteString("\r\n")
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(HTMLToText(htmlBody) + "\r\n")
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(htmlBody + "\r\n")
	b.WriteString("--" + boundary + "--\r\n")

	var auth smtp.Auth
	if settings.Username != "" {
		auth = smtp.PlainAuth("", settings.Username, settings.Password, settings.Host)
	}
	addr := net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port))
	if err := smtp.SendMail(addr, auth, settings.FromEmail, to, []byte(b.String())); err != nil {
		return fmt.Errorf("notifications: send mail: %w", err)
	}
	return nil
}
