// Package email is the outbound mail collaborator used by the
// registration verification flow. Failures surface as opaque internal
// errors to callers; the root cause is logged in full.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Messager sends pre-rendered HTML mail. The verification flow blocks on
// SendHTML until the attempt completes or fails.
type Messager interface {
	Available() bool
	SendHTML(ctx context.Context, to, subject, htmlBody string) error
}

// LogMessager logs instead of sending. Default when SMTP is not
// configured; Available is false so code-gated flows stay disabled.
type LogMessager struct {
	Logger *slog.Logger
}

func (m *LogMessager) Available() bool { return false }

func (m *LogMessager) SendHTML(_ context.Context, to, subject, _ string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email delivery skipped, no messager configured", "to", to, "subject", subject)
	return nil
}

type SMTPMessager struct {
	addr     string // host:port
	from     string
	username string
	password string
}

func NewSMTPMessager(addr, from, username, password string) *SMTPMessager {
	return &SMTPMessager{addr: addr, from: from, username: username, password: password}
}

func (m *SMTPMessager) Available() bool { return m.addr != "" && m.from != "" }

func (m *SMTPMessager) SendHTML(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if m.username != "" {
		host := m.addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", m.username, m.password, host)
	}
	msg := buildMessage(m.from, to, subject, htmlBody)
	if err := smtp.SendMail(m.addr, auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
