// internal/app/system/mailer/mailer.go

// Package mailer sends the sign-in and registration emails.
package mailer

import (
	"fmt"
	"mime/quotedprintable"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Email is a single outbound message with both bodies.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers emails. Handlers depend on this interface so tests can
// capture what would have been sent.
type Sender interface {
	Send(email Email) error
}

// Mailer sends email over SMTP. With no host configured it logs the
// message instead, which is what local development wants.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *zap.Logger
}

// New creates a Mailer.
func New(host string, port int, username, password, from string, logger *zap.Logger) *Mailer {
	return &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		logger:   logger,
	}
}

// Send delivers one email.
func (m *Mailer) Send(email Email) error {
	if m.host == "" {
		m.logger.Info("mail delivery skipped (no smtp host configured)",
			zap.String("to", email.To),
			zap.String("subject", email.Subject),
			zap.String("text_body", email.TextBody))
		return nil
	}

	msg, err := buildMessage(m.from, email)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := smtp.SendMail(addr, auth, m.from, []string{email.To}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", email.To, err)
	}

	m.logger.Info("mail sent",
		zap.String("to", email.To),
		zap.String("subject", email.Subject))
	return nil
}

// buildMessage assembles a multipart/alternative MIME message so clients
// can pick the HTML or plain text body.
func buildMessage(from string, email Email) ([]byte, error) {
	const boundary = "piglet-mail-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", email.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", email.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	for _, part := range []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=UTF-8", email.TextBody},
		{"text/html; charset=UTF-8", email.HTMLBody},
	} {
		if part.body == "" {
			continue
		}
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: %s\r\n", part.contentType)
		b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
		qp := quotedprintable.NewWriter(&b)
		if _, err := qp.Write([]byte(part.body)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	return []byte(b.String()), nil
}
