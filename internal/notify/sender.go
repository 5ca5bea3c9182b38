// internal/notify/sender.go
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	commonaws "builder-licensing/internal/common/aws"
	"builder-licensing/internal/common/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Sender delivers one rendered email. A non-nil error counts as a declined
// send; the drainer translates it into retry accounting, never a crash.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPSender delivers via plain SMTP or STARTTLS.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
	from     string
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		useTLS:   cfg.UseTLS,
		from:     cfg.From,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before sending email: %w", err)
	}

	message := s.buildMessage(to, subject, html)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" && s.password != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if s.useTLS {
		return s.sendWithTLS(addr, auth, to, []byte(message))
	}
	return smtp.SendMail(addr, auth, s.from, []string{to}, []byte(message))
}

func (s *SMTPSender) buildMessage(to, subject, html string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", s.from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return b.String()
}

func (s *SMTPSender) sendWithTLS(addr string, auth smtp.Auth, to string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		ServerName: s.host,
	}
	if err = client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err = client.Mail(s.from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

// SESSender delivers through Amazon SES.
type SESSender struct {
	client *commonaws.SESClient
	from   string
}

func NewSESSender(client *commonaws.SESClient, from string) *SESSender {
	return &SESSender{client: client, from: from}
}

func (s *SESSender) Send(ctx context.Context, to, subject, html string) error {
	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(html)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send failed: %w", err)
	}
	return nil
}

// NewSender picks the configured provider.
func NewSender(ctx context.Context, cfg config.EmailConfig) (Sender, error) {
	switch cfg.Provider {
	case "ses":
		client, err := commonaws.NewSESClient(ctx, cfg.SESRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to create SES client: %w", err)
		}
		return NewSESSender(client, cfg.From), nil
	default:
		return NewSMTPSender(cfg), nil
	}
}
