package notification

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTPConfig describes the smarthost used for outgoing mail
// Username and Password are optional, AUTH PLAIN is attempted only when both are set
type SMTPConfig struct {
	Addr     string // host:port
	From     string
	Hello    string
	Username string
	Password string
}

// SMTPSink delivers notifications as plain text mail through a single smarthost
// A fresh connection is dialed per message, license traffic is far too low to
// justify pooling
type SMTPSink struct {
	cfg SMTPConfig
}

func NewSMTPSink(cfg SMTPConfig) (*SMTPSink, error) {
	if cfg.Addr == "" {
		return nil, errors.New("smtp address is not set")
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("smtp 'from' address is not valid: %w", err)
	}
	if cfg.Hello == "" {
		cfg.Hello = "localhost"
	}

	return &SMTPSink{cfg: cfg}, nil
}

func (s *SMTPSink) NotifyLicenseCreated(ctx context.Context, email string, licenseKey string, expirationDate time.Time) error {
	subject := "Your license is ready"
	body := fmt.Sprintf(
		"Hello,\r\n\r\nYour license %s has been issued.\r\nIt is valid until %s.\r\n\r\nThe license binds itself to the first machine it is used on.\r\n",
		licenseKey, expirationDate.Format("2006-01-02"),
	)

	return s.send(ctx, email, subject, body)
}

func (s *SMTPSink) NotifyLicenseExpiringSoon(ctx context.Context, email string, licenseKey string, expirationDate time.Time) error {
	subject := "Your license expires soon"
	body := fmt.Sprintf(
		"Hello,\r\n\r\nYour license %s expires on %s.\r\nRenew it to keep the software running.\r\n",
		licenseKey, expirationDate.Format("2006-01-02"),
	)

	return s.send(ctx, email, subject, body)
}

func (s *SMTPSink) send(ctx context.Context, to string, subject string, body string) error {
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("recipient address is not valid: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := smtp.Dial(s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("dial smarthost: %w", err)
	}
	defer c.Close()

	if err := c.Hello(s.cfg.Hello); err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(s.cfg.From, nil); err != nil {
		return fmt.Errorf("sender identification: %w", err)
	}
	if err := c.Rcpt(to, nil); err != nil {
		return fmt.Errorf("recipient designation: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("message transmission: %w", err)
	}

	msg := &strings.Builder{}
	fmt.Fprintf(msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(msg, "To: %s\r\n", to)
	fmt.Fprintf(msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(msg, "MIME-Version: 1.0\r\n\r\n")
	msg.WriteString(body)

	if _, err := w.Write([]byte(msg.String())); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	return c.Quit()
}
