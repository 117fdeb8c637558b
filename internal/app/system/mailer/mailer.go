// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/waffle/pantry/email"
	"go.uber.org/zap"
)

// Email is one outgoing message.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Config describes the SMTP relay. An empty Host puts the Mailer in log-only
// mode, which is what local development uses.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	UseSSL   bool // implicit TLS; STARTTLS otherwise
	Timeout  time.Duration
}

// sender is the part of email.Sender the Mailer drives.
type sender interface {
	Send(ctx context.Context, msg email.Message) error
}

// Mailer sends Email through the configured relay.
type Mailer struct {
	cfg Config
	log *zap.Logger
	out sender
}

var ErrNoRecipient = errors.New("mailer: email has no recipient")

func New(cfg Config, logger *zap.Logger) *Mailer {
	m := &Mailer{cfg: cfg, log: logger}
	if cfg.Host != "" {
		m.out = email.NewSender(email.Config{
			Host:        cfg.Host,
			Port:        cfg.Port,
			Username:    cfg.Username,
			Password:    cfg.Password,
			FromAddress: cfg.From,
			FromName:    cfg.FromName,
			UseSSL:      cfg.UseSSL,
			Timeout:     cfg.Timeout,
		})
	}
	return m
}

// Enabled reports whether messages leave the process.
func (m *Mailer) Enabled() bool { return m != nil && m.out != nil }

// Send delivers e. In log-only mode the message is logged and dropped.
func (m *Mailer) Send(ctx context.Context, e Email) error {
	if e.To == "" {
		return ErrNoRecipient
	}
	if !m.Enabled() {
		if m != nil {
			m.log.Info("mail (log only)",
				zap.String("to", e.To),
				zap.String("subject", e.Subject),
				zap.String("body", e.TextBody))
		}
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := email.Message{
		To:       []string{e.To},
		Subject:  e.Subject,
		TextBody: e.TextBody,
		HTMLBody: e.HTMLBody,
	}
	if err := m.out.Send(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", e.To, err)
	}
	m.log.Debug("mail sent", zap.String("to", e.To), zap.String("subject", e.Subject))
	return nil
}
