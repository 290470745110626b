package mailer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/sitebook/internal/model"
)

// ErrDisabled is returned when mail settings are incomplete.
var ErrDisabled = errors.New("mail is not configured")

// Mailer sends composed messages over SMTP and keeps a copy in the
// configured Sent mailbox when IMAP is set up.
type Mailer struct {
	cfg    model.MailConfig
	smtp   SMTPConfig
	imap   *IMAPClient
	logger *log.Logger
	now    func() time.Time
	send   func(cfg SMTPConfig, from string, to []string, raw []byte) error
}

// New builds a Mailer from the mail config and the password held in the
// keyring. SMTP and IMAP share the same account.
func New(cfg model.MailConfig, password string, logger *log.Logger) *Mailer {
	if logger == nil {
		logger = log.Default()
	}
	m := &Mailer{
		cfg: cfg,
		smtp: SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.Username,
			Password: password,
			TLS:      cfg.TLS,
		},
		logger: logger,
		now:    time.Now,
		send:   sendSMTP,
	}
	if cfg.IMAPHost != "" && cfg.SentMailbox != "" {
		m.imap = NewIMAPClient(cfg.IMAPHost, cfg.IMAPPort, cfg.Username, password, cfg.TLS)
	}
	return m
}

// Enabled reports whether Send can deliver mail.
func (m *Mailer) Enabled() bool {
	return m != nil && m.cfg.Enabled()
}

// Send composes and delivers msg. A failure to file the Sent copy is
// logged but does not fail the send, since the message already left.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if !m.Enabled() {
		return ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := m.now()
	raw, err := Compose(m.cfg.From, msg, now)
	if err != nil {
		return err
	}

	from, err := mail.ParseAddress(m.cfg.From)
	if err != nil {
		return fmt.Errorf("parsing sender %q: %w", m.cfg.From, err)
	}
	rcpts := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		addr, err := mail.ParseAddress(to)
		if err != nil {
			return fmt.Errorf("parsing recipient %q: %w", to, err)
		}
		rcpts = append(rcpts, addr.Address)
	}

	if err := m.send(m.smtp, from.Address, rcpts, raw); err != nil {
		return fmt.Errorf("sending %q: %w", msg.Subject, err)
	}
	m.logger.Printf("mailer: sent %q to %v", msg.Subject, rcpts)

	if m.imap != nil {
		if err := m.imap.Append(ctx, m.cfg.SentMailbox, raw, now); err != nil {
			m.logger.Printf("mailer: filing sent copy of %q: %v", msg.Subject, err)
		}
	}
	return nil
}
