package mailer

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

const dialTimeout = 30 * time.Second

// AuthError reports that a mail server rejected the credentials.
type AuthError struct {
	Server string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Server, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// SMTPConfig holds SMTP server settings for sending mail.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool
}

func (c SMTPConfig) addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// sendSMTP delivers raw over implicit TLS or STARTTLS, matching the
// IMAP connection mode.
func sendSMTP(cfg SMTPConfig, from string, to []string, raw []byte) error {
	if cfg.TLS {
		return sendSMTPWithTLS(cfg, from, to, raw)
	}
	return sendSMTPWithStartTLS(cfg, from, to, raw)
}

// sendSMTPWithTLS sends email over an implicit TLS connection (port 465).
func sendSMTPWithTLS(cfg SMTPConfig, from string, to []string, raw []byte) error {
	tlsConfig := &tls.Config{ServerName: cfg.Host}
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", cfg.addr(), tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS dial to %s: %w", cfg.addr(), err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if err := authenticate(client, cfg); err != nil {
		return err
	}
	return deliver(client, from, to, raw)
}

// sendSMTPWithStartTLS connects in plain text and upgrades with
// STARTTLS (port 587).
func sendSMTPWithStartTLS(cfg SMTPConfig, from string, to []string, raw []byte) error {
	conn, err := net.DialTimeout("tcp", cfg.addr(), dialTimeout)
	if err != nil {
		return fmt.Errorf("dialing SMTP %s: %w", cfg.addr(), err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
		return fmt.Errorf("STARTTLS: %w", err)
	}

	if err := authenticate(client, cfg); err != nil {
		return err
	}
	return deliver(client, from, to, raw)
}

func authenticate(client *smtp.Client, cfg SMTPConfig) error {
	if cfg.Username == "" {
		return nil
	}
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return &AuthError{Server: cfg.addr(), Err: err}
	}
	return nil
}

// deliver runs the MAIL/RCPT/DATA exchange on an authenticated client.
func deliver(client *smtp.Client, from string, to []string, raw []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing message body: %w", err)
	}

	return client.Quit()
}
