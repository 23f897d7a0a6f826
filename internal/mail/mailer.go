// Package mail sends order lifecycle email to clients.
package mail

import (
	"context"
	"fmt"
)

// Email types
const (
	TypeOrderReady     = "order_ready"
	TypeOrderDelivered = "order_delivered"
	TypeWelcome        = "welcome"
)

// Mail modes
const (
	ModeLog    = "log"
	ModeMemory = "memory"
	ModeSMTP   = "smtp"
)

// Message represents an email message.
type Message struct {
	To       string
	From     string
	Subject  string
	BodyHTML string
	BodyText string
	Type     string
}

// Validate checks if the message has all required fields.
func (m *Message) Validate() error {
	if m.To == "" {
		return fmt.Errorf("to address is required")
	}
	if m.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if m.BodyHTML == "" && m.BodyText == "" {
		return fmt.Errorf("body (html or text) is required")
	}
	return nil
}

// Mailer is the interface for sending emails.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// Config holds email configuration.
type Config struct {
	Mode     string // log, memory, smtp
	From     string // sender address
	ShopName string // signature name in templates
	SMTP     SMTPConfig
}

// NewMailer creates a Mailer for the configured mode.
func NewMailer(cfg *Config) (Mailer, error) {
	switch cfg.Mode {
	case "", ModeLog:
		return NewLogMailer(), nil
	case ModeMemory:
		return NewMemoryMailer(), nil
	case ModeSMTP:
		if err := cfg.SMTP.Validate(); err != nil {
			return nil, err
		}
		return NewSMTPMailer(cfg.SMTP), nil
	default:
		return nil, fmt.Errorf("unknown mail mode: %q", cfg.Mode)
	}
}
