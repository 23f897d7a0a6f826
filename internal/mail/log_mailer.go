// internal/mail/log_mailer.go
package mail

import (
	"context"
	"fmt"

	"github.com/davem/wrenchd/internal/log"
)

// LogMailer writes emails to the application log instead of sending them.
// This is the default in development.
type LogMailer struct{}

// NewLogMailer creates a new LogMailer.
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// Send logs the email.
func (m *LogMailer) Send(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	body := msg.BodyText
	if body == "" {
		body = msg.BodyHTML
	}
	log.Info("email (log mode, not sent)",
		"type", msg.Type,
		"to", msg.To,
		"subject", msg.Subject,
		"body", body)
	return nil
}
