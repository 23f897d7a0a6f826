// internal/mail/memory_mailer.go
package mail

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CaughtEmail is a message held by the MemoryMailer.
type CaughtEmail struct {
	Message
	CreatedAt time.Time
}

// MemoryMailer keeps sent messages in memory instead of delivering them.
// Tests and local development inspect the mailbox through List.
type MemoryMailer struct {
	mu     sync.Mutex
	caught []CaughtEmail
}

// NewMemoryMailer creates a new MemoryMailer.
func NewMemoryMailer() *MemoryMailer {
	return &MemoryMailer{}
}

// Send stores the message.
func (m *MemoryMailer) Send(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caught = append(m.caught, CaughtEmail{Message: *msg, CreatedAt: time.Now()})
	return nil
}

// List returns the caught messages, oldest first.
func (m *MemoryMailer) List() []CaughtEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CaughtEmail, len(m.caught))
	copy(out, m.caught)
	return out
}

// Count returns the number of caught messages.
func (m *MemoryMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.caught)
}

// Clear empties the mailbox.
func (m *MemoryMailer) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caught = nil
}
