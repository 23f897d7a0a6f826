// internal/realtime/registry.go
package realtime

import (
	"sync"

	"github.com/davem/wrenchd/internal/auth"
)

// Session is one authenticated realtime connection. The session ID is the
// underlying connection ID, so a tab that re-authenticates keeps its ID.
type Session struct {
	ID     string
	UserID string
	Role   auth.Role
	conn   sender
}

// sender is the outbound half of a connection. Conn implements it; tests
// substitute a recording fake.
type sender interface {
	SendMessage(msg *Message)
}

// Send pushes a message to the session's connection. Fire-and-forget.
func (s *Session) Send(event string, payload any) {
	msg, err := NewMessage(event, payload)
	if err != nil {
		return
	}
	s.conn.SendMessage(msg)
}

// Registry maps user IDs to their single active session. A new
// authentication silently evicts the previous mapping entry, even if the old
// socket is still connected. Multi-device support would need a session set
// per user.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Session
	byID   map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*Session),
		byID:   make(map[string]*Session),
	}
}

// Register inserts or overwrites the mapping for the session's user.
// It never fails. The evicted session for that user is returned, or nil.
func (r *Registry) Register(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A re-authentication on the same connection may switch users; drop the
	// stale user mapping first.
	if prev, ok := r.byID[s.ID]; ok && prev.UserID != s.UserID {
		if cur, ok := r.byUser[prev.UserID]; ok && cur.ID == s.ID {
			delete(r.byUser, prev.UserID)
		}
	}

	evicted := r.byUser[s.UserID]
	if evicted != nil && evicted.ID == s.ID {
		evicted = nil
	}

	r.byUser[s.UserID] = s
	r.byID[s.ID] = s
	return evicted
}

// Unregister removes the session with the given ID. It is a no-op if the ID
// is unknown, and it leaves the user mapping alone when the user has since
// re-registered under a different session.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[sessionID]
	if !ok {
		return
	}
	delete(r.byID, sessionID)

	if cur, ok := r.byUser[s.UserID]; ok && cur.ID == sessionID {
		delete(r.byUser, s.UserID)
	}
}

// Lookup returns the live session for a user, if any.
func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUser[userID]
	return s, ok
}

// Get returns a session by its ID.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[sessionID]
	return s, ok
}

// All returns a snapshot of every registered session.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	return sessions
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
