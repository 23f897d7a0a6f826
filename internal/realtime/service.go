// internal/realtime/service.go
package realtime

import (
	"github.com/davem/wrenchd/internal/auth"
	"github.com/samber/lo"
)

// TokenValidator proves the identity behind an upgrade token. auth.Service
// implements it.
type TokenValidator interface {
	IdentityFromToken(token string) (*auth.Identity, error)
}

// Service owns the fabric: registry, router and dispatcher. It is created
// by the server composition root and handed to CRUD handlers that trigger
// notifications; there is no process-global instance.
type Service struct {
	registry   *Registry
	router     *Router
	dispatcher *Dispatcher
	tokens     TokenValidator
}

// NewService wires the fabric together.
func NewService(tokens TokenValidator) *Service {
	registry := NewRegistry()
	router := NewRouter(registry)
	return &Service{
		registry:   registry,
		router:     router,
		dispatcher: NewDispatcher(registry, router),
		tokens:     tokens,
	}
}

// Dispatcher returns the push interface for CRUD handlers.
func (s *Service) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Registry returns the connection registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Router returns the room router.
func (s *Service) Router() *Router {
	return s.router
}

// Stats describes the live fabric for the admin API.
type Stats struct {
	Sessions int         `json:"sessions"`
	Rooms    int         `json:"rooms"`
	Details  []RoomStats `json:"room_details"`
}

// RoomStats describes one room.
type RoomStats struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// Stats returns a snapshot of sessions and rooms.
func (s *Service) Stats() Stats {
	s.router.mu.RLock()
	details := lo.MapToSlice(s.router.rooms, func(name string, members map[string]*Session) RoomStats {
		return RoomStats{Name: name, Members: len(members)}
	})
	s.router.mu.RUnlock()

	return Stats{
		Sessions: s.registry.Count(),
		Rooms:    len(details),
		Details:  details,
	}
}
