// internal/realtime/rooms.go
package realtime

import (
	"sync"
)

// AdminRoom is the shared room for privileged sessions.
const AdminRoom = "admin-room"

// UserRoom names the per-user room.
func UserRoom(userID string) string {
	return "user-" + userID
}

// Scope is the targeting rule used to resolve which sessions receive a push.
type Scope struct {
	kind   scopeKind
	userID string
}

type scopeKind int

const (
	scopeUser scopeKind = iota
	scopeAdmins
	scopeGlobal
)

// User targets the single user's room.
func User(userID string) Scope { return Scope{kind: scopeUser, userID: userID} }

// AdminBroadcast targets every privileged session.
func AdminBroadcast() Scope { return Scope{kind: scopeAdmins} }

// GlobalBroadcast targets every connected session.
func GlobalBroadcast() Scope { return Scope{kind: scopeGlobal} }

// Router groups sessions into broadcast rooms. Membership is a pure function
// of the session's role at its last authentication; Enroll recomputes it on
// every (re)authentication event.
type Router struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]*Session // room -> sessionID -> session
	registry *Registry                      // global scope resolves here
}

// NewRouter creates a router backed by the given registry.
func NewRouter(registry *Registry) *Router {
	return &Router{
		rooms:    make(map[string]map[string]*Session),
		registry: registry,
	}
}

// Enroll recomputes the session's room memberships: always the own-user
// room, plus the admin room iff the role is privileged. Called exactly once
// per authentication event.
func (r *Router) Enroll(s *Session) {
	r.Leave(s.ID)
	r.JoinUserRoom(s, s.UserID)
	if s.Role.Privileged() {
		r.JoinAdminRoom(s)
	}
}

// JoinUserRoom adds the session to a user room. Idempotent.
func (r *Router) JoinUserRoom(s *Session, userID string) {
	r.join(UserRoom(userID), s)
}

// JoinAdminRoom adds the session to the admin room. Idempotent.
func (r *Router) JoinAdminRoom(s *Session) {
	r.join(AdminRoom, s)
}

func (r *Router) join(room string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]*Session)
		r.rooms[room] = members
	}
	members[s.ID] = s
}

// Leave removes the session from every room, dropping rooms that become
// empty.
func (r *Router) Leave(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room, members := range r.rooms {
		if _, ok := members[sessionID]; ok {
			delete(members, sessionID)
			if len(members) == 0 {
				delete(r.rooms, room)
			}
		}
	}
}

// Resolve returns a snapshot of the sessions a scope targets. A session
// joining after the snapshot does not retroactively receive anything sent
// against it.
func (r *Router) Resolve(scope Scope) []*Session {
	switch scope.kind {
	case scopeGlobal:
		return r.registry.All()
	case scopeAdmins:
		return r.members(AdminRoom)
	default:
		return r.members(UserRoom(scope.userID))
	}
}

func (r *Router) members(room string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[room]
	if !ok {
		return nil
	}
	sessions := make([]*Session, 0, len(members))
	for _, s := range members {
		sessions = append(sessions, s)
	}
	return sessions
}

// RoomCount returns the number of non-empty rooms.
func (r *Router) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// InRoom reports whether a session is a member of a room.
func (r *Router) InRoom(sessionID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	_, ok = members[sessionID]
	return ok
}
