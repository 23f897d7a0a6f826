// internal/realtime/conn.go
package realtime

import (
	"sync"
	"time"

	"github.com/davem/wrenchd/internal/auth"
	"github.com/davem/wrenchd/internal/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Send buffer size for outbound messages
	sendBufferSize = 256

	// Time allowed to write a message
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message
	pongWait = 30 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = 25 * time.Second

	// Maximum inbound message size
	maxMessageSize = 64 * 1024
)

// Conn is one WebSocket connection. It may carry at most one Session,
// established by the authenticate event; the connection ID doubles as the
// session ID.
type Conn struct {
	id        string
	ws        *websocket.Conn
	svc       *Service
	identity  *auth.Identity // from the upgrade token
	mu        sync.Mutex
	session   *Session // nil until authenticated
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// newConn wraps an upgraded websocket.
func (s *Service) newConn(ws *websocket.Conn, identity *auth.Identity) *Conn {
	return &Conn{
		id:       uuid.New().String(),
		ws:       ws,
		svc:      s,
		identity: identity,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
}

// ID returns the connection ID.
func (c *Conn) ID() string {
	return c.id
}

// SendMessage queues a message. Messages to a full buffer are dropped; the
// fabric is best-effort.
func (c *Conn) SendMessage(msg *Message) {
	data, err := msg.Encode()
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		log.Warn("realtime: send buffer full, dropping message", "conn_id", c.id, "event", msg.Event)
	}
}

// Close tears the connection down. Disconnection is the only cancellation
// primitive: it removes the session from the registry and all rooms.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			c.ws.Close()
		}
		c.svc.registry.Unregister(c.id)
		c.svc.router.Leave(c.id)
	})
}

// ReadPump reads messages from the WebSocket connection.
func (c *Conn) ReadPump() {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug("realtime: read error", "conn_id", c.id, "error", err.Error())
			}
			return
		}

		msg, err := DecodeMessage(data)
		if err != nil {
			log.Debug("realtime: invalid message", "conn_id", c.id, "error", err.Error())
			continue
		}

		c.handleMessage(msg)
	}
}

// WritePump writes queued messages and keepalive pings.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleMessage routes incoming events.
func (c *Conn) handleMessage(msg *Message) {
	log.Debug("realtime: message", "conn_id", c.id, "event", msg.Event)

	switch msg.Event {
	case EventAuthenticate:
		c.handleAuthenticate(msg)
	case EventJoinAdminRoom:
		c.handleJoinAdminRoom()
	case EventJoinUserRoom:
		c.handleJoinUserRoom(msg)
	case EventResponse:
		c.handleResponse(msg)
	default:
		log.Debug("realtime: unknown event", "conn_id", c.id, "event", msg.Event)
	}
}

// handleAuthenticate establishes the Session and auto-joins the rooms the
// role implies. Re-authentication recomputes memberships.
func (c *Conn) handleAuthenticate(msg *Message) {
	var payload AuthenticatePayload
	if err := msg.DecodePayload(&payload); err != nil {
		c.sendAuthResult(false, "", "", "invalid authenticate payload")
		return
	}

	role, err := auth.ParseRole(payload.Role)
	if err != nil {
		c.sendAuthResult(false, "", "", err.Error())
		return
	}

	// The upgrade token already proved an identity; the handshake must
	// agree with it.
	if c.identity != nil && c.identity.UserID != payload.UserID {
		log.Warn("realtime: authenticate user mismatch",
			"conn_id", c.id, "token_user", c.identity.UserID, "payload_user", payload.UserID)
		c.sendAuthResult(false, "", "", "user does not match connection token")
		return
	}

	session := &Session{
		ID:     c.id,
		UserID: payload.UserID,
		Role:   role,
		conn:   c,
	}

	evicted := c.svc.registry.Register(session)
	if evicted != nil {
		// Last write wins: the previous session for this user loses its
		// registry entry and rooms, even if its socket is still up.
		c.svc.router.Leave(evicted.ID)
		log.Debug("realtime: evicted previous session",
			"user_id", payload.UserID, "old_session", evicted.ID, "new_session", c.id)
	}
	c.svc.router.Enroll(session)

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.sendAuthResult(true, payload.UserID, payload.Role, "")
	log.Info("realtime: session authenticated",
		"conn_id", c.id, "user_id", payload.UserID, "role", payload.Role)
}

func (c *Conn) sendAuthResult(success bool, userID, role, message string) {
	msg, err := NewMessage(EventAuthenticated, &AuthenticatedPayload{
		Success: success,
		UserID:  userID,
		Role:    role,
		Message: message,
	})
	if err != nil {
		return
	}
	c.SendMessage(msg)
}

// Session returns the current session, or nil before authentication.
func (c *Conn) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// handleJoinAdminRoom is the manual admin-room join. Idempotent; only
// privileged sessions may join.
func (c *Conn) handleJoinAdminRoom() {
	session := c.Session()
	if session == nil {
		return
	}
	if !session.Role.Privileged() {
		log.Warn("realtime: unprivileged admin-room join rejected",
			"conn_id", c.id, "user_id", session.UserID, "role", session.Role.String())
		return
	}
	c.svc.router.JoinAdminRoom(session)
}

// handleJoinUserRoom is the manual user-room join. Idempotent. A session
// may only join its own user room.
func (c *Conn) handleJoinUserRoom(msg *Message) {
	session := c.Session()
	if session == nil {
		return
	}

	var payload JoinUserRoomPayload
	if err := msg.DecodePayload(&payload); err != nil {
		return
	}
	if payload.UserID != session.UserID {
		log.Warn("realtime: cross-user room join rejected",
			"conn_id", c.id, "user_id", session.UserID, "target", payload.UserID)
		return
	}
	c.svc.router.JoinUserRoom(session, payload.UserID)
}

// handleResponse relays a notification reply to the admin room.
func (c *Conn) handleResponse(msg *Message) {
	session := c.Session()
	if session == nil {
		return
	}

	var payload ResponsePayload
	if err := msg.DecodePayload(&payload); err != nil {
		return
	}
	c.svc.dispatcher.HandleResponse(session, payload.NotificationID, payload.Response)
}
