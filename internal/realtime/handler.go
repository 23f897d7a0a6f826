// internal/realtime/handler.go
package realtime

import (
	"net/http"
	"strings"

	"github.com/davem/wrenchd/internal/log"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled at the router
	},
}

// HandleWebSocket validates the access token and upgrades the request.
// Malformed events past this boundary are dropped, not fatal.
func (s *Service) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	identity, err := s.tokens.IdentityFromToken(token)
	if err != nil {
		log.Debug("realtime: rejected upgrade", "error", err.Error())
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("realtime: upgrade failed", "error", err.Error())
		return
	}

	conn := s.newConn(ws, identity)
	log.Debug("realtime: new connection", "conn_id", conn.ID(), "user_id", identity.UserID)

	go conn.WritePump()
	go conn.ReadPump()
}
