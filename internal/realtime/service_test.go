// internal/realtime/service_test.go
package realtime

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/davem/wrenchd/internal/auth"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticTokens maps literal tokens to identities for handshake tests.
type staticTokens map[string]*auth.Identity

func (s staticTokens) IdentityFromToken(token string) (*auth.Identity, error) {
	if ident, ok := s[token]; ok {
		return ident, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func newWSTestServer(t *testing.T, tokens staticTokens) (*Service, *httptest.Server) {
	t.Helper()
	svc := NewService(tokens)
	ts := httptest.NewServer(http.HandlerFunc(svc.HandleWebSocket))
	t.Cleanup(ts.Close)
	return svc, ts
}

func dialWS(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "dial failed")
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) *Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err, "read failed")
	msg, err := DecodeMessage(data)
	require.NoError(t, err, "decode failed")
	return msg
}

func authenticate(t *testing.T, ws *websocket.Conn, userID, role string) {
	t.Helper()
	msg, err := NewMessage(EventAuthenticate, &AuthenticatePayload{UserID: userID, Role: role})
	require.NoError(t, err)
	data, err := msg.Encode()
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))

	reply := readEvent(t, ws)
	require.Equal(t, EventAuthenticated, reply.Event)

	var ack AuthenticatedPayload
	require.NoError(t, reply.DecodePayload(&ack))
	require.True(t, ack.Success, "authentication should succeed: %s", ack.Message)
	require.Equal(t, userID, ack.UserID)
	require.Equal(t, role, ack.Role)
}

func waitForSession(t *testing.T, svc *Service, userID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := svc.Registry().Lookup(userID); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session for user %s never registered", userID)
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	_, ts := newWSTestServer(t, staticTokens{})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticateAndReceivePush(t *testing.T) {
	tokens := staticTokens{
		"op-token": {UserID: "42", Role: auth.RoleOperator},
	}
	svc, ts := newWSTestServer(t, tokens)

	ws := dialWS(t, ts, "op-token")
	authenticate(t, ws, "42", "operator")
	waitForSession(t, svc, "42")

	payload := &NotificationPayload{
		ID:      "n1",
		Type:    TypeInfo,
		Title:   "Orden lista",
		Message: "Su vehículo está listo para recoger",
	}
	svc.Dispatcher().PushToUser("42", payload)

	msg := readEvent(t, ws)
	assert.Equal(t, EventNotification, msg.Event)

	var got NotificationPayload
	require.NoError(t, msg.DecodePayload(&got))
	assert.Equal(t, *payload, got)
}

func TestAuthenticateUserMismatchFails(t *testing.T) {
	tokens := staticTokens{
		"op-token": {UserID: "42", Role: auth.RoleOperator},
	}
	_, ts := newWSTestServer(t, tokens)

	ws := dialWS(t, ts, "op-token")

	msg, _ := NewMessage(EventAuthenticate, &AuthenticatePayload{UserID: "99", Role: "operator"})
	data, _ := msg.Encode()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))

	reply := readEvent(t, ws)
	require.Equal(t, EventAuthenticated, reply.Event)

	var ack AuthenticatedPayload
	require.NoError(t, reply.DecodePayload(&ack))
	assert.False(t, ack.Success)
}

func TestAdminSessionReceivesAdminPush(t *testing.T) {
	tokens := staticTokens{
		"admin-token": {UserID: "1", Role: auth.RoleAdmin},
		"user-token":  {UserID: "42", Role: auth.RoleUser},
	}
	svc, ts := newWSTestServer(t, tokens)

	adminWS := dialWS(t, ts, "admin-token")
	authenticate(t, adminWS, "1", "admin")
	userWS := dialWS(t, ts, "user-token")
	authenticate(t, userWS, "42", "user")
	waitForSession(t, svc, "1")
	waitForSession(t, svc, "42")

	svc.Dispatcher().PushToAdmins(&NotificationPayload{ID: "n1", Type: TypeWarning, Title: "Stock bajo"})

	msg := readEvent(t, adminWS)
	assert.Equal(t, EventAdminNotification, msg.Event)

	// The plain user must not see the admin push
	userWS.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := userWS.ReadMessage()
	assert.Error(t, err, "user session should time out with no admin push")
}

func TestNotificationResponseReachesAdmins(t *testing.T) {
	tokens := staticTokens{
		"admin-token": {UserID: "1", Role: auth.RoleAdmin},
		"user-token":  {UserID: "42", Role: auth.RoleUser},
	}
	svc, ts := newWSTestServer(t, tokens)

	adminWS := dialWS(t, ts, "admin-token")
	authenticate(t, adminWS, "1", "admin")
	userWS := dialWS(t, ts, "user-token")
	authenticate(t, userWS, "42", "user")
	waitForSession(t, svc, "1")
	waitForSession(t, svc, "42")

	msg, _ := NewMessage(EventResponse, &ResponsePayload{
		NotificationID: "n-123",
		Response:       "Autorizo la reparación",
	})
	data, _ := msg.Encode()
	require.NoError(t, userWS.WriteMessage(websocket.TextMessage, data))

	got := readEvent(t, adminWS)
	assert.Equal(t, EventAdminNotification, got.Event)

	var payload NotificationPayload
	require.NoError(t, got.DecodePayload(&payload))
	assert.Equal(t, "n-123", payload.Data["notificationId"])
}

func TestDisconnectClearsRegistryAndRooms(t *testing.T) {
	tokens := staticTokens{
		"admin-token": {UserID: "1", Role: auth.RoleAdmin},
	}
	svc, ts := newWSTestServer(t, tokens)

	ws := dialWS(t, ts, "admin-token")
	authenticate(t, ws, "1", "admin")
	waitForSession(t, svc, "1")

	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if svc.Registry().Count() == 0 && svc.Router().RoomCount() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("disconnect did not clear state: %d sessions, %d rooms",
		svc.Registry().Count(), svc.Router().RoomCount())
}

func TestStats(t *testing.T) {
	tokens := staticTokens{
		"admin-token": {UserID: "1", Role: auth.RoleAdmin},
	}
	svc, ts := newWSTestServer(t, tokens)

	ws := dialWS(t, ts, "admin-token")
	authenticate(t, ws, "1", "admin")
	waitForSession(t, svc, "1")

	stats := svc.Stats()
	assert.Equal(t, 1, stats.Sessions)
	assert.Equal(t, 2, stats.Rooms) // user-1 and admin-room
}
