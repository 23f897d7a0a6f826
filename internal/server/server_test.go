// internal/server/server_test.go
package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davem/wrenchd/internal/attach"
	"github.com/davem/wrenchd/internal/auth"
	"github.com/davem/wrenchd/internal/db"
	"github.com/davem/wrenchd/internal/mail"
	"github.com/davem/wrenchd/internal/realtime"
)

type testServer struct {
	*Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.RunMigrations())

	backend, err := attach.NewLocal(t.TempDir())
	require.NoError(t, err)

	s, err := New(database, Config{
		JWTSecret:     "test-secret",
		Mail:          &mail.Config{Mode: mail.ModeMemory, From: "taller@test", ShopName: "Taller Test"},
		AttachBackend: backend,
	})
	require.NoError(t, err)
	return &testServer{Server: s}
}

func (ts *testServer) createUser(t *testing.T, email string, role auth.Role) *auth.User {
	t.Helper()
	user, err := ts.authService.CreateUser(email, "Sup3r-secret!", "Test User", role)
	require.NoError(t, err)
	return user
}

func (ts *testServer) login(t *testing.T, email string) *LoginResponse {
	t.Helper()
	rec := ts.doJSON(t, "", http.MethodPost, "/api/auth/login",
		LoginRequest{Email: email, Password: "Sup3r-secret!"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp
}

func (ts *testServer) doJSON(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.doJSON(t, "", http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestLoginLogout(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "ana@taller.mx", auth.RoleUser)

	resp := ts.login(t, "ana@taller.mx")
	require.NotEmpty(t, resp.Tokens.AccessToken)
	require.NotEmpty(t, resp.Tokens.RefreshToken)
	assert.Equal(t, "ana@taller.mx", resp.User.Email)

	rec := ts.doJSON(t, "", http.MethodPost, "/api/auth/login",
		LoginRequest{Email: "ana@taller.mx", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.doJSON(t, resp.Tokens.AccessToken, http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me auth.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, resp.User.ID, me.ID)

	rec = ts.doJSON(t, resp.Tokens.AccessToken, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The session's refresh token dies with the logout.
	rec = ts.doJSON(t, "", http.MethodPost, "/api/auth/refresh",
		RefreshRequest{RefreshToken: resp.Tokens.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRotation(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "ana@taller.mx", auth.RoleUser)
	resp := ts.login(t, "ana@taller.mx")

	rec := ts.doJSON(t, "", http.MethodPost, "/api/auth/refresh",
		RefreshRequest{RefreshToken: resp.Tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	assert.NotEqual(t, resp.Tokens.RefreshToken, refreshed.Tokens.RefreshToken)

	// The old token was rotated out.
	rec = ts.doJSON(t, "", http.MethodPost, "/api/auth/refresh",
		RefreshRequest{RefreshToken: resp.Tokens.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/orders", "/api/notifications", "/api/users"} {
		rec := ts.doJSON(t, "", http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := ts.doJSON(t, "garbage-token", http.MethodGet, "/api/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserManagement(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "root@taller.mx", auth.RoleSuperAdmin)
	ts.createUser(t, "jefe@taller.mx", auth.RoleAdmin)
	superTok := ts.login(t, "root@taller.mx").Tokens.AccessToken
	adminTok := ts.login(t, "jefe@taller.mx").Tokens.AccessToken

	rec := ts.doJSON(t, adminTok, http.MethodPost, "/api/users",
		CreateUserRequest{Email: "ana@taller.mx", Password: "Sup3r-secret!", Name: "Ana", Role: "user"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created auth.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, auth.RoleUser, created.Role)

	// A plain admin cannot mint another admin; a super admin can.
	rec = ts.doJSON(t, adminTok, http.MethodPost, "/api/users",
		CreateUserRequest{Email: "otro@taller.mx", Password: "Sup3r-secret!", Role: "admin"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.doJSON(t, superTok, http.MethodPost, "/api/users",
		CreateUserRequest{Email: "otro@taller.mx", Password: "Sup3r-secret!", Role: "admin"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.doJSON(t, adminTok, http.MethodPost, "/api/users",
		CreateUserRequest{Email: "ana@taller.mx", Password: "Sup3r-secret!"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.doJSON(t, adminTok, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []*auth.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 4)

	rec = ts.doJSON(t, superTok, http.MethodPut, "/api/users/"+created.ID+"/role",
		UpdateRoleRequest{Role: "operator"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Nobody deletes their own account.
	me := ts.doJSON(t, adminTok, http.MethodGet, "/api/auth/me", nil)
	var adminUser auth.User
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &adminUser))
	rec = ts.doJSON(t, adminTok, http.MethodDelete, "/api/users/"+adminUser.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.doJSON(t, superTok, http.MethodDelete, "/api/users/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// Creating an order over REST must reach a subscribed admin socket.
func TestOrderCreationPushesToAdminSocket(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.createUser(t, "jefe@taller.mx", auth.RoleAdmin)
	adminTok := ts.login(t, "jefe@taller.mx").Tokens.AccessToken

	httpSrv := httptest.NewServer(ts.Router())
	t.Cleanup(httpSrv.Close)

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/realtime/ws?token=" + adminTok
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	msg, _ := realtime.NewMessage(realtime.EventAuthenticate,
		&realtime.AuthenticatePayload{UserID: admin.ID, Role: "admin"})
	data, _ := msg.Encode()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = ws.ReadMessage() // authenticated ack
	require.NoError(t, err)

	rec := ts.doJSON(t, adminTok, http.MethodPost, "/api/clients",
		map[string]string{"name": "Ana Torres"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var client struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &client))

	rec = ts.doJSON(t, adminTok, http.MethodPost, "/api/vehicles",
		map[string]any{"clientId": client.ID, "plate": "ABC-123", "make": "Nissan", "model": "Versa"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var vehicle struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vehicle))

	rec = ts.doJSON(t, adminTok, http.MethodPost, "/api/orders",
		map[string]string{"vehicleId": vehicle.ID, "description": "Ruido en frenos"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The fabric reaches the admin room before any dashboard refresh, so
	// the first admin-notification is the new-order alert.
	deadline := time.Now().Add(2 * time.Second)
	for {
		ws.SetReadDeadline(deadline)
		_, raw, err := ws.ReadMessage()
		require.NoError(t, err, "expected an admin push before the deadline")
		pushed, err := realtime.DecodeMessage(raw)
		require.NoError(t, err)
		if pushed.Event != realtime.EventAdminNotification {
			continue
		}
		var payload realtime.NotificationPayload
		require.NoError(t, pushed.DecodePayload(&payload))
		assert.Equal(t, "Nueva orden de servicio", payload.Title)
		return
	}
}

func TestOrderOwnerResolution(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "jefe@taller.mx", auth.RoleAdmin)
	owner := ts.createUser(t, "ana@taller.mx", auth.RoleUser)
	adminTok := ts.login(t, "jefe@taller.mx").Tokens.AccessToken

	rec := ts.doJSON(t, adminTok, http.MethodPost, "/api/clients",
		map[string]string{"name": "Ana Torres", "userId": owner.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	var client struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &client))

	rec = ts.doJSON(t, adminTok, http.MethodPost, "/api/vehicles",
		map[string]any{"clientId": client.ID, "plate": "ABC-123", "make": "Nissan", "model": "Versa"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var vehicle struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vehicle))

	rec = ts.doJSON(t, adminTok, http.MethodPost, "/api/orders",
		map[string]string{"vehicleId": vehicle.ID, "description": "Servicio mayor"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var order struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	userID, err := ts.orderOwner(order.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, userID)

	_, err = ts.orderOwner("no-such-order")
	assert.Error(t, err)
}
