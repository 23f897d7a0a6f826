// internal/notify/notify_test.go
package notify

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davem/wrenchd/internal/auth"
	"github.com/davem/wrenchd/internal/db"
	"github.com/davem/wrenchd/internal/realtime"
)

type testEnv struct {
	db      *db.DB
	auth    *auth.Service
	store   *Store
	emitter *Emitter
	rt      *realtime.Service
}

type staticTokens map[string]*auth.Identity

func (s staticTokens) IdentityFromToken(token string) (*auth.Identity, error) {
	if ident, ok := s[token]; ok {
		return ident, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func newTestEnv(t *testing.T, tokens staticTokens) *testEnv {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.RunMigrations())

	rt := realtime.NewService(tokens)
	store := NewStore(database)
	return &testEnv{
		db:      database,
		auth:    auth.NewService(database, "test-secret"),
		store:   store,
		emitter: NewEmitter(store, rt.Dispatcher()),
		rt:      rt,
	}
}

func (e *testEnv) createUser(t *testing.T, email string, role auth.Role) *auth.User {
	t.Helper()
	user, err := e.auth.CreateUser(email, "Sup3r-secret!", "Test User", role)
	require.NoError(t, err)
	return user
}

func TestStoreCreateAndGet(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.createUser(t, "ana@taller.mx", auth.RoleUser)

	n := &Notification{
		ID:               "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		UserID:           user.ID,
		Type:             realtime.TypeWarning,
		Title:            "Orden lista",
		Message:          "Su vehículo está listo",
		Category:         "service-order",
		RequiresResponse: true,
		Data:             map[string]any{"orderId": "o-1"},
	}
	require.NoError(t, env.store.Create(n))

	got, err := env.store.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
	assert.Equal(t, realtime.TypeWarning, got.Type)
	assert.Equal(t, "Orden lista", got.Title)
	assert.Equal(t, PriorityNormal, got.Priority, "priority defaults to normal")
	assert.True(t, got.RequiresResponse)
	assert.False(t, got.Read)
	assert.Equal(t, "o-1", got.Data["orderId"])
}

func TestStoreGetMissing(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.store.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListForUser(t *testing.T) {
	env := newTestEnv(t, nil)
	ana := env.createUser(t, "ana@taller.mx", auth.RoleUser)
	luis := env.createUser(t, "luis@taller.mx", auth.RoleUser)

	for i := 0; i < 3; i++ {
		require.NoError(t, env.store.Create(&Notification{
			ID:     fmt.Sprintf("n-ana-%d", i),
			UserID: ana.ID,
			Type:   realtime.TypeInfo,
			Title:  fmt.Sprintf("aviso %d", i),
		}))
	}
	require.NoError(t, env.store.Create(&Notification{
		ID: "n-luis-0", UserID: luis.ID, Type: realtime.TypeInfo, Title: "otro",
	}))
	require.NoError(t, env.store.MarkRead("n-ana-0", ana.ID))

	all, err := env.store.ListForUser(ana.ID, false, 0)
	require.NoError(t, err)
	require.Len(t, all, 3, "only ana's rows")
	assert.Equal(t, "n-ana-2", all[0].ID, "newest first")

	unread, err := env.store.ListForUser(ana.ID, true, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	limited, err := env.store.ListForUser(ana.ID, false, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStoreListAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.createUser(t, "ana@taller.mx", auth.RoleUser)

	require.NoError(t, env.store.Create(&Notification{
		ID: "n-admin", Type: realtime.TypeWarning, Title: "Stock bajo",
	}))
	require.NoError(t, env.store.Create(&Notification{
		ID: "n-user", UserID: user.ID, Type: realtime.TypeInfo, Title: "personal",
	}))

	admin, err := env.store.ListAdmin(false, 0)
	require.NoError(t, err)
	require.Len(t, admin, 1)
	assert.Equal(t, "n-admin", admin[0].ID)
}

func TestStoreUnreadCountAndMarkAll(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.createUser(t, "ana@taller.mx", auth.RoleUser)

	for i := 0; i < 4; i++ {
		require.NoError(t, env.store.Create(&Notification{
			ID: fmt.Sprintf("n-%d", i), UserID: user.ID, Type: realtime.TypeInfo, Title: "t",
		}))
	}

	count, err := env.store.UnreadCount(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	updated, err := env.store.MarkAllRead(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, updated)

	count, err = env.store.UnreadCount(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStoreMarkReadScopedToOwner(t *testing.T) {
	env := newTestEnv(t, nil)
	ana := env.createUser(t, "ana@taller.mx", auth.RoleUser)
	luis := env.createUser(t, "luis@taller.mx", auth.RoleUser)

	require.NoError(t, env.store.Create(&Notification{
		ID: "n-1", UserID: ana.ID, Type: realtime.TypeInfo, Title: "t",
	}))

	assert.ErrorIs(t, env.store.MarkRead("n-1", luis.ID), ErrNotFound)
	require.NoError(t, env.store.MarkRead("n-1", ana.ID))
}

func TestStoreSetResponseRequiresFlag(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.createUser(t, "ana@taller.mx", auth.RoleUser)

	require.NoError(t, env.store.Create(&Notification{
		ID: "plain", UserID: user.ID, Type: realtime.TypeInfo, Title: "t",
	}))
	require.NoError(t, env.store.Create(&Notification{
		ID: "ask", UserID: user.ID, Type: realtime.TypeInfo, Title: "t",
		RequiresResponse: true,
	}))

	assert.ErrorIs(t, env.store.SetResponse("plain", user.ID, "sí"), ErrNotFound)
	require.NoError(t, env.store.SetResponse("ask", user.ID, "sí"))

	got, err := env.store.Get("ask")
	require.NoError(t, err)
	assert.Equal(t, "sí", got.Response)
}

func TestEmitterPersistsThenPushes(t *testing.T) {
	tokens := staticTokens{}
	env := newTestEnv(t, tokens)
	user := env.createUser(t, "ana@taller.mx", auth.RoleUser)
	tokens["ana-token"] = &auth.Identity{UserID: user.ID, Role: auth.RoleUser}

	ts := httptest.NewServer(http.HandlerFunc(env.rt.HandleWebSocket))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "?token=ana-token"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	msg, _ := realtime.NewMessage(realtime.EventAuthenticate,
		&realtime.AuthenticatePayload{UserID: user.ID, Role: "user"})
	data, _ := msg.Encode()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = ws.ReadMessage() // authenticated ack
	require.NoError(t, err)

	n, err := env.emitter.NotifyUser(user.ID, Draft{
		Title:    "Orden lista",
		Message:  "Su vehículo está listo para recoger",
		Category: "service-order",
	})
	require.NoError(t, err)
	assert.Equal(t, realtime.TypeInfo, n.Type, "type defaults to info")

	stored, err := env.store.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Orden lista", stored.Title)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := ws.ReadMessage()
	require.NoError(t, err)
	pushed, err := realtime.DecodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, realtime.EventNotification, pushed.Event)

	var payload realtime.NotificationPayload
	require.NoError(t, pushed.DecodePayload(&payload))
	assert.Equal(t, n.ID, payload.ID, "push carries the stored row's id")
}

func TestEmitterOfflineUserStillPersists(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.createUser(t, "ana@taller.mx", auth.RoleUser)

	n, err := env.emitter.NotifyUser(user.ID, Draft{Title: "Aviso", Message: "m"})
	require.NoError(t, err)

	list, err := env.store.ListForUser(user.ID, true, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, n.ID, list[0].ID)
}

func TestEmitterRespondRelaysAndRecords(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.createUser(t, "ana@taller.mx", auth.RoleUser)

	n, err := env.emitter.NotifyUser(user.ID, Draft{
		Title: "Autorización", Message: "¿Autoriza la reparación?", RequiresResponse: true,
	})
	require.NoError(t, err)

	require.NoError(t, env.emitter.Respond(n.ID, user.ID, "Autorizo"))

	stored, err := env.store.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Autorizo", stored.Response)
}
