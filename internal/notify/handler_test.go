// internal/notify/handler_test.go
package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davem/wrenchd/internal/auth"
)

func newTestRouter(env *testEnv) chi.Router {
	h := NewHandler(env.store, env.emitter)
	r := chi.NewRouter()
	r.Route("/api/notifications", h.Routes)
	return r
}

func doJSON(t *testing.T, router chi.Router, ident *auth.Identity, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if ident != nil {
		req = req.WithContext(auth.ContextWithIdentity(req.Context(), ident))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerListOwnNotifications(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.createUser(t, "ana@taller.mx", auth.RoleUser)
	other := env.createUser(t, "luis@taller.mx", auth.RoleUser)
	router := newTestRouter(env)

	_, err := env.emitter.NotifyUser(user.ID, Draft{Title: "Orden lista", Message: "m"})
	require.NoError(t, err)
	_, err = env.emitter.NotifyUser(other.ID, Draft{Title: "Otro", Message: "m"})
	require.NoError(t, err)

	ident := &auth.Identity{UserID: user.ID, Role: auth.RoleUser}
	rec := doJSON(t, router, ident, http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []*Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Orden lista", got[0].Title)
}

func TestHandlerUnreadCountAndReadFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.createUser(t, "ana@taller.mx", auth.RoleUser)
	router := newTestRouter(env)
	ident := &auth.Identity{UserID: user.ID, Role: auth.RoleUser}

	n, err := env.emitter.NotifyUser(user.ID, Draft{Title: "Aviso", Message: "m"})
	require.NoError(t, err)
	_, err = env.emitter.NotifyUser(user.ID, Draft{Title: "Aviso 2", Message: "m"})
	require.NoError(t, err)

	rec := doJSON(t, router, ident, http.MethodGet, "/api/notifications/unread-count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())

	rec = doJSON(t, router, ident, http.MethodPost, "/api/notifications/"+n.ID+"/read", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, ident, http.MethodPost, "/api/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":1}`, rec.Body.String())
}

func TestHandlerMarkReadForeignRow(t *testing.T) {
	env := newTestEnv(t, nil)
	ana := env.createUser(t, "ana@taller.mx", auth.RoleUser)
	luis := env.createUser(t, "luis@taller.mx", auth.RoleUser)
	router := newTestRouter(env)

	n, err := env.emitter.NotifyUser(ana.ID, Draft{Title: "Aviso", Message: "m"})
	require.NoError(t, err)

	ident := &auth.Identity{UserID: luis.ID, Role: auth.RoleUser}
	rec := doJSON(t, router, ident, http.MethodPost, "/api/notifications/"+n.ID+"/read", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRespond(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.createUser(t, "ana@taller.mx", auth.RoleUser)
	router := newTestRouter(env)
	ident := &auth.Identity{UserID: user.ID, Role: auth.RoleUser}

	n, err := env.emitter.NotifyUser(user.ID, Draft{
		Title: "Autorización", Message: "¿Autoriza?", RequiresResponse: true,
	})
	require.NoError(t, err)

	rec := doJSON(t, router, ident, http.MethodPost,
		"/api/notifications/"+n.ID+"/response", RespondRequest{Response: "Autorizo"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	stored, err := env.store.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Autorizo", stored.Response)

	// empty response fails validation
	rec = doJSON(t, router, ident, http.MethodPost,
		"/api/notifications/"+n.ID+"/response", RespondRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerCreateRequiresPrivilege(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.createUser(t, "ana@taller.mx", auth.RoleUser)
	admin := env.createUser(t, "jefe@taller.mx", auth.RoleAdmin)
	router := newTestRouter(env)

	body := CreateRequest{UserID: user.ID, Title: "Aviso", Message: "m", Type: "warning"}

	rec := doJSON(t, router, &auth.Identity{UserID: user.ID, Role: auth.RoleUser},
		http.MethodPost, "/api/notifications", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, &auth.Identity{UserID: admin.ID, Role: auth.RoleAdmin},
		http.MethodPost, "/api/notifications", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, user.ID, created.UserID)

	list, err := env.store.ListForUser(user.ID, true, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestHandlerAdminList(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.createUser(t, "jefe@taller.mx", auth.RoleAdmin)
	router := newTestRouter(env)

	_, err := env.emitter.NotifyAdmins(Draft{Title: "Stock bajo", Message: "m", Type: "warning"})
	require.NoError(t, err)

	rec := doJSON(t, router, &auth.Identity{UserID: admin.ID, Role: auth.RoleAdmin},
		http.MethodGet, "/api/notifications/admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []*Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Stock bajo", got[0].Title)
	assert.Empty(t, got[0].UserID)
}
