// internal/attach/handler_test.go
package attach

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davem/wrenchd/internal/auth"
)

type handlerEnv struct {
	*storeEnv
	backend *LocalBackend
	router  chi.Router
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	env := newStoreEnv(t)
	backend := newLocalBackend(t)

	// Grants order reads to the account behind env.userID.
	owner := func(orderID string) (string, error) {
		if orderID == env.orderID {
			return env.userID, nil
		}
		return "", nil
	}

	h := NewHandler(env.store, backend, owner)
	r := chi.NewRouter()
	r.Route("/api/attachments", h.Routes)
	return &handlerEnv{storeEnv: env, backend: backend, router: r}
}

func adminIdent() *auth.Identity {
	return &auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}
}

func (env *handlerEnv) do(t *testing.T, ident *auth.Identity, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if ident != nil {
		req = req.WithContext(auth.ContextWithIdentity(req.Context(), ident))
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, path, fileName, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (env *handlerEnv) upload(t *testing.T, fileName, content string) *Attachment {
	t.Helper()
	rec := env.do(t, adminIdent(), uploadRequest(t, "/api/attachments/orders/"+env.orderID, fileName, content))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a Attachment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	return &a
}

func TestHandlerUploadAndDownload(t *testing.T) {
	env := newHandlerEnv(t)

	a := env.upload(t, "frenos.jpg", "jpeg bytes")
	assert.Equal(t, "frenos.jpg", a.FileName)
	assert.Equal(t, env.orderID, a.OrderID)
	assert.Equal(t, int64(len("jpeg bytes")), a.Size)

	req := httptest.NewRequest(http.MethodGet, "/api/attachments/"+a.ID, nil)
	rec := env.do(t, adminIdent(), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "frenos.jpg")
}

func TestHandlerUploadRequiresStaff(t *testing.T) {
	env := newHandlerEnv(t)

	req := uploadRequest(t, "/api/attachments/orders/"+env.orderID, "frenos.jpg", "x")
	rec := env.do(t, &auth.Identity{UserID: "u1", Role: auth.RoleUser}, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerUploadMissingFile(t *testing.T) {
	env := newHandlerEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/attachments/orders/"+env.orderID, nil)
	rec := env.do(t, adminIdent(), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerOwnerCanListAndDownload(t *testing.T) {
	env := newHandlerEnv(t)
	env.userID = "user-7"
	a := env.upload(t, "diagnostico.pdf", "pdf bytes")

	owner := &auth.Identity{UserID: "user-7", Role: auth.RoleUser}
	stranger := &auth.Identity{UserID: "user-8", Role: auth.RoleUser}

	rec := env.do(t, owner, httptest.NewRequest(http.MethodGet, "/api/attachments/orders/"+env.orderID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []*Attachment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = env.do(t, owner, httptest.NewRequest(http.MethodGet, "/api/attachments/"+a.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Someone else's order looks like it does not exist.
	rec = env.do(t, stranger, httptest.NewRequest(http.MethodGet, "/api/attachments/orders/"+env.orderID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, stranger, httptest.NewRequest(http.MethodGet, "/api/attachments/"+a.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerDelete(t *testing.T) {
	env := newHandlerEnv(t)
	a := env.upload(t, "factura.pdf", "pdf bytes")

	rec := env.do(t, adminIdent(), httptest.NewRequest(http.MethodDelete, "/api/attachments/"+a.ID, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err := env.store.Get(a.ID)
	assert.Equal(t, ErrNotFound, err)
	exists, err := env.backend.Exists(context.Background(), a.StorageKey)
	require.NoError(t, err)
	assert.False(t, exists)

	rec = env.do(t, adminIdent(), httptest.NewRequest(http.MethodDelete, "/api/attachments/"+a.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerDownloadMissing(t *testing.T) {
	env := newHandlerEnv(t)

	rec := env.do(t, adminIdent(), httptest.NewRequest(http.MethodGet, "/api/attachments/no-such-id", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
