package attach

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/davem/wrenchd/internal/auth"
	"github.com/davem/wrenchd/internal/log"
)

// maxUploadSize caps a single attachment upload.
const maxUploadSize = 25 << 20 // 25 MiB

// OwnerFunc resolves the login account that owns a service order. It is
// how the handler grants non-staff users access to their own order files
// without this package knowing about orders.
type OwnerFunc func(orderID string) (userID string, err error)

// Handler serves attachment upload, download and listing endpoints.
type Handler struct {
	store   *Store
	backend Backend
	owner   OwnerFunc
}

// NewHandler creates an attachment Handler.
func NewHandler(store *Store, backend Backend, owner OwnerFunc) *Handler {
	return &Handler{store: store, backend: backend, owner: owner}
}

// Routes mounts the attachment endpoints on a router that already applies
// the auth middleware. Uploads and deletes are staff-only; order owners may
// list and download files on their own orders.
func (h *Handler) Routes(r chi.Router) {
	r.With(auth.RequirePrivileged).Post("/orders/{orderID}", h.UploadForOrder)
	r.With(auth.RequirePrivileged).Post("/vehicles/{vehicleID}", h.UploadForVehicle)
	r.Get("/orders/{orderID}", h.ListForOrder)
	r.With(auth.RequirePrivileged).Get("/vehicles/{vehicleID}", h.ListForVehicle)
	r.Get("/{id}", h.Download)
	r.With(auth.RequirePrivileged).Delete("/{id}", h.Delete)
}

// UploadForOrder stores a multipart file upload against a service order.
func (h *Handler) UploadForOrder(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, &Attachment{OrderID: chi.URLParam(r, "orderID")})
}

// UploadForVehicle stores a multipart file upload against a vehicle.
func (h *Handler) UploadForVehicle(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, &Attachment{VehicleID: chi.URLParam(r, "vehicleID")})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request, a *Attachment) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing file field")
		return
	}
	defer file.Close()

	a.FileName = filepath.Base(header.Filename)
	if a.FileName == "" || a.FileName == "." || a.FileName == "/" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing file name")
		return
	}
	a.ContentType = header.Header.Get("Content-Type")
	a.Size = header.Size

	if err := h.store.Create(a); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	info, err := h.backend.Write(r.Context(), a.StorageKey, file, header.Size, a.ContentType)
	if err != nil {
		// The metadata row is useless without the blob.
		if derr := h.store.Delete(a.ID); derr != nil {
			log.Error("failed to roll back attachment record", "id", a.ID, "error", derr)
		}
		writeError(w, http.StatusInternalServerError, "storage_error", "Failed to store file")
		return
	}
	a.Size = info.Size

	writeJSON(w, http.StatusCreated, a)
}

// ListForOrder returns the attachments on a service order.
func (h *Handler) ListForOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if !h.canReadOrder(r, orderID) {
		writeError(w, http.StatusNotFound, "not_found", "Attachment not found")
		return
	}
	attachments, err := h.store.ListForOrder(orderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if attachments == nil {
		attachments = []*Attachment{}
	}
	writeJSON(w, http.StatusOK, attachments)
}

// ListForVehicle returns the attachments on a vehicle.
func (h *Handler) ListForVehicle(w http.ResponseWriter, r *http.Request) {
	attachments, err := h.store.ListForVehicle(chi.URLParam(r, "vehicleID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if attachments == nil {
		attachments = []*Attachment{}
	}
	writeJSON(w, http.StatusOK, attachments)
}

// Download streams an attachment back to the caller.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.Get(chi.URLParam(r, "id"))
	if err == ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found", "Attachment not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if a.OrderID != "" && !h.canReadOrder(r, a.OrderID) {
		writeError(w, http.StatusNotFound, "not_found", "Attachment not found")
		return
	}
	if a.VehicleID != "" && !isPrivileged(r) {
		writeError(w, http.StatusNotFound, "not_found", "Attachment not found")
		return
	}

	reader, info, err := h.backend.Reader(r.Context(), a.StorageKey)
	if err != nil {
		if IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "Attachment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "storage_error", "Failed to read file")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", a.FileName))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.ETag != "" {
		w.Header().Set("ETag", `"`+info.ETag+`"`)
	}
	if _, err := io.Copy(w, reader); err != nil {
		log.Error("failed to stream attachment", "id", a.ID, "error", err)
	}
}

// Delete removes an attachment record and its blob.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.Get(chi.URLParam(r, "id"))
	if err == ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found", "Attachment not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if err := h.store.Delete(a.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if err := h.backend.Delete(r.Context(), a.StorageKey); err != nil && !IsNotFound(err) {
		log.Error("failed to delete attachment blob", "key", a.StorageKey, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// canReadOrder reports whether the request identity may read files on the
// given order. Staff always can; a plain user only when the order's client
// is linked to their account.
func (h *Handler) canReadOrder(r *http.Request, orderID string) bool {
	if isPrivileged(r) {
		return true
	}
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok || h.owner == nil {
		return false
	}
	userID, err := h.owner(orderID)
	if err != nil {
		return false
	}
	return userID != "" && userID == ident.UserID
}

func isPrivileged(r *http.Request) bool {
	ident, ok := auth.IdentityFromContext(r.Context())
	return ok && ident.Role.Privileged()
}

// ErrorResponse is the JSON error body shared by the attachment endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, ErrorResponse{Error: errCode, Message: message})
}
