package notify

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/davem/wrenchd/internal/auth"
	"github.com/davem/wrenchd/internal/realtime"
)

var validate = validator.New()

// Handler serves the notification REST endpoints. It is the durable
// counterpart of the websocket push path.
type Handler struct {
	store   *Store
	emitter *Emitter
}

// NewHandler creates a notification Handler.
func NewHandler(store *Store, emitter *Emitter) *Handler {
	return &Handler{store: store, emitter: emitter}
}

// Routes mounts the notification endpoints on a router that already applies
// the auth middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/unread-count", h.UnreadCount)
	r.Post("/read-all", h.MarkAllRead)
	r.Post("/{id}/read", h.MarkRead)
	r.Post("/{id}/response", h.Respond)
	r.With(auth.RequirePrivileged).Post("/", h.Create)
	r.With(auth.RequirePrivileged).Get("/admin", h.ListAdmin)
}

// List handles GET /api/notifications. It returns the caller's own
// notifications, newest first. ?unread=true filters, ?limit=N caps.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	notifications, err := h.store.ListForUser(ident.UserID, unreadOnly, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to list notifications")
		return
	}
	if notifications == nil {
		notifications = []*Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

// ListAdmin handles GET /api/notifications/admin for privileged users.
func (h *Handler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	notifications, err := h.store.ListAdmin(unreadOnly, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to list notifications")
		return
	}
	if notifications == nil {
		notifications = []*Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	count, err := h.store.UnreadCount(ident.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to count notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.MarkRead(id, ident.UserID); err != nil {
		if err == ErrNotFound {
			writeError(w, http.StatusNotFound, "not_found", "Notification not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to mark notification read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read-all.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	updated, err := h.store.MarkAllRead(ident.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to mark notifications read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// RespondRequest is the body of POST /api/notifications/{id}/response.
type RespondRequest struct {
	Response string `json:"response" validate:"required,max=2000"`
}

// Respond handles POST /api/notifications/{id}/response. It records the
// reply on the stored row and relays it to the admin room.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.emitter.Respond(id, ident.UserID, req.Response); err != nil {
		if err == ErrNotFound {
			writeError(w, http.StatusNotFound, "not_found", "Notification not found or does not accept responses")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to record response")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateRequest is the body of POST /api/notifications (privileged).
type CreateRequest struct {
	UserID           string         `json:"userId"`
	Type             string         `json:"type" validate:"omitempty,oneof=info success warning error"`
	Title            string         `json:"title" validate:"required,max=200"`
	Message          string         `json:"message" validate:"required,max=2000"`
	Category         string         `json:"category" validate:"max=100"`
	Priority         string         `json:"priority" validate:"omitempty,oneof=low normal high"`
	RequiresResponse bool           `json:"requiresResponse"`
	Data             map[string]any `json:"data"`
}

func realtimeType(s string) realtime.NotificationType {
	if s == "" {
		return realtime.TypeInfo
	}
	return realtime.NotificationType(s)
}

// ErrorResponse is the JSON error body shared by the notification endpoints.
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

// Create handles POST /api/notifications. With a userId it targets one
// user; without, it goes to the admin room.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	draft := Draft{
		Type:             realtimeType(req.Type),
		Title:            req.Title,
		Message:          req.Message,
		Category:         req.Category,
		Priority:         Priority(req.Priority),
		RequiresResponse: req.RequiresResponse,
		Data:             req.Data,
	}

	var n *Notification
	var err error
	if req.UserID != "" {
		n, err = h.emitter.NotifyUser(req.UserID, draft)
	} else {
		n, err = h.emitter.NotifyAdmins(draft)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to create notification")
		return
	}
	writeJSON(w, http.StatusCreated, n)
}
