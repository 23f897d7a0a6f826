package shop

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ClientRequest is the body for creating or updating a client.
type ClientRequest struct {
	UserID  string `json:"userId"`
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"max=30"`
	Address string `json:"address" validate:"max=500"`
}

// ListClients handles GET /api/clients. ?search narrows by name, email or
// phone.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.service.Clients.List(r.URL.Query().Get("search"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if clients == nil {
		clients = []*Client{}
	}
	writeJSON(w, http.StatusOK, clients)
}

// CreateClient handles POST /api/clients.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if !decodeValid(w, r, &req) {
		return
	}

	client := &Client{
		UserID:  req.UserID,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	}
	if err := h.service.Clients.Create(client); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

// GetClient handles GET /api/clients/{id}.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.service.Clients.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// UpdateClient handles PUT /api/clients/{id}.
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if !decodeValid(w, r, &req) {
		return
	}

	client := &Client{
		ID:      chi.URLParam(r, "id"),
		UserID:  req.UserID,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	}
	if err := h.service.Clients.Update(client); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// DeleteClient handles DELETE /api/clients/{id}.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clients.Delete(chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
