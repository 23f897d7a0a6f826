package shop

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/davem/wrenchd/internal/auth"
)

// OrderRequest is the body for creating or updating an order.
type OrderRequest struct {
	VehicleID   string `json:"vehicleId" validate:"required"`
	Description string `json:"description" validate:"required,max=2000"`
	Diagnosis   string `json:"diagnosis" validate:"max=2000"`
	AssignedTo  string `json:"assignedTo"`
}

// StatusRequest is the body of POST /api/orders/{id}/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// LineRequest is the body of POST /api/orders/{id}/lines.
type LineRequest struct {
	ItemID      string  `json:"itemId"`
	Description string  `json:"description" validate:"required_without=ItemID,max=500"`
	Quantity    int     `json:"quantity" validate:"required,min=1"`
	UnitPrice   float64 `json:"unitPrice" validate:"min=0"`
}

// ListOrders handles GET /api/orders. Staff see everything and may filter
// by ?status, ?clientId, ?vehicleId or ?assignedTo; a plain user sees only
// the orders of their linked client.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var filter OrderFilter
	if ident.Role.Privileged() {
		q := r.URL.Query()
		if s := q.Get("status"); s != "" {
			status, err := ParseOrderStatus(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
				return
			}
			filter.Status = status
		}
		filter.ClientID = q.Get("clientId")
		filter.VehicleID = q.Get("vehicleId")
		filter.AssignedTo = q.Get("assignedTo")
	} else {
		client, err := h.service.Clients.GetByUserID(ident.UserID)
		if err != nil {
			writeJSON(w, http.StatusOK, []*ServiceOrder{})
			return
		}
		filter.ClientID = client.ID
	}

	orders, err := h.service.Orders.List(filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if orders == nil {
		orders = []*ServiceOrder{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrder handles GET /api/orders/{id}. A plain user may only read their
// own order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	order, err := h.service.Orders.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if !ident.Role.Privileged() {
		client, err := h.service.Clients.GetByUserID(ident.UserID)
		if err != nil || client.ID != order.ClientID {
			writeError(w, http.StatusNotFound, "not_found", "Record not found")
			return
		}
	}
	writeJSON(w, http.StatusOK, order)
}

// CreateOrder handles POST /api/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !decodeValid(w, r, &req) {
		return
	}

	order := &ServiceOrder{
		VehicleID:   req.VehicleID,
		Description: req.Description,
		Diagnosis:   req.Diagnosis,
		AssignedTo:  req.AssignedTo,
	}
	if err := h.service.CreateOrder(order); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// UpdateOrder handles PUT /api/orders/{id}. Status is immutable here; it
// moves through the status endpoint.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !decodeValid(w, r, &req) {
		return
	}

	order, err := h.service.Orders.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	order.Description = req.Description
	order.Diagnosis = req.Diagnosis
	order.AssignedTo = req.AssignedTo
	if err := h.service.Orders.Update(order); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// SetOrderStatus handles POST /api/orders/{id}/status.
func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decodeValid(w, r, &req) {
		return
	}

	status, err := ParseOrderStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	order, err := h.service.SetOrderStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		if err == ErrNotFound {
			writeError(w, http.StatusNotFound, "not_found", "Record not found")
			return
		}
		if strings.Contains(err.Error(), "cannot move order") {
			writeError(w, http.StatusConflict, "invalid_transition", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// AddOrderLine handles POST /api/orders/{id}/lines.
func (h *Handler) AddOrderLine(w http.ResponseWriter, r *http.Request) {
	var req LineRequest
	if !decodeValid(w, r, &req) {
		return
	}

	line := &OrderLine{
		ItemID:      req.ItemID,
		Description: req.Description,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
	}
	if err := h.service.AddOrderLine(chi.URLParam(r, "id"), line); err != nil {
		if strings.Contains(err.Error(), "insufficient stock") {
			writeError(w, http.StatusConflict, "insufficient_stock", err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

// RemoveOrderLine handles DELETE /api/orders/{id}/lines/{lineID}.
func (h *Handler) RemoveOrderLine(w http.ResponseWriter, r *http.Request) {
	lineID, err := strconv.ParseInt(chi.URLParam(r, "lineID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Invalid line id")
		return
	}
	if err := h.service.RemoveOrderLine(chi.URLParam(r, "id"), lineID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
