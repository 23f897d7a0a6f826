package shop

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/davem/wrenchd/internal/auth"
)

var validate = validator.New()

// Handler serves the shop REST endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a shop Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the shop endpoints on a router that already applies the
// auth middleware. Clients, vehicles and inventory are staff-only; order
// reads are open to the order's owner as well.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/clients", func(r chi.Router) {
		r.Use(auth.RequirePrivileged)
		r.Get("/", h.ListClients)
		r.Post("/", h.CreateClient)
		r.Get("/{id}", h.GetClient)
		r.Put("/{id}", h.UpdateClient)
		r.Delete("/{id}", h.DeleteClient)
	})

	r.Route("/vehicles", func(r chi.Router) {
		r.Use(auth.RequirePrivileged)
		r.Get("/", h.ListVehicles)
		r.Post("/", h.CreateVehicle)
		r.Get("/plate/{plate}", h.GetVehicleByPlate)
		r.Get("/{id}", h.GetVehicle)
		r.Put("/{id}", h.UpdateVehicle)
		r.Delete("/{id}", h.DeleteVehicle)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.With(auth.RequirePrivileged).Post("/", h.CreateOrder)
		r.With(auth.RequirePrivileged).Put("/{id}", h.UpdateOrder)
		r.With(auth.RequirePrivileged).Post("/{id}/status", h.SetOrderStatus)
		r.With(auth.RequirePrivileged).Post("/{id}/lines", h.AddOrderLine)
		r.With(auth.RequirePrivileged).Delete("/{id}/lines/{lineID}", h.RemoveOrderLine)
	})

	r.Route("/inventory", func(r chi.Router) {
		r.Use(auth.RequirePrivileged)
		r.Get("/", h.ListInventory)
		r.Post("/", h.CreateInventoryItem)
		r.Get("/{id}", h.GetInventoryItem)
		r.Put("/{id}", h.UpdateInventoryItem)
		r.Delete("/{id}", h.DeleteInventoryItem)
		r.Post("/{id}/adjust", h.AdjustStock)
	})

	r.With(auth.RequirePrivileged).Get("/dashboard", h.Dashboard)
}

// ErrorResponse is the JSON error body shared by the shop endpoints.
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

// decodeValid decodes a JSON body into req and runs struct validation.
func decodeValid(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

// writeStoreError maps store errors onto status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	if err == ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found", "Record not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error", err.Error())
}
