package shop

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// VehicleRequest is the body for creating or updating a vehicle.
type VehicleRequest struct {
	ClientID string `json:"clientId" validate:"required"`
	Plate    string `json:"plate" validate:"required,max=20"`
	Make     string `json:"make" validate:"required,max=100"`
	Model    string `json:"model" validate:"required,max=100"`
	Year     int    `json:"year" validate:"omitempty,min=1900,max=2100"`
	Color    string `json:"color" validate:"max=50"`
	VIN      string `json:"vin" validate:"max=17"`
}

// ListVehicles handles GET /api/vehicles. ?clientId narrows to one client.
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.service.Vehicles.List(r.URL.Query().Get("clientId"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if vehicles == nil {
		vehicles = []*Vehicle{}
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// CreateVehicle handles POST /api/vehicles.
func (h *Handler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req VehicleRequest
	if !decodeValid(w, r, &req) {
		return
	}

	if _, err := h.service.Clients.Get(req.ClientID); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Unknown client")
		return
	}

	vehicle := &Vehicle{
		ClientID: req.ClientID,
		Plate:    req.Plate,
		Make:     req.Make,
		Model:    req.Model,
		Year:     req.Year,
		Color:    req.Color,
		VIN:      req.VIN,
	}
	if err := h.service.Vehicles.Create(vehicle); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			writeError(w, http.StatusConflict, "conflict", err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vehicle)
}

// GetVehicle handles GET /api/vehicles/{id}.
func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.service.Vehicles.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

// GetVehicleByPlate handles GET /api/vehicles/plate/{plate}. The front desk
// looks vehicles up by plate at intake.
func (h *Handler) GetVehicleByPlate(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.service.Vehicles.GetByPlate(chi.URLParam(r, "plate"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

// UpdateVehicle handles PUT /api/vehicles/{id}.
func (h *Handler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	var req VehicleRequest
	if !decodeValid(w, r, &req) {
		return
	}

	vehicle := &Vehicle{
		ID:       chi.URLParam(r, "id"),
		ClientID: req.ClientID,
		Plate:    req.Plate,
		Make:     req.Make,
		Model:    req.Model,
		Year:     req.Year,
		Color:    req.Color,
		VIN:      req.VIN,
	}
	if err := h.service.Vehicles.Update(vehicle); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			writeError(w, http.StatusConflict, "conflict", err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

// DeleteVehicle handles DELETE /api/vehicles/{id}.
func (h *Handler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Vehicles.Delete(chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
