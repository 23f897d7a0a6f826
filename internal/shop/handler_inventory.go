package shop

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

// InventoryRequest is the body for creating or updating an inventory item.
type InventoryRequest struct {
	SKU       string  `json:"sku" validate:"required,max=50"`
	Name      string  `json:"name" validate:"required,max=200"`
	Category  string  `json:"category" validate:"max=100"`
	Quantity  int     `json:"quantity" validate:"min=0"`
	MinStock  int     `json:"minStock" validate:"min=0"`
	UnitPrice float64 `json:"unitPrice" validate:"min=0"`
}

// AdjustRequest is the body of POST /api/inventory/{id}/adjust.
type AdjustRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// ListInventory handles GET /api/inventory. ?low=true narrows to items at
// or below minimum stock.
func (h *Handler) ListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Inventory.List(r.URL.Query().Get("low") == "true")
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if items == nil {
		items = []*InventoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateInventoryItem handles POST /api/inventory.
func (h *Handler) CreateInventoryItem(w http.ResponseWriter, r *http.Request) {
	var req InventoryRequest
	if !decodeValid(w, r, &req) {
		return
	}

	item := &InventoryItem{
		SKU:       req.SKU,
		Name:      req.Name,
		Category:  req.Category,
		Quantity:  req.Quantity,
		MinStock:  req.MinStock,
		UnitPrice: req.UnitPrice,
	}
	if err := h.service.Inventory.Create(item); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			writeError(w, http.StatusConflict, "conflict", err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// GetInventoryItem handles GET /api/inventory/{id}.
func (h *Handler) GetInventoryItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Inventory.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// UpdateInventoryItem handles PUT /api/inventory/{id}.
func (h *Handler) UpdateInventoryItem(w http.ResponseWriter, r *http.Request) {
	var req InventoryRequest
	if !decodeValid(w, r, &req) {
		return
	}

	item, err := h.service.Inventory.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	item.SKU = req.SKU
	item.Name = req.Name
	item.Category = req.Category
	item.MinStock = req.MinStock
	item.UnitPrice = req.UnitPrice
	if err := h.service.Inventory.Update(item); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			writeError(w, http.StatusConflict, "conflict", err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteInventoryItem handles DELETE /api/inventory/{id}.
func (h *Handler) DeleteInventoryItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Inventory.Delete(chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdjustStock handles POST /api/inventory/{id}/adjust.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if !decodeValid(w, r, &req) {
		return
	}

	item, err := h.service.AdjustStock(chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		if strings.Contains(err.Error(), "insufficient stock") {
			writeError(w, http.StatusConflict, "insufficient_stock", err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DashboardSummary is the staff landing-page snapshot.
type DashboardSummary struct {
	Orders       map[string]int   `json:"orders"`
	OpenOrders   int              `json:"openOrders"`
	LowStock     []*InventoryItem `json:"lowStock"`
	LowStockSKUs []string         `json:"lowStockSkus"`
}

// Dashboard handles GET /api/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.Orders.Counts()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	low, err := h.service.Inventory.List(true)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	open := 0
	byStatus := make(map[string]int, len(counts))
	for status, n := range counts {
		byStatus[string(status)] = n
		if !status.Terminal() {
			open += n
		}
	}

	writeJSON(w, http.StatusOK, DashboardSummary{
		Orders:       byStatus,
		OpenOrders:   open,
		LowStock:     low,
		LowStockSKUs: lo.Map(low, func(i *InventoryItem, _ int) string { return i.SKU }),
	})
}
