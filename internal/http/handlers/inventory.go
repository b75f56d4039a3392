package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"dinetab-order-services/internal/events"
	"dinetab-order-services/internal/inventory"
	"dinetab-order-services/pkg/response"
)

func (h *Handler) InventoryLevels(w http.ResponseWriter, r *http.Request) {
	items, err := inventory.Levels(r.Context(), h.DB)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, items)
}

func (h *Handler) InventoryLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := inventory.LowStock(r.Context(), h.DB)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, items)
}

type receiveStockRequest struct {
	MenuItemID int64   `json:"menuItemId"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
	Note       *string `json:"note"`
}

func (h *Handler) InventoryReceive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body receiveStockRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	unit := strings.TrimSpace(body.Unit)
	if unit == "" {
		unit = "pcs"
	}

	item, err := inventory.Receive(ctx, h.DB, body.MenuItemID, body.Quantity, unit, body.Note)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.publish(ctx, events.InventoryUpdated, map[string]any{"item": item})
	response.Success(w, item)
}

type deductStockRequest struct {
	MenuItemID int64   `json:"menuItemId"`
	Quantity   float64 `json:"quantity"`
	Kind       string  `json:"kind"`
	Note       *string `json:"note"`
}

// InventoryDeduct covers manual corrections and waste write-offs; sale
// deductions happen automatically when orders are served.
func (h *Handler) InventoryDeduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body deductStockRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	kind := inventory.Kind(strings.ToUpper(strings.TrimSpace(body.Kind)))
	item, err := inventory.Deduct(ctx, h.DB, body.MenuItemID, body.Quantity, kind, body.Note)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.publish(ctx, events.InventoryUpdated, map[string]any{"item": item})
	response.Success(w, item)
}
