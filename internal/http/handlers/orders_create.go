package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"dinetab-order-services/internal/events"
	"dinetab-order-services/internal/lifecycle"
	"dinetab-order-services/internal/middleware"
	"dinetab-order-services/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type createOrderRequest struct {
	TableNo  int               `json:"tableNo"`
	Customer orderCustomer     `json:"customer"`
	Items    []createOrderItem `json:"items"`
	Notes    *string           `json:"notes"`
	Priority bool              `json:"priority"`
}

type orderCustomer struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

type createOrderItem struct {
	MenuItemID int64 `json:"menuItemId"`
	Quantity   int32 `json:"quantity"`
}

// PublicOrderCreate is the customer path: order placed from the table,
// keyed by the customer's phone.
func (h *Handler) PublicOrderCreate(w http.ResponseWriter, r *http.Request) {
	h.createOrder(w, r, false)
}

// StaffOrderCreate is the waiter path: the relayed order is tagged
// waiter-<name> when the guest gave no phone, and may fast-path straight
// to ACCEPTED depending on the kitchen settings.
func (h *Handler) StaffOrderCreate(w http.ResponseWriter, r *http.Request) {
	h.createOrder(w, r, true)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request, waiterOrder bool) {
	ctx := r.Context()

	var body createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	var createdBy *int64
	customerKey := strings.TrimSpace(body.Customer.Phone)
	if waiterOrder {
		authCtx, ok := middleware.GetAuthContext(ctx)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Staff context not found")
			return
		}
		createdBy = &authCtx.StaffID
		if customerKey == "" {
			customerKey = "waiter-" + authCtx.Name
		}
	}
	if customerKey == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Customer phone is required")
		return
	}

	cfg, err := h.loadSettings(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	lines, err := h.resolveMenuLines(ctx, body.Items)
	if err != nil {
		h.writeError(w, err)
		return
	}

	params := lifecycle.NewOrderParams{
		TableNo:     body.TableNo,
		CustomerKey: customerKey,
		Items:       lines,
		Notes:       body.Notes,
		CreatedBy:   createdBy,
		WaiterOrder: waiterOrder,
		Priority:    body.Priority,
	}
	if err := lifecycle.ValidateNewOrder(params, cfg.TableCount); err != nil {
		h.writeError(w, err)
		return
	}

	initial := lifecycle.InitialStatus(cfg.KDSEnabled, cfg.KOTEnabled, waiterOrder)
	order, err := lifecycle.CreateOrder(ctx, h.DB, params, initial)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Known customers get their name refreshed on first contact so the
	// counter sees who is sitting at the table.
	if !strings.HasPrefix(customerKey, "waiter-") && strings.TrimSpace(body.Customer.Name) != "" {
		if _, err := h.DB.Exec(ctx, `
			insert into customers (phone, name) values ($1, $2)
			on conflict (phone) do update set name = excluded.name
		`, customerKey, strings.TrimSpace(body.Customer.Name)); err != nil {
			h.Logger.Warn("customer upsert on order failed", zapError(err))
		}
	}

	h.publish(ctx, events.OrderCreated, map[string]any{"order": order})
	response.Created(w, order)
}

var errMenuItemUnknown = errors.New("menu item not found or unavailable")

// resolveMenuLines snapshots name and price from the menu at order time.
func (h *Handler) resolveMenuLines(ctx context.Context, items []createOrderItem) ([]lifecycle.NewOrderItem, error) {
	lines := make([]lifecycle.NewOrderItem, 0, len(items))
	for _, item := range items {
		var name string
		var price pgtype.Numeric
		err := h.DB.QueryRow(ctx, `
			select name, price from menu_items where id = $1 and available
		`, item.MenuItemID).Scan(&name, &price)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %d", errMenuItemUnknown, item.MenuItemID)
			}
			return nil, err
		}
		menuID := item.MenuItemID
		lines = append(lines, lifecycle.NewOrderItem{
			MenuItemID: &menuID,
			Name:       name,
			Price:      numericFloat(price),
			Quantity:   item.Quantity,
		})
	}
	return lines, nil
}
