package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"dinetab-order-services/internal/events"
	"dinetab-order-services/internal/lifecycle"
	"dinetab-order-services/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

func (h *Handler) OrderDetail(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}
	order, err := lifecycle.LoadOrder(r.Context(), h.DB, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, order)
}

func (h *Handler) OrdersList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := `
		select id, table_no, customer_key, status, total_amount, notes, created_by_staff,
		       is_waiter_order, priority, created_at, updated_at
		from orders
	`
	conds := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		args = append(args, strings.ToUpper(status))
		conds = append(conds, `status = $`+itoa(len(args)))
	}
	tableNo, err := readQueryInt(r, "table")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid table filter")
		return
	}
	if tableNo != nil {
		args = append(args, *tableNo)
		conds = append(conds, `table_no = $`+itoa(len(args)))
	}
	if len(conds) > 0 {
		query += ` where ` + strings.Join(conds, " and ")
	}
	query += ` order by priority desc, created_at`

	rows, err := h.DB.Query(ctx, query, args...)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer rows.Close()

	orders := make([]lifecycle.Order, 0)
	for rows.Next() {
		var order lifecycle.Order
		var total pgtype.Numeric
		var notes pgtype.Text
		var createdBy pgtype.Int8
		if err := rows.Scan(&order.ID, &order.TableNo, &order.CustomerKey, &order.Status, &total,
			&notes, &createdBy, &order.WaiterOrder, &order.Priority, &order.CreatedAt, &order.UpdatedAt); err != nil {
			h.writeError(w, err)
			return
		}
		order.Total = numericFloat(total)
		order.Notes = textPtr(notes)
		if createdBy.Valid {
			order.CreatedBy = &createdBy.Int64
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		h.writeError(w, err)
		return
	}

	for i := range orders {
		items, err := lifecycle.LoadItems(ctx, h.DB, orders[i].ID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		orders[i].Items = items
	}
	response.Success(w, orders)
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

func (h *Handler) OrderStatusUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	var body statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	next := lifecycle.Status(strings.ToUpper(strings.TrimSpace(body.Status)))
	if !lifecycle.ValidStatus(next) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status")
		return
	}

	order, err := lifecycle.UpdateStatus(ctx, h.DB, orderID, next)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.publish(ctx, events.OrderStatusChanged, map[string]any{"order": order})
	if next == lifecycle.StatusServed {
		h.publish(ctx, events.InventoryUpdated, map[string]any{"orderId": order.ID})
	}
	response.Success(w, order)
}

// OrderReject is the counter declining a pending order. Racing an
// acceptance is answered with ALREADY_ACCEPTED, never a corrupt state.
func (h *Handler) OrderReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	order, err := lifecycle.RejectOrder(ctx, h.DB, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.publish(ctx, events.OrderStatusChanged, map[string]any{"order": order})
	response.Success(w, order)
}

type itemStatusRequest struct {
	Status       *string `json:"status"`
	CompletedQty *int32  `json:"completedQty"`
}

func (h *Handler) OrderItemStatusUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}
	itemID, err := readPathInt64(r, "itemId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid item id")
		return
	}

	var body itemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if body.Status == nil && body.CompletedQty == nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Nothing to update")
		return
	}

	upd := lifecycle.ItemUpdate{CompletedQty: body.CompletedQty}
	if body.Status != nil {
		status := lifecycle.ItemStatus(strings.ToUpper(strings.TrimSpace(*body.Status)))
		if !lifecycle.ValidItemStatus(status) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown item status")
			return
		}
		upd.Status = &status
	}

	result, err := lifecycle.UpdateItemStatus(ctx, h.DB, orderID, itemID, upd)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.publish(ctx, events.OrderItemUpdated, map[string]any{"order": result.Order, "itemId": itemID})
	if result.Promoted {
		h.publish(ctx, events.OrderStatusChanged, map[string]any{"order": result.Order})
	}
	response.Success(w, result.Order)
}

type priorityRequest struct {
	Priority bool `json:"priority"`
}

func (h *Handler) OrderPriorityUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	var body priorityRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	order, err := lifecycle.SetPriority(ctx, h.DB, orderID, body.Priority)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.publish(ctx, events.OrderStatusChanged, map[string]any{"order": order})
	response.Success(w, order)
}
