package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"dinetab-order-services/internal/billing"
	"dinetab-order-services/internal/events"
	"dinetab-order-services/pkg/response"
)

func (h *Handler) UnbilledGroups(w http.ResponseWriter, r *http.Request) {
	tableNo, err := readQueryInt(r, "table")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid table filter")
		return
	}
	groups, err := billing.UnbilledGroups(r.Context(), h.DB, tableNo)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, groups)
}

type createBillRequest struct {
	TableNo  int     `json:"tableNo"`
	OrderIDs []int64 `json:"orderIds"`
	Discount float64 `json:"discount"`
}

func (h *Handler) BillCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body createBillRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	bill, err := billing.CreateBill(ctx, h.DB, body.TableNo, body.OrderIDs, body.Discount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.publish(ctx, events.BillCreated, map[string]any{"bill": bill})
	response.Created(w, bill)
}

type payBillRequest struct {
	Method string `json:"method"`
}

func (h *Handler) BillPay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	billID, err := readPathInt64(r, "billId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid bill id")
		return
	}

	var body payBillRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	method := strings.ToUpper(strings.TrimSpace(body.Method))
	switch method {
	case "CASH", "CARD", "QR":
	default:
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid payment method")
		return
	}

	cfg, err := h.loadSettings(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := billing.PayBill(ctx, h.DB, billID, billing.PayParams{
		Method:         method,
		LoyaltyEnabled: cfg.LoyaltyEnabled,
		PointsDivisor:  cfg.PointsDivisor,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.publish(ctx, events.BillPaid, map[string]any{
		"bill":        result.Bill,
		"transaction": result.Transaction,
		"orderIds":    result.OrderIDs,
	})
	if cfg.LoyaltyEnabled {
		for _, phone := range result.Bill.CustomerKeys {
			h.publishCustomerUpdate(ctx, phone)
		}
	}
	h.publish(ctx, events.InventoryUpdated, map[string]any{"orderIds": result.OrderIDs})

	response.Success(w, map[string]any{
		"bill":        result.Bill,
		"transaction": result.Transaction,
	})
}

func (h *Handler) BillsList(w http.ResponseWriter, r *http.Request) {
	var status *billing.BillStatus
	if value := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))); value != "" {
		if value != string(billing.BillUnpaid) && value != string(billing.BillPaid) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown bill status")
			return
		}
		s := billing.BillStatus(value)
		status = &s
	}
	bills, err := billing.ListBills(r.Context(), h.DB, status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, bills)
}

func (h *Handler) BillDetail(w http.ResponseWriter, r *http.Request) {
	billID, err := readPathInt64(r, "billId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid bill id")
		return
	}
	bill, err := billing.LoadBill(r.Context(), h.DB, billID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, bill)
}
