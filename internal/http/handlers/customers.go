package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"dinetab-order-services/internal/events"
	"dinetab-order-services/internal/loyalty"
	"dinetab-order-services/pkg/response"
)

func (h *Handler) CustomersList(w http.ResponseWriter, r *http.Request) {
	customers, err := loyalty.List(r.Context(), h.DB)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, customers)
}

func (h *Handler) CustomerDetail(w http.ResponseWriter, r *http.Request) {
	phone := readPathString(r, "phone")
	customer, err := loyalty.Load(r.Context(), h.DB, phone)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, customer)
}

type upsertCustomerRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

func (h *Handler) CustomerUpsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body upsertCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	phone := strings.TrimSpace(body.Phone)
	if phone == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Phone is required")
		return
	}

	customer, err := loyalty.Upsert(ctx, h.DB, phone, strings.TrimSpace(body.Name))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.publish(ctx, events.CustomerUpdated, map[string]any{"customer": customer})
	response.Success(w, customer)
}

type rekeyCustomerRequest struct {
	NewPhone string `json:"newPhone"`
}

// CustomerRekey changes a customer's primary key. The rewrite touches
// orders, bills and transactions in one transaction; a duplicate target
// key is refused up front.
func (h *Handler) CustomerRekey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	oldPhone := readPathString(r, "phone")

	var body rekeyCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	newPhone := strings.TrimSpace(body.NewPhone)
	if newPhone == "" || newPhone == oldPhone {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "New phone must differ")
		return
	}

	customer, err := loyalty.UpdateCustomerPhone(ctx, h.DB, oldPhone, newPhone)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.publish(ctx, events.CustomerUpdated, map[string]any{
		"customer": customer,
		"oldPhone": oldPhone,
	})
	response.Success(w, customer)
}

func (h *Handler) publishCustomerUpdate(ctx context.Context, phone string) {
	customer, err := loyalty.Load(ctx, h.DB, phone)
	if err != nil {
		// Waiter-tagged keys have no customer row; nothing to announce.
		return
	}
	h.publish(ctx, events.CustomerUpdated, map[string]any{"customer": customer})
}
