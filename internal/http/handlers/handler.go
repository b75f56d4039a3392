package handlers

import (
	"context"
	"errors"
	"net/http"

	"dinetab-order-services/internal/billing"
	"dinetab-order-services/internal/config"
	"dinetab-order-services/internal/events"
	"dinetab-order-services/internal/inventory"
	"dinetab-order-services/internal/lifecycle"
	"dinetab-order-services/internal/loyalty"
	"dinetab-order-services/internal/queue"
	"dinetab-order-services/internal/settings"
	"dinetab-order-services/internal/ws"
	"dinetab-order-services/pkg/response"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Handler struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config
	Queue  *queue.Client
	WS     *ws.Server
}

// publish fans a committed mutation out to every websocket client and
// mirrors it to the queue. Both are best-effort: the write already
// committed, so a delivery failure is logged, never bubbled up.
func (h *Handler) publish(ctx context.Context, t events.Type, data any) {
	env := h.WS.Publish(t, data)
	if h.Queue != nil {
		if err := h.Queue.PublishJSON(ctx, queue.EventsExchange, t.RoutingKey(), env); err != nil {
			h.Logger.Warn("event mirror failed", zap.String("type", string(t)), zap.Error(err))
		}
	}
}

type errorMapping struct {
	status int
	code   string
}

var domainErrors = []struct {
	err     error
	mapping errorMapping
}{
	{lifecycle.ErrOrderNotFound, errorMapping{http.StatusNotFound, "ORDER_NOT_FOUND"}},
	{lifecycle.ErrItemNotFound, errorMapping{http.StatusNotFound, "ITEM_NOT_FOUND"}},
	{lifecycle.ErrInvalidTransition, errorMapping{http.StatusConflict, "INVALID_TRANSITION"}},
	{lifecycle.ErrAlreadyAccepted, errorMapping{http.StatusConflict, "ALREADY_ACCEPTED"}},
	{lifecycle.ErrTableOutOfRange, errorMapping{http.StatusBadRequest, "VALIDATION_ERROR"}},
	{lifecycle.ErrNoItems, errorMapping{http.StatusBadRequest, "VALIDATION_ERROR"}},
	{lifecycle.ErrBadQuantity, errorMapping{http.StatusBadRequest, "VALIDATION_ERROR"}},
	{billing.ErrBillNotFound, errorMapping{http.StatusNotFound, "BILL_NOT_FOUND"}},
	{billing.ErrEmptySelection, errorMapping{http.StatusBadRequest, "EMPTY_SELECTION"}},
	{billing.ErrTableMismatch, errorMapping{http.StatusBadRequest, "TABLE_MISMATCH"}},
	{billing.ErrAlreadyPaid, errorMapping{http.StatusConflict, "ALREADY_PAID"}},
	{billing.ErrAlreadyBilled, errorMapping{http.StatusConflict, "ALREADY_BILLED"}},
	{billing.ErrNotBillable, errorMapping{http.StatusConflict, "NOT_BILLABLE"}},
	{billing.ErrDiscountExceedsSubtotal, errorMapping{http.StatusBadRequest, "DISCOUNT_EXCEEDS_SUBTOTAL"}},
	{billing.ErrBadDiscount, errorMapping{http.StatusBadRequest, "VALIDATION_ERROR"}},
	{loyalty.ErrCustomerNotFound, errorMapping{http.StatusNotFound, "CUSTOMER_NOT_FOUND"}},
	{loyalty.ErrDuplicateKey, errorMapping{http.StatusConflict, "DUPLICATE_KEY"}},
	{inventory.ErrItemNotFound, errorMapping{http.StatusNotFound, "INVENTORY_ITEM_NOT_FOUND"}},
	{inventory.ErrBadQuantity, errorMapping{http.StatusBadRequest, "VALIDATION_ERROR"}},
	{settings.ErrVersionConflict, errorMapping{http.StatusConflict, "VERSION_CONFLICT"}},
	{settings.ErrInvalid, errorMapping{http.StatusBadRequest, "VALIDATION_ERROR"}},
	{errMenuItemUnknown, errorMapping{http.StatusBadRequest, "MENU_ITEM_NOT_FOUND"}},
	{errTransactionNotFound, errorMapping{http.StatusNotFound, "TRANSACTION_NOT_FOUND"}},
	{errCallNotFound, errorMapping{http.StatusNotFound, "CALL_NOT_FOUND"}},
}

// writeError maps validation and state-conflict errors to specific
// responses; anything unmapped is a persistence error and is surfaced
// as a 500, never masked.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	for _, entry := range domainErrors {
		if errors.Is(err, entry.err) {
			response.Error(w, entry.mapping.status, entry.mapping.code, err.Error())
			return
		}
	}
	h.Logger.Error("request failed", zap.Error(err))
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Operation failed")
}

func (h *Handler) loadSettings(ctx context.Context) (*settings.Settings, error) {
	return settings.Load(ctx, h.DB)
}
