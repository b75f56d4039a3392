package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"dinetab-order-services/internal/events"
	"dinetab-order-services/internal/middleware"
	"dinetab-order-services/pkg/response"

	"github.com/jackc/pgx/v5"
)

type WaiterCall struct {
	ID         int64      `json:"id"`
	TableNo    int        `json:"tableNo"`
	Message    string     `json:"message"`
	Resolved   bool       `json:"resolved"`
	ResolvedBy *int64     `json:"resolvedBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

var errCallNotFound = errors.New("waiter call not found")

type raiseCallRequest struct {
	TableNo int    `json:"tableNo"`
	Message string `json:"message"`
}

func (h *Handler) WaiterCallRaise(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body raiseCallRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	cfg, err := h.loadSettings(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if body.TableNo < 1 || body.TableNo > cfg.TableCount {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table number out of range")
		return
	}

	call := WaiterCall{TableNo: body.TableNo, Message: strings.TrimSpace(body.Message)}
	if err := h.DB.QueryRow(ctx, `
		insert into waiter_calls (table_no, message) values ($1, $2)
		returning id, created_at
	`, call.TableNo, call.Message).Scan(&call.ID, &call.CreatedAt); err != nil {
		h.writeError(w, err)
		return
	}

	h.publish(ctx, events.WaiterCallRaised, map[string]any{"call": call})
	response.Created(w, call)
}

func (h *Handler) WaiterCallsList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(r.Context(), `
		select id, table_no, message, resolved, resolved_by, created_at, resolved_at
		from waiter_calls where not resolved order by created_at
	`)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer rows.Close()

	calls := make([]WaiterCall, 0)
	for rows.Next() {
		var call WaiterCall
		if err := rows.Scan(&call.ID, &call.TableNo, &call.Message, &call.Resolved,
			&call.ResolvedBy, &call.CreatedAt, &call.ResolvedAt); err != nil {
			h.writeError(w, err)
			return
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, calls)
}

func (h *Handler) WaiterCallResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callID, err := readPathInt64(r, "callId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid call id")
		return
	}
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Staff context not found")
		return
	}

	call := WaiterCall{}
	if err := h.DB.QueryRow(ctx, `
		update waiter_calls
		set resolved = true, resolved_by = $1, resolved_at = now()
		where id = $2 and not resolved
		returning id, table_no, message, resolved, resolved_by, created_at, resolved_at
	`, authCtx.StaffID, callID).Scan(&call.ID, &call.TableNo, &call.Message, &call.Resolved,
		&call.ResolvedBy, &call.CreatedAt, &call.ResolvedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.writeError(w, errCallNotFound)
			return
		}
		h.writeError(w, err)
		return
	}

	h.publish(ctx, events.WaiterCallResolved, map[string]any{"call": call})
	response.Success(w, call)
}
