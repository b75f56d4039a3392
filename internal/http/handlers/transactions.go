package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"dinetab-order-services/internal/billing"
	"dinetab-order-services/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var errTransactionNotFound = errors.New("transaction not found")

func (h *Handler) TransactionsList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(r.Context(), `
		select id, bill_id, table_no, customer_keys, total_amount, discount, payment_method, items, paid_at, created_at
		from transactions order by paid_at desc
	`)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer rows.Close()

	txns := make([]billing.Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			h.writeError(w, err)
			return
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, txns)
}

func (h *Handler) TransactionDetail(w http.ResponseWriter, r *http.Request) {
	txnID, err := readPathInt64(r, "txnId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid transaction id")
		return
	}
	txn, err := h.loadTransaction(r.Context(), txnID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, txn)
}

type createTransactionRequest struct {
	BillID        *int64            `json:"billId"`
	TableNo       int               `json:"tableNo"`
	CustomerKeys  []string          `json:"customerKeys"`
	Total         float64           `json:"total"`
	Discount      float64           `json:"discount"`
	PaymentMethod string            `json:"paymentMethod"`
	Items         []billing.TxnLine `json:"items"`
	PaidAt        *time.Time        `json:"paidAt"`
}

// TransactionCreate exists for reconciliation tooling: a receipt can be
// recorded independently of the payment cascade (e.g. imported from a
// day the backend was down). It is immutable once written.
func (h *Handler) TransactionCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if body.TableNo < 1 || body.Total < 0 || strings.TrimSpace(body.PaymentMethod) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table, total and payment method are required")
		return
	}

	paidAt := time.Now()
	if body.PaidAt != nil {
		paidAt = *body.PaidAt
	}
	if body.Items == nil {
		body.Items = []billing.TxnLine{}
	}
	if body.CustomerKeys == nil {
		body.CustomerKeys = []string{}
	}

	txn := &billing.Transaction{
		BillID:        body.BillID,
		TableNo:       body.TableNo,
		CustomerKeys:  body.CustomerKeys,
		Total:         body.Total,
		Discount:      body.Discount,
		PaymentMethod: body.PaymentMethod,
		Items:         body.Items,
		PaidAt:        paidAt,
	}
	if err := h.DB.QueryRow(ctx, `
		insert into transactions (bill_id, table_no, customer_keys, total_amount, discount, payment_method, items, paid_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
		returning id, created_at
	`, body.BillID, body.TableNo, body.CustomerKeys, body.Total, body.Discount,
		body.PaymentMethod, body.Items, paidAt).Scan(&txn.ID, &txn.CreatedAt); err != nil {
		h.writeError(w, err)
		return
	}

	response.Created(w, txn)
}

func (h *Handler) loadTransaction(ctx context.Context, txnID int64) (*billing.Transaction, error) {
	row := h.DB.QueryRow(ctx, `
		select id, bill_id, table_no, customer_keys, total_amount, discount, payment_method, items, paid_at, created_at
		from transactions where id = $1
	`, txnID)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errTransactionNotFound
		}
		return nil, err
	}
	return txn, nil
}

func scanTransaction(row pgx.Row) (*billing.Transaction, error) {
	txn := &billing.Transaction{}
	var billID pgtype.Int8
	var total, discount pgtype.Numeric
	var items []byte
	if err := row.Scan(&txn.ID, &billID, &txn.TableNo, &txn.CustomerKeys, &total, &discount,
		&txn.PaymentMethod, &items, &txn.PaidAt, &txn.CreatedAt); err != nil {
		return nil, err
	}
	if billID.Valid {
		txn.BillID = &billID.Int64
	}
	txn.Total = numericFloat(total)
	txn.Discount = numericFloat(discount)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &txn.Items); err != nil {
			return nil, err
		}
	}
	return txn, nil
}
