// Package billing aggregates orders into bills and owns the payment
// cascade: bill paid, orders served, receipt snapshot, loyalty accrual
// and redemption, all inside one transaction so a partial failure can
// never leave a paid bill with un-served orders.
package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"dinetab-order-services/internal/lifecycle"
	"dinetab-order-services/internal/loyalty"
	"dinetab-order-services/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type BillStatus string

const (
	BillUnpaid BillStatus = "UNPAID"
	BillPaid   BillStatus = "PAID"
)

type Bill struct {
	ID            int64      `json:"id"`
	TableNo       int        `json:"tableNo"`
	CustomerKeys  []string   `json:"customerKeys"`
	OrderIDs      []int64    `json:"orderIds"`
	Subtotal      float64    `json:"subtotal"`
	Discount      float64    `json:"discount"`
	Total         float64    `json:"total"`
	Status        BillStatus `json:"status"`
	PaymentMethod *string    `json:"paymentMethod,omitempty"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// TxnLine is one frozen receipt line, denormalized into the transaction
// record so later order edits cannot rewrite history.
type TxnLine struct {
	OrderID  int64   `json:"orderId"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int32   `json:"quantity"`
}

type Transaction struct {
	ID            int64     `json:"id"`
	BillID        *int64    `json:"billId,omitempty"`
	TableNo       int       `json:"tableNo"`
	CustomerKeys  []string  `json:"customerKeys"`
	Total         float64   `json:"total"`
	Discount      float64   `json:"discount"`
	PaymentMethod string    `json:"paymentMethod"`
	Items         []TxnLine `json:"items"`
	PaidAt        time.Time `json:"paidAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

// BillTotal clamps the payable amount at zero.
func BillTotal(subtotal, discount float64) float64 {
	total := utils.Round2(subtotal - discount)
	if total < 0 {
		return 0
	}
	return total
}

// DistinctCustomers preserves first-seen order while deduplicating.
func DistinctCustomers(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

type selectedOrder struct {
	id          int64
	tableNo     int
	customerKey string
	status      lifecycle.Status
	total       float64
}

// CreateBill groups the selected orders into one unpaid bill. The
// selection is re-validated against current state: billable status,
// matching table, and no coverage by an existing paid bill.
func CreateBill(ctx context.Context, db *pgxpool.Pool, tableNo int, orderIDs []int64, discount float64) (*Bill, error) {
	if len(orderIDs) == 0 {
		return nil, ErrEmptySelection
	}
	if discount < 0 {
		return nil, ErrBadDiscount
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orders := make([]selectedOrder, 0, len(orderIDs))
	for _, id := range orderIDs {
		var o selectedOrder
		var total pgtype.Numeric
		if err := tx.QueryRow(ctx, `
			select id, table_no, customer_key, status, total_amount
			from orders where id = $1 for update
		`, id).Scan(&o.id, &o.tableNo, &o.customerKey, &o.status, &total); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, lifecycle.ErrOrderNotFound
			}
			return nil, err
		}
		o.total = utils.NumericToFloat64(total)

		if o.tableNo != tableNo {
			return nil, ErrTableMismatch
		}
		if !billable(o.status) {
			return nil, ErrNotBillable
		}

		var covered bool
		if err := tx.QueryRow(ctx, `
			select exists(
				select 1 from bill_orders bo
				join bills b on b.id = bo.bill_id
				where bo.order_id = $1 and b.status = 'PAID'
			)
		`, id).Scan(&covered); err != nil {
			return nil, err
		}
		if covered {
			return nil, ErrAlreadyBilled
		}
		orders = append(orders, o)
	}

	var subtotal float64
	keys := make([]string, 0, len(orders))
	for _, o := range orders {
		subtotal = utils.Round2(subtotal + o.total)
		keys = append(keys, o.customerKey)
	}
	if discount > subtotal {
		return nil, ErrDiscountExceedsSubtotal
	}

	bill := &Bill{
		TableNo:      tableNo,
		CustomerKeys: DistinctCustomers(keys),
		OrderIDs:     orderIDs,
		Subtotal:     subtotal,
		Discount:     discount,
		Total:        BillTotal(subtotal, discount),
		Status:       BillUnpaid,
	}
	if err := tx.QueryRow(ctx, `
		insert into bills (table_no, customer_keys, subtotal, discount, total_amount, status)
		values ($1,$2,$3,$4,$5,$6)
		returning id, created_at
	`, tableNo, bill.CustomerKeys, subtotal, discount, bill.Total, BillUnpaid).
		Scan(&bill.ID, &bill.CreatedAt); err != nil {
		return nil, err
	}

	for _, o := range orders {
		if _, err := tx.Exec(ctx, `insert into bill_orders (bill_id, order_id) values ($1,$2)`, bill.ID, o.id); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return bill, nil
}

type PayParams struct {
	Method         string
	LoyaltyEnabled bool
	PointsDivisor  int64
}

type PayResult struct {
	Bill        *Bill
	Transaction *Transaction
	OrderIDs    []int64
}

// PayBill runs the full payment cascade. The AlreadyPaid guard makes a
// retried call a clean conflict instead of double-counted revenue.
func PayBill(ctx context.Context, db *pgxpool.Pool, billID int64, p PayParams) (*PayResult, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := payBillTx(ctx, tx, billID, p, time.Now())
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

func payBillTx(ctx context.Context, tx DBTX, billID int64, p PayParams, now time.Time) (*PayResult, error) {
	bill := &Bill{ID: billID}
	var subtotal, discount, total pgtype.Numeric
	var status BillStatus
	if err := tx.QueryRow(ctx, `
		select table_no, customer_keys, subtotal, discount, total_amount, status, created_at
		from bills where id = $1 for update
	`, billID).Scan(&bill.TableNo, &bill.CustomerKeys, &subtotal, &discount, &total, &status, &bill.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, err
	}
	if status == BillPaid {
		return nil, ErrAlreadyPaid
	}
	bill.Subtotal = utils.NumericToFloat64(subtotal)
	bill.Discount = utils.NumericToFloat64(discount)
	bill.Total = utils.NumericToFloat64(total)

	orderIDs, err := coveredOrderIDs(ctx, tx, billID)
	if err != nil {
		return nil, err
	}
	bill.OrderIDs = orderIDs

	// Overlapping unpaid bills are allowed; an order paying out twice is
	// not. Re-check coverage here, not just at bill creation.
	for _, orderID := range orderIDs {
		var covered bool
		if err := tx.QueryRow(ctx, `
			select exists(
				select 1 from bill_orders bo
				join bills b on b.id = bo.bill_id
				where bo.order_id = $1 and b.id <> $2 and b.status = 'PAID'
			)
		`, orderID, billID).Scan(&covered); err != nil {
			return nil, err
		}
		if covered {
			return nil, ErrAlreadyBilled
		}
	}

	bill.Status = BillPaid
	bill.PaymentMethod = &p.Method
	bill.PaidAt = &now
	if _, err := tx.Exec(ctx, `
		update bills set status = $1, payment_method = $2, paid_at = $3 where id = $4
	`, BillPaid, p.Method, now, billID); err != nil {
		return nil, err
	}

	for _, orderID := range orderIDs {
		if err := lifecycle.MarkServedTx(ctx, tx, orderID, now); err != nil {
			return nil, err
		}
	}

	lines, err := snapshotLines(ctx, tx, orderIDs)
	if err != nil {
		return nil, err
	}

	txn := &Transaction{
		BillID:        &billID,
		TableNo:       bill.TableNo,
		CustomerKeys:  bill.CustomerKeys,
		Total:         bill.Total,
		Discount:      bill.Discount,
		PaymentMethod: p.Method,
		Items:         lines,
		PaidAt:        now,
	}
	if err := tx.QueryRow(ctx, `
		insert into transactions (bill_id, table_no, customer_keys, total_amount, discount, payment_method, items, paid_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
		returning id, created_at
	`, billID, bill.TableNo, bill.CustomerKeys, bill.Total, bill.Discount, p.Method, lines, now).
		Scan(&txn.ID, &txn.CreatedAt); err != nil {
		return nil, err
	}

	if p.LoyaltyEnabled && len(bill.CustomerKeys) > 0 {
		share := loyalty.EvenShare(bill.Total, len(bill.CustomerKeys))
		redeemShares := loyalty.SplitPoints(int64(bill.Discount), len(bill.CustomerKeys))
		for i, phone := range bill.CustomerKeys {
			// Waiter-tagged keys stand in for anonymous guests; they
			// never accrue.
			if strings.HasPrefix(phone, "waiter-") {
				continue
			}
			if err := loyalty.AccrueTx(ctx, tx, phone, share, p.PointsDivisor, now); err != nil {
				return nil, err
			}
			if i < len(redeemShares) && redeemShares[i] > 0 {
				if err := loyalty.RedeemTx(ctx, tx, phone, redeemShares[i]); err != nil {
					return nil, err
				}
			}
		}
	}

	return &PayResult{Bill: bill, Transaction: txn, OrderIDs: orderIDs}, nil
}

func billable(s lifecycle.Status) bool {
	switch s {
	case lifecycle.StatusAccepted, lifecycle.StatusPreparing, lifecycle.StatusReady, lifecycle.StatusServed:
		return true
	}
	return false
}

func coveredOrderIDs(ctx context.Context, tx DBTX, billID int64) ([]int64, error) {
	rows, err := tx.Query(ctx, `select order_id from bill_orders where bill_id = $1 order by order_id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func snapshotLines(ctx context.Context, tx DBTX, orderIDs []int64) ([]TxnLine, error) {
	if len(orderIDs) == 0 {
		return []TxnLine{}, nil
	}
	rows, err := tx.Query(ctx, `
		select order_id, name, price, quantity from order_items
		where order_id = any($1) order by order_id, id
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]TxnLine, 0)
	for rows.Next() {
		var line TxnLine
		var price pgtype.Numeric
		if err := rows.Scan(&line.OrderID, &line.Name, &price, &line.Quantity); err != nil {
			return nil, err
		}
		line.Price = utils.NumericToFloat64(price)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func LoadBill(ctx context.Context, db *pgxpool.Pool, billID int64) (*Bill, error) {
	bill := &Bill{}
	var subtotal, discount, total pgtype.Numeric
	var method pgtype.Text
	var paidAt pgtype.Timestamptz
	if err := db.QueryRow(ctx, `
		select id, table_no, customer_keys, subtotal, discount, total_amount, status, payment_method, paid_at, created_at
		from bills where id = $1
	`, billID).Scan(&bill.ID, &bill.TableNo, &bill.CustomerKeys, &subtotal, &discount, &total,
		&bill.Status, &method, &paidAt, &bill.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, err
	}
	bill.Subtotal = utils.NumericToFloat64(subtotal)
	bill.Discount = utils.NumericToFloat64(discount)
	bill.Total = utils.NumericToFloat64(total)
	if method.Valid {
		bill.PaymentMethod = &method.String
	}
	if paidAt.Valid {
		bill.PaidAt = &paidAt.Time
	}

	ids, err := coveredOrderIDs(ctx, db, billID)
	if err != nil {
		return nil, err
	}
	bill.OrderIDs = ids
	return bill, nil
}

func ListBills(ctx context.Context, db *pgxpool.Pool, status *BillStatus) ([]Bill, error) {
	query := `
		select id, table_no, customer_keys, subtotal, discount, total_amount, status, payment_method, paid_at, created_at
		from bills
	`
	args := []any{}
	if status != nil {
		query += ` where status = $1`
		args = append(args, *status)
	}
	query += ` order by created_at desc`

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]Bill, 0)
	for rows.Next() {
		var bill Bill
		var subtotal, discount, total pgtype.Numeric
		var method pgtype.Text
		var paidAt pgtype.Timestamptz
		if err := rows.Scan(&bill.ID, &bill.TableNo, &bill.CustomerKeys, &subtotal, &discount, &total,
			&bill.Status, &method, &paidAt, &bill.CreatedAt); err != nil {
			return nil, err
		}
		bill.Subtotal = utils.NumericToFloat64(subtotal)
		bill.Discount = utils.NumericToFloat64(discount)
		bill.Total = utils.NumericToFloat64(total)
		if method.Valid {
			bill.PaymentMethod = &method.String
		}
		if paidAt.Valid {
			bill.PaidAt = &paidAt.Time
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}
