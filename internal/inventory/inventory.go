// Package inventory tracks stock levels per menu item. Every mutation
// appends an immutable inventory transaction so levels can always be
// audited back to receives, sales, adjustments and waste.
package inventory

import (
	"context"
	"errors"
	"time"

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

type Kind string

const (
	KindReceive    Kind = "RECEIVE"
	KindSale       Kind = "SALE"
	KindAdjustment Kind = "ADJUSTMENT"
	KindWaste      Kind = "WASTE"
)

var (
	ErrItemNotFound = errors.New("inventory item not found")
	ErrBadQuantity  = errors.New("quantity must be positive")
)

type Item struct {
	MenuItemID   int64     `json:"menuItemId"`
	StockQty     float64   `json:"stockQty"`
	Unit         string    `json:"unit"`
	LowThreshold float64   `json:"lowThreshold"`
	LowStock     bool      `json:"lowStock"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Transaction struct {
	ID         int64     `json:"id"`
	MenuItemID int64     `json:"menuItemId"`
	Kind       Kind      `json:"kind"`
	Quantity   float64   `json:"quantity"`
	OrderID    *int64    `json:"orderId,omitempty"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IsLow recomputes the low-stock flag from the current level and
// threshold; it is derived, never stored.
func IsLow(stockQty, threshold float64) bool {
	return threshold > 0 && stockQty <= threshold
}

// ApplyDelta is the pure stock arithmetic: deductions floor at zero so a
// miscounted shelf can never drive the level negative.
func ApplyDelta(current, delta float64) float64 {
	next := current + delta
	if next < 0 {
		return 0
	}
	return next
}

// Receive adds stock, creating the tracking row on first receive.
func Receive(ctx context.Context, db *pgxpool.Pool, menuItemID int64, qty float64, unit string, note *string) (*Item, error) {
	if qty <= 0 {
		return nil, ErrBadQuantity
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		insert into inventory_items (menu_item_id, stock_qty, unit, updated_at)
		values ($1, $2, $3, now())
		on conflict (menu_item_id) do update
		set stock_qty = inventory_items.stock_qty + excluded.stock_qty, updated_at = now()
	`, menuItemID, qty, unit); err != nil {
		return nil, err
	}
	if err := appendTx(ctx, tx, menuItemID, KindReceive, qty, nil, note); err != nil {
		return nil, err
	}

	item, err := loadItemTx(ctx, tx, menuItemID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return item, nil
}

// Deduct removes stock manually (adjustment or waste).
func Deduct(ctx context.Context, db *pgxpool.Pool, menuItemID int64, qty float64, kind Kind, note *string) (*Item, error) {
	if qty <= 0 {
		return nil, ErrBadQuantity
	}
	if kind != KindAdjustment && kind != KindWaste {
		kind = KindAdjustment
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := deductTx(ctx, tx, menuItemID, qty, kind, nil, note); err != nil {
		return nil, err
	}
	item, err := loadItemTx(ctx, tx, menuItemID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return item, nil
}

// DeductForOrderTx runs inside the caller's transaction and deducts
// stock for every tracked line of a fulfilled order, appending one SALE
// transaction per line.
func DeductForOrderTx(ctx context.Context, tx DBTX, orderID int64) error {
	rows, err := tx.Query(ctx, `
		select oi.menu_item_id, oi.quantity
		from order_items oi
		join menu_items m on m.id = oi.menu_item_id
		where oi.order_id = $1 and m.track_stock
	`, orderID)
	if err != nil {
		return err
	}

	type line struct {
		menuItemID int64
		qty        int32
	}
	lines := make([]line, 0)
	for rows.Next() {
		var l line
		var menuID pgtype.Int8
		if err := rows.Scan(&menuID, &l.qty); err != nil {
			rows.Close()
			return err
		}
		if menuID.Valid {
			l.menuItemID = menuID.Int64
			lines = append(lines, l)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, l := range lines {
		if err := deductTx(ctx, tx, l.menuItemID, float64(l.qty), KindSale, &orderID, nil); err != nil {
			return err
		}
	}
	return nil
}

func deductTx(ctx context.Context, tx DBTX, menuItemID int64, qty float64, kind Kind, orderID *int64, note *string) error {
	var current pgtype.Numeric
	if err := tx.QueryRow(ctx, `
		select stock_qty from inventory_items where menu_item_id = $1 for update
	`, menuItemID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Tracked menu item without an inventory row: nothing to deduct.
			return nil
		}
		return err
	}

	next := ApplyDelta(utils.NumericToFloat64(current), -qty)
	if _, err := tx.Exec(ctx, `
		update inventory_items set stock_qty = $1, updated_at = now() where menu_item_id = $2
	`, next, menuItemID); err != nil {
		return err
	}
	return appendTx(ctx, tx, menuItemID, kind, -qty, orderID, note)
}

func appendTx(ctx context.Context, tx DBTX, menuItemID int64, kind Kind, qty float64, orderID *int64, note *string) error {
	_, err := tx.Exec(ctx, `
		insert into inventory_transactions (menu_item_id, kind, quantity, order_id, note)
		values ($1,$2,$3,$4,$5)
	`, menuItemID, kind, qty, orderID, note)
	return err
}

func loadItemTx(ctx context.Context, tx DBTX, menuItemID int64) (*Item, error) {
	item := &Item{}
	var stock, threshold pgtype.Numeric
	if err := tx.QueryRow(ctx, `
		select menu_item_id, stock_qty, unit, low_threshold, updated_at
		from inventory_items where menu_item_id = $1
	`, menuItemID).Scan(&item.MenuItemID, &stock, &item.Unit, &threshold, &item.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	item.StockQty = utils.NumericToFloat64(stock)
	item.LowThreshold = utils.NumericToFloat64(threshold)
	item.LowStock = IsLow(item.StockQty, item.LowThreshold)
	return item, nil
}

func Levels(ctx context.Context, db *pgxpool.Pool) ([]Item, error) {
	return list(ctx, db, `select menu_item_id, stock_qty, unit, low_threshold, updated_at from inventory_items order by menu_item_id`)
}

func LowStock(ctx context.Context, db *pgxpool.Pool) ([]Item, error) {
	return list(ctx, db, `
		select menu_item_id, stock_qty, unit, low_threshold, updated_at
		from inventory_items
		where low_threshold > 0 and stock_qty <= low_threshold
		order by menu_item_id
	`)
}

func list(ctx context.Context, db *pgxpool.Pool, query string) ([]Item, error) {
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		var stock, threshold pgtype.Numeric
		if err := rows.Scan(&item.MenuItemID, &stock, &item.Unit, &threshold, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.StockQty = utils.NumericToFloat64(stock)
		item.LowThreshold = utils.NumericToFloat64(threshold)
		item.LowStock = IsLow(item.StockQty, item.LowThreshold)
		items = append(items, item)
	}
	return items, rows.Err()
}
