package lifecycle

import (
	"context"
	"errors"
	"time"

	"dinetab-order-services/internal/inventory"
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

type Order struct {
	ID          int64     `json:"id"`
	TableNo     int       `json:"tableNo"`
	CustomerKey string    `json:"customerKey"`
	Status      Status    `json:"status"`
	Total       float64   `json:"total"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedBy   *int64    `json:"createdByStaffId,omitempty"`
	WaiterOrder bool      `json:"isWaiterOrder"`
	Priority    bool      `json:"priority"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Items       []Item    `json:"items,omitempty"`
}

type Item struct {
	ID           int64      `json:"id"`
	OrderID      int64      `json:"orderId"`
	MenuItemID   *int64     `json:"menuItemId,omitempty"`
	Name         string     `json:"name"`
	Price        float64    `json:"price"`
	Quantity     int32      `json:"quantity"`
	ItemStatus   ItemStatus `json:"itemStatus"`
	CompletedQty int32      `json:"completedQty"`
}

type NewOrderItem struct {
	MenuItemID *int64
	Name       string
	Price      float64
	Quantity   int32
}

type NewOrderParams struct {
	TableNo     int
	CustomerKey string
	Items       []NewOrderItem
	Notes       *string
	CreatedBy   *int64
	WaiterOrder bool
	Priority    bool
}

// ComputeTotal freezes the order total at creation time. Later menu
// price edits never touch placed orders because each line carries its
// own price snapshot.
func ComputeTotal(items []NewOrderItem) float64 {
	var total float64
	for _, item := range items {
		total += float64(item.Quantity) * item.Price
	}
	return utils.Round2(total)
}

func ValidateNewOrder(p NewOrderParams, tableCount int) error {
	if p.TableNo < 1 || p.TableNo > tableCount {
		return ErrTableOutOfRange
	}
	if len(p.Items) == 0 {
		return ErrNoItems
	}
	for _, item := range p.Items {
		if item.Quantity <= 0 {
			return ErrBadQuantity
		}
	}
	return nil
}

// CreateOrder persists a validated order and its line items in one
// transaction. Caller decides the initial status via InitialStatus.
func CreateOrder(ctx context.Context, db *pgxpool.Pool, p NewOrderParams, initial Status) (*Order, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	total := ComputeTotal(p.Items)
	order := &Order{
		TableNo:     p.TableNo,
		CustomerKey: p.CustomerKey,
		Status:      initial,
		Total:       total,
		Notes:       p.Notes,
		CreatedBy:   p.CreatedBy,
		WaiterOrder: p.WaiterOrder,
		Priority:    p.Priority,
	}
	if err := tx.QueryRow(ctx, `
		insert into orders (table_no, customer_key, status, total_amount, notes, created_by_staff, is_waiter_order, priority)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
		returning id, created_at, updated_at
	`, p.TableNo, p.CustomerKey, initial, total, p.Notes, p.CreatedBy, p.WaiterOrder, p.Priority).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return nil, err
	}

	for _, line := range p.Items {
		item := Item{
			OrderID:    order.ID,
			MenuItemID: line.MenuItemID,
			Name:       line.Name,
			Price:      line.Price,
			Quantity:   line.Quantity,
			ItemStatus: ItemQueued,
		}
		if err := tx.QueryRow(ctx, `
			insert into order_items (order_id, menu_item_id, name, price, quantity)
			values ($1,$2,$3,$4,$5)
			returning id
		`, order.ID, line.MenuItemID, line.Name, line.Price, line.Quantity).Scan(&item.ID); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateStatus enforces the transition table inside the update
// transaction, so a racing writer cannot slip a regression through.
func UpdateStatus(ctx context.Context, db *pgxpool.Pool, orderID int64, next Status) (*Order, error) {
	if !ValidStatus(next) {
		return nil, ErrInvalidTransition
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current Status
	if err := tx.QueryRow(ctx, `select status from orders where id = $1 for update`, orderID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !CanTransition(current, next) {
		return nil, ErrInvalidTransition
	}

	if _, err := tx.Exec(ctx, `update orders set status = $1, updated_at = now() where id = $2`, next, orderID); err != nil {
		return nil, err
	}

	if next == StatusServed {
		if err := deductStockOnce(ctx, tx, orderID, time.Now()); err != nil {
			return nil, err
		}
	}

	order, err := loadOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

// RejectOrder cancels a still-pending order. If acceptance won the race
// the caller gets ErrAlreadyAccepted and state is left alone.
func RejectOrder(ctx context.Context, db *pgxpool.Pool, orderID int64) (*Order, error) {
	tag, err := db.Exec(ctx, `
		update orders set status = $1, updated_at = now()
		where id = $2 and status = $3
	`, StatusCancelled, orderID, StatusPending)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		var current Status
		if err := db.QueryRow(ctx, `select status from orders where id = $1`, orderID).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrOrderNotFound
			}
			return nil, err
		}
		return nil, ErrAlreadyAccepted
	}
	return LoadOrder(ctx, db, orderID)
}

type ItemUpdate struct {
	Status       *ItemStatus
	CompletedQty *int32
}

type ItemUpdateResult struct {
	Order    *Order
	Promoted bool
}

// UpdateItemStatus updates one line and recomputes the derived order
// status. Promotion is a server-side rule, never a client transition.
func UpdateItemStatus(ctx context.Context, db *pgxpool.Pool, orderID, itemID int64, upd ItemUpdate) (*ItemUpdateResult, error) {
	if upd.Status != nil && !ValidItemStatus(*upd.Status) {
		return nil, ErrInvalidTransition
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current Status
	if err := tx.QueryRow(ctx, `select status from orders where id = $1 for update`, orderID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	var qty int32
	if err := tx.QueryRow(ctx, `select quantity from order_items where id = $1 and order_id = $2`, itemID, orderID).Scan(&qty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}

	if upd.Status != nil {
		if _, err := tx.Exec(ctx, `update order_items set item_status = $1 where id = $2`, *upd.Status, itemID); err != nil {
			return nil, err
		}
	}
	if upd.CompletedQty != nil {
		completed := *upd.CompletedQty
		if completed < 0 {
			completed = 0
		}
		if completed > qty {
			completed = qty
		}
		if _, err := tx.Exec(ctx, `update order_items set completed_qty = $1 where id = $2`, completed, itemID); err != nil {
			return nil, err
		}
		if completed >= qty {
			if _, err := tx.Exec(ctx, `update order_items set item_status = $1 where id = $2`, ItemReady, itemID); err != nil {
				return nil, err
			}
		}
	}

	progress, err := loadItemProgress(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	promoted := false
	if target := PromotionTarget(current, progress); target != "" {
		if _, err := tx.Exec(ctx, `update orders set status = $1, updated_at = now() where id = $2`, target, orderID); err != nil {
			return nil, err
		}
		promoted = target == StatusReady || target == StatusPreparing
	}

	order, err := loadOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &ItemUpdateResult{Order: order, Promoted: promoted}, nil
}

func SetPriority(ctx context.Context, db *pgxpool.Pool, orderID int64, priority bool) (*Order, error) {
	tag, err := db.Exec(ctx, `update orders set priority = $1, updated_at = now() where id = $2`, priority, orderID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrOrderNotFound
	}
	return LoadOrder(ctx, db, orderID)
}

func LoadOrder(ctx context.Context, db DBTX, orderID int64) (*Order, error) {
	return loadOrderTx(ctx, db, orderID)
}

func loadOrderTx(ctx context.Context, tx DBTX, orderID int64) (*Order, error) {
	order := &Order{}
	var total pgtype.Numeric
	var notes pgtype.Text
	var createdBy pgtype.Int8
	if err := tx.QueryRow(ctx, `
		select id, table_no, customer_key, status, total_amount, notes, created_by_staff,
		       is_waiter_order, priority, created_at, updated_at
		from orders where id = $1
	`, orderID).Scan(&order.ID, &order.TableNo, &order.CustomerKey, &order.Status, &total,
		&notes, &createdBy, &order.WaiterOrder, &order.Priority, &order.CreatedAt, &order.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	order.Total = utils.NumericToFloat64(total)
	if notes.Valid {
		order.Notes = &notes.String
	}
	if createdBy.Valid {
		order.CreatedBy = &createdBy.Int64
	}

	items, err := LoadItems(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func LoadItems(ctx context.Context, tx DBTX, orderID int64) ([]Item, error) {
	rows, err := tx.Query(ctx, `
		select id, order_id, menu_item_id, name, price, quantity, item_status, completed_qty
		from order_items where order_id = $1 order by id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		var menuID pgtype.Int8
		var price pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.OrderID, &menuID, &item.Name, &price,
			&item.Quantity, &item.ItemStatus, &item.CompletedQty); err != nil {
			return nil, err
		}
		if menuID.Valid {
			item.MenuItemID = &menuID.Int64
		}
		item.Price = utils.NumericToFloat64(price)
		items = append(items, item)
	}
	return items, rows.Err()
}

func loadItemProgress(ctx context.Context, tx DBTX, orderID int64) ([]ItemProgress, error) {
	rows, err := tx.Query(ctx, `
		select item_status, completed_qty, quantity from order_items where order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	progress := make([]ItemProgress, 0)
	for rows.Next() {
		var p ItemProgress
		if err := rows.Scan(&p.Status, &p.CompletedQty, &p.Quantity); err != nil {
			return nil, err
		}
		progress = append(progress, p)
	}
	return progress, rows.Err()
}

// deductStockOnce runs the inventory side effect the first time an order
// reaches SERVED. The stock_deducted_at stamp makes retries no-ops.
func deductStockOnce(ctx context.Context, tx DBTX, orderID int64, now time.Time) error {
	var deductedAt pgtype.Timestamptz
	if err := tx.QueryRow(ctx, `select stock_deducted_at from orders where id = $1`, orderID).Scan(&deductedAt); err != nil {
		return err
	}
	if deductedAt.Valid {
		return nil
	}
	if err := inventory.DeductForOrderTx(ctx, tx, orderID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `update orders set stock_deducted_at = $1 where id = $2`, now, orderID)
	return err
}

// MarkServedTx transitions one covered order to SERVED inside a caller's
// transaction (the payment cascade), including the stock side effect.
func MarkServedTx(ctx context.Context, tx DBTX, orderID int64, now time.Time) error {
	var current Status
	if err := tx.QueryRow(ctx, `select status from orders where id = $1 for update`, orderID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return err
	}
	if current == StatusServed {
		return nil
	}
	if current == StatusCancelled {
		return ErrInvalidTransition
	}
	if _, err := tx.Exec(ctx, `update orders set status = $1, updated_at = now() where id = $2`, StatusServed, orderID); err != nil {
		return err
	}
	return deductStockOnce(ctx, tx, orderID, now)
}
