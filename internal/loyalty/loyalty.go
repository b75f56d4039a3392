// Package loyalty holds the customer ledger: cumulative spend, visit
// counters and the point balance adjusted on every paid bill.
package loyalty

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

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrDuplicateKey     = errors.New("phone already registered")
)

type Customer struct {
	Phone       string     `json:"phone"`
	Name        string     `json:"name"`
	OrderCount  int        `json:"orderCount"`
	TotalSpent  float64    `json:"totalSpent"`
	Points      int64      `json:"points"`
	LastVisitAt *time.Time `json:"lastVisitAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// PointsFor converts an amount spent into accrued points.
func PointsFor(amount float64, divisor int64) int64 {
	if divisor <= 0 || amount <= 0 {
		return 0
	}
	return int64(amount) / divisor
}

// RedeemBalance never lets a balance go negative, whatever was asked for.
func RedeemBalance(points, redeemed int64) int64 {
	if redeemed <= 0 {
		return points
	}
	next := points - redeemed
	if next < 0 {
		return 0
	}
	return next
}

// EvenShare splits a bill total across its customers for accrual.
func EvenShare(total float64, customerCount int) float64 {
	if customerCount <= 0 {
		return 0
	}
	return total / float64(customerCount)
}

// SplitPoints divides a point burn across customers. The remainder goes
// to the earliest shares so the total burned always equals the input.
func SplitPoints(total int64, customerCount int) []int64 {
	if customerCount <= 0 || total <= 0 {
		return nil
	}
	shares := make([]int64, customerCount)
	base := total / int64(customerCount)
	rem := total % int64(customerCount)
	for i := range shares {
		shares[i] = base
		if int64(i) < rem {
			shares[i]++
		}
	}
	return shares
}

// AccrueTx credits one customer for an amount spent, creating the row on
// first contact. Also bumps order count and the last-visit stamp.
func AccrueTx(ctx context.Context, tx DBTX, phone string, amount float64, divisor int64, now time.Time) error {
	points := PointsFor(amount, divisor)
	_, err := tx.Exec(ctx, `
		insert into customers (phone, order_count, total_spent, points, last_visit_at)
		values ($1, 1, $2, $3, $4)
		on conflict (phone) do update set
			order_count   = customers.order_count + 1,
			total_spent   = customers.total_spent + excluded.total_spent,
			points        = customers.points + excluded.points,
			last_visit_at = excluded.last_visit_at
	`, phone, amount, points, now)
	return err
}

// RedeemTx burns points for a discount; the floor-at-zero rule lives in
// SQL so concurrent redemptions cannot push the balance negative.
func RedeemTx(ctx context.Context, tx DBTX, phone string, redeemed int64) error {
	if redeemed <= 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		update customers set points = greatest(0, points - $1) where phone = $2
	`, redeemed, phone)
	return err
}

func Upsert(ctx context.Context, db *pgxpool.Pool, phone, name string) (*Customer, error) {
	if _, err := db.Exec(ctx, `
		insert into customers (phone, name) values ($1, $2)
		on conflict (phone) do update set name = excluded.name
	`, phone, name); err != nil {
		return nil, err
	}
	return Load(ctx, db, phone)
}

func Load(ctx context.Context, db DBTX, phone string) (*Customer, error) {
	c := &Customer{}
	var spent pgtype.Numeric
	var lastVisit pgtype.Timestamptz
	if err := db.QueryRow(ctx, `
		select phone, name, order_count, total_spent, points, last_visit_at, created_at
		from customers where phone = $1
	`, phone).Scan(&c.Phone, &c.Name, &c.OrderCount, &spent, &c.Points, &lastVisit, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	c.TotalSpent = utils.NumericToFloat64(spent)
	if lastVisit.Valid {
		c.LastVisitAt = &lastVisit.Time
	}
	return c, nil
}

func List(ctx context.Context, db *pgxpool.Pool) ([]Customer, error) {
	rows, err := db.Query(ctx, `
		select phone, name, order_count, total_spent, points, last_visit_at, created_at
		from customers order by last_visit_at desc nulls last
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]Customer, 0)
	for rows.Next() {
		var c Customer
		var spent pgtype.Numeric
		var lastVisit pgtype.Timestamptz
		if err := rows.Scan(&c.Phone, &c.Name, &c.OrderCount, &spent, &c.Points, &lastVisit, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.TotalSpent = utils.NumericToFloat64(spent)
		if lastVisit.Valid {
			c.LastVisitAt = &lastVisit.Time
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// UpdateCustomerPhone re-keys a customer. The old key is cited by
// orders, bills and transactions, so the rewrite is all-or-nothing in a
// single transaction.
func UpdateCustomerPhone(ctx context.Context, db *pgxpool.Pool, oldPhone, newPhone string) (*Customer, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	customer, err := rekeyTx(ctx, tx, oldPhone, newPhone)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return customer, nil
}

func rekeyTx(ctx context.Context, tx DBTX, oldPhone, newPhone string) (*Customer, error) {
	var exists bool
	if err := tx.QueryRow(ctx, `select exists(select 1 from customers where phone = $1)`, newPhone).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateKey
	}

	tag, err := tx.Exec(ctx, `update customers set phone = $1 where phone = $2`, newPhone, oldPhone)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrCustomerNotFound
	}

	if _, err := tx.Exec(ctx, `update orders set customer_key = $1 where customer_key = $2`, newPhone, oldPhone); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		update bills set customer_keys = array_replace(customer_keys, $2, $1)
		where $2 = any(customer_keys)
	`, newPhone, oldPhone); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		update transactions set customer_keys = array_replace(customer_keys, $2, $1)
		where $2 = any(customer_keys)
	`, newPhone, oldPhone); err != nil {
		return nil, err
	}

	return Load(ctx, tx, newPhone)
}
