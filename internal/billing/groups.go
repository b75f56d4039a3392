package billing

import (
	"context"
	"sort"

	"dinetab-order-services/internal/lifecycle"
	"dinetab-order-services/internal/utils"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderRef is the slice of an order the grouping logic needs.
type OrderRef struct {
	ID          int64
	TableNo     int
	CustomerKey string
	Total       float64
}

// Group is a billable unit: orders for one table+customer pair not yet
// covered by a paid bill.
type Group struct {
	TableNo     int     `json:"tableNo"`
	CustomerKey string  `json:"customerKey"`
	OrderIDs    []int64 `json:"orderIds"`
	Subtotal    float64 `json:"subtotal"`
}

// GroupOrders buckets order refs by (table, customer), summing totals.
// Output is ordered by table then customer for stable client rendering.
func GroupOrders(orders []OrderRef) []Group {
	type key struct {
		table    int
		customer string
	}
	buckets := make(map[key]*Group)
	for _, o := range orders {
		k := key{o.TableNo, o.CustomerKey}
		g, ok := buckets[k]
		if !ok {
			g = &Group{TableNo: o.TableNo, CustomerKey: o.CustomerKey}
			buckets[k] = g
		}
		g.OrderIDs = append(g.OrderIDs, o.ID)
		g.Subtotal = utils.Round2(g.Subtotal + o.Total)
	}

	groups := make([]Group, 0, len(buckets))
	for _, g := range buckets {
		sort.Slice(g.OrderIDs, func(i, j int) bool { return g.OrderIDs[i] < g.OrderIDs[j] })
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].TableNo != groups[j].TableNo {
			return groups[i].TableNo < groups[j].TableNo
		}
		return groups[i].CustomerKey < groups[j].CustomerKey
	})
	return groups
}

// UnbilledGroups re-evaluates paid-bill coverage on every read; caching
// membership here is what would reopen the double-billing hole.
func UnbilledGroups(ctx context.Context, db *pgxpool.Pool, tableNo *int) ([]Group, error) {
	query := `
		select o.id, o.table_no, o.customer_key, o.total_amount
		from orders o
		where o.status = any($1)
		  and not exists (
			select 1 from bill_orders bo
			join bills b on b.id = bo.bill_id
			where bo.order_id = o.id and b.status = 'PAID'
		  )
	`
	args := []any{billableStatuses()}
	if tableNo != nil {
		query += ` and o.table_no = $2`
		args = append(args, *tableNo)
	}
	query += ` order by o.id`

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]OrderRef, 0)
	for rows.Next() {
		var ref OrderRef
		var total pgtype.Numeric
		if err := rows.Scan(&ref.ID, &ref.TableNo, &ref.CustomerKey, &total); err != nil {
			return nil, err
		}
		ref.Total = utils.NumericToFloat64(total)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return GroupOrders(refs), nil
}

func billableStatuses() []string {
	return []string{
		string(lifecycle.StatusAccepted),
		string(lifecycle.StatusPreparing),
		string(lifecycle.StatusReady),
		string(lifecycle.StatusServed),
	}
}
