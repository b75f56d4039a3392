package billing

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"dinetab-order-services/internal/lifecycle"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

func num(v int64) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(v), Valid: true}
}

type rowFunc func(dest ...any) error

func (fn rowFunc) Scan(dest ...any) error { return fn(dest...) }

type fakeRows struct {
	scans []func(dest ...any) error
	idx   int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.scans)
}

func (r *fakeRows) Scan(dest ...any) error { return r.scans[r.idx-1](dest...) }

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

// payStubTx answers the statements the payment cascade issues from
// canned state, recording every write so tests can count side effects.
type payStubTx struct {
	billStatus    BillStatus
	billCustomers []string
	subtotal      int64
	discount      int64
	total         int64
	orderIDs      []int64
	orderStatus   lifecycle.Status
	paidElsewhere bool

	execSQL  []string
	execArgs [][]any
}

func (f *payStubTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *payStubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "from bills"):
		return rowFunc(func(dest ...any) error {
			*(dest[0].(*int)) = 4
			*(dest[1].(*[]string)) = f.billCustomers
			*(dest[2].(*pgtype.Numeric)) = num(f.subtotal)
			*(dest[3].(*pgtype.Numeric)) = num(f.discount)
			*(dest[4].(*pgtype.Numeric)) = num(f.total)
			*(dest[5].(*BillStatus)) = f.billStatus
			*(dest[6].(*time.Time)) = time.Now()
			return nil
		})
	case strings.Contains(sql, "select exists"):
		return rowFunc(func(dest ...any) error {
			*(dest[0].(*bool)) = f.paidElsewhere
			return nil
		})
	case strings.Contains(sql, "stock_deducted_at"):
		return rowFunc(func(dest ...any) error {
			*(dest[0].(*pgtype.Timestamptz)) = pgtype.Timestamptz{Time: time.Now(), Valid: true}
			return nil
		})
	case strings.Contains(sql, "from orders"):
		return rowFunc(func(dest ...any) error {
			*(dest[0].(*lifecycle.Status)) = f.orderStatus
			return nil
		})
	case strings.Contains(sql, "insert into transactions"):
		return rowFunc(func(dest ...any) error {
			*(dest[0].(*int64)) = 99
			*(dest[1].(*time.Time)) = time.Now()
			return nil
		})
	}
	return rowFunc(func(dest ...any) error { return fmt.Errorf("unexpected query: %s", sql) })
}

func (f *payStubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	switch {
	case strings.Contains(sql, "from bill_orders"):
		scans := make([]func(dest ...any) error, 0, len(f.orderIDs))
		for _, id := range f.orderIDs {
			id := id
			scans = append(scans, func(dest ...any) error {
				*(dest[0].(*int64)) = id
				return nil
			})
		}
		return &fakeRows{scans: scans}, nil
	case strings.Contains(sql, "from order_items"):
		scans := make([]func(dest ...any) error, 0, len(f.orderIDs))
		for _, id := range f.orderIDs {
			id := id
			scans = append(scans, func(dest ...any) error {
				*(dest[0].(*int64)) = id
				*(dest[1].(*string)) = "Nasi Goreng"
				*(dest[2].(*pgtype.Numeric)) = num(120)
				*(dest[3].(*int32)) = 1
				return nil
			})
		}
		return &fakeRows{scans: scans}, nil
	}
	return nil, fmt.Errorf("unexpected query: %s", sql)
}

func (f *payStubTx) countExec(fragment string) int {
	n := 0
	for _, sql := range f.execSQL {
		if strings.Contains(sql, fragment) {
			n++
		}
	}
	return n
}

func TestPayBillCascade(t *testing.T) {
	stub := &payStubTx{
		billStatus:    BillUnpaid,
		billCustomers: []string{"0811", "0822"},
		subtotal:      265,
		discount:      25,
		total:         240,
		orderIDs:      []int64{1, 2},
		orderStatus:   lifecycle.StatusReady,
	}

	result, err := payBillTx(context.Background(), stub, 7, PayParams{
		Method:         "CASH",
		LoyaltyEnabled: true,
		PointsDivisor:  10,
	}, time.Now())
	if err != nil {
		t.Fatalf("payBillTx failed: %v", err)
	}

	if result.Bill.Status != BillPaid || result.Bill.PaidAt == nil {
		t.Fatalf("bill not marked paid: %+v", result.Bill)
	}
	if len(result.OrderIDs) != 2 {
		t.Fatalf("covered orders = %v", result.OrderIDs)
	}
	if result.Transaction.ID != 99 || len(result.Transaction.Items) != 2 {
		t.Fatalf("transaction snapshot = %+v", result.Transaction)
	}

	if got := stub.countExec("update bills set status"); got != 1 {
		t.Fatalf("bill paid transitions = %d, want 1", got)
	}
	if got := stub.countExec("update orders set status"); got != 2 {
		t.Fatalf("orders served = %d, want 2", got)
	}
	if got := stub.countExec("insert into customers"); got != 2 {
		t.Fatalf("accruals = %d, want one per customer", got)
	}

	// A 25-point burn across two customers is 13+12, never 12+12.
	var redeemed []int64
	for i, sql := range stub.execSQL {
		if strings.Contains(sql, "greatest(0, points") {
			redeemed = append(redeemed, stub.execArgs[i][0].(int64))
		}
	}
	if len(redeemed) != 2 || redeemed[0] != 13 || redeemed[1] != 12 {
		t.Fatalf("redeem shares = %v, want [13 12]", redeemed)
	}
}

func TestPayBillAlreadyPaid(t *testing.T) {
	stub := &payStubTx{
		billStatus:    BillPaid,
		billCustomers: []string{"0811"},
		orderIDs:      []int64{1},
	}

	_, err := payBillTx(context.Background(), stub, 7, PayParams{Method: "CASH"}, time.Now())
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("err = %v, want ErrAlreadyPaid", err)
	}
	if len(stub.execSQL) != 0 {
		t.Fatalf("writes after ErrAlreadyPaid: %v", stub.execSQL)
	}
}

func TestPayBillOrderCoveredByOtherPaidBill(t *testing.T) {
	stub := &payStubTx{
		billStatus:    BillUnpaid,
		billCustomers: []string{"0811"},
		subtotal:      130,
		total:         130,
		orderIDs:      []int64{1},
		orderStatus:   lifecycle.StatusServed,
		paidElsewhere: true,
	}

	_, err := payBillTx(context.Background(), stub, 8, PayParams{
		Method:         "CASH",
		LoyaltyEnabled: true,
		PointsDivisor:  10,
	}, time.Now())
	if !errors.Is(err, ErrAlreadyBilled) {
		t.Fatalf("err = %v, want ErrAlreadyBilled", err)
	}
	if len(stub.execSQL) != 0 {
		t.Fatalf("second payment wrote anyway: %v", stub.execSQL)
	}
}

func TestPayBillSkipsWaiterKeys(t *testing.T) {
	stub := &payStubTx{
		billStatus:    BillUnpaid,
		billCustomers: []string{"0811", "waiter-andi"},
		subtotal:      100,
		total:         100,
		orderIDs:      []int64{1},
		orderStatus:   lifecycle.StatusReady,
	}

	_, err := payBillTx(context.Background(), stub, 9, PayParams{
		Method:         "QR",
		LoyaltyEnabled: true,
		PointsDivisor:  10,
	}, time.Now())
	if err != nil {
		t.Fatalf("payBillTx failed: %v", err)
	}
	if got := stub.countExec("insert into customers"); got != 1 {
		t.Fatalf("accruals = %d, want 1 (waiter key skipped)", got)
	}
}

func TestCreateBillEmptySelection(t *testing.T) {
	if _, err := CreateBill(context.Background(), nil, 1, nil, 0); !errors.Is(err, ErrEmptySelection) {
		t.Fatalf("err = %v, want ErrEmptySelection", err)
	}
}

func TestCreateBillNegativeDiscount(t *testing.T) {
	if _, err := CreateBill(context.Background(), nil, 1, []int64{1}, -5); !errors.Is(err, ErrBadDiscount) {
		t.Fatalf("err = %v, want ErrBadDiscount", err)
	}
}
