package loyalty

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type rowFunc func(dest ...any) error

func (fn rowFunc) Scan(dest ...any) error { return fn(dest...) }

// rekeyStubTx plays the customer tables for the re-key transaction,
// recording every rewrite statement.
type rekeyStubTx struct {
	newPhoneExists bool
	customerRows   int64

	execSQL []string
}

func (f *rekeyStubTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	if strings.Contains(sql, "update customers set phone") {
		return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", f.customerRows)), nil
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *rekeyStubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "select exists"):
		return rowFunc(func(dest ...any) error {
			*(dest[0].(*bool)) = f.newPhoneExists
			return nil
		})
	case strings.Contains(sql, "from customers"):
		return rowFunc(func(dest ...any) error {
			*(dest[0].(*string)) = args[0].(string)
			*(dest[1].(*string)) = "Sari"
			*(dest[2].(*int)) = 3
			*(dest[3].(*pgtype.Numeric)) = pgtype.Numeric{Int: big.NewInt(450), Valid: true}
			*(dest[4].(*int64)) = 45
			*(dest[5].(*pgtype.Timestamptz)) = pgtype.Timestamptz{Time: time.Now(), Valid: true}
			*(dest[6].(*time.Time)) = time.Now()
			return nil
		})
	}
	return rowFunc(func(dest ...any) error { return fmt.Errorf("unexpected query: %s", sql) })
}

func (f *rekeyStubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("unexpected query: %s", sql)
}

func (f *rekeyStubTx) hasExec(fragment string) bool {
	for _, sql := range f.execSQL {
		if strings.Contains(sql, fragment) {
			return true
		}
	}
	return false
}

func TestRekeyRewritesEveryReference(t *testing.T) {
	stub := &rekeyStubTx{customerRows: 1}

	customer, err := rekeyTx(context.Background(), stub, "0811", "0899")
	if err != nil {
		t.Fatalf("rekeyTx failed: %v", err)
	}
	if customer.Phone != "0899" {
		t.Fatalf("customer phone = %s, want 0899", customer.Phone)
	}

	for _, fragment := range []string{
		"update customers set phone",
		"update orders set customer_key",
		"update bills set customer_keys = array_replace",
		"update transactions set customer_keys = array_replace",
	} {
		if !stub.hasExec(fragment) {
			t.Fatalf("missing rewrite %q; got %v", fragment, stub.execSQL)
		}
	}
}

func TestRekeyDuplicateTarget(t *testing.T) {
	stub := &rekeyStubTx{newPhoneExists: true}

	_, err := rekeyTx(context.Background(), stub, "0811", "0899")
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
	if len(stub.execSQL) != 0 {
		t.Fatalf("rewrites ran despite duplicate target: %v", stub.execSQL)
	}
}

func TestRekeyUnknownCustomer(t *testing.T) {
	stub := &rekeyStubTx{customerRows: 0}

	_, err := rekeyTx(context.Background(), stub, "0811", "0899")
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("err = %v, want ErrCustomerNotFound", err)
	}
}

func TestSplitPoints(t *testing.T) {
	cases := []struct {
		name  string
		total int64
		count int
		want  []int64
	}{
		{"even split", 24, 2, []int64{12, 12}},
		{"remainder to first", 25, 2, []int64{13, 12}},
		{"more customers than points", 2, 3, []int64{1, 1, 0}},
		{"single customer", 25, 1, []int64{25}},
		{"zero burn", 0, 2, nil},
		{"no customers", 25, 0, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitPoints(tc.total, tc.count)
			if len(got) != len(tc.want) {
				t.Fatalf("SplitPoints(%d, %d) = %v, want %v", tc.total, tc.count, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("SplitPoints(%d, %d) = %v, want %v", tc.total, tc.count, got, tc.want)
				}
			}
		})
	}
}
