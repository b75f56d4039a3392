package billing

import (
	"reflect"
	"testing"
)

func TestGroupOrders(t *testing.T) {
	orders := []OrderRef{
		{ID: 3, TableNo: 2, CustomerKey: "0811", Total: 60},
		{ID: 1, TableNo: 1, CustomerKey: "0811", Total: 130},
		{ID: 2, TableNo: 1, CustomerKey: "0811", Total: 130},
		{ID: 4, TableNo: 1, CustomerKey: "0822", Total: 45},
	}

	got := GroupOrders(orders)
	want := []Group{
		{TableNo: 1, CustomerKey: "0811", OrderIDs: []int64{1, 2}, Subtotal: 260},
		{TableNo: 1, CustomerKey: "0822", OrderIDs: []int64{4}, Subtotal: 45},
		{TableNo: 2, CustomerKey: "0811", OrderIDs: []int64{3}, Subtotal: 60},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GroupOrders = %+v, want %+v", got, want)
	}
}

func TestGroupOrdersEmpty(t *testing.T) {
	if got := GroupOrders(nil); len(got) != 0 {
		t.Fatalf("GroupOrders(nil) = %+v, want empty", got)
	}
}

func TestBillTotal(t *testing.T) {
	cases := []struct {
		name     string
		subtotal float64
		discount float64
		want     float64
	}{
		{"no discount", 260, 0, 260},
		{"flat discount", 260, 20, 240},
		{"discount equals subtotal", 100, 100, 0},
		{"discount above subtotal clamps to zero", 100, 150, 0},
		{"rounds to cents", 100.005, 0.001, 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BillTotal(tc.subtotal, tc.discount); got != tc.want {
				t.Fatalf("BillTotal(%v, %v) = %v, want %v", tc.subtotal, tc.discount, got, tc.want)
			}
		})
	}
}

func TestDistinctCustomers(t *testing.T) {
	got := DistinctCustomers([]string{"0811", "0822", "0811", "waiter-andi", "0822"})
	want := []string{"0811", "0822", "waiter-andi"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DistinctCustomers = %v, want %v", got, want)
	}
}
