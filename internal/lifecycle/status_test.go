package lifecycle

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending to accepted", StatusPending, StatusAccepted, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"accepted to preparing", StatusAccepted, StatusPreparing, true},
		{"accepted to cancelled", StatusAccepted, StatusCancelled, true},
		{"preparing to ready", StatusPreparing, StatusReady, true},
		{"ready to served", StatusReady, StatusServed, true},
		{"pending to preparing skips acceptance", StatusPending, StatusPreparing, false},
		{"preparing to cancelled too late", StatusPreparing, StatusCancelled, false},
		{"ready to cancelled too late", StatusReady, StatusCancelled, false},
		{"served is terminal", StatusServed, StatusReady, false},
		{"cancelled is terminal", StatusCancelled, StatusAccepted, false},
		{"no regression ready to preparing", StatusReady, StatusPreparing, false},
		{"no regression accepted to pending", StatusAccepted, StatusPending, false},
		{"same status is not a transition", StatusAccepted, StatusAccepted, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusAccepted, StatusPreparing, StatusReady, StatusServed, StatusCancelled} {
		if !ValidStatus(s) {
			t.Fatalf("ValidStatus(%s) = false", s)
		}
	}
	if ValidStatus("DELIVERED") {
		t.Fatal("ValidStatus accepted unknown status")
	}
}

func TestInitialStatus(t *testing.T) {
	cases := []struct {
		name        string
		kds, kot    bool
		waiterOrder bool
		want        Status
	}{
		{"customer order always pending", true, true, false, StatusPending},
		{"waiter order with kds and kot skips acceptance", true, true, true, StatusAccepted},
		{"waiter order without kds", false, true, true, StatusPending},
		{"waiter order without kot", true, false, true, StatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InitialStatus(tc.kds, tc.kot, tc.waiterOrder); got != tc.want {
				t.Fatalf("InitialStatus(%v, %v, %v) = %s, want %s", tc.kds, tc.kot, tc.waiterOrder, got, tc.want)
			}
		})
	}
}

func TestItemDone(t *testing.T) {
	cases := []struct {
		name string
		p    ItemProgress
		want bool
	}{
		{"ready status", ItemProgress{Status: ItemReady, CompletedQty: 0, Quantity: 3}, true},
		{"completed qty covers quantity", ItemProgress{Status: ItemPreparing, CompletedQty: 3, Quantity: 3}, true},
		{"partial count", ItemProgress{Status: ItemPreparing, CompletedQty: 2, Quantity: 3}, false},
		{"queued untouched", ItemProgress{Status: ItemQueued, CompletedQty: 0, Quantity: 1}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ItemDone(tc.p); got != tc.want {
				t.Fatalf("ItemDone(%+v) = %v, want %v", tc.p, got, tc.want)
			}
		})
	}
}

func TestAllItemsReady(t *testing.T) {
	if AllItemsReady(nil) {
		t.Fatal("empty item list must not count as ready")
	}
	items := []ItemProgress{
		{Status: ItemReady, Quantity: 2},
		{Status: ItemPreparing, CompletedQty: 1, Quantity: 1},
	}
	if !AllItemsReady(items) {
		t.Fatalf("AllItemsReady(%+v) = false", items)
	}
	items[1].CompletedQty = 0
	if AllItemsReady(items) {
		t.Fatalf("AllItemsReady(%+v) = true with an unfinished line", items)
	}
}

func TestPromotionTarget(t *testing.T) {
	cases := []struct {
		name    string
		current Status
		items   []ItemProgress
		want    Status
	}{
		{
			"accepted with first line started promotes to preparing",
			StatusAccepted,
			[]ItemProgress{{Status: ItemPreparing, Quantity: 2}, {Status: ItemQueued, Quantity: 1}},
			StatusPreparing,
		},
		{
			"accepted with partial count promotes to preparing",
			StatusAccepted,
			[]ItemProgress{{Status: ItemQueued, CompletedQty: 1, Quantity: 2}},
			StatusPreparing,
		},
		{
			"accepted with everything queued stays put",
			StatusAccepted,
			[]ItemProgress{{Status: ItemQueued, Quantity: 2}},
			"",
		},
		{
			"all lines done promotes to ready",
			StatusPreparing,
			[]ItemProgress{{Status: ItemReady, Quantity: 2}, {Status: ItemPreparing, CompletedQty: 1, Quantity: 1}},
			StatusReady,
		},
		{
			"accepted straight to ready when all lines done",
			StatusAccepted,
			[]ItemProgress{{Status: ItemReady, Quantity: 1}},
			StatusReady,
		},
		{
			"preparing with unfinished lines stays put",
			StatusPreparing,
			[]ItemProgress{{Status: ItemReady, Quantity: 1}, {Status: ItemQueued, Quantity: 1}},
			"",
		},
		{
			"pending never promoted by item updates",
			StatusPending,
			[]ItemProgress{{Status: ItemReady, Quantity: 1}},
			"",
		},
		{
			"served never regresses",
			StatusServed,
			[]ItemProgress{{Status: ItemQueued, Quantity: 1}},
			"",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PromotionTarget(tc.current, tc.items); got != tc.want {
				t.Fatalf("PromotionTarget(%s, %+v) = %q, want %q", tc.current, tc.items, got, tc.want)
			}
		})
	}
}

func TestComputeTotal(t *testing.T) {
	items := []NewOrderItem{
		{Name: "Nasi Goreng", Price: 50, Quantity: 2},
		{Name: "Es Teh", Price: 30, Quantity: 1},
	}
	if got := ComputeTotal(items); got != 130 {
		t.Fatalf("ComputeTotal = %v, want 130", got)
	}

	if got := ComputeTotal(nil); got != 0 {
		t.Fatalf("ComputeTotal(nil) = %v, want 0", got)
	}

	fractional := []NewOrderItem{{Price: 0.1, Quantity: 3}}
	if got := ComputeTotal(fractional); got != 0.3 {
		t.Fatalf("ComputeTotal rounding = %v, want 0.3", got)
	}
}

func TestValidateNewOrder(t *testing.T) {
	valid := NewOrderParams{
		TableNo:     5,
		CustomerKey: "081234567890",
		Items:       []NewOrderItem{{Name: "Sate", Price: 25, Quantity: 2}},
	}

	cases := []struct {
		name    string
		mutate  func(p *NewOrderParams)
		wantErr error
	}{
		{"valid order", func(p *NewOrderParams) {}, nil},
		{"table zero", func(p *NewOrderParams) { p.TableNo = 0 }, ErrTableOutOfRange},
		{"table beyond count", func(p *NewOrderParams) { p.TableNo = 21 }, ErrTableOutOfRange},
		{"no items", func(p *NewOrderParams) { p.Items = nil }, ErrNoItems},
		{"zero quantity", func(p *NewOrderParams) { p.Items[0].Quantity = 0 }, ErrBadQuantity},
		{"negative quantity", func(p *NewOrderParams) { p.Items[0].Quantity = -1 }, ErrBadQuantity},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			p.Items = append([]NewOrderItem(nil), valid.Items...)
			tc.mutate(&p)
			if err := ValidateNewOrder(p, 20); err != tc.wantErr {
				t.Fatalf("ValidateNewOrder = %v, want %v", err, tc.wantErr)
			}
		})
	}
}
