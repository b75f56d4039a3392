package loyalty

import "testing"

func TestPointsFor(t *testing.T) {
	cases := []struct {
		name    string
		amount  float64
		divisor int64
		want    int64
	}{
		{"exact multiple", 100, 10, 10},
		{"floors fractional spend", 129.99, 10, 12},
		{"below divisor", 9, 10, 0},
		{"zero amount", 0, 10, 0},
		{"negative amount", -50, 10, 0},
		{"zero divisor", 100, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PointsFor(tc.amount, tc.divisor); got != tc.want {
				t.Fatalf("PointsFor(%v, %d) = %d, want %d", tc.amount, tc.divisor, got, tc.want)
			}
		})
	}
}

func TestRedeemBalance(t *testing.T) {
	cases := []struct {
		name     string
		points   int64
		redeemed int64
		want     int64
	}{
		{"partial redemption", 50, 20, 30},
		{"full redemption", 50, 50, 0},
		{"over-redemption floors at zero", 50, 80, 0},
		{"zero redemption is a no-op", 50, 0, 50},
		{"negative redemption is a no-op", 50, -10, 50},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RedeemBalance(tc.points, tc.redeemed); got != tc.want {
				t.Fatalf("RedeemBalance(%d, %d) = %d, want %d", tc.points, tc.redeemed, got, tc.want)
			}
		})
	}
}

func TestEvenShare(t *testing.T) {
	if got := EvenShare(240, 2); got != 120 {
		t.Fatalf("EvenShare(240, 2) = %v, want 120", got)
	}
	if got := EvenShare(100, 3); got < 33.33 || got > 33.34 {
		t.Fatalf("EvenShare(100, 3) = %v, want ~33.33", got)
	}
	if got := EvenShare(100, 0); got != 0 {
		t.Fatalf("EvenShare(100, 0) = %v, want 0", got)
	}
}
