package inventory

import "testing"

func TestApplyDelta(t *testing.T) {
	cases := []struct {
		name    string
		current float64
		delta   float64
		want    float64
	}{
		{"receive", 10, 5, 15},
		{"sale", 10, -3, 7},
		{"oversell floors at zero", 2, -5, 0},
		{"exact depletion", 5, -5, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ApplyDelta(tc.current, tc.delta); got != tc.want {
				t.Fatalf("ApplyDelta(%v, %v) = %v, want %v", tc.current, tc.delta, got, tc.want)
			}
		})
	}
}

func TestIsLow(t *testing.T) {
	cases := []struct {
		name      string
		stock     float64
		threshold float64
		want      bool
	}{
		{"above threshold", 12, 10, false},
		{"at threshold", 10, 10, true},
		{"below threshold", 3, 10, true},
		{"zero threshold never low", 0, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsLow(tc.stock, tc.threshold); got != tc.want {
				t.Fatalf("IsLow(%v, %v) = %v, want %v", tc.stock, tc.threshold, got, tc.want)
			}
		})
	}
}
