package settings

import "testing"

func TestValidate(t *testing.T) {
	valid := Settings{
		TableCount:     20,
		PointsDivisor:  10,
		MaxDiscountPct: 50,
	}

	cases := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr error
	}{
		{"valid", func(s *Settings) {}, nil},
		{"table count zero", func(s *Settings) { s.TableCount = 0 }, ErrInvalid},
		{"table count too large", func(s *Settings) { s.TableCount = 501 }, ErrInvalid},
		{"points divisor zero", func(s *Settings) { s.PointsDivisor = 0 }, ErrInvalid},
		{"negative discount cap", func(s *Settings) { s.MaxDiscountPct = -1 }, ErrInvalid},
		{"discount cap above hundred", func(s *Settings) { s.MaxDiscountPct = 101 }, ErrInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := valid
			tc.mutate(&s)
			if err := Validate(s); err != tc.wantErr {
				t.Fatalf("Validate(%+v) = %v, want %v", s, err, tc.wantErr)
			}
		})
	}
}
