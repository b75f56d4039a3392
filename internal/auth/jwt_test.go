package auth

import "testing"

func TestTokenRoundTrip(t *testing.T) {
	secret := "test-secret"
	token, err := IssueAccessToken(7, RoleKitchen, "Andi", secret, 3600)
	if err != nil {
		t.Fatalf("IssueAccessToken failed: %v", err)
	}

	claims, err := VerifyAccessToken(token, secret)
	if err != nil {
		t.Fatalf("VerifyAccessToken failed: %v", err)
	}
	if claims.StaffID != 7 || claims.Role != RoleKitchen || claims.Name != "Andi" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyAccessTokenRejects(t *testing.T) {
	token, err := IssueAccessToken(1, RoleCounter, "Sari", "right-secret", 3600)
	if err != nil {
		t.Fatalf("IssueAccessToken failed: %v", err)
	}

	t.Run("wrong secret", func(t *testing.T) {
		if _, err := VerifyAccessToken(token, "wrong-secret"); err == nil {
			t.Fatal("expected verification failure")
		}
	})

	t.Run("empty token", func(t *testing.T) {
		if _, err := VerifyAccessToken("", "right-secret"); err == nil {
			t.Fatal("expected verification failure")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		expired, err := IssueAccessToken(1, RoleCounter, "Sari", "right-secret", -60)
		if err != nil {
			t.Fatalf("IssueAccessToken failed: %v", err)
		}
		if _, err := VerifyAccessToken(expired, "right-secret"); err == nil {
			t.Fatal("expected verification failure")
		}
	})
}

func TestParseBearerToken(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"well formed", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"missing scheme", "abc123", ""},
		{"empty header", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseBearerToken(tc.header); got != tc.want {
				t.Fatalf("ParseBearerToken(%q) = %q, want %q", tc.header, got, tc.want)
			}
		})
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []StaffRole{RoleAdmin, RoleCounter, RoleKitchen, RoleWaiter} {
		if !ValidRole(role) {
			t.Fatalf("ValidRole(%s) = false", role)
		}
	}
	if ValidRole("MANAGER") {
		t.Fatal("ValidRole accepted unknown role")
	}
}
