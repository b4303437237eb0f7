package services

import (
	"testing"
	"time"

	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewAuthService("secret")

	token, err := svc.MintToken(models.Identity{
		ID:       42,
		Username: "alice",
		Address:  "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
	}, time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	ident, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ident.ID != 42 || ident.Username != "alice" {
		t.Fatalf("unexpected identity: %+v", ident)
	}
	if ident.Address != "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Fatalf("address should be lowercased, got %s", ident.Address)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	svc := NewAuthService("secret")
	other := NewAuthService("other-secret")

	goodFromOther, err := other.MintToken(models.Identity{ID: 1, Username: "eve", Address: "0xcccccccccccccccccccccccccccccccccccccccc"}, time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	expired, err := svc.MintToken(models.Identity{ID: 1, Username: "late", Address: "0xcccccccccccccccccccccccccccccccccccccccc"}, -time.Minute)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	badAddress, err := svc.MintToken(models.Identity{ID: 1, Username: "short", Address: "0x123"}, time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"empty", ""},
		{"wrong secret", goodFromOther},
		{"expired", expired},
		{"malformed address", badAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Verify(tt.token); err == nil {
				t.Fatal("expected verification to fail")
			}
		})
	}
}
