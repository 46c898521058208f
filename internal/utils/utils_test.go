package utils

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", 42, "STAFF", 5)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseAccessToken("secret", tok.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken() error = %v", err)
	}
	id, err := claims.UserID()
	if err != nil || id != 42 {
		t.Errorf("UserID() = %d, %v; want 42", id, err)
	}
	if claims.Role != "STAFF" {
		t.Errorf("Role = %q, want STAFF", claims.Role)
	}
	if _, err := ParseAccessToken("other", tok.Token); err == nil {
		t.Error("ParseAccessToken() with wrong secret succeeded")
	}
}

func TestStateTokenIsNotAnAccessToken(t *testing.T) {
	state, err := NewStateToken("secret", "google", 7, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken("secret", state); err == nil {
		t.Error("state token accepted as access token")
	}
	claims, err := ParseStateToken("secret", state)
	if err != nil {
		t.Fatalf("ParseStateToken() error = %v", err)
	}
	if claims.Provider != "google" || claims.Subject != "7" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestExpiredStateRejected(t *testing.T) {
	state, err := NewStateToken("secret", "outlook", 1, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseStateToken("secret", state); err == nil {
		t.Error("expired state accepted")
	}
}

func TestRefreshHash(t *testing.T) {
	rt, err := NewRefreshToken(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rt.Raw) != 96 {
		t.Errorf("len(Raw) = %d, want 96", len(rt.Raw))
	}
	if HashRefreshRaw(rt.Raw) != HashRefreshRaw(rt.Raw) || len(HashRefreshRaw(rt.Raw)) != 64 {
		t.Error("HashRefreshRaw() not a stable sha256 hex digest")
	}
}

func TestPassword(t *testing.T) {
	if err := CheckPassword("short"); err == nil {
		t.Error("CheckPassword(short) = nil")
	}
	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(hash, "correct horse") {
		t.Error("VerifyPassword() = false for the right password")
	}
	if VerifyPassword(hash, "wrong horse") {
		t.Error("VerifyPassword() = true for a wrong password")
	}
}
