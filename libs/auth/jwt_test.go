package auth

import (
	"testing"
	"time"
)

func TestSignAndVerifyHS256(t *testing.T) {
	claims := Claims{
		Sub:  "user-1",
		Role: "cook",
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(time.Hour).Unix(),
	}
	token, err := SignHS256(claims, "secret")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	got, err := ParseAndVerifyHS256(token, "secret")
	if err != nil {
		t.Fatalf("ParseAndVerifyHS256 failed: %v", err)
	}
	if got.Sub != claims.Sub || got.Role != claims.Role {
		t.Fatalf("claims mismatch: %+v", got)
	}

	if _, err := ParseAndVerifyHS256(token, "wrong-secret"); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
	if _, err := ParseAndVerifyHS256("not.a.token", "secret"); err == nil {
		t.Fatal("expected failure for malformed token")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	claims := Claims{
		Sub:  "user-2",
		Role: "customer",
		Iat:  time.Now().Add(-2 * time.Hour).Unix(),
		Exp:  time.Now().Add(-time.Hour).Unix(),
	}
	token, err := SignHS256(claims, "secret")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, "secret"); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestAPIKeySet(t *testing.T) {
	hash, err := HashAPIKey("office-key-1")
	if err != nil {
		t.Fatalf("HashAPIKey failed: %v", err)
	}

	set := NewAPIKeySet(hash + ", ")
	if set.Empty() {
		t.Fatal("expected non-empty key set")
	}
	if !set.Verify("office-key-1") {
		t.Fatal("expected key to verify")
	}
	if set.Verify("office-key-2") {
		t.Fatal("unexpected verification of unknown key")
	}
	if set.Verify("") {
		t.Fatal("empty key must never verify")
	}
}
