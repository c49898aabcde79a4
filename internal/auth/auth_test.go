package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, err := tm.Sign("user1", "alice@example.com", true)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	claims, err := tm.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != "user1" || claims.Email != "alice@example.com" || !claims.Verified {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	other := NewTokenManager("other-secret", time.Hour)

	token, err := tm.Sign("user1", "alice@example.com", false)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", -time.Minute)

	token, err := tm.Sign("user1", "alice@example.com", false)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if _, err := tm.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	if _, err := tm.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("supersecret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "supersecret" {
		t.Fatal("password stored in plaintext")
	}
	if !CheckPassword("supersecret", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrongpassword", hash) {
		t.Error("wrong password accepted")
	}
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode()
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digits, got %q", code)
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			t.Fatalf("non-digit in code %q", code)
		}
	}
}

func TestCheckCode(t *testing.T) {
	stored := HMACCode("123456", "secret")
	if stored == "123456" {
		t.Fatal("code stored in plaintext")
	}
	if !CheckCode("123456", "secret", stored) {
		t.Error("correct code rejected")
	}
	if CheckCode("654321", "secret", stored) {
		t.Error("wrong code accepted")
	}
	if CheckCode("123456", "other-secret", stored) {
		t.Error("code accepted under a different secret")
	}
}
