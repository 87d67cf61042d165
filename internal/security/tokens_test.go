package security

import (
	"testing"
	"time"
)

func TestTokenProvider_IssueAndValidate(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, exp, err := p.Issue("u1", "c1", "global:admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("token empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	id, err := p.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if id.UserID != "u1" || id.CompanyID != "c1" || id.Role != "global:admin" {
		t.Errorf("Validate: got user=%q company=%q role=%q", id.UserID, id.CompanyID, id.Role)
	}
	if id.TokenID == "" {
		t.Error("token id empty")
	}
	if !id.ExpiresAt.Equal(exp.Truncate(time.Second)) {
		t.Errorf("ExpiresAt = %v, want %v", id.ExpiresAt, exp.Truncate(time.Second))
	}
}

func TestTokenProvider_ValidateInvalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if _, err := p.Validate("invalid-token"); err != ErrInvalidToken {
		t.Errorf("Validate invalid token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ValidateExpired(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := p.Issue("u1", "c1", "global:member")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	p.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := p.Validate(token); err != ErrInvalidToken {
		t.Errorf("Validate expired token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ValidateWrongAudience(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := p.Issue("u1", "c1", "global:member")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	other := NewTokenProvider(p.privateKey, p.publicKey, "test-issuer", "other-audience", time.Minute)
	if _, err := other.Validate(token); err != ErrInvalidToken {
		t.Errorf("Validate wrong audience: want ErrInvalidToken, got %v", err)
	}
	otherIssuer := NewTokenProvider(p.privateKey, p.publicKey, "other-issuer", "test-audience", time.Minute)
	if _, err := otherIssuer.Validate(token); err != ErrInvalidToken {
		t.Errorf("Validate wrong issuer: want ErrInvalidToken, got %v", err)
	}
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("tok-1")
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
	if HashToken("tok-1") != h1 {
		t.Error("HashToken not consistent")
	}
	if HashToken("tok-2") == h1 {
		t.Error("HashToken produced same hash for different tokens")
	}
	if !TokenHashEqual("tok-1", h1) {
		t.Error("TokenHashEqual should match")
	}
	if TokenHashEqual("tok-2", h1) {
		t.Error("TokenHashEqual should not match a different token")
	}
}

func TestUnverifiedExpiry(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, exp, err := p.Issue("u1", "", "global:member")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, ok := UnverifiedExpiry(token)
	if !ok {
		t.Fatal("UnverifiedExpiry: not ok")
	}
	if !got.Equal(exp.Truncate(time.Second)) {
		t.Errorf("expiry = %v, want %v", got, exp.Truncate(time.Second))
	}
	if _, ok := UnverifiedExpiry("not-a-jwt"); ok {
		t.Error("UnverifiedExpiry should fail for garbage")
	}
}
