package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("secret", time.Minute)
	token, err := svc.GenerateToken("admin")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Role != "admin" || claims.Subject != OperatorSubject {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	issuer := NewTokenService("secret", time.Minute)
	token, _ := issuer.GenerateToken("admin")

	if _, err := NewTokenService("other", time.Minute).ValidateToken(token); err == nil {
		t.Fatalf("expected wrong secret to fail")
	}

	expired := NewTokenService("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.GenerateToken("admin")
	if _, err := issuer.ValidateToken(old); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestTokenRequiresSecret(t *testing.T) {
	if _, err := NewTokenService("", time.Minute).GenerateToken("admin"); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func TestPasswordChecker(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	checker := NewPasswordChecker(hash)

	if err := checker.Check("s3cret"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := checker.Check("wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if err := NewPasswordChecker("").Check("s3cret"); !errors.Is(err, ErrLoginDisabled) {
		t.Fatalf("expected login disabled, got %v", err)
	}
}
