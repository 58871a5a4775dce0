package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when the password does not match.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrLoginDisabled is returned when no operator password hash is configured.
	ErrLoginDisabled = errors.New("auth: login disabled")
)

// PasswordChecker compares operator passwords against a configured bcrypt hash.
type PasswordChecker struct {
	hash []byte
}

// NewPasswordChecker returns checker for hash. An empty hash disables login.
func NewPasswordChecker(hash string) *PasswordChecker {
	return &PasswordChecker{hash: []byte(strings.TrimSpace(hash))}
}

// Enabled reports whether a hash is configured.
func (p *PasswordChecker) Enabled() bool {
	return len(p.hash) > 0
}

// Check returns nil when password matches.
func (p *PasswordChecker) Check(password string) error {
	if !p.Enabled() {
		return ErrLoginDisabled
	}
	if err := bcrypt.CompareHashAndPassword(p.hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

// HashPassword produces a bcrypt hash suitable for api.operatorPasswordHash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password: empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
