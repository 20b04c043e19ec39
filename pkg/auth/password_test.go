package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name          string
		password      string
		shouldFail    bool
		errorContains string
	}{
		{name: "valid password", password: "cultivator9", shouldFail: false},
		{name: "valid with symbols", password: "Qi-Gathering#3", shouldFail: false},
		{name: "too short", password: "abc12", shouldFail: true, errorContains: "at least 8"},
		{name: "no digit", password: "cultivation", shouldFail: true, errorContains: "digit"},
		{name: "no letter", password: "1234567890", shouldFail: true, errorContains: "letter"},
		{name: "common password", password: "Password123", shouldFail: true, errorContains: "too common"},
		{name: "too long", password: strings.Repeat("a1", 40), shouldFail: true, errorContains: "at most 72"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)

			if !tt.shouldFail {
				if err != nil {
					t.Errorf("expected no error, got: %v", err)
				}
				return
			}

			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var validationErr *PasswordValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected *PasswordValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("error should contain %q, got: %v", tt.errorContains, err)
			}
		})
	}
}

func TestHashAndComparePassword(t *testing.T) {
	password := "cultivator9"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "" || hash == password {
		t.Fatal("hash should be non-empty and differ from the plaintext")
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost != BcryptCost {
		t.Errorf("hash cost: got %d (%v), want %d", cost, err, BcryptCost)
	}

	if err := ComparePassword(hash, password); err != nil {
		t.Errorf("ComparePassword with correct password failed: %v", err)
	}
	if err := ComparePassword(hash, "wrong-password1"); err == nil {
		t.Error("ComparePassword with wrong password should fail")
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("HashPassword(\"\") should fail")
	}
}

func TestComparePassword_EmptyHashNeverMatches(t *testing.T) {
	if err := ComparePassword("", ""); err == nil {
		t.Error("empty hash must not match")
	}
}

func TestGenerateURLToken(t *testing.T) {
	first, err := GenerateURLToken(32)
	if err != nil {
		t.Fatalf("GenerateURLToken failed: %v", err)
	}
	second, _ := GenerateURLToken(32)

	if first == second {
		t.Error("tokens should be unique")
	}

	raw, err := base64.RawURLEncoding.DecodeString(first)
	if err != nil {
		t.Fatalf("token is not URL-safe base64: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("decoded length: got %d, want 32", len(raw))
	}
}
