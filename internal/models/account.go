package models

import (
	"slices"
	"time"
)

// AuthIntent is the caller's declared purpose for an authentication attempt.
type AuthIntent string

const (
	IntentSignup AuthIntent = "signup"
	IntentSignin AuthIntent = "signin"
)

// Valid reports whether the intent is one of signup or signin.
func (i AuthIntent) Valid() bool {
	return i == IntentSignup || i == IntentSignin
}

// ParseAuthIntent converts a raw mode string into an AuthIntent.
func ParseAuthIntent(mode string) (AuthIntent, error) {
	intent := AuthIntent(mode)
	if !intent.Valid() {
		return "", ErrInvalidIntent
	}
	return intent, nil
}

// Account is a player account. Optional columns are empty strings here and
// NULL in the database.
type Account struct {
	ID                 string
	DiscordID          string
	Email              string
	PasswordHash       string // empty for Discord accounts
	Username           string
	DisplayName        string
	AvatarURL          string
	DeviceFingerprint  string
	IPAddresses        []string
	BrowserFingerprint BrowserFingerprint
	EmailVerified      bool
	IsBanned           bool
	LastLogin          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PublicAccount is the subset of account fields returned to clients.
type PublicAccount struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:       a.ID,
		Email:    a.Email,
		Username: a.Username,
	}
}

// MergeIP returns history with ip appended unless it is empty or already present.
// The input slice is never modified.
func MergeIP(history []string, ip string) []string {
	merged := make([]string, 0, len(history)+1)
	for _, h := range history {
		if !slices.Contains(merged, h) {
			merged = append(merged, h)
		}
	}
	if ip != "" && !slices.Contains(merged, ip) {
		merged = append(merged, ip)
	}
	return merged
}

// CandidateSignals are the identity signals an attempt is matched on.
type CandidateSignals struct {
	ProviderID         string
	Email              string
	DeviceFingerprint  string
	IP                 string
	BrowserFingerprint BrowserFingerprint
}
