package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("resource already exists")

	// Input errors, raised before any external call is made
	ErrMissingInput             = errors.New("missing required input")
	ErrMissingDeviceFingerprint = fmt.Errorf("%w: device fingerprint", ErrMissingInput)
	ErrInvalidIntent            = fmt.Errorf("%w: mode must be signup or signin", ErrMissingInput)
	ErrWeakPassword             = fmt.Errorf("%w: password does not meet requirements", ErrMissingInput)

	// Resolution errors
	ErrDuplicateAccount   = errors.New("account already exists for this device or IP")
	ErrAccountNotFound    = errors.New("no account found for this device or account")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountBanned      = errors.New("account is banned")

	ErrInvalidToken = errors.New("invalid or expired token")
)

// Identity provider stages reported by AuthProviderError
const (
	ProviderStageToken   = "token"
	ProviderStageProfile = "profile"
)

// AuthProviderError reports a failed call to the identity provider. Payload holds
// the provider's raw response body for operator diagnostics.
type AuthProviderError struct {
	Stage      string
	StatusCode int
	Payload    json.RawMessage
	Err        error
}

func (e *AuthProviderError) Error() string {
	msg := "failed to get discord user"
	if e.Stage == ProviderStageToken {
		msg = "failed to get discord token"
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthProviderError) Unwrap() error {
	return e.Err
}

// StoreError wraps any persistence failure. It is fatal for matching and account
// creation and swallowed for bookkeeping writes.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err unless it is nil or already a StoreError.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsStoreError reports whether err carries a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
