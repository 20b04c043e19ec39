package models

import "time"

// LoginAttempt is an append-only audit entry for an authentication attempt
type LoginAttempt struct {
	ID                string    `db:"id"`
	Identifier        string    `db:"identifier"`
	IPAddress         string    `db:"ip_address"`
	DeviceFingerprint string    `db:"device_fingerprint"`
	Success           bool      `db:"success"`
	FailureReason     *string   `db:"failure_reason"`
	AttemptTime       time.Time `db:"attempt_time"`
}

// Failure reasons recorded on unsuccessful attempts
const (
	FailureInvalidCredentials = "invalid_credentials"
	FailureAccountBanned      = "account_banned"
)
