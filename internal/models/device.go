package models

import "time"

// DeviceRecord tracks one (account, device fingerprint) pairing.
type DeviceRecord struct {
	ID                string
	AccountID         string
	DeviceFingerprint string
	IPAddress         string
	UserAgent         *string
	IsTrusted         bool
	LastSeen          time.Time
	CreatedAt         time.Time
}
