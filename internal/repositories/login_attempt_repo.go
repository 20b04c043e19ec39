package repositories

import (
	"context"
	"fmt"

	"github.com/DevCodeRift/boundless-saga/internal/database"
	"github.com/DevCodeRift/boundless-saga/internal/models"
)

// LoginAttemptRepository handles database operations for login attempts.
// Rows are append-only.
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// RecordAttempt records a login attempt in the database
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (identifier, ip_address, device_fingerprint, success, failure_reason, attempt_time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.Identifier,
		attempt.IPAddress,
		attempt.DeviceFingerprint,
		attempt.Success,
		attempt.FailureReason,
		attempt.AttemptTime,
	)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}

	return nil
}

// ListByIdentifier returns the most recent attempts for an identifier
func (r *LoginAttemptRepository) ListByIdentifier(ctx context.Context, identifier string, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, identifier, ip_address, device_fingerprint, success, failure_reason, attempt_time
		FROM login_attempts
		WHERE identifier = $1
		ORDER BY attempt_time DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, identifier, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0)
	for rows.Next() {
		var a models.LoginAttempt
		if err := rows.Scan(&a.ID, &a.Identifier, &a.IPAddress, &a.DeviceFingerprint, &a.Success, &a.FailureReason, &a.AttemptTime); err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}

	return attempts, rows.Err()
}
