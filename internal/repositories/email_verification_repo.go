package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/DevCodeRift/boundless-saga/internal/database"
	"github.com/DevCodeRift/boundless-saga/internal/models"
	"github.com/jackc/pgx/v5"
)

// EmailVerificationRepository handles email verification token data access
type EmailVerificationRepository struct {
	db *database.DB
}

// NewEmailVerificationRepository creates a new EmailVerificationRepository
func NewEmailVerificationRepository(db *database.DB) *EmailVerificationRepository {
	return &EmailVerificationRepository{db: db}
}

// scanTokenRow populates an EmailVerificationToken model from a database row
func scanTokenRow(row rowScanner) (*models.EmailVerificationToken, error) {
	var token models.EmailVerificationToken

	err := row.Scan(
		&token.ID, &token.AccountID, &token.TokenHash, &token.Email,
		&token.ExpiresAt, &token.UsedAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

// Create creates a new email verification token
func (r *EmailVerificationRepository) Create(ctx context.Context, accountID, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error) {
	query := `
		INSERT INTO email_verification_tokens (account_id, token_hash, email, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, account_id, token_hash, email, expires_at, used_at, created_at
	`

	token, err := scanTokenRow(r.db.Pool.QueryRow(ctx, query, accountID, tokenHash, email, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create email verification token: %w", err)
	}

	return token, nil
}

// GetByTokenHash retrieves a token by its hash
func (r *EmailVerificationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error) {
	query := `
		SELECT id, account_id, token_hash, email, expires_at, used_at, created_at
		FROM email_verification_tokens
		WHERE token_hash = $1
	`

	return scanTokenRow(r.db.Pool.QueryRow(ctx, query, tokenHash))
}

// Redeem marks the token used and the owning account verified in one
// transaction. A token that was already used yields models.ErrNotFound.
func (r *EmailVerificationRepository) Redeem(ctx context.Context, tokenID, accountID string, at time.Time) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE email_verification_tokens
			SET used_at = $2
			WHERE id = $1 AND used_at IS NULL
		`, tokenID, at)
		if err != nil {
			return fmt.Errorf("failed to mark token as used: %w", err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		result, err = tx.Exec(ctx, `
			UPDATE accounts
			SET email_verified = TRUE, updated_at = $2
			WHERE id = $1
		`, accountID, at)
		if err != nil {
			return fmt.Errorf("failed to mark email verified: %w", err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		return nil
	})
}

// DeleteExpired removes tokens that expired or were redeemed before cutoff
func (r *EmailVerificationRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `
		DELETE FROM email_verification_tokens
		WHERE expires_at < $1 OR used_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	return result.RowsAffected(), nil
}
