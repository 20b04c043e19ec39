package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DevCodeRift/boundless-saga/internal/database"
	"github.com/DevCodeRift/boundless-saga/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, discord_id, email, password_hash, username, display_name, avatar_url,
	device_fingerprint, ip_addresses, browser_fingerprint, email_verified, is_banned,
	last_login, created_at, updated_at`

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAccountRow handles nullable fields and populates an Account model from a database row
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var discordID, email, passwordHash, avatarURL *string
	var browserFingerprint []byte

	err := scanner.Scan(
		&account.ID, &discordID, &email, &passwordHash, &account.Username, &account.DisplayName, &avatarURL,
		&account.DeviceFingerprint, &account.IPAddresses, &browserFingerprint, &account.EmailVerified, &account.IsBanned,
		&account.LastLogin, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.DiscordID = derefString(discordID)
	account.Email = derefString(email)
	account.PasswordHash = derefString(passwordHash)
	account.AvatarURL = derefString(avatarURL)
	account.BrowserFingerprint = models.NewBrowserFingerprint(browserFingerprint)
	if account.IPAddresses == nil {
		account.IPAddresses = []string{}
	}

	return &account, nil
}

// scanAccountRows iterates through rows and scans each into Account models
func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)

	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return accounts, nil
}

// FindCandidates returns every account matching at least one clause of filter,
// most recently active first. An empty filter matches nothing.
func (r *AccountRepository) FindCandidates(ctx context.Context, filter models.AnyOf) ([]*models.Account, error) {
	where, args, err := buildMatchWhere(filter)
	if err != nil {
		return nil, err
	}
	if where == "" {
		return []*models.Account{}, nil
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where +
		` ORDER BY last_login DESC NULLS LAST, created_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate accounts: %w", err)
	}

	return scanAccountRows(rows)
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	return scanAccountRow(r.pool.QueryRow(ctx, query, email))
}

// Create inserts a new account. A unique violation on discord_id or email is
// reported as models.ErrConflict.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = account.CreatedAt
	if account.IPAddresses == nil {
		account.IPAddresses = []string{}
	}

	var browserFingerprint []byte
	if obj := account.BrowserFingerprint.Object(); obj != nil {
		browserFingerprint = obj
	}

	query := `
		INSERT INTO accounts (id, discord_id, email, password_hash, username, display_name, avatar_url,
			device_fingerprint, ip_addresses, browser_fingerprint, email_verified, is_banned,
			last_login, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + accountColumns

	created, err := scanAccountRow(r.pool.QueryRow(ctx, query,
		account.ID, nullString(account.DiscordID), nullString(account.Email), nullString(account.PasswordHash),
		account.Username, account.DisplayName, nullString(account.AvatarURL),
		account.DeviceFingerprint, account.IPAddresses, browserFingerprint, account.EmailVerified, account.IsBanned,
		account.LastLogin, account.CreatedAt, account.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return created, nil
}

// TouchLogin stamps last_login and folds ip into the address history in one
// statement. An empty ip leaves the history untouched.
func (r *AccountRepository) TouchLogin(ctx context.Context, id, ip string, at time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET last_login = $2,
			updated_at = $2,
			ip_addresses = CASE
				WHEN $3::text = '' OR $3::text = ANY(ip_addresses) THEN ip_addresses
				ELSE array_append(ip_addresses, $3::text)
			END
		WHERE id = $1
		RETURNING ` + accountColumns

	account, err := scanAccountRow(r.pool.QueryRow(ctx, query, id, at, ip))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}

	return account, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
