package repositories

import (
	"context"
	"fmt"

	"github.com/DevCodeRift/boundless-saga/internal/database"
	"github.com/DevCodeRift/boundless-saga/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeviceRepository handles the account/device pairings
type DeviceRepository struct {
	pool *pgxpool.Pool
}

// NewDeviceRepository creates a new DeviceRepository
func NewDeviceRepository(db *database.DB) *DeviceRepository {
	return &DeviceRepository{pool: db.Pool}
}

func scanDeviceRow(row rowScanner) (*models.DeviceRecord, error) {
	var device models.DeviceRecord

	err := row.Scan(
		&device.ID, &device.AccountID, &device.DeviceFingerprint, &device.IPAddress,
		&device.UserAgent, &device.IsTrusted, &device.LastSeen, &device.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &device, nil
}

// Upsert inserts the pairing or, when it already exists, refreshes its ip,
// user agent, trust flag and last_seen. Only one row per pairing is ever kept.
func (r *DeviceRepository) Upsert(ctx context.Context, device *models.DeviceRecord) error {
	query := `
		INSERT INTO account_devices (account_id, device_fingerprint, ip_address, user_agent, is_trusted, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, device_fingerprint) DO UPDATE
		SET ip_address = EXCLUDED.ip_address,
			user_agent = EXCLUDED.user_agent,
			is_trusted = EXCLUDED.is_trusted,
			last_seen = EXCLUDED.last_seen
	`

	_, err := r.pool.Exec(ctx, query,
		device.AccountID, device.DeviceFingerprint, device.IPAddress,
		device.UserAgent, device.IsTrusted, device.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", database.MapPostgresError(err))
	}

	return nil
}

// ListByAccount returns the devices seen for an account, most recent first
func (r *DeviceRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.DeviceRecord, error) {
	query := `
		SELECT id, account_id, device_fingerprint, ip_address, user_agent, is_trusted, last_seen, created_at
		FROM account_devices
		WHERE account_id = $1
		ORDER BY last_seen DESC
	`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := make([]*models.DeviceRecord, 0)
	for rows.Next() {
		device, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}

	return devices, rows.Err()
}
