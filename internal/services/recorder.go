package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DevCodeRift/boundless-saga/internal/models"
)

// DeviceRepository defines the device tracking operations
type DeviceRepository interface {
	Upsert(ctx context.Context, device *models.DeviceRecord) error
}

// LoginAttemptRepository defines the login attempt log operations
type LoginAttemptRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
}

// BookkeepingRecorder performs the best-effort writes that follow a successful
// signup or signin. Failures are logged and never reach the caller.
type BookkeepingRecorder struct {
	devices  DeviceRepository
	attempts LoginAttemptRepository
	accounts AccountRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewBookkeepingRecorder creates a new BookkeepingRecorder
func NewBookkeepingRecorder(devices DeviceRepository, attempts LoginAttemptRepository, accounts AccountRepository, logger *slog.Logger) *BookkeepingRecorder {
	return &BookkeepingRecorder{
		devices:  devices,
		attempts: attempts,
		accounts: accounts,
		logger:   logger,
		now:      time.Now,
	}
}

// Record upserts the device, appends the login attempt and folds the IP into
// the account history. The three writes run concurrently and Record returns
// once all of them have finished.
func (r *BookkeepingRecorder) Record(ctx context.Context, account *models.Account, signals models.CandidateSignals, identifier string, success bool) {
	now := r.now()

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		err := r.devices.Upsert(ctx, &models.DeviceRecord{
			AccountID:         account.ID,
			DeviceFingerprint: signals.DeviceFingerprint,
			IPAddress:         signals.IP,
			UserAgent:         signals.BrowserFingerprint.UserAgent(),
			IsTrusted:         true,
			LastSeen:          now,
		})
		if err != nil {
			r.logger.Error("failed to upsert device record",
				slog.String("account_id", account.ID),
				slog.Any("error", models.NewStoreError("upsert device", err)))
		}
	}()

	go func() {
		defer wg.Done()
		r.appendAttempt(ctx, signals, identifier, success, nil, now)
	}()

	go func() {
		defer wg.Done()
		if _, err := r.accounts.TouchLogin(ctx, account.ID, signals.IP, now); err != nil {
			r.logger.Error("failed to update account login",
				slog.String("account_id", account.ID),
				slog.Any("error", models.NewStoreError("touch login", err)))
		}
	}()

	wg.Wait()
}

// RecordFailure appends a failed login attempt. Nothing else is touched.
func (r *BookkeepingRecorder) RecordFailure(ctx context.Context, signals models.CandidateSignals, identifier, reason string) {
	r.appendAttempt(ctx, signals, identifier, false, &reason, r.now())
}

func (r *BookkeepingRecorder) appendAttempt(ctx context.Context, signals models.CandidateSignals, identifier string, success bool, reason *string, at time.Time) {
	err := r.attempts.RecordAttempt(ctx, &models.LoginAttempt{
		Identifier:        identifier,
		IPAddress:         signals.IP,
		DeviceFingerprint: signals.DeviceFingerprint,
		Success:           success,
		FailureReason:     reason,
		AttemptTime:       at,
	})
	if err != nil {
		r.logger.Error("failed to record login attempt",
			slog.Bool("success", success),
			slog.Any("error", models.NewStoreError("record attempt", err)))
	}
}
