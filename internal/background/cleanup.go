package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpiredTokenStore deletes verification tokens that can no longer be redeemed
type ExpiredTokenStore interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupManager periodically purges dead email verification tokens. Accounts,
// devices and login attempts are never touched.
type CleanupManager struct {
	tokens   ExpiredTokenStore
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(tokens ExpiredTokenStore, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		tokens:   tokens,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs a sweep immediately and then once per interval until Stop is
// called or ctx is cancelled. It blocks.
func (cm *CleanupManager) Start(ctx context.Context) {
	defer close(cm.doneCh)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.tokens.DeleteExpired(cleanupCtx, cm.now())
	if err != nil {
		cm.logger.Error("failed to purge expired verification tokens", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		cm.logger.Info("expired verification tokens purged", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the loop to exit and waits for it. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
	<-cm.doneCh
}
