package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateNonceKeyPrefix = "oauth:state:"

// StateNonceRepository records consumed OAuth state ids in Redis
type StateNonceRepository struct {
	rdb *redis.Client
}

// NewStateNonceRepository creates a new StateNonceRepository
func NewStateNonceRepository(rdb *redis.Client) *StateNonceRepository {
	return &StateNonceRepository{rdb: rdb}
}

// Claim marks id as consumed for ttl. It reports false when id was already
// claimed. A non-positive ttl means the state has expired and is never fresh.
func (r *StateNonceRepository) Claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}

	fresh, err := r.rdb.SetNX(ctx, stateNonceKeyPrefix+id, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim state nonce: %w", err)
	}

	return fresh, nil
}
