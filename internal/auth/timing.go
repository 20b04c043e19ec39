package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// FailurePadding stretches failed credential checks to a common floor so that
// an unknown email and a wrong password take about the same time to answer.
type FailurePadding struct {
	floor  time.Duration
	jitter time.Duration
}

// NewFailurePadding creates a FailurePadding with the given floor and random jitter
func NewFailurePadding(floor, jitter time.Duration) *FailurePadding {
	return &FailurePadding{floor: floor, jitter: jitter}
}

// cryptoJitter returns a secure random duration in [0, max)
func cryptoJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}

	return time.Duration(binary.BigEndian.Uint64(buf[:]) % uint64(max))
}

// Target returns the total duration a failed check should take
func (p *FailurePadding) Target() time.Duration {
	return p.floor + cryptoJitter(p.jitter)
}

// PadFrom blocks until at least Target has elapsed since start, or ctx is done.
func (p *FailurePadding) PadFrom(ctx context.Context, start time.Time) {
	remaining := p.Target() - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
