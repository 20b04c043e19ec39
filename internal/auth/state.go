package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DevCodeRift/boundless-saga/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const stateIssuer = "boundless-saga"

// ErrInvalidState is returned for a state value that is malformed, forged or expired.
var ErrInvalidState = errors.New("invalid oauth state")

// ErrStateReplayed is returned when a state that was already consumed comes back.
var ErrStateReplayed = fmt.Errorf("%w: already used", ErrInvalidState)

// NonceStore remembers consumed state ids until they expire. Claim reports
// false when the id was claimed before.
type NonceStore interface {
	Claim(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

// StateClaims is the payload carried through the provider round trip in the
// OAuth state parameter.
type StateClaims struct {
	Intent models.AuthIntent `json:"intent"`
	jwt.RegisteredClaims
}

// StateManager signs and verifies OAuth state values. The state binds the
// caller's intent to the redirect so the callback cannot be replayed with a
// different mode.
type StateManager struct {
	secret []byte
	ttl    time.Duration
	nonces NonceStore
	now    func() time.Time
}

// NewStateManager creates a StateManager signing with HS256
func NewStateManager(secret string, ttl time.Duration) *StateManager {
	return &StateManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetNonceStore makes every state single use
func (sm *StateManager) SetNonceStore(store NonceStore) {
	sm.nonces = store
}

// Issue returns a signed state for intent, valid for the configured TTL
func (sm *StateManager) Issue(intent models.AuthIntent) (string, error) {
	if !intent.Valid() {
		return "", models.ErrInvalidIntent
	}

	now := sm.now()
	claims := &StateClaims{
		Intent: intent,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sm.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign oauth state: %w", err)
	}

	return signed, nil
}

// Parse verifies state and returns the intent it carries
func (sm *StateManager) Parse(state string) (models.AuthIntent, error) {
	claims, err := sm.verify(state)
	if err != nil {
		return "", err
	}
	return claims.Intent, nil
}

// Consume verifies state like Parse and, when a NonceStore is set, rejects any
// state seen before.
func (sm *StateManager) Consume(ctx context.Context, state string) (models.AuthIntent, error) {
	claims, err := sm.verify(state)
	if err != nil {
		return "", err
	}

	if sm.nonces != nil {
		remaining := claims.ExpiresAt.Sub(sm.now())
		fresh, err := sm.nonces.Claim(ctx, claims.ID, remaining)
		if err != nil {
			return "", fmt.Errorf("failed to record oauth state: %w", err)
		}
		if !fresh {
			return "", ErrStateReplayed
		}
	}

	return claims.Intent, nil
}

func (sm *StateManager) verify(state string) (*StateClaims, error) {
	if state == "" {
		return nil, ErrInvalidState
	}

	claims := &StateClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return sm.secret, nil
	},
		jwt.WithIssuer(stateIssuer),
		jwt.WithTimeFunc(sm.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	if !claims.Intent.Valid() || claims.ID == "" {
		return nil, ErrInvalidState
	}

	return claims, nil
}
