package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/DevCodeRift/boundless-saga/internal/models"
)

// ResolutionKind is the non-rejected outcome of an attempt
type ResolutionKind string

const (
	Created       ResolutionKind = "created"
	Authenticated ResolutionKind = "authenticated"
)

// Resolution is returned for attempts that were not rejected
type Resolution struct {
	Kind    ResolutionKind
	Account *models.Account
}

// Recorder performs post-resolution bookkeeping
type Recorder interface {
	Record(ctx context.Context, account *models.Account, signals models.CandidateSignals, identifier string, success bool)
	RecordFailure(ctx context.Context, signals models.CandidateSignals, identifier, reason string)
}

type resolveOptions struct {
	passwordHash string
}

// ResolveOption customises the account created on signup
type ResolveOption func(*resolveOptions)

// WithPasswordHash stores hash on an account created by signup
func WithPasswordHash(hash string) ResolveOption {
	return func(o *resolveOptions) {
		o.passwordHash = hash
	}
}

// AccountResolver decides between creating, authenticating and rejecting
type AccountResolver struct {
	accounts   AccountRepository
	recorder   Recorder
	cdnBaseURL string
	logger     *slog.Logger
	now        func() time.Time
}

// NewAccountResolver creates a new AccountResolver
func NewAccountResolver(accounts AccountRepository, recorder Recorder, cdnBaseURL string, logger *slog.Logger) *AccountResolver {
	return &AccountResolver{
		accounts:   accounts,
		recorder:   recorder,
		cdnBaseURL: cdnBaseURL,
		logger:     logger,
		now:        time.Now,
	}
}

// Resolve applies intent to the matched candidates.
//
// Signup is rejected with models.ErrDuplicateAccount when any candidate exists
// or when the store reports a unique violation on insert. Signin is rejected
// with models.ErrAccountNotFound when there are no candidates and with
// models.ErrAccountBanned when the selected account is banned. Bookkeeping runs
// before a non-rejected result is returned.
func (r *AccountResolver) Resolve(
	ctx context.Context,
	intent models.AuthIntent,
	identity models.Identity,
	signals models.CandidateSignals,
	candidates []*models.Account,
	opts ...ResolveOption,
) (*Resolution, error) {
	if signals.DeviceFingerprint == "" {
		return nil, models.ErrMissingDeviceFingerprint
	}

	switch intent {
	case models.IntentSignup:
		var o resolveOptions
		for _, opt := range opts {
			opt(&o)
		}
		return r.signup(ctx, identity, signals, candidates, o)
	case models.IntentSignin:
		return r.signin(ctx, identity, signals, candidates)
	default:
		return nil, models.ErrInvalidIntent
	}
}

func (r *AccountResolver) signup(ctx context.Context, identity models.Identity, signals models.CandidateSignals, candidates []*models.Account, o resolveOptions) (*Resolution, error) {
	if len(candidates) > 0 {
		r.logger.Info("signup rejected: matching account exists",
			slog.Int("candidates", len(candidates)))
		return nil, models.ErrDuplicateAccount
	}

	account := &models.Account{
		DiscordID:          identity.ProviderID,
		Email:              identity.Email,
		PasswordHash:       o.passwordHash,
		Username:           identity.Username,
		DisplayName:        identity.DisplayName(),
		AvatarURL:          identity.AvatarURL(r.cdnBaseURL),
		DeviceFingerprint:  signals.DeviceFingerprint,
		IPAddresses:        models.MergeIP(nil, signals.IP),
		BrowserFingerprint: signals.BrowserFingerprint.Sanitized(),
		EmailVerified:      identity.Verified,
		IsBanned:           false,
		CreatedAt:          r.now(),
	}

	created, err := r.accounts.Create(ctx, account)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			r.logger.Info("signup rejected: unique constraint on insert")
			return nil, models.ErrDuplicateAccount
		}
		return nil, models.NewStoreError("create account", err)
	}

	r.recorder.Record(ctx, created, signals, identity.Identifier(), true)

	return &Resolution{Kind: Created, Account: created}, nil
}

func (r *AccountResolver) signin(ctx context.Context, identity models.Identity, signals models.CandidateSignals, candidates []*models.Account) (*Resolution, error) {
	if len(candidates) == 0 {
		return nil, models.ErrAccountNotFound
	}

	account := SelectCandidate(identity, candidates)

	if account.IsBanned {
		r.logger.Info("signin rejected: account banned", slog.String("account_id", account.ID))
		r.recorder.RecordFailure(ctx, signals, identity.Identifier(), models.FailureAccountBanned)
		return nil, models.ErrAccountBanned
	}

	r.recorder.Record(ctx, account, signals, identity.Identifier(), true)

	return &Resolution{Kind: Authenticated, Account: account}, nil
}

// SelectCandidate picks the account a signin authenticates as. An account
// owning the identity (same provider id, or same email for email identities)
// wins; otherwise the most recently active account, ties broken by the oldest.
// candidates must be non-empty and is not modified.
func SelectCandidate(identity models.Identity, candidates []*models.Account) *models.Account {
	for _, c := range candidates {
		if ownsIdentity(c, identity) {
			return c
		}
	}

	ordered := make([]*models.Account, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		switch {
		case a.LastLogin != nil && b.LastLogin == nil:
			return true
		case a.LastLogin == nil && b.LastLogin != nil:
			return false
		case a.LastLogin != nil && !a.LastLogin.Equal(*b.LastLogin):
			return a.LastLogin.After(*b.LastLogin)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	return ordered[0]
}

func ownsIdentity(account *models.Account, identity models.Identity) bool {
	if identity.ProviderID != "" {
		return account.DiscordID == identity.ProviderID
	}
	return identity.Email != "" && account.Email == identity.Email
}
