package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DevCodeRift/boundless-saga/internal/models"
	pkgauth "github.com/DevCodeRift/boundless-saga/pkg/auth"
	pkglogger "github.com/DevCodeRift/boundless-saga/pkg/logger"
)

// Authentication methods reported in audit events
const (
	MethodDiscord = "discord"
	MethodEmail   = "email"
)

// IdentityProvider exchanges an authorization code for the caller's identity
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (*models.Identity, error)
}

// VerificationSender issues email verification tokens
type VerificationSender interface {
	SendVerificationEmail(ctx context.Context, accountID, email string) error
}

// FailurePadder stretches failed credential checks to a common duration
type FailurePadder interface {
	PadFrom(ctx context.Context, start time.Time)
}

// DiscordAuthInput is a Discord signup or signin attempt
type DiscordAuthInput struct {
	Code               string
	Mode               string
	DeviceFingerprint  string
	BrowserFingerprint models.BrowserFingerprint
	IP                 string
}

// EmailAuthInput is an email/password signup or signin attempt
type EmailAuthInput struct {
	Email              string
	Password           string
	DeviceFingerprint  string
	BrowserFingerprint models.BrowserFingerprint
	IP                 string
}

// AuthResult is the response for a successful attempt
type AuthResult struct {
	User     models.PublicAccount `json:"user"`
	Outcome  ResolutionKind       `json:"outcome"`
	Redirect string               `json:"redirect"`
}

// AuthService orchestrates the Discord and email/password flows
type AuthService struct {
	provider      IdentityProvider
	matcher       *AccountMatcher
	resolver      *AccountResolver
	recorder      Recorder
	accounts      AccountRepository
	verifier      VerificationSender
	padder        FailurePadder
	logger        *slog.Logger
	auditLogger   *pkglogger.AuditLogger
	dashboardPath string
	now           func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(
	provider IdentityProvider,
	matcher *AccountMatcher,
	resolver *AccountResolver,
	recorder Recorder,
	accounts AccountRepository,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	dashboardPath string,
) *AuthService {
	return &AuthService{
		provider:      provider,
		matcher:       matcher,
		resolver:      resolver,
		recorder:      recorder,
		accounts:      accounts,
		logger:        logger,
		auditLogger:   auditLogger,
		dashboardPath: dashboardPath,
		now:           time.Now,
	}
}

// SetVerificationSender enables verification mail for email signups
func (s *AuthService) SetVerificationSender(v VerificationSender) {
	s.verifier = v
}

// SetFailurePadder enables response padding for failed credential checks
func (s *AuthService) SetFailurePadder(p FailurePadder) {
	s.padder = p
}

// DiscordAuth runs a Discord attempt. Input is validated before the identity
// provider is contacted.
func (s *AuthService) DiscordAuth(ctx context.Context, in DiscordAuthInput) (*AuthResult, error) {
	if in.DeviceFingerprint == "" {
		return nil, models.ErrMissingDeviceFingerprint
	}
	intent, err := models.ParseAuthIntent(in.Mode)
	if err != nil {
		return nil, err
	}
	if in.Code == "" {
		return nil, fmt.Errorf("%w: code", models.ErrMissingInput)
	}

	identity, err := s.provider.ExchangeCode(ctx, in.Code)
	if err != nil {
		s.logger.Warn("identity provider exchange failed", slog.Any("error", err))
		return nil, err
	}

	signals := models.CandidateSignals{
		ProviderID:         identity.ProviderID,
		DeviceFingerprint:  in.DeviceFingerprint,
		IP:                 in.IP,
		BrowserFingerprint: in.BrowserFingerprint,
	}

	return s.resolve(ctx, MethodDiscord, intent, *identity, signals, nil)
}

// EmailSignup creates an email/password account
func (s *AuthService) EmailSignup(ctx context.Context, in EmailAuthInput) (*AuthResult, error) {
	email, err := validateEmailInput(&in)
	if err != nil {
		return nil, err
	}

	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrWeakPassword, err)
	}

	hash, err := pkgauth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	signals := models.CandidateSignals{
		Email:              email,
		DeviceFingerprint:  in.DeviceFingerprint,
		IP:                 in.IP,
		BrowserFingerprint: in.BrowserFingerprint,
	}

	result, err := s.resolve(ctx, MethodEmail, models.IntentSignup, models.EmailIdentity(email), signals, nil, WithPasswordHash(hash))
	if err != nil {
		return nil, err
	}

	if s.verifier != nil {
		if err := s.verifier.SendVerificationEmail(ctx, result.User.ID, email); err != nil {
			s.logger.Error("failed to send verification email",
				slog.String("account_id", result.User.ID),
				slog.Any("error", err))
		}
	}

	return result, nil
}

// EmailSignin authenticates an email/password account. An unknown email and a
// wrong password are indistinguishable to the caller.
func (s *AuthService) EmailSignin(ctx context.Context, in EmailAuthInput) (*AuthResult, error) {
	start := s.now()

	email, err := validateEmailInput(&in)
	if err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password", models.ErrMissingInput)
	}

	signals := models.CandidateSignals{
		Email:              email,
		DeviceFingerprint:  in.DeviceFingerprint,
		IP:                 in.IP,
		BrowserFingerprint: in.BrowserFingerprint,
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, models.NewStoreError("get account by email", err)
	}

	if account == nil || pkgauth.ComparePassword(account.PasswordHash, in.Password) != nil {
		s.recorder.RecordFailure(ctx, signals, email, models.FailureInvalidCredentials)
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventSigninRejected,
			Method:        MethodEmail,
			Identifier:    email,
			IPAddress:     in.IP,
			FailureReason: models.FailureInvalidCredentials,
		})
		if s.padder != nil {
			s.padder.PadFrom(ctx, start)
		}
		return nil, models.ErrInvalidCredentials
	}

	return s.resolve(ctx, MethodEmail, models.IntentSignin, models.EmailIdentity(email), signals, []*models.Account{account})
}

// resolve matches signals (unless candidates are supplied) and applies intent
func (s *AuthService) resolve(
	ctx context.Context,
	method string,
	intent models.AuthIntent,
	identity models.Identity,
	signals models.CandidateSignals,
	candidates []*models.Account,
	opts ...ResolveOption,
) (*AuthResult, error) {
	if candidates == nil {
		var err error
		candidates, err = s.matcher.FindCandidates(ctx, signals)
		if err != nil {
			s.logger.Error("failed to match accounts", slog.Any("error", err))
			return nil, err
		}
	}

	resolution, err := s.resolver.Resolve(ctx, intent, identity, signals, candidates, opts...)
	if err != nil {
		s.auditRejection(ctx, method, intent, identity, signals, err)
		return nil, err
	}

	eventType := pkglogger.EventSignin
	if resolution.Kind == Created {
		eventType = pkglogger.EventSignup
	}
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:  eventType,
		Method:     method,
		AccountID:  resolution.Account.ID,
		Identifier: identity.Identifier(),
		IPAddress:  signals.IP,
		Success:    true,
	})

	return &AuthResult{
		User:     resolution.Account.Public(),
		Outcome:  resolution.Kind,
		Redirect: s.dashboardPath,
	}, nil
}

func (s *AuthService) auditRejection(ctx context.Context, method string, intent models.AuthIntent, identity models.Identity, signals models.CandidateSignals, err error) {
	if models.IsStoreError(err) {
		s.logger.Error("account resolution failed", slog.Any("error", err))
		return
	}

	eventType := pkglogger.EventSigninRejected
	if intent == models.IntentSignup {
		eventType = pkglogger.EventSignupRejected
	}
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     eventType,
		Method:        method,
		Identifier:    identity.Identifier(),
		IPAddress:     signals.IP,
		FailureReason: err.Error(),
	})
}

// validateEmailInput normalises the email and checks the required fields
func validateEmailInput(in *EmailAuthInput) (string, error) {
	if in.DeviceFingerprint == "" {
		return "", models.ErrMissingDeviceFingerprint
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return "", fmt.Errorf("%w: email", models.ErrMissingInput)
	}
	return email, nil
}
