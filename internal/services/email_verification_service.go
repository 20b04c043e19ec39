package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DevCodeRift/boundless-saga/internal/models"
	pkgauth "github.com/DevCodeRift/boundless-saga/pkg/auth"
	pkglogger "github.com/DevCodeRift/boundless-saga/pkg/logger"
)

const verificationTokenBytes = 32

// EmailVerificationRepository defines the interface for email verification token operations
type EmailVerificationRepository interface {
	Create(ctx context.Context, accountID, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error)
	Redeem(ctx context.Context, tokenID, accountID string, at time.Time) error
}

// EmailVerificationService issues and redeems single-use verification tokens
type EmailVerificationService struct {
	tokens      EmailVerificationRepository
	mailer      Mailer
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	tokenExpiry time.Duration
	now         func() time.Time
}

// NewEmailVerificationService creates a new EmailVerificationService
func NewEmailVerificationService(
	tokens EmailVerificationRepository,
	mailer Mailer,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	tokenExpiry time.Duration,
) *EmailVerificationService {
	return &EmailVerificationService{
		tokens:      tokens,
		mailer:      mailer,
		logger:      logger,
		auditLogger: auditLogger,
		tokenExpiry: tokenExpiry,
		now:         time.Now,
	}
}

func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// SendVerificationEmail stores the hash of a fresh token and mails the plain
// token to email.
func (s *EmailVerificationService) SendVerificationEmail(ctx context.Context, accountID, email string) error {
	plainToken, err := pkgauth.GenerateURLToken(verificationTokenBytes)
	if err != nil {
		return err
	}

	expiresAt := s.now().Add(s.tokenExpiry)

	if _, err := s.tokens.Create(ctx, accountID, hashToken(plainToken), email, expiresAt); err != nil {
		return models.NewStoreError("create verification token", err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, email, plainToken, expiresAt); err != nil {
		return fmt.Errorf("failed to deliver verification email: %w", err)
	}

	s.logger.Info("verification email issued",
		slog.String("account_id", accountID),
		slog.String("email", pkglogger.SanitizedEmail(email)))

	return nil
}

// VerifyEmail redeems plainToken and returns the verified account's id.
// Unknown, used and expired tokens all yield models.ErrInvalidToken.
func (s *EmailVerificationService) VerifyEmail(ctx context.Context, plainToken string) (string, error) {
	if plainToken == "" {
		return "", models.ErrInvalidToken
	}

	token, err := s.tokens.GetByTokenHash(ctx, hashToken(plainToken))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrInvalidToken
		}
		return "", models.NewStoreError("get verification token", err)
	}

	now := s.now()

	if token.IsUsed() {
		s.logger.Warn("attempt to reuse verification token", slog.String("token_id", token.ID))
		return "", models.ErrInvalidToken
	}
	if token.IsExpired(now) {
		s.logger.Info("verification token expired",
			slog.String("token_id", token.ID),
			slog.Time("expires_at", token.ExpiresAt))
		return "", models.ErrInvalidToken
	}

	if err := s.tokens.Redeem(ctx, token.ID, token.AccountID, now); err != nil {
		// lost a race with a concurrent redemption
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrInvalidToken
		}
		return "", models.NewStoreError("redeem verification token", err)
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.EventEmailVerified, token.AccountID, nil)

	return token.AccountID, nil
}
