package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/DevCodeRift/boundless-saga/pkg/logger"
)

// Mailer delivers verification links
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error
}

// sesAPI is the subset of the SES client the mailer needs
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends verification emails through AWS SES
type SESMailer struct {
	client      sesAPI
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewSESMailer loads the default AWS credential chain for region
func NewSESMailer(ctx context.Context, region, fromAddress, baseURL string, logger *slog.Logger) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESMailer{
		client:      ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// verificationLink builds <base>/verify-email?token=<token>
func verificationLink(baseURL, token string) string {
	return baseURL + "/verify-email?token=" + url.QueryEscape(token)
}

func (m *SESMailer) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	link := verificationLink(m.baseURL, token)
	hours := int(time.Until(expiresAt).Round(time.Hour).Hours())

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Georgia, serif; background: #0d0b09; color: #e8dcc4; padding: 24px;">
  <h1 style="color: #c9a227;">Boundless Saga</h1>
  <p>Your path of cultivation begins with a single step. Confirm your email address to seal your account:</p>
  <p><a href="%s" style="color: #c9a227;">Verify email address</a></p>
  <p>This link expires in %d hours. If you did not create an account, ignore this message.</p>
</body>
</html>`, link, hours)

	textBody := fmt.Sprintf(`Boundless Saga

Confirm your email address to seal your account:

%s

This link expires in %d hours. If you did not create an account, ignore this message.
`, link, hours)

	input := &ses.SendEmailInput{
		Source: aws.String(m.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String("Verify your Boundless Saga account")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("verification email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// LogMailer writes verification links to the log instead of sending mail.
// It is used when SES is not configured.
type LogMailer struct {
	baseURL string
	env     string
	logger  *slog.Logger
}

// NewLogMailer creates a new LogMailer
func NewLogMailer(baseURL, env string, logger *slog.Logger) *LogMailer {
	return &LogMailer{baseURL: baseURL, env: env, logger: logger}
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.logger.InfoContext(ctx, "verification email not sent: SES not configured",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		pkglogger.RedactedAttr("link", verificationLink(m.baseURL, token), m.env),
		slog.Time("expires_at", expiresAt))
	return nil
}
