package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DevCodeRift/boundless-saga/internal/models"
	"github.com/DevCodeRift/boundless-saga/internal/services"
	pkghttp "github.com/DevCodeRift/boundless-saga/pkg/http"
)

// AuthServiceInterface defines the account resolution flows
type AuthServiceInterface interface {
	DiscordAuth(ctx context.Context, in services.DiscordAuthInput) (*services.AuthResult, error)
	EmailSignup(ctx context.Context, in services.EmailAuthInput) (*services.AuthResult, error)
	EmailSignin(ctx context.Context, in services.EmailAuthInput) (*services.AuthResult, error)
}

// EmailVerificationServiceInterface redeems email verification tokens
type EmailVerificationServiceInterface interface {
	VerifyEmail(ctx context.Context, plainToken string) (string, error)
}

// AuthHandler handles the JSON authentication endpoints
type AuthHandler struct {
	service                  AuthServiceInterface
	emailVerificationService EmailVerificationServiceInterface
	ipConfig                 *pkghttp.IPConfig
	logger                   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. emailVerificationService may be nil,
// in which case verify-email answers 500.
func NewAuthHandler(
	service AuthServiceInterface,
	emailVerificationService EmailVerificationServiceInterface,
	ipConfig *pkghttp.IPConfig,
	logger *slog.Logger,
) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		service:                  service,
		emailVerificationService: emailVerificationService,
		ipConfig:                 ipConfig,
		logger:                   logger,
	}
}

// Request DTOs. Presence of the identity fields is checked by the service so
// that the device fingerprint is always reported first.

// DiscordAuthRequest is the body of POST /api/auth/discord
type DiscordAuthRequest struct {
	Code               string                    `json:"code" validate:"max=512"`
	Mode               string                    `json:"mode" validate:"max=16"`
	DeviceFingerprint  string                    `json:"deviceFingerprint" validate:"max=8192"`
	BrowserFingerprint models.BrowserFingerprint `json:"browserFingerprint"`
}

// EmailAuthRequest is the body of POST /api/auth/register and /api/auth/login
type EmailAuthRequest struct {
	Email              string                    `json:"email" validate:"omitempty,email,max=320"`
	Password           string                    `json:"password" validate:"max=256"`
	DeviceFingerprint  string                    `json:"deviceFingerprint" validate:"max=8192"`
	BrowserFingerprint models.BrowserFingerprint `json:"browserFingerprint"`
}

func (req *EmailAuthRequest) normalize() {
	req.Email = strings.TrimSpace(req.Email)
}

// VerifyEmailRequest is the body of POST /api/auth/verify-email
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required,max=128"`
}

// DiscordAuth resolves a Discord authorization code into an account
// @Summary Discord signup or signin
// @Accept json
// @Param request body DiscordAuthRequest true "Discord auth request"
// @Produce json
// @Success 200 {object} services.AuthResult
// @Success 201 {object} services.AuthResult
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /api/auth/discord [post]
func (h *AuthHandler) DiscordAuth(w http.ResponseWriter, r *http.Request) {
	var req DiscordAuthRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.DiscordAuth(r.Context(), services.DiscordAuthInput{
		Code:               req.Code,
		Mode:               req.Mode,
		DeviceFingerprint:  req.DeviceFingerprint,
		BrowserFingerprint: req.BrowserFingerprint,
		IP:                 pkghttp.ExtractClientIP(r, h.ipConfig),
	})
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	writeAuthResult(w, result)
}

// Register creates an email/password account
// @Summary Email signup
// @Accept json
// @Param request body EmailAuthRequest true "Signup request"
// @Produce json
// @Success 201 {object} services.AuthResult
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req EmailAuthRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.EmailSignup(r.Context(), h.emailInput(r, req))
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	writeAuthResult(w, result)
}

// Login signs in with email and password
// @Summary Email signin
// @Accept json
// @Param request body EmailAuthRequest true "Login request"
// @Produce json
// @Success 200 {object} services.AuthResult
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req EmailAuthRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.EmailSignin(r.Context(), h.emailInput(r, req))
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	writeAuthResult(w, result)
}

// VerifyEmail redeems an email verification token
// @Summary Verify email address
// @Accept json
// @Param request body VerifyEmailRequest true "Verify email request"
// @Produce json
// @Success 200
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /api/auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if h.emailVerificationService == nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	var req VerifyEmailRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	accountID, err := h.emailVerificationService.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			pkghttp.WriteBadRequest(w, "Invalid or expired verification token")
			return
		}
		h.logger.Error("email verification failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified successfully.",
		"user_id": accountID,
	})
}

func (h *AuthHandler) emailInput(r *http.Request, req EmailAuthRequest) services.EmailAuthInput {
	return services.EmailAuthInput{
		Email:              req.Email,
		Password:           req.Password,
		DeviceFingerprint:  req.DeviceFingerprint,
		BrowserFingerprint: req.BrowserFingerprint,
		IP:                 pkghttp.ExtractClientIP(r, h.ipConfig),
	}
}

// decodeAndValidate writes a 400 and returns false when the body is unusable
func (h *AuthHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}

	if n, ok := dst.(interface{ normalize() }); ok {
		n.normalize()
	}

	if err := ValidateRequest(dst); err != nil {
		var verr *RequestValidationError
		if errors.As(err, &verr) {
			pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "bad_request", verr.Error(), verr.Fields)
			return false
		}
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// writeAuthResult answers 201 for a new account and 200 for a signin
func writeAuthResult(w http.ResponseWriter, result *services.AuthResult) {
	status := http.StatusOK
	if result.Outcome == services.Created {
		status = http.StatusCreated
	}
	pkghttp.WriteJSON(w, status, result)
}

// writeAuthError maps service errors onto status categories
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var providerErr *models.AuthProviderError

	switch {
	case errors.Is(err, models.ErrMissingDeviceFingerprint):
		pkghttp.WriteBadRequest(w, "Missing device fingerprint")
	case errors.Is(err, models.ErrInvalidIntent):
		pkghttp.WriteBadRequest(w, "Missing or invalid mode (signup/signin)")
	case errors.Is(err, models.ErrWeakPassword):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrMissingInput):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.As(err, &providerErr):
		message := "Failed to get Discord user"
		if providerErr.Stage == models.ProviderStageToken {
			message = "Failed to get Discord token"
		}
		var details any
		if len(providerErr.Payload) > 0 {
			details = providerErr.Payload
		}
		pkghttp.WriteErrorWithDetails(w, http.StatusUnauthorized, "unauthorized", message, details)
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorized(w, "Invalid credentials")
	case errors.Is(err, models.ErrAccountBanned):
		pkghttp.WriteForbidden(w, "This account has been banned.")
	case errors.Is(err, models.ErrAccountNotFound):
		pkghttp.WriteNotFound(w, "No account found for this device or Discord account. Please sign up first.")
	case errors.Is(err, models.ErrDuplicateAccount):
		pkghttp.WriteConflict(w, "Account already exists for this device or IP.")
	default:
		h.logger.ErrorContext(r.Context(), "authentication failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Database error")
	}
}
