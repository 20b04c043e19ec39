package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/DevCodeRift/boundless-saga/internal/auth"
	"github.com/DevCodeRift/boundless-saga/internal/models"
	pkghttp "github.com/DevCodeRift/boundless-saga/pkg/http"
)

// AuthorizeURLBuilder builds the identity provider's consent URL
type AuthorizeURLBuilder interface {
	AuthCodeURL(state string) string
}

// StateCodec signs and verifies the OAuth state parameter
type StateCodec interface {
	Issue(intent models.AuthIntent) (string, error)
	Consume(ctx context.Context, state string) (models.AuthIntent, error)
}

// DiscordOAuthHandler drives the browser side of the Discord OAuth flow. The
// code is handed to the front-end callback page, which posts it to
// /api/auth/discord together with the device fingerprints.
type DiscordOAuthHandler struct {
	authorize   AuthorizeURLBuilder
	states      StateCodec
	callbackURL string
	logger      *slog.Logger
}

// NewDiscordOAuthHandler creates a new DiscordOAuthHandler. callbackURL is the
// absolute URL of the front-end callback page.
func NewDiscordOAuthHandler(authorize AuthorizeURLBuilder, states StateCodec, callbackURL string, logger *slog.Logger) *DiscordOAuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscordOAuthHandler{
		authorize:   authorize,
		states:      states,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

// Start redirects to Discord's consent screen with the intent signed into state
// @Summary Begin Discord OAuth
// @Param mode query string true "signup or signin"
// @Success 302
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /auth/discord/start [get]
func (h *DiscordOAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	intent, err := models.ParseAuthIntent(r.URL.Query().Get("mode"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Missing or invalid mode (signup/signin)")
		return
	}

	state, err := h.states.Issue(intent)
	if err != nil {
		h.logger.Error("failed to issue oauth state", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	http.Redirect(w, r, h.authorize.AuthCodeURL(state), http.StatusFound)
}

// Callback verifies the returned state and forwards code and mode to the
// front-end callback page
// @Summary Discord OAuth callback
// @Param code query string true "authorization code"
// @Param state query string true "signed state"
// @Success 303
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /auth/discord/callback [get]
func (h *DiscordOAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// consent denied on Discord's side
	if providerErr := query.Get("error"); providerErr != "" {
		h.redirectToCallback(w, r, url.Values{"error": {providerErr}})
		return
	}

	code := query.Get("code")
	if code == "" {
		pkghttp.WriteBadRequest(w, "Missing code")
		return
	}

	intent, err := h.states.Consume(r.Context(), query.Get("state"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidState) {
			h.logger.Warn("rejected oauth callback", slog.Any("error", err))
			pkghttp.WriteBadRequest(w, "Invalid or expired state")
			return
		}
		h.logger.Error("failed to verify oauth state", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	h.redirectToCallback(w, r, url.Values{
		"code": {code},
		"mode": {string(intent)},
	})
}

func (h *DiscordOAuthHandler) redirectToCallback(w http.ResponseWriter, r *http.Request, params url.Values) {
	http.Redirect(w, r, h.callbackURL+"?"+params.Encode(), http.StatusSeeOther)
}
