// Package discord adapts the Discord OAuth2 API to the account service's
// identity model.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/DevCodeRift/boundless-saga/internal/config"
	"github.com/DevCodeRift/boundless-saga/internal/models"
	"golang.org/x/oauth2"
)

// Scopes requested on the authorize redirect
var Scopes = []string{"identify", "email"}

const maxPayloadBytes = 64 << 10

// Client exchanges authorization codes and fetches the caller's profile.
// It never retries.
type Client struct {
	oauth      *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// NewClient builds a Client from the Discord application settings
func NewClient(cfg config.DiscordConfig) *Client {
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBaseURL: cfg.APIBaseURL,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// AuthCodeURL returns the Discord authorize URL carrying state
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "consent"))
}

// ExchangeCode trades an authorization code for an access token and resolves
// the token's owner.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*models.Identity, error) {
	token, err := c.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	return c.fetchProfile(ctx, token)
}

func (c *Client) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		providerErr := &models.AuthProviderError{Stage: models.ProviderStageToken, Err: err}

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			providerErr.Err = nil
			if retrieveErr.Response != nil {
				providerErr.StatusCode = retrieveErr.Response.StatusCode
			}
			providerErr.Payload = rawPayload(retrieveErr.Body)
		}

		return nil, providerErr
	}

	return token, nil
}

// user mirrors the fields of GET /users/@me used by the service
type user struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	GlobalName *string `json:"global_name"`
	Avatar     *string `json:"avatar"`
	Email      *string `json:"email"`
	Verified   bool    `json:"verified"`
}

func (c *Client) fetchProfile(ctx context.Context, token *oauth2.Token) (*models.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+"/users/@me", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.AuthProviderError{Stage: models.ProviderStageProfile, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, &models.AuthProviderError{Stage: models.ProviderStageProfile, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.AuthProviderError{
			Stage:      models.ProviderStageProfile,
			StatusCode: resp.StatusCode,
			Payload:    rawPayload(body),
		}
	}

	var u user
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, &models.AuthProviderError{
			Stage:      models.ProviderStageProfile,
			StatusCode: resp.StatusCode,
			Payload:    rawPayload(body),
			Err:        fmt.Errorf("decode profile: %w", err),
		}
	}
	if u.ID == "" {
		return nil, &models.AuthProviderError{
			Stage:      models.ProviderStageProfile,
			StatusCode: resp.StatusCode,
			Payload:    rawPayload(body),
			Err:        errors.New("profile has no id"),
		}
	}

	// Emails are stored lowercased on every path
	return &models.Identity{
		ProviderID: u.ID,
		Email:      strings.ToLower(strings.TrimSpace(deref(u.Email))),
		Username:   u.Username,
		GlobalName: deref(u.GlobalName),
		Avatar:     deref(u.Avatar),
		Verified:   u.Verified,
	}, nil
}

// rawPayload keeps a JSON body as-is and quotes anything else so it can be
// embedded in an error response.
func rawPayload(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return append(json.RawMessage(nil), body...)
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return quoted
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
