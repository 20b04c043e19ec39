package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DevCodeRift/boundless-saga/internal/models"
	"github.com/DevCodeRift/boundless-saga/internal/services"
	pkghttp "github.com/DevCodeRift/boundless-saga/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestRequest creates an HTTP request with a JSON body
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body), "failed to encode request body")
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewRawRequest creates an HTTP request with a literal body
func NewRawRequest(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertJSONResponse checks the status and decodes the JSON body into target
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks the status and error code and returns the decoded body
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface
type MockAuthService struct {
	DiscordAuthFunc func(ctx context.Context, in services.DiscordAuthInput) (*services.AuthResult, error)
	EmailSignupFunc func(ctx context.Context, in services.EmailAuthInput) (*services.AuthResult, error)
	EmailSigninFunc func(ctx context.Context, in services.EmailAuthInput) (*services.AuthResult, error)
}

func (m *MockAuthService) DiscordAuth(ctx context.Context, in services.DiscordAuthInput) (*services.AuthResult, error) {
	if m.DiscordAuthFunc == nil {
		return nil, models.ErrAccountNotFound
	}
	return m.DiscordAuthFunc(ctx, in)
}

func (m *MockAuthService) EmailSignup(ctx context.Context, in services.EmailAuthInput) (*services.AuthResult, error) {
	if m.EmailSignupFunc == nil {
		return nil, models.ErrDuplicateAccount
	}
	return m.EmailSignupFunc(ctx, in)
}

func (m *MockAuthService) EmailSignin(ctx context.Context, in services.EmailAuthInput) (*services.AuthResult, error) {
	if m.EmailSigninFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.EmailSigninFunc(ctx, in)
}

// MockEmailVerificationService implements EmailVerificationServiceInterface
type MockEmailVerificationService struct {
	VerifyEmailFunc func(ctx context.Context, plainToken string) (string, error)
}

func (m *MockEmailVerificationService) VerifyEmail(ctx context.Context, plainToken string) (string, error) {
	if m.VerifyEmailFunc == nil {
		return "", models.ErrInvalidToken
	}
	return m.VerifyEmailFunc(ctx, plainToken)
}

// fakeAuthorizeURL builds a predictable consent URL
type fakeAuthorizeURL struct{}

func (fakeAuthorizeURL) AuthCodeURL(state string) string {
	return "https://discord.example/oauth2/authorize?state=" + state
}

func createdResult() *services.AuthResult {
	return &services.AuthResult{
		User:     models.PublicAccount{ID: "acct-1", Email: "a@x.io", Username: "a"},
		Outcome:  services.Created,
		Redirect: "/dashboard",
	}
}

func authenticatedResult() *services.AuthResult {
	result := createdResult()
	result.Outcome = services.Authenticated
	return result
}
