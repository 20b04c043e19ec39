package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/DevCodeRift/boundless-saga/internal/models"
	pkglogger "github.com/DevCodeRift/boundless-saga/pkg/logger"
)

// newTestLogger discards output
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MemoryStore is an in-memory account, device and login attempt store. It
// evaluates match filters the same way the SQL builder does. The Fail* fields
// inject errors per operation.
type MemoryStore struct {
	mu       sync.Mutex
	accounts []*models.Account
	devices  []*models.DeviceRecord
	attempts []*models.LoginAttempt
	nextID   int

	FailFind    error
	FailCreate  error
	FailDevice  error
	FailAttempt error
	FailTouch   error

	FindCalls   int
	CreateCalls int
	DeviceCalls int
	TouchCalls  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func copyAccount(a *models.Account) *models.Account {
	c := *a
	c.IPAddresses = slices.Clone(a.IPAddresses)
	if a.LastLogin != nil {
		t := *a.LastLogin
		c.LastLogin = &t
	}
	return &c
}

// Seed inserts account as-is, assigning an id when it has none
func (s *MemoryStore) Seed(account *models.Account) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == "" {
		s.nextID++
		account.ID = fmt.Sprintf("acct-%d", s.nextID)
	}
	if account.IPAddresses == nil {
		account.IPAddresses = []string{}
	}
	s.accounts = append(s.accounts, copyAccount(account))
	return copyAccount(account)
}

// Accounts returns a snapshot of every stored account
func (s *MemoryStore) Accounts() []*models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, copyAccount(a))
	}
	return out
}

// Account returns a snapshot of the account with id, or nil
func (s *MemoryStore) Account(id string) *models.Account {
	for _, a := range s.Accounts() {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *MemoryStore) Devices() []models.DeviceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.DeviceRecord, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, *d)
	}
	return out
}

func (s *MemoryStore) Attempts() []models.LoginAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.LoginAttempt, 0, len(s.attempts))
	for _, a := range s.attempts {
		out = append(out, *a)
	}
	return out
}

func (s *MemoryStore) FindCandidates(ctx context.Context, filter models.AnyOf) ([]*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.FindCalls++
	if s.FailFind != nil {
		return nil, s.FailFind
	}

	out := make([]*models.Account, 0)
	for _, a := range s.accounts {
		for _, clause := range filter {
			if clauseMatches(a, clause) {
				out = append(out, copyAccount(a))
				break
			}
		}
	}
	return out, nil
}

func clauseMatches(a *models.Account, clause models.MatchClause) bool {
	switch clause.Column {
	case models.ColumnDiscordID:
		return a.DiscordID != "" && a.DiscordID == clause.Value
	case models.ColumnEmail:
		return a.Email != "" && a.Email == clause.Value
	case models.ColumnDeviceFingerprint:
		return a.DeviceFingerprint == clause.Value
	case models.ColumnIPAddresses:
		return slices.Contains(a.IPAddresses, clause.Value)
	case models.ColumnBrowserFingerprint:
		return jsonEqual(a.BrowserFingerprint.Object(), []byte(clause.Value))
	}
	return false
}

func jsonEqual(a, b []byte) bool {
	if a == nil || b == nil {
		return false
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

func (s *MemoryStore) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CreateCalls++
	if s.FailCreate != nil {
		return nil, s.FailCreate
	}

	for _, existing := range s.accounts {
		if (account.DiscordID != "" && existing.DiscordID == account.DiscordID) ||
			(account.Email != "" && existing.Email == account.Email) {
			return nil, models.ErrConflict
		}
	}

	s.nextID++
	created := copyAccount(account)
	created.ID = fmt.Sprintf("acct-%d", s.nextID)
	created.UpdatedAt = created.CreatedAt
	if created.IPAddresses == nil {
		created.IPAddresses = []string{}
	}
	s.accounts = append(s.accounts, created)

	return copyAccount(created), nil
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Email != "" && a.Email == email {
			return copyAccount(a), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *MemoryStore) TouchLogin(ctx context.Context, id, ip string, at time.Time) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TouchCalls++
	if s.FailTouch != nil {
		return nil, s.FailTouch
	}

	for _, a := range s.accounts {
		if a.ID == id {
			a.LastLogin = &at
			a.UpdatedAt = at
			a.IPAddresses = models.MergeIP(a.IPAddresses, ip)
			return copyAccount(a), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *MemoryStore) Upsert(ctx context.Context, device *models.DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DeviceCalls++
	if s.FailDevice != nil {
		return s.FailDevice
	}

	for _, d := range s.devices {
		if d.AccountID == device.AccountID && d.DeviceFingerprint == device.DeviceFingerprint {
			d.IPAddress = device.IPAddress
			d.UserAgent = device.UserAgent
			d.IsTrusted = device.IsTrusted
			d.LastSeen = device.LastSeen
			return nil
		}
	}

	stored := *device
	stored.ID = fmt.Sprintf("dev-%d", len(s.devices)+1)
	stored.CreatedAt = device.LastSeen
	s.devices = append(s.devices, &stored)
	return nil
}

func (s *MemoryStore) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailAttempt != nil {
		return s.FailAttempt
	}

	stored := *attempt
	stored.ID = fmt.Sprintf("att-%d", len(s.attempts)+1)
	s.attempts = append(s.attempts, &stored)
	return nil
}

// MockIdentityProvider implements IdentityProvider for testing
type MockIdentityProvider struct {
	ExchangeCodeFunc func(ctx context.Context, code string) (*models.Identity, error)
	Calls            int
}

func (m *MockIdentityProvider) ExchangeCode(ctx context.Context, code string) (*models.Identity, error) {
	m.Calls++
	if m.ExchangeCodeFunc != nil {
		return m.ExchangeCodeFunc(ctx, code)
	}
	return nil, &models.AuthProviderError{Stage: models.ProviderStageToken, StatusCode: 400}
}

// MockVerificationSender implements VerificationSender for testing
type MockVerificationSender struct {
	SendVerificationEmailFunc func(ctx context.Context, accountID, email string) error
	Calls                     int
}

func (m *MockVerificationSender) SendVerificationEmail(ctx context.Context, accountID, email string) error {
	m.Calls++
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, accountID, email)
	}
	return nil
}

// MockMailer implements Mailer for testing
type MockMailer struct {
	SendVerificationEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
	LastToken                 string
}

func (m *MockMailer) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.LastToken = token
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

// MockEmailVerificationRepository implements EmailVerificationRepository for testing
type MockEmailVerificationRepository struct {
	CreateFunc         func(ctx context.Context, accountID, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error)
	GetByTokenHashFunc func(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error)
	RedeemFunc         func(ctx context.Context, tokenID, accountID string, at time.Time) error
}

func (m *MockEmailVerificationRepository) Create(ctx context.Context, accountID, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, accountID, tokenHash, email, expiresAt)
	}
	return &models.EmailVerificationToken{ID: "token-1", AccountID: accountID, TokenHash: tokenHash, Email: email, ExpiresAt: expiresAt}, nil
}

func (m *MockEmailVerificationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockEmailVerificationRepository) Redeem(ctx context.Context, tokenID, accountID string, at time.Time) error {
	if m.RedeemFunc != nil {
		return m.RedeemFunc(ctx, tokenID, accountID, at)
	}
	return nil
}

// testServices wires the full service graph over one MemoryStore
type testServices struct {
	store    *MemoryStore
	provider *MockIdentityProvider
	recorder *BookkeepingRecorder
	resolver *AccountResolver
	auth     *AuthService
	now      time.Time
}

func newTestServices() *testServices {
	logger := newTestLogger()
	store := NewMemoryStore()
	provider := &MockIdentityProvider{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	recorder := NewBookkeepingRecorder(store, store, store, logger)
	recorder.now = clock
	resolver := NewAccountResolver(store, recorder, "https://cdn.discordapp.com", logger)
	resolver.now = clock
	auth := NewAuthService(provider, NewAccountMatcher(store), resolver, recorder, store, logger, pkglogger.NewAuditLogger(logger), "/dashboard")
	auth.now = clock

	return &testServices{
		store:    store,
		provider: provider,
		recorder: recorder,
		resolver: resolver,
		auth:     auth,
		now:      now,
	}
}

// identityFor makes the mock provider return identity for every code
func (ts *testServices) identityFor(identity models.Identity) {
	ts.provider.ExchangeCodeFunc = func(ctx context.Context, code string) (*models.Identity, error) {
		id := identity
		return &id, nil
	}
}
