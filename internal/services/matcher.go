package services

import (
	"context"
	"time"

	"github.com/DevCodeRift/boundless-saga/internal/models"
)

// AccountRepository defines the account store operations used by the services
type AccountRepository interface {
	FindCandidates(ctx context.Context, filter models.AnyOf) ([]*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	TouchLogin(ctx context.Context, id, ip string, at time.Time) (*models.Account, error)
}

// AccountMatcher finds every existing account that shares at least one
// identity signal with an attempt.
type AccountMatcher struct {
	accounts AccountRepository
}

// NewAccountMatcher creates a new AccountMatcher
func NewAccountMatcher(accounts AccountRepository) *AccountMatcher {
	return &AccountMatcher{accounts: accounts}
}

// BuildMatchFilter turns signals into a disjunctive filter. Optional signals
// that are absent contribute no clause; the browser fingerprint only counts
// when it is a JSON object.
func BuildMatchFilter(signals models.CandidateSignals) models.AnyOf {
	filter := make(models.AnyOf, 0, 5)

	if signals.ProviderID != "" {
		filter = append(filter, models.MatchClause{Column: models.ColumnDiscordID, Op: models.OpEquals, Value: signals.ProviderID})
	}
	if signals.Email != "" {
		filter = append(filter, models.MatchClause{Column: models.ColumnEmail, Op: models.OpEquals, Value: signals.Email})
	}

	filter = append(filter, models.MatchClause{Column: models.ColumnDeviceFingerprint, Op: models.OpEquals, Value: signals.DeviceFingerprint})

	if signals.IP != "" {
		filter = append(filter, models.MatchClause{Column: models.ColumnIPAddresses, Op: models.OpContains, Value: signals.IP})
	}
	if obj := signals.BrowserFingerprint.Object(); obj != nil {
		filter = append(filter, models.MatchClause{Column: models.ColumnBrowserFingerprint, Op: models.OpJSONEquals, Value: string(obj)})
	}

	return filter
}

// FindCandidates returns the full set of matching accounts. Store failures are
// reported as *models.StoreError.
func (m *AccountMatcher) FindCandidates(ctx context.Context, signals models.CandidateSignals) ([]*models.Account, error) {
	candidates, err := m.accounts.FindCandidates(ctx, BuildMatchFilter(signals))
	if err != nil {
		return nil, models.NewStoreError("find candidates", err)
	}
	return candidates, nil
}
