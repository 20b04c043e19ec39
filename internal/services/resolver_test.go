package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DevCodeRift/boundless-saga/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_SignupWithoutCandidatesCreates(t *testing.T) {
	ts := newTestServices()
	identity := models.Identity{ProviderID: "d1", Email: "a@x.com", Username: "a", GlobalName: "Alpha", Avatar: "abc", Verified: true}
	signals := models.CandidateSignals{
		ProviderID:         "d1",
		DeviceFingerprint:  "fp1",
		IP:                 "1.2.3.4",
		BrowserFingerprint: models.NewBrowserFingerprint([]byte(`{"userAgent":"UA"}`)),
	}

	res, err := ts.resolver.Resolve(context.Background(), models.IntentSignup, identity, signals, nil)
	require.NoError(t, err)
	assert.Equal(t, Created, res.Kind)

	stored := ts.store.Account(res.Account.ID)
	require.NotNil(t, stored)
	assert.Equal(t, "d1", stored.DiscordID)
	assert.Equal(t, "a@x.com", stored.Email)
	assert.Equal(t, "Alpha", stored.DisplayName)
	assert.Equal(t, "https://cdn.discordapp.com/avatars/d1/abc.png", stored.AvatarURL)
	assert.True(t, stored.EmailVerified)
	assert.False(t, stored.IsBanned)
	assert.Equal(t, []string{"1.2.3.4"}, stored.IPAddresses)
	assert.JSONEq(t, `{"userAgent":"UA"}`, string(stored.BrowserFingerprint.Object()))
}

func TestResolve_SignupDropsNonObjectBrowserFingerprint(t *testing.T) {
	ts := newTestServices()
	signals := models.CandidateSignals{
		ProviderID:         "d1",
		DeviceFingerprint:  "fp1",
		BrowserFingerprint: models.NewBrowserFingerprint([]byte(`["not","an","object"]`)),
	}

	res, err := ts.resolver.Resolve(context.Background(), models.IntentSignup, models.Identity{ProviderID: "d1", Username: "a"}, signals, nil)
	require.NoError(t, err)

	stored := ts.store.Account(res.Account.ID)
	assert.True(t, stored.BrowserFingerprint.IsZero())
	assert.Empty(t, stored.IPAddresses, "an unavailable ip is never stored")
}

func TestResolve_SignupWithCandidatesIsDuplicate(t *testing.T) {
	ts := newTestServices()
	existing := ts.store.Seed(&models.Account{DiscordID: "d9", Username: "z", DeviceFingerprint: "fp1"})

	_, err := ts.resolver.Resolve(context.Background(), models.IntentSignup,
		models.Identity{ProviderID: "d1", Username: "a"},
		models.CandidateSignals{ProviderID: "d1", DeviceFingerprint: "fp1"},
		[]*models.Account{existing})

	assert.ErrorIs(t, err, models.ErrDuplicateAccount)
	assert.Len(t, ts.store.Accounts(), 1)
	assert.Zero(t, ts.store.CreateCalls)
	assert.Empty(t, ts.store.Attempts())
}

func TestResolve_SignupUniqueViolationIsDuplicate(t *testing.T) {
	ts := newTestServices()
	ts.store.FailCreate = models.ErrConflict

	_, err := ts.resolver.Resolve(context.Background(), models.IntentSignup,
		models.Identity{ProviderID: "d1", Username: "a"},
		models.CandidateSignals{ProviderID: "d1", DeviceFingerprint: "fp1"}, nil)

	assert.ErrorIs(t, err, models.ErrDuplicateAccount)
	assert.Empty(t, ts.store.Attempts())
}

func TestResolve_SignupStoreFailureIsFatal(t *testing.T) {
	ts := newTestServices()
	ts.store.FailCreate = errors.New("disk full")

	_, err := ts.resolver.Resolve(context.Background(), models.IntentSignup,
		models.Identity{ProviderID: "d1", Username: "a"},
		models.CandidateSignals{ProviderID: "d1", DeviceFingerprint: "fp1"}, nil)

	assert.True(t, models.IsStoreError(err))
	assert.Zero(t, ts.store.DeviceCalls)
}

func TestResolve_SigninWithoutCandidatesIsNotFound(t *testing.T) {
	ts := newTestServices()

	_, err := ts.resolver.Resolve(context.Background(), models.IntentSignin,
		models.Identity{ProviderID: "d1", Username: "a"},
		models.CandidateSignals{ProviderID: "d1", DeviceFingerprint: "fp1"}, []*models.Account{})

	assert.ErrorIs(t, err, models.ErrAccountNotFound)
	assert.Empty(t, ts.store.Attempts())
}

func TestResolve_SigninAuthenticatesAndRecords(t *testing.T) {
	ts := newTestServices()
	existing := ts.store.Seed(&models.Account{DiscordID: "d1", Username: "a", DeviceFingerprint: "fp1", IPAddresses: []string{"1.2.3.4"}})

	res, err := ts.resolver.Resolve(context.Background(), models.IntentSignin,
		models.Identity{ProviderID: "d1", Username: "a"},
		models.CandidateSignals{ProviderID: "d1", DeviceFingerprint: "fp1", IP: "9.9.9.9"},
		[]*models.Account{existing})
	require.NoError(t, err)
	assert.Equal(t, Authenticated, res.Kind)
	assert.Equal(t, existing.ID, res.Account.ID)

	stored := ts.store.Account(existing.ID)
	require.NotNil(t, stored.LastLogin)
	assert.True(t, stored.LastLogin.Equal(ts.now))
	assert.Equal(t, []string{"1.2.3.4", "9.9.9.9"}, stored.IPAddresses)
}

func TestResolve_SigninBannedAccountIsRejected(t *testing.T) {
	ts := newTestServices()
	banned := ts.store.Seed(&models.Account{DiscordID: "d1", Username: "a", DeviceFingerprint: "fp1", IsBanned: true})

	_, err := ts.resolver.Resolve(context.Background(), models.IntentSignin,
		models.Identity{ProviderID: "d1", Username: "a"},
		models.CandidateSignals{ProviderID: "d1", DeviceFingerprint: "fp1", IP: "9.9.9.9"},
		[]*models.Account{banned})

	assert.ErrorIs(t, err, models.ErrAccountBanned)

	attempts := ts.store.Attempts()
	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].Success)
	require.NotNil(t, attempts[0].FailureReason)
	assert.Equal(t, models.FailureAccountBanned, *attempts[0].FailureReason)

	assert.Nil(t, ts.store.Account(banned.ID).LastLogin)
	assert.Empty(t, ts.store.Devices())
}

func TestResolve_MissingInput(t *testing.T) {
	ts := newTestServices()

	_, err := ts.resolver.Resolve(context.Background(), models.IntentSignup,
		models.Identity{ProviderID: "d1"}, models.CandidateSignals{ProviderID: "d1"}, nil)
	assert.ErrorIs(t, err, models.ErrMissingDeviceFingerprint)
	assert.ErrorIs(t, err, models.ErrMissingInput)

	_, err = ts.resolver.Resolve(context.Background(), models.AuthIntent("register"),
		models.Identity{ProviderID: "d1"}, models.CandidateSignals{DeviceFingerprint: "fp1"}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidIntent)

	assert.Zero(t, ts.store.CreateCalls)
}

func TestSelectCandidate(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := base.Add(48 * time.Hour)
	older := base.Add(24 * time.Hour)

	neverLoggedIn := &models.Account{ID: "never", DiscordID: "dx", CreatedAt: base}
	oldLogin := &models.Account{ID: "old", DiscordID: "dy", CreatedAt: base, LastLogin: &older}
	newLogin := &models.Account{ID: "new", DiscordID: "dz", CreatedAt: base.Add(time.Hour), LastLogin: &recent}
	firstCreated := &models.Account{ID: "first", DiscordID: "da", CreatedAt: base}
	laterCreated := &models.Account{ID: "later", DiscordID: "db", CreatedAt: base.Add(time.Minute)}
	owner := &models.Account{ID: "owner", DiscordID: "d1", CreatedAt: base.Add(time.Hour)}
	emailOwner := &models.Account{ID: "email", Email: "a@x.com", CreatedAt: base.Add(time.Hour)}

	tests := []struct {
		name       string
		identity   models.Identity
		candidates []*models.Account
		want       string
	}{
		{"provider id owner wins", models.Identity{ProviderID: "d1"}, []*models.Account{newLogin, owner}, "owner"},
		{"email owner wins", models.EmailIdentity("a@x.com"), []*models.Account{newLogin, emailOwner}, "email"},
		{"most recent login", models.Identity{ProviderID: "d1"}, []*models.Account{neverLoggedIn, oldLogin, newLogin}, "new"},
		{"logged in beats never", models.Identity{ProviderID: "d1"}, []*models.Account{neverLoggedIn, oldLogin}, "old"},
		{"oldest account breaks ties", models.Identity{ProviderID: "d1"}, []*models.Account{laterCreated, firstCreated}, "first"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectCandidate(tt.identity, tt.candidates).ID)
		})
	}
}

func TestSelectCandidate_DoesNotReorderInput(t *testing.T) {
	recent := time.Now()
	a := &models.Account{ID: "a"}
	b := &models.Account{ID: "b", LastLogin: &recent}
	candidates := []*models.Account{a, b}

	assert.Equal(t, "b", SelectCandidate(models.Identity{ProviderID: "x"}, candidates).ID)
	assert.Equal(t, "a", candidates[0].ID)
}
