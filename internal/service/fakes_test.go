package service

// In-memory fakes for the repository interfaces. Hand-written fakes (not a
// mock framework) keep the tests readable: what each fake does is on the
// page. They mimic the two behaviours the services rely on from the real
// store — apperror.ErrNotFound on absent rows and apperror.ErrConflict on
// uniqueness violations.

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/Sequence-Game/auth-module/internal/apperror"
	"github.com/Sequence-Game/auth-module/internal/auth"
	"github.com/Sequence-Game/auth-module/internal/model"
)

// =========================================================================
// fakeUserRepo
// =========================================================================

type fakeUserRepo struct {
	byID   map[string]*model.User
	nextID int

	// set to a non-nil error to simulate a store failure
	createErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.byID {
		if u.Email == user.Email {
			return apperror.Conflict("user", "email already registered")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	stored := *user
	f.byID[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

// =========================================================================
// fakeSocialRepo
// =========================================================================

type fakeSocialRepo struct {
	accounts []model.SocialAccount
	nextID   int
}

func newFakeSocialRepo() *fakeSocialRepo {
	return &fakeSocialRepo{}
}

func (f *fakeSocialRepo) Create(_ context.Context, account *model.SocialAccount) error {
	for _, a := range f.accounts {
		if a.Provider == account.Provider && a.ExternalID == account.ExternalID {
			return apperror.Conflict("social account", "external account already linked")
		}
	}
	f.nextID++
	account.ID = fmt.Sprintf("social-%d", f.nextID)
	f.accounts = append(f.accounts, *account)
	return nil
}

func (f *fakeSocialRepo) GetByProviderExternalID(_ context.Context, provider, externalID string) (*model.SocialAccount, error) {
	for _, a := range f.accounts {
		if a.Provider == provider && a.ExternalID == externalID {
			result := a
			return &result, nil
		}
	}
	return nil, apperror.NotFound("social account", externalID)
}

func (f *fakeSocialRepo) GetByUserAndProvider(_ context.Context, userID, provider string) (*model.SocialAccount, error) {
	for _, a := range f.accounts {
		if a.UserID == userID && a.Provider == provider {
			result := a
			return &result, nil
		}
	}
	return nil, apperror.NotFound("social account", provider)
}

// =========================================================================
// fakeRefreshRepo
// =========================================================================

type fakeRefreshRepo struct {
	rows map[string]*model.RefreshToken
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{rows: make(map[string]*model.RefreshToken)}
}

func (f *fakeRefreshRepo) Create(_ context.Context, token *model.RefreshToken) error {
	stored := *token
	f.rows[token.Token] = &stored
	return nil
}

func (f *fakeRefreshRepo) GetByToken(_ context.Context, token string) (*model.RefreshToken, error) {
	row, ok := f.rows[token]
	if !ok {
		return nil, apperror.NotFound("refresh token", "given")
	}
	result := *row
	return &result, nil
}

func (f *fakeRefreshRepo) Revoke(_ context.Context, token string) (bool, error) {
	row, ok := f.rows[token]
	if !ok {
		return false, nil
	}
	row.Revoked = true
	return true, nil
}

// =========================================================================
// CONSTRUCTION HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", 0, 0)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// newTestIdentityService wires an IdentityService with fakes.
// Bcrypt cost 4 keeps each hash in the microsecond range.
func newTestIdentityService(t *testing.T) (*IdentityService, *fakeUserRepo, *fakeSocialRepo) {
	t.Helper()
	users := newFakeUserRepo()
	socials := newFakeSocialRepo()
	svc := NewIdentityService(users, socials, auth.NewPasswordServiceForTest(4), testLogger())
	return svc, users, socials
}

func newTestSessionService(t *testing.T, rotate bool) (*SessionService, *fakeRefreshRepo, *auth.TokenService) {
	t.Helper()
	repo := newFakeRefreshRepo()
	tokens := newTestTokens(t)
	svc := NewSessionService(tokens, repo, rotate, testLogger())
	return svc, repo, tokens
}
