package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sequence-Game/auth-module/internal/auth"
	"github.com/Sequence-Game/auth-module/internal/model"
)

// =========================================================================
// IssueTokens TESTS
// =========================================================================

func TestIssueTokens_RefreshTokenRoundTrips(t *testing.T) {
	svc, repo, tokens := newTestSessionService(t, false)

	pair, err := svc.IssueTokens(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	// The refresh token's claims carry the user and the refresh type.
	sub, tokenType, err := tokens.Decode(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
	assert.Equal(t, auth.TokenTypeRefresh, tokenType)

	// And the row was persisted as active.
	row, err := repo.GetByToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", row.UserID)
	assert.False(t, row.Revoked)
	assert.True(t, row.ExpiresAt.After(time.Now()))
}

func TestIssueTokens_EachCallAddsARow(t *testing.T) {
	svc, repo, _ := newTestSessionService(t, false)
	ctx := context.Background()

	p1, err := svc.IssueTokens(ctx, "user-1")
	require.NoError(t, err)
	p2, err := svc.IssueTokens(ctx, "user-1")
	require.NoError(t, err)

	assert.NotEqual(t, p1.RefreshToken, p2.RefreshToken)
	assert.Len(t, repo.rows, 2)
}

// =========================================================================
// RefreshAccessToken TESTS
// =========================================================================

func TestRefreshAccessToken_IssuesNewAccessToken(t *testing.T) {
	svc, _, tokens := newTestSessionService(t, false)
	ctx := context.Background()

	pair, err := svc.IssueTokens(ctx, "user-1")
	require.NoError(t, err)

	got, err := svc.RefreshAccessToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, got.AccessToken)

	sub, tokenType, err := tokens.Decode(got.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
	assert.Empty(t, tokenType, "a refreshed token is an access token, no type claim")

	// Without rotation the response carries no new refresh token...
	assert.Empty(t, got.RefreshToken)

	// ...and the presented one stays usable.
	_, err = svc.RefreshAccessToken(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshAccessToken_RejectsAccessToken(t *testing.T) {
	svc, _, tokens := newTestSessionService(t, false)

	// A valid, unexpired access token — but the wrong type.
	access, err := tokens.GenerateAccess("user-1")
	require.NoError(t, err)

	_, err = svc.RefreshAccessToken(context.Background(), access)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestRefreshAccessToken_UnknownToken(t *testing.T) {
	svc, _, tokens := newTestSessionService(t, false)

	// Correctly signed by us, but never persisted — e.g. issued before a
	// database wipe.
	stray, err := tokens.GenerateRefresh("user-1")
	require.NoError(t, err)

	_, err = svc.RefreshAccessToken(context.Background(), stray)
	assert.ErrorIs(t, err, ErrTokenNotRecognized)
}

func TestRefreshAccessToken_StoreExpiryIsAuthoritative(t *testing.T) {
	svc, repo, _ := newTestSessionService(t, false)
	ctx := context.Background()

	pair, err := svc.IssueTokens(ctx, "user-1")
	require.NoError(t, err)

	// Expire the row while the signed exp claim (30 days out) is still
	// perfectly valid. The store check must win.
	repo.rows[pair.RefreshToken].ExpiresAt = time.Now().UTC().Add(-time.Hour)

	_, err = svc.RefreshAccessToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpiredOrRevoked)
}

func TestRefreshAccessToken_ExpiredClaim(t *testing.T) {
	svc, repo, tokens := newTestSessionService(t, false)
	ctx := context.Background()

	// The opposite case: the row is fine but the signed claim has expired.
	// The codec rejects it before the store is ever consulted.
	expired, err := tokens.GenerateWithDuration("user-1", auth.TokenTypeRefresh, -time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, rowFor(expired, "user-1")))

	_, err = svc.RefreshAccessToken(ctx, expired)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestRefreshAccessToken_GarbageToken(t *testing.T) {
	svc, _, _ := newTestSessionService(t, false)

	_, err := svc.RefreshAccessToken(context.Background(), "this.is.garbage")
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

// =========================================================================
// Logout TESTS
// =========================================================================

func TestLogout_RevokesToken(t *testing.T) {
	svc, _, _ := newTestSessionService(t, false)
	ctx := context.Background()

	pair, err := svc.IssueTokens(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))

	_, err = svc.RefreshAccessToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpiredOrRevoked)
}

func TestLogout_IsIdempotent(t *testing.T) {
	svc, _, _ := newTestSessionService(t, false)
	ctx := context.Background()

	pair, err := svc.IssueTokens(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, svc.Logout(ctx, pair.RefreshToken), "second logout is a no-op, not an error")
}

func TestLogout_UnknownTokenIsNoop(t *testing.T) {
	svc, _, _ := newTestSessionService(t, false)

	assert.NoError(t, svc.Logout(context.Background(), "never-issued"))
}

// =========================================================================
// ROTATION TESTS
// =========================================================================

func TestRefreshAccessToken_WithRotation(t *testing.T) {
	svc, _, _ := newTestSessionService(t, true)
	ctx := context.Background()

	pair, err := svc.IssueTokens(ctx, "user-1")
	require.NoError(t, err)

	got, err := svc.RefreshAccessToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, got.RefreshToken, "rotation returns a replacement refresh token")
	assert.NotEqual(t, pair.RefreshToken, got.RefreshToken)

	// The used token is dead...
	_, err = svc.RefreshAccessToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpiredOrRevoked)

	// ...and the replacement works.
	_, err = svc.RefreshAccessToken(ctx, got.RefreshToken)
	assert.NoError(t, err)
}

// =========================================================================
// MULTI-SESSION LIFECYCLE
// =========================================================================

// Two logins produce two independent refresh tokens; revoking one must not
// touch the other.
func TestLifecycle_TwoSessionsIndependentLogout(t *testing.T) {
	ctx := context.Background()

	users := newFakeUserRepo()
	socials := newFakeSocialRepo()
	refreshRepo := newFakeRefreshRepo()
	tokens := newTestTokens(t)
	identity := NewIdentityService(users, socials, auth.NewPasswordServiceForTest(4), testLogger())
	sessions := NewSessionService(tokens, refreshRepo, false, testLogger())

	// register → first token pair
	userID, err := identity.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	first, err := sessions.IssueTokens(ctx, userID)
	require.NoError(t, err)

	// login again → second, independent pair
	gotID, ok, err := identity.Authenticate(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, userID, gotID)
	second, err := sessions.IssueTokens(ctx, gotID)
	require.NoError(t, err)

	// both refresh tokens work
	_, err = sessions.RefreshAccessToken(ctx, first.RefreshToken)
	require.NoError(t, err)
	_, err = sessions.RefreshAccessToken(ctx, second.RefreshToken)
	require.NoError(t, err)

	// logging out the first session kills only the first token
	require.NoError(t, sessions.Logout(ctx, first.RefreshToken))

	_, err = sessions.RefreshAccessToken(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpiredOrRevoked)

	_, err = sessions.RefreshAccessToken(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

// rowFor builds a refresh token row for direct fake insertion.
func rowFor(token, userID string) *model.RefreshToken {
	return &model.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}
}
