package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sequence-Game/auth-module/internal/apperror"
	"github.com/Sequence-Game/auth-module/internal/auth"
	"github.com/Sequence-Game/auth-module/internal/model"
	"github.com/Sequence-Game/auth-module/internal/repository"
)

// Expected refresh failures. All map to 401 at the boundary; the distinct
// sentinels exist so tests and logs can tell the cases apart.
var (
	// ErrWrongTokenType — the presented token is a valid JWT but not a
	// refresh token (its "type" claim is missing or wrong).
	ErrWrongTokenType = apperror.Unauthorized("not a refresh token")

	// ErrTokenNotRecognized — the token decodes fine but no store row
	// matches it; it was never issued by this server (or by this database).
	ErrTokenNotRecognized = apperror.Unauthorized("refresh token not recognized")

	// ErrTokenExpiredOrRevoked — the store row exists but is revoked or past
	// its expires_at.
	ErrTokenExpiredOrRevoked = apperror.Unauthorized("refresh token expired or revoked")
)

// TokenPair bundles the two tokens returned by login-style operations.
// RefreshToken is empty on refresh responses unless rotation is enabled.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SessionService issues, refreshes and revokes token pairs.
//
// REFRESH TOKEN ROTATION:
// By default a refresh token is NOT rotated on use — the same token stays
// valid until its own expiry or an explicit logout. That keeps the refresh
// flow simple, at the cost of a wider replay window if a refresh token
// leaks. For stricter deployments, rotate=true revokes the presented token
// on every refresh and returns a fresh one in its place.
type SessionService struct {
	tokens        *auth.TokenService
	refreshTokens repository.RefreshTokenRepository
	rotate        bool
	logger        *slog.Logger
}

// NewSessionService creates a SessionService. rotate selects refresh-token
// rotation (see the type comment).
func NewSessionService(
	tokens *auth.TokenService,
	refreshTokens repository.RefreshTokenRepository,
	rotate bool,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		tokens:        tokens,
		refreshTokens: refreshTokens,
		rotate:        rotate,
		logger:        logger,
	}
}

// IssueTokens generates a fresh access/refresh pair for userID and persists
// the refresh token as active. Every successful register, login and social
// login lands here; each call adds one refresh_tokens row.
func (s *SessionService) IssueTokens(ctx context.Context, userID string) (*TokenPair, error) {
	access, err := s.tokens.GenerateAccess(userID)
	if err != nil {
		return nil, fmt.Errorf("service/session: generating access token: %w", err)
	}

	refresh, err := s.tokens.GenerateRefresh(userID)
	if err != nil {
		return nil, fmt.Errorf("service/session: generating refresh token: %w", err)
	}

	row := &model.RefreshToken{
		Token:     refresh,
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(s.tokens.RefreshTTL()),
	}
	if err := s.refreshTokens.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("service/session: persisting refresh token: %w", err)
	}

	s.logger.Info("tokens issued", slog.String("userID", userID))

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// RefreshAccessToken exchanges a refresh token for a new access token.
//
// Validation runs in this order, failing at the first miss:
//  1. codec: signature and exp claim (ErrTokenExpired / ErrTokenInvalid)
//  2. type claim must be "refresh"        (ErrWrongTokenType)
//  3. store row must exist, exact match   (ErrTokenNotRecognized)
//  4. row not revoked, not past expires_at (ErrTokenExpiredOrRevoked)
//
// Step 4 is authoritative and independent of step 1: an administrator can
// expire a row early, and a token whose signed exp claim is still in the
// future must not pass on the claim alone.
//
// Without rotation the presented refresh token stays usable afterwards; with
// rotation it is revoked and the returned pair carries a replacement.
func (s *SessionService) RefreshAccessToken(ctx context.Context, refreshStr string) (*TokenPair, error) {
	userID, tokenType, err := s.tokens.Decode(refreshStr)
	if err != nil {
		return nil, err
	}
	if tokenType != auth.TokenTypeRefresh {
		return nil, ErrWrongTokenType
	}

	row, err := s.refreshTokens.GetByToken(ctx, refreshStr)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrTokenNotRecognized
		}
		return nil, fmt.Errorf("service/session: looking up refresh token: %w", err)
	}

	if row.Revoked || row.Expired(time.Now().UTC()) {
		return nil, ErrTokenExpiredOrRevoked
	}

	access, err := s.tokens.GenerateAccess(userID)
	if err != nil {
		return nil, fmt.Errorf("service/session: generating access token: %w", err)
	}

	pair := &TokenPair{AccessToken: access}

	if s.rotate {
		if _, err := s.refreshTokens.Revoke(ctx, refreshStr); err != nil {
			return nil, fmt.Errorf("service/session: revoking rotated token: %w", err)
		}

		replacement, err := s.tokens.GenerateRefresh(userID)
		if err != nil {
			return nil, fmt.Errorf("service/session: generating replacement refresh token: %w", err)
		}
		if err := s.refreshTokens.Create(ctx, &model.RefreshToken{
			Token:     replacement,
			UserID:    userID,
			ExpiresAt: time.Now().UTC().Add(s.tokens.RefreshTTL()),
		}); err != nil {
			return nil, fmt.Errorf("service/session: persisting replacement refresh token: %w", err)
		}
		pair.RefreshToken = replacement

		s.logger.Debug("refresh token rotated", slog.String("userID", userID))
	}

	return pair, nil
}

// Logout revokes the given refresh token. Unknown tokens are a successful
// no-op — logging out twice, or with a token from a wiped database, must not
// error. The matching access token stays valid until its own (short) expiry;
// revocation lists for access tokens are out of scope.
func (s *SessionService) Logout(ctx context.Context, refreshStr string) error {
	found, err := s.refreshTokens.Revoke(ctx, refreshStr)
	if err != nil {
		return fmt.Errorf("service/session: revoking refresh token: %w", err)
	}

	if found {
		s.logger.Info("refresh token revoked on logout")
	} else {
		s.logger.Debug("logout for unknown refresh token (no-op)")
	}

	return nil
}
