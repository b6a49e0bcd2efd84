// JWT token codec.
//
// TOKEN MODEL:
// We issue two kinds of bearer token, both HS256-signed JWTs:
//
//   - access token:  claims {sub, exp, iat, iss, jti}. Short-lived (15 min
//     by default); presented on API calls and verified without a DB lookup.
//   - refresh token: same claims plus {type: "refresh"}. Long-lived (30 days
//     by default); stored server-side and exchanged for new access tokens.
//
// The "type" claim is what stops a client from presenting a refresh token
// where an access token is expected and vice versa — both are otherwise
// structurally identical signed payloads.
//
// The signing secret is loaded once at startup and never rotated within the
// process lifetime; rotation requires a restart.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/Sequence-Game/auth-module/internal/apperror"
)

// TokenTypeRefresh is the value of the "type" claim on refresh tokens.
// Access tokens carry no "type" claim.
const TokenTypeRefresh = "refresh"

const issuer = "sequence-auth"

// Both sentinels are *apperror.AppError values, not plain wrapped errors, so
// the handler layer's errors.As extraction sees them and maps 401 instead of
// falling through to a generic 500.
var (
	// ErrTokenExpired means the token was well-formed and correctly signed
	// but its exp claim has passed.
	ErrTokenExpired = apperror.Unauthorized("token expired")

	// ErrTokenInvalid covers everything else: bad signature, malformed
	// payload, wrong issuer, wrong algorithm.
	ErrTokenInvalid = apperror.Unauthorized("invalid token")
)

// Claims is the JWT payload. RegisteredClaims carries the standard fields
// (Subject, ExpiresAt, IssuedAt, Issuer); TokenType is our one custom claim.
type Claims struct {
	TokenType string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies bearer tokens. It holds the process-wide
// HMAC secret and the two TTLs; all three come from configuration and are
// immutable afterwards.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService creates a TokenService.
//
// The secret should be at least 32 bytes of random data in production
// (e.g. JWT_SECRET=$(openssl rand -hex 32)); we reject anything under 16.
// Zero TTLs fall back to the defaults: 15 minutes access, 30 days refresh.
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// RefreshTTL returns the configured refresh-token lifetime. The session
// service uses it to compute the store row's expires_at.
func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// GenerateAccess creates and signs an access token for the given userID.
func (s *TokenService) GenerateAccess(userID string) (string, error) {
	return s.generate(userID, "", s.accessTTL)
}

// GenerateRefresh creates and signs a refresh token for the given userID.
// The caller is responsible for persisting the returned string.
func (s *TokenService) GenerateRefresh(userID string) (string, error) {
	return s.generate(userID, TokenTypeRefresh, s.refreshTTL)
}

// GenerateWithDuration creates a token with a custom expiry. Used by tests
// to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID, tokenType string, d time.Duration) (string, error) {
	return s.generate(userID, tokenType, d)
}

func (s *TokenService) generate(userID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()

	// jti makes every token unique. iat/exp truncate to whole seconds on
	// the wire, so without it two tokens minted for the same user in the
	// same second would sign to the identical string — and a refresh token
	// is a primary key in the store.
	c := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Decode parses and verifies a token string, returning the userID from the
// "sub" claim and the token type ("" for access tokens, "refresh" for
// refresh tokens).
//
// Verification checks, in order: structural validity and signature, then
// issuer and algorithm, then expiry. Passing jwt.WithValidMethods pins the
// algorithm to HS256 — without it an attacker could attempt an algorithm
// confusion attack with an unsigned "none" token.
func (s *TokenService) Decode(tokenStr string) (userID, tokenType string, err error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", ErrTokenExpired
		}
		return "", "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", "", ErrTokenInvalid
	}

	if c.Subject == "" {
		return "", "", fmt.Errorf("%w: token has no subject", ErrTokenInvalid)
	}

	return c.Subject, c.TokenType, nil
}
