// Package service — identity and session business logic.
//
// IdentityService is the business-rules layer for accounts. It sits between
// the HTTP handlers and the repositories/auth utilities:
//
//	AuthHandler (HTTP) → IdentityService (rules) → UserRepository, SocialAccountRepository
//	                   ↘ PasswordService (bcrypt)
//
// It knows nothing about HTTP; the handlers map its errors to status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Sequence-Game/auth-module/internal/apperror"
	"github.com/Sequence-Game/auth-module/internal/auth"
	"github.com/Sequence-Game/auth-module/internal/model"
	"github.com/Sequence-Game/auth-module/internal/repository"
)

// Expected identity failures. All are conflicts: the request names an email
// or social account that is already claimed.
var (
	// ErrEmailAlreadyRegistered — a user with this email already exists.
	ErrEmailAlreadyRegistered = apperror.Conflict("user", "a user with this email already exists")

	// ErrSocialAccountAlreadyLinked — the caller re-links a social account
	// that is already attached to their own profile.
	ErrSocialAccountAlreadyLinked = apperror.Conflict("social account", "already linked to your profile")

	// ErrSocialAccountOwnedByAnother — the social account is linked to a
	// different local user. One external identity maps to at most one user.
	ErrSocialAccountOwnedByAnother = apperror.Conflict("social account", "linked to a different user")

	// ErrProviderAlreadyLinked — this user already has an account for this
	// provider (at most one per provider per user).
	ErrProviderAlreadyLinked = apperror.Conflict("social account", "user already linked this provider")
)

// IdentityService orchestrates registration, password authentication, and
// social-account reconciliation.
type IdentityService struct {
	users     repository.UserRepository
	socials   repository.SocialAccountRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewIdentityService creates an IdentityService with all dependencies
// injected. Wired in server.go.
func NewIdentityService(
	users repository.UserRepository,
	socials repository.SocialAccountRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		users:     users,
		socials:   socials,
		passwords: passwords,
		logger:    logger,
	}
}

// Register creates a new user with a freshly hashed password and returns its
// id. Fails with ErrEmailAlreadyRegistered if the email is taken.
//
// The existence check here gives a clean error message; the users table's
// UNIQUE constraint is what actually guarantees the invariant. If two
// identical registrations race past the check, one INSERT loses and is
// mapped to the same error.
func (s *IdentityService) Register(ctx context.Context, email, password string) (string, error) {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return "", ErrEmailAlreadyRegistered
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return "", fmt.Errorf("service/identity: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return "", fmt.Errorf("service/identity: hashing password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// Lost a race against a concurrent registration for the same email.
			return "", ErrEmailAlreadyRegistered
		}
		return "", fmt.Errorf("service/identity: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))

	return user.ID, nil
}

// Authenticate checks an email/password pair.
//
// A wrong password or unknown email is an expected negative result, not an
// error: it returns ok=false and the caller maps that to an authentication
// failure. The error return is reserved for store failures. The two negative
// paths are deliberately indistinguishable to the caller — leaking "email
// exists but password is wrong" would enable account enumeration.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (userID string, ok bool, err error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("service/identity: fetching user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return "", false, nil
	}

	return user.ID, true, nil
}

// GetUserByID returns the user for the given internal ID. Used by /me after
// the middleware validates the bearer token.
func (s *IdentityService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/identity: user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/identity: fetching user %s: %w", id, err)
	}

	return user, nil
}

// LinkSocialAccount attaches an external identity to a local user, enforcing
// the global invariant: one (provider, external_id) pair links to at most one
// user, ever.
//
// Outcomes:
//   - pair unknown            → link created
//   - pair linked to userID   → ErrSocialAccountAlreadyLinked
//   - pair linked to another  → ErrSocialAccountOwnedByAnother
func (s *IdentityService) LinkSocialAccount(ctx context.Context, userID, provider, externalID string) error {
	existing, err := s.socials.GetByProviderExternalID(ctx, provider, externalID)
	if err == nil {
		if existing.UserID == userID {
			return ErrSocialAccountAlreadyLinked
		}
		return ErrSocialAccountOwnedByAnother
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("service/identity: checking social link: %w", err)
	}

	account := &model.SocialAccount{
		UserID:     userID,
		Provider:   provider,
		ExternalID: externalID,
	}
	if err := s.socials.Create(ctx, account); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// A concurrent request claimed the pair between our check and
			// insert. The UNIQUE constraint held the invariant.
			return ErrSocialAccountOwnedByAnother
		}
		return fmt.Errorf("service/identity: creating social link: %w", err)
	}

	s.logger.Info("social account linked",
		slog.String("userID", userID),
		slog.String("provider", provider),
	)

	return nil
}

// ReconcileSocialLogin merges a verified social identity with the local user
// base and returns the user id to issue tokens for.
//
// Two distinct invariants are enforced on the way:
//
//  1. per user, at most one account per provider — checked here against
//     (user, provider) when the email matches an existing user;
//  2. globally, one (provider, external_id) maps to at most one user —
//     re-validated independently inside LinkSocialAccount.
//
// If no user owns the email, a fresh account is created with a random
// placeholder password that cannot be used to log in (see
// unusablePassword) and the social identity is linked to it.
func (s *IdentityService) ReconcileSocialLogin(ctx context.Context, provider, externalID, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		// Existing account: refuse a second link for the same provider.
		_, linkErr := s.socials.GetByUserAndProvider(ctx, user.ID, provider)
		if linkErr == nil {
			return "", ErrProviderAlreadyLinked
		}
		if !errors.Is(linkErr, apperror.ErrNotFound) {
			return "", fmt.Errorf("service/identity: checking provider link: %w", linkErr)
		}

		if err := s.LinkSocialAccount(ctx, user.ID, provider, externalID); err != nil {
			return "", err
		}
		return user.ID, nil

	case errors.Is(err, apperror.ErrNotFound):
		// First login via this provider and an unknown email: create a
		// social-only account.
		hash, err := s.passwords.Hash(unusablePassword())
		if err != nil {
			return "", fmt.Errorf("service/identity: hashing placeholder password: %w", err)
		}

		newUser := &model.User{
			Email:        email,
			PasswordHash: hash,
			IsActive:     true,
		}
		if err := s.users.Create(ctx, newUser); err != nil {
			return "", fmt.Errorf("service/identity: creating social user: %w", err)
		}

		if err := s.LinkSocialAccount(ctx, newUser.ID, provider, externalID); err != nil {
			return "", err
		}

		s.logger.Info("user created via social login",
			slog.String("userID", newUser.ID),
			slog.String("provider", provider),
		)

		return newUser.ID, nil

	default:
		return "", fmt.Errorf("service/identity: fetching user by email: %w", err)
	}
}

// unusablePassword returns a placeholder password for accounts created via
// social login. Such accounts have no password-login path until the user
// explicitly sets one, so the placeholder only needs to be impossible to
// guess: a v4 UUID carries 122 bits from crypto/rand, and the value is
// bcrypt-hashed like any real password — it is never stored or logged in the
// clear.
func unusablePassword() string {
	return uuid.NewString()
}
