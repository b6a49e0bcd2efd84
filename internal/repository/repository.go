// Package repository declares the persistence interfaces consumed by the
// service layer. The sqlite subpackage provides the real implementation;
// tests use in-memory fakes.
package repository

import (
	"context"

	"github.com/Sequence-Game/auth-module/internal/model"
)

// UserRepository persists User records.
//
// GetByEmail and GetByID return apperror.ErrNotFound (wrapped) when no row
// exists — callers distinguish "absent" from real store failures with
// errors.Is.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// SocialAccountRepository persists links between local users and external
// identity-provider accounts.
//
// The two lookups serve two distinct invariants: GetByProviderExternalID
// backs the global "one external account, one local user" rule, while
// GetByUserAndProvider backs the per-user "one account per provider" rule.
type SocialAccountRepository interface {
	Create(ctx context.Context, account *model.SocialAccount) error
	GetByProviderExternalID(ctx context.Context, provider, externalID string) (*model.SocialAccount, error)
	GetByUserAndProvider(ctx context.Context, userID, provider string) (*model.SocialAccount, error)
}

// RefreshTokenRepository persists issued refresh credentials.
//
// Revoke marks the row revoked if it exists and reports whether a row was
// found. Logout treats "not found" as success, so absence is not an error
// here either.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	GetByToken(ctx context.Context, token string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, token string) (bool, error)
}
