package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/Sequence-Game/auth-module/internal/apperror"
	"github.com/Sequence-Game/auth-module/internal/model"
	"github.com/Sequence-Game/auth-module/internal/repository"
)

// compile-time check that *SocialAccountStore implements the interface
var _ repository.SocialAccountRepository = (*SocialAccountStore)(nil)

// SocialAccountStore persists identity-provider links in the
// social_accounts table.
type SocialAccountStore struct {
	conn *sql.DB
}

// Create inserts a new link, generating its ID in place.
//
// The UNIQUE (provider, external_id) constraint surfaces as
// apperror.ErrConflict — two concurrent attempts to claim the same external
// account cannot both succeed.
func (s *SocialAccountStore) Create(ctx context.Context, account *model.SocialAccount) error {
	account.ID = xid.New().String()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO social_accounts (id, user_id, provider, external_id)
		 VALUES (?, ?, ?, ?)`,
		account.ID,
		account.UserID,
		account.Provider,
		account.ExternalID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlite: inserting social account: %w",
				apperror.Conflict("social account", "external account already linked"))
		}
		return fmt.Errorf("sqlite: inserting social account: %w", err)
	}

	return nil
}

// GetByProviderExternalID looks a link up by the provider's stable user ID —
// the global uniqueness lookup. Returns apperror.ErrNotFound if absent.
func (s *SocialAccountStore) GetByProviderExternalID(ctx context.Context, provider, externalID string) (*model.SocialAccount, error) {
	return s.get(ctx,
		`SELECT id, user_id, provider, external_id FROM social_accounts
		 WHERE provider = ? AND external_id = ?`,
		provider, externalID)
}

// GetByUserAndProvider looks a link up per user and provider — the
// one-account-per-provider lookup. Returns apperror.ErrNotFound if absent.
func (s *SocialAccountStore) GetByUserAndProvider(ctx context.Context, userID, provider string) (*model.SocialAccount, error) {
	return s.get(ctx,
		`SELECT id, user_id, provider, external_id FROM social_accounts
		 WHERE user_id = ? AND provider = ?`,
		userID, provider)
}

func (s *SocialAccountStore) get(ctx context.Context, query string, args ...any) (*model.SocialAccount, error) {
	var a model.SocialAccount

	err := s.conn.QueryRowContext(ctx, query, args...).Scan(
		&a.ID,
		&a.UserID,
		&a.Provider,
		&a.ExternalID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("social account", fmt.Sprint(args[0]))
		}
		return nil, fmt.Errorf("sqlite: getting social account: %w", err)
	}

	return &a, nil
}
