package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Sequence-Game/auth-module/internal/apperror"
	"github.com/Sequence-Game/auth-module/internal/model"
	"github.com/Sequence-Game/auth-module/internal/repository"
)

// compile-time check that *RefreshTokenStore implements the interface
var _ repository.RefreshTokenRepository = (*RefreshTokenStore)(nil)

// RefreshTokenStore persists issued refresh credentials in the
// refresh_tokens table. Rows are inserted on issuance and flagged revoked on
// logout; nothing is ever deleted.
type RefreshTokenStore struct {
	conn *sql.DB
}

// Create inserts the refresh token row. The caller (the session service)
// supplies the token string and expiry; nothing is generated here.
func (s *RefreshTokenStore) Create(ctx context.Context, token *model.RefreshToken) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, user_id, expires_at, revoked)
		 VALUES (?, ?, ?, ?)`,
		token.Token,
		token.UserID,
		token.ExpiresAt,
		token.Revoked,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting refresh token: %w", err)
	}

	return nil
}

// GetByToken retrieves a refresh token row by exact string match.
// Returns apperror.ErrNotFound if the token was never issued by this server.
func (s *RefreshTokenStore) GetByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var t model.RefreshToken

	err := s.conn.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at, revoked FROM refresh_tokens
		 WHERE token = ?`,
		token,
	).Scan(
		&t.Token,
		&t.UserID,
		&t.ExpiresAt,
		&t.Revoked,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			// Don't echo the token string back in the error message.
			return nil, apperror.NotFound("refresh token", "given")
		}
		return nil, fmt.Errorf("sqlite: getting refresh token: %w", err)
	}

	return &t, nil
}

// Revoke sets revoked = true on the row, if it exists. The bool reports
// whether a row was found — logout treats false as a successful no-op.
// Revoking an already-revoked token is equally a no-op at the SQL level.
func (s *RefreshTokenStore) Revoke(ctx context.Context, token string) (bool, error) {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE token = ?`,
		token,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: revoking refresh token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: revoking refresh token: %w", err)
	}

	return affected > 0, nil
}
