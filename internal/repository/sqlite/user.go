package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/Sequence-Game/auth-module/internal/apperror"
	"github.com/Sequence-Game/auth-module/internal/model"
	"github.com/Sequence-Game/auth-module/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore persists User records in the users table.
type UserStore struct {
	conn *sql.DB
}

// Create inserts a new user, generating its ID and CreatedAt in place.
//
// A duplicate email surfaces as apperror.ErrConflict. The UNIQUE constraint
// is what makes concurrent registrations safe: even if two requests pass the
// service-level existence check simultaneously, only one INSERT wins.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.IsActive,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlite: inserting user: %w",
				apperror.Conflict("user", "email already registered"))
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by its internal ID.
// Returns apperror.ErrNotFound if no such user exists.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.get(ctx, `SELECT id, email, password_hash, is_active, created_at
		FROM users WHERE id = ?`, id)
}

// GetByEmail retrieves a user by email — the natural key used by login and
// social reconciliation. Returns apperror.ErrNotFound if absent.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.get(ctx, `SELECT id, email, password_hash, is_active, created_at
		FROM users WHERE email = ?`, email)
}

func (s *UserStore) get(ctx context.Context, query, key string) (*model.User, error) {
	var u model.User

	err := s.conn.QueryRowContext(ctx, query, key).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.IsActive,
		&u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", key, err)
	}

	return &u, nil
}
