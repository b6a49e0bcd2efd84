// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation of
// the SQLite sources — works everywhere Go works.
//
// The uniqueness rules the rest of the system relies on live here as hard
// constraints: users.email and social_accounts(provider, external_id). The
// identity service performs check-then-insert sequences, and those are only
// race-free because the constraint backs them up — two concurrent identical
// registrations cannot both insert.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool. The typed sub-stores returned by
// Users(), SocialAccounts() and RefreshTokens() implement the repository
// interfaces; keeping them as separate types avoids method-name collisions
// (every store has a Create).
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/auth.db" → file-based database (persistent)
//   - ":memory:"     → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// sql.Open only creates the pool; Ping forces a real connection so a bad
	// path or permissions problem surfaces here, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in progress — needed for
	// a server handling parallel requests.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool. Always defer Close() next to
// New() — it flushes the WAL and releases the file lock.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Users returns the UserRepository implementation backed by this DB.
func (db *DB) Users() *UserStore {
	return &UserStore{conn: db.conn}
}

// SocialAccounts returns the SocialAccountRepository implementation.
func (db *DB) SocialAccounts() *SocialAccountStore {
	return &SocialAccountStore{conn: db.conn}
}

// RefreshTokens returns the RefreshTokenRepository implementation.
func (db *DB) RefreshTokens() *RefreshTokenStore {
	return &RefreshTokenStore{conn: db.conn}
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it idempotent,
// so it is safe to run on every startup.
func (db *DB) migrate() error {
	// email is UNIQUE — the identity anchor invariant.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_active     INTEGER NOT NULL DEFAULT 1,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// (provider, external_id) is UNIQUE — one external identity maps to at
	// most one local user, regardless of concurrency.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS social_accounts (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id),
			provider    TEXT NOT NULL,
			external_id TEXT NOT NULL,
			UNIQUE (provider, external_id)
		);
		CREATE INDEX IF NOT EXISTS idx_social_accounts_user_id
			ON social_accounts(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating social_accounts table: %w", err)
	}

	// The signed token string is the primary key; refresh and logout look
	// rows up by exact match. Rows are never deleted, only flagged revoked.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			token      TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			expires_at DATETIME NOT NULL,
			revoked    INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id
			ON refresh_tokens(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating refresh_tokens table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. modernc.org/sqlite does not export a typed error for this, so we
// match on the stable message prefix SQLite itself produces.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
