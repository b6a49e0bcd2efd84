package model

import "time"

// RefreshToken records one issued refresh credential.
//
// The signed token string itself is the primary key — lookups during refresh
// and logout are exact string matches. A row moves through three states:
//
//	ACTIVE  — issued, not expired, not revoked
//	EXPIRED — ExpiresAt has passed (time-based, no explicit transition)
//	REVOKED — Revoked set true on logout (explicit, terminal)
//
// There is no way out of EXPIRED or REVOKED. Rows are never deleted: keeping
// them makes logout idempotent (revoking an already-revoked token is a no-op)
// and leaves an audit trail of every credential ever issued.
//
// The store's ExpiresAt is authoritative during refresh, independently of the
// exp claim baked into the signed token. Both checks must pass.
type RefreshToken struct {
	Token     string    `json:"-"         db:"token"` // the signed JWT string, primary key
	UserID    string    `json:"userId"    db:"user_id"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
	Revoked   bool      `json:"revoked"   db:"revoked"`
}

// Expired reports whether the row's own expiry has passed at the given time.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
