// Package model defines the data structures used throughout the application.
package model

import "time"

// User is the identity anchor: exactly one row per email address.
//
// Email is the natural key used both for password login and for matching a
// social login to an existing account. The UNIQUE constraint on email in the
// DB enforces this — the application-level existence check in the identity
// service is not race-free on its own.
//
// WHY ID string (not int64)?
// We generate our own opaque string IDs (xid) instead of relying on database
// auto-increment. The tokens we sign carry the user ID in the "sub" claim,
// and an opaque ID leaks nothing about registration order or row counts.
//
// PasswordHash is always a bcrypt digest, even for accounts created through
// social login (those get a random placeholder that no one can ever guess —
// see the identity service). It is never serialized to JSON.
type User struct {
	ID           string    `json:"id"       db:"id"`
	Email        string    `json:"email"    db:"email"`
	PasswordHash string    `json:"-"        db:"password_hash"`
	IsActive     bool      `json:"isActive" db:"is_active"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
