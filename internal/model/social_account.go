package model

// SocialAccount links one external identity-provider account to one local User.
//
// Two invariants govern this table, and they are enforced in different places:
//
//  1. (provider, external_id) is globally unique — one Google account maps to
//     at most one local user. This is a UNIQUE constraint in the DB, so two
//     concurrent link attempts for the same external account cannot both
//     succeed.
//  2. A user has at most one account per provider. This is checked at link
//     time by the identity service, not by a storage constraint.
//
// Rows are created when a social login reconciles and are never mutated or
// deleted afterwards.
type SocialAccount struct {
	ID         string `json:"id"         db:"id"`
	UserID     string `json:"userId"     db:"user_id"`
	Provider   string `json:"provider"   db:"provider"`    // e.g. "google"
	ExternalID string `json:"externalId" db:"external_id"` // provider's stable user ID ("sub")
}
