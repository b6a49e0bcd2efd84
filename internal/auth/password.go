// Package auth — password hashing utilities.
//
// WHY BCRYPT?
// bcrypt is deliberately slow, and that slowness is the security feature:
// it makes offline brute-force expensive. It also generates a fresh random
// salt on every call and embeds it in the output, so two users with the same
// password get different hashes and no separate salt column is needed.
//
// NEVER store passwords in plain text or with fast hashes (MD5, SHA-256) —
// those fall to GPU rigs in minutes. bcrypt at cost 12 takes ~250ms:
// negligible for a login, brutal for an attacker.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 is the recommended minimum
// for new applications; tune it so hashing takes ~200-300ms on production
// hardware.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so the cost can be injected in tests —
// cost 4 (the bcrypt minimum) makes each hash take milliseconds instead of
// ~250ms without changing the logic under test.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom (low)
// cost. Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output is self-contained ("$2a$12$<salt><digest>") — store it directly;
// Verify knows how to decode it. Returns an error for plaintexts over
// 72 bytes, which bcrypt would otherwise silently truncate.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// Returns nil on a match, a non-nil error otherwise.
//
// bcrypt.CompareHashAndPassword compares digests in constant time, so
// response timing does not leak how close a guess was.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
