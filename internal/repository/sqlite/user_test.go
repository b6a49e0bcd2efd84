package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sequence-Game/auth-module/internal/apperror"
	"github.com/Sequence-Game/auth-module/internal/model"
)

// newTestDB returns a DB backed by an in-memory SQLite database.
// ":memory:" is fast, isolated per test, and destroyed when the connection
// closes. t.Cleanup closes it when the test (or subtest) finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, users *UserStore, email string) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "$2a$04$fakehashfortestingonly",
		IsActive:     true,
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestUserCreate(t *testing.T) {
	users := newTestDB(t).Users()

	user := &model.User{
		Email:        "test@example.com",
		PasswordHash: "$2a$04$somehash",
		IsActive:     true,
	}

	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Create fills ID and CreatedAt in place
	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create() did not set user.CreatedAt")
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	users := newTestDB(t).Users()

	createTestUser(t, users, "dup@example.com")

	duplicate := &model.User{
		Email:        "dup@example.com",
		PasswordHash: "$2a$04$otherhash",
		IsActive:     true,
	}
	err := users.Create(context.Background(), duplicate)
	if err == nil {
		t.Fatal("Create() should have failed for a duplicate email")
	}
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() duplicate email error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestUserGetByID(t *testing.T) {
	users := newTestDB(t).Users()
	created := createTestUser(t, users, "byid@example.com")

	got, err := users.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Email != "byid@example.com" {
		t.Errorf("GetByID() email = %q, want %q", got.Email, "byid@example.com")
	}
	if !got.IsActive {
		t.Error("GetByID() IsActive = false, want true")
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	users := newTestDB(t).Users()

	_, err := users.GetByID(context.Background(), "no-such-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() unknown id error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	users := newTestDB(t).Users()
	created := createTestUser(t, users, "byemail@example.com")

	got, err := users.GetByEmail(context.Background(), "byemail@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("GetByEmail() id = %q, want %q", got.ID, created.ID)
	}
	if got.PasswordHash != created.PasswordHash {
		t.Error("GetByEmail() did not return the stored password hash")
	}
}

func TestUserGetByEmail_NotFound(t *testing.T) {
	users := newTestDB(t).Users()

	_, err := users.GetByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail() unknown email error = %v, want ErrNotFound", err)
	}
}

func TestUserCreatedAt_IsUTC(t *testing.T) {
	users := newTestDB(t).Users()
	created := createTestUser(t, users, "utc@example.com")

	if created.CreatedAt.After(time.Now().UTC().Add(time.Minute)) {
		t.Errorf("CreatedAt = %v, suspiciously far in the future", created.CreatedAt)
	}
}
