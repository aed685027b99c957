package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/code-battles/internal/apperror"
	"github.com/sakif/code-battles/internal/model"
)

// newTestDB creates a fresh in-memory database for a test.
// Each test gets its own DB, so tests can't interfere with each other.
// t.Cleanup ensures the connection is closed even if the test fails.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestPlayer is a test helper that creates a player and fails the test
// if it errors.
func createTestPlayer(t *testing.T, db *DB, username, screenName string) *model.Player {
	t.Helper()
	player, err := db.CreatePlayer(context.Background(), username, screenName)
	if err != nil {
		t.Fatalf("failed to create test player %q: %v", username, err)
	}
	return player
}

// enrollTestPlayer flips a player to enrolled with the given fingerprint.
func enrollTestPlayer(t *testing.T, db *DB, username, commit string) {
	t.Helper()
	if err := db.SetEnrollment(context.Background(), username, commit, "submitted"); err != nil {
		t.Fatalf("failed to enroll test player %q: %v", username, err)
	}
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreatePlayer(t *testing.T) {
	db := newTestDB(t)

	player := createTestPlayer(t, db, "alice", "AAAAAA")

	if player.ID == 0 {
		t.Error("CreatePlayer() did not set player.ID")
	}
	if player.Username != "alice" {
		t.Errorf("Username = %q, want %q", player.Username, "alice")
	}
	if player.ScreenName != "AAAAAA" {
		t.Errorf("ScreenName = %q, want %q", player.ScreenName, "AAAAAA")
	}
	if player.Enrolled() {
		t.Error("a freshly created player must not be enrolled")
	}
	if player.CreatedAt.IsZero() {
		t.Error("CreatePlayer() did not set CreatedAt")
	}
}

func TestCreatePlayer_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	createTestPlayer(t, db, "alice", "AAAAAA")

	_, err := db.CreatePlayer(context.Background(), "alice", "BBBBBB")
	if err == nil {
		t.Fatal("CreatePlayer() should fail for a duplicate username")
	}
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestCreatePlayer_DuplicateScreenName(t *testing.T) {
	db := newTestDB(t)
	createTestPlayer(t, db, "alice", "SAMENM")

	// A screen-name collision is what the service's retry loop keys on,
	// so it must surface as ErrConflict, not a raw sqlite error.
	_, err := db.CreatePlayer(context.Background(), "bob", "SAMENM")
	if err == nil {
		t.Fatal("CreatePlayer() should fail for a duplicate screen name")
	}
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestGetPlayerByUsername(t *testing.T) {
	db := newTestDB(t)
	created := createTestPlayer(t, db, "alice", "AAAAAA")

	got, err := db.GetPlayerByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetPlayerByUsername() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %d, want %d", got.ID, created.ID)
	}
}

func TestGetPlayerByUsername_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetPlayerByUsername(context.Background(), "nobody")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGetPlayerByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetPlayerByID(context.Background(), 42)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// SCREEN NAME TESTS
// =========================================================================

func TestUpdateScreenName(t *testing.T) {
	db := newTestDB(t)
	createTestPlayer(t, db, "alice", "AAAAAA")

	if err := db.UpdateScreenName(context.Background(), "alice", "NEWONE"); err != nil {
		t.Fatalf("UpdateScreenName() error = %v", err)
	}

	got, err := db.GetPlayerByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetPlayerByUsername() error = %v", err)
	}
	if got.ScreenName != "NEWONE" {
		t.Errorf("ScreenName = %q, want %q", got.ScreenName, "NEWONE")
	}
}

func TestUpdateScreenName_Taken(t *testing.T) {
	db := newTestDB(t)
	createTestPlayer(t, db, "alice", "AAAAAA")
	createTestPlayer(t, db, "bob", "BBBBBB")

	err := db.UpdateScreenName(context.Background(), "bob", "AAAAAA")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestUpdateScreenName_UnknownPlayer(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateScreenName(context.Background(), "nobody", "CCCCCC")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// ENROLLMENT TESTS
// =========================================================================

func TestSetEnrollment(t *testing.T) {
	db := newTestDB(t)
	createTestPlayer(t, db, "alice", "AAAAAA")

	enrollTestPlayer(t, db, "alice", "abc123")

	got, err := db.GetPlayerByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetPlayerByUsername() error = %v", err)
	}
	if got.EnrolledCommit != "abc123" {
		t.Errorf("EnrolledCommit = %q, want %q", got.EnrolledCommit, "abc123")
	}
	if got.CommitComment != "submitted" {
		t.Errorf("CommitComment = %q, want %q", got.CommitComment, "submitted")
	}
	if !got.Enrolled() {
		t.Error("Enrolled() should be true after SetEnrollment")
	}
}

func TestSetEnrollment_Overwrites(t *testing.T) {
	db := newTestDB(t)
	createTestPlayer(t, db, "alice", "AAAAAA")
	enrollTestPlayer(t, db, "alice", "first")

	enrollTestPlayer(t, db, "alice", "second")

	got, _ := db.GetPlayerByUsername(context.Background(), "alice")
	if got.EnrolledCommit != "second" {
		t.Errorf("EnrolledCommit = %q, want %q", got.EnrolledCommit, "second")
	}
}

func TestListEnrolledPlayers(t *testing.T) {
	db := newTestDB(t)
	createTestPlayer(t, db, "alice", "AAAAAA")
	createTestPlayer(t, db, "bob", "BBBBBB")
	createTestPlayer(t, db, "carol", "CCCCCC")

	enrollTestPlayer(t, db, "alice", "a1")
	enrollTestPlayer(t, db, "carol", "c1")

	enrolled, err := db.ListEnrolledPlayers(context.Background())
	if err != nil {
		t.Fatalf("ListEnrolledPlayers() error = %v", err)
	}
	if len(enrolled) != 2 {
		t.Fatalf("len(enrolled) = %d, want 2", len(enrolled))
	}
	// id order: alice before carol, bob absent
	if enrolled[0].Username != "alice" || enrolled[1].Username != "carol" {
		t.Errorf("enrolled = [%s, %s], want [alice, carol]",
			enrolled[0].Username, enrolled[1].Username)
	}
}
