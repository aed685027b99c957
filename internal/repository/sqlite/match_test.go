package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sakif/code-battles/internal/apperror"
	"github.com/sakif/code-battles/internal/model"
	"github.com/sakif/code-battles/internal/repository"
)

// newMatchupWithMatches sets up two players, one matchup, and one queued
// match per board — the shape the generator produces.
func newMatchupWithMatches(t *testing.T, db *DB) (*model.Matchup, []model.Board) {
	t.Helper()
	ctx := context.Background()

	alice := createTestPlayer(t, db, "alice", "AAAAAA")
	bob := createTestPlayer(t, db, "bob", "BBBBBB")
	matchup := createTestMatchup(t, db, alice.ID, bob.ID)

	boards, err := db.ListBoards(ctx)
	if err != nil {
		t.Fatalf("ListBoards() error = %v", err)
	}
	for _, b := range boards {
		queueTestMatch(t, db, matchup.ID, b.ID)
	}
	return matchup, boards
}

// =========================================================================
// CLAIM TESTS
// =========================================================================

func TestClaimNextMatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	matchup, boards := newMatchupWithMatches(t, db)

	// Claims come back oldest-first and each exactly once.
	seen := make(map[int64]bool)
	for range boards {
		m, err := db.ClaimNextMatch(ctx, matchup.ID)
		if err != nil {
			t.Fatalf("ClaimNextMatch() error = %v", err)
		}
		if m.Status != model.StatusInProgress {
			t.Errorf("claimed match status = %s, want in-progress", m.Status)
		}
		if seen[m.ID] {
			t.Fatalf("match %d handed out twice", m.ID)
		}
		seen[m.ID] = true
	}

	// Queue is drained now.
	_, err := db.ClaimNextMatch(ctx, matchup.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error after drain = %v, want ErrNotFound", err)
	}
}

func TestClaimNextMatch_Concurrent(t *testing.T) {
	db := newTestDB(t)
	matchup, boards := newMatchupWithMatches(t, db)

	// Many goroutines race to drain the queue. Every queued match must be
	// claimed exactly once across all of them.
	const claimers = 8
	var (
		mu      sync.Mutex
		claimed = make(map[int64]int)
		wg      sync.WaitGroup
	)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				m, err := db.ClaimNextMatch(context.Background(), matchup.ID)
				if err != nil {
					if errors.Is(err, apperror.ErrNotFound) {
						return
					}
					t.Errorf("ClaimNextMatch() error = %v", err)
					return
				}
				mu.Lock()
				claimed[m.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != len(boards) {
		t.Errorf("claimed %d distinct matches, want %d", len(claimed), len(boards))
	}
	for id, n := range claimed {
		if n != 1 {
			t.Errorf("match %d claimed %d times", id, n)
		}
	}
}

// =========================================================================
// RESULT TESTS
// =========================================================================

func TestRecordMatchResult(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	matchup, _ := newMatchupWithMatches(t, db)

	m, err := db.ClaimNextMatch(ctx, matchup.ID)
	if err != nil {
		t.Fatalf("ClaimNextMatch() error = %v", err)
	}

	if err := db.RecordMatchResult(ctx, m.ID, model.StatusP2Won, "trace-a", "trace-b"); err != nil {
		t.Fatalf("RecordMatchResult() error = %v", err)
	}

	got, err := db.GetMatchByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMatchByID() error = %v", err)
	}
	if got.Status != model.StatusP2Won {
		t.Errorf("status = %s, want p2-won", got.Status)
	}
	if got.EndTraceP1Starts != "trace-a" || got.EndTraceP2Starts != "trace-b" {
		t.Errorf("traces = (%q, %q), want (trace-a, trace-b)", got.EndTraceP1Starts, got.EndTraceP2Starts)
	}
}

func TestRecordMatchResult_FromQueue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	matchup, _ := newMatchupWithMatches(t, db)

	matches, _ := db.ListMatchesForMatchup(ctx, matchup.ID)

	// A result for a still-queued match is legal — the runner may report
	// without a separate claim step.
	if err := db.RecordMatchResult(ctx, matches[0].ID, model.StatusDraw, "", ""); err != nil {
		t.Fatalf("RecordMatchResult() from queue error = %v", err)
	}
}

func TestRecordMatchResult_TerminalIsFinal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	matchup, _ := newMatchupWithMatches(t, db)

	m, _ := db.ClaimNextMatch(ctx, matchup.ID)
	if err := db.RecordMatchResult(ctx, m.ID, model.StatusP1Won, "t1", "t2"); err != nil {
		t.Fatalf("first RecordMatchResult() error = %v", err)
	}

	// The second result must be rejected, not overwrite the first.
	err := db.RecordMatchResult(ctx, m.ID, model.StatusP2Won, "x1", "x2")
	if !errors.Is(err, apperror.ErrInvariant) {
		t.Fatalf("second result error = %v, want ErrInvariant", err)
	}

	got, _ := db.GetMatchByID(ctx, m.ID)
	if got.Status != model.StatusP1Won {
		t.Errorf("status = %s, want the original p1-won", got.Status)
	}
	if got.EndTraceP1Starts != "t1" {
		t.Errorf("trace = %q, want the original t1", got.EndTraceP1Starts)
	}
}

func TestRecordMatchResult_NonTerminalOutcome(t *testing.T) {
	db := newTestDB(t)
	matchup, _ := newMatchupWithMatches(t, db)

	m, _ := db.ClaimNextMatch(context.Background(), matchup.ID)

	err := db.RecordMatchResult(context.Background(), m.ID, model.StatusInProgress, "", "")
	if !errors.Is(err, apperror.ErrInvariant) {
		t.Errorf("error = %v, want ErrInvariant for a non-terminal outcome", err)
	}
}

func TestRecordMatchResult_UnknownMatch(t *testing.T) {
	db := newTestDB(t)

	err := db.RecordMatchResult(context.Background(), 999, model.StatusDraw, "", "")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// CANCEL TESTS
// =========================================================================

func TestCancelMatches(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	matchup, boards := newMatchupWithMatches(t, db)

	// One decided, one in-progress, the rest queued.
	first, _ := db.ClaimNextMatch(ctx, matchup.ID)
	if err := db.RecordMatchResult(ctx, first.ID, model.StatusP1Won, "", ""); err != nil {
		t.Fatalf("RecordMatchResult() error = %v", err)
	}
	second, _ := db.ClaimNextMatch(ctx, matchup.ID)

	n, err := db.CancelMatches(ctx, []int64{matchup.ID})
	if err != nil {
		t.Fatalf("CancelMatches() error = %v", err)
	}
	// everything except the decided one
	if want := int64(len(boards) - 1); n != want {
		t.Errorf("cancelled = %d, want %d", n, want)
	}

	// The decided match is untouched; the in-progress one is cancelled.
	decided, _ := db.GetMatchByID(ctx, first.ID)
	if decided.Status != model.StatusP1Won {
		t.Errorf("decided match status = %s, want p1-won", decided.Status)
	}
	inProgress, _ := db.GetMatchByID(ctx, second.ID)
	if inProgress.Status != model.StatusCancelled {
		t.Errorf("in-progress match status = %s, want cancelled", inProgress.Status)
	}
}

func TestCancelMatches_Empty(t *testing.T) {
	db := newTestDB(t)

	n, err := db.CancelMatches(context.Background(), nil)
	if err != nil {
		t.Fatalf("CancelMatches(nil) error = %v", err)
	}
	if n != 0 {
		t.Errorf("cancelled = %d, want 0", n)
	}
}

// =========================================================================
// TRANSACTION TESTS
// =========================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	wantErr := errors.New("boom")
	err := db.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.CreatePlayer(ctx, "ghost", "GGGGGG"); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("WithTx() error = %v, want %v", err, wantErr)
	}

	// the insert must not have survived the rollback
	_, err = db.GetPlayerByUsername(ctx, "ghost")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("player after rollback = %v, want ErrNotFound", err)
	}
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx repository.Tx) error {
		_, err := tx.CreatePlayer(ctx, "kept", "KKKKKK")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	if _, err := db.GetPlayerByUsername(ctx, "kept"); err != nil {
		t.Errorf("player after commit missing: %v", err)
	}
}
