// Package repository defines the storage interfaces the engine is programmed
// against. The sqlite subpackage is the only implementation; services receive
// these interfaces so tests can substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/code-battles/internal/model"
)

// PlayerRepository owns the players table.
type PlayerRepository interface {
	// CreatePlayer inserts a new player with the given username and screen
	// name. Returns apperror.ErrConflict if the screen name is already held
	// by another player (the caller regenerates and retries).
	CreatePlayer(ctx context.Context, username, screenName string) (*model.Player, error)
	GetPlayerByUsername(ctx context.Context, username string) (*model.Player, error)
	GetPlayerByID(ctx context.Context, id int64) (*model.Player, error)
	// ListEnrolledPlayers returns every player with a non-null enrolled
	// commit, in id order.
	ListEnrolledPlayers(ctx context.Context) ([]model.Player, error)
	// UpdateScreenName overwrites the player's screen name. Returns
	// apperror.ErrConflict if another player already holds newName.
	UpdateScreenName(ctx context.Context, username, newName string) error
	// SetEnrollment unconditionally overwrites the enrolled commit and its
	// comment. Gating has already happened by the time this is called.
	SetEnrollment(ctx context.Context, username, commit, comment string) error
}

// BoardRepository owns the static board catalog.
type BoardRepository interface {
	ListBoards(ctx context.Context) ([]model.Board, error)
	GetBoard(ctx context.Context, id int64) (*model.Board, error)
}

// MatchupRepository owns the matchups table. Matchups are insert-only; the
// "most recent per pair" rule is resolved by LatestMatchupsForPlayer rather
// than by updating or deleting superseded rows.
type MatchupRepository interface {
	// CreateMatchup inserts a matchup. playerOne must be the smaller id;
	// violating the canonical ordering returns apperror.ErrInvariant.
	CreateMatchup(ctx context.Context, m *model.Matchup) error
	GetMatchupByID(ctx context.Context, id int64) (*model.Matchup, error)
	// ListMatchupsForPlayer returns every matchup involving the player,
	// superseded rows included, in id order.
	ListMatchupsForPlayer(ctx context.Context, playerID int64) ([]model.Matchup, error)
	ListAllMatchups(ctx context.Context) ([]model.Matchup, error)
	// LatestMatchupsForPlayer returns, for each opponent the player has ever
	// been paired with, only the matchup with the highest id.
	LatestMatchupsForPlayer(ctx context.Context, playerID int64) ([]model.Matchup, error)
	// ListUpcomingMatchupsForPlayer returns the player's matchups that still
	// have at least one queued or in-progress match.
	ListUpcomingMatchupsForPlayer(ctx context.Context, playerID int64) ([]model.Matchup, error)
	// NextQueuedMatchup returns the oldest matchup that still has a queued
	// match, or apperror.ErrNotFound when the whole ladder is drained.
	NextQueuedMatchup(ctx context.Context) (*model.Matchup, error)
}

// MatchRepository owns the matches table and the state machine transitions.
type MatchRepository interface {
	CreateMatch(ctx context.Context, m *model.Match) error
	GetMatchByID(ctx context.Context, id int64) (*model.Match, error)
	ListMatchesForMatchup(ctx context.Context, matchupID int64) ([]model.Match, error)
	// ClaimNextMatch atomically moves the oldest queued match of the matchup
	// to in-progress and returns it. Two concurrent callers never receive
	// the same match. Returns apperror.ErrNotFound when nothing is queued.
	ClaimNextMatch(ctx context.Context, matchupID int64) (*model.Match, error)
	// RecordMatchResult transitions a non-terminal match to the given
	// terminal outcome and stores both end traces. A match that is already
	// terminal returns apperror.ErrInvariant — results are never overwritten.
	RecordMatchResult(ctx context.Context, matchID int64, outcome model.MatchStatus, traceP1Starts, traceP2Starts string) error
	// CancelMatches moves every queued or in-progress match in the given
	// matchups to cancelled, leaving terminal matches untouched. Returns the
	// number of matches cancelled.
	CancelMatches(ctx context.Context, matchupIDs []int64) (int64, error)
}

// Tx is the set of repositories bound to a single transaction.
type Tx interface {
	PlayerRepository
	BoardRepository
	MatchupRepository
	MatchRepository
}

// Store is the injected store handle. Outside a transaction it behaves like
// Tx with auto-commit semantics; WithTx scopes a function to one transaction
// that fully applies or fully rolls back — the cascade and the matchup batch
// creation depend on this.
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
