package model

import "time"

// Matchup is a scheduled pairing of two players' submissions.
//
// CANONICAL ORDERING:
// PlayerOneID is always the numerically smaller of the two player ids. The
// pair (3, 7) and the pair (7, 3) are the same matchup, and storing both
// sides in a fixed order means a single (player_one, player_two) key
// identifies the unordered pair with no duplication ambiguity. A matchup with
// PlayerOneID >= PlayerTwoID is a programming error, never valid data.
//
// The commit columns snapshot each side's enrolled commit at creation time —
// a historical record of which submissions actually played, untouched by
// later re-enrollments.
//
// SUPERSESSION:
// A matchup is never updated. When a player re-enrolls, a brand-new matchup
// is created for the same pair, and only the matchup with the highest id per
// pair counts toward records. Older rows stay in the table for audit.
type Matchup struct {
	ID              int64     `json:"id"`
	PlayerOneID     int64     `json:"player_one_id"`
	PlayerTwoID     int64     `json:"player_two_id"`
	PlayerOneCommit string    `json:"player_one_commit"`
	PlayerTwoCommit string    `json:"player_two_commit"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Involves reports whether the given player is one of the matchup's sides.
func (m *Matchup) Involves(playerID int64) bool {
	return m.PlayerOneID == playerID || m.PlayerTwoID == playerID
}

// Opponent returns the other side of the matchup relative to playerID.
// The caller is responsible for ensuring the matchup involves playerID.
func (m *Matchup) Opponent(playerID int64) int64 {
	if m.PlayerOneID == playerID {
		return m.PlayerTwoID
	}
	return m.PlayerOneID
}
