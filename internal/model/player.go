// Package model defines the data structures used throughout the application.
package model

import (
	"encoding/json"
	"time"
)

// Player represents an enrolled (or not-yet-enrolled) tournament participant.
//
// We use GitHub OAuth as the identity provider, so Username is the GitHub
// login, lowercased. It is unique and immutable — it is how the roster, the
// git-polling layer, and the engine all refer to the same person.
//
// WHY ID int64 AND NOT A STRING ID?
// Matchups store their two players in canonical order (the numerically smaller
// id is always player one), which is what makes an unordered pair representable
// without duplication ambiguity. That ordering rule needs integer ids, so the
// player id is the SQLite autoincrement key rather than a generated string.
//
// EnrolledCommit is the empty string until the player's first successful
// enrollment. An unenrolled player exists (they can pick a screen name) but
// generates no matchups and appears in no standings.
type Player struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	ScreenName     string    `json:"screen_name"`
	EnrolledCommit string    `json:"enrolled_commit"` // commit fingerprint, "" if never enrolled
	CommitComment  string    `json:"commit_comment"`  // message of the enrolled commit
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Enrolled reports whether the player has ever successfully enrolled a commit.
func (p *Player) Enrolled() bool {
	return p.EnrolledCommit != ""
}

// Record is a player's overall standing: pair-level wins, losses and draws
// summed across all opponents. It serializes as a [w, l, d] triple, matching
// what the frontend has always consumed.
type Record struct {
	Wins   int
	Losses int
	Draws  int
}

// Score is the value standings are ordered by.
func (r Record) Score() int {
	return r.Wins - r.Losses
}

// MarshalJSON renders the record as the [wins, losses, draws] array.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{r.Wins, r.Losses, r.Draws})
}

// UnmarshalJSON accepts the same [wins, losses, draws] array.
func (r *Record) UnmarshalJSON(data []byte) error {
	var triple [3]int
	if err := json.Unmarshal(data, &triple); err != nil {
		return err
	}
	r.Wins, r.Losses, r.Draws = triple[0], triple[1], triple[2]
	return nil
}
