package model

import "fmt"

// MatchStatus is the lifecycle state of a single scheduled game.
//
// The numeric codes are part of the wire format — the frontend and the match
// runner have always consumed these values, so they are stable.
//
// Transitions: InQueue → InProgress → {P1Won, P2Won, Draw}, or
// InQueue|InProgress → Cancelled (re-enrollment only, never player-initiated).
// Terminal states never transition again.
type MatchStatus int

const (
	StatusInQueue    MatchStatus = 0
	StatusInProgress MatchStatus = 1
	StatusP1Won      MatchStatus = 2
	StatusP2Won      MatchStatus = 3
	StatusDraw       MatchStatus = 4
	StatusCancelled  MatchStatus = 5
)

// Terminal reports whether the status permits no further transitions.
func (s MatchStatus) Terminal() bool {
	switch s {
	case StatusP1Won, StatusP2Won, StatusDraw, StatusCancelled:
		return true
	}
	return false
}

// Decided reports whether the status is a played-to-completion outcome.
// Cancelled is terminal but not decided — it contributes nothing to records.
func (s MatchStatus) Decided() bool {
	return s == StatusP1Won || s == StatusP2Won || s == StatusDraw
}

func (s MatchStatus) String() string {
	switch s {
	case StatusInQueue:
		return "in_queue"
	case StatusInProgress:
		return "in_progress"
	case StatusP1Won:
		return "p1_won"
	case StatusP2Won:
		return "p2_won"
	case StatusDraw:
		return "draw"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// OutcomeFromWinnerCode maps the runner's winner convention onto a terminal
// status: 1 means player one won, -1 player two, anything else a draw. This
// is the convention the game harness has always reported.
func OutcomeFromWinnerCode(winner int) MatchStatus {
	switch {
	case winner == 1:
		return StatusP1Won
	case winner == -1:
		return StatusP2Won
	default:
		return StatusDraw
	}
}

// Match is one scheduled game within a matchup, tied to one board.
//
// Each match is actually played twice — once with each player moving first —
// so two end traces are stored, one per starting-player assignment. The
// engine stores the traces verbatim; semantic correctness of the played game
// is the runner's responsibility.
type Match struct {
	ID               int64       `json:"id"`
	BoardID          int64       `json:"board_id"`
	MatchupID        int64       `json:"matchup_id"`
	Status           MatchStatus `json:"status"`
	EndTraceP1Starts string      `json:"end_trace_p1_starts"`
	EndTraceP2Starts string      `json:"end_trace_p2_starts"`
}
