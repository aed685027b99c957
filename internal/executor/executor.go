// Package executor plays matches between two submissions in an isolated
// environment.
//
// The engine never runs student code in-process. An Executor takes both
// players' files plus a board's opening trace, plays a full match (two
// games, each side starting once), and reports the winner and the final
// move traces. The only implementation lives in the docker subpackage.
package executor

import (
	"context"
	"time"
)

// Submission is one player's code as fetched from the git-polling service:
// relative file path → file contents.
type Submission struct {
	Username string
	Files    map[string]string
}

// MatchRequest asks for a full match on one board.
type MatchRequest struct {
	// StartTrace is the board's opening move sequence. Both games of the
	// match start from it.
	StartTrace string
	PlayerOne  Submission
	PlayerTwo  Submission
}

// MatchResult is the outcome of a full match.
//
// Winner is relative to player one: 1 means player one won the match,
// -1 player two, 0 a draw. The two traces record how each game unfolded,
// one per starting side.
type MatchResult struct {
	Winner        int
	TraceP1Starts string
	TraceP2Starts string
	Duration      time.Duration
}

// Executor plays a match between two untrusted submissions.
type Executor interface {
	Play(ctx context.Context, req MatchRequest) (*MatchResult, error)
}
