package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/code-battles/internal/apperror"
	"github.com/sakif/code-battles/internal/gitpoll"
	"github.com/sakif/code-battles/internal/model"
	"github.com/sakif/code-battles/internal/repository"
)

// SubmissionSource supplies a player's latest relevant submission. The
// production implementation is the gitpoll client; tests substitute a stub.
type SubmissionSource interface {
	LatestSubmission(ctx context.Context, username string) (gitpoll.Submission, error)
}

// LadderService is the tournament engine: matchup generation, the match
// state machine, record aggregation, and the re-enrollment cascade.
type LadderService struct {
	store  repository.Store
	source SubmissionSource
	logger *slog.Logger

	// enrollDeadline, when non-zero, closes enrollment for non-staff after
	// the given instant. Staff can always enroll (used for demos and for
	// re-running the ladder after the course ends).
	enrollDeadline time.Time
}

// NewLadderService creates a LadderService. deadline may be the zero time to
// leave enrollment open indefinitely.
func NewLadderService(store repository.Store, source SubmissionSource, deadline time.Time, logger *slog.Logger) *LadderService {
	return &LadderService{
		store:          store,
		source:         source,
		logger:         logger,
		enrollDeadline: deadline,
	}
}

// EnrollmentResult is what a successful enrollment reports back.
type EnrollmentResult struct {
	EnrolledCommit string `json:"enrolled_commit"`
	CommitComment  string `json:"commit_comment"`
}

// Enroll runs the full enrollment sequence for a player: gate on the
// git-polling layer's report, then — only if there is genuinely something new
// to enroll — run the re-enrollment cascade in one transaction.
//
// Typed rejections, in gate order:
//   - ErrForbidden — enrollment deadline has passed (non-staff only)
//   - ErrNotFound  — no commits at all, or no submission files in the
//     assignment subtree
//   - ErrNoChange  — nothing new since the last enrollment (two distinct
//     messages: no pushes at all vs. pushes that didn't touch the submission)
func (s *LadderService) Enroll(ctx context.Context, username string, staff bool) (*EnrollmentResult, error) {
	player, err := s.store.GetPlayerByUsername(ctx, normalizeUsername(username))
	if err != nil {
		return nil, err
	}

	if !staff && !s.enrollDeadline.IsZero() && time.Now().After(s.enrollDeadline) {
		return nil, apperror.Forbidden("the deadline to enroll has passed")
	}

	sub, err := s.source.LatestSubmission(ctx, player.Username)
	if err != nil {
		s.logger.Error("enrollment: polling layer failed",
			slog.String("username", player.Username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("fetching latest submission for %q: %w", player.Username, err)
	}

	// Gating order matters: "no commits" before "no relevant commits" before
	// "nothing new". Each produces a distinct caller-visible reason.
	if sub.HeadFingerprint == "" {
		return nil, &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Message: "you haven't made any commits to your repository",
		}
	}
	if sub.Fingerprint == "" {
		return nil, &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Message: "no submission files found in your repository",
		}
	}
	if player.EnrolledCommit == sub.HeadFingerprint {
		return nil, apperror.NoChange("you haven't pushed any commits since your last enrollment")
	}
	if player.EnrolledCommit == sub.Fingerprint {
		return nil, apperror.NoChange("none of your commits since your last enrollment have changed your submission")
	}

	if err := s.Reenroll(ctx, player, sub.Fingerprint, sub.Message); err != nil {
		return nil, err
	}

	return &EnrollmentResult{
		EnrolledCommit: sub.Fingerprint,
		CommitComment:  sub.Message,
	}, nil
}

// Reenroll is the cascade: cancel the player's outstanding matches, record
// the new fingerprint, and regenerate matchups against every currently
// enrolled opponent.
//
// ONE TRANSACTION:
// Partial application would be the worst of both worlds — a player with
// cancelled matches and no fresh ones, or fresh matchups racing their own
// stale ones. The whole sequence commits or rolls back together. Cascades
// for two different players don't overlap (their cancel sets are disjoint,
// and the opponent scan reads inside the same transaction), so no extra
// coordination is needed.
func (s *LadderService) Reenroll(ctx context.Context, player *model.Player, commit, comment string) error {
	var cancelled, created int64

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		upcoming, err := tx.ListUpcomingMatchupsForPlayer(ctx, player.ID)
		if err != nil {
			return err
		}

		ids := make([]int64, len(upcoming))
		for i, m := range upcoming {
			ids[i] = m.ID
		}
		cancelled, err = tx.CancelMatches(ctx, ids)
		if err != nil {
			return err
		}

		if err := tx.SetEnrollment(ctx, player.Username, commit, comment); err != nil {
			return err
		}

		// Regenerate against the commit we just enrolled, not whatever the
		// caller's possibly-stale player copy says.
		enrolled := *player
		enrolled.EnrolledCommit = commit
		enrolled.CommitComment = comment

		created, err = s.generateMatchups(ctx, tx, &enrolled)
		return err
	})
	if err != nil {
		return fmt.Errorf("re-enrolling %q: %w", player.Username, err)
	}

	s.logger.Info("re-enrollment cascade complete",
		slog.String("username", player.Username),
		slog.String("commit", commit),
		slog.Int64("matchesCancelled", cancelled),
		slog.Int64("matchupsCreated", created),
	)
	return nil
}

// CreateMatchupsFor generates fresh matchups for the player against every
// other enrolled participant, one match per board each, as a single atomic
// batch. This always inserts brand-new matchups — duplicates for a pair are
// expected, and supersession is resolved at read time by latest-per-pair.
func (s *LadderService) CreateMatchupsFor(ctx context.Context, playerID int64) error {
	return s.store.WithTx(ctx, func(tx repository.Tx) error {
		player, err := tx.GetPlayerByID(ctx, playerID)
		if err != nil {
			return err
		}
		_, err = s.generateMatchups(ctx, tx, player)
		return err
	})
}

// generateMatchups is the matchup generator proper, always run inside the
// caller's transaction. An unenrolled player generates nothing.
func (s *LadderService) generateMatchups(ctx context.Context, tx repository.Tx, player *model.Player) (int64, error) {
	if !player.Enrolled() {
		return 0, nil
	}

	opponents, err := tx.ListEnrolledPlayers(ctx)
	if err != nil {
		return 0, err
	}
	boards, err := tx.ListBoards(ctx)
	if err != nil {
		return 0, err
	}

	var created int64
	for _, opponent := range opponents {
		if opponent.ID == player.ID {
			continue
		}

		// Canonical ordering: the smaller id is always player one, and each
		// side's commit travels with its seat.
		matchup := &model.Matchup{}
		if player.ID < opponent.ID {
			matchup.PlayerOneID = player.ID
			matchup.PlayerTwoID = opponent.ID
			matchup.PlayerOneCommit = player.EnrolledCommit
			matchup.PlayerTwoCommit = opponent.EnrolledCommit
		} else {
			matchup.PlayerOneID = opponent.ID
			matchup.PlayerTwoID = player.ID
			matchup.PlayerOneCommit = opponent.EnrolledCommit
			matchup.PlayerTwoCommit = player.EnrolledCommit
		}

		if err := tx.CreateMatchup(ctx, matchup); err != nil {
			return 0, err
		}
		for _, board := range boards {
			match := &model.Match{BoardID: board.ID, MatchupID: matchup.ID}
			if err := tx.CreateMatch(ctx, match); err != nil {
				return 0, err
			}
		}
		created++
	}
	return created, nil
}

// RunnerPlayer is one side of a matchup as handed to the execution runner.
type RunnerPlayer struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Commit   string `json:"commit"`
}

// RunnerMatchup is the runner's unit of work: the oldest matchup that still
// has queued matches, with both submissions identified.
type RunnerMatchup struct {
	MatchupID int64        `json:"matchup_id"`
	PlayerOne RunnerPlayer `json:"player_one"`
	PlayerTwo RunnerPlayer `json:"player_two"`
}

// NextMatchupForExecution returns the next matchup the runner should work on,
// or apperror.ErrNotFound when the ladder is drained.
func (s *LadderService) NextMatchupForExecution(ctx context.Context) (*RunnerMatchup, error) {
	matchup, err := s.store.NextQueuedMatchup(ctx)
	if err != nil {
		return nil, err
	}

	p1, err := s.store.GetPlayerByID(ctx, matchup.PlayerOneID)
	if err != nil {
		return nil, err
	}
	p2, err := s.store.GetPlayerByID(ctx, matchup.PlayerTwoID)
	if err != nil {
		return nil, err
	}

	return &RunnerMatchup{
		MatchupID: matchup.ID,
		PlayerOne: RunnerPlayer{ID: p1.ID, Username: p1.Username, Commit: matchup.PlayerOneCommit},
		PlayerTwo: RunnerPlayer{ID: p2.ID, Username: p2.Username, Commit: matchup.PlayerTwoCommit},
	}, nil
}

// ClaimedMatch is a match handed to the runner, with the board it starts on.
type ClaimedMatch struct {
	MatchID    int64  `json:"match_id"`
	BoardID    int64  `json:"board_id"`
	StartTrace string `json:"start_trace"`
}

// ClaimNextMatch atomically hands the oldest queued match of the matchup to
// the caller, moving it to in-progress. Concurrent claimers never receive the
// same match; apperror.ErrNotFound means the matchup has no queued matches
// left.
func (s *LadderService) ClaimNextMatch(ctx context.Context, matchupID int64) (*ClaimedMatch, error) {
	match, err := s.store.ClaimNextMatch(ctx, matchupID)
	if err != nil {
		return nil, err
	}

	board, err := s.store.GetBoard(ctx, match.BoardID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("match claimed",
		slog.Int64("matchID", match.ID),
		slog.Int64("matchupID", matchupID),
		slog.Int64("boardID", board.ID),
	)
	return &ClaimedMatch{
		MatchID:    match.ID,
		BoardID:    board.ID,
		StartTrace: board.StartTrace,
	}, nil
}

// SubmitResult finalizes a match with the runner's winner code (1 = player
// one, -1 = player two, 0 = draw) and both end-of-game traces. Trace content
// is stored verbatim; the runner owns game semantics. A result for an
// already-terminal match is an invariant violation — logged loudly, never a
// silent overwrite.
func (s *LadderService) SubmitResult(ctx context.Context, matchID int64, winner int, traceP1Starts, traceP2Starts string) error {
	outcome := model.OutcomeFromWinnerCode(winner)

	if err := s.store.RecordMatchResult(ctx, matchID, outcome, traceP1Starts, traceP2Starts); err != nil {
		if errors.Is(err, apperror.ErrInvariant) {
			s.logger.Error("result submitted for terminal match",
				slog.Int64("matchID", matchID),
				slog.String("outcome", outcome.String()),
				slog.String("error", err.Error()),
			)
		}
		return err
	}

	s.logger.Info("match result recorded",
		slog.Int64("matchID", matchID),
		slog.String("outcome", outcome.String()),
	)
	return nil
}
