package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/sakif/code-battles/internal/apperror"
	"github.com/sakif/code-battles/internal/model"
)

const matchColumns = `id, board_id, matchup_id, status, end_trace_p1_starts, end_trace_p2_starts`

func scanMatch(row interface{ Scan(dest ...any) error }) (*model.Match, error) {
	var m model.Match
	err := row.Scan(
		&m.ID,
		&m.BoardID,
		&m.MatchupID,
		&m.Status,
		&m.EndTraceP1Starts,
		&m.EndTraceP2Starts,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMatch inserts a match and fills in its id. New matches start queued.
func (q *queries) CreateMatch(ctx context.Context, m *model.Match) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO matches (board_id, matchup_id, status) VALUES (?, ?, ?)`,
		m.BoardID, m.MatchupID, model.StatusInQueue,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting match (matchup %d, board %d): %w", m.MatchupID, m.BoardID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new match id: %w", err)
	}
	m.ID = id
	m.Status = model.StatusInQueue
	return nil
}

func (q *queries) GetMatchByID(ctx context.Context, id int64) (*model.Match, error) {
	m, err := scanMatch(q.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("match", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting match %d: %w", id, err)
	}
	return m, nil
}

func (q *queries) ListMatchesForMatchup(ctx context.Context, matchupID int64) ([]model.Match, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE matchup_id = ? ORDER BY id`,
		matchupID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing matches for matchup %d: %w", matchupID, err)
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning match: %w", err)
		}
		matches = append(matches, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating matches: %w", err)
	}
	return matches, nil
}

// ClaimNextMatch hands the oldest queued match of a matchup to the runner.
//
// COMPARE-AND-SET:
// Two runners can race for the same matchup, so the select and the transition
// must not be separable. The UPDATE re-checks status = queued in its WHERE
// clause; if another caller claimed the row between our SELECT and UPDATE,
// zero rows are affected and we simply look for the next queued match. Each
// match id is therefore handed out at most once no matter the interleaving.
func (q *queries) ClaimNextMatch(ctx context.Context, matchupID int64) (*model.Match, error) {
	for {
		m, err := scanMatch(q.db.QueryRowContext(ctx,
			`SELECT `+matchColumns+` FROM matches
			 WHERE matchup_id = ? AND status = ?
			 ORDER BY id LIMIT 1`,
			matchupID, model.StatusInQueue,
		))
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, apperror.NotFound("queued match", strconv.FormatInt(matchupID, 10))
			}
			return nil, fmt.Errorf("sqlite: selecting queued match for matchup %d: %w", matchupID, err)
		}

		res, err := q.db.ExecContext(ctx,
			`UPDATE matches SET status = ? WHERE id = ? AND status = ?`,
			model.StatusInProgress, m.ID, model.StatusInQueue,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: claiming match %d: %w", m.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("sqlite: checking claim of match %d: %w", m.ID, err)
		}
		if affected == 1 {
			m.Status = model.StatusInProgress
			return m, nil
		}
		// lost the race for this row — try the next queued match
	}
}

// RecordMatchResult finalizes a match with a terminal outcome and both end
// traces. The WHERE clause only matches non-terminal rows, so a second call
// on an already-finished match affects zero rows; that case is classified
// below as an invariant violation rather than a silent overwrite.
func (q *queries) RecordMatchResult(ctx context.Context, matchID int64, outcome model.MatchStatus, traceP1Starts, traceP2Starts string) error {
	if !outcome.Decided() {
		return apperror.Invariant(fmt.Sprintf("match %d: %s is not a terminal result", matchID, outcome))
	}

	res, err := q.db.ExecContext(ctx,
		`UPDATE matches
		 SET status = ?, end_trace_p1_starts = ?, end_trace_p2_starts = ?
		 WHERE id = ? AND status IN (?, ?)`,
		outcome, traceP1Starts, traceP2Starts,
		matchID, model.StatusInQueue, model.StatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording result for match %d: %w", matchID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking result update for match %d: %w", matchID, err)
	}
	if affected == 1 {
		return nil
	}

	// Zero rows: either the match doesn't exist or it is already terminal.
	existing, err := q.GetMatchByID(ctx, matchID)
	if err != nil {
		return err
	}
	return apperror.Invariant(fmt.Sprintf(
		"match %d already terminal (%s), refusing transition to %s",
		matchID, existing.Status, outcome))
}

// CancelMatches bulk-transitions every queued or in-progress match in the
// given matchups to cancelled. Terminal matches — already-played results and
// earlier cancellations — are left untouched.
func (q *queries) CancelMatches(ctx context.Context, matchupIDs []int64) (int64, error) {
	if len(matchupIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?, ", len(matchupIDs)-1) + "?"
	args := make([]any, 0, len(matchupIDs)+3)
	args = append(args, model.StatusCancelled)
	for _, id := range matchupIDs {
		args = append(args, id)
	}
	args = append(args, model.StatusInQueue, model.StatusInProgress)

	res, err := q.db.ExecContext(ctx,
		`UPDATE matches SET status = ?
		 WHERE matchup_id IN (`+placeholders+`) AND status IN (?, ?)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: cancelling matches: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting cancelled matches: %w", err)
	}
	return affected, nil
}
