package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/code-battles/internal/apperror"
	"github.com/sakif/code-battles/internal/model"
)

const matchupColumns = `id, player_one, player_two, player_one_commit, player_two_commit, created_at`

func scanMatchup(row interface{ Scan(dest ...any) error }) (*model.Matchup, error) {
	var m model.Matchup
	err := row.Scan(
		&m.ID,
		&m.PlayerOneID,
		&m.PlayerTwoID,
		&m.PlayerOneCommit,
		&m.PlayerTwoCommit,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (q *queries) scanMatchups(rows *sql.Rows) ([]model.Matchup, error) {
	defer rows.Close()
	var matchups []model.Matchup
	for rows.Next() {
		m, err := scanMatchup(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning matchup: %w", err)
		}
		matchups = append(matchups, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating matchups: %w", err)
	}
	return matchups, nil
}

// CreateMatchup inserts a new matchup and fills in its id and timestamp.
// The canonical ordering is checked here as well as by the schema CHECK —
// a caller passing players out of order is a programming error, and
// surfacing it as ErrInvariant beats a bare constraint failure.
func (q *queries) CreateMatchup(ctx context.Context, m *model.Matchup) error {
	if m.PlayerOneID >= m.PlayerTwoID {
		return apperror.Invariant(fmt.Sprintf(
			"matchup ordering violated: player_one %d >= player_two %d",
			m.PlayerOneID, m.PlayerTwoID))
	}

	m.CreatedAt = time.Now()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO matchups (player_one, player_two, player_one_commit, player_two_commit, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.PlayerOneID, m.PlayerTwoID, m.PlayerOneCommit, m.PlayerTwoCommit, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting matchup (%d vs %d): %w", m.PlayerOneID, m.PlayerTwoID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new matchup id: %w", err)
	}
	m.ID = id
	return nil
}

func (q *queries) GetMatchupByID(ctx context.Context, id int64) (*model.Matchup, error) {
	m, err := scanMatchup(q.db.QueryRowContext(ctx,
		`SELECT `+matchupColumns+` FROM matchups WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("matchup", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting matchup %d: %w", id, err)
	}
	return m, nil
}

// ListMatchupsForPlayer returns every matchup the player is a side of,
// superseded rows included, oldest first.
func (q *queries) ListMatchupsForPlayer(ctx context.Context, playerID int64) ([]model.Matchup, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+matchupColumns+` FROM matchups
		 WHERE player_one = ? OR player_two = ?
		 ORDER BY id`,
		playerID, playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing matchups for player %d: %w", playerID, err)
	}
	return q.scanMatchups(rows)
}

func (q *queries) ListAllMatchups(ctx context.Context) ([]model.Matchup, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+matchupColumns+` FROM matchups ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing matchups: %w", err)
	}
	return q.scanMatchups(rows)
}

// LatestMatchupsForPlayer returns only the newest matchup per opponent pair.
//
// LATEST-BY-PAIR:
// Re-enrollment creates a fresh matchup for a pair instead of updating the
// old one, so the pair's history is multiple rows and only the highest id
// counts. Resolving that here with a grouped MAX(id) subquery (served by the
// idx_matchups_pair index) keeps every read-time consumer — the record
// aggregator above all — from re-implementing scan-and-filter supersession.
func (q *queries) LatestMatchupsForPlayer(ctx context.Context, playerID int64) ([]model.Matchup, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+matchupColumns+` FROM matchups
		 WHERE id IN (
			SELECT MAX(id) FROM matchups
			WHERE player_one = ? OR player_two = ?
			GROUP BY player_one, player_two
		 )
		 ORDER BY id`,
		playerID, playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing latest matchups for player %d: %w", playerID, err)
	}
	return q.scanMatchups(rows)
}

// ListUpcomingMatchupsForPlayer returns the player's matchups that still have
// at least one queued or in-progress match — the set the re-enrollment
// cascade cancels.
func (q *queries) ListUpcomingMatchupsForPlayer(ctx context.Context, playerID int64) ([]model.Matchup, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+matchupColumns+` FROM matchups
		 WHERE (player_one = ? OR player_two = ?)
		   AND EXISTS (
			SELECT 1 FROM matches
			WHERE matches.matchup_id = matchups.id AND matches.status IN (?, ?)
		 )
		 ORDER BY id`,
		playerID, playerID, model.StatusInQueue, model.StatusInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing upcoming matchups for player %d: %w", playerID, err)
	}
	return q.scanMatchups(rows)
}

// NextQueuedMatchup returns the oldest matchup that still has a queued match.
// This is the runner's scheduling entry point; the per-match claim inside the
// matchup is a separate atomic step.
func (q *queries) NextQueuedMatchup(ctx context.Context) (*model.Matchup, error) {
	m, err := scanMatchup(q.db.QueryRowContext(ctx,
		`SELECT `+matchupColumns+` FROM matchups
		 WHERE EXISTS (
			SELECT 1 FROM matches
			WHERE matches.matchup_id = matchups.id AND matches.status = ?
		 )
		 ORDER BY id LIMIT 1`,
		model.StatusInQueue,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("queued matchup", "any")
		}
		return nil, fmt.Errorf("sqlite: getting next queued matchup: %w", err)
	}
	return m, nil
}
