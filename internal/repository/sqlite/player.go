package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/code-battles/internal/apperror"
	"github.com/sakif/code-battles/internal/model"
)

// isUniqueViolation detects a UNIQUE constraint failure on the given column.
// modernc.org/sqlite surfaces constraint errors as plain error strings that
// name the offending table.column, e.g.
// "constraint failed: UNIQUE constraint failed: players.screen_name (2067)".
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}

func scanPlayer(row interface{ Scan(dest ...any) error }) (*model.Player, error) {
	var (
		p       model.Player
		commit  sql.NullString
		comment sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.Username,
		&p.ScreenName,
		&commit,
		&comment,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	// enrolled_commit is NULL until the first successful enrollment; the
	// model uses "" as the unenrolled zero value.
	p.EnrolledCommit = commit.String
	p.CommitComment = comment.String
	return &p, nil
}

const playerColumns = `id, username, screen_name, enrolled_commit, commit_comment, created_at, updated_at`

// CreatePlayer inserts a new player with a NULL enrollment.
// A duplicate screen name comes back as apperror.ErrConflict so the registry
// can regenerate and retry; a duplicate username is a Conflict too, since
// players are only initialized once per login.
func (q *queries) CreatePlayer(ctx context.Context, username, screenName string) (*model.Player, error) {
	now := time.Now()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO players (username, screen_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?)`,
		username, screenName, now, now,
	)
	if err != nil {
		if isUniqueViolation(err, "players.screen_name") {
			return nil, apperror.Conflict("screen name", screenName)
		}
		if isUniqueViolation(err, "players.username") {
			return nil, apperror.Conflict("player", username)
		}
		return nil, fmt.Errorf("sqlite: inserting player %q: %w", username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading new player id: %w", err)
	}

	return &model.Player{
		ID:         id,
		Username:   username,
		ScreenName: screenName,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// GetPlayerByUsername retrieves a player by their login.
// Returns apperror.ErrNotFound if no player exists with that username.
func (q *queries) GetPlayerByUsername(ctx context.Context, username string) (*model.Player, error) {
	p, err := scanPlayer(q.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE username = ?`, username,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("player", username)
		}
		return nil, fmt.Errorf("sqlite: getting player %q: %w", username, err)
	}
	return p, nil
}

// GetPlayerByID retrieves a player by their id.
func (q *queries) GetPlayerByID(ctx context.Context, id int64) (*model.Player, error) {
	p, err := scanPlayer(q.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("player", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting player %d: %w", id, err)
	}
	return p, nil
}

// ListEnrolledPlayers returns every currently-enrolled player in id order.
// Unenrolled players exist in the table but generate no matchups and appear
// in no standings, so they are filtered here.
func (q *queries) ListEnrolledPlayers(ctx context.Context) ([]model.Player, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE enrolled_commit IS NOT NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing enrolled players: %w", err)
	}
	defer rows.Close()

	var players []model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning player: %w", err)
		}
		players = append(players, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating players: %w", err)
	}
	return players, nil
}

// UpdateScreenName overwrites the player's screen name.
// The UNIQUE index on screen_name is what actually enforces uniqueness — the
// conflict surfaces as apperror.ErrConflict regardless of how the race between
// two renamers interleaves.
func (q *queries) UpdateScreenName(ctx context.Context, username, newName string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE players SET screen_name = ?, updated_at = ? WHERE username = ?`,
		newName, time.Now(), username,
	)
	if err != nil {
		if isUniqueViolation(err, "players.screen_name") {
			return apperror.Conflict("screen name", newName)
		}
		return fmt.Errorf("sqlite: updating screen name for %q: %w", username, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking screen name update for %q: %w", username, err)
	}
	if affected == 0 {
		return apperror.NotFound("player", username)
	}
	return nil
}

// SetEnrollment unconditionally overwrites the enrolled commit and comment.
// No fingerprint comparison happens here — by the time this runs, the
// git-polling layer has already decided the commit is genuinely new.
func (q *queries) SetEnrollment(ctx context.Context, username, commit, comment string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE players SET enrolled_commit = ?, commit_comment = ?, updated_at = ?
		 WHERE username = ?`,
		commit, comment, time.Now(), username,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting enrollment for %q: %w", username, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking enrollment update for %q: %w", username, err)
	}
	if affected == 0 {
		return apperror.NotFound("player", username)
	}
	return nil
}
