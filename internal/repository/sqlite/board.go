package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/sakif/code-battles/internal/apperror"
	"github.com/sakif/code-battles/internal/model"
)

// ListBoards returns the full board catalog in id order.
func (q *queries) ListBoards(ctx context.Context) ([]model.Board, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, start_trace FROM boards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing boards: %w", err)
	}
	defer rows.Close()

	var boards []model.Board
	for rows.Next() {
		var b model.Board
		if err := rows.Scan(&b.ID, &b.StartTrace); err != nil {
			return nil, fmt.Errorf("sqlite: scanning board: %w", err)
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating boards: %w", err)
	}
	return boards, nil
}

// GetBoard retrieves one board, mainly to hand its start trace to the runner.
func (q *queries) GetBoard(ctx context.Context, id int64) (*model.Board, error) {
	var b model.Board
	err := q.db.QueryRowContext(ctx,
		`SELECT id, start_trace FROM boards WHERE id = ?`, id,
	).Scan(&b.ID, &b.StartTrace)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("board", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting board %d: %w", id, err)
	}
	return &b, nil
}
