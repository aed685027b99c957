// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. The whole
// tournament is a single logical store hit by independent request handlers,
// which is exactly the deployment SQLite is built for.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works everywhere Go works.
//
// TRANSACTIONS:
// Every multi-step engine operation (the re-enrollment cascade, a matchup
// batch creation) runs through WithTx so it either fully applies or fully
// rolls back. The same query code serves both paths: queries is bound to a
// *sql.DB for auto-commit calls and to a *sql.Tx inside WithTx.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// BLANK IMPORT:
	// The sqlite package's init() registers itself with database/sql as a
	// driver named "sqlite". After this import, sql.Open("sqlite", ...) knows
	// how to talk to SQLite.
	_ "modernc.org/sqlite"

	"github.com/sakif/code-battles/internal/repository"
)

// seedBoards are the fixed starting positions every matchup is played on.
// Each entry is an encoded move trace producing the opening board; the empty
// trace is the blank board. Inserted once when the boards table is empty and
// never touched again.
var seedBoards = []string{"", "2414", "265333365326", "16325633311", "24141103244"}

// execer is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Binding the query methods to this interface is what lets the same
// repository code run inside and outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every repository method. See player.go, board.go, matchup.go
// and match.go for the implementations.
type queries struct {
	db execer
}

// DB wraps a sql.DB connection pool and provides the repository methods.
type DB struct {
	conn *sql.DB
	queries
}

// compile-time check that *DB implements the full store contract
var _ repository.Store = (*DB)(nil)

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/tournament.db" → file-based database (persistent)
//   - ":memory:"           → in-memory database (great for tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time, and with ":memory:" every pooled
	// connection would get its own empty database. A single connection
	// sidesteps both; the busy_timeout below covers the queueing.
	conn.SetMaxOpenConns(1)

	// Ping verifies the connection actually works. Without this, a bad path
	// or permissions issue would only surface on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is happening — needed
	// for a web server where standings reads race enrollment writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. The schema leans on
	// referential integrity (players ← matchups ← matches → boards).
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	// Writers briefly block each other; wait instead of failing with
	// SQLITE_BUSY when a cascade and a result submission collide.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn, queries: queries{db: conn}}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// WithTx runs fn inside a single transaction. The transaction is rolled back
// on error or panic and committed otherwise — there is no code path on which
// it stays open. fn receives a repository.Tx bound to the transaction; the
// outer *DB must not be used inside fn.
func (db *DB) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&queries{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("sqlite: rolling back after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// migrate creates the schema and seeds the board catalog.
//
// CREATE TABLE IF NOT EXISTS is safe to run on every start — it won't error
// if the table exists. For this schema there are no in-place alterations to
// track, so embedded SQL beats pulling in a migration framework.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS players (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			username        TEXT NOT NULL UNIQUE,
			screen_name     TEXT NOT NULL UNIQUE,
			enrolled_commit TEXT,
			commit_comment  TEXT,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating players table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS boards (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			start_trace TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return fmt.Errorf("creating boards table: %w", err)
	}

	// player_one < player_two is the canonical pair ordering; the CHECK makes
	// a violating insert fail loudly instead of corrupting pair identity.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS matchups (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			player_one        INTEGER NOT NULL REFERENCES players(id),
			player_two        INTEGER NOT NULL REFERENCES players(id),
			player_one_commit TEXT NOT NULL DEFAULT '',
			player_two_commit TEXT NOT NULL DEFAULT '',
			created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK (player_one < player_two)
		);
		CREATE INDEX IF NOT EXISTS idx_matchups_pair ON matchups(player_one, player_two, id);
	`)
	if err != nil {
		return fmt.Errorf("creating matchups table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS matches (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			board_id            INTEGER NOT NULL REFERENCES boards(id),
			matchup_id          INTEGER NOT NULL REFERENCES matchups(id),
			status              INTEGER NOT NULL DEFAULT 0,
			end_trace_p1_starts TEXT NOT NULL DEFAULT '',
			end_trace_p2_starts TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_matches_matchup_status ON matches(matchup_id, status);
	`)
	if err != nil {
		return fmt.Errorf("creating matches table: %w", err)
	}

	return db.seedBoardCatalog()
}

// seedBoardCatalog inserts the fixed boards on first run only.
func (db *DB) seedBoardCatalog() error {
	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM boards`).Scan(&count); err != nil {
		return fmt.Errorf("counting boards: %w", err)
	}
	if count > 0 {
		return nil // already seeded
	}
	for _, trace := range seedBoards {
		if _, err := db.conn.Exec(`INSERT INTO boards (start_trace) VALUES (?)`, trace); err != nil {
			return fmt.Errorf("seeding board %q: %w", trace, err)
		}
	}
	return nil
}
