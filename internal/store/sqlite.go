package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/MJE43/lightgrid/internal/puzzle"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteDB implements the DB interface using SQLite
type SQLiteDB struct {
	db      *sql.DB
	logger  *log.Logger
	backoff func() retry.Backoff
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &SQLiteDB{
		db:     db,
		logger: log.New(os.Stdout, "[STORE] ", log.LstdFlags),
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(5, retry.NewExponential(20*time.Millisecond))
		},
	}, nil
}

// SetLogger replaces the store logger.
func (s *SQLiteDB) SetLogger(l *log.Logger) { s.logger = l }

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Ping checks the connection is usable.
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded goose migrations.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, r := range results {
		s.logger.Printf("migration applied version=%d duration=%s", r.Source.Version, r.Duration)
	}
	return nil
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

// write runs fn, retrying with backoff while the database is busy.
func (s *SQLiteDB) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && isBusy(err) {
			s.logger.Printf("database busy op=%s attempt=%d", op, attempt)
			return retry.RetryableError(err)
		}
		return err
	})
}

// SaveResult stores a finished session. Saving the same session twice is a
// no-op.
func (s *SQLiteDB) SaveResult(ctx context.Context, r puzzle.Result) error {
	if r.SessionID == uuid.Nil {
		return errors.New("result has no session id")
	}
	if !r.State.Finished() {
		return fmt.Errorf("result %s is still %s", r.SessionID, r.State)
	}

	query := `INSERT OR IGNORE INTO results (
		id, player, source, difficulty, level, state, moves, elapsed_ms, score,
		server_seed, server_seed_hash, client_seed, nonce, finished_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return s.write(ctx, "save_result", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			r.SessionID.String(), r.Player, r.Source, r.Difficulty, r.Level, r.State.String(),
			r.Moves, r.Elapsed.Milliseconds(), r.Score.StringFixed(2),
			r.ServerSeed, r.ServerSeedHash, r.ClientSeed, int64(r.Nonce), r.FinishedAt.UnixMilli(),
		)
		return err
	})
}

const resultColumns = `id, player, source, difficulty, level, state, moves, elapsed_ms, score,
	server_seed, server_seed_hash, client_seed, nonce, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*puzzle.Result, error) {
	var (
		r          puzzle.Result
		id, state  string
		score      string
		elapsedMS  int64
		nonce      int64
		finishedMS int64
	)
	err := row.Scan(&id, &r.Player, &r.Source, &r.Difficulty, &r.Level, &state, &r.Moves,
		&elapsedMS, &score, &r.ServerSeed, &r.ServerSeedHash, &r.ClientSeed, &nonce, &finishedMS)
	if err != nil {
		return nil, err
	}

	if r.SessionID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("bad result id %q: %w", id, err)
	}
	if r.State, err = puzzle.ParseState(state); err != nil {
		return nil, err
	}
	if r.Score, err = decimal.NewFromString(score); err != nil {
		return nil, fmt.Errorf("bad score %q: %w", score, err)
	}
	r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	r.Nonce = uint64(nonce)
	r.FinishedAt = time.UnixMilli(finishedMS).UTC()
	return &r, nil
}

// GetResult retrieves a result by session ID
func (s *SQLiteDB) GetResult(ctx context.Context, id uuid.UUID) (*puzzle.Result, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+resultColumns+" FROM results WHERE id = ?", id.String())
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// Leaderboard ranks won sessions by score, then by time taken.
func (s *SQLiteDB) Leaderboard(ctx context.Context, query LeaderboardQuery) (*LeaderboardPage, error) {
	whereClause := "WHERE state = ?"
	args := []any{puzzle.Won.String()}
	if query.Difficulty != "" {
		whereClause += " AND difficulty = ?"
		args = append(args, query.Difficulty)
	}
	if query.Source != "" {
		whereClause += " AND source = ?"
		args = append(args, query.Source)
	}
	if query.Level != "" {
		whereClause += " AND level = ?"
		args = append(args, query.Level)
	}

	var totalCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM results "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	if query.PerPage <= 0 {
		query.PerPage = 20
	}
	if query.PerPage > 100 {
		query.PerPage = 100
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	offset := (query.Page - 1) * query.PerPage
	totalPages := (totalCount + query.PerPage - 1) / query.PerPage

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+resultColumns+" FROM results "+whereClause+
			" ORDER BY CAST(score AS REAL) DESC, elapsed_ms ASC, finished_at ASC LIMIT ? OFFSET ?",
		append(args, query.PerPage, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]LeaderboardEntry, 0, query.PerPage)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, LeaderboardEntry{Rank: offset + len(entries) + 1, Result: *r})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &LeaderboardPage{
		Entries:    entries,
		TotalCount: totalCount,
		Page:       query.Page,
		PerPage:    query.PerPage,
		TotalPages: totalPages,
	}, nil
}

// ClearLeaderboard deletes every stored result and returns how many rows
// were removed.
func (s *SQLiteDB) ClearLeaderboard(ctx context.Context) (int64, error) {
	var n int64
	err := s.write(ctx, "clear_leaderboard", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM results")
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err == nil {
		s.logger.Printf("leaderboard cleared rows=%d", n)
	}
	return n, err
}
