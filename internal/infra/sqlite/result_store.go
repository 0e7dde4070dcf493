package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"srp-quiz-service/internal/domain"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
    key            TEXT PRIMARY KEY,
    student_number TEXT NOT NULL,
    week           INTEGER NOT NULL,
    reattempt      INTEGER NOT NULL DEFAULT 0,
    session_id     TEXT NOT NULL DEFAULT '',
    completed_at   TEXT NOT NULL DEFAULT '',
    document       BLOB NOT NULL,
    stored_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS results_student_week_idx ON results (student_number, week);`

// ResultStore is a single-file result sink for offline or lab deployments.
type ResultStore struct {
	db    *sql.DB
	clock func() time.Time
}

// Open creates the database at dsn (":memory:" for tests) and ensures the schema.
func Open(dsn string) (*ResultStore, error) {
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" a single database and serializes writers.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &ResultStore{db: db, clock: time.Now}, nil
}

func (s *ResultStore) Close() error {
	return s.db.Close()
}

func (s *ResultStore) Submit(ctx context.Context, result domain.SessionResult) (domain.SubmitResult, error) {
	now := s.clock()
	key := result.StorageKey(now)
	data, err := result.Encode(now)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	res, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO results (key, student_number, week, reattempt, session_id, completed_at, document, stored_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key, result.StudentNumber, result.Week, result.Reattempt, result.SessionID, result.CompletedAt, data, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("insert result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("insert result: %w", err)
	}
	if n == 0 {
		return domain.Duplicate(key), nil
	}
	return domain.SubmitResult{Accepted: true, Key: key}, nil
}

func (s *ResultStore) Status(ctx context.Context, studentNumber string, week int) (domain.SubmissionStatus, error) {
	var completedAt string
	err := s.db.QueryRowContext(ctx, `SELECT completed_at FROM results WHERE key = ?`, domain.FirstAttemptKey(week, studentNumber)).Scan(&completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SubmissionStatus{}, nil
	}
	if err != nil {
		return domain.SubmissionStatus{}, fmt.Errorf("result status: %w", err)
	}
	return domain.SubmissionStatus{Exists: true, CompletedAt: completedAt}, nil
}

// Count returns the number of stored documents for a student across weeks.
func (s *ResultStore) Count(ctx context.Context, studentNumber string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results WHERE student_number = ?`, studentNumber).Scan(&n)
	return n, err
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}
