package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"srp-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultStore persists result documents as JSONB keyed by storage key.
// ON CONFLICT DO NOTHING keeps the first write.
type ResultStore struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool, clock: time.Now}
}

func (s *ResultStore) Submit(ctx context.Context, result domain.SessionResult) (domain.SubmitResult, error) {
	now := s.clock()
	key := result.StorageKey(now)
	data, err := result.Encode(now)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	tag, err := s.pool.Exec(ctx, `
INSERT INTO results (key, student_number, week, reattempt, session_id, completed_at, document, stored_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (key) DO NOTHING`,
		key, result.StudentNumber, result.Week, result.Reattempt, result.SessionID, result.CompletedAt, data, now.UTC())
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("insert result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Duplicate(key), nil
	}
	return domain.SubmitResult{Accepted: true, Key: key}, nil
}

func (s *ResultStore) Status(ctx context.Context, studentNumber string, week int) (domain.SubmissionStatus, error) {
	var completedAt string
	err := s.pool.QueryRow(ctx, `SELECT completed_at FROM results WHERE key=$1`, domain.FirstAttemptKey(week, studentNumber)).Scan(&completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SubmissionStatus{}, nil
	}
	if err != nil {
		return domain.SubmissionStatus{}, fmt.Errorf("result status: %w", err)
	}
	return domain.SubmissionStatus{Exists: true, CompletedAt: completedAt}, nil
}

// Get loads a stored document by key.
func (s *ResultStore) Get(ctx context.Context, key string) (domain.SessionResult, error) {
	var raw []byte
	if err := s.pool.QueryRow(ctx, `SELECT document FROM results WHERE key=$1`, key).Scan(&raw); err != nil {
		return domain.SessionResult{}, fmt.Errorf("load result: %w", err)
	}
	var result domain.SessionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.SessionResult{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return result, nil
}
