package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"srp-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ResultStore keeps result documents in Redis, one string key per storage key.
// SETNX makes the first-attempt key write-once.
type ResultStore struct {
	client *redis.Client
	prefix string
	clock  func() time.Time
}

func NewResultStore(client *redis.Client) *ResultStore {
	return &ResultStore{client: client, prefix: "srp:", clock: time.Now}
}

func (s *ResultStore) Submit(ctx context.Context, result domain.SessionResult) (domain.SubmitResult, error) {
	now := s.clock()
	key := result.StorageKey(now)
	data, err := result.Encode(now)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	ok, err := s.client.SetNX(ctx, s.prefix+key, data, 0).Result()
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if !ok {
		return domain.Duplicate(key), nil
	}
	return domain.SubmitResult{Accepted: true, Key: key}, nil
}

func (s *ResultStore) Status(ctx context.Context, studentNumber string, week int) (domain.SubmissionStatus, error) {
	data, err := s.client.Get(ctx, s.prefix+domain.FirstAttemptKey(week, studentNumber)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SubmissionStatus{}, nil
	}
	if err != nil {
		return domain.SubmissionStatus{}, err
	}
	var stored domain.SessionResult
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.SubmissionStatus{Exists: true}, nil
	}
	return domain.SubmissionStatus{Exists: true, CompletedAt: stored.CompletedAt}, nil
}
