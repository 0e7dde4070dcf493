package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"srp-quiz-service/internal/domain"
)

// ResultStore is a write-once, in-process result sink.
type ResultStore struct {
	mu    sync.RWMutex
	docs  map[string][]byte
	clock func() time.Time
}

func NewResultStore() *ResultStore {
	return &ResultStore{docs: make(map[string][]byte), clock: time.Now}
}

func (s *ResultStore) Submit(_ context.Context, result domain.SessionResult) (domain.SubmitResult, error) {
	now := s.clock()
	key := result.StorageKey(now)
	data, err := result.Encode(now)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[key]; exists {
		return domain.Duplicate(key), nil
	}
	s.docs[key] = data
	return domain.SubmitResult{Accepted: true, Key: key}, nil
}

func (s *ResultStore) Status(_ context.Context, studentNumber string, week int) (domain.SubmissionStatus, error) {
	s.mu.RLock()
	data, ok := s.docs[domain.FirstAttemptKey(week, studentNumber)]
	s.mu.RUnlock()
	if !ok {
		return domain.SubmissionStatus{}, nil
	}
	var stored domain.SessionResult
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.SubmissionStatus{Exists: true}, nil
	}
	return domain.SubmissionStatus{Exists: true, CompletedAt: stored.CompletedAt}, nil
}

// Get returns the stored document for key.
func (s *ResultStore) Get(key string) (domain.SessionResult, bool) {
	s.mu.RLock()
	data, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return domain.SessionResult{}, false
	}
	var stored domain.SessionResult
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.SessionResult{}, false
	}
	return stored, true
}

func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
