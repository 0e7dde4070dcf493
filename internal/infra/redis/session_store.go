package redis

import (
	"context"
	"sync"
	"time"

	"srp-quiz-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Sessions live in a local map since their connection is pinned to this
// instance; Redis only carries a liveness marker per session so operators can
// count live sessions across instances.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Save(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(session.ID()), session.StudentID(), s.ttl).Err()
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return
	}
	delete(s.sessions, sessionID)
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

// Touch rewrites the liveness marker of a local session with a fresh TTL,
// restoring it if it already expired.
func (s *SessionStore) Touch(ctx context.Context, sessionID string) error {
	session, ok := s.Get(sessionID)
	if !ok {
		return nil
	}
	return s.client.Set(ctx, s.key(sessionID), session.StudentID(), s.ttl).Err()
}

func (s *SessionStore) key(sessionID string) string {
	return "srp:session:" + sessionID
}
