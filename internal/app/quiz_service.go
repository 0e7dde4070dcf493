package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"srp-quiz-service/internal/domain"
	"srp-quiz-service/internal/itempool"
	"srp-quiz-service/internal/logger"
	"srp-quiz-service/internal/mastery"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Save(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
	// Touch marks the session as still in use.
	Touch(ctx context.Context, sessionID string) error
}

// ItemRepository returns the loaded item pool (from cache/backing source).
type ItemRepository interface {
	GetPool(ctx context.Context) (itempool.Pool, error)
}

// ResultSink persists finished sessions write-once by natural key.
type ResultSink interface {
	Submit(ctx context.Context, result domain.SessionResult) (domain.SubmitResult, error)
	Status(ctx context.Context, studentNumber string, week int) (domain.SubmissionStatus, error)
}

// QuizService contains the practice session use cases.
type QuizService struct {
	sessions SessionRepository
	items    ItemRepository
	sink     ResultSink
	catalog  Catalog
	log      *logger.Logger
	now      func() time.Time
	seed     func() uint64
	newID    func() string

	// finished sessions whose result the sink has not answered, by time left
	pendingMu sync.Mutex
	pending   map[string]time.Time
	retention time.Duration
}

// DefaultRetention bounds how long an unsubmitted finished session is kept after its client left.
const DefaultRetention = 24 * time.Hour

// Option customizes a QuizService.
type Option func(*QuizService)

// WithClock fixes the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithRetention sets how long Leave keeps a finished session awaiting storage.
func WithRetention(d time.Duration) Option {
	return func(s *QuizService) { s.retention = d }
}

// WithSeed fixes the shuffle seed source (tests).
func WithSeed(seed func() uint64) Option {
	return func(s *QuizService) { s.seed = seed }
}

func NewQuizService(store SessionRepository, items ItemRepository, sink ResultSink, catalog Catalog, log *logger.Logger, opts ...Option) *QuizService {
	if log == nil {
		log = logger.Nop()
	}
	s := &QuizService{
		sessions:  store,
		items:     items,
		sink:      sink,
		catalog:   catalog,
		log:       log.With("service", "QuizService"),
		now:       time.Now,
		seed:      randomSeed,
		newID:     func() string { return uuid.NewString() },
		pending:   make(map[string]time.Time),
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRequest carries the operator's session parameters.
type StartRequest struct {
	StudentID string
	Week      int
	Reattempt bool
	Device    domain.Device
}

// StartResult is a new session plus the prior-submission check.
type StartResult struct {
	Session *Session
	Prior   domain.SubmissionStatus
}

// Catalog exposes the week/topic configuration.
func (s *QuizService) Catalog() Catalog { return s.catalog }

// Start validates the request, loads the item pool and registers a new session.
// Validation errors create nothing; an unavailable pool fails explicitly.
func (s *QuizService) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	if err := s.catalog.Validate(req.StudentID, req.Week); err != nil {
		return StartResult{}, err
	}

	pool, err := s.items.GetPool(ctx)
	if err != nil {
		s.log.Error("item pool unavailable", "error", err)
		return StartResult{}, fmt.Errorf("%w: %v", domain.ErrItemsUnavailable, err)
	}

	// The check only informs the operator; it never blocks the start.
	prior, err := s.sink.Status(ctx, req.StudentID, req.Week)
	if err != nil {
		s.log.Warn("prior submission check failed", "student_number", req.StudentID, "week", req.Week, "error", err)
		prior = domain.SubmissionStatus{}
	}

	session := NewSession(SessionOptions{
		ID:        s.newID(),
		StudentID: req.StudentID,
		Week:      req.Week,
		Reattempt: req.Reattempt,
		Device:    req.Device,
		Catalog:   s.catalog,
		Pool:      pool,
		Now:       s.now,
		Seed:      s.seed,
		Log:       s.log,
	})
	s.sessions.Save(session)
	s.log.Info("session started", "session_id", session.ID(), "student_number", req.StudentID, "week", req.Week, "reattempt", req.Reattempt, "prior", prior.Exists)
	return StartResult{Session: session, Prior: prior}, nil
}

// Advance moves a session to its next topic or its summary. The step that
// finalizes the session also submits it once; a failed submission is reported
// on the step and can be retried with Finish.
func (s *QuizService) Advance(ctx context.Context, sessionID string) (TopicStep, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return TopicStep{}, err
	}
	step, err := session.Advance()
	if err != nil || !step.Finalized {
		return step, err
	}
	res, err := s.Finish(ctx, sessionID)
	if err != nil {
		step.SubmitError = err.Error()
		return step, nil
	}
	step.Submission = &res
	return step, nil
}

// Estimate records a metacognitive estimate for the current topic.
func (s *QuizService) Estimate(_ context.Context, sessionID string, predicted int) (domain.TrialRecord, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.TrialRecord{}, err
	}
	return session.Estimate(predicted)
}

// SubmitAnswer grades an answer for the presented item.
func (s *QuizService) SubmitAnswer(ctx context.Context, sessionID string, ans mastery.Answer) (Feedback, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return Feedback{}, err
	}
	if err := s.sessions.Touch(ctx, sessionID); err != nil {
		s.log.Debug("session touch failed", "session_id", sessionID, "error", err)
	}
	return session.Submit(ans)
}

// Blur counts a focus loss for the session.
func (s *QuizService) Blur(_ context.Context, sessionID string) error {
	session, err := s.get(sessionID)
	if err != nil {
		return err
	}
	session.RecordBlur()
	return nil
}

// Finish submits a finished session to the result sink. The session stays
// available after a failure so the caller can retry; the sink makes repeats safe.
func (s *QuizService) Finish(ctx context.Context, sessionID string) (domain.SubmitResult, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	result, err := session.Result()
	if err != nil {
		return domain.SubmitResult{}, err
	}
	res, err := s.sink.Submit(ctx, result)
	if err != nil {
		s.log.Error("result submission failed", "session_id", sessionID, "error", err)
		return domain.SubmitResult{}, fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}
	session.MarkSubmitted(res)
	if res.Accepted {
		s.log.Info("result stored", "session_id", sessionID, "key", res.Key, "trials", len(result.Trials))
	} else {
		s.log.Warn("result rejected", "session_id", sessionID, "key", res.Key, "reason", res.Reason)
	}
	return res, nil
}

// Reset abandons a session and forgets it. Nothing is persisted.
func (s *QuizService) Reset(_ context.Context, sessionID string) error {
	session, err := s.get(sessionID)
	if err != nil {
		return err
	}
	session.Reset()
	s.sessions.Delete(sessionID)
	return nil
}

// Leave forgets a session without touching its state (connection closed).
// A finished session the sink never answered is kept for RetryPending.
func (s *QuizService) Leave(_ context.Context, sessionID string) {
	if session, ok := s.sessions.Get(sessionID); ok && awaitingStorage(session) {
		s.pendingMu.Lock()
		s.pending[sessionID] = s.now()
		s.pendingMu.Unlock()
		s.log.Warn("session kept for resubmission", "session_id", sessionID, "student_number", session.StudentID())
		return
	}
	s.sessions.Delete(sessionID)
}

func awaitingStorage(session *Session) bool {
	if _, err := session.Result(); err != nil {
		return false
	}
	_, answered := session.Submitted()
	return !answered
}

// RetryPending resubmits sessions kept by Leave and returns how many are still
// waiting. A session is dropped once the sink answers or its retention expires.
func (s *QuizService) RetryPending(ctx context.Context) int {
	s.pendingMu.Lock()
	left := make(map[string]time.Time, len(s.pending))
	for id, at := range s.pending {
		left[id] = at
	}
	s.pendingMu.Unlock()

	for id, at := range left {
		_, err := s.Finish(ctx, id)
		switch {
		case err == nil, !errors.Is(err, domain.ErrSubmissionFailed):
			s.drop(id)
		case s.now().Sub(at) > s.retention:
			s.log.Error("dropping unsubmitted session", "session_id", id, "left_at", at.UTC().Format(TimestampFormat))
			s.drop(id)
		}
	}

	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

// RunRetries calls RetryPending every interval until ctx is done.
func (s *QuizService) RunRetries(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RetryPending(ctx)
		}
	}
}

func (s *QuizService) drop(sessionID string) {
	s.pendingMu.Lock()
	delete(s.pending, sessionID)
	s.pendingMu.Unlock()
	s.sessions.Delete(sessionID)
}

// Status reports whether a first attempt is already stored for (student, week).
func (s *QuizService) Status(ctx context.Context, studentID string, week int) (domain.SubmissionStatus, error) {
	if err := s.catalog.Validate(studentID, week); err != nil {
		return domain.SubmissionStatus{}, err
	}
	return s.sink.Status(ctx, studentID, week)
}

// Ingest validates and stores a result document produced elsewhere.
func (s *QuizService) Ingest(ctx context.Context, result domain.SessionResult) (domain.SubmitResult, error) {
	if err := s.catalog.Validate(result.StudentNumber, result.Week); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidResult, err)
	}
	if len(result.Trials) == 0 {
		return domain.SubmitResult{}, fmt.Errorf("%w: no trials", domain.ErrInvalidResult)
	}
	res, err := s.sink.Submit(ctx, result)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}
	return res, nil
}

func (s *QuizService) get(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func randomSeed() uint64 {
	return rand.Uint64()
}
