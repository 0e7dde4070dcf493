package app

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"srp-quiz-service/internal/domain"
	"srp-quiz-service/internal/itempool"
	"srp-quiz-service/internal/logger"
	"srp-quiz-service/internal/mastery"
)

// TimestampFormat is ISO-8601 UTC with milliseconds.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

type stage int

const (
	stageBetweenTopics stage = iota
	stageInTopic
	stageSummary
	stageReset
)

// Presentation is the item currently waiting for an answer.
type Presentation struct {
	Item    domain.Item  `json:"-"`
	Phase   domain.Phase `json:"phase"`
	Attempt int          `json:"attempt"`
}

// TopicStep is the outcome of Advance: either a started topic or the end-of-session summary.
// Finalized is set only on the call that emptied the topic queue.
type TopicStep struct {
	Topic       string               `json:"topic,omitempty"`
	Label       string               `json:"label,omitempty"`
	Goal        int                  `json:"goal,omitempty"`
	Size        int                  `json:"size,omitempty"`
	Skipped     []string             `json:"skipped,omitempty"`
	First       *Presentation        `json:"-"`
	Done        bool                 `json:"done"`
	Finalized   bool                 `json:"-"`
	Summary     *domain.Summary      `json:"summary,omitempty"`
	Submission  *domain.SubmitResult `json:"submission,omitempty"`
	SubmitError string               `json:"submitError,omitempty"`
}

// Feedback is the result of grading one answer.
type Feedback struct {
	Trial     domain.TrialRecord `json:"trial"`
	Correct   bool               `json:"correct"`
	Canonical string             `json:"canonical,omitempty"`
	Effect    mastery.Effect     `json:"-"`
	Next      *Presentation      `json:"-"`
}

// SessionOptions seeds a new session.
type SessionOptions struct {
	ID        string
	StudentID string
	Week      int
	Reattempt bool
	Device    domain.Device
	Catalog   Catalog
	Pool      itempool.Pool
	Now       func() time.Time
	Seed      func() uint64
	Log       *logger.Logger
}

// Session is one student's run through a week's topics. All operations are
// serialized: an answer is fully recorded before the next one is accepted.
type Session struct {
	mu sync.Mutex

	id        string
	studentID string
	week      int
	reattempt bool
	device    domain.Device
	catalog   Catalog
	pool      itempool.Pool
	topics    []string
	queue     []string
	now       func() time.Time
	seed      func() uint64
	log       *logger.Logger

	stage        stage
	run          mastery.TopicRun
	estimateOpen bool
	trials       []domain.TrialRecord
	blurs        int
	startedAt    time.Time
	completedAt  time.Time
	submitted    *domain.SubmitResult
}

// NewSession creates a session positioned before its first topic.
func NewSession(opts SessionOptions) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Seed == nil {
		opts.Seed = randomSeed
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	topics := opts.Catalog.Topics(opts.Week)
	return &Session{
		id:        opts.ID,
		studentID: opts.StudentID,
		week:      opts.Week,
		reattempt: opts.Reattempt,
		device:    opts.Device,
		catalog:   opts.Catalog,
		pool:      opts.Pool,
		topics:    topics,
		queue:     append([]string(nil), topics...),
		now:       opts.Now,
		seed:      opts.Seed,
		log:       opts.Log.With("session_id", opts.ID, "student_number", opts.StudentID, "week", opts.Week),
		startedAt: opts.Now(),
	}
}

func (s *Session) ID() string        { return s.id }
func (s *Session) StudentID() string { return s.studentID }
func (s *Session) Week() int         { return s.week }

// Advance pops the next topic with items and begins its first pass. Topics
// without items for the week are skipped. When the queue is empty the session
// is finalized and the step carries the summary.
func (s *Session) Advance() (TopicStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.stage {
	case stageReset:
		return TopicStep{}, domain.ErrSessionReset
	case stageInTopic:
		return TopicStep{}, domain.ErrTopicInProgress
	case stageSummary:
		sum := domain.Summarize(s.trials)
		return TopicStep{Done: true, Summary: &sum}, nil
	}

	var skipped []string
	for len(s.queue) > 0 {
		topic := s.queue[0]
		s.queue = s.queue[1:]

		goal := s.catalog.Goal(s.week, topic)
		run, err := mastery.Begin(topic, s.pool.Items(topic, s.week), goal, s.seed())
		if errors.Is(err, domain.ErrEmptyPool) {
			s.log.Warn("skipping topic without items", "topic", topic)
			skipped = append(skipped, topic)
			continue
		}
		if err != nil {
			return TopicStep{}, fmt.Errorf("begin topic %s: %w", topic, err)
		}

		s.run = run
		s.stage = stageInTopic
		s.estimateOpen = true
		s.log.Info("topic started", "topic", topic, "items", run.Size(), "goal", goal)
		return TopicStep{
			Topic:   topic,
			Label:   s.catalog.Label(topic),
			Goal:    goal,
			Size:    run.Size(),
			Skipped: skipped,
			First:   s.presentationLocked(),
		}, nil
	}

	s.stage = stageSummary
	s.completedAt = s.now()
	sum := domain.Summarize(s.trials)
	s.log.Info("session finished", "trials", len(s.trials), "correct", sum.Correct)
	return TopicStep{Skipped: skipped, Done: true, Finalized: true, Summary: &sum}, nil
}

// Estimate records the operator's predicted correct count for the current
// topic. It is accepted once, before the topic's first answer, and is never graded.
func (s *Session) Estimate(predicted int) (domain.TrialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage == stageReset {
		return domain.TrialRecord{}, domain.ErrSessionReset
	}
	if s.stage != stageInTopic {
		return domain.TrialRecord{}, domain.ErrNoActiveTopic
	}
	if !s.estimateOpen {
		return domain.TrialRecord{}, domain.ErrEstimateClosed
	}
	if predicted < 0 {
		predicted = 0
	}
	raw := strconv.Itoa(predicted)
	rec := domain.TrialRecord{
		Topic:      s.run.Topic(),
		Week:       s.week,
		Phase:      domain.PhaseMeta,
		RawAnswer:  raw,
		NormAnswer: raw,
		Estimate:   &predicted,
	}
	s.estimateOpen = false
	return s.appendLocked(rec), nil
}

// Current returns the item waiting for an answer.
func (s *Session) Current() (Presentation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.presentationLocked()
	if p == nil {
		return Presentation{}, false
	}
	return *p, true
}

// Submit grades an answer for the presented item and appends its trial record.
func (s *Session) Submit(ans mastery.Answer) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage == stageReset {
		return Feedback{}, domain.ErrSessionReset
	}
	if s.stage != stageInTopic {
		return Feedback{}, domain.ErrNoActiveTopic
	}
	item, _ := s.run.Current()
	next, rec, effect, err := s.run.Submit(ans)
	if err != nil {
		return Feedback{}, err
	}
	s.run = next
	s.estimateOpen = false
	rec = s.appendLocked(rec)

	fb := Feedback{Trial: rec, Correct: rec.IsCorrect(), Effect: effect}
	if !fb.Correct {
		fb.Canonical = item.Answers.Canonical()
	}
	if effect == mastery.EffectTopicComplete {
		s.stage = stageBetweenTopics
		s.log.Info("topic complete", "topic", next.Topic())
	} else {
		fb.Next = s.presentationLocked()
	}
	return fb, nil
}

// RecordBlur counts a focus loss reported by the client.
func (s *Session) RecordBlur() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != stageReset {
		s.blurs++
	}
}

// Trials returns a copy of the trial log.
func (s *Session) Trials() []domain.TrialRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TrialRecord(nil), s.trials...)
}

// Result builds the submission document. Only available once every topic ran.
func (s *Session) Result() (domain.SessionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.stage {
	case stageReset:
		return domain.SessionResult{}, domain.ErrSessionReset
	case stageSummary:
	default:
		return domain.SessionResult{}, domain.ErrSessionIncomplete
	}
	return domain.SessionResult{
		SessionID:       s.id,
		StudentNumber:   s.studentID,
		Week:            s.week,
		TopicsRun:       append([]string(nil), s.topics...),
		StartedAt:       s.startedAt.UTC().Format(TimestampFormat),
		CompletedAt:     s.completedAt.UTC().Format(TimestampFormat),
		Device:          s.device,
		VisibilityBlurs: s.blurs,
		Trials:          append([]domain.TrialRecord(nil), s.trials...),
		Reattempt:       s.reattempt,
	}, nil
}

// MarkSubmitted remembers the sink's answer so callers can tell a finalized
// session apart. An accepted answer is never replaced.
func (s *Session) MarkSubmitted(res domain.SubmitResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted != nil && s.submitted.Accepted {
		return
	}
	s.submitted = &res
}

// Submitted returns the sink's last answer, if any.
func (s *Session) Submitted() (domain.SubmitResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted == nil {
		return domain.SubmitResult{}, false
	}
	return *s.submitted, true
}

// Reset abandons the session immediately. Topic state and trials are discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stageReset
	s.run = mastery.TopicRun{}
	s.queue = nil
	s.trials = nil
	s.estimateOpen = false
	s.log.Info("session reset")
}

func (s *Session) presentationLocked() *Presentation {
	if s.stage != stageInTopic {
		return nil
	}
	item, ok := s.run.Current()
	if !ok {
		return nil
	}
	return &Presentation{Item: item, Phase: s.run.Phase(), Attempt: s.run.Attempt()}
}

func (s *Session) appendLocked(rec domain.TrialRecord) domain.TrialRecord {
	rec.TrialIndex = len(s.trials) + 1
	rec.Timestamp = s.now().UTC().Format(TimestampFormat)
	s.trials = append(s.trials, rec)
	return rec
}
