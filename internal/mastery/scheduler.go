// Package mastery runs one topic: a shuffled first pass over every item, then
// repeated shuffled sweeps over the items that still lack enough correct
// answers, until every item has reached the topic's mastery goal.
//
// TopicRun is a value. Submit never mutates its receiver; it returns the next
// run, so a caller can keep or discard any state it has seen.
package mastery

import (
	"fmt"
	"math/rand/v2"
	"time"

	"srp-quiz-service/internal/answer"
	"srp-quiz-service/internal/domain"
)

// DefaultGoal retires an item after a single correct answer.
const DefaultGoal = 1

// State is the scheduler's position in a topic.
type State int

const (
	StateFirstPass State = iota
	StateSweep
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateFirstPass:
		return "first_pass"
	case StateSweep:
		return "mastery"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Effect tells the caller what happened after a submission.
type Effect int

const (
	// EffectNext means another item in the same pass is ready.
	EffectNext Effect = iota
	// EffectSweepStarted means a new shuffled sweep over pending items began.
	EffectSweepStarted
	// EffectTopicComplete means every item reached the goal.
	EffectTopicComplete
)

func (e Effect) String() string {
	switch e {
	case EffectNext:
		return "next"
	case EffectSweepStarted:
		return "sweep_started"
	case EffectTopicComplete:
		return "topic_complete"
	default:
		return fmt.Sprintf("Effect(%d)", int(e))
	}
}

// Answer is one operator submission for the presented item.
type Answer struct {
	ItemID       string
	Raw          string
	ReactionTime time.Duration
}

// TopicRun is the scheduler state for one topic. Items live in an arena
// addressed by index; pending marks membership of the mastery pool.
type TopicRun struct {
	topic string
	goal  int
	items []domain.Item  // shared, read-only
	index map[string]int // shared, read-only

	counts   []int
	pending  []bool
	nPending int
	order    []int
	cursor   int
	attempt  int
	state    State
	rng      rand.PCG
}

// Begin shuffles the items into the first-pass order and resets all counts.
func Begin(topic string, items []domain.Item, goal int, seed uint64) (TopicRun, error) {
	if len(items) == 0 {
		return TopicRun{}, fmt.Errorf("%w: %s", domain.ErrEmptyPool, topic)
	}
	if goal < 1 {
		return TopicRun{}, fmt.Errorf("%w: got %d", domain.ErrInvalidGoal, goal)
	}
	index := make(map[string]int, len(items))
	for i, it := range items {
		if _, dup := index[it.ID]; dup {
			return TopicRun{}, fmt.Errorf("%w %q in topic %s", domain.ErrDuplicateItem, it.ID, topic)
		}
		index[it.ID] = i
	}

	r := TopicRun{
		topic:   topic,
		goal:    goal,
		items:   items,
		index:   index,
		counts:  make([]int, len(items)),
		pending: make([]bool, len(items)),
		order:   make([]int, len(items)),
		attempt: 1,
		state:   StateFirstPass,
		rng:     *rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
	for i := range r.order {
		r.order[i] = i
	}
	r.shuffle(r.order)
	return r, nil
}

// Submit grades ans against the presented item and returns the next run, the
// unindexed trial record and the resulting effect.
func (r TopicRun) Submit(ans Answer) (TopicRun, domain.TrialRecord, Effect, error) {
	if r.state == StateComplete {
		return r, domain.TrialRecord{}, EffectTopicComplete, domain.ErrTopicComplete
	}
	idx := r.order[r.cursor]
	item := r.items[idx]
	if ans.ItemID != item.ID {
		return r, domain.TrialRecord{}, EffectNext, fmt.Errorf("%w: presented %q, got %q", domain.ErrItemMismatch, item.ID, ans.ItemID)
	}

	next := r.clone()
	normalized := answer.Prepare(ans.Raw)
	correct := item.Answers.Accepts(normalized)

	phase := domain.PhaseFirstPass
	if r.state == StateSweep {
		phase = domain.PhaseMastery
	}
	rt := ans.ReactionTime.Milliseconds()
	if rt < 0 {
		rt = 0
	}
	rec := domain.TrialRecord{
		ItemID:         item.ID,
		Topic:          r.topic,
		Week:           item.Week,
		Phase:          phase,
		Attempt:        r.attempt,
		QuestionType:   item.QuestionType,
		ReactionTimeMs: rt,
		RawAnswer:      ans.Raw,
		NormAnswer:     normalized,
		Correct:        &correct,
	}

	if correct {
		next.counts[idx]++
		if next.state == StateSweep && next.counts[idx] >= next.goal && next.pending[idx] {
			next.pending[idx] = false
			next.nPending--
		}
	}
	next.cursor++
	return next, rec, next.advance(), nil
}

// advance moves past exhausted passes. Must only be called on a clone.
func (r *TopicRun) advance() Effect {
	if r.state == StateFirstPass {
		if r.cursor < len(r.order) {
			return EffectNext
		}
		for i := range r.items {
			if r.counts[i] < r.goal {
				r.pending[i] = true
				r.nPending++
			}
		}
		return r.startSweep()
	}
	for r.cursor < len(r.order) && !r.pending[r.order[r.cursor]] {
		r.cursor++
	}
	if r.cursor < len(r.order) {
		return EffectNext
	}
	return r.startSweep()
}

func (r *TopicRun) startSweep() Effect {
	if r.nPending == 0 {
		r.state = StateComplete
		r.order = nil
		r.cursor = 0
		return EffectTopicComplete
	}
	order := make([]int, 0, r.nPending)
	for i, p := range r.pending {
		if p {
			order = append(order, i)
		}
	}
	r.shuffle(order)
	r.order = order
	r.cursor = 0
	r.attempt++
	r.state = StateSweep
	return EffectSweepStarted
}

func (r *TopicRun) shuffle(order []int) {
	rand.New(&r.rng).Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
}

func (r TopicRun) clone() TopicRun {
	c := r
	c.counts = append([]int(nil), r.counts...)
	c.pending = append([]bool(nil), r.pending...)
	c.order = append([]int(nil), r.order...)
	return c
}

// Current returns the item to present, if the topic is not complete.
func (r TopicRun) Current() (domain.Item, bool) {
	if r.state == StateComplete || r.cursor >= len(r.order) {
		return domain.Item{}, false
	}
	return r.items[r.order[r.cursor]], true
}

// Topic is the topic this run covers.
func (r TopicRun) Topic() string { return r.topic }

// Goal is the number of cumulative correct answers that retire an item.
func (r TopicRun) Goal() int { return r.goal }

// State reports the current scheduler state.
func (r TopicRun) State() State { return r.state }

// Complete reports whether every item reached the goal.
func (r TopicRun) Complete() bool { return r.state == StateComplete }

// Attempt is 1 during the first pass and increments with each sweep.
func (r TopicRun) Attempt() int { return r.attempt }

// Phase is the trial phase the next submission will be recorded under.
func (r TopicRun) Phase() domain.Phase {
	if r.state == StateSweep {
		return domain.PhaseMastery
	}
	return domain.PhaseFirstPass
}

// CorrectCount returns the cumulative correct answers recorded for an item.
func (r TopicRun) CorrectCount(itemID string) int {
	i, ok := r.index[itemID]
	if !ok {
		return 0
	}
	return r.counts[i]
}

// IsPending reports whether an item is in the mastery pool. O(1).
func (r TopicRun) IsPending(itemID string) bool {
	i, ok := r.index[itemID]
	return ok && r.pending[i]
}

// Pending lists the mastery pool in arena order. Empty during the first pass.
func (r TopicRun) Pending() []string {
	out := make([]string, 0, r.nPending)
	for i, p := range r.pending {
		if p {
			out = append(out, r.items[i].ID)
		}
	}
	return out
}

// Remaining is the number of items left in the current pass, including the presented one.
func (r TopicRun) Remaining() int {
	if r.state == StateComplete {
		return 0
	}
	n := 0
	for _, idx := range r.order[r.cursor:] {
		if r.state == StateFirstPass || r.pending[idx] {
			n++
		}
	}
	return n
}

// Size is the number of items in the topic.
func (r TopicRun) Size() int { return len(r.items) }
