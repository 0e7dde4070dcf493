package domain

import (
	"regexp"
	"strings"
)

// QuestionType distinguishes plain prompts from fill-in-the-blank templates.
type QuestionType string

const (
	QuestionStandard  QuestionType = "standard"
	QuestionFillBlank QuestionType = "fill_blank"
)

// ParseQuestionType maps a source cell onto a QuestionType, defaulting to standard.
func ParseQuestionType(raw string) QuestionType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "fill_blank", "fill-blank", "fillblank", "blank", "fib":
		return QuestionFillBlank
	default:
		return QuestionStandard
	}
}

// Phase tags a trial with the part of the topic run that produced it.
type Phase string

const (
	PhaseFirstPass Phase = "first_pass"
	PhaseMastery   Phase = "mastery"
	PhaseMeta      Phase = "meta"
)

// RawRow is one record from the item source, before normalization.
type RawRow struct {
	ID               string `json:"id"`
	Topic            string `json:"topic"`
	Week             string `json:"week"`
	Image            string `json:"image"`
	Answers          string `json:"answers"`
	QType            string `json:"q_type"`
	UnfilledTemplate string `json:"unfilled_template"`
}

// AnswerKey holds an item's acceptable answers in source order plus a lookup set.
type AnswerKey struct {
	ordered []string
	set     map[string]struct{}
}

// NewAnswerKey builds a key from already-normalized answers. Duplicates are kept in order.
func NewAnswerKey(normalized []string) AnswerKey {
	k := AnswerKey{
		ordered: append([]string(nil), normalized...),
		set:     make(map[string]struct{}, len(normalized)),
	}
	for _, a := range normalized {
		k.set[a] = struct{}{}
	}
	return k
}

// Accepts reports whether a normalized answer is in the key.
func (k AnswerKey) Accepts(normalized string) bool {
	_, ok := k.set[normalized]
	return ok
}

// Canonical is the preferred answer shown as feedback.
func (k AnswerKey) Canonical() string {
	if len(k.ordered) == 0 {
		return ""
	}
	return k.ordered[0]
}

// All returns a copy of the acceptable answers in source order.
func (k AnswerKey) All() []string {
	return append([]string(nil), k.ordered...)
}

func (k AnswerKey) Len() int { return len(k.ordered) }

// Item is a single practice prompt. Immutable after load.
type Item struct {
	ID               string
	Topic            string
	Week             int
	Image            string
	QuestionType     QuestionType
	UnfilledTemplate string
	Answers          AnswerKey
}

// TrialRecord is one entry in a session's append-only trial log.
type TrialRecord struct {
	TrialIndex     int          `json:"trial_index"`
	ItemID         string       `json:"id,omitempty"`
	Topic          string       `json:"topic"`
	Week           int          `json:"week"`
	Phase          Phase        `json:"phase"`
	Attempt        int          `json:"attempt"`
	QuestionType   QuestionType `json:"q_type,omitempty"`
	ReactionTimeMs int64        `json:"rt_ms"`
	RawAnswer      string       `json:"answer_raw"`
	NormAnswer     string       `json:"answer_norm"`
	Correct        *bool        `json:"correct,omitempty"`
	Estimate       *int         `json:"predicted_correct,omitempty"`
	Timestamp      string       `json:"ts"`
}

// Graded reports whether the record carries a correctness value (meta records do not).
func (t TrialRecord) Graded() bool { return t.Correct != nil }

// IsCorrect is false for ungraded records.
func (t TrialRecord) IsCorrect() bool { return t.Correct != nil && *t.Correct }

var studentIDPattern = regexp.MustCompile(`^[0-9]{8}$`)

// ValidStudentID reports whether id is an 8-digit student number.
func ValidStudentID(id string) bool {
	return studentIDPattern.MatchString(id)
}
