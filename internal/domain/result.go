package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReasonAlreadyExists is the rejection reason for a duplicate first attempt.
const ReasonAlreadyExists = "already_exists"

// Device describes the client viewport and user agent.
type Device struct {
	W  int    `json:"w"`
	H  int    `json:"h"`
	UA string `json:"ua"`
}

// SessionResult is the document submitted to the result sink once a session finishes.
type SessionResult struct {
	SessionID       string        `json:"session_id"`
	StudentNumber   string        `json:"student_number"`
	Week            int           `json:"week"`
	TopicsRun       []string      `json:"topics_run"`
	StartedAt       string        `json:"started_at"`
	CompletedAt     string        `json:"completed_at"`
	Device          Device        `json:"device"`
	VisibilityBlurs int           `json:"visibility_blurs"`
	Trials          []TrialRecord `json:"trials"`
	Reattempt       bool          `json:"reattempt"`
	StoredAt        string        `json:"stored_at,omitempty"`
}

// StorageKey is the natural key: (week, student) for first attempts and
// (week, student, completion time) for reattempts. A reattempt whose
// completed_at is missing or not RFC3339 is keyed on the store time now.
func (r SessionResult) StorageKey(now time.Time) string {
	if !r.Reattempt {
		return FirstAttemptKey(r.Week, r.StudentNumber)
	}
	stamp := now.UTC().Format(reattemptStamp)
	if t, err := time.Parse(time.RFC3339Nano, r.CompletedAt); err == nil {
		stamp = t.UTC().Format(reattemptStamp)
	}
	return fmt.Sprintf("results/%d/%s/reattempt-%s.json", r.Week, r.StudentNumber, stamp)
}

const reattemptStamp = "20060102T150405.000000000Z"

// FirstAttemptKey is the storage key of a student's first attempt for a week.
func FirstAttemptKey(week int, studentNumber string) string {
	return fmt.Sprintf("results/%d/%s.json", week, studentNumber)
}

// SubmitResult is the sink's answer to a submission.
type SubmitResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Key      string `json:"key,omitempty"`
}

// Duplicate builds the rejection for an existing first attempt.
func Duplicate(key string) SubmitResult {
	return SubmitResult{Accepted: false, Reason: ReasonAlreadyExists, Key: key}
}

// SubmissionStatus answers the pre-start check for an existing first attempt.
type SubmissionStatus struct {
	Exists      bool   `json:"exists"`
	CompletedAt string `json:"completedAt,omitempty"`
}

// Summary gives the end-of-session totals over graded trials.
type Summary struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// Summarize counts graded trials and correct ones.
func Summarize(trials []TrialRecord) Summary {
	var s Summary
	for _, t := range trials {
		if !t.Graded() {
			continue
		}
		s.Total++
		if t.IsCorrect() {
			s.Correct++
		}
	}
	return s
}

// Encode stamps stored_at and marshals the document for storage.
func (r SessionResult) Encode(now time.Time) ([]byte, error) {
	r.StoredAt = now.UTC().Format("2006-01-02T15:04:05.000Z")
	return json.Marshal(r)
}
