package domain

import "errors"

var (
	// ErrInvalidStudentID is returned when a student number is not exactly 8 digits.
	ErrInvalidStudentID = errors.New("enter an 8-digit student number")
	// ErrInvalidWeek is returned when a week has no configured topics.
	ErrInvalidWeek = errors.New("select a valid week")
	// ErrItemsUnavailable indicates the item source could not be fetched or parsed.
	ErrItemsUnavailable = errors.New("practice items unavailable")
	// ErrEmptyPool indicates a topic has no items for the requested week.
	ErrEmptyPool = errors.New("no items for topic")
	// ErrSubmissionFailed indicates the result sink was unreachable or failed the write.
	ErrSubmissionFailed = errors.New("result submission failed")
	// ErrInvalidResult indicates an ingested result document failed validation.
	ErrInvalidResult = errors.New("invalid result document")

	// ErrSessionNotFound is returned when a practice session does not exist (or was reset).
	ErrSessionNotFound = errors.New("practice session not found")
	// ErrSessionReset is returned for any operation on a session after it was abandoned.
	ErrSessionReset = errors.New("practice session was reset")
	// ErrSessionIncomplete is returned when results are requested before every topic ran.
	ErrSessionIncomplete = errors.New("practice session still has topics to run")
	// ErrTopicInProgress is returned when advancing while the current topic is unfinished.
	ErrTopicInProgress = errors.New("current topic is not complete")
	// ErrNoActiveTopic is returned when answering with no topic running.
	ErrNoActiveTopic = errors.New("no topic in progress")
	// ErrTopicComplete is returned when submitting to a topic run that already finished.
	ErrTopicComplete = errors.New("topic already complete")
	// ErrItemMismatch is returned when an answer targets an item other than the one presented.
	ErrItemMismatch = errors.New("answer does not match the presented item")
	// ErrEstimateClosed is returned when an estimate arrives after the topic's first answer.
	ErrEstimateClosed = errors.New("estimate must precede the topic's first item")
	// ErrInvalidGoal indicates a mastery goal below 1.
	ErrInvalidGoal = errors.New("mastery goal must be at least 1")
	// ErrDuplicateItem indicates two items in one topic share an ID.
	ErrDuplicateItem = errors.New("duplicate item id")
)

// IsValidation reports whether err should be shown to the operator as a re-prompt.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidStudentID) || errors.Is(err, ErrInvalidWeek)
}
