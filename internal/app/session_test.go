package app_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srp-quiz-service/internal/app"
	"srp-quiz-service/internal/config"
	"srp-quiz-service/internal/domain"
	"srp-quiz-service/internal/itempool"
	"srp-quiz-service/internal/mastery"
)

func newSession(t *testing.T, week int, rows []domain.RawRow, catalog app.Catalog) *app.Session {
	t.Helper()
	pool, err := itempool.Load(rows)
	require.NoError(t, err)
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return app.NewSession(app.SessionOptions{
		ID:        "s-1",
		StudentID: "12345678",
		Week:      week,
		Catalog:   catalog,
		Pool:      pool,
		Seed:      func() uint64 { return 7 },
		Now: func() time.Time {
			clock = clock.Add(250 * time.Millisecond)
			return clock
		},
	})
}

func TestSessionSkipsTopicWithoutItems(t *testing.T) {
	q := config.Quiz{Weeks: map[int][]string{9: {"organic", "units"}}}
	rows := []domain.RawRow{
		{ID: "u9", Topic: "units", Week: "9", Answers: "kg"},
		{ID: "o6", Topic: "organic", Week: "6", Answers: "ethanol"},
	}
	s := newSession(t, 9, rows, app.NewCatalog(q))

	step, err := s.Advance()
	require.NoError(t, err)
	assert.Equal(t, "units", step.Topic)
	assert.Equal(t, []string{"organic"}, step.Skipped)
	require.NotNil(t, step.First)
	assert.Equal(t, "u9", step.First.Item.ID)

	fb, err := s.Submit(mastery.Answer{ItemID: "u9", Raw: "KG"})
	require.NoError(t, err)
	assert.True(t, fb.Correct)
	assert.Equal(t, mastery.EffectTopicComplete, fb.Effect)

	step, err = s.Advance()
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.True(t, step.Finalized)
	assert.Equal(t, domain.Summary{Total: 1, Correct: 1}, *step.Summary)

	again, err := s.Advance()
	require.NoError(t, err)
	assert.True(t, again.Done)
	assert.False(t, again.Finalized)

	for _, tr := range s.Trials() {
		assert.NotEqual(t, "organic", tr.Topic)
	}
	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"organic", "units"}, res.TopicsRun)
}

func TestSessionEstimateBeforeFirstAnswerOnly(t *testing.T) {
	s := newSession(t, 6, testRows(), testCatalog())

	_, err := s.Estimate(1)
	assert.ErrorIs(t, err, domain.ErrNoActiveTopic)

	step, err := s.Advance()
	require.NoError(t, err)

	rec, err := s.Estimate(2)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseMeta, rec.Phase)
	assert.Equal(t, 1, rec.TrialIndex)
	assert.False(t, rec.Graded())
	require.NotNil(t, rec.Estimate)
	assert.Equal(t, 2, *rec.Estimate)

	_, err = s.Estimate(3)
	assert.ErrorIs(t, err, domain.ErrEstimateClosed)

	_, err = s.Submit(mastery.Answer{ItemID: step.First.Item.ID, Raw: step.First.Item.Answers.Canonical()})
	require.NoError(t, err)
}

func TestSessionTrialIndicesAreContiguous(t *testing.T) {
	s := newSession(t, 6, testRows(), testCatalog())

	graded := 0
	for {
		step, err := s.Advance()
		require.NoError(t, err)
		if step.Done {
			break
		}
		_, err = s.Estimate(1)
		require.NoError(t, err)

		p := step.First
		wrongOnce := true
		for p != nil {
			raw := p.Item.Answers.Canonical()
			if wrongOnce {
				raw = "nope"
				wrongOnce = false
			}
			fb, err := s.Submit(mastery.Answer{ItemID: p.Item.ID, Raw: raw, ReactionTime: 800 * time.Millisecond})
			require.NoError(t, err)
			graded++
			if !fb.Correct {
				assert.NotEmpty(t, fb.Canonical)
			}
			p = fb.Next
		}
	}

	trials := s.Trials()
	assert.Len(t, trials, graded+2)
	prev := ""
	for i, tr := range trials {
		assert.Equal(t, i+1, tr.TrialIndex)
		assert.GreaterOrEqual(t, tr.Timestamp, prev)
		prev = tr.Timestamp
	}
	sum := domain.Summarize(trials)
	assert.Equal(t, graded, sum.Total)
	assert.Equal(t, graded-2, sum.Correct)
}

func TestSessionGoalFourNeedsRepeatedSweeps(t *testing.T) {
	s := newSession(t, 12, testRows(), testCatalog())

	var inorganic app.TopicStep
	for {
		step, err := s.Advance()
		require.NoError(t, err)
		require.False(t, step.Done, "inorganic topic never started")
		if step.Topic == "inorganic" {
			inorganic = step
			break
		}
		p := step.First
		for p != nil {
			fb, err := s.Submit(mastery.Answer{ItemID: p.Item.ID, Raw: p.Item.Answers.Canonical()})
			require.NoError(t, err)
			p = fb.Next
		}
	}
	assert.Equal(t, 4, inorganic.Goal)

	perItem := map[string]int{}
	p := inorganic.First
	for p != nil {
		fb, err := s.Submit(mastery.Answer{ItemID: p.Item.ID, Raw: p.Item.Answers.Canonical()})
		require.NoError(t, err)
		perItem[p.Item.ID]++
		p = fb.Next
	}
	assert.Equal(t, map[string]int{"i12a": 4, "i12b": 4}, perItem)
}

func TestSessionRejectsOutOfOrderCalls(t *testing.T) {
	s := newSession(t, 7, testRows(), testCatalog())

	_, err := s.Submit(mastery.Answer{ItemID: "u7", Raw: "mol"})
	assert.ErrorIs(t, err, domain.ErrNoActiveTopic)

	_, err = s.Result()
	assert.ErrorIs(t, err, domain.ErrSessionIncomplete)

	_, err = s.Advance()
	require.NoError(t, err)
	_, err = s.Advance()
	assert.ErrorIs(t, err, domain.ErrTopicInProgress)

	_, err = s.Submit(mastery.Answer{ItemID: "other", Raw: "mol"})
	assert.True(t, errors.Is(err, domain.ErrItemMismatch))

	s.Reset()
	_, err = s.Submit(mastery.Answer{ItemID: "u7", Raw: "mol"})
	assert.ErrorIs(t, err, domain.ErrSessionReset)
	_, err = s.Result()
	assert.ErrorIs(t, err, domain.ErrSessionReset)
}

func TestSessionResultDocument(t *testing.T) {
	s := newSession(t, 7, testRows(), testCatalog())

	step, err := s.Advance()
	require.NoError(t, err)
	s.RecordBlur()
	s.RecordBlur()
	_, err = s.Submit(mastery.Answer{ItemID: step.First.Item.ID, Raw: " MOL "})
	require.NoError(t, err)
	_, err = s.Advance()
	require.NoError(t, err)

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, "12345678", res.StudentNumber)
	assert.Equal(t, 7, res.Week)
	assert.Equal(t, 2, res.VisibilityBlurs)
	assert.Equal(t, "results/7/12345678.json", res.StorageKey(time.Now()))
	assert.Less(t, res.StartedAt, res.CompletedAt)
	require.Len(t, res.Trials, 1)
	assert.Equal(t, " MOL ", res.Trials[0].RawAnswer)
	assert.Equal(t, "mol", res.Trials[0].NormAnswer)
	assert.Equal(t, domain.PhaseFirstPass, res.Trials[0].Phase)
}
