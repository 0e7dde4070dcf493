package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srp-quiz-service/internal/domain"
)

func TestResultStoreIsWriteOnce(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	status, err := store.Status(ctx, "12345678", 6)
	require.NoError(t, err)
	assert.False(t, status.Exists)

	res, err := store.Submit(ctx, sampleResult(false))
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "results/6/12345678.json", res.Key)

	dup, err := store.Submit(ctx, sampleResult(false))
	require.NoError(t, err)
	assert.False(t, dup.Accepted)
	assert.Equal(t, domain.ReasonAlreadyExists, dup.Reason)

	status, err = store.Status(ctx, "12345678", 6)
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.Equal(t, "2025-03-01T09:30:00.000Z", status.CompletedAt)

	re, err := store.Submit(ctx, sampleResult(true))
	require.NoError(t, err)
	assert.True(t, re.Accepted)

	n, err := store.Count(ctx, "12345678")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestOpenCreatesFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "results.db")
	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.Submit(context.Background(), sampleResult(false))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	status, err := reopened.Status(context.Background(), "12345678", 6)
	require.NoError(t, err)
	assert.True(t, status.Exists)
}

func sampleResult(reattempt bool) domain.SessionResult {
	correct := false
	return domain.SessionResult{
		SessionID:     "s-1",
		StudentNumber: "12345678",
		Week:          6,
		TopicsRun:     []string{"units"},
		StartedAt:     "2025-03-01T09:00:00.000Z",
		CompletedAt:   "2025-03-01T09:30:00.000Z",
		Trials:        []domain.TrialRecord{{TrialIndex: 1, ItemID: "u1", Topic: "units", Week: 6, Phase: domain.PhaseFirstPass, Attempt: 1, Correct: &correct}},
		Reattempt:     reattempt,
	}
}
