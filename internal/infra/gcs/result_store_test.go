package gcs

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"srp-quiz-service/internal/domain"
)

func TestResultStoreAgainstEmulator(t *testing.T) {
	host := os.Getenv("STORAGE_EMULATOR_HOST")
	if host == "" {
		t.Skip("STORAGE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := NewClient(ctx, host)
	require.NoError(t, err)
	defer client.Close()

	bucket := fmt.Sprintf("srp-results-%d", time.Now().UnixNano())
	require.NoError(t, client.Bucket(bucket).Create(ctx, "test-project", nil))

	store := NewResultStore(client, bucket)
	correct := true
	result := domain.SessionResult{
		SessionID:     "s-1",
		StudentNumber: "12345678",
		Week:          6,
		CompletedAt:   "2025-03-01T09:30:00.000Z",
		Trials:        []domain.TrialRecord{{TrialIndex: 1, ItemID: "o1", Correct: &correct}},
	}

	res, err := store.Submit(ctx, result)
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	dup, err := store.Submit(ctx, result)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonAlreadyExists, dup.Reason)

	status, err := store.Status(ctx, "12345678", 6)
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.Equal(t, "2025-03-01T09:30:00.000Z", status.CompletedAt)

	missing, err := store.Status(ctx, "87654321", 6)
	require.NoError(t, err)
	assert.False(t, missing.Exists)
}

func TestPreconditionFailureDetection(t *testing.T) {
	assert.False(t, isPreconditionFailed(nil))
	assert.False(t, isPreconditionFailed(fmt.Errorf("boom")))
	assert.False(t, isPreconditionFailed(&googleapi.Error{Code: http.StatusNotFound}))
	assert.True(t, isPreconditionFailed(fmt.Errorf("close: %w", &googleapi.Error{Code: http.StatusPreconditionFailed})))
}
