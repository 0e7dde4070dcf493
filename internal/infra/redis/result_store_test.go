package redis

import (
	"context"
	"testing"

	"srp-quiz-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestResultStoreIsWriteOnce(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewResultStore(newClient(mr))
	ctx := context.Background()

	status, err := store.Status(ctx, "12345678", 6)
	if err != nil || status.Exists {
		t.Fatalf("expected no prior submission, got %+v %v", status, err)
	}

	res, err := store.Submit(ctx, sampleResult(false))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Accepted || res.Key != "results/6/12345678.json" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !mr.Exists("srp:results/6/12345678.json") {
		t.Fatalf("expected document stored")
	}

	dup, err := store.Submit(ctx, sampleResult(false))
	if err != nil {
		t.Fatalf("duplicate submit: %v", err)
	}
	if dup.Accepted || dup.Reason != domain.ReasonAlreadyExists {
		t.Fatalf("expected already_exists, got %+v", dup)
	}

	status, err = store.Status(ctx, "12345678", 6)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Exists || status.CompletedAt != "2025-03-01T09:30:00.000Z" {
		t.Fatalf("unexpected status: %+v", status)
	}

	again, err := store.Submit(ctx, sampleResult(true))
	if err != nil || !again.Accepted {
		t.Fatalf("expected reattempt accepted, got %+v %v", again, err)
	}
	if again.Key != "results/6/12345678/reattempt-20250301T093000.000000000Z.json" {
		t.Fatalf("unexpected reattempt key %q", again.Key)
	}
}

func TestResultStoreSurfacesConnectionErrors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	store := NewResultStore(newClient(mr))
	mr.Close()

	if _, err := store.Submit(context.Background(), sampleResult(false)); err == nil {
		t.Fatalf("expected submit error with redis down")
	}
	if _, err := store.Status(context.Background(), "12345678", 6); err == nil {
		t.Fatalf("expected status error with redis down")
	}
}

func sampleResult(reattempt bool) domain.SessionResult {
	correct := true
	return domain.SessionResult{
		SessionID:     "s-1",
		StudentNumber: "12345678",
		Week:          6,
		TopicsRun:     []string{"organic"},
		StartedAt:     "2025-03-01T09:00:00.000Z",
		CompletedAt:   "2025-03-01T09:30:00.000Z",
		Trials:        []domain.TrialRecord{{TrialIndex: 1, ItemID: "o1", Topic: "organic", Week: 6, Phase: domain.PhaseFirstPass, Attempt: 1, Correct: &correct}},
		Reattempt:     reattempt,
	}
}
