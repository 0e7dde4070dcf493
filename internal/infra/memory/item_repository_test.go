package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"srp-quiz-service/internal/domain"
	"srp-quiz-service/internal/itempool"
)

func TestItemRepositoryCaches(t *testing.T) {
	source := &countingSource{Source: NewStaticSource(sampleRows())}
	repo := NewItemRepository(source, time.Minute)

	pool, err := repo.GetPool(context.Background())
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", pool.Len())
	}
	if source.calls != 1 {
		t.Fatalf("expected source once, got %d", source.calls)
	}

	if _, err := repo.GetPool(context.Background()); err != nil {
		t.Fatalf("get pool 2: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls %d", source.calls)
	}
}

func TestItemRepositoryReloadsAfterExpiry(t *testing.T) {
	source := &countingSource{Source: NewStaticSource(sampleRows())}
	repo := NewItemRepository(source, time.Minute)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	if _, err := repo.GetPool(context.Background()); err != nil {
		t.Fatalf("get pool: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := repo.GetPool(context.Background()); err != nil {
		t.Fatalf("get pool after expiry: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected reload after expiry, calls %d", source.calls)
	}
}

func TestItemRepositoryDoesNotCacheFailures(t *testing.T) {
	boom := errors.New("fetch failed")
	source := &countingSource{Source: NewFailingSource(boom)}
	repo := NewItemRepository(source, time.Minute)

	if _, err := repo.GetPool(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
	if _, err := repo.GetPool(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected source error again, got %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected failing load retried, calls %d", source.calls)
	}

	empty := NewItemRepository(NewStaticSource(nil), time.Minute)
	if _, err := empty.GetPool(context.Background()); err == nil {
		t.Fatalf("expected error for empty source")
	}
}

type countingSource struct {
	itempool.Source
	calls int
}

func (s *countingSource) LoadRows(ctx context.Context) ([]domain.RawRow, error) {
	s.calls++
	return s.Source.LoadRows(ctx)
}

func sampleRows() []domain.RawRow {
	return []domain.RawRow{
		{ID: "u1", Topic: "units", Week: "6", Answers: "m s^-1||m/s"},
		{ID: "o1", Topic: "organic", Week: "6", Answers: "ethanol"},
	}
}
