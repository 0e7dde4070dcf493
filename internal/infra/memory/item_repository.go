package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"srp-quiz-service/internal/domain"
	"srp-quiz-service/internal/itempool"
	"srp-quiz-service/internal/logger"
	"golang.org/x/sync/singleflight"
)

const poolKey = "pool"

// ItemRepository caches the loaded item pool with TTL to avoid re-reading the source.
// A failed load is never cached.
type ItemRepository struct {
	source itempool.Source
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	log    *logger.Logger

	mu        sync.RWMutex
	pool      itempool.Pool
	expiresAt time.Time
	loaded    bool
}

func NewItemRepository(source itempool.Source, ttl time.Duration) *ItemRepository {
	return &ItemRepository{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithLogger reports each fresh load to log.
func (r *ItemRepository) WithLogger(log *logger.Logger) *ItemRepository {
	r.log = log
	return r
}

func (r *ItemRepository) GetPool(ctx context.Context) (itempool.Pool, error) {
	if pool, ok := r.cached(r.clock()); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(poolKey, func() (interface{}, error) {
		now := r.clock()
		if pool, ok := r.cached(now); ok {
			return pool, nil
		}

		rows, err := r.source.LoadRows(ctx)
		if err != nil {
			return itempool.Pool{}, err
		}
		pool, err := itempool.Load(rows)
		if err != nil {
			return itempool.Pool{}, err
		}
		pool.Report(r.log)

		r.mu.Lock()
		r.pool = pool
		r.loaded = true
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return itempool.Pool{}, err
	}
	return result.(itempool.Pool), nil
}

func (r *ItemRepository) cached(now time.Time) (itempool.Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.loaded && (r.ttl <= 0 || r.expiresAt.After(now)) {
		return r.pool, true
	}
	return itempool.Pool{}, false
}

func (r *ItemRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticSource is a row source backed by a slice (useful for tests/demos).
type StaticSource struct {
	rows []domain.RawRow
	err  error
}

func NewStaticSource(rows []domain.RawRow) *StaticSource {
	return &StaticSource{rows: rows}
}

// NewFailingSource returns a source whose loads always fail with err.
func NewFailingSource(err error) *StaticSource {
	return &StaticSource{err: err}
}

func (s *StaticSource) LoadRows(_ context.Context) ([]domain.RawRow, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.RawRow(nil), s.rows...), nil
}
