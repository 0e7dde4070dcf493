package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"srp-quiz-service/internal/domain"
	"srp-quiz-service/internal/itempool"
	"srp-quiz-service/internal/logger"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefaultItemsKey holds the raw item rows as a JSON array.
const DefaultItemsKey = "srp:items:rows"

// ItemRepository caches the raw item rows in Redis and falls back to the source on a miss.
// The pool is rebuilt from the cached rows so every instance applies the same load rules.
// A failed load leaves the cache empty.
type ItemRepository struct {
	client *redis.Client
	source itempool.Source
	ttl    time.Duration
	key    string
	sf     singleflight.Group
	rnd    *rand.Rand
	log    *logger.Logger
}

func NewItemRepository(client *redis.Client, source itempool.Source, ttl time.Duration) *ItemRepository {
	return &ItemRepository{
		client: client,
		source: source,
		ttl:    ttl,
		key:    DefaultItemsKey,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithLogger reports each fresh load to log.
func (r *ItemRepository) WithLogger(log *logger.Logger) *ItemRepository {
	r.log = log
	return r
}

func (r *ItemRepository) GetPool(ctx context.Context) (itempool.Pool, error) {
	if rows, ok := r.cachedRows(ctx); ok {
		return itempool.Load(rows)
	}

	result, err, _ := r.sf.Do(r.key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if rows, ok := r.cachedRows(ctx); ok {
			return itempool.Load(rows)
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

		if data, err := json.Marshal(rows); err == nil {
			_ = r.client.Set(ctx, r.key, data, r.ttlWithJitter()).Err()
		}
		return pool, nil
	})
	if err != nil {
		return itempool.Pool{}, err
	}
	return result.(itempool.Pool), nil
}

// Prime replaces the cached rows after an import so instances stop serving the
// old sheet before the TTL runs out. Rows the pool would reject are not cached.
func (r *ItemRepository) Prime(ctx context.Context, rows []domain.RawRow) error {
	if _, err := itempool.Load(rows); err != nil {
		return err
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, data, r.ttlWithJitter()).Err()
}

func (r *ItemRepository) cachedRows(ctx context.Context) ([]domain.RawRow, bool) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		return nil, false
	}
	var rows []domain.RawRow
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return nil, false
	}
	return rows, true
}

func (r *ItemRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
