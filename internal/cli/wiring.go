package cli

import (
	"context"
	"fmt"
	"time"

	"srp-quiz-service/internal/app"
	"srp-quiz-service/internal/config"
	"srp-quiz-service/internal/infra/filesource"
	"srp-quiz-service/internal/infra/gcs"
	"srp-quiz-service/internal/infra/memory"
	pgstore "srp-quiz-service/internal/infra/postgres"
	redisstore "srp-quiz-service/internal/infra/redis"
	"srp-quiz-service/internal/infra/sqlite"
	"srp-quiz-service/internal/itempool"
	"srp-quiz-service/internal/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// deps holds the external clients opened from config. Nil fields are not configured.
type deps struct {
	redis   *redis.Client
	pg      *pgxpool.Pool
	closers []func()
}

func openDeps(ctx context.Context, cfg config.Config) (*deps, error) {
	d := &deps{}
	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { _ = d.redis.Close() })
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.pg = pool
		d.closers = append(d.closers, pool.Close)
	}
	return d, nil
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func itemSource(cfg config.Config, d *deps) (itempool.Source, error) {
	switch cfg.Items.Source {
	case "postgres":
		if d.pg == nil {
			return nil, fmt.Errorf("items source postgres needs postgres.url")
		}
		return pgstore.NewItemLoader(d.pg), nil
	case "csv", "xlsx", "":
		return filesource.Open(cfg.Items.Path, cfg.Items.Sheet), nil
	default:
		return nil, fmt.Errorf("unknown items source %q", cfg.Items.Source)
	}
}

func itemRepository(cfg config.Config, d *deps, source itempool.Source, log *logger.Logger) app.ItemRepository {
	ttl := config.TTLDuration(cfg.Items.TTL, 10*time.Minute)
	if d.redis != nil {
		return redisstore.NewItemRepository(d.redis, source, ttl).WithLogger(log)
	}
	return memory.NewItemRepository(source, ttl).WithLogger(log)
}

func sessionStore(cfg config.Config, d *deps) app.SessionRepository {
	if d.redis != nil {
		return redisstore.NewSessionStore(d.redis, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour))
	}
	return memory.NewSessionStore()
}

func resultSink(ctx context.Context, cfg config.Config, d *deps) (app.ResultSink, error) {
	switch cfg.Results.Backend {
	case "memory", "":
		return memory.NewResultStore(), nil
	case "redis":
		if d.redis == nil {
			return nil, fmt.Errorf("results backend redis needs redis.addr")
		}
		return redisstore.NewResultStore(d.redis), nil
	case "postgres":
		if d.pg == nil {
			return nil, fmt.Errorf("results backend postgres needs postgres.url")
		}
		return pgstore.NewResultStore(d.pg), nil
	case "sqlite":
		path := cfg.Results.SQLitePath
		if path == "" {
			path = "data/results.db"
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = store.Close() })
		return store, nil
	case "gcs":
		if cfg.Results.GCSBucket == "" {
			return nil, fmt.Errorf("results backend gcs needs results.gcs_bucket")
		}
		client, err := gcs.NewClient(ctx, cfg.Results.EmulatorHost)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		d.closers = append(d.closers, func() { _ = client.Close() })
		return gcs.NewResultStore(client, cfg.Results.GCSBucket), nil
	default:
		return nil, fmt.Errorf("unknown results backend %q", cfg.Results.Backend)
	}
}
