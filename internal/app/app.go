package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/david/campaign-radar/internal/cache"
	"github.com/david/campaign-radar/internal/config"
	"github.com/david/campaign-radar/internal/db"
	"github.com/david/campaign-radar/internal/ingest"
	"github.com/david/campaign-radar/internal/logger"
)

// Runtime holds the collaborators shared by the server and the tools.
type Runtime struct {
	Config   config.Config
	Log      *logger.Logger
	Clock    func() time.Time
	Registry *ingest.Registry
	Pipeline *ingest.Pipeline

	// Store is set when DATABASE_URL is configured.
	Store *db.Store

	pool  *pgxpool.Pool
	redis *redis.Client
}

// Build connects the configured backends and assembles the collection pipeline.
func Build(ctx context.Context, cfg config.Config, log *logger.Logger) (*Runtime, error) {
	if log == nil {
		log = logger.NewNop()
	}
	rt := &Runtime{
		Config: cfg,
		Log:    log,
		Clock:  clockIn(cfg.Location),
	}

	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		rt.pool = pool
		if err := db.ApplyMigrations(ctx, pool, log); err != nil {
			rt.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		rt.Store = db.NewStore(pool)
		rt.Store.Now = rt.Clock
	}

	store, err := rt.cacheStore(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	reg, err := ingest.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load source registry: %w", err)
	}
	rt.Registry = reg

	fetcher, err := ingest.NewFetcher(cfg.Fetcher, cfg.FetchTimeout)
	if err != nil {
		rt.Close()
		return nil, err
	}

	collectors := ingest.NewAdapters(reg, fetcher, log)
	for _, c := range collectors {
		if a, ok := c.(*ingest.SourceAdapter); ok {
			a.Now = rt.Clock
		}
	}

	p := ingest.NewPipeline(collectors, store, log)
	p.Now = rt.Clock
	p.TTL = cfg.CacheTTL
	p.Parallelism = cfg.Parallelism
	rt.Pipeline = p

	log.Info("runtime ready",
		"cache_backend", string(cfg.CacheBackend),
		"fetcher", cfg.Fetcher,
		"sources", len(collectors),
		"profiles", rt.Store != nil,
	)
	return rt, nil
}

func (rt *Runtime) cacheStore(ctx context.Context) (cache.Store, error) {
	switch rt.Config.CacheBackend {
	case config.CacheRedis:
		client, err := cache.Connect(ctx, rt.Config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rt.redis = client
		return cache.NewRedisStore(client), nil
	case config.CachePostgres:
		if rt.Store == nil {
			return nil, fmt.Errorf("postgres cache backend requires DATABASE_URL")
		}
		return rt.Store.CampaignCache(), nil
	default:
		return cache.NewFileStore(rt.Config.CacheFile), nil
	}
}

func (rt *Runtime) Close() {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
}

func clockIn(loc *time.Location) func() time.Time {
	if loc == nil {
		return time.Now
	}
	return func() time.Time { return time.Now().In(loc) }
}
