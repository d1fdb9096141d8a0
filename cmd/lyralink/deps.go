package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/sauerbraten/lyralink"
)

const (
	cacheNone   = "none"
	cacheMemory = "memory"
	cacheRedis  = "redis"
)

// deps holds everything the commands need, built from the configuration.
type deps struct {
	store     lyralink.MigratingStore
	redis     *redis.Client
	metrics   *lyralink.Metrics
	allocator *lyralink.Allocator
	resolver  *lyralink.Resolver
}

// openDeps opens and migrates the store, then wires cache, allocator and resolver.
func openDeps(ctx context.Context, cfg Config, logger *zap.Logger) (*deps, error) {
	store, err := lyralink.OpenStore(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	d := &deps{
		store:   store,
		metrics: lyralink.NewMetrics(),
	}

	if err := store.Migrate(ctx); err != nil {
		d.Close()
		return nil, xerrors.Errorf("error migrating database: %w", err)
	}

	cache, err := d.openCache(ctx, cfg)
	if err != nil {
		d.Close()
		return nil, err
	}

	var s lyralink.Store = store
	if cache != nil {
		s = lyralink.NewCachedStore(store, cache, logger)
	}

	d.allocator = lyralink.NewAllocator(s, cfg.Allocator, logger, d.metrics)
	d.resolver = lyralink.NewResolver(s, cfg.Resolver.ValidityWindow, logger, d.metrics)

	return d, nil
}

func (d *deps) openCache(ctx context.Context, cfg Config) (lyralink.Cache, error) {
	switch cfg.Cache.Kind {
	case cacheNone, "":
		return nil, nil
	case cacheMemory:
		return lyralink.NewMemoryCache(cfg.Cache.TTL), nil
	case cacheRedis:
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err := d.redis.Ping(ctx).Err(); err != nil {
			return nil, xerrors.Errorf("error connecting to Redis at %s: %w", cfg.Cache.Redis.Addr, err)
		}
		return lyralink.NewRedisCache(d.redis, cfg.Cache.TTL), nil
	default:
		return nil, xerrors.Errorf("unknown cache kind %q", cfg.Cache.Kind)
	}
}

// Close releases the database and Redis connections.
func (d *deps) Close() error {
	if d.redis != nil {
		d.redis.Close()
	}
	return d.store.Close()
}
