package lyralink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/xerrors"
)

const redisKeyPrefix = "lyralink:"

// RedisCache is a Cache shared by all instances talking to the same Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = &RedisCache{}

// NewRedisCache stores entries in client for ttl. A non-positive ttl keeps
// entries until Redis evicts them.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisCache) Get(ctx context.Context, code string) (Link, bool, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+code).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Link{}, false, nil
		}
		return Link{}, false, xerrors.Errorf("error reading %s from Redis: %w", code, err)
	}

	var l Link
	if err := json.Unmarshal(raw, &l); err != nil {
		return Link{}, false, xerrors.Errorf("error decoding cached link %s: %w", code, err)
	}
	return l, true, nil
}

func (r *RedisCache) Set(ctx context.Context, l Link) error {
	raw, err := json.Marshal(l)
	if err != nil {
		return xerrors.Errorf("error encoding link %s: %w", l.ShortCode, err)
	}

	err = r.client.Set(ctx, redisKeyPrefix+l.ShortCode, raw, r.ttl).Err()
	if err != nil {
		return xerrors.Errorf("error writing %s to Redis: %w", l.ShortCode, err)
	}
	return nil
}
