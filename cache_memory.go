package lyralink

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-process Cache with per-entry expiration.
type MemoryCache struct {
	c *gocache.Cache
}

var _ Cache = &MemoryCache{}

// NewMemoryCache returns a cache keeping entries for ttl. A non-positive ttl
// keeps entries forever.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		return &MemoryCache{c: gocache.New(gocache.NoExpiration, 0)}
	}
	return &MemoryCache{c: gocache.New(ttl, 2*ttl)}
}

func (m *MemoryCache) Get(_ context.Context, code string) (Link, bool, error) {
	v, ok := m.c.Get(code)
	if !ok {
		return Link{}, false, nil
	}
	return v.(Link), true, nil
}

func (m *MemoryCache) Set(_ context.Context, l Link) error {
	m.c.SetDefault(l.ShortCode, l)
	return nil
}
