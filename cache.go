package lyralink

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Cache holds links by short code. Links never change once stored, so
// entries only leave a cache by eviction.
type Cache interface {
	// Get reports ok == false on a miss.
	Get(ctx context.Context, code string) (l Link, ok bool, err error)
	Set(ctx context.Context, l Link) error
}

// CachedStore puts a Cache in front of a Store: lookups by short code are
// cache-aside, inserts are write-through. Lookups by URL always go to the
// store, since the dedup check must see every committed link.
type CachedStore struct {
	Store
	cache  Cache
	logger *zap.Logger
}

var _ Store = &CachedStore{}

// NewCachedStore wraps s with c. l may be nil.
func NewCachedStore(s Store, c Cache, l *zap.Logger) *CachedStore {
	if l == nil {
		l = zap.NewNop()
	}

	return &CachedStore{
		Store:  s,
		cache:  c,
		logger: l,
	}
}

// FindByShortCode serves from the cache if possible. Cache failures are
// logged and fall through to the store.
func (s *CachedStore) FindByShortCode(ctx context.Context, code string) (Link, error) {
	l, ok, err := s.cache.Get(ctx, code)
	if err != nil {
		s.logger.Warn("cache lookup failed", zap.String("code", code), zap.Error(err))
	} else if ok {
		return l, nil
	}

	l, err = s.Store.FindByShortCode(ctx, code)
	if err != nil {
		return Link{}, err
	}

	s.set(ctx, l)
	return l, nil
}

// Insert stores the link and caches it right away.
func (s *CachedStore) Insert(ctx context.Context, code, longURL string, createdAt time.Time) (Link, error) {
	l, err := s.Store.Insert(ctx, code, longURL, createdAt)
	if err != nil {
		return Link{}, err
	}

	s.set(ctx, l)
	return l, nil
}

func (s *CachedStore) set(ctx context.Context, l Link) {
	if err := s.cache.Set(ctx, l); err != nil {
		s.logger.Warn("cache update failed", zap.String("code", l.ShortCode), zap.Error(err))
	}
}
