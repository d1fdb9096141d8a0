package lyralink

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// ErrExpired is returned for links older than the validity window. It wraps
// ErrNotFound, so callers only interested in "resolvable or not" can check
// for ErrNotFound alone.
var ErrExpired = xerrors.Errorf("link expired: %w", ErrNotFound)

// Resolver translates short codes back into their original URLs.
type Resolver struct {
	store   Store
	window  time.Duration
	logger  *zap.Logger
	metrics *Metrics

	now func() time.Time
}

// NewResolver returns a Resolver reading from s. A positive validityWindow
// makes links older than the window resolve as expired; they stay in the
// store. l and m may be nil.
func NewResolver(s Store, validityWindow time.Duration, l *zap.Logger, m *Metrics) *Resolver {
	if l == nil {
		l = zap.NewNop()
	}

	return &Resolver{
		store:   s,
		window:  validityWindow,
		logger:  l,
		metrics: m,
		now:     time.Now,
	}
}

// Resolve returns the link with the given short code.
func (r *Resolver) Resolve(ctx context.Context, code string) (Link, error) {
	ctx, span := tracer.Start(ctx, "Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("lyralink.short_code", code))

	l, err := r.store.FindByShortCode(ctx, code)
	if err != nil {
		if xerrors.Is(err, ErrNotFound) {
			r.metrics.resolved("not_found")
			return Link{}, ErrNotFound
		}
		r.metrics.resolved("error")
		r.logger.Error("looking up short code failed", zap.String("code", code), zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return Link{}, xerrors.Errorf("error resolving short code %s: %w", code, err)
	}

	if r.expired(l) {
		r.metrics.resolved("expired")
		r.logger.Debug("short code expired", zap.String("code", code), zap.Time("created_at", l.CreatedAt))
		return Link{}, ErrExpired
	}

	r.metrics.resolved("found")
	return l, nil
}

// ValidUntil returns the point in time l stops resolving. ok is false when
// no validity window is configured.
func (r *Resolver) ValidUntil(l Link) (until time.Time, ok bool) {
	if r.window <= 0 {
		return time.Time{}, false
	}
	return l.CreatedAt.Add(r.window), true
}

func (r *Resolver) expired(l Link) bool {
	until, ok := r.ValidUntil(l)
	return ok && r.now().After(until)
}
