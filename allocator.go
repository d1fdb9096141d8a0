package lyralink

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// ErrAllocationExhausted is returned when no free short code was found
// within the policy's attempt cap.
var ErrAllocationExhausted = errors.New("short code allocation exhausted")

// AllocationPolicy tunes how candidate codes are drawn.
type AllocationPolicy struct {
	// StartLength is the length of the first candidate.
	StartLength int `mapstructure:"start_length"`
	// AttemptsPerLength is how many collisions are tolerated at one length
	// before the length grows by one. 1 grows on every collision.
	AttemptsPerLength int `mapstructure:"attempts_per_length"`
	// MaxAttempts caps the total number of inserts per allocation.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// DefaultAllocationPolicy is used for zero fields of a policy.
var DefaultAllocationPolicy = AllocationPolicy{
	StartLength:       3,
	AttemptsPerLength: 4,
	MaxAttempts:       64,
}

func (p AllocationPolicy) withDefaults() AllocationPolicy {
	if p.StartLength <= 0 {
		p.StartLength = DefaultAllocationPolicy.StartLength
	}
	if p.AttemptsPerLength <= 0 {
		p.AttemptsPerLength = DefaultAllocationPolicy.AttemptsPerLength
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultAllocationPolicy.MaxAttempts
	}
	return p
}

// Allocator hands out short codes for long URLs. It keeps no state between
// calls; uniqueness is enforced by the store.
type Allocator struct {
	store   Store
	policy  AllocationPolicy
	logger  *zap.Logger
	metrics *Metrics

	draw func(n int) (string, error)
	now  func() time.Time
}

// NewAllocator returns an Allocator persisting links to s. l and m may be nil.
func NewAllocator(s Store, p AllocationPolicy, l *zap.Logger, m *Metrics) *Allocator {
	if l == nil {
		l = zap.NewNop()
	}

	return &Allocator{
		store:   s,
		policy:  p.withDefaults(),
		logger:  l,
		metrics: m,
		draw:    RandomCode,
		now:     time.Now,
	}
}

// Allocate returns the link for longURL, minting a new short code if the URL
// was never seen before. longURL is stored as given.
func (a *Allocator) Allocate(ctx context.Context, longURL string) (Link, error) {
	ctx, span := tracer.Start(ctx, "Allocate")
	defer span.End()

	l, err := a.existing(ctx, longURL)
	if err == nil {
		span.SetAttributes(attribute.String("lyralink.short_code", l.ShortCode), attribute.Bool("lyralink.existing", true))
		return l, nil
	}
	if !xerrors.Is(err, ErrNotFound) {
		span.SetStatus(codes.Error, err.Error())
		return Link{}, err
	}

	l, attempts, err := a.mint(ctx, longURL)
	span.SetAttributes(attribute.Int("lyralink.attempts", attempts))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Link{}, err
	}

	span.SetAttributes(attribute.String("lyralink.short_code", l.ShortCode))
	return l, nil
}

// existing is the dedup fast path.
func (a *Allocator) existing(ctx context.Context, longURL string) (Link, error) {
	l, err := a.store.FindByOriginalURL(ctx, longURL)
	if err != nil {
		if xerrors.Is(err, ErrNotFound) {
			return Link{}, err
		}
		a.logger.Error("looking up URL failed", zap.String("url", longURL), zap.Error(err))
		return Link{}, xerrors.Errorf("error looking up existing link: %w", err)
	}

	a.metrics.allocated("existing")
	a.logger.Debug("reusing existing short code", zap.String("url", longURL), zap.String("code", l.ShortCode))
	return l, nil
}

// mint draws candidates until one is accepted by the store.
func (a *Allocator) mint(ctx context.Context, longURL string) (Link, int, error) {
	length := a.policy.StartLength
	attempts, collisionsAtLength := 0, 0

	for attempts < a.policy.MaxAttempts {
		attempts++

		code, err := a.draw(length)
		if err != nil {
			return Link{}, attempts, xerrors.Errorf("error drawing candidate code: %w", err)
		}

		l, err := a.store.Insert(ctx, code, longURL, a.now().UTC().Truncate(time.Microsecond))
		switch {
		case err == nil:
			a.metrics.allocated("created")
			a.metrics.observeAttempts(attempts)
			a.logger.Info("shortened", zap.String("url", longURL), zap.String("code", l.ShortCode), zap.Int("attempts", attempts))
			return l, attempts, nil

		case xerrors.Is(err, ErrDuplicateURL):
			// a concurrent allocation for the same URL won
			l, err := a.existing(ctx, longURL)
			if err != nil {
				return Link{}, attempts, xerrors.Errorf("error reading link of concurrent allocation: %w", err)
			}
			return l, attempts, nil

		case xerrors.Is(err, ErrDuplicateCode):
			a.metrics.collided()
			a.logger.Debug("short code collision", zap.String("code", code), zap.Int("attempt", attempts))

			// stores without a URL constraint can only tell us about the code,
			// so check whether a racing allocation stored our URL meanwhile
			l, err := a.existing(ctx, longURL)
			if err == nil {
				return l, attempts, nil
			}
			if !xerrors.Is(err, ErrNotFound) {
				return Link{}, attempts, err
			}

			collisionsAtLength++
			if collisionsAtLength >= a.policy.AttemptsPerLength {
				length++
				collisionsAtLength = 0
			}

		default:
			a.logger.Error("inserting link failed", zap.String("url", longURL), zap.String("code", code), zap.Error(err))
			return Link{}, attempts, xerrors.Errorf("error adding link to store: %w", err)
		}
	}

	a.logger.Error("no free short code found", zap.String("url", longURL), zap.Int("attempts", attempts), zap.Int("length", length))
	return Link{}, attempts, xerrors.Errorf("gave up after %d attempts (last length %d): %w", attempts, length, ErrAllocationExhausted)
}
