// Package idgen hands out unique, strictly increasing mapping identifiers from
// a shared cache counter. The counter is seeded lazily from the durable store's
// highest identifier, so a cold or flushed cache never reissues an id.
package idgen

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"shortr/internal/engine/lease"
	"shortr/internal/platform/cache"
	"shortr/internal/platform/metrics"
)

const (
	CounterKey  = "init_url_shortener_id"
	SeedLockKey = CounterKey + ":lock"

	DefaultMaxWait = lease.DefaultTTL
)

// ErrAllocationTimeout is returned when the counter was not seeded by anyone
// within the allocator's wait bound.
var ErrAllocationTimeout = errors.New("id allocation timed out waiting for counter seed")

var errNotSeeded = errors.New("counter not seeded")

// MaxIDSource reports the highest identifier ever persisted, or 0 when none.
type MaxIDSource interface {
	MaxID(ctx context.Context) (uint64, error)
}

type Allocator struct {
	store   cache.Store
	locker  *lease.Locker
	source  MaxIDSource
	maxWait time.Duration
	log     zerolog.Logger
}

func NewAllocator(store cache.Store, source MaxIDSource, maxWait time.Duration, log zerolog.Logger) *Allocator {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Allocator{
		store:   store,
		locker:  lease.NewLocker(store, lease.DefaultTTL),
		source:  source,
		maxWait: maxWait,
		log:     log.With().Str("component", "idgen").Logger(),
	}
}

// Allocate returns the next identifier. No two calls, from any process sharing
// the cache, ever get the same value.
func (a *Allocator) Allocate(ctx context.Context) (uint64, error) {
	id, ok, err := a.next(ctx)
	if err != nil {
		return 0, err
	}
	if ok {
		metrics.IDAllocations.WithLabelValues("warm").Inc()
		return id, nil
	}

	id, ok, err = a.seed(ctx)
	if err != nil {
		return 0, err
	}
	if ok {
		metrics.IDAllocations.WithLabelValues("seeded").Inc()
		return id, nil
	}

	id, err = a.follow(ctx)
	if err != nil {
		return 0, err
	}
	metrics.IDAllocations.WithLabelValues("follower").Inc()
	return id, nil
}

// follow waits for another caller to seed the counter. Each attempt also tries
// to take the seed lease, so an expired lease from a crashed seeder is picked
// up instead of waited out.
func (a *Allocator) follow(ctx context.Context) (uint64, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = a.maxWait

	var id uint64
	op := func() error {
		var (
			ok  bool
			err error
		)
		if id, ok, err = a.next(ctx); err != nil {
			return backoff.Permanent(err)
		} else if ok {
			return nil
		}
		if id, ok, err = a.seed(ctx); err != nil {
			return backoff.Permanent(err)
		} else if ok {
			return nil
		}
		return errNotSeeded
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errNotSeeded) {
			a.log.Warn().Dur("max_wait", a.maxWait).Msg("gave up waiting for counter seed")
			return 0, ErrAllocationTimeout
		}
		return 0, err
	}
	return id, nil
}

// next increments the counter if it exists. The existence check and the
// increment are one atomic step, so an evicted counter is never recreated
// at 1.
func (a *Allocator) next(ctx context.Context) (uint64, bool, error) {
	n, ok, err := a.store.IncrIfExists(ctx, CounterKey)
	if err != nil {
		return 0, false, fmt.Errorf("increment counter: %w", err)
	}
	if !ok {
		return 0, false, nil
	}
	return uint64(n), true, nil
}

// seed takes the seed lease and initialises the counter from the durable
// store. It reports false without error when the lease is held elsewhere.
func (a *Allocator) seed(ctx context.Context) (uint64, bool, error) {
	l, ok, err := a.locker.TryAcquire(ctx, SeedLockKey)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}

	seeded, err := func() (bool, error) {
		defer func() {
			if err := l.Release(context.WithoutCancel(ctx)); err != nil {
				a.log.Warn().Err(err).Msg("failed to release seed lease")
			}
		}()

		maxID, err := a.source.MaxID(ctx)
		if err != nil {
			return false, fmt.Errorf("read max id: %w", err)
		}
		set, err := a.store.SetNX(ctx, CounterKey, strconv.FormatUint(maxID, 10), 0)
		if err != nil {
			return false, fmt.Errorf("seed counter: %w", err)
		}
		return set, nil
	}()
	if err != nil {
		return 0, false, err
	}
	if seeded {
		a.log.Info().Msg("seeded id counter from durable store")
	}

	// The counter can vanish again before the increment; the caller then
	// falls through to the follower path and reseeds.
	return a.next(ctx)
}

// Reconcile raises an existing counter to the durable store's highest id when
// it lags behind, for example after the cache was restored from an old
// snapshot. It never creates or lowers the counter and reports whether it
// changed anything.
func (a *Allocator) Reconcile(ctx context.Context) (bool, error) {
	maxID, err := a.source.MaxID(ctx)
	if err != nil {
		return false, fmt.Errorf("read max id: %w", err)
	}

	value, raised, err := a.store.RaiseTo(ctx, CounterKey, int64(maxID))
	if err != nil {
		return false, fmt.Errorf("raise counter: %w", err)
	}

	switch {
	case value < 0:
		a.log.Debug().Msg("counter not seeded; nothing to reconcile")
	case raised:
		a.log.Warn().Uint64("max_id", maxID).Msg("counter lagged behind durable store; raised")
	}
	return raised, nil
}
