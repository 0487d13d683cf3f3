package links

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"shortr/internal/engine/codec"
	"shortr/internal/engine/lease"
	"shortr/internal/platform/metrics"
)

const creationLockPrefix = "shorten_lock:"

// IDAllocator hands out unique mapping ids.
type IDAllocator interface {
	Allocate(ctx context.Context) (uint64, error)
}

type Options struct {
	MaxURLLength int
	Validity     time.Duration
	// CreationWait bounds how long a caller waits on another caller creating
	// the same URL. Defaults to the lease TTL.
	CreationWait time.Duration
	Now          func() time.Time
}

type Service struct {
	store  Store
	ids    IDAllocator
	cache  *Cache
	locker *lease.Locker
	opts   Options
	log    zerolog.Logger
}

var errCreationPending = errors.New("creation pending")

func NewService(store Store, ids IDAllocator, cache *Cache, locker *lease.Locker, opts Options, log zerolog.Logger) *Service {
	if opts.MaxURLLength <= 0 {
		opts.MaxURLLength = 2048
	}
	if opts.Validity <= 0 {
		opts.Validity = 30 * 24 * time.Hour
	}
	if opts.CreationWait <= 0 {
		opts.CreationWait = locker.TTL()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		store:  store,
		ids:    ids,
		cache:  cache,
		locker: locker,
		opts:   opts,
		log:    log.With().Str("component", "shortener").Logger(),
	}
}

// Shorten returns the live mapping for originalURL, creating one if none
// exists. Repeated and concurrent calls for the same URL converge on a single
// mapping while it is live.
func (s *Service) Shorten(ctx context.Context, originalURL string) (*Mapping, error) {
	if n := len(originalURL); n > s.opts.MaxURLLength {
		return nil, &ValidationError{Length: n, Limit: s.opts.MaxURLLength}
	}

	if m, ok := s.cache.LookupByURL(ctx, originalURL); ok {
		metrics.ShortenTotal.WithLabelValues("cached").Inc()
		return m, nil
	}

	m, err := s.store.FindLiveByURL(ctx, originalURL, s.opts.Now())
	switch {
	case err == nil:
		s.cache.PopulateByURL(ctx, m)
		metrics.ShortenTotal.WithLabelValues("existing").Inc()
		return m, nil
	case !errors.Is(err, ErrNotFound):
		metrics.ShortenTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("find live mapping: %w", err)
	}

	m, created, err := s.createOnce(ctx, originalURL)
	if err != nil {
		metrics.ShortenTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	s.cache.PopulateByURL(ctx, m)
	if created {
		metrics.ShortenTotal.WithLabelValues("created").Inc()
		s.log.Info().Uint64("id", m.ID).Str("short_code", m.ShortCode).Msg("created short link")
	} else {
		metrics.ShortenTotal.WithLabelValues("existing").Inc()
	}
	return m, nil
}

// createOnce serialises creation per URL behind a lease. The holder checks the
// store again before inserting; everyone else polls until the mapping shows up
// or the lease frees up.
func (s *Service) createOnce(ctx context.Context, originalURL string) (*Mapping, bool, error) {
	key := creationLockKey(originalURL)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = s.opts.CreationWait

	var (
		result  *Mapping
		created bool
	)
	op := func() error {
		l, ok, err := s.locker.TryAcquire(ctx, key)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			m, err := s.store.FindLiveByURL(ctx, originalURL, s.opts.Now())
			if err == nil {
				result = m
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return backoff.Permanent(fmt.Errorf("find live mapping: %w", err))
			}
			return errCreationPending
		}
		defer func() {
			if err := l.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn().Err(err).Msg("failed to release creation lease")
			}
		}()

		m, err := s.store.FindLiveByURL(ctx, originalURL, s.opts.Now())
		if err == nil {
			result = m
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return backoff.Permanent(fmt.Errorf("find live mapping: %w", err))
		}

		// Finish well inside the lease so it cannot lapse mid-creation. The
		// store re-checks for a live mapping regardless.
		createCtx, cancel := context.WithTimeout(ctx, s.locker.TTL()-s.locker.TTL()/5)
		defer cancel()

		result, created, err = s.create(createCtx, originalURL)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errCreationPending) {
			return nil, false, ErrCreationTimeout
		}
		return nil, false, err
	}
	return result, created, nil
}

func (s *Service) create(ctx context.Context, originalURL string) (*Mapping, bool, error) {
	id, err := s.ids.Allocate(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("allocate id: %w", err)
	}

	now := time.Unix(s.opts.Now().Unix(), 0).UTC()
	m := &Mapping{
		ID:           id,
		OriginalURL:  originalURL,
		ShortCode:    codec.Encode(id, codec.Width),
		ExpirationAt: now.Add(s.opts.Validity),
		CreatedAt:    now,
	}

	stored, created, err := s.store.CreateIfAbsent(ctx, m, now)
	if err != nil {
		s.log.Error().Err(err).Uint64("id", id).Msg("failed to persist mapping")
		return nil, false, fmt.Errorf("%w: %w", ErrCreationFailed, err)
	}
	if !created {
		s.log.Warn().Uint64("id", id).Str("short_code", stored.ShortCode).Msg("live mapping appeared during creation; id discarded")
	}
	return stored, created, nil
}

func creationLockKey(originalURL string) string {
	sum := sha256.Sum256([]byte(originalURL))
	return creationLockPrefix + hex.EncodeToString(sum[:])
}
