package redirect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"shortr/internal/engine/links"
	"shortr/internal/platform/metrics"
)

// CodeFinder is the durable lookup the redirect path needs.
type CodeFinder interface {
	FindByCode(ctx context.Context, code string) (*links.Mapping, error)
}

type Service struct {
	store CodeFinder
	cache *links.Cache
	now   func() time.Time
	log   zerolog.Logger
}

func NewService(store CodeFinder, cache *links.Cache, now func() time.Time, log zerolog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store: store,
		cache: cache,
		now:   now,
		log:   log.With().Str("component", "redirect").Logger(),
	}
}

// QRImage is a rendered QR code together with how much longer the link it
// points at stays live.
type QRImage struct {
	PNG       []byte
	Remaining time.Duration
}

// Resolve returns the original URL for code. It fails with links.ErrNotFound
// for unknown codes and links.ErrGone for expired ones; expired mappings are
// never cached.
func (s *Service) Resolve(ctx context.Context, code string) (string, error) {
	if url, ok := s.cache.LookupByCode(ctx, code); ok {
		metrics.ResolveTotal.WithLabelValues("hit").Inc()
		return url, nil
	}

	m, err := s.live(ctx, code, s.now())
	switch {
	case errors.Is(err, links.ErrNotFound):
		metrics.ResolveTotal.WithLabelValues("not_found").Inc()
		return "", err
	case errors.Is(err, links.ErrGone):
		metrics.ResolveTotal.WithLabelValues("gone").Inc()
		return "", err
	case err != nil:
		metrics.ResolveTotal.WithLabelValues("error").Inc()
		return "", err
	}

	s.cache.PopulateByCode(ctx, m)
	metrics.ResolveTotal.WithLabelValues("miss").Inc()
	return m.OriginalURL, nil
}

// QRCode renders shortURL as a PNG once code resolves under the same rules as
// Resolve. It reads the durable store directly since the reverse cache does
// not carry the expiration.
func (s *Service) QRCode(ctx context.Context, code, shortURL string, size int) (*QRImage, error) {
	now := s.now()
	m, err := s.live(ctx, code, now)
	if err != nil {
		return nil, err
	}

	png, err := links.GenerateQRCode(shortURL, size)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("short_code", code).Int("size", size).Msg("rendered qr code")
	return &QRImage{PNG: png, Remaining: m.Remaining(now)}, nil
}

func (s *Service) live(ctx context.Context, code string, now time.Time) (*links.Mapping, error) {
	m, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, links.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find mapping %s: %w", code, err)
	}
	if m.IsExpired(now) {
		return nil, links.ErrGone
	}
	return m, nil
}
