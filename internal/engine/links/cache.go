package links

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"shortr/internal/platform/cache"
	"shortr/internal/platform/metrics"
)

const (
	forwardPrefix = "shorten:"
	reversePrefix = "redirect:"

	// ReverseTTLCap bounds how long a code -> URL entry may live in the cache.
	ReverseTTLCap = 24 * time.Hour

	fieldShortCode    = "short_code"
	fieldExpirationAt = "expiration_at"
)

// Cache is the cache-aside layer for both lookup directions. Failures are
// logged and treated as a miss or a skipped write; the durable store stays
// authoritative.
type Cache struct {
	store cache.Store
	now   func() time.Time
	log   zerolog.Logger
}

func NewCache(store cache.Store, now func() time.Time, log zerolog.Logger) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		store: store,
		now:   now,
		log:   log.With().Str("component", "link_cache").Logger(),
	}
}

func ForwardKey(url string) string { return forwardPrefix + url }

func ReverseKey(code string) string { return reversePrefix + code }

// LookupByURL returns the cached live mapping for url. Entries with a missing
// field or a passed expiration count as a miss.
func (c *Cache) LookupByURL(ctx context.Context, url string) (*Mapping, bool) {
	fields, err := c.store.HGetAll(ctx, ForwardKey(url))
	if err != nil {
		c.log.Warn().Err(err).Msg("forward cache read failed")
		metrics.CacheLookups.WithLabelValues("forward", "error").Inc()
		return nil, false
	}

	code, exp := fields[fieldShortCode], fields[fieldExpirationAt]
	if code == "" || exp == "" {
		metrics.CacheLookups.WithLabelValues("forward", "miss").Inc()
		return nil, false
	}

	expiresAt, err := time.Parse(time.RFC3339, exp)
	if err != nil {
		c.log.Warn().Err(err).Str("value", exp).Msg("malformed forward cache entry")
		metrics.CacheLookups.WithLabelValues("forward", "miss").Inc()
		return nil, false
	}

	m := &Mapping{OriginalURL: url, ShortCode: code, ExpirationAt: expiresAt}
	if m.IsExpired(c.now()) {
		metrics.CacheLookups.WithLabelValues("forward", "miss").Inc()
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues("forward", "hit").Inc()
	return m, true
}

// PopulateByURL caches m for the rest of its validity. Expired mappings are
// not written.
func (c *Cache) PopulateByURL(ctx context.Context, m *Mapping) {
	ttl := m.Remaining(c.now())
	if ttl <= 0 {
		return
	}

	fields := map[string]string{
		fieldShortCode:    m.ShortCode,
		fieldExpirationAt: m.ExpirationAt.UTC().Format(time.RFC3339),
	}
	if err := c.store.HSet(ctx, ForwardKey(m.OriginalURL), fields, ttl); err != nil {
		c.log.Warn().Err(err).Str("short_code", m.ShortCode).Msg("forward cache write failed")
	}
}

// LookupByCode returns the cached original URL for code. A hit is trusted
// without an expiration check; the entry TTL never outlives the mapping.
func (c *Cache) LookupByCode(ctx context.Context, code string) (string, bool) {
	url, ok, err := c.store.Get(ctx, ReverseKey(code))
	if err != nil {
		c.log.Warn().Err(err).Msg("reverse cache read failed")
		metrics.CacheLookups.WithLabelValues("reverse", "error").Inc()
		return "", false
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues("reverse", "miss").Inc()
		return "", false
	}

	metrics.CacheLookups.WithLabelValues("reverse", "hit").Inc()
	return url, true
}

// PopulateByCode caches the code -> URL direction for min(remaining, 24h).
func (c *Cache) PopulateByCode(ctx context.Context, m *Mapping) {
	ttl := m.Remaining(c.now())
	if ttl <= 0 {
		return
	}
	if ttl > ReverseTTLCap {
		ttl = ReverseTTLCap
	}

	if err := c.store.Set(ctx, ReverseKey(m.ShortCode), m.OriginalURL, ttl); err != nil {
		c.log.Warn().Err(err).Str("short_code", m.ShortCode).Msg("reverse cache write failed")
	}
}
