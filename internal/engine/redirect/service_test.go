package redirect

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"shortr/internal/engine/links"
	"shortr/internal/platform/cache"
)

type fakeFinder struct {
	mappings map[string]*links.Mapping
	err      error
	calls    atomic.Int32
}

func (f *fakeFinder) FindByCode(ctx context.Context, code string) (*links.Mapping, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.mappings[code]
	if !ok {
		return nil, links.ErrNotFound
	}
	return m, nil
}

var fixedNow = time.Unix(1_700_000_000, 0).UTC()

func setupResolver(t *testing.T, mappings ...*links.Mapping) (*Service, *fakeFinder, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	now := func() time.Time { return fixedNow }
	finder := &fakeFinder{mappings: map[string]*links.Mapping{}}
	for _, m := range mappings {
		finder.mappings[m.ShortCode] = m
	}

	c := links.NewCache(cache.NewRedisStore(client), now, zerolog.Nop())
	return NewService(finder, c, now, zerolog.Nop()), finder, mr
}

func TestResolve_LiveMappingPopulatesCache(t *testing.T) {
	live := &links.Mapping{ID: 1, OriginalURL: "https://example.com", ShortCode: "000001", ExpirationAt: fixedNow.Add(48 * time.Hour)}
	svc, finder, mr := setupResolver(t, live)
	ctx := context.Background()

	url, err := svc.Resolve(ctx, "000001")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", url)
	assert.Equal(t, links.ReverseTTLCap, mr.TTL(links.ReverseKey("000001")))

	url, err = svc.Resolve(ctx, "000001")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", url)
	assert.Equal(t, int32(1), finder.calls.Load(), "second resolve should be a cache hit")
}

func TestResolve_UnknownCode(t *testing.T) {
	svc, _, mr := setupResolver(t)

	_, err := svc.Resolve(context.Background(), "zzzzzz")
	assert.ErrorIs(t, err, links.ErrNotFound)
	assert.False(t, mr.Exists(links.ReverseKey("zzzzzz")))
}

func TestResolve_ExpiredMappingIsGoneAndNotCached(t *testing.T) {
	expired := &links.Mapping{ID: 2, OriginalURL: "https://old.example", ShortCode: "000002", ExpirationAt: fixedNow}
	svc, _, mr := setupResolver(t, expired)

	_, err := svc.Resolve(context.Background(), "000002")
	assert.ErrorIs(t, err, links.ErrGone)
	assert.False(t, mr.Exists(links.ReverseKey("000002")))
}

func TestResolve_CacheHitSkipsStore(t *testing.T) {
	svc, finder, mr := setupResolver(t)
	require.NoError(t, mr.Set(links.ReverseKey("00000a"), "https://cached.example"))

	url, err := svc.Resolve(context.Background(), "00000a")
	require.NoError(t, err)
	assert.Equal(t, "https://cached.example", url)
	assert.Equal(t, int32(0), finder.calls.Load())
}

func TestResolve_StoreFailure(t *testing.T) {
	svc, finder, _ := setupResolver(t)
	finder.err = errors.New("connection reset")

	_, err := svc.Resolve(context.Background(), "000001")
	require.Error(t, err)
	assert.ErrorIs(t, err, finder.err)
	assert.NotErrorIs(t, err, links.ErrNotFound)
}

func TestQRCode(t *testing.T) {
	live := &links.Mapping{ID: 1, OriginalURL: "https://example.com", ShortCode: "000001", ExpirationAt: fixedNow.Add(time.Hour)}
	expired := &links.Mapping{ID: 2, OriginalURL: "https://old.example", ShortCode: "000002", ExpirationAt: fixedNow.Add(-time.Hour)}
	svc, _, _ := setupResolver(t, live, expired)
	ctx := context.Background()

	img, err := svc.QRCode(ctx, "000001", "http://localhost:8000/urls/v1/go/000001", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), img.PNG[:4])
	assert.Equal(t, time.Hour, img.Remaining)

	_, err = svc.QRCode(ctx, "000002", "http://localhost:8000/urls/v1/go/000002", 0)
	assert.ErrorIs(t, err, links.ErrGone)

	_, err = svc.QRCode(ctx, "000001", "http://localhost:8000/urls/v1/go/000001", 64)
	assert.ErrorIs(t, err, links.ErrInvalidQRSize)
}
