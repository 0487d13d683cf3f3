// Package lease implements short-lived exclusive leases on top of the cache
// store. A lease is a key holding a random token with a TTL; only the holder of
// the token can release it, and an abandoned lease frees itself on expiry.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"shortr/internal/platform/cache"
)

// DefaultTTL bounds how long a crashed holder can block others.
const DefaultTTL = 5 * time.Second

type Locker struct {
	store cache.Store
	ttl   time.Duration
}

func NewLocker(store cache.Store, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Locker{store: store, ttl: ttl}
}

// TTL is the lifetime given to each acquired lease.
func (l *Locker) TTL() time.Duration {
	return l.ttl
}

// TryAcquire makes a single attempt to take the lease on key. It returns a nil
// lease and false when someone else holds it.
func (l *Locker) TryAcquire(ctx context.Context, key string) (*Lease, bool, error) {
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lease{store: l.store, key: key, token: token}, true, nil
}

type Lease struct {
	store cache.Store
	key   string
	token string
}

func (l *Lease) Key() string {
	return l.key
}

// Release gives the lease up. It is a no-op when the lease already expired and
// was taken by another holder.
func (l *Lease) Release(ctx context.Context) error {
	if _, err := l.store.DelIfEquals(ctx, l.key, l.token); err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}
