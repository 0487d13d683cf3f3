// Package cache holds the key-value primitives the engine builds on and their
// Redis implementation.
package cache

import (
	"context"
	"time"
)

// Store is the set of cache primitives the engine depends on. Implementations
// must make SetNX and Incr atomic across all concurrent callers.
//
// A ttl of zero means the key does not expire.
type Store interface {
	// Get returns the string value at key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX sets key only if it does not exist and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	// IncrIfExists increments key only when it is present and reports whether
	// it did. A missing key is left missing.
	IncrIfExists(ctx context.Context, key string) (int64, bool, error)

	// HGetAll returns an empty map when the key does not exist.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HSet writes fields and applies ttl in a single transaction.
	HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error

	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// TTL returns a negative duration when the key is missing or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Del(ctx context.Context, keys ...string) error

	// DelIfEquals deletes key only while it still holds value.
	DelIfEquals(ctx context.Context, key, value string) (bool, error)
	// RaiseTo sets an existing integer key to floor when it is lower. It never
	// creates the key and never lowers it. It returns the resulting value and
	// whether the key was raised; the value is -1 when the key is missing.
	RaiseTo(ctx context.Context, key string, floor int64) (int64, bool, error)

	Ping(ctx context.Context) error
}
