// Package store defines the key-value capability set every perk component is
// written against, plus the result taxonomy its variants share.
//
// Three variants exist: store/redis (remote, the production choice),
// store/mongo (remote document store) and store/memory (in-process fallback).
// The variant is chosen once at startup; components only see Store.
package store

import (
	"context"
	"time"
)

// NoExpiry is returned by TTL for keys that exist but carry no expiry.
const NoExpiry time.Duration = -1

// ScoredMember is one entry of a sorted set.
type ScoredMember struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// Store is the key-value capability set. Implementations must be safe for
// concurrent use; IncrBy, SetNX, Extend and ZIncrBy must be atomic per key.
//
// Absent keys are reported with ErrNil, transport failures with an error
// wrapping ErrUnavailable. A ttl of zero means "no expiry".
type Store interface {
	// Strings and counters
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	IncrBy(ctx context.Context, key string, n int64) (int64, error)

	// Expiry
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Extend sets key to value and adds add to its remaining TTL in one atomic
	// step. A missing, expired or non-expiring key counts as zero remaining.
	// It returns the new TTL.
	Extend(ctx context.Context, key, value string, add time.Duration) (time.Duration, error)

	// Sets
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SCard(ctx context.Context, key string) (int64, error)

	// Sorted sets, ranked by descending score
	ZIncrBy(ctx context.Context, key, member string, incr float64) (float64, error)
	ZTop(ctx context.Context, key string, n int) ([]ScoredMember, error)
	ZAll(ctx context.Context, key string) ([]ScoredMember, error)
	ZScore(ctx context.Context, key, member string) (float64, error)

	// Core methods
	Ping(ctx context.Context) error
	Close() error
}

// WindowLimiter is an optional capability for stores that can run a sliding
// window admission check server-side.
type WindowLimiter interface {
	// SlidingWindow records one request for key at now and reports whether it
	// fits in limit requests per window, plus the remaining allowance.
	SlidingWindow(ctx context.Context, key string, limit int64, window time.Duration, now time.Time) (allowed bool, remaining int64, err error)
}

// Migrator is implemented by stores that need schema or index setup before use.
type Migrator interface {
	Migrate(ctx context.Context) error
}
