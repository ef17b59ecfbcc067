// Package redis implements store.Store on Redis through go-redis. It is the
// production store: counters, expiry and sorted sets map one-to-one onto
// Redis commands, and compound operations run as Lua scripts.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/perk/store"
)

// Compile-time interface checks.
var (
	_ store.Store         = (*Store)(nil)
	_ store.WindowLimiter = (*Store)(nil)
)

// extendScript adds ARGV[2] milliseconds to the remaining TTL of KEYS[1]
// and writes ARGV[1] under the new TTL. Missing or non-expiring keys count
// as zero remaining.
var extendScript = goredis.NewScript(`
local pttl = redis.call('PTTL', KEYS[1])
if pttl < 0 then pttl = 0 end
local ttl = pttl + tonumber(ARGV[2])
if ttl <= 0 then
  redis.call('DEL', KEYS[1])
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
return ttl
`)

// windowScript is a two-bucket sliding window. KEYS[1] is the current
// bucket, KEYS[2] the previous one. ARGV: limit, now (ms), window (ms).
// The previous bucket is weighted by how much of it still overlaps the
// window ending at now.
var windowScript = goredis.NewScript(`
local limit = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local previous = tonumber(redis.call('GET', KEYS[2]) or '0')
local weight = (window - (now % window)) / window
local used = math.floor(previous * weight) + current
if used >= limit then
  return {0, 0}
end
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], window * 2 + 1000)
end
return {1, limit - used - 1}
`)

// Store is a Redis-backed store.Store.
type Store struct {
	client goredis.UniversalClient
}

// New wraps an existing client.
func New(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

// Open connects to the Redis server at url. A non-empty token overrides the
// password carried by the URL.
func Open(url, token string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	if token != "" {
		opts.Password = token
	}
	return New(goredis.NewClient(opts)), nil
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.UniversalClient {
	return s.client
}

// classify maps a go-redis error onto the store taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, goredis.Nil) {
		return store.ErrNil
	}
	if errors.Is(err, goredis.ErrClosed) {
		return store.ErrClosed
	}
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "WRONGTYPE"):
		return store.ErrWrongType
	case strings.Contains(msg, "not an integer"):
		return store.ErrNotInteger
	}
	return store.Unavailable(op, err)
}

// ==================== Strings and counters ====================

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return "", classify("get", err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return classify("set", s.client.Set(ctx, key, value, positive(ttl)).Err())
}

func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, positive(ttl)).Result()
	if err != nil {
		return false, classify("setnx", err)
	}
	return ok, nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, classify("del", err)
	}
	return n, nil
}

func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	v, err := s.client.IncrBy(ctx, key, n).Result()
	if err != nil {
		return 0, classify("incrby", err)
	}
	return v, nil
}

// ==================== Expiry ====================

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		n, err := s.Del(ctx, key)
		return n > 0, err
	}
	ok, err := s.client.PExpire(ctx, key, ttl).Result()
	if err != nil {
		return false, classify("pexpire", err)
	}
	return ok, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, classify("pttl", err)
	}
	switch {
	case d == -2:
		return 0, store.ErrNil
	case d < 0:
		return store.NoExpiry, nil
	}
	return d, nil
}

func (s *Store) Extend(ctx context.Context, key, value string, add time.Duration) (time.Duration, error) {
	ms, err := extendScript.Run(ctx, s.client, []string{key}, value, add.Milliseconds()).Int64()
	if err != nil {
		return 0, classify("extend", err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ==================== Sets ====================

func (s *Store) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	n, err := s.client.SAdd(ctx, key, args...).Result()
	if err != nil {
		return 0, classify("sadd", err)
	}
	return n, nil
}

func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, classify("scard", err)
	}
	return n, nil
}

// ==================== Sorted sets ====================

func (s *Store) ZIncrBy(ctx context.Context, key, member string, incr float64) (float64, error) {
	v, err := s.client.ZIncrBy(ctx, key, incr, member).Result()
	if err != nil {
		return 0, classify("zincrby", err)
	}
	return v, nil
}

func (s *Store) ZTop(ctx context.Context, key string, n int) ([]store.ScoredMember, error) {
	if n == 0 {
		return []store.ScoredMember{}, nil
	}
	stop := int64(n) - 1
	if n < 0 {
		stop = -1
	}
	zs, err := s.client.ZRevRangeWithScores(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, classify("zrevrange", err)
	}
	return scored(zs), nil
}

func (s *Store) ZAll(ctx context.Context, key string) ([]store.ScoredMember, error) {
	return s.ZTop(ctx, key, -1)
}

func (s *Store) ZScore(ctx context.Context, key, member string) (float64, error) {
	v, err := s.client.ZScore(ctx, key, member).Result()
	if err != nil {
		return 0, classify("zscore", err)
	}
	return v, nil
}

func scored(zs []goredis.Z) []store.ScoredMember {
	out := make([]store.ScoredMember, 0, len(zs))
	for _, z := range zs {
		out = append(out, store.ScoredMember{Member: fmt.Sprint(z.Member), Score: z.Score})
	}
	return out
}

// ==================== Sliding window ====================

// SlidingWindow implements store.WindowLimiter. Buckets are stored under
// "{<key>}:<window index>" so both land in one cluster slot.
func (s *Store) SlidingWindow(ctx context.Context, key string, limit int64, window time.Duration, now time.Time) (bool, int64, error) {
	wms := window.Milliseconds()
	if wms <= 0 || limit <= 0 {
		return false, 0, fmt.Errorf("redis: invalid window %v or limit %d", window, limit)
	}
	nowMs := now.UnixMilli()
	idx := nowMs / wms
	keys := []string{
		bucketKey(key, idx),
		bucketKey(key, idx-1),
	}

	res, err := windowScript.Run(ctx, s.client, keys, limit, nowMs, wms).Int64Slice()
	if err != nil {
		return false, 0, classify("sliding window", err)
	}
	if len(res) != 2 {
		return false, 0, store.Unavailable("sliding window", fmt.Errorf("unexpected reply %v", res))
	}
	return res[0] == 1, res[1], nil
}

// bucketKey hash-tags key so every bucket of one limiter shares a slot.
func bucketKey(key string, idx int64) string {
	return fmt.Sprintf("{%s}:%d", key, idx)
}

// ==================== Store management ====================

func (s *Store) Ping(ctx context.Context) error {
	return classify("ping", s.client.Ping(ctx).Err())
}

func (s *Store) Close() error {
	return s.client.Close()
}

func positive(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}
