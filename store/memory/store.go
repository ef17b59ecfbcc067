// Package memory provides an in-process store.Store used when no remote
// store is configured. State is lost on restart.
package memory

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/xraph/perk/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type kind int

const (
	kindString kind = iota
	kindSet
	kindZSet
)

type entry struct {
	kind      kind
	str       string
	members   map[string]struct{}
	scores    map[string]float64
	expiresAt time.Time // zero means no expiry
}

// Option configures a memory Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store keeps every key in one map guarded by a single mutex, which makes
// each operation atomic. Expired keys are dropped lazily on access.
type Store struct {
	mu     sync.Mutex
	data   map[string]*entry
	now    func() time.Time
	closed bool
}

// New creates an empty memory store.
func New(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]*entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lookup returns the live entry for key, evicting it if expired.
// Caller must hold s.mu.
func (s *Store) lookup(key string) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.data, key)
		return nil
	}
	return e
}

func (s *Store) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// ==================== Strings and counters ====================

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", store.ErrClosed
	}

	e := s.lookup(key)
	if e == nil {
		return "", store.ErrNil
	}
	if e.kind != kindString {
		return "", store.ErrWrongType
	}
	return e.str, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	s.data[key] = &entry{kind: kindString, str: value, expiresAt: s.deadline(ttl)}
	return nil
}

func (s *Store) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, store.ErrClosed
	}

	if s.lookup(key) != nil {
		return false, nil
	}
	s.data[key] = &entry{kind: kindString, str: value, expiresAt: s.deadline(ttl)}
	return true, nil
}

func (s *Store) Del(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}

	var n int64
	for _, key := range keys {
		if s.lookup(key) != nil {
			delete(s.data, key)
			n++
		}
	}
	return n, nil
}

func (s *Store) IncrBy(_ context.Context, key string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}

	e := s.lookup(key)
	if e == nil {
		s.data[key] = &entry{kind: kindString, str: strconv.FormatInt(n, 10)}
		return n, nil
	}
	if e.kind != kindString {
		return 0, store.ErrWrongType
	}
	cur, err := strconv.ParseInt(e.str, 10, 64)
	if err != nil {
		return 0, store.ErrNotInteger
	}
	cur += n
	e.str = strconv.FormatInt(cur, 10)
	return cur, nil
}

// ==================== Expiry ====================

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, store.ErrClosed
	}

	e := s.lookup(key)
	if e == nil {
		return false, nil
	}
	if ttl <= 0 {
		delete(s.data, key)
		return true, nil
	}
	e.expiresAt = s.now().Add(ttl)
	return true, nil
}

func (s *Store) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}

	e := s.lookup(key)
	if e == nil {
		return 0, store.ErrNil
	}
	if e.expiresAt.IsZero() {
		return store.NoExpiry, nil
	}
	return e.expiresAt.Sub(s.now()), nil
}

func (s *Store) Extend(_ context.Context, key, value string, add time.Duration) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}

	var remaining time.Duration
	if e := s.lookup(key); e != nil && !e.expiresAt.IsZero() {
		remaining = e.expiresAt.Sub(s.now())
	}
	ttl := remaining + add
	if add > 0 && ttl < remaining {
		ttl = time.Duration(math.MaxInt64)
	}
	if ttl <= 0 {
		delete(s.data, key)
		return 0, nil
	}
	s.data[key] = &entry{kind: kindString, str: value, expiresAt: s.now().Add(ttl)}
	return ttl, nil
}

// ==================== Sets ====================

func (s *Store) SAdd(_ context.Context, key string, members ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}

	e := s.lookup(key)
	if e == nil {
		e = &entry{kind: kindSet, members: make(map[string]struct{})}
		s.data[key] = e
	}
	if e.kind != kindSet {
		return 0, store.ErrWrongType
	}
	var added int64
	for _, m := range members {
		if _, ok := e.members[m]; !ok {
			e.members[m] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (s *Store) SCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}

	e := s.lookup(key)
	if e == nil {
		return 0, nil
	}
	if e.kind != kindSet {
		return 0, store.ErrWrongType
	}
	return int64(len(e.members)), nil
}

// ==================== Sorted sets ====================

func (s *Store) ZIncrBy(_ context.Context, key, member string, incr float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}

	e := s.lookup(key)
	if e == nil {
		e = &entry{kind: kindZSet, scores: make(map[string]float64)}
		s.data[key] = e
	}
	if e.kind != kindZSet {
		return 0, store.ErrWrongType
	}
	e.scores[member] += incr
	return e.scores[member], nil
}

func (s *Store) ZTop(ctx context.Context, key string, n int) ([]store.ScoredMember, error) {
	all, err := s.ZAll(ctx, key)
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (s *Store) ZAll(_ context.Context, key string) ([]store.ScoredMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	e := s.lookup(key)
	if e == nil {
		return []store.ScoredMember{}, nil
	}
	if e.kind != kindZSet {
		return nil, store.ErrWrongType
	}
	return rank(e.scores), nil
}

func (s *Store) ZScore(_ context.Context, key, member string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}

	e := s.lookup(key)
	if e == nil {
		return 0, store.ErrNil
	}
	if e.kind != kindZSet {
		return 0, store.ErrWrongType
	}
	score, ok := e.scores[member]
	if !ok {
		return 0, store.ErrNil
	}
	return score, nil
}

// rank orders members by descending score, ties by descending member,
// matching a reverse range over a Redis sorted set.
func rank(scores map[string]float64) []store.ScoredMember {
	out := make([]store.ScoredMember, 0, len(scores))
	for m, sc := range scores {
		out = append(out, store.ScoredMember{Member: m, Score: sc})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Member > out[j].Member
	})
	return out
}

// ==================== Store management ====================

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

// Close drops all state. Subsequent operations return store.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = nil
	return nil
}

// Len reports the number of live keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.data {
		if s.lookup(key) != nil {
			n++
		}
	}
	return n
}
