// Package meter aggregates day-bucketed usage: unique users per day, named
// counters, and a ranked table of referral-code hits. Every key gets a fixed
// retention TTL at first write; nothing sweeps them.
package meter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/xraph/perk/store"
	"github.com/xraph/perk/types"
)

// DefaultRetention covers the longest report window (30 days) plus today.
const DefaultRetention = 31 * 24 * time.Hour

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// WithClock sets the time source used to pick the current UTC day.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithRetention sets how long day-bucketed keys live.
func WithRetention(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.retention = d
		}
	}
}

// Aggregator records and reads day-bucketed metrics.
type Aggregator struct {
	store     store.Store
	logger    *slog.Logger
	now       func() time.Time
	retention time.Duration
}

// New creates an Aggregator over s.
func New(s store.Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:     s,
		logger:    slog.Default(),
		now:       time.Now,
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Retention returns the TTL applied to day-bucketed keys.
func (a *Aggregator) Retention() time.Duration { return a.retention }

// Today returns the current UTC day.
func (a *Aggregator) Today() types.Day {
	return types.DayOf(a.now())
}

// LastDays returns the last n UTC days, oldest first, ending today.
func (a *Aggregator) LastDays(n int) []types.Day {
	return types.LastDays(a.now(), n)
}

// ensureRetention sets the retention TTL on key if it has none yet, so the
// expiry is fixed by the first write of the day.
func (a *Aggregator) ensureRetention(ctx context.Context, key string) {
	ttl, err := a.store.TTL(ctx, key)
	if err != nil || ttl != store.NoExpiry {
		return
	}
	if _, err := a.store.Expire(ctx, key, a.retention); err != nil {
		a.logger.Warn("meter: expire failed", "key", key, "error", err)
	}
}

// ──────────────────────────────────────────────────
// Writes
// ──────────────────────────────────────────────────

// MarkUserSeenToday adds user to today's unique set. It reports whether
// user is new today.
func (a *Aggregator) MarkUserSeenToday(ctx context.Context, user types.UserID) (bool, error) {
	key := DAUKey(a.Today())
	added, err := a.store.SAdd(ctx, key, user.String())
	if err != nil {
		return false, fmt.Errorf("meter: mark user: %w", err)
	}
	a.ensureRetention(ctx, key)
	return added > 0, nil
}

// Bump adds amount to today's counter name and returns its new value.
func (a *Aggregator) Bump(ctx context.Context, name string, amount int64) (int64, error) {
	key := CounterKey(name, a.Today())
	n, err := a.store.IncrBy(ctx, key, amount)
	if err != nil {
		return 0, fmt.Errorf("meter: bump %s: %w", name, err)
	}
	a.ensureRetention(ctx, key)
	return n, nil
}

// RefHit adds one hit for code in today's referral table.
func (a *Aggregator) RefHit(ctx context.Context, code string) (float64, error) {
	if code == "" {
		return 0, fmt.Errorf("meter: ref hit: empty code")
	}
	key := RefKey(a.Today())
	score, err := a.store.ZIncrBy(ctx, key, code, 1)
	if err != nil {
		return 0, fmt.Errorf("meter: ref hit: %w", err)
	}
	a.ensureRetention(ctx, key)
	return score, nil
}

// ──────────────────────────────────────────────────
// Reads (absent and failed reads are zero)
// ──────────────────────────────────────────────────

// GetToday returns today's value of counter name.
func (a *Aggregator) GetToday(ctx context.Context, name string) int64 {
	return a.GetForDay(ctx, name, a.Today())
}

// GetForDay returns the value of counter name on day.
func (a *Aggregator) GetForDay(ctx context.Context, name string, day types.Day) int64 {
	key := CounterKey(name, day)
	v, err := a.store.Get(ctx, key)
	if err != nil {
		a.warnRead(key, err)
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		a.logger.Warn("meter: malformed counter", "key", key, "value", v)
		return 0
	}
	return n
}

// DAUToday returns how many distinct users were seen today.
func (a *Aggregator) DAUToday(ctx context.Context) int64 {
	return a.DAUForDay(ctx, a.Today())
}

// DAUForDay returns how many distinct users were seen on day.
func (a *Aggregator) DAUForDay(ctx context.Context, day types.Day) int64 {
	key := DAUKey(day)
	n, err := a.store.SCard(ctx, key)
	if err != nil {
		a.warnRead(key, err)
		return 0
	}
	return n
}

// RefHitsToday returns today's hits for code.
func (a *Aggregator) RefHitsToday(ctx context.Context, code string) float64 {
	key := RefKey(a.Today())
	score, err := a.store.ZScore(ctx, key, code)
	if err != nil {
		a.warnRead(key, err)
		return 0
	}
	return score
}

// TopRefs returns today's n best codes by descending hits.
func (a *Aggregator) TopRefs(ctx context.Context, n int) []store.ScoredMember {
	return a.TopRefsForDay(ctx, a.Today(), n)
}

// TopRefsForDay returns the n best codes of day by descending hits.
func (a *Aggregator) TopRefsForDay(ctx context.Context, day types.Day, n int) []store.ScoredMember {
	key := RefKey(day)
	top, err := a.store.ZTop(ctx, key, n)
	if err != nil {
		a.warnRead(key, err)
		return []store.ScoredMember{}
	}
	return top
}

// AllRefsForDay returns every code of day by descending hits.
func (a *Aggregator) AllRefsForDay(ctx context.Context, day types.Day) []store.ScoredMember {
	key := RefKey(day)
	all, err := a.store.ZAll(ctx, key)
	if err != nil {
		a.warnRead(key, err)
		return []store.ScoredMember{}
	}
	return all
}

func (a *Aggregator) warnRead(key string, err error) {
	if store.IsNil(err) {
		return
	}
	a.logger.Warn("meter: read failed", "key", key, "error", err)
}
