// Package privacy erases the store keys that directly identify a user: the
// referral link, the reward flag, and today's quota counters. Pro
// entitlements and aggregate metrics are left alone.
package privacy

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/perk/quota"
	"github.com/xraph/perk/referral"
	"github.com/xraph/perk/store"
	"github.com/xraph/perk/types"
)

// Option configures an Eraser.
type Option func(*Eraser)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Eraser) { e.logger = logger }
}

// WithClock sets the time source used to pick today's quota keys.
func WithClock(now func() time.Time) Option {
	return func(e *Eraser) { e.now = now }
}

// Eraser deletes per-user keys on request.
type Eraser struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Eraser over s.
func New(s store.Store, opts ...Option) *Eraser {
	e := &Eraser{store: s, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Keys returns every key Erase removes for user today.
func (e *Eraser) Keys(user types.UserID) []string {
	today := types.DayOf(e.now())
	keys := referral.Keys(user)
	for _, k := range quota.Kinds() {
		keys = append(keys, quota.Key(k, user, today))
	}
	return keys
}

// Erase deletes user's keys and returns how many existed. A store failure
// removes nothing and counts zero. The memory store is erased like any
// other, so its deletions are counted too.
func (e *Eraser) Erase(ctx context.Context, user types.UserID) int64 {
	n, err := e.store.Del(ctx, e.Keys(user)...)
	if err != nil {
		e.logger.Warn("privacy: erase failed", "user_id", user, "error", err)
		return 0
	}
	return n
}
