// Package ratelimit applies a per-user sliding-window admission check ahead
// of expensive downstream calls. It is independent of daily quotas.
//
// The check runs on the store when it implements store.WindowLimiter. When
// it does not, or the check fails, requests are admitted.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/perk/store"
	"github.com/xraph/perk/types"
)

// Defaults: 10 requests per rolling minute.
const (
	DefaultLimit  = 10
	DefaultWindow = time.Minute
)

// Key returns the window key prefix of user.
func Key(user types.UserID) string {
	return "rl:" + user.String()
}

// Decision is the outcome of Allow. Enforced is false when the check could
// not run and the request was admitted by default.
type Decision struct {
	Allowed   bool  `json:"allowed"`
	Remaining int64 `json:"remaining"`
	Enforced  bool  `json:"enforced"`
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLimit sets the number of requests allowed per window.
func WithLimit(limit int64, window time.Duration) Option {
	return func(l *Limiter) {
		if limit > 0 && window > 0 {
			l.limit, l.window = limit, window
		}
	}
}

// Limiter admits or rejects requests per user.
type Limiter struct {
	wl     store.WindowLimiter
	logger *slog.Logger
	now    func() time.Time
	limit  int64
	window time.Duration
}

// New creates a Limiter. The window check is looked up on s once.
func New(s store.Store, opts ...Option) *Limiter {
	l := &Limiter{
		logger: slog.Default(),
		now:    time.Now,
		limit:  DefaultLimit,
		window: DefaultWindow,
	}
	if wl, ok := s.(store.WindowLimiter); ok {
		l.wl = wl
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enforcing reports whether the backing store can run the window check.
func (l *Limiter) Enforcing() bool { return l.wl != nil }

// Limit returns the configured requests per window.
func (l *Limiter) Limit() (int64, time.Duration) { return l.limit, l.window }

// Allow records one request by user and reports whether it is admitted.
func (l *Limiter) Allow(ctx context.Context, user types.UserID) Decision {
	if l.wl == nil {
		return Decision{Allowed: true, Remaining: l.limit}
	}

	ok, remaining, err := l.wl.SlidingWindow(ctx, Key(user), l.limit, l.window, l.now())
	if err != nil {
		l.logger.Warn("ratelimit: check failed, admitting", "user_id", user, "error", err)
		return Decision{Allowed: true, Remaining: l.limit}
	}
	return Decision{Allowed: ok, Remaining: remaining, Enforced: true}
}
