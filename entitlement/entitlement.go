// Package entitlement manages the per-user Pro flag. A user is Pro while the
// presence key "pro:<user>" exists; its TTL is the remaining entitlement.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/perk/store"
	"github.com/xraph/perk/types"
)

// Day is the unit of entitlement durations.
const Day = 24 * time.Hour

// revokeFallbackTTL is applied when the marker cannot be deleted outright.
const revokeFallbackTTL = time.Second

const marker = "1"

// MaxDays bounds a single grant or extension.
const MaxDays = 36500

// ErrInvalidDays is returned for a day count outside 1..MaxDays.
var ErrInvalidDays = errors.New("entitlement: days out of range")

// ValidDays reports whether days is an acceptable grant or extension.
func ValidDays(days int) bool {
	return days > 0 && days <= MaxDays
}

// Key returns the presence key for user.
func Key(user types.UserID) string {
	return "pro:" + user.String()
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Manager grants, extends, revokes and queries Pro entitlements.
type Manager struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a Manager over s.
func New(s store.Store, opts ...Option) *Manager {
	m := &Manager{store: s, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Grant makes user Pro for exactly days, replacing any remaining time.
func (m *Manager) Grant(ctx context.Context, user types.UserID, days int) error {
	if !ValidDays(days) {
		return fmt.Errorf("entitlement: grant %d days: %w", days, ErrInvalidDays)
	}
	if err := m.store.Set(ctx, Key(user), marker, time.Duration(days)*Day); err != nil {
		return fmt.Errorf("entitlement: grant: %w", err)
	}
	return nil
}

// Extend adds days to whatever remains of user's entitlement and returns the
// new remaining duration. It never shortens a grant.
func (m *Manager) Extend(ctx context.Context, user types.UserID, days int) (time.Duration, error) {
	if !ValidDays(days) {
		return 0, fmt.Errorf("entitlement: extend by %d days: %w", days, ErrInvalidDays)
	}
	ttl, err := m.store.Extend(ctx, Key(user), marker, time.Duration(days)*Day)
	if err != nil {
		return 0, fmt.Errorf("entitlement: extend: %w", err)
	}
	return ttl, nil
}

// Revoke ends user's entitlement immediately. If the marker cannot be
// deleted it is given a one-second expiry instead.
func (m *Manager) Revoke(ctx context.Context, user types.UserID) error {
	key := Key(user)
	_, err := m.store.Del(ctx, key)
	if err == nil {
		return nil
	}

	m.logger.Warn("entitlement: delete failed, forcing expiry", "key", key, "error", err)
	if _, eerr := m.store.Expire(ctx, key, revokeFallbackTTL); eerr != nil {
		return fmt.Errorf("entitlement: revoke: %w", errors.Join(err, eerr))
	}
	return nil
}

// IsPro reports whether user currently holds an entitlement. Store failures
// read as "not Pro".
func (m *Manager) IsPro(ctx context.Context, user types.UserID) bool {
	_, err := m.store.Get(ctx, Key(user))
	if err == nil {
		return true
	}
	if !store.IsNil(err) {
		m.logger.Warn("entitlement: pro check failed", "user_id", user, "error", err)
	}
	return false
}

// Remaining returns the time left on user's entitlement. ok is false when
// there is no expiring grant or the store could not answer.
func (m *Manager) Remaining(ctx context.Context, user types.UserID) (time.Duration, bool) {
	ttl, err := m.store.TTL(ctx, Key(user))
	if err != nil {
		if !store.IsNil(err) {
			m.logger.Warn("entitlement: ttl lookup failed", "user_id", user, "error", err)
		}
		return 0, false
	}
	if ttl <= 0 {
		return 0, false
	}
	return ttl, true
}

// TTLDays returns the remaining whole days, rounded up. ok is false when
// there is no active grant.
func (m *Manager) TTLDays(ctx context.Context, user types.UserID) (int, bool) {
	ttl, ok := m.Remaining(ctx, user)
	if !ok {
		return 0, false
	}
	return CeilDays(ttl), true
}

// CeilDays rounds d up to whole days.
func CeilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + Day - 1) / Day)
}
