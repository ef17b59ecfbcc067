// Package referral records first-touch referral attribution and guards the
// one-time referral reward.
package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/perk/id"
	"github.com/xraph/perk/store"
	"github.com/xraph/perk/types"
)

// Errors returned by the Ledger.
var (
	ErrSelfReferral    = errors.New("referral: user cannot refer themselves")
	ErrInvalidReferrer = errors.New("referral: invalid referrer")
)

// LinkKey returns the key holding the referrer of user.
func LinkKey(user types.UserID) string {
	return "ref_by:" + user.String()
}

// RewardKey returns the one-shot reward flag of buyer.
func RewardKey(buyer types.UserID) string {
	return "ref_rewarded:" + buyer.String()
}

// Reward describes a referral bonus paid to a referrer for a buyer's purchase.
type Reward struct {
	ID        id.RewardID   `json:"id"`
	Referrer  types.UserID  `json:"referrer"`
	Buyer     types.UserID  `json:"buyer"`
	BonusDays int           `json:"bonus_days"`
	Remaining time.Duration `json:"remaining"`
	At        time.Time     `json:"at"`
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// Ledger stores referral links and reward flags.
type Ledger struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a Ledger over s.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{store: s, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetReferrer links user to referrer unless a link already exists. It
// reports whether this call created the link.
func (l *Ledger) SetReferrer(ctx context.Context, user, referrer types.UserID) (bool, error) {
	if !referrer.Valid() {
		return false, ErrInvalidReferrer
	}
	if referrer == user {
		return false, ErrSelfReferral
	}
	ok, err := l.store.SetNX(ctx, LinkKey(user), referrer.String(), 0)
	if err != nil {
		return false, fmt.Errorf("referral: set referrer: %w", err)
	}
	return ok, nil
}

// Referrer returns who referred user. ok is false when nobody did or the
// store could not answer.
func (l *Ledger) Referrer(ctx context.Context, user types.UserID) (types.UserID, bool) {
	v, err := l.store.Get(ctx, LinkKey(user))
	if err != nil {
		if !store.IsNil(err) {
			l.logger.Warn("referral: lookup failed", "user_id", user, "error", err)
		}
		return 0, false
	}
	ref, err := types.ParseUserID(v)
	if err != nil {
		l.logger.Warn("referral: malformed link", "user_id", user, "value", v)
		return 0, false
	}
	return ref, true
}

// MarkRewardedOnce consumes buyer's reward flag. Exactly one caller ever
// sees true; the flag never expires.
func (l *Ledger) MarkRewardedOnce(ctx context.Context, buyer types.UserID) (bool, error) {
	ok, err := l.store.SetNX(ctx, RewardKey(buyer), "1", 0)
	if err != nil {
		return false, fmt.Errorf("referral: mark rewarded: %w", err)
	}
	return ok, nil
}

// Keys returns every referral key identifying user.
func Keys(user types.UserID) []string {
	return []string{LinkKey(user), RewardKey(user)}
}
