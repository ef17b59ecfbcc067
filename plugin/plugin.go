// Package plugin provides the hook system of perk. Plugins implement any
// subset of the hook interfaces below and are discovered by type at
// registration.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/perk/id"
	"github.com/xraph/perk/quota"
	"github.com/xraph/perk/referral"
	"github.com/xraph/perk/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnProGranted is called after a user was granted Pro for days.
type OnProGranted interface {
	Plugin
	OnProGranted(ctx context.Context, user types.UserID, days int) error
}

// OnProExtended is called after a user's Pro was extended by days.
type OnProExtended interface {
	Plugin
	OnProExtended(ctx context.Context, user types.UserID, days int, remaining time.Duration) error
}

// OnProRevoked is called after a user's Pro was revoked.
type OnProRevoked interface {
	Plugin
	OnProRevoked(ctx context.Context, user types.UserID) error
}

// ──────────────────────────────────────────────────
// Admission hooks
// ──────────────────────────────────────────────────

// OnQuotaExceeded is called when a free user is denied for lack of quota.
type OnQuotaExceeded interface {
	Plugin
	OnQuotaExceeded(ctx context.Context, user types.UserID, kind quota.Kind, used, limit int64) error
}

// OnRateLimited is called when a request is rejected by the rate limiter.
type OnRateLimited interface {
	Plugin
	OnRateLimited(ctx context.Context, user types.UserID) error
}

// ──────────────────────────────────────────────────
// Referral and purchase hooks
// ──────────────────────────────────────────────────

// OnReferralLinked is called when a user is first attributed to a referrer.
type OnReferralLinked interface {
	Plugin
	OnReferralLinked(ctx context.Context, user, referrer types.UserID) error
}

// OnReferralRewarded is called once per buyer when the referrer got a bonus.
// Delivery is best-effort; use it to notify the referrer.
type OnReferralRewarded interface {
	Plugin
	OnReferralRewarded(ctx context.Context, reward *referral.Reward) error
}

// OnPurchase is called after a purchase granted Pro.
type OnPurchase interface {
	Plugin
	OnPurchase(ctx context.Context, purchaseID id.PurchaseID, buyer types.UserID, days int) error
}

// ──────────────────────────────────────────────────
// Privacy hooks
// ──────────────────────────────────────────────────

// OnUserErased is called after a user's identifying keys were deleted.
type OnUserErased interface {
	Plugin
	OnUserErased(ctx context.Context, user types.UserID, removed int64) error
}
