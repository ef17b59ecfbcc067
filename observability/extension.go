// Package observability provides a metrics extension for perk that records
// lifecycle event counts through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/perk/entitlement"
	"github.com/xraph/perk/id"
	"github.com/xraph/perk/plugin"
	"github.com/xraph/perk/quota"
	"github.com/xraph/perk/referral"
	"github.com/xraph/perk/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnProGranted       = (*MetricsExtension)(nil)
	_ plugin.OnProExtended      = (*MetricsExtension)(nil)
	_ plugin.OnProRevoked       = (*MetricsExtension)(nil)
	_ plugin.OnQuotaExceeded    = (*MetricsExtension)(nil)
	_ plugin.OnRateLimited      = (*MetricsExtension)(nil)
	_ plugin.OnReferralLinked   = (*MetricsExtension)(nil)
	_ plugin.OnReferralRewarded = (*MetricsExtension)(nil)
	_ plugin.OnPurchase         = (*MetricsExtension)(nil)
	_ plugin.OnUserErased       = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a perk plugin to track entitlement and referral activity.
type MetricsExtension struct {
	factory MetricFactory

	// Entitlement metrics
	ProGranted    Counter
	ProExtended   Counter
	ProRevoked    Counter
	ProGrantDays  Histogram
	ProRemainDays Histogram

	// Admission metrics
	QuotaExceeded Counter
	RateLimited   Counter

	// Referral metrics
	ReferralLinked   Counter
	ReferralRewarded Counter
	ReferralBonus    Histogram

	// Purchase metrics
	Purchases Counter

	// Privacy metrics
	UsersErased Counter
	KeysErased  Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		ProGranted:    factory.Counter("perk.pro.granted"),
		ProExtended:   factory.Counter("perk.pro.extended"),
		ProRevoked:    factory.Counter("perk.pro.revoked"),
		ProGrantDays:  factory.Histogram("perk.pro.grant_days"),
		ProRemainDays: factory.Histogram("perk.pro.remaining_days"),

		QuotaExceeded: factory.Counter("perk.quota.exceeded"),
		RateLimited:   factory.Counter("perk.ratelimit.rejected"),

		ReferralLinked:   factory.Counter("perk.referral.linked"),
		ReferralRewarded: factory.Counter("perk.referral.rewarded"),
		ReferralBonus:    factory.Histogram("perk.referral.bonus_days"),

		Purchases: factory.Counter("perk.purchase.completed"),

		UsersErased: factory.Counter("perk.privacy.users_erased"),
		KeysErased:  factory.Counter("perk.privacy.keys_erased"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnProGranted implements plugin.OnProGranted.
func (m *MetricsExtension) OnProGranted(_ context.Context, _ types.UserID, days int) error {
	m.ProGranted.Inc()
	m.ProGrantDays.Observe(float64(days))
	return nil
}

// OnProExtended implements plugin.OnProExtended.
func (m *MetricsExtension) OnProExtended(_ context.Context, _ types.UserID, _ int, remaining time.Duration) error {
	m.ProExtended.Inc()
	m.ProRemainDays.Observe(float64(entitlement.CeilDays(remaining)))
	return nil
}

// OnProRevoked implements plugin.OnProRevoked.
func (m *MetricsExtension) OnProRevoked(_ context.Context, _ types.UserID) error {
	m.ProRevoked.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Admission hooks
// ──────────────────────────────────────────────────

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (m *MetricsExtension) OnQuotaExceeded(_ context.Context, _ types.UserID, _ quota.Kind, _, _ int64) error {
	m.QuotaExceeded.Inc()
	return nil
}

// OnRateLimited implements plugin.OnRateLimited.
func (m *MetricsExtension) OnRateLimited(_ context.Context, _ types.UserID) error {
	m.RateLimited.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Referral and purchase hooks
// ──────────────────────────────────────────────────

// OnReferralLinked implements plugin.OnReferralLinked.
func (m *MetricsExtension) OnReferralLinked(_ context.Context, _, _ types.UserID) error {
	m.ReferralLinked.Inc()
	return nil
}

// OnReferralRewarded implements plugin.OnReferralRewarded.
func (m *MetricsExtension) OnReferralRewarded(_ context.Context, reward *referral.Reward) error {
	m.ReferralRewarded.Inc()
	m.ReferralBonus.Observe(float64(reward.BonusDays))
	return nil
}

// OnPurchase implements plugin.OnPurchase.
func (m *MetricsExtension) OnPurchase(_ context.Context, _ id.PurchaseID, _ types.UserID, _ int) error {
	m.Purchases.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Privacy hooks
// ──────────────────────────────────────────────────

// OnUserErased implements plugin.OnUserErased.
func (m *MetricsExtension) OnUserErased(_ context.Context, _ types.UserID, removed int64) error {
	m.UsersErased.Inc()
	m.KeysErased.Add(float64(removed))
	return nil
}
