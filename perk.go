package perk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/perk/entitlement"
	"github.com/xraph/perk/id"
	"github.com/xraph/perk/meter"
	"github.com/xraph/perk/plugin"
	"github.com/xraph/perk/privacy"
	"github.com/xraph/perk/quota"
	"github.com/xraph/perk/ratelimit"
	"github.com/xraph/perk/referral"
	"github.com/xraph/perk/store"
	"github.com/xraph/perk/types"
)

// Defaults applied by New.
const (
	DefaultFreeLimit     = 1
	DefaultReferralBonus = 7
	DefaultPurchaseDays  = 30
)

// Admission reasons.
const (
	ReasonPro            = "pro"
	ReasonFree           = "free"
	ReasonRateLimited    = "rate_limited"
	ReasonQuotaExhausted = "quota_exhausted"
	ReasonInvalid        = "invalid"
)

// Counter names bumped by the engine.
const (
	CounterProPurchases = "pro_purchases"
	CounterStarts       = "starts"
)

// RequestsCounter names the per-kind counter of admitted requests.
func RequestsCounter(kind quota.Kind) string { return string(kind) + "_requests" }

// FreeUsedCounter names the per-kind counter of free uses consumed.
func FreeUsedCounter(kind quota.Kind) string { return "free_" + string(kind) + "_used" }

// ScoredCounter names the per-kind counter of completed requests.
func ScoredCounter(kind quota.Kind) string { return string(kind) + "_scored" }

// Perk wires entitlements, quotas, referrals, metrics, rate limiting and
// erasure against a single store.
type Perk struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time

	entitlements *entitlement.Manager
	quotas       *quota.Tracker
	referrals    *referral.Ledger
	meter        *meter.Aggregator
	limiter      *ratelimit.Limiter
	eraser       *privacy.Eraser

	// Configuration
	freeLimits    map[quota.Kind]int64
	referralBonus int
	purchaseDays  int
	rateLimit     int64
	rateWindow    time.Duration
	retention     time.Duration
	migrate       bool
}

// New creates a new Perk instance over s.
func New(s store.Store, opts ...Option) *Perk {
	p := &Perk{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		now:           time.Now,
		freeLimits:    make(map[quota.Kind]int64),
		referralBonus: DefaultReferralBonus,
		purchaseDays:  DefaultPurchaseDays,
		rateLimit:     ratelimit.DefaultLimit,
		rateWindow:    ratelimit.DefaultWindow,
		retention:     meter.DefaultRetention,
		migrate:       true,
	}
	for _, k := range quota.Kinds() {
		p.freeLimits[k] = DefaultFreeLimit
	}

	for _, opt := range opts {
		opt(p)
	}

	p.entitlements = entitlement.New(s, entitlement.WithLogger(p.logger))
	p.quotas = quota.New(s, quota.WithLogger(p.logger), quota.WithClock(p.now))
	p.referrals = referral.New(s, referral.WithLogger(p.logger))
	p.meter = meter.New(s,
		meter.WithLogger(p.logger),
		meter.WithClock(p.now),
		meter.WithRetention(p.retention),
	)
	p.limiter = ratelimit.New(s,
		ratelimit.WithLogger(p.logger),
		ratelimit.WithClock(p.now),
		ratelimit.WithLimit(p.rateLimit, p.rateWindow),
	)
	p.eraser = privacy.New(s, privacy.WithLogger(p.logger), privacy.WithClock(p.now))

	return p
}

// Option configures a Perk instance.
type Option func(*Perk)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Perk) {
		p.logger = logger
		p.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(pl plugin.Plugin) Option {
	return func(p *Perk) {
		_ = p.plugins.Register(pl) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock sets the time source shared by every component.
func WithClock(now func() time.Time) Option {
	return func(p *Perk) { p.now = now }
}

// WithFreeLimit sets the daily free uses of kind for non-Pro users.
func WithFreeLimit(kind quota.Kind, n int64) Option {
	return func(p *Perk) {
		if n >= 0 {
			p.freeLimits[kind] = n
		}
	}
}

// WithReferralBonus sets the days credited to a referrer on a buyer's first purchase.
func WithReferralBonus(days int) Option {
	return func(p *Perk) {
		if entitlement.ValidDays(days) {
			p.referralBonus = days
		}
	}
}

// WithPurchaseDays sets the Pro days granted by a purchase that names none.
func WithPurchaseDays(days int) Option {
	return func(p *Perk) {
		if entitlement.ValidDays(days) {
			p.purchaseDays = days
		}
	}
}

// WithRateLimit sets the sliding-window request limit per user. Non-positive
// values keep the default.
func WithRateLimit(limit int64, window time.Duration) Option {
	return func(p *Perk) {
		if limit > 0 && window > 0 {
			p.rateLimit = limit
			p.rateWindow = window
		}
	}
}

// WithRetention sets how long day-bucketed metrics are kept.
func WithRetention(d time.Duration) Option {
	return func(p *Perk) { p.retention = d }
}

// WithMigrate controls whether Start runs store migrations. Defaults to true.
func WithMigrate(enabled bool) Option {
	return func(p *Perk) { p.migrate = enabled }
}

// Start migrates the store when it needs it, checks it, and initializes
// plugins. An unreachable store is logged, not fatal: every component
// degrades to its safe default.
func (p *Perk) Start(ctx context.Context) error {
	if m, ok := p.store.(store.Migrator); ok && p.migrate {
		if err := m.Migrate(ctx); err != nil {
			p.logger.Warn("perk: store migration failed", "error", err)
		}
	}
	if err := p.store.Ping(ctx); err != nil {
		p.logger.Warn("perk: store unreachable at start", "error", err)
	}

	p.plugins.EmitInit(ctx, p)

	p.logger.Info("perk started",
		"rate_limit", p.rateLimit,
		"rate_window", p.rateWindow,
		"rate_enforced", p.limiter.Enforcing(),
		"retention", p.retention,
		"referral_bonus_days", p.referralBonus,
	)
	return nil
}

// Stop shuts down plugins and closes the store.
func (p *Perk) Stop() error {
	p.plugins.EmitShutdown(context.Background())
	return p.store.Close()
}

// ──────────────────────────────────────────────────
// Admission
// ──────────────────────────────────────────────────

// Admission is the outcome of Admit.
type Admission struct {
	Allowed bool   `json:"allowed"`
	Pro     bool   `json:"pro"`
	Reason  string `json:"reason"`
	// Remaining free uses today after this request; -1 for Pro users.
	Remaining int64 `json:"remaining"`
}

// FreeLimit returns the daily free uses of kind.
func (p *Perk) FreeLimit(kind quota.Kind) int64 {
	return p.freeLimits[kind]
}

// Admit decides whether user may issue one request of kind. The rate limiter
// runs first, then the Pro check; non-Pro users consume a free use.
func (p *Perk) Admit(ctx context.Context, user types.UserID, kind quota.Kind) Admission {
	if !user.Valid() || !kind.Valid() {
		return Admission{Reason: ReasonInvalid}
	}

	if d := p.limiter.Allow(ctx, user); !d.Allowed {
		p.plugins.EmitRateLimited(ctx, user)
		return Admission{Reason: ReasonRateLimited}
	}

	p.seen(ctx, user)

	if p.entitlements.IsPro(ctx, user) {
		p.bump(ctx, RequestsCounter(kind))
		return Admission{Allowed: true, Pro: true, Reason: ReasonPro, Remaining: -1}
	}

	limit := p.FreeLimit(kind)
	d := p.quotas.Take(ctx, user, kind, limit)
	if !d.Allowed {
		if d.Used > 0 {
			p.plugins.EmitQuotaExceeded(ctx, user, kind, d.Used, limit)
		}
		return Admission{Reason: ReasonQuotaExhausted}
	}

	p.bump(ctx, FreeUsedCounter(kind))
	p.bump(ctx, RequestsCounter(kind))
	return Admission{Allowed: true, Reason: ReasonFree, Remaining: d.Remaining}
}

// Complete records that an admitted request of kind finished successfully.
func (p *Perk) Complete(ctx context.Context, kind quota.Kind) {
	if !kind.Valid() {
		return
	}
	p.bump(ctx, ScoredCounter(kind))
}

// ──────────────────────────────────────────────────
// Referrals
// ──────────────────────────────────────────────────

// RecordStart handles a deep-link entry by user carrying startArg. Every
// non-empty code counts as a hit; a code naming another user links them as
// referrer. It reports whether a new link was created.
func (p *Perk) RecordStart(ctx context.Context, user types.UserID, startArg string) bool {
	if !user.Valid() {
		return false
	}
	p.seen(ctx, user)
	p.bump(ctx, CounterStarts)

	code := strings.TrimSpace(startArg)
	if code == "" {
		return false
	}
	if _, err := p.meter.RefHit(ctx, code); err != nil {
		p.logger.Warn("perk: ref hit failed", "code", code, "error", err)
	}

	referrer, err := types.ParseUserID(code)
	if err != nil || !referrer.Valid() || referrer == user {
		return false
	}

	linked, err := p.referrals.SetReferrer(ctx, user, referrer)
	if err != nil {
		p.logger.Warn("perk: link referrer failed",
			"user_id", user,
			"referrer", referrer,
			"error", err,
		)
		return false
	}
	if linked {
		p.plugins.EmitReferralLinked(ctx, user, referrer)
	}
	return linked
}

// ──────────────────────────────────────────────────
// Purchases
// ──────────────────────────────────────────────────

// PurchaseEvent is a successful payment reported by the payment layer.
type PurchaseEvent struct {
	ID      id.PurchaseID `json:"id"`
	BuyerID types.UserID  `json:"buyer_id"`
	// Days of Pro bought; zero means the configured default.
	Days int `json:"days,omitempty"`
}

// PurchaseResult is the outcome of HandlePurchase.
type PurchaseResult struct {
	ID      id.PurchaseID    `json:"id"`
	Granted int              `json:"granted"`
	Reward  *referral.Reward `json:"reward,omitempty"`
}

// HandlePurchase grants Pro to the buyer and, on the buyer's first purchase,
// credits their referrer with the referral bonus. A failed grant is returned
// and skips the reward; a failed bonus is logged and leaves Reward nil.
func (p *Perk) HandlePurchase(ctx context.Context, ev PurchaseEvent) (*PurchaseResult, error) {
	if !ev.BuyerID.Valid() {
		return nil, invalidUser(ev.BuyerID)
	}
	if ev.Days != 0 && !entitlement.ValidDays(ev.Days) {
		return nil, invalidDays(ev.Days)
	}
	if ev.ID.IsNil() {
		ev.ID = id.NewPurchaseID()
	}
	days := ev.Days
	if days == 0 {
		days = p.purchaseDays
	}

	if err := p.entitlements.Grant(ctx, ev.BuyerID, days); err != nil {
		return nil, fmt.Errorf("perk: grant purchase %s: %w", ev.ID, err)
	}
	p.bump(ctx, CounterProPurchases)
	p.plugins.EmitProGranted(ctx, ev.BuyerID, days)
	p.plugins.EmitPurchase(ctx, ev.ID, ev.BuyerID, days)

	return &PurchaseResult{
		ID:      ev.ID,
		Granted: days,
		Reward:  p.rewardReferrer(ctx, ev.BuyerID),
	}, nil
}

func (p *Perk) rewardReferrer(ctx context.Context, buyer types.UserID) *referral.Reward {
	referrer, ok := p.referrals.Referrer(ctx, buyer)
	if !ok || referrer == buyer {
		return nil
	}

	first, err := p.referrals.MarkRewardedOnce(ctx, buyer)
	if err != nil {
		p.logger.Warn("perk: reward flag failed", "buyer", buyer, "error", err)
		return nil
	}
	if !first {
		return nil
	}

	remaining, err := p.entitlements.Extend(ctx, referrer, p.referralBonus)
	if err != nil {
		p.logger.Error("perk: referral bonus lost",
			"referrer", referrer,
			"buyer", buyer,
			"error", err,
		)
		return nil
	}

	reward := &referral.Reward{
		ID:        id.NewRewardID(),
		Referrer:  referrer,
		Buyer:     buyer,
		BonusDays: p.referralBonus,
		Remaining: remaining,
		At:        p.now().UTC(),
	}
	p.plugins.EmitProExtended(ctx, referrer, p.referralBonus, remaining)
	p.plugins.EmitReferralRewarded(ctx, reward)
	return reward
}

// ──────────────────────────────────────────────────
// Entitlements
// ──────────────────────────────────────────────────

// Grant sets user's Pro entitlement to exactly days.
func (p *Perk) Grant(ctx context.Context, user types.UserID, days int) error {
	if !user.Valid() {
		return invalidUser(user)
	}
	if err := p.entitlements.Grant(ctx, user, days); err != nil {
		return err
	}
	p.plugins.EmitProGranted(ctx, user, days)
	return nil
}

// Extend adds days to user's Pro entitlement and returns the new remaining time.
func (p *Perk) Extend(ctx context.Context, user types.UserID, days int) (time.Duration, error) {
	if !user.Valid() {
		return 0, invalidUser(user)
	}
	remaining, err := p.entitlements.Extend(ctx, user, days)
	if err != nil {
		return 0, err
	}
	p.plugins.EmitProExtended(ctx, user, days, remaining)
	return remaining, nil
}

// Revoke removes user's Pro entitlement.
func (p *Perk) Revoke(ctx context.Context, user types.UserID) error {
	if !user.Valid() {
		return invalidUser(user)
	}
	if err := p.entitlements.Revoke(ctx, user); err != nil {
		return err
	}
	p.plugins.EmitProRevoked(ctx, user)
	return nil
}

// Status summarizes a user's standing.
type Status struct {
	User types.UserID `json:"user"`
	Pro  bool         `json:"pro"`
	// DaysLeft is the Pro days left rounded up; zero when the grant has no expiry.
	DaysLeft int                  `json:"days_left,omitempty"`
	Free     map[quota.Kind]int64 `json:"free"`
	Referrer types.UserID         `json:"referrer,omitempty"`
}

// Status reports user's Pro state and remaining free uses today.
func (p *Perk) Status(ctx context.Context, user types.UserID) Status {
	st := Status{User: user, Free: make(map[quota.Kind]int64, len(p.freeLimits))}
	st.Pro = p.entitlements.IsPro(ctx, user)
	if st.Pro {
		st.DaysLeft, _ = p.entitlements.TTLDays(ctx, user)
	}
	for _, k := range quota.Kinds() {
		st.Free[k] = p.quotas.RemainingToday(ctx, user, k, p.FreeLimit(k))
	}
	if r, ok := p.referrals.Referrer(ctx, user); ok {
		st.Referrer = r
	}
	return st
}

// ──────────────────────────────────────────────────
// Privacy
// ──────────────────────────────────────────────────

// Erase deletes user's referral and quota keys and returns how many existed.
func (p *Perk) Erase(ctx context.Context, user types.UserID) int64 {
	if !user.Valid() {
		return 0
	}
	n := p.eraser.Erase(ctx, user)
	p.plugins.EmitUserErased(ctx, user, n)
	p.logger.Info("perk: user erased",
		"erasure_id", id.NewErasureID(),
		"user_id", user,
		"keys_removed", n,
	)
	return n
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Store returns the underlying store.
func (p *Perk) Store() store.Store { return p.store }

// Plugins returns the plugin registry.
func (p *Perk) Plugins() *plugin.Registry { return p.plugins }

// Entitlements returns the entitlement manager.
func (p *Perk) Entitlements() *entitlement.Manager { return p.entitlements }

// Quotas returns the quota tracker.
func (p *Perk) Quotas() *quota.Tracker { return p.quotas }

// Referrals returns the referral ledger.
func (p *Perk) Referrals() *referral.Ledger { return p.referrals }

// Meter returns the metrics aggregator.
func (p *Perk) Meter() *meter.Aggregator { return p.meter }

// Limiter returns the rate limiter.
func (p *Perk) Limiter() *ratelimit.Limiter { return p.limiter }

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func (p *Perk) seen(ctx context.Context, user types.UserID) {
	if _, err := p.meter.MarkUserSeenToday(ctx, user); err != nil {
		p.logger.Warn("perk: mark seen failed", "user_id", user, "error", err)
	}
}

func (p *Perk) bump(ctx context.Context, name string) {
	if _, err := p.meter.Bump(ctx, name, 1); err != nil {
		p.logger.Warn("perk: bump failed", "counter", name, "error", err)
	}
}
