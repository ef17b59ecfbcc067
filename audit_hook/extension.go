// Package audithook bridges perk lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// particular audit store. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/perk/id"
	"github.com/xraph/perk/plugin"
	"github.com/xraph/perk/quota"
	"github.com/xraph/perk/referral"
	"github.com/xraph/perk/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnProGranted       = (*Extension)(nil)
	_ plugin.OnProExtended      = (*Extension)(nil)
	_ plugin.OnProRevoked       = (*Extension)(nil)
	_ plugin.OnQuotaExceeded    = (*Extension)(nil)
	_ plugin.OnRateLimited      = (*Extension)(nil)
	_ plugin.OnReferralLinked   = (*Extension)(nil)
	_ plugin.OnReferralRewarded = (*Extension)(nil)
	_ plugin.OnPurchase         = (*Extension)(nil)
	_ plugin.OnUserErased       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	ID         id.AuditID     `json:"id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
	At         time.Time      `json:"at"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges perk lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnProGranted implements plugin.OnProGranted.
func (e *Extension) OnProGranted(ctx context.Context, user types.UserID, days int) error {
	return e.record(ctx, ActionProGranted, SeverityInfo, OutcomeSuccess,
		ResourceEntitlement, user.String(), CategoryAccess, nil,
		"days", days,
	)
}

// OnProExtended implements plugin.OnProExtended.
func (e *Extension) OnProExtended(ctx context.Context, user types.UserID, days int, remaining time.Duration) error {
	return e.record(ctx, ActionProExtended, SeverityInfo, OutcomeSuccess,
		ResourceEntitlement, user.String(), CategoryAccess, nil,
		"days", days,
		"remaining_seconds", int64(remaining.Seconds()),
	)
}

// OnProRevoked implements plugin.OnProRevoked.
func (e *Extension) OnProRevoked(ctx context.Context, user types.UserID) error {
	return e.record(ctx, ActionProRevoked, SeverityWarning, OutcomeSuccess,
		ResourceEntitlement, user.String(), CategoryAccess, nil,
	)
}

// ──────────────────────────────────────────────────
// Admission hooks
// ──────────────────────────────────────────────────

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (e *Extension) OnQuotaExceeded(ctx context.Context, user types.UserID, kind quota.Kind, used, limit int64) error {
	return e.record(ctx, ActionQuotaExceeded, SeverityInfo, OutcomeFailure,
		ResourceQuota, user.String(), CategoryAccess, nil,
		"kind", string(kind),
		"used", used,
		"limit", limit,
	)
}

// OnRateLimited implements plugin.OnRateLimited.
func (e *Extension) OnRateLimited(ctx context.Context, user types.UserID) error {
	return e.record(ctx, ActionRateLimited, SeverityWarning, OutcomeFailure,
		ResourceRateLimit, user.String(), CategoryAbuse, nil,
	)
}

// ──────────────────────────────────────────────────
// Referral and purchase hooks
// ──────────────────────────────────────────────────

// OnReferralLinked implements plugin.OnReferralLinked.
func (e *Extension) OnReferralLinked(ctx context.Context, user, referrer types.UserID) error {
	return e.record(ctx, ActionReferralLinked, SeverityInfo, OutcomeSuccess,
		ResourceReferral, user.String(), CategoryGrowth, nil,
		"referrer", referrer.String(),
	)
}

// OnReferralRewarded implements plugin.OnReferralRewarded.
func (e *Extension) OnReferralRewarded(ctx context.Context, reward *referral.Reward) error {
	return e.record(ctx, ActionReferralRewarded, SeverityInfo, OutcomeSuccess,
		ResourceReferral, reward.ID.String(), CategoryGrowth, nil,
		"referrer", reward.Referrer.String(),
		"buyer", reward.Buyer.String(),
		"bonus_days", reward.BonusDays,
	)
}

// OnPurchase implements plugin.OnPurchase.
func (e *Extension) OnPurchase(ctx context.Context, purchaseID id.PurchaseID, buyer types.UserID, days int) error {
	return e.record(ctx, ActionPurchaseCompleted, SeverityInfo, OutcomeSuccess,
		ResourcePurchase, purchaseID.String(), CategoryPayment, nil,
		"buyer", buyer.String(),
		"days", days,
	)
}

// ──────────────────────────────────────────────────
// Privacy hooks
// ──────────────────────────────────────────────────

// OnUserErased implements plugin.OnUserErased.
func (e *Extension) OnUserErased(ctx context.Context, user types.UserID, removed int64) error {
	outcome := OutcomeSuccess
	if removed == 0 {
		outcome = OutcomePartial
	}
	return e.record(ctx, ActionUserErased, SeverityWarning, outcome,
		ResourceUser, user.String(), CategoryPrivacy, nil,
		"keys_removed", removed,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		ID:         id.NewAuditID(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
		At:         time.Now().UTC(),
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
