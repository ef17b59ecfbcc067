package audithook

// Action constants for audit events.
const (
	// Entitlement actions
	ActionProGranted  = "pro.granted"
	ActionProExtended = "pro.extended"
	ActionProRevoked  = "pro.revoked"

	// Admission actions
	ActionQuotaExceeded = "quota.exceeded"
	ActionRateLimited   = "ratelimit.rejected"

	// Referral actions
	ActionReferralLinked   = "referral.linked"
	ActionReferralRewarded = "referral.rewarded"

	// Purchase actions
	ActionPurchaseCompleted = "purchase.completed"

	// Privacy actions
	ActionUserErased = "user.erased"
)

// Resource constants for audit events.
const (
	ResourceEntitlement = "entitlement"
	ResourceQuota       = "quota"
	ResourceRateLimit   = "ratelimit"
	ResourceReferral    = "referral"
	ResourcePurchase    = "purchase"
	ResourceUser        = "user"
)

// Category constants for audit events.
const (
	CategoryAccess  = "access"
	CategoryGrowth  = "growth"
	CategoryPayment = "payment"
	CategoryPrivacy = "privacy"
	CategoryAbuse   = "abuse"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
