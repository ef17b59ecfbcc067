package perk

import (
	"errors"
	"fmt"

	"github.com/xraph/perk/entitlement"
	"github.com/xraph/perk/quota"
	"github.com/xraph/perk/referral"
	"github.com/xraph/perk/store"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrInvalidInput = errors.New("perk: invalid input")
	ErrInvalidKind  = quota.ErrInvalidKind

	// Admission errors
	ErrRateLimited    = errors.New("perk: rate limited")
	ErrQuotaExhausted = errors.New("perk: daily quota exhausted")

	// Entitlement errors
	ErrInvalidDays = entitlement.ErrInvalidDays

	// Referral errors
	ErrSelfReferral    = referral.ErrSelfReferral
	ErrInvalidReferrer = referral.ErrInvalidReferrer

	// Store errors
	ErrStoreUnavailable = store.ErrUnavailable
	ErrStoreClosed      = store.ErrClosed
	ErrWrongType        = store.ErrWrongType
	ErrNotInteger       = store.ErrNotInteger
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
	// Err is the sentinel the failure matches; ErrInvalidInput when nil.
	Err error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("perk: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match the underlying sentinel.
func (e ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

func invalidUser(user UserID) error {
	return ValidationError{Field: "user", Message: fmt.Sprintf("%d is not a user id", user)}
}

func invalidDays(days int) error {
	return ValidationError{
		Field:   "days",
		Message: fmt.Sprintf("%d is outside 1..%d", days, entitlement.MaxDays),
		Err:     ErrInvalidDays,
	}
}

// Err maps an admission to an error: nil when admitted, otherwise the
// sentinel matching its reason.
func (a Admission) Err() error {
	switch {
	case a.Allowed:
		return nil
	case a.Reason == ReasonRateLimited:
		return ErrRateLimited
	case a.Reason == ReasonQuotaExhausted:
		return ErrQuotaExhausted
	default:
		return ErrInvalidInput
	}
}

// IsUnavailable returns true if the error came from an unreachable or closed store.
func IsUnavailable(err error) bool {
	return store.IsUnavailable(err)
}

// IsInvalid returns true if the error was caused by bad input.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrInvalidDays) ||
		errors.Is(err, ErrSelfReferral) ||
		errors.Is(err, ErrInvalidReferrer)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrRateLimited)
}
