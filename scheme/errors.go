/*
PURPOSE:
  Defines the error taxonomy for the savings engine. Callers classify
  failures with errors.Is against the sentinels below, or with the
  IsRetryable/IsClientError/IsNotFound helpers when they only care about
  the broad category.

KEY CONCEPTS:
  - Sentinel errors: Comparable root causes (ErrEnrollmentNotActive, ...)
  - Structured errors: Carry context (which field, which amounts) and
    unwrap to a sentinel so both styles of checking work
  - Classification: Retryable (transient store trouble) vs client error
    (caller mistake) vs not-found

USAGE:
  if errors.Is(err, scheme.ErrPartialPaymentNotAllowed) { ... }
  var ppe *scheme.PartialPaymentError
  if errors.As(err, &ppe) { log.Info().Str("expected", ppe.Expected.String())... }
*/
package scheme

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrInvalidScheme indicates a scheme definition violates a structural
	// rule (bad duration, benefit/type mismatch, ...).
	ErrInvalidScheme = errors.New("invalid scheme definition")

	// ErrSchemeNotFound indicates no scheme exists with the given ID.
	ErrSchemeNotFound = errors.New("scheme not found")

	// ErrSchemeInactive indicates the scheme no longer accepts enrollments.
	ErrSchemeInactive = errors.New("scheme is not accepting enrollments")

	// ErrEnrollmentNotFound indicates no enrollment exists with the given ID.
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrEnrollmentNotActive indicates a mutating operation was attempted
	// against an enrollment in a terminal status.
	ErrEnrollmentNotActive = errors.New("enrollment is not active")

	// ErrPartialPaymentNotAllowed indicates an installment amount differs
	// from the fixed amount on a scheme that forbids partial payments.
	ErrPartialPaymentNotAllowed = errors.New("partial payment not allowed")

	// ErrMissingGoldRate indicates a per-payment conversion scheme received
	// a payment without a positive gold rate.
	ErrMissingGoldRate = errors.New("gold rate required for per-payment conversion")

	// ErrInvalidAdjustment indicates an adjustment would drive an
	// enrollment's total paid negative, or carries a zero amount.
	ErrInvalidAdjustment = errors.New("invalid adjustment")

	// ErrAlreadyRedeemed indicates a second redemption was attempted.
	ErrAlreadyRedeemed = errors.New("enrollment already redeemed")

	// ErrRedemptionBeforeStart indicates a redemption dated before the
	// enrollment's start date.
	ErrRedemptionBeforeStart = errors.New("redemption date precedes enrollment start")

	// ErrDuplicateAccountNumber indicates the account number is already
	// taken within the shop.
	ErrDuplicateAccountNumber = errors.New("account number already in use")

	// ErrDuplicateIdempotencyKey indicates a transaction with the same
	// idempotency key was already recorded.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrCancelForfeitsBalance indicates a cancellation was attempted on an
	// enrollment holding a balance without the forfeit flag.
	ErrCancelForfeitsBalance = errors.New("cancellation forfeits a non-zero balance")

	// ErrStoreUnavailable indicates a transient storage failure. Retryable.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConflictRetry indicates an optimistic concurrency conflict.
	// Retryable.
	ErrConflictRetry = errors.New("conflicting concurrent update, retry")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidSchemeError reports which field of a scheme definition is broken.
type InvalidSchemeError struct {
	Field  string
	Reason string
}

func (e *InvalidSchemeError) Error() string {
	return fmt.Sprintf("invalid scheme definition: %s: %s", e.Field, e.Reason)
}

func (e *InvalidSchemeError) Unwrap() error { return ErrInvalidScheme }

// PartialPaymentError carries the expected and offered installment amounts.
type PartialPaymentError struct {
	Expected decimal.Decimal
	Got      decimal.Decimal
}

func (e *PartialPaymentError) Error() string {
	return fmt.Sprintf("partial payment not allowed: expected %s, got %s",
		e.Expected.String(), e.Got.String())
}

func (e *PartialPaymentError) Unwrap() error { return ErrPartialPaymentNotAllowed }

// AdjustmentError explains why an adjustment was rejected.
type AdjustmentError struct {
	EnrollmentID EnrollmentID
	Amount       decimal.Decimal
	Reason       string
}

func (e *AdjustmentError) Error() string {
	return fmt.Sprintf("invalid adjustment of %s on enrollment %s: %s",
		e.Amount.String(), e.EnrollmentID, e.Reason)
}

func (e *AdjustmentError) Unwrap() error { return ErrInvalidAdjustment }

// TransitionError reports an illegal lifecycle transition.
type TransitionError struct {
	EnrollmentID EnrollmentID
	From         EnrollmentStatus
	Action       string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s enrollment %s in status %s",
		e.Action, e.EnrollmentID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrEnrollmentNotActive }

// StoreError wraps a storage backend failure as retryable.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return ErrStoreUnavailable }

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsRetryable reports whether the operation may succeed if repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrConflictRetry)
}

// IsNotFound reports whether the error is any flavour of missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSchemeNotFound) || errors.Is(err, ErrEnrollmentNotFound)
}

// IsClientError reports whether the caller, not the system, caused the
// failure. Client errors map to 4xx at the API boundary.
func IsClientError(err error) bool {
	switch {
	case IsNotFound(err),
		errors.Is(err, ErrInvalidScheme),
		errors.Is(err, ErrSchemeInactive),
		errors.Is(err, ErrEnrollmentNotActive),
		errors.Is(err, ErrPartialPaymentNotAllowed),
		errors.Is(err, ErrMissingGoldRate),
		errors.Is(err, ErrInvalidAdjustment),
		errors.Is(err, ErrAlreadyRedeemed),
		errors.Is(err, ErrRedemptionBeforeStart),
		errors.Is(err, ErrDuplicateAccountNumber),
		errors.Is(err, ErrDuplicateIdempotencyKey),
		errors.Is(err, ErrCancelForfeitsBalance):
		return true
	}
	return false
}
