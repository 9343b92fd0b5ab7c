/*
Package scheme provides the gold savings scheme accrual and redemption engine.

PURPOSE:
  This package contains the domain types and algorithms that turn a stream
  of dated installment payments into a consistent running balance, compute
  maturity and redemption value under several benefit policies, and govern
  an enrollment's lifecycle from activation through payout.

KEY CONCEPTS IN THIS FILE (types.go):
  - Scheme: An immutable template defining duration, amount policy, and
    bonus rules for a recurring-contribution plan
  - Enrollment: One customer's live subscription to a Scheme
  - Transaction: An immutable ledger entry recording an installment, bonus,
    fine, or adjustment against an Enrollment
  - Redemption: The terminal settlement paying out accrued value plus bonus

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified; corrections happen via
     new adjustment entries, never by editing history
  2. Precision: Uses decimal.Decimal to avoid floating-point errors in
     currency and gram arithmetic
  3. Auditability: Enrollment totals are cached for performance but always
     recomputable from the transaction log (the log is the source of truth)
  4. Explicit time and rates: the current date and the gold rate are always
     parameters, never ambient state, so every calculation is testable

USAGE:
  s := scheme.Scheme{
      Type:           scheme.FixedAmount,
      DurationMonths: 11,
      ...
  }
  if err := s.Validate(); err != nil { ... }

SEE ALSO:
  - schedule.go: Due dates, missed counts, grace windows
  - benefit.go: Maturity value under each benefit policy
  - accrual.go: Recording payments, fines, and adjustments
  - lifecycle.go: Enrollment state machine and redemption
*/
package scheme

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	SchemeID      string
	ShopID        string
	CustomerID    string
	EnrollmentID  string
	TransactionID string
	RedemptionID  string
)

// =============================================================================
// AMOUNT HELPERS - currency to 2dp, gold grams to 3dp
// =============================================================================

// RoundMoney rounds a currency amount to 2 decimal places, half-up.
func RoundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// RoundGrams rounds a gold weight to 3 decimal places, half-up.
func RoundGrams(d decimal.Decimal) decimal.Decimal { return d.Round(3) }

// MustParseDecimal parses a stored decimal string, returning zero on failure.
// Storage writes only values produced by decimal.String, so a parse failure
// indicates external tampering rather than a normal error path.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// SCHEME - Template for a recurring-contribution plan
// =============================================================================

// SchemeType determines how installment amounts are constrained.
type SchemeType string

const (
	// FixedAmount: every installment is the scheme's fixed amount
	// (unless the scheme allows partial payments).
	FixedAmount SchemeType = "fixed_amount"

	// VariableAmount: the customer chooses each installment's amount.
	VariableAmount SchemeType = "variable_amount"
)

// BenefitType selects the bonus policy applied at maturity.
type BenefitType string

const (
	// LastInstallmentFree: the shop waives one installment; the bonus equals
	// the fixed installment amount. Only valid for FixedAmount schemes.
	LastInstallmentFree BenefitType = "last_installment_free"

	// BonusPercent: bonus = total paid * benefit value / 100.
	BonusPercent BenefitType = "bonus_percent"

	// FixedBonus: bonus = benefit value, a flat currency amount.
	FixedBonus BenefitType = "fixed_bonus"

	// BonusMonths: bonus = average monthly contribution * benefit value,
	// where the average is total paid / scheme duration.
	BonusMonths BenefitType = "bonus_months"
)

// GoldConversionTiming determines when currency converts to gold weight.
type GoldConversionTiming string

const (
	// ConvertPerPayment: each payment is converted at that day's rate and
	// the enrollment accumulates grams alongside currency.
	ConvertPerPayment GoldConversionTiming = "per_payment"

	// ConvertAtMaturity: the whole accumulated value converts once, at the
	// rate supplied when the enrollment is redeemed.
	ConvertAtMaturity GoldConversionTiming = "at_maturity"
)

// SchemeRules is the policy bundle governing grace periods, defaults,
// bonuses, and gold conversion for a scheme.
type SchemeRules struct {
	GracePeriodDays      int
	MaxMissedPayments    int // 0 disables auto-default detection
	BenefitType          BenefitType
	BenefitValue         decimal.Decimal // meaning depends on BenefitType
	GoldConversionTiming GoldConversionTiming
	GoldPurity           string // e.g. "22K", "24K"
	AllowPartialPayment  bool
}

// Scheme is the template a shop offers. Immutable once enrollments exist,
// except for the IsActive toggle.
type Scheme struct {
	ID             SchemeID
	ShopID         ShopID
	Name           string
	Type           SchemeType
	DurationMonths int

	// FixedInstallmentAmount is set iff Type == FixedAmount.
	FixedInstallmentAmount decimal.Decimal

	Rules    SchemeRules
	IsActive bool

	CreatedAt time.Time
}

// Validate checks structural scheme invariants. All violations unwrap to
// ErrInvalidScheme.
func (s Scheme) Validate() error {
	if s.DurationMonths <= 0 {
		return &InvalidSchemeError{Field: "duration_months", Reason: "must be positive"}
	}
	switch s.Type {
	case FixedAmount:
		if !s.FixedInstallmentAmount.IsPositive() {
			return &InvalidSchemeError{Field: "fixed_installment_amount", Reason: "must be positive for fixed-amount schemes"}
		}
	case VariableAmount:
		if !s.FixedInstallmentAmount.IsZero() {
			return &InvalidSchemeError{Field: "fixed_installment_amount", Reason: "must be unset for variable-amount schemes"}
		}
	default:
		return &InvalidSchemeError{Field: "scheme_type", Reason: "unknown scheme type"}
	}
	if s.Rules.GracePeriodDays < 0 {
		return &InvalidSchemeError{Field: "grace_period_days", Reason: "must not be negative"}
	}
	if s.Rules.MaxMissedPayments < 0 {
		return &InvalidSchemeError{Field: "max_missed_payments", Reason: "must not be negative"}
	}
	if s.Rules.BenefitValue.IsNegative() {
		return &InvalidSchemeError{Field: "benefit_value", Reason: "must not be negative"}
	}
	switch s.Rules.BenefitType {
	case LastInstallmentFree:
		// No average installment exists to waive on a variable scheme.
		if s.Type == VariableAmount {
			return &InvalidSchemeError{Field: "benefit_type", Reason: "last_installment_free requires a fixed-amount scheme"}
		}
	case BonusPercent:
		if s.Rules.BenefitValue.GreaterThan(decimal.NewFromInt(100)) {
			return &InvalidSchemeError{Field: "benefit_value", Reason: "bonus percent must not exceed 100"}
		}
	case FixedBonus, BonusMonths:
	default:
		return &InvalidSchemeError{Field: "benefit_type", Reason: "unknown benefit type"}
	}
	switch s.Rules.GoldConversionTiming {
	case ConvertPerPayment, ConvertAtMaturity:
	default:
		return &InvalidSchemeError{Field: "gold_conversion_timing", Reason: "unknown conversion timing"}
	}
	return nil
}

// =============================================================================
// ENROLLMENT - One customer's subscription to a Scheme
// =============================================================================

type EnrollmentStatus string

const (
	StatusActive    EnrollmentStatus = "active"
	StatusMatured   EnrollmentStatus = "matured"
	StatusClosed    EnrollmentStatus = "closed"
	StatusCancelled EnrollmentStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s EnrollmentStatus) Terminal() bool {
	return s == StatusMatured || s == StatusClosed || s == StatusCancelled
}

// Enrollment carries the running totals for one subscription. TotalPaid and
// TotalGoldWeight are caches over the transaction log: the log remains the
// source of truth and the totals are recomputable from it (see
// LifecycleManager.Reconcile).
type Enrollment struct {
	ID            EnrollmentID
	ShopID        ShopID
	CustomerID    CustomerID
	SchemeID      SchemeID
	AccountNumber string // unique per shop

	StartDate    time.Time // day granularity, UTC
	MaturityDate time.Time // StartDate + scheme duration

	Status EnrollmentStatus

	// TotalPaid = sum(installments) + sum(bonuses) + sum(signed adjustments).
	// Never decreases except via a negative adjustment.
	TotalPaid decimal.Decimal

	// TotalGoldWeight accumulates only on per-payment conversion schemes.
	TotalGoldWeight decimal.Decimal

	// TotalFines is tracked separately: fines never touch TotalPaid and are
	// reconciled against the payout at redemption.
	TotalFines decimal.Decimal

	CreatedAt time.Time
}

// =============================================================================
// TRANSACTION - Append-only event against one Enrollment
// =============================================================================

type TransactionType string

const (
	TxInstallment TransactionType = "installment" // periodic payment
	TxBonus       TransactionType = "bonus"       // shop-granted or maturity bonus
	TxFine        TransactionType = "fine"        // late-payment penalty, informational
	TxAdjustment  TransactionType = "adjustment"  // signed data-entry correction
)

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentDue     PaymentStatus = "due"
	PaymentOverdue PaymentStatus = "overdue"
)

// Transaction is an immutable ledger entry. Once Status is PaymentPaid the
// record never changes; corrections happen via a new TxAdjustment.
type Transaction struct {
	ID           TransactionID
	EnrollmentID EnrollmentID
	ShopID       ShopID
	Type         TransactionType

	// Amount is positive for installments, bonuses, and fines; adjustments
	// carry their sign.
	Amount decimal.Decimal

	// GoldRate/GoldWeight are set only when conversion happens at this event
	// (per-payment schemes). Zero otherwise.
	GoldRate   decimal.Decimal
	GoldWeight decimal.Decimal

	PaymentDate time.Time
	PaymentMode string
	Status      PaymentStatus
	Reason      string

	// IdempotencyKey guards against replays from network retries. Optional.
	IdempotencyKey string

	CreatedAt time.Time
}

// =============================================================================
// REDEMPTION - Terminal settlement, at most one per Enrollment
// =============================================================================

type Redemption struct {
	ID           RedemptionID
	EnrollmentID EnrollmentID
	RedeemedDate time.Time

	PayoutAmount     decimal.Decimal
	PayoutGoldWeight decimal.Decimal

	BonusApplied bool
	BonusAmount  decimal.Decimal

	// InvoiceID links to the billing collaborator's record, if any.
	InvoiceID string

	CreatedAt time.Time
}

// =============================================================================
// DATE HELPERS - day-granularity arithmetic in UTC
// =============================================================================

// Date constructs a UTC day-granularity time.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayOf truncates a time to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonthsClamped advances by whole months, clamping the day-of-month to
// the target month's length (Jan 31 + 1 month = Feb 28/29, not Mar 2/3).
func AddMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.UTC().Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}
