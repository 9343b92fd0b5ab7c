/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Currency and gram fields travel as decimal strings ("1000.00"), never as
  floats: clients round-trip them without precision loss.

DATES:
  Calendar dates travel as YYYY-MM-DD.

VALIDATION:
  Request structs carry go-playground/validator tags; handlers run the
  shared validator before touching the engine.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/scheme.go: SchemeJSON accepted on scheme creation
*/
package api

import (
	"time"

	"github.com/aurum/savings-engine/scheme"
)

const dateLayout = "2006-01-02"

// =============================================================================
// SCHEME TYPES
// =============================================================================

// SchemeDTO represents a scheme in API responses.
type SchemeDTO struct {
	ID                string `json:"id"`
	ShopID            string `json:"shop_id"`
	Name              string `json:"name"`
	SchemeType        string `json:"scheme_type"`
	DurationMonths    int    `json:"duration_months"`
	InstallmentAmount string `json:"installment_amount,omitempty"`
	GracePeriodDays   int    `json:"grace_period_days"`
	MaxMissedPayments int    `json:"max_missed_payments"`
	BenefitType       string `json:"benefit_type"`
	BenefitValue      string `json:"benefit_value"`
	ConversionTiming  string `json:"gold_conversion_timing"`
	GoldPurity        string `json:"gold_purity,omitempty"`
	AllowPartial      bool   `json:"allow_partial_payment"`
	IsActive          bool   `json:"is_active"`
	CreatedAt         string `json:"created_at,omitempty"`
}

func toSchemeDTO(s *scheme.Scheme) SchemeDTO {
	dto := SchemeDTO{
		ID:                string(s.ID),
		ShopID:            string(s.ShopID),
		Name:              s.Name,
		SchemeType:        string(s.Type),
		DurationMonths:    s.DurationMonths,
		GracePeriodDays:   s.Rules.GracePeriodDays,
		MaxMissedPayments: s.Rules.MaxMissedPayments,
		BenefitType:       string(s.Rules.BenefitType),
		BenefitValue:      s.Rules.BenefitValue.String(),
		ConversionTiming:  string(s.Rules.GoldConversionTiming),
		GoldPurity:        s.Rules.GoldPurity,
		AllowPartial:      s.Rules.AllowPartialPayment,
		IsActive:          s.IsActive,
		CreatedAt:         s.CreatedAt.Format(time.RFC3339),
	}
	if s.Type == scheme.FixedAmount {
		dto.InstallmentAmount = s.FixedInstallmentAmount.String()
	}
	return dto
}

// SetSchemeActiveRequest toggles whether a scheme accepts enrollments.
type SetSchemeActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// =============================================================================
// ENROLLMENT TYPES
// =============================================================================

// EnrollRequest opens a new enrollment.
type EnrollRequest struct {
	SchemeID      string `json:"scheme_id" validate:"required"`
	CustomerID    string `json:"customer_id" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	StartDate     string `json:"start_date" validate:"required"` // YYYY-MM-DD
}

// EnrollmentDTO represents an enrollment in API responses.
type EnrollmentDTO struct {
	ID              string `json:"id"`
	ShopID          string `json:"shop_id"`
	CustomerID      string `json:"customer_id"`
	SchemeID        string `json:"scheme_id"`
	AccountNumber   string `json:"account_number"`
	StartDate       string `json:"start_date"`
	MaturityDate    string `json:"maturity_date"`
	Status          string `json:"status"`
	TotalPaid       string `json:"total_paid"`
	TotalGoldWeight string `json:"total_gold_weight"`
	TotalFines      string `json:"total_fines"`
	CreatedAt       string `json:"created_at,omitempty"`
}

func toEnrollmentDTO(e *scheme.Enrollment) EnrollmentDTO {
	return EnrollmentDTO{
		ID:              string(e.ID),
		ShopID:          string(e.ShopID),
		CustomerID:      string(e.CustomerID),
		SchemeID:        string(e.SchemeID),
		AccountNumber:   e.AccountNumber,
		StartDate:       e.StartDate.Format(dateLayout),
		MaturityDate:    e.MaturityDate.Format(dateLayout),
		Status:          string(e.Status),
		TotalPaid:       e.TotalPaid.String(),
		TotalGoldWeight: e.TotalGoldWeight.String(),
		TotalFines:      e.TotalFines.String(),
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
	}
}

// StatusReportDTO is the schedule snapshot for one enrollment.
type StatusReportDTO struct {
	EnrollmentID   string `json:"enrollment_id"`
	Status         string `json:"status"`
	NextDueDate    string `json:"next_due_date"`
	MissedPayments int    `json:"missed_payments"`
	IsOverdue      bool   `json:"is_overdue"`
	IsDefaulted    bool   `json:"is_defaulted"`
	IsMature       bool   `json:"is_mature"`
	TotalPaid      string `json:"total_paid"`
	TotalFines     string `json:"total_fines"`
}

func toStatusReportDTO(r *scheme.StatusReport) StatusReportDTO {
	return StatusReportDTO{
		EnrollmentID:   string(r.EnrollmentID),
		Status:         string(r.Status),
		NextDueDate:    r.NextDueDate.Format(dateLayout),
		MissedPayments: r.MissedPayments,
		IsOverdue:      r.IsOverdue,
		IsDefaulted:    r.IsDefaulted,
		IsMature:       r.IsMature,
		TotalPaid:      r.TotalPaid.String(),
		TotalFines:     r.TotalFines.String(),
	}
}

// CancelRequest cancels an active enrollment.
type CancelRequest struct {
	Forfeit bool `json:"forfeit"`
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

// RecordPaymentRequest records one installment.
type RecordPaymentRequest struct {
	Amount         string `json:"amount" validate:"required"`
	GoldRate       string `json:"gold_rate,omitempty"`
	PaymentDate    string `json:"payment_date" validate:"required"` // YYYY-MM-DD
	PaymentMode    string `json:"payment_mode,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// RecordFineRequest records a late-payment penalty.
type RecordFineRequest struct {
	Amount         string `json:"amount" validate:"required"`
	Date           string `json:"date" validate:"required"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// RecordAdjustmentRequest records a signed correction.
type RecordAdjustmentRequest struct {
	Amount         string `json:"amount" validate:"required"`
	Date           string `json:"date" validate:"required"`
	Reason         string `json:"reason" validate:"required"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// TransactionDTO represents a ledger entry in API responses.
type TransactionDTO struct {
	ID           string `json:"id"`
	EnrollmentID string `json:"enrollment_id"`
	Type         string `json:"type"`
	Amount       string `json:"amount"`
	GoldRate     string `json:"gold_rate,omitempty"`
	GoldWeight   string `json:"gold_weight,omitempty"`
	PaymentDate  string `json:"payment_date"`
	PaymentMode  string `json:"payment_mode,omitempty"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

func toTransactionDTO(t *scheme.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:           string(t.ID),
		EnrollmentID: string(t.EnrollmentID),
		Type:         string(t.Type),
		Amount:       t.Amount.String(),
		PaymentDate:  t.PaymentDate.Format(dateLayout),
		PaymentMode:  t.PaymentMode,
		Status:       string(t.Status),
		Reason:       t.Reason,
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
	}
	if !t.GoldRate.IsZero() {
		dto.GoldRate = t.GoldRate.String()
		dto.GoldWeight = t.GoldWeight.String()
	}
	return dto
}

// =============================================================================
// REDEMPTION TYPES
// =============================================================================

// RedeemRequest settles an enrollment.
type RedeemRequest struct {
	RedeemDate string `json:"redeem_date" validate:"required"` // YYYY-MM-DD
	GoldRate   string `json:"gold_rate,omitempty"`
	InvoiceID  string `json:"invoice_id,omitempty"`
}

// RedemptionDTO represents a settlement in API responses.
type RedemptionDTO struct {
	ID               string `json:"id"`
	EnrollmentID     string `json:"enrollment_id"`
	RedeemedDate     string `json:"redeemed_date"`
	PayoutAmount     string `json:"payout_amount"`
	PayoutGoldWeight string `json:"payout_gold_weight"`
	BonusApplied     bool   `json:"bonus_applied"`
	BonusAmount      string `json:"bonus_amount"`
	InvoiceID        string `json:"invoice_id,omitempty"`
}

func toRedemptionDTO(r *scheme.Redemption) RedemptionDTO {
	return RedemptionDTO{
		ID:               string(r.ID),
		EnrollmentID:     string(r.EnrollmentID),
		RedeemedDate:     r.RedeemedDate.Format(dateLayout),
		PayoutAmount:     r.PayoutAmount.String(),
		PayoutGoldWeight: r.PayoutGoldWeight.String(),
		BonusApplied:     r.BonusApplied,
		BonusAmount:      r.BonusAmount.String(),
		InvoiceID:        r.InvoiceID,
	}
}

// MaturityValueDTO is the preview of a settlement.
type MaturityValueDTO struct {
	BonusAmount string `json:"bonus_amount"`
	CashValue   string `json:"cash_value"`
	GoldValue   string `json:"gold_value"`
}

// ReconcileReportDTO compares cached totals against the transaction log.
type ReconcileReportDTO struct {
	EnrollmentID       string `json:"enrollment_id"`
	CachedPaid         string `json:"cached_paid"`
	ComputedPaid       string `json:"computed_paid"`
	CachedGoldWeight   string `json:"cached_gold_weight"`
	ComputedGoldWeight string `json:"computed_gold_weight"`
	CachedFines        string `json:"cached_fines"`
	ComputedFines      string `json:"computed_fines"`
	Consistent         bool   `json:"consistent"`
}

// =============================================================================
// CUSTOMER TYPES
// =============================================================================

// CreateCustomerRequest registers a customer record.
type CreateCustomerRequest struct {
	ID     string `json:"id" validate:"required"`
	ShopID string `json:"shop_id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Phone  string `json:"phone,omitempty"`
}

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID     string `json:"id"`
	ShopID string `json:"shop_id"`
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
}
