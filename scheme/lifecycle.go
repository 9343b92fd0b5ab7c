/*
PURPOSE:
  The lifecycle manager: scheme creation, enrollment, status evaluation,
  maturity preview, redemption, and cancellation. Owns the state machine

    active -> matured   (redeemed at/after maturity)
    active -> closed    (redeemed early, bonus forfeited)
    active -> cancelled (cancelled before any value, or forfeited)

  Terminal states admit no further transitions.

KEY CONCEPTS:
  - EvaluateStatus: a read-only snapshot of where an enrollment stands on
    its schedule (next due, missed count, overdue, defaulted, mature)
  - Redeem: appends the bonus to the ledger (when earned), writes the
    one-and-only Redemption row, flips status -- all atomically
  - Reconcile: recomputes totals from the transaction log and reports
    drift against the cached enrollment fields

SEE ALSO:
  - schedule.go: the pure date arithmetic EvaluateStatus leans on
  - benefit.go: the valuation Redeem and Preview share
*/
package scheme

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LifecycleManager drives enrollments through their state machine.
type LifecycleManager struct {
	store   TxStore
	accrual *AccrualEngine
	log     zerolog.Logger
}

// NewLifecycleManager creates a manager sharing the accrual engine's store.
func NewLifecycleManager(store TxStore, accrual *AccrualEngine, log zerolog.Logger) *LifecycleManager {
	return &LifecycleManager{
		store:   store,
		accrual: accrual,
		log:     log.With().Str("component", "lifecycle").Logger(),
	}
}

// =============================================================================
// SCHEME CREATION
// =============================================================================

// CreateScheme validates and persists a new scheme template.
func (m *LifecycleManager) CreateScheme(ctx context.Context, s *Scheme) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = SchemeID(uuid.NewString())
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if err := m.store.CreateScheme(ctx, s); err != nil {
		return err
	}
	m.log.Info().
		Str("scheme_id", string(s.ID)).
		Str("shop_id", string(s.ShopID)).
		Str("type", string(s.Type)).
		Msg("scheme created")
	return nil
}

// SetSchemeActive toggles whether a scheme accepts new enrollments.
// Existing enrollments are unaffected.
func (m *LifecycleManager) SetSchemeActive(ctx context.Context, id SchemeID, active bool) error {
	s, err := m.store.GetScheme(ctx, id)
	if err != nil {
		return err
	}
	s.IsActive = active
	return m.store.UpdateScheme(ctx, s)
}

// =============================================================================
// ENROLLMENT
// =============================================================================

// EnrollRequest opens a new subscription to a scheme.
type EnrollRequest struct {
	SchemeID      SchemeID
	CustomerID    CustomerID
	AccountNumber string
	StartDate     time.Time
}

// Enroll creates an active enrollment with its maturity date derived from
// the scheme duration. The account number must be unique within the shop.
func (m *LifecycleManager) Enroll(ctx context.Context, req EnrollRequest) (*Enrollment, error) {
	sch, err := m.store.GetScheme(ctx, req.SchemeID)
	if err != nil {
		return nil, err
	}
	if !sch.IsActive {
		return nil, ErrSchemeInactive
	}
	start := DayOf(req.StartDate)
	enr := &Enrollment{
		ID:              EnrollmentID(uuid.NewString()),
		ShopID:          sch.ShopID,
		CustomerID:      req.CustomerID,
		SchemeID:        sch.ID,
		AccountNumber:   req.AccountNumber,
		StartDate:       start,
		MaturityDate:    AddMonthsClamped(start, sch.DurationMonths),
		Status:          StatusActive,
		TotalPaid:       decimal.Zero,
		TotalGoldWeight: decimal.Zero,
		TotalFines:      decimal.Zero,
		CreatedAt:       time.Now().UTC(),
	}
	if err := m.store.CreateEnrollment(ctx, enr); err != nil {
		return nil, err
	}
	m.log.Info().
		Str("enrollment_id", string(enr.ID)).
		Str("scheme_id", string(sch.ID)).
		Str("account_number", enr.AccountNumber).
		Time("maturity_date", enr.MaturityDate).
		Msg("enrollment opened")
	return enr, nil
}

// =============================================================================
// STATUS EVALUATION
// =============================================================================

// StatusReport is a read-only snapshot of an enrollment's schedule state.
type StatusReport struct {
	EnrollmentID   EnrollmentID
	Status         EnrollmentStatus
	NextDueDate    time.Time
	MissedPayments int
	IsOverdue      bool
	IsDefaulted    bool
	IsMature       bool
	TotalPaid      decimal.Decimal
	TotalFines     decimal.Decimal
}

// EvaluateStatus computes the schedule position of an enrollment as of the
// given day. Pure read: nothing is persisted.
func (m *LifecycleManager) EvaluateStatus(ctx context.Context, id EnrollmentID, asOf time.Time) (*StatusReport, error) {
	enr, err := m.store.GetEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	sch, err := m.store.GetScheme(ctx, enr.SchemeID)
	if err != nil {
		return nil, err
	}
	paid, err := m.installmentDates(ctx, id)
	if err != nil {
		return nil, err
	}
	missed := MissedPaymentCount(enr.StartDate, sch.DurationMonths, sch.Rules.GracePeriodDays, asOf, paid)
	return &StatusReport{
		EnrollmentID:   enr.ID,
		Status:         enr.Status,
		NextDueDate:    NextDueDate(enr.StartDate, sch.DurationMonths, asOf),
		MissedPayments: missed,
		IsOverdue:      missed > 0,
		IsDefaulted:    IsDefaulted(missed, sch.Rules.MaxMissedPayments),
		IsMature:       IsMature(enr.MaturityDate, asOf),
		TotalPaid:      enr.TotalPaid,
		TotalFines:     enr.TotalFines,
	}, nil
}

// =============================================================================
// MATURITY PREVIEW AND REDEMPTION
// =============================================================================

// PreviewMaturityValue values the enrollment as if redeemed now with the
// bonus applied; works on any non-cancelled enrollment without mutating it.
func (m *LifecycleManager) PreviewMaturityValue(ctx context.Context, id EnrollmentID, goldRate decimal.Decimal) (*MaturityValue, error) {
	enr, err := m.store.GetEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	sch, err := m.store.GetScheme(ctx, enr.SchemeID)
	if err != nil {
		return nil, err
	}
	mv, err := ComputeMaturityValue(*sch, enr.TotalPaid, enr.TotalGoldWeight, goldRate)
	if err != nil {
		return nil, err
	}
	return &mv, nil
}

// RedeemRequest settles an enrollment.
type RedeemRequest struct {
	EnrollmentID EnrollmentID
	RedeemDate   time.Time
	GoldRate     decimal.Decimal // required for at_maturity conversion schemes
	InvoiceID    string
}

// Redeem settles an enrollment exactly once. At or after maturity the bonus
// is credited to the ledger and the enrollment matures; before maturity the
// bonus is forfeited and the enrollment closes. The payout is total paid
// (including any bonus) minus accumulated fines, floored at zero. A
// redemption dated before the enrollment start is rejected.
func (m *LifecycleManager) Redeem(ctx context.Context, req RedeemRequest) (*Redemption, error) {
	var out *Redemption
	err := m.store.WithEnrollmentTx(ctx, req.EnrollmentID, func(st Store) error {
		enr, err := st.GetEnrollment(ctx, req.EnrollmentID)
		if err != nil {
			return err
		}
		if enr.Status != StatusActive {
			if prior, gerr := st.GetRedemption(ctx, enr.ID); gerr == nil && prior != nil {
				return ErrAlreadyRedeemed
			}
			return &TransitionError{EnrollmentID: enr.ID, From: enr.Status, Action: "redeem"}
		}
		sch, err := st.GetScheme(ctx, enr.SchemeID)
		if err != nil {
			return err
		}

		day := DayOf(req.RedeemDate)
		if day.Before(enr.StartDate) {
			return ErrRedemptionBeforeStart
		}
		mature := IsMature(enr.MaturityDate, day)

		var bonus decimal.Decimal
		if mature {
			bonus = BonusAmount(*sch, enr.TotalPaid)
			if bonus.IsPositive() {
				if _, err := m.accrual.RecordBonus(ctx, st, enr, bonus, day, "maturity bonus"); err != nil {
					return err
				}
			}
		}

		payout := RoundMoney(enr.TotalPaid.Sub(enr.TotalFines))
		if payout.IsNegative() {
			payout = decimal.Zero
		}

		var goldOut decimal.Decimal
		switch sch.Rules.GoldConversionTiming {
		case ConvertPerPayment:
			goldOut = RoundGrams(enr.TotalGoldWeight)
		case ConvertAtMaturity:
			if !req.GoldRate.IsPositive() {
				return ErrMissingGoldRate
			}
			goldOut = RoundGrams(payout.Div(req.GoldRate))
		}

		red := &Redemption{
			ID:               RedemptionID(uuid.NewString()),
			EnrollmentID:     enr.ID,
			RedeemedDate:     day,
			PayoutAmount:     payout,
			PayoutGoldWeight: goldOut,
			BonusApplied:     mature && bonus.IsPositive(),
			BonusAmount:      bonus,
			InvoiceID:        req.InvoiceID,
			CreatedAt:        time.Now().UTC(),
		}
		if err := st.CreateRedemption(ctx, red); err != nil {
			return err
		}
		if mature {
			enr.Status = StatusMatured
		} else {
			enr.Status = StatusClosed
		}
		if err := st.UpdateEnrollment(ctx, enr); err != nil {
			return err
		}
		out = red
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info().
		Str("enrollment_id", string(req.EnrollmentID)).
		Str("payout", out.PayoutAmount.String()).
		Bool("bonus_applied", out.BonusApplied).
		Msg("enrollment redeemed")
	return out, nil
}

// Cancel terminates an active enrollment without settlement. An enrollment
// holding a positive total requires forfeit=true; the forfeited value is
// not paid out.
func (m *LifecycleManager) Cancel(ctx context.Context, id EnrollmentID, forfeit bool) error {
	return m.store.WithEnrollmentTx(ctx, id, func(st Store) error {
		enr, err := st.GetEnrollment(ctx, id)
		if err != nil {
			return err
		}
		if enr.Status != StatusActive {
			return &TransitionError{EnrollmentID: enr.ID, From: enr.Status, Action: "cancel"}
		}
		if enr.TotalPaid.IsPositive() && !forfeit {
			return ErrCancelForfeitsBalance
		}
		enr.Status = StatusCancelled
		if err := st.UpdateEnrollment(ctx, enr); err != nil {
			return err
		}
		m.log.Info().
			Str("enrollment_id", string(enr.ID)).
			Bool("forfeit", forfeit).
			Msg("enrollment cancelled")
		return nil
	})
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconcileReport compares an enrollment's cached totals against the
// transaction log.
type ReconcileReport struct {
	EnrollmentID       EnrollmentID
	CachedPaid         decimal.Decimal
	ComputedPaid       decimal.Decimal
	CachedGoldWeight   decimal.Decimal
	ComputedGoldWeight decimal.Decimal
	CachedFines        decimal.Decimal
	ComputedFines      decimal.Decimal
	Consistent         bool
}

// Reconcile replays the transaction log and reports drift against the
// cached totals. Read-only; repair is an operator decision.
func (m *LifecycleManager) Reconcile(ctx context.Context, id EnrollmentID) (*ReconcileReport, error) {
	enr, err := m.store.GetEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	txs, err := m.store.ListTransactions(ctx, id, TransactionFilter{})
	if err != nil {
		return nil, err
	}
	paid, gold, fines := decimal.Zero, decimal.Zero, decimal.Zero
	for _, t := range txs {
		switch t.Type {
		case TxInstallment, TxBonus, TxAdjustment:
			paid = paid.Add(t.Amount)
			gold = gold.Add(t.GoldWeight)
		case TxFine:
			fines = fines.Add(t.Amount)
		}
	}
	paid, gold, fines = RoundMoney(paid), RoundGrams(gold), RoundMoney(fines)
	rep := &ReconcileReport{
		EnrollmentID:       id,
		CachedPaid:         enr.TotalPaid,
		ComputedPaid:       paid,
		CachedGoldWeight:   enr.TotalGoldWeight,
		ComputedGoldWeight: gold,
		CachedFines:        enr.TotalFines,
		ComputedFines:      fines,
		Consistent: enr.TotalPaid.Equal(paid) &&
			enr.TotalGoldWeight.Equal(gold) &&
			enr.TotalFines.Equal(fines),
	}
	if !rep.Consistent {
		m.log.Warn().
			Str("enrollment_id", string(id)).
			Str("cached_paid", rep.CachedPaid.String()).
			Str("computed_paid", rep.ComputedPaid.String()).
			Msg("enrollment totals drifted from transaction log")
	}
	return rep, nil
}

// installmentDates lists the payment dates of the enrollment's installments.
func (m *LifecycleManager) installmentDates(ctx context.Context, id EnrollmentID) ([]time.Time, error) {
	txs, err := m.store.ListTransactions(ctx, id, TransactionFilter{Type: TxInstallment})
	if err != nil {
		return nil, err
	}
	dates := make([]time.Time, 0, len(txs))
	for _, t := range txs {
		dates = append(dates, t.PaymentDate)
	}
	return dates, nil
}
