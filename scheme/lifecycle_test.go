package scheme_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurum/savings-engine/scheme"
)

// =============================================================================
// ENROLLMENT
// =============================================================================

func TestEnroll_InactiveSchemeRejected(t *testing.T) {
	_, lc, _ := newTestEngine(t)
	ctx := context.Background()
	sch := classicScheme()
	sch.IsActive = false
	require.NoError(t, lc.CreateScheme(ctx, sch))

	_, err := lc.Enroll(ctx, scheme.EnrollRequest{
		SchemeID:      sch.ID,
		CustomerID:    "cust-1",
		AccountNumber: "ACC-100",
		StartDate:     scheme.Date(2026, time.January, 5),
	})
	assert.True(t, errors.Is(err, scheme.ErrSchemeInactive))
}

func TestEnroll_DuplicateAccountNumberRejected(t *testing.T) {
	_, lc, _ := newTestEngine(t)
	ctx := context.Background()
	sch := classicScheme()
	enroll(t, lc, sch, "ACC-101", scheme.Date(2026, time.January, 5))

	_, err := lc.Enroll(ctx, scheme.EnrollRequest{
		SchemeID:      sch.ID,
		CustomerID:    "cust-2",
		AccountNumber: "ACC-101",
		StartDate:     scheme.Date(2026, time.February, 1),
	})
	assert.True(t, errors.Is(err, scheme.ErrDuplicateAccountNumber))
}

func TestEnroll_MaturityDateFromDuration(t *testing.T) {
	_, lc, _ := newTestEngine(t)
	enr := enroll(t, lc, classicScheme(), "ACC-102", scheme.Date(2026, time.January, 31))

	// 11 months from Jan 31 clamps to Dec 31
	assert.Equal(t, scheme.Date(2026, time.December, 31), enr.MaturityDate)
	assert.Equal(t, scheme.StatusActive, enr.Status)
}

// =============================================================================
// STATUS EVALUATION
// =============================================================================

func TestEvaluateStatus_OnTrackEnrollment(t *testing.T) {
	accrual, lc, _ := newTestEngine(t)
	ctx := context.Background()
	enr := enroll(t, lc, classicScheme(), "ACC-110", scheme.Date(2026, time.January, 5))

	for _, day := range []time.Time{
		scheme.Date(2026, time.January, 5),
		scheme.Date(2026, time.February, 8),
		scheme.Date(2026, time.March, 6),
	} {
		_, err := accrual.RecordPayment(ctx, scheme.PaymentRequest{
			EnrollmentID: enr.ID, Amount: dec("1000"), GoldRate: dec("6500"),
			PaymentDate: day,
		})
		require.NoError(t, err)
	}

	rep, err := lc.EvaluateStatus(ctx, enr.ID, scheme.Date(2026, time.March, 20))
	require.NoError(t, err)
	assert.Equal(t, 0, rep.MissedPayments)
	assert.False(t, rep.IsOverdue)
	assert.False(t, rep.IsDefaulted)
	assert.False(t, rep.IsMature)
	assert.Equal(t, scheme.Date(2026, time.April, 5), rep.NextDueDate)
	assert.True(t, rep.TotalPaid.Equal(dec("3000")))
}

func TestEvaluateStatus_MissedPaymentsAndDefault(t *testing.T) {
	accrual, lc, _ := newTestEngine(t)
	ctx := context.Background()
	enr := enroll(t, lc, classicScheme(), "ACC-111", scheme.Date(2026, time.January, 5))

	// one payment, then silence
	_, err := accrual.RecordPayment(ctx, scheme.PaymentRequest{
		EnrollmentID: enr.ID, Amount: dec("1000"), GoldRate: dec("6500"),
		PaymentDate: scheme.Date(2026, time.January, 5),
	})
	require.NoError(t, err)

	// Feb, Mar, Apr due dates all past grace by May 8; May 5 is still in grace
	rep, err := lc.EvaluateStatus(ctx, enr.ID, scheme.Date(2026, time.May, 8))
	require.NoError(t, err)
	assert.Equal(t, 3, rep.MissedPayments)
	assert.True(t, rep.IsOverdue)
	assert.True(t, rep.IsDefaulted, "three misses hit the scheme threshold")
}

// =============================================================================
// REDEMPTION
// =============================================================================

func TestRedeem_AtMaturityAppliesBonus(t *testing.T) {
	accrual, lc, mem := newTestEngine(t)
	ctx := context.Background()
	start := scheme.Date(2026, time.January, 5)
	enr := enroll(t, lc, classicScheme(), "ACC-120", start)

	for k := 0; k < 11; k++ {
		_, err := accrual.RecordPayment(ctx, scheme.PaymentRequest{
			EnrollmentID: enr.ID,
			Amount:       dec("1000"),
			GoldRate:     dec("6500"),
			PaymentDate:  scheme.DueDate(start, k),
		})
		require.NoError(t, err)
	}

	red, err := lc.Redeem(ctx, scheme.RedeemRequest{
		EnrollmentID: enr.ID,
		RedeemDate:   scheme.Date(2026, time.December, 5),
		InvoiceID:    "INV-900",
	})
	require.NoError(t, err)
	assert.True(t, red.BonusApplied)
	assert.True(t, red.BonusAmount.Equal(dec("1000")), "last installment free credits one installment")
	assert.True(t, red.PayoutAmount.Equal(dec("12000")), "payout: %s", red.PayoutAmount)

	got, _ := mem.GetEnrollment(ctx, enr.ID)
	assert.Equal(t, scheme.StatusMatured, got.Status)
	assert.True(t, got.TotalPaid.Equal(dec("12000")), "bonus lands in the ledger totals")

	txs, _ := mem.ListTransactions(ctx, enr.ID, scheme.TransactionFilter{Type: scheme.TxBonus})
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Amount.Equal(dec("1000")))
}

func TestRedeem_FinesDeductedFromPayout(t *testing.T) {
	accrual, lc, _ := newTestEngine(t)
	ctx := context.Background()
	start := scheme.Date(2026, time.January, 5)
	enr := enroll(t, lc, classicScheme(), "ACC-121", start)

	for k := 0; k < 11; k++ {
		_, err := accrual.RecordPayment(ctx, scheme.PaymentRequest{
			EnrollmentID: enr.ID, Amount: dec("1000"), GoldRate: dec("6500"),
			PaymentDate: scheme.DueDate(start, k),
		})
		require.NoError(t, err)
	}
	_, err := accrual.RecordFine(ctx, scheme.FineRequest{
		EnrollmentID: enr.ID, Amount: dec("150"),
		Date: scheme.Date(2026, time.June, 20), Reason: "late installment",
	})
	require.NoError(t, err)

	red, err := lc.Redeem(ctx, scheme.RedeemRequest{
		EnrollmentID: enr.ID,
		RedeemDate:   scheme.Date(2026, time.December, 5),
	})
	require.NoError(t, err)
	assert.True(t, red.PayoutAmount.Equal(dec("11850")), "payout: %s", red.PayoutAmount)
}

func TestRedeem_EarlyForfeitsBonus(t *testing.T) {
	accrual, lc, mem := newTestEngine(t)
	ctx := context.Background()
	enr := enroll(t, lc, classicScheme(), "ACC-122", scheme.Date(2026, time.January, 5))

	for k := 0; k < 5; k++ {
		_, err := accrual.RecordPayment(ctx, scheme.PaymentRequest{
			EnrollmentID: enr.ID, Amount: dec("1000"), GoldRate: dec("6500"),
			PaymentDate: scheme.DueDate(scheme.Date(2026, time.January, 5), k),
		})
		require.NoError(t, err)
	}

	red, err := lc.Redeem(ctx, scheme.RedeemRequest{
		EnrollmentID: enr.ID,
		RedeemDate:   scheme.Date(2026, time.June, 1),
	})
	require.NoError(t, err)
	assert.False(t, red.BonusApplied)
	assert.True(t, red.PayoutAmount.Equal(dec("5000")))

	got, _ := mem.GetEnrollment(ctx, enr.ID)
	assert.Equal(t, scheme.StatusClosed, got.Status)
}

func TestRedeem_DateBeforeStartRejected(t *testing.T) {
	accrual, lc, mem := newTestEngine(t)
	ctx := context.Background()
	enr := enroll(t, lc, flexiScheme(), "ACC-129", scheme.Date(2026, time.June, 5))

	_, err := accrual.RecordPayment(ctx, scheme.PaymentRequest{
		EnrollmentID: enr.ID, Amount: dec("1000"),
		PaymentDate: scheme.Date(2026, time.June, 5),
	})
	require.NoError(t, err)

	red, err := lc.Redeem(ctx, scheme.RedeemRequest{
		EnrollmentID: enr.ID,
		RedeemDate:   scheme.Date(2026, time.January, 1),
		GoldRate:     dec("6800"),
	})
	require.ErrorIs(t, err, scheme.ErrRedemptionBeforeStart)
	assert.Nil(t, red)

	// the enrollment is untouched and still redeemable
	got, _ := mem.GetEnrollment(ctx, enr.ID)
	assert.Equal(t, scheme.StatusActive, got.Status)
	stored, _ := mem.GetRedemption(ctx, enr.ID)
	assert.Nil(t, stored)
}

func TestRedeem_SecondAttemptRejected(t *testing.T) {
	accrual, lc, _ := newTestEngine(t)
	ctx := context.Background()
	enr := enroll(t, lc, flexiScheme(), "ACC-123", scheme.Date(2026, time.January, 5))

	_, err := accrual.RecordPayment(ctx, scheme.PaymentRequest{
		EnrollmentID: enr.ID, Amount: dec("5000"),
		PaymentDate: scheme.Date(2026, time.January, 5),
	})
	require.NoError(t, err)

	_, err = lc.Redeem(ctx, scheme.RedeemRequest{
		EnrollmentID: enr.ID,
		RedeemDate:   scheme.Date(2026, time.June, 1),
		GoldRate:     dec("6800"),
	})
	require.NoError(t, err)

	_, err = lc.Redeem(ctx, scheme.RedeemRequest{
		EnrollmentID: enr.ID,
		RedeemDate:   scheme.Date(2026, time.June, 2),
		GoldRate:     dec("6800"),
	})
	assert.True(t, errors.Is(err, scheme.ErrAlreadyRedeemed))
}

func TestRedeem_AtMaturityConversionNeedsRate(t *testing.T) {
	accrual, lc, _ := newTestEngine(t)
	ctx := context.Background()
	start := scheme.Date(2026, time.January, 5)
	enr := enroll(t, lc, flexiScheme(), "ACC-124", start)

	_, err := accrual.RecordPayment(ctx, scheme.PaymentRequest{
		EnrollmentID: enr.ID, Amount: dec("12000"),
		PaymentDate: start,
	})
	require.NoError(t, err)

	_, err = lc.Redeem(ctx, scheme.RedeemRequest{
		EnrollmentID: enr.ID,
		RedeemDate:   scheme.Date(2027, time.January, 5),
	})
	assert.True(t, errors.Is(err, scheme.ErrMissingGoldRate))
}

func TestRedeem_AtMaturityConvertsPayoutToGrams(t *testing.T) {
	accrual, lc, _ := newTestEngine(t)
	ctx := context.Background()
	start := scheme.Date(2026, time.January, 5)
	enr := enroll(t, lc, flexiScheme(), "ACC-125", start)

	_, err := accrual.RecordPayment(ctx, scheme.PaymentRequest{
		EnrollmentID: enr.ID, Amount: dec("10000"),
		PaymentDate: start,
	})
	require.NoError(t, err)

	red, err := lc.Redeem(ctx, scheme.RedeemRequest{
		EnrollmentID: enr.ID,
		RedeemDate:   scheme.Date(2027, time.January, 5),
		GoldRate:     dec("6800"),
	})
	require.NoError(t, err)
	// 8% bonus -> 10800 payout -> 10800/6800 = 1.5882... -> 1.588 grams
	assert.True(t, red.BonusAmount.Equal(dec("800")))
	assert.True(t, red.PayoutAmount.Equal(dec("10800")))
	assert.True(t, red.PayoutGoldWeight.Equal(dec("1.588")), "grams: %s", red.PayoutGoldWeight)
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestCancel_WithBalanceRequiresForfeit(t *testing.T) {
	accrual, lc, mem := newTestEngine(t)
	ctx := context.Background()
	enr := enroll(t, lc, flexiScheme(), "ACC-130", scheme.Date(2026, time.January, 5))

	_, err := accrual.RecordPayment(ctx, scheme.PaymentRequest{
		EnrollmentID: enr.ID, Amount: dec("2000"),
		PaymentDate: scheme.Date(2026, time.January, 5),
	})
	require.NoError(t, err)

	err = lc.Cancel(ctx, enr.ID, false)
	assert.True(t, errors.Is(err, scheme.ErrCancelForfeitsBalance))

	got, _ := mem.GetEnrollment(ctx, enr.ID)
	assert.Equal(t, scheme.StatusActive, got.Status, "failed cancel must not change status")

	require.NoError(t, lc.Cancel(ctx, enr.ID, true))
	got, _ = mem.GetEnrollment(ctx, enr.ID)
	assert.Equal(t, scheme.StatusCancelled, got.Status)
}

func TestCancel_TerminalEnrollmentRejected(t *testing.T) {
	_, lc, _ := newTestEngine(t)
	ctx := context.Background()
	enr := enroll(t, lc, classicScheme(), "ACC-131", scheme.Date(2026, time.January, 5))

	require.NoError(t, lc.Cancel(ctx, enr.ID, false))
	err := lc.Cancel(ctx, enr.ID, false)
	require.Error(t, err)

	var te *scheme.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, scheme.StatusCancelled, te.From)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestReconcile_ConsistentLedger(t *testing.T) {
	accrual, lc, _ := newTestEngine(t)
	ctx := context.Background()
	enr := enroll(t, lc, classicScheme(), "ACC-140", scheme.Date(2026, time.January, 5))

	_, err := accrual.RecordPayment(ctx, scheme.PaymentRequest{
		EnrollmentID: enr.ID, Amount: dec("1000"), GoldRate: dec("6500"),
		PaymentDate: scheme.Date(2026, time.January, 5),
	})
	require.NoError(t, err)
	_, err = accrual.RecordFine(ctx, scheme.FineRequest{
		EnrollmentID: enr.ID, Amount: dec("25"),
		Date: scheme.Date(2026, time.February, 15), Reason: "late installment",
	})
	require.NoError(t, err)

	rep, err := lc.Reconcile(ctx, enr.ID)
	require.NoError(t, err)
	assert.True(t, rep.Consistent)
	assert.True(t, rep.ComputedPaid.Equal(dec("1000")))
	assert.True(t, rep.ComputedFines.Equal(dec("25")))
}

func TestPreviewMaturityValue_DoesNotMutate(t *testing.T) {
	accrual, lc, mem := newTestEngine(t)
	ctx := context.Background()
	enr := enroll(t, lc, flexiScheme(), "ACC-141", scheme.Date(2026, time.January, 5))

	_, err := accrual.RecordPayment(ctx, scheme.PaymentRequest{
		EnrollmentID: enr.ID, Amount: dec("10000"),
		PaymentDate: scheme.Date(2026, time.January, 5),
	})
	require.NoError(t, err)

	mv, err := lc.PreviewMaturityValue(ctx, enr.ID, decimal.NewFromInt(6800))
	require.NoError(t, err)
	assert.True(t, mv.BonusAmount.Equal(dec("800")))
	assert.True(t, mv.CashValue.Equal(dec("10800")))

	got, _ := mem.GetEnrollment(ctx, enr.ID)
	assert.True(t, got.TotalPaid.Equal(dec("10000")), "preview must not write")

	txs, _ := mem.ListTransactions(ctx, enr.ID, scheme.TransactionFilter{Type: scheme.TxBonus})
	assert.Empty(t, txs)
}
