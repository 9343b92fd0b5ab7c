/*
PURPOSE:
  The accrual engine: turns validated payment/fine/adjustment requests into
  appended transactions and updated enrollment totals, atomically per
  enrollment.

KEY CONCEPTS:
  - Every mutation runs inside WithEnrollmentTx: re-read the enrollment
    under the lock, validate against current state, append, update totals
  - Monotonic totals: TotalPaid only moves via installments, bonuses, and
    signed adjustments; fines accumulate separately in TotalFines
  - Idempotency: a request carrying a key already on file returns the
    original transaction and changes nothing

SEE ALSO:
  - lifecycle.go: Redeem uses RecordBonus to land the maturity bonus on
    the ledger before settlement
*/
package scheme

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AccrualEngine records payments, fines, and adjustments.
type AccrualEngine struct {
	store TxStore
	log   zerolog.Logger
}

// NewAccrualEngine creates an engine over the given store.
func NewAccrualEngine(store TxStore, log zerolog.Logger) *AccrualEngine {
	return &AccrualEngine{store: store, log: log.With().Str("component", "accrual").Logger()}
}

// PaymentRequest describes one installment to record.
type PaymentRequest struct {
	EnrollmentID   EnrollmentID
	Amount         decimal.Decimal
	GoldRate       decimal.Decimal // required for per-payment conversion schemes
	PaymentDate    time.Time
	PaymentMode    string
	IdempotencyKey string
}

// RecordPayment validates and appends one installment, updating the
// enrollment's totals. Returns the recorded transaction, which is the
// previously recorded one when the idempotency key is a replay.
func (a *AccrualEngine) RecordPayment(ctx context.Context, req PaymentRequest) (*Transaction, error) {
	var out *Transaction
	err := a.store.WithEnrollmentTx(ctx, req.EnrollmentID, func(st Store) error {
		enr, err := st.GetEnrollment(ctx, req.EnrollmentID)
		if err != nil {
			return err
		}
		if prior, err := a.replay(ctx, st, enr.ID, req.IdempotencyKey); err != nil {
			return err
		} else if prior != nil {
			out = prior
			return nil
		}
		if enr.Status != StatusActive {
			return &TransitionError{EnrollmentID: enr.ID, From: enr.Status, Action: "record payment on"}
		}
		sch, err := st.GetScheme(ctx, enr.SchemeID)
		if err != nil {
			return err
		}
		if !req.Amount.IsPositive() {
			return fmt.Errorf("payment amount must be positive: %w", ErrPartialPaymentNotAllowed)
		}
		if sch.Type == FixedAmount && !sch.Rules.AllowPartialPayment &&
			!req.Amount.Equal(sch.FixedInstallmentAmount) {
			return &PartialPaymentError{Expected: sch.FixedInstallmentAmount, Got: req.Amount}
		}

		tx := &Transaction{
			ID:             TransactionID(uuid.NewString()),
			EnrollmentID:   enr.ID,
			ShopID:         enr.ShopID,
			Type:           TxInstallment,
			Amount:         RoundMoney(req.Amount),
			PaymentDate:    DayOf(req.PaymentDate),
			PaymentMode:    req.PaymentMode,
			Status:         PaymentPaid,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      time.Now().UTC(),
		}
		if sch.Rules.GoldConversionTiming == ConvertPerPayment {
			grams, err := GramsForPayment(tx.Amount, req.GoldRate)
			if err != nil {
				return err
			}
			tx.GoldRate = req.GoldRate
			tx.GoldWeight = grams
		}
		if err := st.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		enr.TotalPaid = RoundMoney(enr.TotalPaid.Add(tx.Amount))
		enr.TotalGoldWeight = RoundGrams(enr.TotalGoldWeight.Add(tx.GoldWeight))
		if err := st.UpdateEnrollment(ctx, enr); err != nil {
			return err
		}
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.log.Debug().
		Str("enrollment_id", string(req.EnrollmentID)).
		Str("amount", req.Amount.String()).
		Msg("installment recorded")
	return out, nil
}

// FineRequest describes one late-payment penalty.
type FineRequest struct {
	EnrollmentID   EnrollmentID
	Amount         decimal.Decimal
	Date           time.Time
	Reason         string
	IdempotencyKey string
}

// RecordFine appends a fine. Fines never change TotalPaid; they accumulate
// in TotalFines and reduce the payout at redemption.
func (a *AccrualEngine) RecordFine(ctx context.Context, req FineRequest) (*Transaction, error) {
	var out *Transaction
	err := a.store.WithEnrollmentTx(ctx, req.EnrollmentID, func(st Store) error {
		enr, err := st.GetEnrollment(ctx, req.EnrollmentID)
		if err != nil {
			return err
		}
		if prior, err := a.replay(ctx, st, enr.ID, req.IdempotencyKey); err != nil {
			return err
		} else if prior != nil {
			out = prior
			return nil
		}
		if enr.Status != StatusActive {
			return &TransitionError{EnrollmentID: enr.ID, From: enr.Status, Action: "fine"}
		}
		if !req.Amount.IsPositive() {
			return &AdjustmentError{EnrollmentID: enr.ID, Amount: req.Amount, Reason: "fine must be positive"}
		}
		tx := &Transaction{
			ID:             TransactionID(uuid.NewString()),
			EnrollmentID:   enr.ID,
			ShopID:         enr.ShopID,
			Type:           TxFine,
			Amount:         RoundMoney(req.Amount),
			PaymentDate:    DayOf(req.Date),
			Status:         PaymentPaid,
			Reason:         req.Reason,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      time.Now().UTC(),
		}
		if err := st.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		enr.TotalFines = RoundMoney(enr.TotalFines.Add(tx.Amount))
		if err := st.UpdateEnrollment(ctx, enr); err != nil {
			return err
		}
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdjustmentRequest describes a signed correction to an enrollment's total.
type AdjustmentRequest struct {
	EnrollmentID   EnrollmentID
	Amount         decimal.Decimal // signed
	Date           time.Time
	Reason         string
	IdempotencyKey string
}

// RecordAdjustment appends a signed correction. Rejected when the amount is
// zero, the reason is empty, or the result would drive TotalPaid negative.
func (a *AccrualEngine) RecordAdjustment(ctx context.Context, req AdjustmentRequest) (*Transaction, error) {
	var out *Transaction
	err := a.store.WithEnrollmentTx(ctx, req.EnrollmentID, func(st Store) error {
		enr, err := st.GetEnrollment(ctx, req.EnrollmentID)
		if err != nil {
			return err
		}
		if prior, err := a.replay(ctx, st, enr.ID, req.IdempotencyKey); err != nil {
			return err
		} else if prior != nil {
			out = prior
			return nil
		}
		if enr.Status != StatusActive {
			return &TransitionError{EnrollmentID: enr.ID, From: enr.Status, Action: "adjust"}
		}
		if req.Amount.IsZero() {
			return &AdjustmentError{EnrollmentID: enr.ID, Amount: req.Amount, Reason: "amount must be non-zero"}
		}
		if req.Reason == "" {
			return &AdjustmentError{EnrollmentID: enr.ID, Amount: req.Amount, Reason: "reason is required"}
		}
		next := RoundMoney(enr.TotalPaid.Add(req.Amount))
		if next.IsNegative() {
			return &AdjustmentError{EnrollmentID: enr.ID, Amount: req.Amount, Reason: "would drive total paid negative"}
		}
		tx := &Transaction{
			ID:             TransactionID(uuid.NewString()),
			EnrollmentID:   enr.ID,
			ShopID:         enr.ShopID,
			Type:           TxAdjustment,
			Amount:         RoundMoney(req.Amount),
			PaymentDate:    DayOf(req.Date),
			Status:         PaymentPaid,
			Reason:         req.Reason,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      time.Now().UTC(),
		}
		if err := st.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		enr.TotalPaid = next
		if err := st.UpdateEnrollment(ctx, enr); err != nil {
			return err
		}
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordBonus appends a bonus credit inside an existing enrollment
// transaction. Called by the lifecycle manager at redemption so the ledger
// explains the payout; exposed for shop-granted ad-hoc bonuses too.
func (a *AccrualEngine) RecordBonus(ctx context.Context, st Store, enr *Enrollment, amount decimal.Decimal, date time.Time, reason string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, &AdjustmentError{EnrollmentID: enr.ID, Amount: amount, Reason: "bonus must be positive"}
	}
	tx := &Transaction{
		ID:           TransactionID(uuid.NewString()),
		EnrollmentID: enr.ID,
		ShopID:       enr.ShopID,
		Type:         TxBonus,
		Amount:       RoundMoney(amount),
		PaymentDate:  DayOf(date),
		Status:       PaymentPaid,
		Reason:       reason,
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.AppendTransaction(ctx, tx); err != nil {
		return nil, err
	}
	enr.TotalPaid = RoundMoney(enr.TotalPaid.Add(tx.Amount))
	if err := st.UpdateEnrollment(ctx, enr); err != nil {
		return nil, err
	}
	return tx, nil
}

// replay returns the previously recorded transaction for key, nil when the
// key is empty or unseen.
func (a *AccrualEngine) replay(ctx context.Context, st Store, id EnrollmentID, key string) (*Transaction, error) {
	if key == "" {
		return nil, nil
	}
	prior, err := st.FindTransactionByKey(ctx, id, key)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		a.log.Debug().
			Str("enrollment_id", string(id)).
			Str("idempotency_key", key).
			Msg("replayed transaction by idempotency key")
	}
	return prior, nil
}
