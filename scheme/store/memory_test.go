package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurum/savings-engine/scheme"
)

func seedEnrollment(t *testing.T, m *Memory, account string) *scheme.Enrollment {
	t.Helper()
	enr := &scheme.Enrollment{
		ID:            scheme.EnrollmentID("enr-" + account),
		ShopID:        "shop-1",
		CustomerID:    "cust-1",
		SchemeID:      "swarna-11",
		AccountNumber: account,
		StartDate:     scheme.Date(2026, time.January, 5),
		MaturityDate:  scheme.Date(2026, time.December, 5),
		Status:        scheme.StatusActive,
		TotalPaid:     decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}
	if err := m.CreateEnrollment(context.Background(), enr); err != nil {
		t.Fatalf("create enrollment: %v", err)
	}
	return enr
}

func TestMemory_AccountNumberUniquePerShop(t *testing.T) {
	m := NewMemory()
	seedEnrollment(t, m, "ACC-001")

	dup := &scheme.Enrollment{
		ID:            "enr-other",
		ShopID:        "shop-1",
		AccountNumber: "ACC-001",
		Status:        scheme.StatusActive,
	}
	if err := m.CreateEnrollment(context.Background(), dup); !errors.Is(err, scheme.ErrDuplicateAccountNumber) {
		t.Fatalf("err = %v, want ErrDuplicateAccountNumber", err)
	}

	// same account number in a different shop is fine
	other := &scheme.Enrollment{
		ID:            "enr-shop2",
		ShopID:        "shop-2",
		AccountNumber: "ACC-001",
		Status:        scheme.StatusActive,
	}
	if err := m.CreateEnrollment(context.Background(), other); err != nil {
		t.Fatalf("cross-shop create: %v", err)
	}
}

func TestMemory_WithEnrollmentTx_RollsBackOnError(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	enr := seedEnrollment(t, m, "ACC-010")

	boom := errors.New("boom")
	err := m.WithEnrollmentTx(ctx, enr.ID, func(st scheme.Store) error {
		e, err := st.GetEnrollment(ctx, enr.ID)
		if err != nil {
			return err
		}
		if err := st.AppendTransaction(ctx, &scheme.Transaction{
			ID:           "tx-1",
			EnrollmentID: enr.ID,
			Type:         scheme.TxInstallment,
			Amount:       decimal.NewFromInt(1000),
			PaymentDate:  scheme.Date(2026, time.January, 5),
			Status:       scheme.PaymentPaid,
		}); err != nil {
			return err
		}
		e.TotalPaid = decimal.NewFromInt(1000)
		if err := st.UpdateEnrollment(ctx, e); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	got, err := m.GetEnrollment(ctx, enr.ID)
	if err != nil {
		t.Fatalf("get enrollment: %v", err)
	}
	if !got.TotalPaid.IsZero() {
		t.Errorf("TotalPaid = %s, rollback did not restore it", got.TotalPaid)
	}
	txs, _ := m.ListTransactions(ctx, enr.ID, scheme.TransactionFilter{})
	if len(txs) != 0 {
		t.Errorf("transactions = %d, rollback did not discard the append", len(txs))
	}
}

func TestMemory_GetEnrollmentReturnsCopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	enr := seedEnrollment(t, m, "ACC-020")

	got, _ := m.GetEnrollment(ctx, enr.ID)
	got.TotalPaid = decimal.NewFromInt(9999)

	fresh, _ := m.GetEnrollment(ctx, enr.ID)
	if !fresh.TotalPaid.IsZero() {
		t.Errorf("mutation of a returned enrollment leaked into the store")
	}
}

func TestMemory_FindTransactionByKey_Unseen(t *testing.T) {
	m := NewMemory()
	enr := seedEnrollment(t, m, "ACC-030")

	tx, err := m.FindTransactionByKey(context.Background(), enr.ID, "never")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if tx != nil {
		t.Errorf("tx = %v, want nil for an unseen key", tx)
	}
}
