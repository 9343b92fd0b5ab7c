package scheme

import (
	"testing"
	"time"
)

// =============================================================================
// DUE DATE ARITHMETIC
// =============================================================================

func TestDueDateMonthlyCadence(t *testing.T) {
	// GIVEN an enrollment starting mid-month
	start := Date(2026, time.January, 15)

	// THEN each installment lands on the 15th of the following months
	if got := DueDate(start, 0); !got.Equal(Date(2026, time.January, 15)) {
		t.Errorf("k=0: got %v", got)
	}
	if got := DueDate(start, 1); !got.Equal(Date(2026, time.February, 15)) {
		t.Errorf("k=1: got %v", got)
	}
	if got := DueDate(start, 11); !got.Equal(Date(2026, time.December, 15)) {
		t.Errorf("k=11: got %v", got)
	}
}

func TestDueDateClampsShortMonths(t *testing.T) {
	// GIVEN an enrollment starting on Jan 31
	start := Date(2026, time.January, 31)

	// THEN February's due date clamps to the month end, not March 3
	if got := DueDate(start, 1); !got.Equal(Date(2026, time.February, 28)) {
		t.Errorf("feb: got %v", got)
	}
	// AND later long months return to the 31st
	if got := DueDate(start, 2); !got.Equal(Date(2026, time.March, 31)) {
		t.Errorf("mar: got %v", got)
	}
	if got := DueDate(start, 3); !got.Equal(Date(2026, time.April, 30)) {
		t.Errorf("apr: got %v", got)
	}
}

func TestDueDateLeapFebruary(t *testing.T) {
	start := Date(2028, time.January, 30)
	if got := DueDate(start, 1); !got.Equal(Date(2028, time.February, 29)) {
		t.Errorf("leap feb: got %v", got)
	}
}

func TestNextDueDate(t *testing.T) {
	start := Date(2026, time.March, 10)

	// WHEN asked mid-cycle, the first due on-or-after wins
	got := NextDueDate(start, 11, Date(2026, time.April, 20))
	if !got.Equal(Date(2026, time.May, 10)) {
		t.Errorf("mid-cycle: got %v", got)
	}

	// WHEN asked exactly on a due date, that date is returned
	got = NextDueDate(start, 11, Date(2026, time.May, 10))
	if !got.Equal(Date(2026, time.May, 10)) {
		t.Errorf("on due date: got %v", got)
	}

	// WHEN the whole schedule has elapsed, the final due date is returned
	got = NextDueDate(start, 11, Date(2027, time.June, 1))
	if !got.Equal(Date(2027, time.January, 10)) {
		t.Errorf("elapsed: got %v", got)
	}
}

func TestScheduleWithoutPeriods(t *testing.T) {
	// GIVEN a duration with no periods at all
	start := Date(2026, time.March, 10)

	// THEN there is no next due date, not one before the start
	if got := NextDueDate(start, 0, Date(2026, time.April, 1)); !got.IsZero() {
		t.Errorf("zero duration: got %v", got)
	}
	if got := NextDueDate(start, -3, Date(2026, time.April, 1)); !got.IsZero() {
		t.Errorf("negative duration: got %v", got)
	}

	// AND nothing can be missed
	if missed := MissedPaymentCount(start, 0, 5, Date(2027, time.April, 1), nil); missed != 0 {
		t.Errorf("zero duration: expected 0 missed, got %d", missed)
	}
}

// =============================================================================
// MISSED PAYMENTS AND GRACE
// =============================================================================

func TestMissedPaymentCountAllPaid(t *testing.T) {
	// GIVEN monthly payments landing inside each period
	start := Date(2026, time.January, 5)
	paid := []time.Time{
		Date(2026, time.January, 5),
		Date(2026, time.February, 7),
		Date(2026, time.March, 5),
	}

	// WHEN evaluated after three periods have fully elapsed
	missed := MissedPaymentCount(start, 11, 5, Date(2026, time.April, 1), paid)

	// THEN nothing is missed
	if missed != 0 {
		t.Errorf("expected 0 missed, got %d", missed)
	}
}

func TestMissedPaymentCountSkippedPeriod(t *testing.T) {
	// GIVEN the February installment was never paid
	start := Date(2026, time.January, 5)
	paid := []time.Time{
		Date(2026, time.January, 5),
		Date(2026, time.March, 6),
	}

	missed := MissedPaymentCount(start, 11, 5, Date(2026, time.April, 1), paid)
	if missed != 1 {
		t.Errorf("expected 1 missed, got %d", missed)
	}
	if !IsOverdue(start, 11, 5, Date(2026, time.April, 1), paid) {
		t.Error("expected overdue")
	}
}

func TestGraceWindowHoldsBackMissed(t *testing.T) {
	// GIVEN a 5-day grace period and an unpaid installment due Feb 5
	start := Date(2026, time.January, 5)
	paid := []time.Time{Date(2026, time.January, 5)}

	// WHEN evaluated inside the grace window (Feb 8)
	missed := MissedPaymentCount(start, 11, 5, Date(2026, time.February, 8), paid)
	if missed != 0 {
		t.Errorf("inside grace: expected 0 missed, got %d", missed)
	}

	// WHEN evaluated the day the grace window has fully elapsed (Feb 11)
	missed = MissedPaymentCount(start, 11, 5, Date(2026, time.February, 11), paid)
	if missed != 1 {
		t.Errorf("past grace: expected 1 missed, got %d", missed)
	}
}

func TestOnePaymentSatisfiesOnePeriod(t *testing.T) {
	// GIVEN two payments crammed into January's period and nothing after
	start := Date(2026, time.January, 5)
	paid := []time.Time{
		Date(2026, time.January, 5),
		Date(2026, time.January, 20),
	}

	// January's spare payment does not cover February; February counts as
	// missed because the second payment fell inside January's window
	missed := MissedPaymentCount(start, 11, 0, Date(2026, time.March, 4), paid)
	if missed != 1 {
		t.Errorf("expected 1 missed, got %d", missed)
	}
}

func TestIsDefaulted(t *testing.T) {
	if IsDefaulted(2, 3) {
		t.Error("2 of 3 should not default")
	}
	if !IsDefaulted(3, 3) {
		t.Error("3 of 3 should default")
	}
	// zero threshold disables detection
	if IsDefaulted(12, 0) {
		t.Error("threshold 0 must never default")
	}
}

func TestIsMature(t *testing.T) {
	maturity := Date(2026, time.December, 5)
	if IsMature(maturity, Date(2026, time.December, 4)) {
		t.Error("day before maturity is not mature")
	}
	if !IsMature(maturity, Date(2026, time.December, 5)) {
		t.Error("maturity day is mature")
	}
	if !IsMature(maturity, Date(2027, time.January, 1)) {
		t.Error("after maturity is mature")
	}
}
