/*
PURPOSE:
  Pure schedule arithmetic: due dates, missed-payment counts, grace
  windows, and default detection. Everything here is a function of its
  arguments; time never comes from the clock.

KEY CONCEPTS:
  - Monthly cadence: installment k is due on StartDate + k months, with
    the day-of-month clamped to short months (enrolled Jan 31 -> due
    Feb 28/29)
  - Grace window: a due date blown by no more than GracePeriodDays is
    late but not yet missed
  - Missed: a period whose grace window has passed with no installment
    recorded inside the period

SEE ALSO:
  - lifecycle.go: EvaluateStatus packages these into a StatusReport
*/
package scheme

import "time"

// DueDate returns the due date of installment k (0-based: k=0 is the
// enrollment date itself, k=1 the first monthly installment after it).
func DueDate(start time.Time, k int) time.Time {
	return AddMonthsClamped(DayOf(start), k)
}

// NextDueDate returns the first due date on or after asOf, capped at the
// final installment of the schedule. Returns the final due date when the
// whole schedule lies in the past, and the zero time when durationMonths
// is not positive (Scheme.Validate rejects such schemes upstream).
func NextDueDate(start time.Time, durationMonths int, asOf time.Time) time.Time {
	if durationMonths <= 0 {
		return time.Time{}
	}
	day := DayOf(asOf)
	for k := 0; k < durationMonths; k++ {
		due := DueDate(start, k)
		if !due.Before(day) {
			return due
		}
	}
	return DueDate(start, durationMonths-1)
}

// periodPaid reports whether any of paidDates falls inside the half-open
// window [periodStart, periodEnd).
func periodPaid(periodStart, periodEnd time.Time, paidDates []time.Time) bool {
	for _, p := range paidDates {
		d := DayOf(p)
		if !d.Before(periodStart) && d.Before(periodEnd) {
			return true
		}
	}
	return false
}

// MissedPaymentCount counts schedule periods whose grace window has fully
// elapsed as of asOf without an installment recorded inside the period.
// paidDates are the payment dates of the enrollment's installments; one
// payment satisfies at most one period. A non-positive durationMonths has
// no periods and counts zero.
func MissedPaymentCount(start time.Time, durationMonths, graceDays int, asOf time.Time, paidDates []time.Time) int {
	day := DayOf(asOf)
	remaining := make([]time.Time, len(paidDates))
	copy(remaining, paidDates)

	missed := 0
	for k := 0; k < durationMonths; k++ {
		due := DueDate(start, k)
		deadline := due.AddDate(0, 0, graceDays)
		if !deadline.Before(day) {
			break // this and later periods are still open
		}
		periodEnd := DueDate(start, k+1)
		idx := -1
		for i, p := range remaining {
			d := DayOf(p)
			if !d.Before(due) && d.Before(periodEnd) {
				idx = i
				break
			}
		}
		if idx < 0 {
			missed++
			continue
		}
		// consume the payment so it cannot satisfy a later period
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return missed
}

// IsOverdue reports whether the enrollment currently has at least one
// elapsed, unpaid period.
func IsOverdue(start time.Time, durationMonths, graceDays int, asOf time.Time, paidDates []time.Time) bool {
	return MissedPaymentCount(start, durationMonths, graceDays, asOf, paidDates) > 0
}

// IsDefaulted reports whether the missed count has reached the scheme's
// MaxMissedPayments threshold. A zero threshold disables default detection.
func IsDefaulted(missed, maxMissed int) bool {
	return maxMissed > 0 && missed >= maxMissed
}

// IsMature reports whether asOf has reached the enrollment's maturity date.
func IsMature(maturity, asOf time.Time) bool {
	return !DayOf(asOf).Before(DayOf(maturity))
}
