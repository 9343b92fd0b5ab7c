/*
PURPOSE:
  Computes the value of an enrollment at (or before) maturity under the
  scheme's benefit policy. Pure: a function of the scheme, the accumulated
  totals, and an optional spot gold rate.

KEY CONCEPTS:
  - Bonus: the benefit amount the shop adds on top of what was paid in
  - Cash value: total paid + bonus, rounded to 2dp
  - Gold value: grams backing the cash value; accumulated per payment for
    per_payment schemes, converted once at redemption for at_maturity
    schemes (requires a positive rate then)

SEE ALSO:
  - lifecycle.go: Redeem and PreviewMaturityValue drive this
*/
package scheme

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// MaturityValue is the computed settlement of an enrollment.
type MaturityValue struct {
	BonusAmount decimal.Decimal
	CashValue   decimal.Decimal // totalPaid + bonus, 2dp
	GoldValue   decimal.Decimal // grams, 3dp; zero when no rate applies
}

// BonusAmount computes the scheme's bonus for the given accumulated total.
// The result is rounded to 2dp.
func BonusAmount(s Scheme, totalPaid decimal.Decimal) decimal.Decimal {
	var bonus decimal.Decimal
	switch s.Rules.BenefitType {
	case LastInstallmentFree:
		bonus = s.FixedInstallmentAmount
	case BonusPercent:
		bonus = totalPaid.Mul(s.Rules.BenefitValue).Div(hundred)
	case FixedBonus:
		bonus = s.Rules.BenefitValue
	case BonusMonths:
		// average monthly contribution times the bonus month count
		avg := totalPaid.Div(decimal.NewFromInt(int64(s.DurationMonths)))
		bonus = avg.Mul(s.Rules.BenefitValue)
	}
	return RoundMoney(bonus)
}

// ComputeMaturityValue values an enrollment as if redeemed now with the
// bonus applied. goldRate is the spot rate per gram; it is consulted only
// for at_maturity conversion schemes and may be zero otherwise.
//
// For per_payment schemes the gold value is the already-accumulated weight:
// the bonus stays in currency because no rate is defined for it.
func ComputeMaturityValue(s Scheme, totalPaid, totalGoldWeight, goldRate decimal.Decimal) (MaturityValue, error) {
	bonus := BonusAmount(s, totalPaid)
	cash := RoundMoney(totalPaid.Add(bonus))

	var gold decimal.Decimal
	switch s.Rules.GoldConversionTiming {
	case ConvertPerPayment:
		gold = RoundGrams(totalGoldWeight)
	case ConvertAtMaturity:
		if !goldRate.IsPositive() {
			return MaturityValue{}, ErrMissingGoldRate
		}
		gold = RoundGrams(cash.Div(goldRate))
	}

	return MaturityValue{
		BonusAmount: bonus,
		CashValue:   cash,
		GoldValue:   gold,
	}, nil
}

// GramsForPayment converts one payment amount to grams at the given rate.
func GramsForPayment(amount, goldRate decimal.Decimal) (decimal.Decimal, error) {
	if !goldRate.IsPositive() {
		return decimal.Zero, ErrMissingGoldRate
	}
	return RoundGrams(amount.Div(goldRate)), nil
}
