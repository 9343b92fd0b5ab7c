/*
Package factory provides JSON to Go scheme conversion.

PURPOSE:
  Converts JSON scheme definitions into scheme.Scheme objects. This enables
  scheme configuration without code changes - shop staff can define schemes
  in JSON, and the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can modify schemes
  - Easy integration with admin UI
  - Version control for scheme definitions
  - Database storage of scheme configs

JSON SCHEMA:
  {
    "id": "swarna-11",
    "shop_id": "shop-1",
    "name": "Swarna Labham 11+1",
    "scheme_type": "fixed_amount",
    "duration_months": 11,
    "installment_amount": "1000",
    "rules": {
      "grace_period_days": 5,
      "max_missed_payments": 3,
      "benefit_type": "last_installment_free",
      "gold_conversion_timing": "per_payment",
      "gold_purity": "22K"
    }
  }

KEY FEATURES:
  - Validates JSON structure with go-playground/validator
  - Sets sensible defaults (grace period, conversion timing)
  - Re-validates the final Scheme via scheme.Validate
  - Ships common presets for the two classic jewellery plans

USAGE:
  factory := NewSchemeFactory()

  // From JSON string
  sch, err := factory.ParseScheme(jsonString)

  // From a preset (recommended)
  jsonStr := FixedInstallmentJSON("swarna-11", "shop-1", "Swarna 11+1", "1000", 11)
  sch, err := factory.ParseScheme(jsonStr)

SEE ALSO:
  - scheme/types.go: Scheme type definition and validation
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/aurum/savings-engine/scheme"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SchemeJSON is the JSON representation of a scheme definition.
type SchemeJSON struct {
	ID                string     `json:"id" validate:"required"`
	ShopID            string     `json:"shop_id" validate:"required"`
	Name              string     `json:"name" validate:"required"`
	SchemeType        string     `json:"scheme_type" validate:"required,oneof=fixed_amount variable_amount"`
	DurationMonths    int        `json:"duration_months" validate:"required,gt=0"`
	InstallmentAmount string     `json:"installment_amount,omitempty"`
	IsActive          *bool      `json:"is_active,omitempty"` // default true
	Rules             *RulesJSON `json:"rules,omitempty"`
}

// RulesJSON represents the scheme's policy bundle.
type RulesJSON struct {
	GracePeriodDays      int    `json:"grace_period_days" validate:"gte=0"`
	MaxMissedPayments    int    `json:"max_missed_payments" validate:"gte=0"`
	BenefitType          string `json:"benefit_type" validate:"omitempty,oneof=last_installment_free bonus_percent fixed_bonus bonus_months"`
	BenefitValue         string `json:"benefit_value,omitempty"`
	GoldConversionTiming string `json:"gold_conversion_timing" validate:"omitempty,oneof=per_payment at_maturity"`
	GoldPurity           string `json:"gold_purity,omitempty"`
	AllowPartialPayment  bool   `json:"allow_partial_payment,omitempty"`
}

// =============================================================================
// SCHEME FACTORY
// =============================================================================

// SchemeFactory converts JSON scheme definitions to Go structs.
type SchemeFactory struct {
	validate *validator.Validate
}

// NewSchemeFactory creates a new scheme factory.
func NewSchemeFactory() *SchemeFactory {
	return &SchemeFactory{validate: validator.New()}
}

// ParseScheme parses a JSON string into a Scheme.
func (f *SchemeFactory) ParseScheme(jsonStr string) (*scheme.Scheme, error) {
	var sj SchemeJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, fmt.Errorf("failed to parse scheme JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// FromJSON converts SchemeJSON to a validated scheme.Scheme.
func (f *SchemeFactory) FromJSON(sj SchemeJSON) (*scheme.Scheme, error) {
	if err := f.validate.Struct(sj); err != nil {
		return nil, fmt.Errorf("%w: %v", scheme.ErrInvalidScheme, err)
	}

	rules := sj.Rules
	if rules == nil {
		rules = &RulesJSON{}
	}
	if err := f.validate.Struct(rules); err != nil {
		return nil, fmt.Errorf("%w: %v", scheme.ErrInvalidScheme, err)
	}

	sch := &scheme.Scheme{
		ID:             scheme.SchemeID(sj.ID),
		ShopID:         scheme.ShopID(sj.ShopID),
		Name:           sj.Name,
		Type:           scheme.SchemeType(sj.SchemeType),
		DurationMonths: sj.DurationMonths,
		IsActive:       true,
	}
	if sj.IsActive != nil {
		sch.IsActive = *sj.IsActive
	}

	if sj.InstallmentAmount != "" {
		amt, err := decimal.NewFromString(sj.InstallmentAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: bad installment_amount %q", scheme.ErrInvalidScheme, sj.InstallmentAmount)
		}
		sch.FixedInstallmentAmount = amt
	}

	sch.Rules = scheme.SchemeRules{
		GracePeriodDays:     rules.GracePeriodDays,
		MaxMissedPayments:   rules.MaxMissedPayments,
		GoldPurity:          rules.GoldPurity,
		AllowPartialPayment: rules.AllowPartialPayment,
	}

	// defaults
	sch.Rules.BenefitType = scheme.BenefitType(rules.BenefitType)
	if rules.BenefitType == "" {
		if sch.Type == scheme.FixedAmount {
			sch.Rules.BenefitType = scheme.LastInstallmentFree
		} else {
			sch.Rules.BenefitType = scheme.BonusPercent
		}
	}
	sch.Rules.GoldConversionTiming = scheme.GoldConversionTiming(rules.GoldConversionTiming)
	if rules.GoldConversionTiming == "" {
		sch.Rules.GoldConversionTiming = scheme.ConvertPerPayment
	}
	if rules.BenefitValue != "" {
		v, err := decimal.NewFromString(rules.BenefitValue)
		if err != nil {
			return nil, fmt.Errorf("%w: bad benefit_value %q", scheme.ErrInvalidScheme, rules.BenefitValue)
		}
		sch.Rules.BenefitValue = v
	}

	if err := sch.Validate(); err != nil {
		return nil, err
	}
	return sch, nil
}

// =============================================================================
// PRESETS - the two classic jewellery plans
// =============================================================================

// FixedInstallmentJSON builds the classic N+1 plan: pay a fixed amount for
// durationMonths, the shop adds one installment at maturity.
func FixedInstallmentJSON(id, shopID, name, amount string, durationMonths int) string {
	b, _ := json.Marshal(SchemeJSON{
		ID:                id,
		ShopID:            shopID,
		Name:              name,
		SchemeType:        string(scheme.FixedAmount),
		DurationMonths:    durationMonths,
		InstallmentAmount: amount,
		Rules: &RulesJSON{
			GracePeriodDays:      5,
			BenefitType:          string(scheme.LastInstallmentFree),
			GoldConversionTiming: string(scheme.ConvertPerPayment),
			GoldPurity:           "22K",
		},
	})
	return string(b)
}

// FlexiGoldJSON builds a variable-amount plan paying a percentage bonus on
// the accumulated total, converted to gold at maturity.
func FlexiGoldJSON(id, shopID, name string, durationMonths int, bonusPercent string) string {
	b, _ := json.Marshal(SchemeJSON{
		ID:             id,
		ShopID:         shopID,
		Name:           name,
		SchemeType:     string(scheme.VariableAmount),
		DurationMonths: durationMonths,
		Rules: &RulesJSON{
			GracePeriodDays:      7,
			BenefitType:          string(scheme.BonusPercent),
			BenefitValue:         bonusPercent,
			GoldConversionTiming: string(scheme.ConvertAtMaturity),
			GoldPurity:           "24K",
		},
	})
	return string(b)
}
