package factory

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/aurum/savings-engine/scheme"
)

func TestParseScheme_FixedInstallmentPreset(t *testing.T) {
	f := NewSchemeFactory()

	jsonStr := FixedInstallmentJSON("swarna-11", "shop-1", "Swarna 11+1", "1000", 11)
	sch, err := f.ParseScheme(jsonStr)
	if err != nil {
		t.Fatalf("ParseScheme failed: %v", err)
	}

	if sch.Type != scheme.FixedAmount {
		t.Errorf("Type = %q, want fixed_amount", sch.Type)
	}
	if sch.DurationMonths != 11 {
		t.Errorf("DurationMonths = %d, want 11", sch.DurationMonths)
	}
	if !sch.FixedInstallmentAmount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("FixedInstallmentAmount = %s, want 1000", sch.FixedInstallmentAmount)
	}
	if sch.Rules.BenefitType != scheme.LastInstallmentFree {
		t.Errorf("BenefitType = %q, want last_installment_free", sch.Rules.BenefitType)
	}
	if sch.Rules.GoldConversionTiming != scheme.ConvertPerPayment {
		t.Errorf("GoldConversionTiming = %q, want per_payment", sch.Rules.GoldConversionTiming)
	}
	if !sch.IsActive {
		t.Error("preset should be active by default")
	}
}

func TestParseScheme_FlexiGoldPreset(t *testing.T) {
	f := NewSchemeFactory()

	jsonStr := FlexiGoldJSON("flexi-12", "shop-1", "Flexi Gold", 12, "8")
	sch, err := f.ParseScheme(jsonStr)
	if err != nil {
		t.Fatalf("ParseScheme failed: %v", err)
	}

	if sch.Type != scheme.VariableAmount {
		t.Errorf("Type = %q, want variable_amount", sch.Type)
	}
	if sch.Rules.BenefitType != scheme.BonusPercent {
		t.Errorf("BenefitType = %q, want bonus_percent", sch.Rules.BenefitType)
	}
	if !sch.Rules.BenefitValue.Equal(decimal.NewFromInt(8)) {
		t.Errorf("BenefitValue = %s, want 8", sch.Rules.BenefitValue)
	}
	if sch.Rules.GoldConversionTiming != scheme.ConvertAtMaturity {
		t.Errorf("GoldConversionTiming = %q, want at_maturity", sch.Rules.GoldConversionTiming)
	}
	if sch.Rules.GoldPurity != "24K" {
		t.Errorf("GoldPurity = %q, want 24K", sch.Rules.GoldPurity)
	}
}

func TestParseScheme_DefaultsWithoutRules(t *testing.T) {
	f := NewSchemeFactory()

	sch, err := f.ParseScheme(`{
		"id": "plain",
		"shop_id": "shop-1",
		"name": "Plain Variable",
		"scheme_type": "variable_amount",
		"duration_months": 12
	}`)
	if err != nil {
		t.Fatalf("ParseScheme failed: %v", err)
	}
	if sch.Rules.BenefitType != scheme.BonusPercent {
		t.Errorf("variable schemes default to bonus_percent, got %q", sch.Rules.BenefitType)
	}
	if sch.Rules.GoldConversionTiming != scheme.ConvertPerPayment {
		t.Errorf("default timing should be per_payment, got %q", sch.Rules.GoldConversionTiming)
	}
}

func TestParseScheme_IsActiveOverride(t *testing.T) {
	f := NewSchemeFactory()

	sch, err := f.ParseScheme(`{
		"id": "draft",
		"shop_id": "shop-1",
		"name": "Draft Plan",
		"scheme_type": "fixed_amount",
		"duration_months": 11,
		"installment_amount": "500",
		"is_active": false
	}`)
	if err != nil {
		t.Fatalf("ParseScheme failed: %v", err)
	}
	if sch.IsActive {
		t.Error("explicit is_active=false was ignored")
	}
}

func TestParseScheme_RejectsMalformedJSON(t *testing.T) {
	f := NewSchemeFactory()

	if _, err := f.ParseScheme(`{not json`); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestParseScheme_RejectsMissingFields(t *testing.T) {
	f := NewSchemeFactory()

	_, err := f.ParseScheme(`{"id": "x", "scheme_type": "fixed_amount"}`)
	if !errors.Is(err, scheme.ErrInvalidScheme) {
		t.Fatalf("expected ErrInvalidScheme, got %v", err)
	}
}

func TestParseScheme_RejectsUnknownSchemeType(t *testing.T) {
	f := NewSchemeFactory()

	_, err := f.ParseScheme(`{
		"id": "x", "shop_id": "s", "name": "n",
		"scheme_type": "lucky_draw", "duration_months": 12
	}`)
	if !errors.Is(err, scheme.ErrInvalidScheme) {
		t.Fatalf("expected ErrInvalidScheme, got %v", err)
	}
}

func TestParseScheme_RejectsBenefitMismatch(t *testing.T) {
	f := NewSchemeFactory()

	// last_installment_free has no meaning without a fixed installment
	_, err := f.ParseScheme(`{
		"id": "x", "shop_id": "s", "name": "n",
		"scheme_type": "variable_amount", "duration_months": 12,
		"rules": {"benefit_type": "last_installment_free"}
	}`)
	if !errors.Is(err, scheme.ErrInvalidScheme) {
		t.Fatalf("expected ErrInvalidScheme, got %v", err)
	}
}

func TestParseScheme_RejectsBadAmountString(t *testing.T) {
	f := NewSchemeFactory()

	_, err := f.ParseScheme(`{
		"id": "x", "shop_id": "s", "name": "n",
		"scheme_type": "fixed_amount", "duration_months": 11,
		"installment_amount": "one thousand"
	}`)
	if !errors.Is(err, scheme.ErrInvalidScheme) {
		t.Fatalf("expected ErrInvalidScheme, got %v", err)
	}
}
