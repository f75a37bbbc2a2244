package domain

import (
	"fmt"
)

// PricingSettingsKey is the singleton key under which pricing settings
// live in app_settings.
const PricingSettingsKey = "pricing_settings"

// PricingSettings drives per-SKU price computation. Stored as JSON in
// app_settings; unknown fields in the stored value are ignored.
type PricingSettings struct {
	ExchangeRate              float64               `json:"exchange_rate"`
	ProfitMarginPercent       float64               `json:"profit_margin_percent"`
	SalesCommissionPercent    float64               `json:"sales_commission_percent"`
	Currency                  string                `json:"currency"`
	DomesticShippingCosts     DomesticShippingCosts `json:"domestic_shipping_costs"`
	InternationalShippingRate float64               `json:"international_shipping_rate"`
	CustomsDutyRate           float64               `json:"customs_duty_rate"`
}

// DomesticShippingCosts are the size-tiered domestic shipping costs in
// JPY. Size tiers left unset fall back to Regular.
type DomesticShippingCosts struct {
	Regular float64  `json:"regular"`
	Size60  *float64 `json:"size60,omitempty"`
	Size80  *float64 `json:"size80,omitempty"`
	Size100 *float64 `json:"size100,omitempty"`
}

// ForSize returns the shipping cost for the given parcel size class.
// Size 30 and any unknown size use the regular cost, and a tier without
// a configured cost falls back to the regular cost as well.
func (c DomesticShippingCosts) ForSize(size *int) float64 {
	if size == nil {
		return c.Regular
	}
	var tier *float64
	switch *size {
	case 60:
		tier = c.Size60
	case 80:
		tier = c.Size80
	case 100:
		tier = c.Size100
	default:
		return c.Regular
	}
	if tier == nil {
		return c.Regular
	}
	return *tier
}

// DefaultPricingSettings returns the settings used until an operator
// saves their own.
func DefaultPricingSettings() PricingSettings {
	size60 := 430.0
	size80 := 570.0
	size100 := 740.0
	return PricingSettings{
		ExchangeRate:              22,
		ProfitMarginPercent:       1.5,
		SalesCommissionPercent:    10,
		Currency:                  "JPY",
		DomesticShippingCosts:     DomesticShippingCosts{Regular: 350, Size60: &size60, Size80: &size80, Size100: &size100},
		InternationalShippingRate: 19.2,
		CustomsDutyRate:           0,
	}
}

// Validate checks that every rate is non-negative.
func (s PricingSettings) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"exchange_rate", s.ExchangeRate},
		{"profit_margin_percent", s.ProfitMarginPercent},
		{"sales_commission_percent", s.SalesCommissionPercent},
		{"international_shipping_rate", s.InternationalShippingRate},
		{"customs_duty_rate", s.CustomsDutyRate},
		{"domestic_shipping_costs.regular", s.DomesticShippingCosts.Regular},
	}
	for _, c := range checks {
		if c.value < 0 {
			return fmt.Errorf("%s must not be negative, got %v", c.name, c.value)
		}
	}
	for _, tier := range []struct {
		name  string
		value *float64
	}{
		{"domestic_shipping_costs.size60", s.DomesticShippingCosts.Size60},
		{"domestic_shipping_costs.size80", s.DomesticShippingCosts.Size80},
		{"domestic_shipping_costs.size100", s.DomesticShippingCosts.Size100},
	} {
		if tier.value != nil && *tier.value < 0 {
			return fmt.Errorf("%s must not be negative, got %v", tier.name, *tier.value)
		}
	}
	return nil
}
