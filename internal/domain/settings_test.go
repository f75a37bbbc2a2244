package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomesticShippingCosts_ForSize(t *testing.T) {
	size60 := 430.0
	size80 := 570.0
	size100 := 740.0
	costs := DomesticShippingCosts{Regular: 350, Size60: &size60, Size80: &size80, Size100: &size100}

	intp := func(v int) *int { return &v }
	tests := []struct {
		name     string
		size     *int
		expected float64
	}{
		{"nil size", nil, 350},
		{"size 30 uses regular", intp(30), 350},
		{"size 60", intp(60), 430},
		{"size 80", intp(80), 570},
		{"size 100", intp(100), 740},
		{"unknown size uses regular", intp(140), 350},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, costs.ForSize(tt.size))
		})
	}
}

func TestDomesticShippingCosts_MissingTierFallsBack(t *testing.T) {
	costs := DomesticShippingCosts{Regular: 350}
	size := 80
	assert.Equal(t, 350.0, costs.ForSize(&size))
}

func TestPricingSettings_Validate(t *testing.T) {
	s := DefaultPricingSettings()
	assert.NoError(t, s.Validate())

	s.ExchangeRate = -1
	assert.Error(t, s.Validate())

	s = DefaultPricingSettings()
	negative := -10.0
	s.DomesticShippingCosts.Size80 = &negative
	assert.Error(t, s.Validate())
}

func TestPricingSettings_UnknownJSONFieldsIgnored(t *testing.T) {
	raw := `{"exchange_rate": 21.5, "legacy_flag": true, "domestic_shipping_costs": {"regular": 300, "size60": 400}}`
	var s PricingSettings
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	assert.Equal(t, 21.5, s.ExchangeRate)
	assert.Equal(t, 300.0, s.DomesticShippingCosts.Regular)
	require.NotNil(t, s.DomesticShippingCosts.Size60)
	assert.Equal(t, 400.0, *s.DomesticShippingCosts.Size60)
	assert.Nil(t, s.DomesticShippingCosts.Size80)
}
