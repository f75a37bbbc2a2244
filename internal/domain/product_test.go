package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Registration Status Validation Tests
// ============================================================================

func TestValidRakutenStatuses_ContainsAll(t *testing.T) {
	statuses := ValidRakutenStatuses()
	expected := []string{StatusRegistered, StatusFailed, StatusDeleted, StatusOnSale, StatusStopped}
	assert.ElementsMatch(t, expected, statuses)
}

func TestIsValidRakutenStatus_ValidStatuses(t *testing.T) {
	for _, s := range ValidRakutenStatuses() {
		assert.True(t, IsValidRakutenStatus(s), "expected %q to be valid", s)
	}
}

func TestIsValidRakutenStatus_Invalid(t *testing.T) {
	assert.False(t, IsValidRakutenStatus("unknown"))
	assert.False(t, IsValidRakutenStatus(""))
	assert.False(t, IsValidRakutenStatus("ONSALE"))
}

func TestIsValidRegistrationStatus(t *testing.T) {
	assert.True(t, IsValidRegistrationStatus(RegistrationUnregistered))
	assert.True(t, IsValidRegistrationStatus(RegistrationRegistered))
	assert.True(t, IsValidRegistrationStatus(RegistrationPreviouslyRegistered))
	assert.False(t, IsValidRegistrationStatus(0))
	assert.False(t, IsValidRegistrationStatus(4))
}

// ============================================================================
// Hide-Item Gating Tests
// ============================================================================

func TestHideItemTogglable_NullAndEmpty(t *testing.T) {
	assert.True(t, HideItemTogglable(nil))
	empty := ""
	assert.True(t, HideItemTogglable(&empty))
}

func TestHideItemTogglable_ByStatus(t *testing.T) {
	tests := []struct {
		status   string
		expected bool
	}{
		{StatusOnSale, true},
		{StatusRegistered, true},
		{StatusFailed, true},
		{StatusDeleted, false},
		{StatusStopped, false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			s := tt.status
			assert.Equal(t, tt.expected, HideItemTogglable(&s))
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "", StatusString(nil))
	s := StatusOnSale
	assert.Equal(t, "onsale", StatusString(&s))
}

// ============================================================================
// Origin Product Tests
// ============================================================================

func TestIsValidOriginSize(t *testing.T) {
	for _, s := range ValidOriginSizes() {
		assert.True(t, IsValidOriginSize(s), "expected %d to be valid", s)
	}
	assert.False(t, IsValidOriginSize(0))
	assert.False(t, IsValidOriginSize(50))
	assert.False(t, IsValidOriginSize(120))
}

func TestOriginProduct_HasTitle(t *testing.T) {
	assert.False(t, (&OriginProduct{}).HasTitle())
	assert.True(t, (&OriginProduct{TitleC: "连衣裙"}).HasTitle())
	assert.True(t, (&OriginProduct{TitleT: "ワンピース"}).HasTitle())
}

// ============================================================================
// Canonical Product Struct Tests
// ============================================================================

func TestCanonicalProduct_NullableStatuses(t *testing.T) {
	p := CanonicalProduct{}
	assert.Nil(t, p.RakutenRegistrationStatus)
	assert.Nil(t, p.RakutenRegisteredAt)

	status := StatusRegistered
	now := time.Now()
	p.RakutenRegistrationStatus = &status
	p.RakutenRegisteredAt = &now
	assert.Equal(t, "true", *p.RakutenRegistrationStatus)
	assert.NotNil(t, p.RakutenRegisteredAt)
}

func TestVariant_SelectorValues(t *testing.T) {
	v := Variant{
		SelectorValues: map[string]string{"color": "ブラック", "size": "M"},
		StandardPrice:  "990",
	}
	assert.Equal(t, "ブラック", v.SelectorValues["color"])
	assert.Equal(t, "990", v.StandardPrice)
}
