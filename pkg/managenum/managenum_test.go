package managenum

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_NumericIDs(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"712498123", "712498123"},
		{"4988601", "4988601"},
		{" 721568049 ", "721568049"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestSanitize_FullWidthFolding(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"７１２４９８１２３", "712498123"},
		{"ＡＢＣ１２３", "abc123"},
		{"ｉｔｅｍ－４９８", "item-498"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestSanitize_SpecialCharacters(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Item 4988601", "item-4988601"},
		{"498#860/1", "498-860-1"},
		{"item_498", "item-498"},
		{"item: ¥100", "item-100"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestSanitize_WhitespaceHandling(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"leading spaces", "   498 860   ", "498-860"},
		{"multiple spaces", "498   860", "498-860"},
		{"tabs and spaces", "498\t\t860", "498-860"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestSanitize_EdgeCases(t *testing.T) {
	assert.Equal(t, "", Sanitize(""))
	assert.Equal(t, "", Sanitize("   "))
	assert.Equal(t, "", Sanitize("!!!"))
	assert.Equal(t, "a", Sanitize("a"))
	assert.Equal(t, "123", Sanitize("123"))
}

func TestSanitize_ConsecutiveHyphens(t *testing.T) {
	assert.Equal(t, "a-b", Sanitize("a---b"))
	assert.Equal(t, "a-b", Sanitize("a - - b"))
}

func TestSanitize_NoLeadingTrailingHyphens(t *testing.T) {
	assert.Equal(t, "498", Sanitize("-498-"))
	assert.Equal(t, "498", Sanitize("!498!"))
}

func TestSanitize_CapsLength(t *testing.T) {
	long := strings.Repeat("7", MaxLen+10)
	got := Sanitize(long)
	assert.Len(t, got, MaxLen)

	// Truncation must not leave a trailing hyphen behind.
	border := strings.Repeat("a", MaxLen-1) + "-zzz"
	assert.Equal(t, strings.Repeat("a", MaxLen-1), Sanitize(border))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("712498123"))
	assert.True(t, Valid("item-498"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("Item498"))
	assert.False(t, Valid("item--498"))
	assert.False(t, Valid("-498"))
	assert.False(t, Valid(strings.Repeat("7", MaxLen+1)))
}
