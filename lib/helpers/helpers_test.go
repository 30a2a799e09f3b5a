package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMarkdownV2(t *testing.T) {
	assert.Equal(t, `BTC\-USD \(1\.5\)\!`, EscapeMarkdownV2("BTC-USD (1.5)!"))
	assert.Equal(t, `a\\b`, EscapeMarkdownV2(`a\b`))
	assert.Equal(t, "plain", EscapeMarkdownV2("plain"))
}

func TestFormatPriceUS(t *testing.T) {
	tests := []struct {
		price    float64
		escape   bool
		expected string
	}{
		{60000, false, "60,000"},
		{1234567, false, "1,234,567"},
		{150, false, "150.00"},
		{0.5, false, "0.500000"},
		{0.000001, false, "0.00000100"},
		{150, true, `150\.00`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatPriceUS(tt.price, tt.escape))
	}
}
