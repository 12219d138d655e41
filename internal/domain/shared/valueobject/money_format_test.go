package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatter_FormatAmount(t *testing.T) {
	f := NewFormatter()

	tests := []struct {
		name   string
		amount decimal.Decimal
		want   string
	}{
		{"zero", decimal.Zero, "0,00"},
		{"small amount", decimal.NewFromFloat(42.5), "42,50"},
		{"grouped thousands", decimal.NewFromInt(1000), "1 000,00"},
		{"large amount", decimal.NewFromFloat(1234567.89), "1 234 567,89"},
		{"rounded to cents", decimal.NewFromFloat(10.005), "10,01"},
		{"negative", decimal.NewFromFloat(-250.4), "-250,40"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.FormatAmount(tt.amount))
		})
	}
}

func TestFormatter_FormatWithSymbol(t *testing.T) {
	f := NewFormatter()

	assert.Equal(t, "1 000,00 €", f.FormatWithSymbol(decimal.NewFromInt(1000), "€"))
	assert.Equal(t, "500,00 FCFA", f.FormatWithSymbol(decimal.NewFromInt(500), "FCFA"))

	// Without a symbol the bare amount is returned, no trailing space
	assert.Equal(t, "500,00", f.FormatWithSymbol(decimal.NewFromInt(500), ""))
}

func TestFormatter_NoUnbreakableSpaces(t *testing.T) {
	f := NewFormatter()

	formatted := f.FormatAmount(decimal.NewFromInt(1000000))
	assert.NotContains(t, formatted, "\u00a0")
	assert.NotContains(t, formatted, "\u202f")
	assert.Equal(t, "1 000 000,00", formatted)
}

func TestCurrency_String(t *testing.T) {
	assert.Equal(t, "EUR", EUR.String())
	assert.Equal(t, "XOF", XOF.String())
}
