package valueobject

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts the way the back-office screens display them:
// grouped thousands, comma decimals, symbol after the amount ("1 000,00 €").
type Formatter struct {
	printer *message.Printer
}

// NewFormatter creates a formatter using the French number conventions the
// treasury screens were built around
func NewFormatter() *Formatter {
	return &Formatter{printer: message.NewPrinter(language.French)}
}

// FormatAmount formats a decimal amount with two fraction digits
func (f *Formatter) FormatAmount(amount decimal.Decimal) string {
	v, _ := amount.Round(2).Float64()
	s := f.printer.Sprint(number.Decimal(v,
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	))
	return normalizeGroupingSpaces(s)
}

// FormatWithSymbol formats the amount and appends the currency symbol
func (f *Formatter) FormatWithSymbol(amount decimal.Decimal, symbol string) string {
	if symbol == "" {
		return f.FormatAmount(amount)
	}
	return f.FormatAmount(amount) + " " + symbol
}

// normalizeGroupingSpaces replaces the no-break grouping spaces emitted by
// the CLDR data with plain spaces, matching what the screens render
func normalizeGroupingSpaces(s string) string {
	s = strings.ReplaceAll(s, "\u202f", " ")
	return strings.ReplaceAll(s, "\u00a0", " ")
}
