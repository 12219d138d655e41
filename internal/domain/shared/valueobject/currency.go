package valueobject

// Currency represents a currency code (ISO 4217)
type Currency string

// Currencies the treasury screens are used with. The sheet's own currency
// is resolved from company settings, so the set is open-ended.
const (
	EUR Currency = "EUR" // Euro (default)
	XOF Currency = "XOF" // West African CFA franc
	XAF Currency = "XAF" // Central African CFA franc
	USD Currency = "USD" // US Dollar
	MAD Currency = "MAD" // Moroccan Dirham
	GNF Currency = "GNF" // Guinean Franc
)

// String returns the ISO code
func (c Currency) String() string {
	return string(c)
}
