package treasury

import "github.com/google/uuid"

// PayerType classifies who the receipt was collected from
type PayerType string

const (
	PayerTypeCustomer PayerType = "customer"
	PayerTypeSupplier PayerType = "supplier"
	PayerTypeEmployee PayerType = "employee"
	PayerTypeOther    PayerType = "other"
)

// IsValid checks if the payer type is valid
func (t PayerType) IsValid() bool {
	switch t {
	case PayerTypeCustomer, PayerTypeSupplier, PayerTypeEmployee, PayerTypeOther:
		return true
	}
	return false
}

// String returns the string representation of PayerType
func (t PayerType) String() string {
	return string(t)
}

// ThirdPartySummary is the read model returned by the backend when listing
// third parties a sheet can be attached to
type ThirdPartySummary struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Kind       PayerType `json:"kind"`
	AccountRef string    `json:"account_ref"` // Chart-of-accounts reference
}
