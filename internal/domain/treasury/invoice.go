package treasury

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the settlement status of an invoice as reported
// by the treasury backend
type InvoiceStatus string

const (
	InvoiceStatusOpen          InvoiceStatus = "open"           // Nothing allocated yet
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid" // Some amount allocated
	InvoiceStatusPaid          InvoiceStatus = "paid"           // Fully settled
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"      // Voided upstream
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusOpen, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// InvoiceSummary is the read model returned by the backend when listing
// invoices that can still receive an allocation
type InvoiceSummary struct {
	ID                 uuid.UUID       `json:"id"`
	Number             string          `json:"number"`
	ThirdPartyCode     string          `json:"third_party_code"`
	ThirdPartyName     string          `json:"third_party_name"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	Status             InvoiceStatus   `json:"status"`
	DueDate            *time.Time      `json:"due_date,omitempty"`
}

// InvoiceLink records an invoice attached to a receipt sheet, frozen at the
// amounts known when the link was made
type InvoiceLink struct {
	InvoiceID         uuid.UUID       `json:"invoice_id"`
	Number            string          `json:"number"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	OutstandingAtLink decimal.Decimal `json:"outstanding_at_link"`
	LinkedAt          time.Time       `json:"linked_at"`
}

// NewInvoiceLink freezes an invoice summary into a link record
func NewInvoiceLink(inv InvoiceSummary) InvoiceLink {
	return InvoiceLink{
		InvoiceID:         inv.ID,
		Number:            inv.Number,
		TotalAmount:       inv.TotalAmount,
		OutstandingAtLink: inv.OutstandingBalance,
		LinkedAt:          time.Now(),
	}
}
