package treasury

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tresoria/backend/internal/domain/shared"
)

// AllocationCalculator derives totals, balances and per-invoice coverage
// from a sheet's linked invoices, and owns the link/unlink operations
// including the downward clamp of the paid amount.
type AllocationCalculator struct{}

// NewAllocationCalculator creates a new AllocationCalculator
func NewAllocationCalculator() *AllocationCalculator {
	return &AllocationCalculator{}
}

// TotalDue returns the sum of the linked invoices' total amounts.
// An empty set sums to zero.
func (c *AllocationCalculator) TotalDue(invoices []InvoiceLink) decimal.Decimal {
	total := decimal.Zero
	for _, link := range invoices {
		total = total.Add(link.TotalAmount)
	}
	return total
}

// Balance returns total due minus the paid amount. Negative means
// overpayment, zero means fully settled, positive means remainder owed.
func (c *AllocationCalculator) Balance(invoices []InvoiceLink, amountPaid decimal.Decimal) decimal.Decimal {
	return c.TotalDue(invoices).Sub(amountPaid)
}

// CanLink checks whether an invoice can still receive an allocation.
// Paid invoices and invoices without outstanding balance are not linkable.
func (c *AllocationCalculator) CanLink(inv InvoiceSummary) error {
	if inv.Status == InvoiceStatusPaid {
		return shared.NewValidationError("INVOICE_NOT_LINKABLE",
			fmt.Sprintf("Invoice %s is already paid", inv.Number))
	}
	if inv.Status == InvoiceStatusCancelled {
		return shared.NewValidationError("INVOICE_NOT_LINKABLE",
			fmt.Sprintf("Invoice %s has been cancelled", inv.Number))
	}
	if !inv.OutstandingBalance.IsPositive() {
		return shared.NewValidationError("INVOICE_NOT_LINKABLE",
			fmt.Sprintf("Invoice %s has no outstanding balance", inv.Number))
	}
	return nil
}

// AddInvoice links an invoice to the sheet. The operation is idempotent by
// invoice id; on any basket change the paid amount is clamped down to the
// new total due, never raised. The sheet is left untouched when the invoice
// is not linkable.
func (c *AllocationCalculator) AddInvoice(sheet *ReceiptSheet, inv InvoiceSummary) error {
	if err := c.CanLink(inv); err != nil {
		return err
	}
	return sheet.linkInvoice(inv)
}

// RemoveInvoice detaches an invoice by id and reapplies the clamp
func (c *AllocationCalculator) RemoveInvoice(sheet *ReceiptSheet, invoiceID uuid.UUID) error {
	return sheet.unlinkInvoice(invoiceID)
}

// InvoiceCoverage describes how much of the paid amount covers one invoice
type InvoiceCoverage struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Number    string          `json:"number"`
	Allocated decimal.Decimal `json:"allocated"`
	Remaining decimal.Decimal `json:"remaining"`
	Settled   bool            `json:"settled"`
}

// Coverage spreads the paid amount over the linked invoices in link order
// and reports per-invoice allocation for the summary view
func (c *AllocationCalculator) Coverage(invoices []InvoiceLink, amountPaid decimal.Decimal) []InvoiceCoverage {
	coverage := make([]InvoiceCoverage, 0, len(invoices))
	remaining := amountPaid
	for _, link := range invoices {
		allocated := decimal.Min(remaining, link.TotalAmount)
		if allocated.IsNegative() {
			allocated = decimal.Zero
		}
		coverage = append(coverage, InvoiceCoverage{
			InvoiceID: link.InvoiceID,
			Number:    link.Number,
			Allocated: allocated,
			Remaining: link.TotalAmount.Sub(allocated),
			Settled:   allocated.Equal(link.TotalAmount),
		})
		remaining = remaining.Sub(allocated)
	}
	return coverage
}
