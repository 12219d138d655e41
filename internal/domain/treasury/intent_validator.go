package treasury

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tresoria/backend/internal/domain/shared/valueobject"
)

// settlementTolerance is the absolute tolerance within which a payment
// counts as an exact invoice settlement
var settlementTolerance = decimal.NewFromFloat(0.01)

// RuleViolation is one broken business rule, carrying a stable code and a
// human-readable message
type RuleViolation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of running the payment-intent rules.
// Every violated rule is reported; none is ever dropped.
type ValidationResult struct {
	Valid      bool            `json:"valid"`
	Violations []RuleViolation `json:"violations,omitempty"`
}

// Messages returns the violation messages in order
func (r ValidationResult) Messages() []string {
	msgs := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		msgs = append(msgs, v.Message)
	}
	return msgs
}

func validResult() ValidationResult {
	return ValidationResult{Valid: true}
}

func invalidResult(violations ...RuleViolation) ValidationResult {
	return ValidationResult{Valid: false, Violations: violations}
}

// PaymentTypeValidator enforces the business rule matching the sheet's
// declared payment intent. It is pure and callable at any time to surface
// guidance; the state machine uses it as a hard gate before the submit and
// validate transitions.
type PaymentTypeValidator struct {
	calculator *AllocationCalculator
	formatter  *valueobject.Formatter
}

// NewPaymentTypeValidator creates a new PaymentTypeValidator
func NewPaymentTypeValidator() *PaymentTypeValidator {
	return &PaymentTypeValidator{
		calculator: NewAllocationCalculator(),
		formatter:  valueobject.NewFormatter(),
	}
}

// Validate reconciles the paid amount against the linked invoices according
// to the payment intent. Unknown intents pass through as valid so that new
// backend intents do not brick existing drafts.
func (v *PaymentTypeValidator) Validate(sheet *ReceiptSheet) ValidationResult {
	switch sheet.PaymentIntent {
	case PaymentIntentAdvance:
		return v.validateAdvance(sheet)
	case PaymentIntentPartial:
		return v.validatePartial(sheet)
	case PaymentIntentSettlement:
		return v.validateSettlement(sheet)
	}
	return validResult()
}

func (v *PaymentTypeValidator) validateAdvance(sheet *ReceiptSheet) ValidationResult {
	if len(sheet.LinkedInvoices) > 0 {
		return invalidResult(RuleViolation{
			Code:    "ADVANCE_WITH_INVOICES",
			Message: "An advance must not be linked to invoices",
		})
	}
	return validResult()
}

func (v *PaymentTypeValidator) validatePartial(sheet *ReceiptSheet) ValidationResult {
	var violations []RuleViolation
	if len(sheet.LinkedInvoices) == 0 {
		violations = append(violations, RuleViolation{
			Code:    "PARTIAL_WITHOUT_INVOICE",
			Message: "A partial settlement (acompte) requires at least one linked invoice",
		})
	} else if totalDue := v.calculator.TotalDue(sheet.LinkedInvoices); sheet.AmountPaid.GreaterThanOrEqual(totalDue) {
		violations = append(violations, RuleViolation{
			Code: "PARTIAL_NOT_BELOW_TOTAL",
			Message: fmt.Sprintf("Amount paid must be strictly less than the total due of %s",
				v.formatter.FormatWithSymbol(totalDue, sheet.Currency.Symbol)),
		})
	}
	if len(violations) > 0 {
		return invalidResult(violations...)
	}
	return validResult()
}

func (v *PaymentTypeValidator) validateSettlement(sheet *ReceiptSheet) ValidationResult {
	if len(sheet.LinkedInvoices) == 0 {
		return invalidResult(RuleViolation{
			Code:    "SETTLEMENT_WITHOUT_INVOICE",
			Message: "An invoice settlement requires at least one linked invoice",
		})
	}
	totalDue := v.calculator.TotalDue(sheet.LinkedInvoices)
	if sheet.AmountPaid.Sub(totalDue).Abs().GreaterThan(settlementTolerance) {
		return invalidResult(RuleViolation{
			Code: "SETTLEMENT_AMOUNT_MISMATCH",
			Message: fmt.Sprintf("Amount paid must match the invoiced total (expected %s)",
				v.formatter.FormatWithSymbol(totalDue, sheet.Currency.Symbol)),
		})
	}
	return validResult()
}
