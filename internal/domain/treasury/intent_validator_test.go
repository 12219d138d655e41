package treasury

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentTypeValidator_Advance(t *testing.T) {
	validator := NewPaymentTypeValidator()
	calc := NewAllocationCalculator()

	sheet := newTestSheet(t, PaymentIntentAdvance)
	assert.True(t, validator.Validate(sheet).Valid)

	// An invoice linked by mistake invalidates the advance
	require.NoError(t, calc.AddInvoice(sheet, testInvoice("F-001", 100)))
	result := validator.Validate(sheet)
	require.False(t, result.Valid)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, "ADVANCE_WITH_INVOICES", result.Violations[0].Code)
	assert.Contains(t, result.Violations[0].Message, "must not be linked to invoices")
}

func TestPaymentTypeValidator_Partial(t *testing.T) {
	validator := NewPaymentTypeValidator()
	calc := NewAllocationCalculator()

	t.Run("requires at least one invoice", func(t *testing.T) {
		sheet := newTestSheet(t, PaymentIntentPartial)
		result := validator.Validate(sheet)
		require.False(t, result.Valid)
		assert.Equal(t, "PARTIAL_WITHOUT_INVOICE", result.Violations[0].Code)
	})

	t.Run("amount below total is valid", func(t *testing.T) {
		sheet := newTestSheet(t, PaymentIntentPartial)
		require.NoError(t, calc.AddInvoice(sheet, testInvoice("F-001", 1000)))
		require.NoError(t, sheet.SetAmountPaid(decimal.NewFromInt(400)))
		assert.True(t, validator.Validate(sheet).Valid)
	})

	t.Run("amount equal to total is rejected", func(t *testing.T) {
		sheet := newTestSheet(t, PaymentIntentPartial)
		require.NoError(t, calc.AddInvoice(sheet, testInvoice("F-001", 1000)))
		require.NoError(t, sheet.SetAmountPaid(decimal.NewFromInt(1000)))
		result := validator.Validate(sheet)
		require.False(t, result.Valid)
		assert.Equal(t, "PARTIAL_NOT_BELOW_TOTAL", result.Violations[0].Code)
		assert.Contains(t, result.Violations[0].Message, "strictly less")
	})
}

func TestPaymentTypeValidator_Settlement(t *testing.T) {
	validator := NewPaymentTypeValidator()
	calc := NewAllocationCalculator()

	t.Run("requires at least one invoice", func(t *testing.T) {
		sheet := newTestSheet(t, PaymentIntentSettlement)
		result := validator.Validate(sheet)
		require.False(t, result.Valid)
		assert.Equal(t, "SETTLEMENT_WITHOUT_INVOICE", result.Violations[0].Code)
	})

	t.Run("exact amount passes with zero balance", func(t *testing.T) {
		// One linked invoice of 1000.00, paid 1000.00
		sheet := newTestSheet(t, PaymentIntentSettlement)
		require.NoError(t, calc.AddInvoice(sheet, testInvoice("F-001", 1000)))
		require.NoError(t, sheet.SetAmountPaid(decimal.NewFromFloat(1000.00)))

		assert.True(t, validator.Validate(sheet).Valid)
		assert.True(t, calc.Balance(sheet.LinkedInvoices, sheet.AmountPaid).IsZero())
	})

	t.Run("amount within tolerance passes", func(t *testing.T) {
		sheet := newTestSheet(t, PaymentIntentSettlement)
		require.NoError(t, calc.AddInvoice(sheet, testInvoice("F-001", 1000)))
		require.NoError(t, sheet.SetAmountPaid(decimal.NewFromFloat(999.99)))
		assert.True(t, validator.Validate(sheet).Valid)
	})

	t.Run("mismatch echoes the expected total", func(t *testing.T) {
		// Paid 999.00 against a 1000.00 invoice: the failure message
		// carries the expected total in screen format.
		sheet := newTestSheet(t, PaymentIntentSettlement)
		require.NoError(t, calc.AddInvoice(sheet, testInvoice("F-001", 1000)))
		require.NoError(t, sheet.SetAmountPaid(decimal.NewFromFloat(999.00)))

		result := validator.Validate(sheet)
		require.False(t, result.Valid)
		require.Len(t, result.Violations, 1)
		assert.Equal(t, "SETTLEMENT_AMOUNT_MISMATCH", result.Violations[0].Code)
		assert.Contains(t, result.Violations[0].Message, "1 000,00")
	})
}

func TestPaymentTypeValidator_UnknownIntentPasses(t *testing.T) {
	sheet := newTestSheet(t, PaymentIntentAdvance)
	sheet.PaymentIntent = PaymentIntent("future_intent")

	assert.True(t, NewPaymentTypeValidator().Validate(sheet).Valid)
}

func TestValidationResult_Messages(t *testing.T) {
	result := invalidResult(
		RuleViolation{Code: "A", Message: "first"},
		RuleViolation{Code: "B", Message: "second"},
	)
	assert.Equal(t, []string{"first", "second"}, result.Messages())
	assert.Empty(t, validResult().Messages())
}
