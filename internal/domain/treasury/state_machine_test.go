package treasury

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tresoria/backend/internal/domain/shared"
)

func newStateMachine() *StateMachine {
	return NewStateMachine(NewPaymentTypeValidator())
}

// submittableSheet returns a persisted draft that passes all submit guards
func submittableSheet(t *testing.T) *ReceiptSheet {
	t.Helper()
	sheet := newTestSheet(t, PaymentIntentAdvance)
	fillRequiredFields(t, sheet)
	sheet.ID = uuid.New()
	return sheet
}

func TestStateMachine_GuardSubmit(t *testing.T) {
	machine := newStateMachine()

	t.Run("passes on a complete saved draft", func(t *testing.T) {
		assert.NoError(t, machine.GuardSubmit(submittableSheet(t)))
	})

	t.Run("requires a saved sheet", func(t *testing.T) {
		sheet := newTestSheet(t, PaymentIntentAdvance)
		fillRequiredFields(t, sheet)
		err := machine.GuardSubmit(sheet)
		assert.Equal(t, "NOT_SAVED", shared.CodeOf(err))
	})

	t.Run("requires all payload fields", func(t *testing.T) {
		sheet := newTestSheet(t, PaymentIntentAdvance)
		sheet.ID = uuid.New()
		err := machine.GuardSubmit(sheet)
		assert.Equal(t, "MISSING_REQUIRED_FIELDS", shared.CodeOf(err))
	})

	t.Run("payment rules are a hard gate", func(t *testing.T) {
		sheet := submittableSheet(t)
		require.NoError(t, NewAllocationCalculator().AddInvoice(sheet, testInvoice("F-001", 1000)))
		err := machine.GuardSubmit(sheet)
		require.Error(t, err)
		assert.Equal(t, "PAYMENT_RULES_FAILED", shared.CodeOf(err))
		assert.True(t, shared.IsValidationError(err))
	})

	t.Run("already submitted", func(t *testing.T) {
		sheet := submittableSheet(t)
		sheet.Status = SheetStatusPendingValidation
		err := machine.GuardSubmit(sheet)
		assert.Equal(t, "ALREADY_SUBMITTED", shared.CodeOf(err))
	})

	t.Run("terminal states are distinguishable", func(t *testing.T) {
		tests := []struct {
			status SheetStatus
			code   string
		}{
			{SheetStatusValidated, "ALREADY_VALIDATED"},
			{SheetStatusRejected, "SHEET_REJECTED"},
			{SheetStatusCancelled, "SHEET_CANCELLED"},
			{SheetStatusReconciled, "SHEET_RECONCILED"},
		}
		for _, tt := range tests {
			sheet := submittableSheet(t)
			sheet.Status = tt.status
			err := machine.GuardSubmit(sheet)
			assert.Equal(t, tt.code, shared.CodeOf(err), tt.status)
			assert.True(t, shared.IsGuardError(err), tt.status)
		}
	})
}

func TestStateMachine_GuardValidate(t *testing.T) {
	machine := newStateMachine()
	elevated := Capabilities{CanValidate: true}

	pendingSheet := func(t *testing.T) *ReceiptSheet {
		sheet := submittableSheet(t)
		sheet.Status = SheetStatusPendingValidation
		return sheet
	}

	t.Run("passes with the validate capability", func(t *testing.T) {
		assert.NoError(t, machine.GuardValidate(pendingSheet(t), elevated))
	})

	t.Run("missing capability is a guard error, not a status change", func(t *testing.T) {
		sheet := pendingSheet(t)
		err := machine.GuardValidate(sheet, Capabilities{})
		require.Error(t, err)
		assert.Equal(t, "PERMISSION_DENIED", shared.CodeOf(err))
		assert.True(t, shared.IsGuardError(err))
		assert.Equal(t, SheetStatusPendingValidation, sheet.Status)
	})

	t.Run("already validated is reported distinctly", func(t *testing.T) {
		sheet := pendingSheet(t)
		sheet.Status = SheetStatusValidated
		err := machine.GuardValidate(sheet, elevated)
		require.Error(t, err)
		assert.Equal(t, "ALREADY_VALIDATED", shared.CodeOf(err))
		assert.Contains(t, err.Error(), "already validated")
	})

	t.Run("rejected and cancelled and reconciled are distinguishable", func(t *testing.T) {
		for status, code := range map[SheetStatus]string{
			SheetStatusRejected:   "SHEET_REJECTED",
			SheetStatusCancelled:  "SHEET_CANCELLED",
			SheetStatusReconciled: "SHEET_RECONCILED",
		} {
			sheet := pendingSheet(t)
			sheet.Status = status
			err := machine.GuardValidate(sheet, elevated)
			assert.Equal(t, code, shared.CodeOf(err), status)
		}
	})

	t.Run("draft must be submitted first", func(t *testing.T) {
		sheet := submittableSheet(t)
		err := machine.GuardValidate(sheet, elevated)
		assert.Equal(t, "NOT_SUBMITTED", shared.CodeOf(err))
	})

	t.Run("check payment without reference is blocked", func(t *testing.T) {
		// paymentMethod=check, no check reference: validation is refused
		sheet := pendingSheet(t)
		sheet.PaymentMethod = PaymentMethodCheck
		sheet.PaymentRefs = PaymentReferences{}
		err := machine.GuardValidate(sheet, elevated)
		require.Error(t, err)
		assert.Equal(t, "CHECK_REFERENCE_REQUIRED", shared.CodeOf(err))
		assert.True(t, shared.IsGuardError(err))
	})

	t.Run("check payment with reference passes", func(t *testing.T) {
		sheet := pendingSheet(t)
		sheet.PaymentMethod = PaymentMethodCheck
		sheet.PaymentRefs = PaymentReferences{CheckNumber: "CHQ-100"}
		assert.NoError(t, machine.GuardValidate(sheet, elevated))
	})

	t.Run("payment rules gate validation too", func(t *testing.T) {
		sheet := pendingSheet(t)
		sheet.LinkedInvoices = []InvoiceLink{NewInvoiceLink(testInvoice("F-001", 100))}
		err := machine.GuardValidate(sheet, elevated)
		assert.Equal(t, "PAYMENT_RULES_FAILED", shared.CodeOf(err))
	})
}

func TestStateMachine_GuardReject(t *testing.T) {
	machine := newStateMachine()

	sheet := submittableSheet(t)
	sheet.Status = SheetStatusPendingValidation

	assert.NoError(t, machine.GuardReject(sheet, "supporting documents missing"))

	err := machine.GuardReject(sheet, "   ")
	assert.Equal(t, "MISSING_REJECTION_REASON", shared.CodeOf(err))

	sheet.Status = SheetStatusDraft
	err = machine.GuardReject(sheet, "reason")
	assert.Equal(t, "NOT_SUBMITTED", shared.CodeOf(err))

	sheet.Status = SheetStatusValidated
	err = machine.GuardReject(sheet, "reason")
	assert.Equal(t, "ALREADY_VALIDATED", shared.CodeOf(err))
}

func TestStateMachine_GuardCancel(t *testing.T) {
	machine := newStateMachine()

	sheet := submittableSheet(t)
	assert.NoError(t, machine.GuardCancel(sheet))

	sheet.Status = SheetStatusPendingValidation
	err := machine.GuardCancel(sheet)
	assert.Equal(t, "SHEET_PENDING_VALIDATION", shared.CodeOf(err))

	sheet.Status = SheetStatusCancelled
	err = machine.GuardCancel(sheet)
	assert.Equal(t, "SHEET_CANCELLED", shared.CodeOf(err))
}

func TestStateMachine_GuardEdit(t *testing.T) {
	machine := newStateMachine()

	sheet := newTestSheet(t, PaymentIntentAdvance)
	assert.NoError(t, machine.GuardEdit(sheet, Capabilities{}))

	sheet.Status = SheetStatusValidated
	err := machine.GuardEdit(sheet, Capabilities{})
	assert.Equal(t, "PERMISSION_DENIED", shared.CodeOf(err))
	assert.NoError(t, machine.GuardEdit(sheet, Capabilities{CanEditLockedStates: true}))

	sheet.Status = SheetStatusReconciled
	err = machine.GuardEdit(sheet, Capabilities{CanEditLockedStates: true})
	assert.Equal(t, "SHEET_RECONCILED", shared.CodeOf(err))
}

func TestStateMachine_GuardSave(t *testing.T) {
	machine := newStateMachine()

	sheet := newTestSheet(t, PaymentIntentAdvance)
	err := machine.GuardSave(sheet, Capabilities{})
	assert.Equal(t, "MISSING_REQUIRED_FIELDS", shared.CodeOf(err))

	fillRequiredFields(t, sheet)
	assert.NoError(t, machine.GuardSave(sheet, Capabilities{}))

	// Saving keeps the status untouched; the guard only checks fields
	require.NoError(t, sheet.SetAmountPaid(decimal.NewFromInt(120)))
	assert.Equal(t, SheetStatusDraft, sheet.Status)
}
