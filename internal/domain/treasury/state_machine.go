package treasury

import (
	"strings"

	"github.com/tresoria/backend/internal/domain/shared"
)

// Capabilities are the explicit permission flags gating mutations. They are
// produced by the authentication collaborator and injected per call; the
// core never reads ambient session state.
type Capabilities struct {
	CanValidate         bool `json:"can_validate"`          // May perform the validate transition
	CanEditLockedStates bool `json:"can_edit_locked_state"` // May edit a validated sheet
}

// StateMachine owns the legal transitions of a receipt sheet and the guards
// each of them requires. Guards are checked locally before any backend call
// and fail with distinguishable errors so callers can explain the refusal.
type StateMachine struct {
	validator *PaymentTypeValidator
}

// NewStateMachine creates a new StateMachine
func NewStateMachine(validator *PaymentTypeValidator) *StateMachine {
	return &StateMachine{validator: validator}
}

// transitionBlockedError produces a per-status guard error so "already
// validated" can be told apart from "rejected" or "reconciled"
func transitionBlockedError(status SheetStatus, action string) *shared.DomainError {
	switch status {
	case SheetStatusValidated:
		return shared.NewGuardError("ALREADY_VALIDATED", "Sheet is already validated")
	case SheetStatusRejected:
		return shared.NewGuardError("SHEET_REJECTED", "Sheet was rejected and can no longer be "+action+"d")
	case SheetStatusCancelled:
		return shared.NewGuardError("SHEET_CANCELLED", "Sheet was cancelled and can no longer be "+action+"d")
	case SheetStatusReconciled:
		return shared.NewGuardError("SHEET_RECONCILED", "Sheet has been reconciled and is closed")
	}
	return shared.NewGuardError("INVALID_STATE", "Sheet cannot be "+action+"d in status "+status.String())
}

// GuardEdit checks whether the sheet's fields may be mutated by an actor
// with the given capabilities. Drafts are always editable; validated sheets
// only with elevated permission; terminal states never.
func (m *StateMachine) GuardEdit(sheet *ReceiptSheet, caps Capabilities) error {
	switch sheet.Status {
	case SheetStatusDraft:
		return nil
	case SheetStatusValidated:
		if !caps.CanEditLockedStates {
			return shared.NewGuardError("PERMISSION_DENIED", "Editing a validated sheet requires elevated permission")
		}
		return nil
	case SheetStatusPendingValidation:
		return shared.NewGuardError("SHEET_PENDING_VALIDATION", "Sheet is awaiting validation and cannot be edited")
	}
	return transitionBlockedError(sheet.Status, "edit")
}

// GuardSave checks the save operation: editability plus the required-field
// check the backend enforces on every payload. Save never changes status.
func (m *StateMachine) GuardSave(sheet *ReceiptSheet, caps Capabilities) error {
	if err := m.GuardEdit(sheet, caps); err != nil {
		return err
	}
	if missing := sheet.MissingRequiredFields(); len(missing) > 0 {
		return shared.NewGuardError("MISSING_REQUIRED_FIELDS",
			"Required fields are missing: "+strings.Join(missing, ", "))
	}
	return nil
}

// GuardSubmit checks the draft -> pending_validation transition: the sheet
// must have been saved already, all required fields must be present, and
// the payment-intent rules must pass.
func (m *StateMachine) GuardSubmit(sheet *ReceiptSheet) error {
	if !sheet.Status.CanSubmit() {
		if sheet.Status == SheetStatusPendingValidation {
			return shared.NewGuardError("ALREADY_SUBMITTED", "Sheet has already been submitted")
		}
		return transitionBlockedError(sheet.Status, "submit")
	}
	if !sheet.IsPersisted() {
		return shared.NewGuardError("NOT_SAVED", "Sheet must be saved before it can be submitted")
	}
	if missing := sheet.MissingRequiredFields(); len(missing) > 0 {
		return shared.NewGuardError("MISSING_REQUIRED_FIELDS",
			"Required fields are missing: "+strings.Join(missing, ", "))
	}
	if result := m.validator.Validate(sheet); !result.Valid {
		return shared.NewValidationError("PAYMENT_RULES_FAILED",
			strings.Join(result.Messages(), "; "))
	}
	return nil
}

// GuardValidate checks the pending_validation -> validated transition: the
// actor must hold the validate capability, the payment-intent rules must
// pass, and a check payment needs its check reference.
func (m *StateMachine) GuardValidate(sheet *ReceiptSheet, caps Capabilities) error {
	if !sheet.Status.CanValidate() {
		if sheet.Status == SheetStatusDraft {
			return shared.NewGuardError("NOT_SUBMITTED", "Sheet must be submitted before it can be validated")
		}
		return transitionBlockedError(sheet.Status, "validate")
	}
	if !caps.CanValidate {
		return shared.NewGuardError("PERMISSION_DENIED", "Validating a sheet requires the validate permission")
	}
	if result := m.validator.Validate(sheet); !result.Valid {
		return shared.NewValidationError("PAYMENT_RULES_FAILED",
			strings.Join(result.Messages(), "; "))
	}
	if sheet.PaymentMethod == PaymentMethodCheck && sheet.CheckReference() == "" {
		return shared.NewGuardError("CHECK_REFERENCE_REQUIRED", "A check reference is required before validation")
	}
	return nil
}

// GuardReject checks the pending_validation -> rejected transition. A
// non-blank reason is mandatory and is stored on the sheet.
func (m *StateMachine) GuardReject(sheet *ReceiptSheet, reason string) error {
	if !sheet.Status.CanReject() {
		if sheet.Status == SheetStatusDraft {
			return shared.NewGuardError("NOT_SUBMITTED", "Only a submitted sheet can be rejected")
		}
		return transitionBlockedError(sheet.Status, "reject")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewGuardError("MISSING_REJECTION_REASON", "A rejection reason is required")
	}
	return nil
}

// GuardCancel checks the draft -> cancelled transition. Only drafts can be
// cancelled; everything later goes through reject or reconciliation.
func (m *StateMachine) GuardCancel(sheet *ReceiptSheet) error {
	if !sheet.Status.CanCancel() {
		if sheet.Status == SheetStatusPendingValidation {
			return shared.NewGuardError("SHEET_PENDING_VALIDATION", "A submitted sheet can no longer be cancelled")
		}
		return transitionBlockedError(sheet.Status, "cancel")
	}
	return nil
}
