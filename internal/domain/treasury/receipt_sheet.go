package treasury

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tresoria/backend/internal/domain/shared"
	"github.com/tresoria/backend/internal/domain/shared/valueobject"
)

// SheetStatus represents the lifecycle status of a receipt sheet
type SheetStatus string

const (
	SheetStatusDraft             SheetStatus = "draft"              // Editable, possibly not yet saved
	SheetStatusPendingValidation SheetStatus = "pending_validation" // Submitted, waiting for a validator
	SheetStatusValidated         SheetStatus = "validated"          // Approved; editable only with elevated permission
	SheetStatusRejected          SheetStatus = "rejected"           // Refused with a reason
	SheetStatusCancelled         SheetStatus = "cancelled"          // Abandoned while still draft
	SheetStatusReconciled        SheetStatus = "reconciled"         // Matched against a bank statement line
)

// IsValid checks if the status is a valid SheetStatus
func (s SheetStatus) IsValid() bool {
	switch s {
	case SheetStatusDraft, SheetStatusPendingValidation, SheetStatusValidated,
		SheetStatusRejected, SheetStatusCancelled, SheetStatusReconciled:
		return true
	}
	return false
}

// String returns the string representation of SheetStatus
func (s SheetStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is allowed from this status
func (s SheetStatus) IsTerminal() bool {
	return s == SheetStatusRejected || s == SheetStatusCancelled || s == SheetStatusReconciled
}

// CanSubmit returns true if the sheet can be submitted for validation
func (s SheetStatus) CanSubmit() bool {
	return s == SheetStatusDraft
}

// CanValidate returns true if the validate transition is reachable
func (s SheetStatus) CanValidate() bool {
	return s == SheetStatusPendingValidation
}

// CanReject returns true if the reject transition is reachable
func (s SheetStatus) CanReject() bool {
	return s == SheetStatusPendingValidation
}

// CanCancel returns true if the sheet can still be cancelled
func (s SheetStatus) CanCancel() bool {
	return s == SheetStatusDraft
}

// PaymentIntent declares the purpose of the payment, fixed at draft time
type PaymentIntent string

const (
	PaymentIntentAdvance    PaymentIntent = "advance"            // Unlinked prepayment (avance)
	PaymentIntentPartial    PaymentIntent = "partial"            // Partial settlement (acompte)
	PaymentIntentSettlement PaymentIntent = "invoice_settlement" // Exact invoice settlement (facture)
)

// IsValid checks if the payment intent is valid
func (i PaymentIntent) IsValid() bool {
	switch i {
	case PaymentIntentAdvance, PaymentIntentPartial, PaymentIntentSettlement:
		return true
	}
	return false
}

// String returns the string representation of PaymentIntent
func (i PaymentIntent) String() string {
	return string(i)
}

// PaymentMethod represents how the payment was received
type PaymentMethod string

const (
	PaymentMethodCheck       PaymentMethod = "check"
	PaymentMethodTransfer    PaymentMethod = "transfer"
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodDirectDebit PaymentMethod = "direct_debit"
	PaymentMethodOther       PaymentMethod = "other"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCheck, PaymentMethodTransfer, PaymentMethodCash,
		PaymentMethodMobileMoney, PaymentMethodCard, PaymentMethodDirectDebit, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// HasReference returns true if the method carries a method-specific reference
func (m PaymentMethod) HasReference() bool {
	return m != PaymentMethodCash
}

// PaymentReferences holds the method-specific reference fields. At most one
// may be populated, and it must be the one matching the sheet's payment
// method.
type PaymentReferences struct {
	CheckNumber    string `json:"check_number,omitempty"`
	TransferRef    string `json:"transfer_ref,omitempty"`
	MobileMoneyRef string `json:"mobile_money_ref,omitempty"`
	CardRef        string `json:"card_ref,omitempty"`
	DirectDebitRef string `json:"direct_debit_ref,omitempty"`
	OtherRef       string `json:"other_ref,omitempty"`
}

// ForMethod returns the reference carried for the given method
func (r PaymentReferences) ForMethod(m PaymentMethod) string {
	switch m {
	case PaymentMethodCheck:
		return r.CheckNumber
	case PaymentMethodTransfer:
		return r.TransferRef
	case PaymentMethodMobileMoney:
		return r.MobileMoneyRef
	case PaymentMethodCard:
		return r.CardRef
	case PaymentMethodDirectDebit:
		return r.DirectDebitRef
	case PaymentMethodOther:
		return r.OtherRef
	}
	return ""
}

// populated returns the non-empty reference fields
func (r PaymentReferences) populated() []PaymentMethod {
	var methods []PaymentMethod
	if r.CheckNumber != "" {
		methods = append(methods, PaymentMethodCheck)
	}
	if r.TransferRef != "" {
		methods = append(methods, PaymentMethodTransfer)
	}
	if r.MobileMoneyRef != "" {
		methods = append(methods, PaymentMethodMobileMoney)
	}
	if r.CardRef != "" {
		methods = append(methods, PaymentMethodCard)
	}
	if r.DirectDebitRef != "" {
		methods = append(methods, PaymentMethodDirectDebit)
	}
	if r.OtherRef != "" {
		methods = append(methods, PaymentMethodOther)
	}
	return methods
}

// Validate checks that at most one reference is populated and that it
// matches the given payment method
func (r PaymentReferences) Validate(m PaymentMethod) error {
	populated := r.populated()
	if len(populated) == 0 {
		return nil
	}
	if len(populated) > 1 {
		return shared.NewValidationError("AMBIGUOUS_PAYMENT_REFERENCE", "Only one payment reference may be provided")
	}
	if populated[0] != m {
		return shared.NewValidationError("PAYMENT_REFERENCE_MISMATCH",
			fmt.Sprintf("Payment reference is set for %s but the payment method is %s", populated[0], m))
	}
	return nil
}

// CompanyCurrency is the currency resolved from the owning company's
// settings when the sheet is created
type CompanyCurrency struct {
	ID     uuid.UUID           `json:"id"`
	Code   valueobject.Currency `json:"code"`
	Symbol string              `json:"symbol"`
}

// IsZero reports whether no currency has been resolved
func (c CompanyCurrency) IsZero() bool {
	return c.ID == uuid.Nil && c.Code == ""
}

// TreasuryAccount references the cash/bank account credited by the sheet
type TreasuryAccount struct {
	ID       uuid.UUID           `json:"id"`
	Label    string              `json:"label"`
	Currency valueobject.Currency `json:"currency"`
}

// CurrencyWarning is surfaced, never fatal, when a treasury account's
// currency differs from the sheet's currency
type CurrencyWarning struct {
	SheetCurrency   valueobject.Currency `json:"sheet_currency"`
	AccountCurrency valueobject.Currency `json:"account_currency"`
	Message         string               `json:"message"`
}

// ReceiptSheet is the aggregate root recording a single cash/check/transfer
// receipt and the invoices it pays down. It is created in memory as a draft
// and gains its identity from the backend on first save.
type ReceiptSheet struct {
	shared.CompanyAggregateRoot
	SheetNumber          string            `json:"sheet_number"` // Assigned by the backend
	Status               SheetStatus       `json:"status"`
	PaymentIntent        PaymentIntent     `json:"payment_intent"`
	PaymentMethod        PaymentMethod     `json:"payment_method"`
	PaymentRefs          PaymentReferences `json:"payment_refs"`
	EncashmentDate       time.Time         `json:"encashment_date"`
	PayerType            PayerType         `json:"payer_type"`
	PayerCode            string            `json:"payer_code"`
	PayerName            string            `json:"payer_name"`
	PayerAccountID       uuid.UUID         `json:"payer_account_id"` // Chart-of-accounts reference
	ThirdPartyID         *uuid.UUID        `json:"third_party_id,omitempty"`
	TreasuryAccount      TreasuryAccount   `json:"treasury_account"`
	Currency             CompanyCurrency   `json:"currency"` // Immutable after creation
	LinkedInvoices       []InvoiceLink     `json:"linked_invoices"`
	AmountPaid           decimal.Decimal   `json:"amount_paid"`
	RejectionReason      string            `json:"rejection_reason,omitempty"`
	ValidatedAt          *time.Time        `json:"validated_at,omitempty"`
	ValidatedBy          *uuid.UUID        `json:"validated_by,omitempty"`
	TreasuryOperationRef string            `json:"treasury_operation_ref,omitempty"`
	Notes                string            `json:"notes,omitempty"`
}

// NewReceiptSheet opens a new draft sheet. The currency comes from the
// owning company's settings and never changes afterward; the payment intent
// is fixed here as well since it drives every later validation.
func NewReceiptSheet(
	companyID uuid.UUID,
	intent PaymentIntent,
	method PaymentMethod,
	currency CompanyCurrency,
	encashmentDate time.Time,
) (*ReceiptSheet, error) {
	if companyID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_COMPANY", "Company ID cannot be empty")
	}
	if !intent.IsValid() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_INTENT", "Payment intent is not valid")
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_METHOD", "Payment method is not valid")
	}
	if currency.IsZero() {
		return nil, shared.NewValidationError("MISSING_CURRENCY", "Company currency could not be resolved")
	}
	if encashmentDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_ENCASHMENT_DATE", "Encashment date is required")
	}

	return &ReceiptSheet{
		CompanyAggregateRoot: shared.NewDraftCompanyAggregateRoot(companyID),
		Status:               SheetStatusDraft,
		PaymentIntent:        intent,
		PaymentMethod:        method,
		EncashmentDate:       encashmentDate,
		Currency:             currency,
		LinkedInvoices:       make([]InvoiceLink, 0),
		AmountPaid:           decimal.Zero,
	}, nil
}

// guardEditable rejects mutation in terminal states and in
// pending_validation. Editing a validated sheet requires elevated
// permission, which the state machine checks before any mutator is reached.
func (s *ReceiptSheet) guardEditable() error {
	switch s.Status {
	case SheetStatusDraft, SheetStatusValidated:
		return nil
	case SheetStatusPendingValidation:
		return shared.NewGuardError("SHEET_PENDING_VALIDATION", "Sheet is awaiting validation and cannot be edited")
	}
	return transitionBlockedError(s.Status, "edit")
}

// SetPayer sets the payer identification fields
func (s *ReceiptSheet) SetPayer(payerType PayerType, code, name string, accountID uuid.UUID, thirdPartyID *uuid.UUID) error {
	if err := s.guardEditable(); err != nil {
		return err
	}
	if !payerType.IsValid() {
		return shared.NewValidationError("INVALID_PAYER_TYPE", "Payer type is not valid")
	}
	s.PayerType = payerType
	s.PayerCode = code
	s.PayerName = name
	s.PayerAccountID = accountID
	s.ThirdPartyID = thirdPartyID
	s.touch()
	return nil
}

// SetTreasuryAccount selects the cash/bank account credited by the sheet.
// A currency mismatch with the sheet currency is returned as a warning and
// must be surfaced to the caller; it never blocks the selection.
func (s *ReceiptSheet) SetTreasuryAccount(account TreasuryAccount) (*CurrencyWarning, error) {
	if err := s.guardEditable(); err != nil {
		return nil, err
	}
	if account.ID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_TREASURY_ACCOUNT", "Treasury account is required")
	}
	s.TreasuryAccount = account
	s.touch()

	if account.Currency != "" && account.Currency != s.Currency.Code {
		return &CurrencyWarning{
			SheetCurrency:   s.Currency.Code,
			AccountCurrency: account.Currency,
			Message: fmt.Sprintf("Treasury account %s is held in %s while the sheet is in %s",
				account.Label, account.Currency, s.Currency.Code),
		}, nil
	}
	return nil, nil
}

// SetAmountPaid sets the user-entered payment amount
func (s *ReceiptSheet) SetAmountPaid(amount decimal.Decimal) error {
	if err := s.guardEditable(); err != nil {
		return err
	}
	if amount.IsNegative() {
		return shared.NewValidationError("INVALID_AMOUNT", "Amount paid cannot be negative")
	}
	s.AmountPaid = amount
	s.touch()
	return nil
}

// SetPaymentMethod changes the payment method and its reference fields
func (s *ReceiptSheet) SetPaymentMethod(method PaymentMethod, refs PaymentReferences) error {
	if err := s.guardEditable(); err != nil {
		return err
	}
	if !method.IsValid() {
		return shared.NewValidationError("INVALID_PAYMENT_METHOD", "Payment method is not valid")
	}
	if err := refs.Validate(method); err != nil {
		return err
	}
	s.PaymentMethod = method
	s.PaymentRefs = refs
	s.touch()
	return nil
}

// SetEncashmentDate sets the date the payment was received
func (s *ReceiptSheet) SetEncashmentDate(date time.Time) error {
	if err := s.guardEditable(); err != nil {
		return err
	}
	if date.IsZero() {
		return shared.NewValidationError("INVALID_ENCASHMENT_DATE", "Encashment date is required")
	}
	s.EncashmentDate = date
	s.touch()
	return nil
}

// SetNotes sets the free-form notes
func (s *ReceiptSheet) SetNotes(notes string) error {
	if err := s.guardEditable(); err != nil {
		return err
	}
	s.Notes = notes
	s.touch()
	return nil
}

// linkInvoice appends an invoice link. It is a no-op when the invoice is
// already linked, and re-clamps the paid amount afterwards. Callers go
// through AllocationCalculator.AddInvoice which checks linkability first.
func (s *ReceiptSheet) linkInvoice(inv InvoiceSummary) error {
	if err := s.guardEditable(); err != nil {
		return err
	}
	for _, link := range s.LinkedInvoices {
		if link.InvoiceID == inv.ID {
			return nil
		}
	}
	s.LinkedInvoices = append(s.LinkedInvoices, NewInvoiceLink(inv))
	clamped := s.clampAmountPaid()
	s.touch()
	s.AddDomainEvent(NewInvoiceLinkedEvent(s, inv.ID, inv.Number, clamped))
	return nil
}

// unlinkInvoice removes an invoice link by id and re-clamps the paid amount
func (s *ReceiptSheet) unlinkInvoice(invoiceID uuid.UUID) error {
	if err := s.guardEditable(); err != nil {
		return err
	}
	for i, link := range s.LinkedInvoices {
		if link.InvoiceID == invoiceID {
			number := link.Number
			s.LinkedInvoices = append(s.LinkedInvoices[:i], s.LinkedInvoices[i+1:]...)
			clamped := s.clampAmountPaid()
			s.touch()
			s.AddDomainEvent(NewInvoiceUnlinkedEvent(s, invoiceID, number, clamped))
			return nil
		}
	}
	return shared.NewValidationError("INVOICE_NOT_LINKED", "Invoice is not linked to this sheet")
}

// clampAmountPaid lowers the paid amount to the new total due when the
// invoice basket change would otherwise leave a stale over-allocation.
// The amount is never raised. Returns true when a clamp happened.
func (s *ReceiptSheet) clampAmountPaid() bool {
	total := decimal.Zero
	for _, link := range s.LinkedInvoices {
		total = total.Add(link.TotalAmount)
	}
	if s.AmountPaid.GreaterThan(total) {
		s.AmountPaid = total
		return true
	}
	return false
}

// MissingRequiredFields returns the names of the fields the backend
// requires on every save payload. An empty result means the sheet can be
// serialized for create/update.
func (s *ReceiptSheet) MissingRequiredFields() []string {
	var missing []string
	if s.EncashmentDate.IsZero() {
		missing = append(missing, "encashment_date")
	}
	if s.PayerType == "" {
		missing = append(missing, "payer_type")
	}
	if s.PayerCode == "" {
		missing = append(missing, "payer_code")
	}
	if s.PayerName == "" {
		missing = append(missing, "payer_name")
	}
	if !s.PaymentMethod.IsValid() {
		missing = append(missing, "payment_method")
	}
	if !s.AmountPaid.IsPositive() {
		missing = append(missing, "amount_paid")
	}
	if s.PayerAccountID == uuid.Nil {
		missing = append(missing, "payer_account_id")
	}
	if s.TreasuryAccount.ID == uuid.Nil {
		missing = append(missing, "treasury_account_id")
	}
	if s.Currency.IsZero() {
		missing = append(missing, "currency_id")
	}
	if !s.Status.IsValid() {
		missing = append(missing, "status")
	}
	return missing
}

// Transition appliers. Guards live in the state machine; these only record
// the outcome and raise the corresponding domain event.

// MarkSubmitted moves the sheet into pending_validation
func (s *ReceiptSheet) MarkSubmitted() {
	s.Status = SheetStatusPendingValidation
	s.touch()
	s.IncrementVersion()
	s.AddDomainEvent(NewReceiptSheetSubmittedEvent(s))
}

// MarkValidated records a successful validation with the fields returned by
// the backend
func (s *ReceiptSheet) MarkValidated(at time.Time, by uuid.UUID, operationRef string) {
	s.Status = SheetStatusValidated
	s.ValidatedAt = &at
	s.ValidatedBy = &by
	s.TreasuryOperationRef = operationRef
	s.touch()
	s.IncrementVersion()
	s.AddDomainEvent(NewReceiptSheetValidatedEvent(s))
}

// MarkRejected records a rejection with its reason
func (s *ReceiptSheet) MarkRejected(reason string) {
	s.Status = SheetStatusRejected
	s.RejectionReason = reason
	s.touch()
	s.IncrementVersion()
	s.AddDomainEvent(NewReceiptSheetRejectedEvent(s))
}

// MarkCancelled abandons a draft sheet
func (s *ReceiptSheet) MarkCancelled() {
	s.Status = SheetStatusCancelled
	s.touch()
	s.IncrementVersion()
	s.AddDomainEvent(NewReceiptSheetCancelledEvent(s))
}

// ApplyServerState reconciles backend-owned fields into the local model
// after a successful call. The backend is authoritative for identity, sheet
// number, status, audit fields and validation metadata.
func (s *ReceiptSheet) ApplyServerState(remote *ReceiptSheet) {
	firstSave := !s.IsPersisted() && remote.IsPersisted()
	s.ID = remote.ID
	if remote.SheetNumber != "" {
		s.SheetNumber = remote.SheetNumber
	}
	if remote.Status.IsValid() {
		s.Status = remote.Status
	}
	if !remote.CreatedAt.IsZero() {
		s.CreatedAt = remote.CreatedAt
	}
	if remote.CreatedBy != nil {
		s.CreatedBy = remote.CreatedBy
	}
	if !remote.UpdatedAt.IsZero() {
		s.UpdatedAt = remote.UpdatedAt
	}
	if remote.UpdatedBy != nil {
		s.UpdatedBy = remote.UpdatedBy
	}
	if remote.ValidatedAt != nil {
		s.ValidatedAt = remote.ValidatedAt
	}
	if remote.ValidatedBy != nil {
		s.ValidatedBy = remote.ValidatedBy
	}
	if remote.TreasuryOperationRef != "" {
		s.TreasuryOperationRef = remote.TreasuryOperationRef
	}
	if remote.RejectionReason != "" {
		s.RejectionReason = remote.RejectionReason
	}
	if firstSave {
		s.AddDomainEvent(NewReceiptSheetSavedEvent(s))
	}
}

// IsDraft returns true if the sheet is still a draft
func (s *ReceiptSheet) IsDraft() bool {
	return s.Status == SheetStatusDraft
}

// IsValidated returns true if the sheet has been validated
func (s *ReceiptSheet) IsValidated() bool {
	return s.Status == SheetStatusValidated
}

// CheckReference returns the reference carried for the current method
func (s *ReceiptSheet) CheckReference() string {
	return s.PaymentRefs.ForMethod(PaymentMethodCheck)
}

// PaymentReference returns the reference matching the current method
func (s *ReceiptSheet) PaymentReference() string {
	return s.PaymentRefs.ForMethod(s.PaymentMethod)
}

func (s *ReceiptSheet) touch() {
	s.UpdatedAt = time.Now()
}
