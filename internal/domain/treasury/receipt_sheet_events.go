package treasury

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tresoria/backend/internal/domain/shared"
)

// Event type names
const (
	EventReceiptSheetSaved     = "ReceiptSheetSaved"
	EventReceiptSheetSubmitted = "ReceiptSheetSubmitted"
	EventReceiptSheetValidated = "ReceiptSheetValidated"
	EventReceiptSheetRejected  = "ReceiptSheetRejected"
	EventReceiptSheetCancelled = "ReceiptSheetCancelled"
	EventInvoiceLinked         = "ReceiptSheetInvoiceLinked"
	EventInvoiceUnlinked       = "ReceiptSheetInvoiceUnlinked"
	EventHistoryStale          = "ReceiptSheetHistoryStale"

	aggregateTypeReceiptSheet = "ReceiptSheet"
)

// ReceiptSheetSavedEvent is raised when the backend assigns the sheet its
// identity on first save
type ReceiptSheetSavedEvent struct {
	shared.BaseDomainEvent
	SheetID     uuid.UUID       `json:"sheet_id"`
	SheetNumber string          `json:"sheet_number"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	Intent      PaymentIntent   `json:"payment_intent"`
}

// EventType returns the event type name
func (e *ReceiptSheetSavedEvent) EventType() string {
	return EventReceiptSheetSaved
}

// NewReceiptSheetSavedEvent creates a new ReceiptSheetSavedEvent
func NewReceiptSheetSavedEvent(s *ReceiptSheet) *ReceiptSheetSavedEvent {
	return &ReceiptSheetSavedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventReceiptSheetSaved, aggregateTypeReceiptSheet, s.ID, s.CompanyID),
		SheetID:         s.ID,
		SheetNumber:     s.SheetNumber,
		AmountPaid:      s.AmountPaid,
		Intent:          s.PaymentIntent,
	}
}

// ReceiptSheetSubmittedEvent is raised when a draft is submitted for validation
type ReceiptSheetSubmittedEvent struct {
	shared.BaseDomainEvent
	SheetID     uuid.UUID       `json:"sheet_id"`
	SheetNumber string          `json:"sheet_number"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	Intent      PaymentIntent   `json:"payment_intent"`
	Method      PaymentMethod   `json:"payment_method"`
}

// EventType returns the event type name
func (e *ReceiptSheetSubmittedEvent) EventType() string {
	return EventReceiptSheetSubmitted
}

// NewReceiptSheetSubmittedEvent creates a new ReceiptSheetSubmittedEvent
func NewReceiptSheetSubmittedEvent(s *ReceiptSheet) *ReceiptSheetSubmittedEvent {
	return &ReceiptSheetSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventReceiptSheetSubmitted, aggregateTypeReceiptSheet, s.ID, s.CompanyID),
		SheetID:         s.ID,
		SheetNumber:     s.SheetNumber,
		AmountPaid:      s.AmountPaid,
		Intent:          s.PaymentIntent,
		Method:          s.PaymentMethod,
	}
}

// ReceiptSheetValidatedEvent is raised when a sheet is validated
type ReceiptSheetValidatedEvent struct {
	shared.BaseDomainEvent
	SheetID      uuid.UUID       `json:"sheet_id"`
	SheetNumber  string          `json:"sheet_number"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	ValidatedAt  time.Time       `json:"validated_at"`
	ValidatedBy  uuid.UUID       `json:"validated_by"`
	OperationRef string          `json:"treasury_operation_ref"`
}

// EventType returns the event type name
func (e *ReceiptSheetValidatedEvent) EventType() string {
	return EventReceiptSheetValidated
}

// NewReceiptSheetValidatedEvent creates a new ReceiptSheetValidatedEvent
func NewReceiptSheetValidatedEvent(s *ReceiptSheet) *ReceiptSheetValidatedEvent {
	var validatedBy uuid.UUID
	validatedAt := time.Now()
	if s.ValidatedBy != nil {
		validatedBy = *s.ValidatedBy
	}
	if s.ValidatedAt != nil {
		validatedAt = *s.ValidatedAt
	}
	return &ReceiptSheetValidatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventReceiptSheetValidated, aggregateTypeReceiptSheet, s.ID, s.CompanyID),
		SheetID:         s.ID,
		SheetNumber:     s.SheetNumber,
		AmountPaid:      s.AmountPaid,
		ValidatedAt:     validatedAt,
		ValidatedBy:     validatedBy,
		OperationRef:    s.TreasuryOperationRef,
	}
}

// ReceiptSheetRejectedEvent is raised when a sheet is rejected
type ReceiptSheetRejectedEvent struct {
	shared.BaseDomainEvent
	SheetID     uuid.UUID `json:"sheet_id"`
	SheetNumber string    `json:"sheet_number"`
	Reason      string    `json:"reason"`
}

// EventType returns the event type name
func (e *ReceiptSheetRejectedEvent) EventType() string {
	return EventReceiptSheetRejected
}

// NewReceiptSheetRejectedEvent creates a new ReceiptSheetRejectedEvent
func NewReceiptSheetRejectedEvent(s *ReceiptSheet) *ReceiptSheetRejectedEvent {
	return &ReceiptSheetRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventReceiptSheetRejected, aggregateTypeReceiptSheet, s.ID, s.CompanyID),
		SheetID:         s.ID,
		SheetNumber:     s.SheetNumber,
		Reason:          s.RejectionReason,
	}
}

// ReceiptSheetCancelledEvent is raised when a draft is abandoned
type ReceiptSheetCancelledEvent struct {
	shared.BaseDomainEvent
	SheetID     uuid.UUID `json:"sheet_id"`
	SheetNumber string    `json:"sheet_number"`
}

// EventType returns the event type name
func (e *ReceiptSheetCancelledEvent) EventType() string {
	return EventReceiptSheetCancelled
}

// NewReceiptSheetCancelledEvent creates a new ReceiptSheetCancelledEvent
func NewReceiptSheetCancelledEvent(s *ReceiptSheet) *ReceiptSheetCancelledEvent {
	return &ReceiptSheetCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventReceiptSheetCancelled, aggregateTypeReceiptSheet, s.ID, s.CompanyID),
		SheetID:         s.ID,
		SheetNumber:     s.SheetNumber,
	}
}

// InvoiceLinkedEvent is raised when an invoice is attached to the sheet
type InvoiceLinkedEvent struct {
	shared.BaseDomainEvent
	SheetID       uuid.UUID       `json:"sheet_id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	AmountClamped bool            `json:"amount_clamped"`
}

// EventType returns the event type name
func (e *InvoiceLinkedEvent) EventType() string {
	return EventInvoiceLinked
}

// NewInvoiceLinkedEvent creates a new InvoiceLinkedEvent
func NewInvoiceLinkedEvent(s *ReceiptSheet, invoiceID uuid.UUID, number string, clamped bool) *InvoiceLinkedEvent {
	return &InvoiceLinkedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventInvoiceLinked, aggregateTypeReceiptSheet, s.ID, s.CompanyID),
		SheetID:         s.ID,
		InvoiceID:       invoiceID,
		InvoiceNumber:   number,
		AmountPaid:      s.AmountPaid,
		AmountClamped:   clamped,
	}
}

// InvoiceUnlinkedEvent is raised when an invoice is detached from the sheet
type InvoiceUnlinkedEvent struct {
	shared.BaseDomainEvent
	SheetID       uuid.UUID       `json:"sheet_id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	AmountClamped bool            `json:"amount_clamped"`
}

// EventType returns the event type name
func (e *InvoiceUnlinkedEvent) EventType() string {
	return EventInvoiceUnlinked
}

// NewInvoiceUnlinkedEvent creates a new InvoiceUnlinkedEvent
func NewInvoiceUnlinkedEvent(s *ReceiptSheet, invoiceID uuid.UUID, number string, clamped bool) *InvoiceUnlinkedEvent {
	return &InvoiceUnlinkedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventInvoiceUnlinked, aggregateTypeReceiptSheet, s.ID, s.CompanyID),
		SheetID:         s.ID,
		InvoiceID:       invoiceID,
		InvoiceNumber:   number,
		AmountPaid:      s.AmountPaid,
		AmountClamped:   clamped,
	}
}

// HistoryStaleEvent signals that the sheet's audit history should be
// reloaded from the backend after a successful status change
type HistoryStaleEvent struct {
	shared.BaseDomainEvent
	SheetID uuid.UUID   `json:"sheet_id"`
	Status  SheetStatus `json:"status"`
}

// EventType returns the event type name
func (e *HistoryStaleEvent) EventType() string {
	return EventHistoryStale
}

// NewHistoryStaleEvent creates a new HistoryStaleEvent
func NewHistoryStaleEvent(s *ReceiptSheet) *HistoryStaleEvent {
	return &HistoryStaleEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventHistoryStale, aggregateTypeReceiptSheet, s.ID, s.CompanyID),
		SheetID:         s.ID,
		Status:          s.Status,
	}
}
