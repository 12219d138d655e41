package treasury

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tresoria/backend/internal/domain/shared"
)

// HistoryEntry is one line of the sheet's server-side audit trail
type HistoryEntry struct {
	ID        uuid.UUID `json:"id"`
	SheetID   uuid.UUID `json:"sheet_id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Details   string    `json:"details,omitempty"`
}

// InvoiceFilter narrows the open-invoice listing
type InvoiceFilter struct {
	ThirdPartyID *uuid.UUID
	Search       string
	Limit        int
}

// ThirdPartyFilter narrows the third-party listing
type ThirdPartyFilter struct {
	Kind   *PayerType
	Search string
	Limit  int
}

// SheetFilter narrows the receipt-sheet listing
type SheetFilter struct {
	Status    *SheetStatus
	PayerCode string
	FromDate  *time.Time
	ToDate    *time.Time
	Limit     int
}

// SheetPayload is the wire shape sent on create/update. Optional references
// are omitted when empty; the required fields are checked before any call
// leaves the service (fail fast, no partial submission).
type SheetPayload struct {
	EncashmentDate    string   `json:"encashment_date"`
	PayerType         string   `json:"payer_type"`
	PayerCode         string   `json:"payer_code"`
	PayerName         string   `json:"payer_name"`
	PaymentMethod     string   `json:"payment_method"`
	PaymentIntent     string   `json:"payment_intent"`
	AmountPaid        string   `json:"amount_paid"`
	PayerAccountID    string   `json:"payer_account_id"`
	TreasuryAccountID string   `json:"treasury_account_id"`
	CurrencyID        string   `json:"currency_id"`
	Status            string   `json:"status"`
	ThirdPartyID      string   `json:"third_party_id,omitempty"`
	CheckNumber       string   `json:"check_number,omitempty"`
	TransferRef       string   `json:"transfer_ref,omitempty"`
	MobileMoneyRef    string   `json:"mobile_money_ref,omitempty"`
	CardRef           string   `json:"card_ref,omitempty"`
	DirectDebitRef    string   `json:"direct_debit_ref,omitempty"`
	OtherRef          string   `json:"other_ref,omitempty"`
	InvoiceIDs        []string `json:"invoice_ids,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

// BuildPayload serializes the sheet for create/update. It refuses to build
// a payload missing any backend-required field.
func (s *ReceiptSheet) BuildPayload() (SheetPayload, error) {
	if missing := s.MissingRequiredFields(); len(missing) > 0 {
		return SheetPayload{}, shared.NewValidationError("MISSING_REQUIRED_FIELDS",
			"Cannot build payload, required fields are missing: "+strings.Join(missing, ", "))
	}

	payload := SheetPayload{
		EncashmentDate:    s.EncashmentDate.Format(time.RFC3339),
		PayerType:         s.PayerType.String(),
		PayerCode:         s.PayerCode,
		PayerName:         s.PayerName,
		PaymentMethod:     s.PaymentMethod.String(),
		PaymentIntent:     s.PaymentIntent.String(),
		AmountPaid:        s.AmountPaid.StringFixed(2),
		PayerAccountID:    s.PayerAccountID.String(),
		TreasuryAccountID: s.TreasuryAccount.ID.String(),
		CurrencyID:        s.Currency.ID.String(),
		Status:            s.Status.String(),
		CheckNumber:       s.PaymentRefs.CheckNumber,
		TransferRef:       s.PaymentRefs.TransferRef,
		MobileMoneyRef:    s.PaymentRefs.MobileMoneyRef,
		CardRef:           s.PaymentRefs.CardRef,
		DirectDebitRef:    s.PaymentRefs.DirectDebitRef,
		OtherRef:          s.PaymentRefs.OtherRef,
		Notes:             s.Notes,
	}
	if s.ThirdPartyID != nil {
		payload.ThirdPartyID = s.ThirdPartyID.String()
	}
	for _, link := range s.LinkedInvoices {
		payload.InvoiceIDs = append(payload.InvoiceIDs, link.InvoiceID.String())
	}
	return payload, nil
}

// Gateway is the external Treasury API collaborator. Transport, auth-token
// handling and JSON envelope parsing live behind it; the core only ever
// sees normalized records. Errors come back classified per the
// shared.ErrorKind taxonomy.
type Gateway interface {
	// CreateSheet persists a new sheet and returns the server state,
	// including the assigned identity and sheet number
	CreateSheet(ctx context.Context, companyID uuid.UUID, payload SheetPayload) (*ReceiptSheet, error)

	// UpdateSheet updates an existing sheet
	UpdateSheet(ctx context.Context, id uuid.UUID, payload SheetPayload) (*ReceiptSheet, error)

	// SubmitSheet moves a sheet into pending_validation server-side
	SubmitSheet(ctx context.Context, id uuid.UUID) (*ReceiptSheet, error)

	// ValidateSheet performs the validate transition server-side
	ValidateSheet(ctx context.Context, id uuid.UUID) (*ReceiptSheet, error)

	// RejectSheet performs the reject transition server-side
	RejectSheet(ctx context.Context, id uuid.UUID, reason string) (*ReceiptSheet, error)

	// FetchSheet loads the current server state of a sheet
	FetchSheet(ctx context.Context, id uuid.UUID) (*ReceiptSheet, error)

	// FetchSheetHistory loads the audit trail of a sheet
	FetchSheetHistory(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error)

	// ListSheets lists sheets for a company
	ListSheets(ctx context.Context, companyID uuid.UUID, filter SheetFilter) ([]ReceiptSheet, error)

	// ListOpenInvoices lists invoices that can still receive an allocation
	ListOpenInvoices(ctx context.Context, companyID uuid.UUID, filter InvoiceFilter) ([]InvoiceSummary, error)

	// ListThirdParties lists third parties a sheet can reference
	ListThirdParties(ctx context.Context, companyID uuid.UUID, filter ThirdPartyFilter) ([]ThirdPartySummary, error)

	// ResolveCompanyCurrency resolves the company's default currency,
	// applied once at sheet creation
	ResolveCompanyCurrency(ctx context.Context, companyID uuid.UUID) (CompanyCurrency, error)
}
