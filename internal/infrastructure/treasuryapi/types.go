package treasuryapi

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tresoria/backend/internal/domain/shared"
	"github.com/tresoria/backend/internal/domain/shared/valueobject"
	"github.com/tresoria/backend/internal/domain/treasury"
)

// envelope is the backend's optional response wrapper. Some endpoints return
// {"success": true, "data": ...}, others return the record or array bare;
// both shapes are accepted.
type envelope struct {
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// errorBody covers the error payload shapes the backend produces
type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// sheetRecord is the wire shape of a receipt sheet as the backend returns it
type sheetRecord struct {
	ID                   uuid.UUID           `json:"id"`
	CompanyID            uuid.UUID           `json:"company_id"`
	SheetNumber          string              `json:"sheet_number"`
	Status               string              `json:"status"`
	PaymentIntent        string              `json:"payment_intent"`
	PaymentMethod        string              `json:"payment_method"`
	EncashmentDate       time.Time           `json:"encashment_date"`
	PayerType            string              `json:"payer_type"`
	PayerCode            string              `json:"payer_code"`
	PayerName            string              `json:"payer_name"`
	PayerAccountID       uuid.UUID           `json:"payer_account_id"`
	ThirdPartyID         *uuid.UUID          `json:"third_party_id,omitempty"`
	TreasuryAccount      accountRecord       `json:"treasury_account"`
	Currency             currencyRecord      `json:"currency"`
	AmountPaid           decimal.Decimal     `json:"amount_paid"`
	LinkedInvoices       []invoiceLinkRecord `json:"linked_invoices,omitempty"`
	CheckNumber          string              `json:"check_number,omitempty"`
	TransferRef          string              `json:"transfer_ref,omitempty"`
	MobileMoneyRef       string              `json:"mobile_money_ref,omitempty"`
	CardRef              string              `json:"card_ref,omitempty"`
	DirectDebitRef       string              `json:"direct_debit_ref,omitempty"`
	OtherRef             string              `json:"other_ref,omitempty"`
	RejectionReason      string              `json:"rejection_reason,omitempty"`
	ValidatedAt          *time.Time          `json:"validated_at,omitempty"`
	ValidatedBy          *uuid.UUID          `json:"validated_by,omitempty"`
	TreasuryOperationRef string              `json:"treasury_operation_ref,omitempty"`
	Notes                string              `json:"notes,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	CreatedBy            *uuid.UUID          `json:"created_by,omitempty"`
	UpdatedAt            time.Time           `json:"updated_at"`
	UpdatedBy            *uuid.UUID          `json:"updated_by,omitempty"`
}

// accountRecord is the wire shape of a treasury account
type accountRecord struct {
	ID       uuid.UUID `json:"id"`
	Label    string    `json:"label"`
	Currency string    `json:"currency"`
}

// currencyRecord is the wire shape of a company currency
type currencyRecord struct {
	ID     uuid.UUID `json:"id"`
	Code   string    `json:"code"`
	Symbol string    `json:"symbol"`
}

// invoiceLinkRecord is the wire shape of a linked invoice
type invoiceLinkRecord struct {
	InvoiceID         uuid.UUID       `json:"invoice_id"`
	Number            string          `json:"number"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	OutstandingAtLink decimal.Decimal `json:"outstanding_at_link"`
	LinkedAt          time.Time       `json:"linked_at"`
}

// invoiceRecord is the wire shape of an open invoice listing row
type invoiceRecord struct {
	ID                 uuid.UUID       `json:"id"`
	Number             string          `json:"number"`
	ThirdPartyCode     string          `json:"third_party_code"`
	ThirdPartyName     string          `json:"third_party_name"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	Status             string          `json:"status"`
	DueDate            *time.Time      `json:"due_date,omitempty"`
}

// thirdPartyRecord is the wire shape of a third-party listing row
type thirdPartyRecord struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	AccountRef string    `json:"account_ref"`
}

// historyRecord is the wire shape of one audit trail line
type historyRecord struct {
	ID        uuid.UUID `json:"id"`
	SheetID   uuid.UUID `json:"sheet_id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Details   string    `json:"details,omitempty"`
}

// toDomain converts the wire record into the aggregate. The returned sheet
// represents server state and carries no pending domain events.
func (r sheetRecord) toDomain() *treasury.ReceiptSheet {
	sheet := &treasury.ReceiptSheet{
		CompanyAggregateRoot: shared.CompanyAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        r.ID,
					CreatedAt: r.CreatedAt,
					CreatedBy: r.CreatedBy,
					UpdatedAt: r.UpdatedAt,
					UpdatedBy: r.UpdatedBy,
				},
				Version: 1,
			},
			CompanyID: r.CompanyID,
		},
		SheetNumber:    r.SheetNumber,
		Status:         treasury.SheetStatus(r.Status),
		PaymentIntent:  treasury.PaymentIntent(r.PaymentIntent),
		PaymentMethod:  treasury.PaymentMethod(r.PaymentMethod),
		EncashmentDate: r.EncashmentDate,
		PayerType:      treasury.PayerType(r.PayerType),
		PayerCode:      r.PayerCode,
		PayerName:      r.PayerName,
		PayerAccountID: r.PayerAccountID,
		ThirdPartyID:   r.ThirdPartyID,
		TreasuryAccount: treasury.TreasuryAccount{
			ID:       r.TreasuryAccount.ID,
			Label:    r.TreasuryAccount.Label,
			Currency: valueobject.Currency(r.TreasuryAccount.Currency),
		},
		Currency: treasury.CompanyCurrency{
			ID:     r.Currency.ID,
			Code:   valueobject.Currency(r.Currency.Code),
			Symbol: r.Currency.Symbol,
		},
		AmountPaid: r.AmountPaid,
		PaymentRefs: treasury.PaymentReferences{
			CheckNumber:    r.CheckNumber,
			TransferRef:    r.TransferRef,
			MobileMoneyRef: r.MobileMoneyRef,
			CardRef:        r.CardRef,
			DirectDebitRef: r.DirectDebitRef,
			OtherRef:       r.OtherRef,
		},
		RejectionReason:      r.RejectionReason,
		ValidatedAt:          r.ValidatedAt,
		ValidatedBy:          r.ValidatedBy,
		TreasuryOperationRef: r.TreasuryOperationRef,
		Notes:                r.Notes,
	}
	for _, link := range r.LinkedInvoices {
		sheet.LinkedInvoices = append(sheet.LinkedInvoices, treasury.InvoiceLink{
			InvoiceID:         link.InvoiceID,
			Number:            link.Number,
			TotalAmount:       link.TotalAmount,
			OutstandingAtLink: link.OutstandingAtLink,
			LinkedAt:          link.LinkedAt,
		})
	}
	return sheet
}

func (r invoiceRecord) toDomain() treasury.InvoiceSummary {
	return treasury.InvoiceSummary{
		ID:                 r.ID,
		Number:             r.Number,
		ThirdPartyCode:     r.ThirdPartyCode,
		ThirdPartyName:     r.ThirdPartyName,
		TotalAmount:        r.TotalAmount,
		OutstandingBalance: r.OutstandingBalance,
		Status:             treasury.InvoiceStatus(r.Status),
		DueDate:            r.DueDate,
	}
}

func (r thirdPartyRecord) toDomain() treasury.ThirdPartySummary {
	return treasury.ThirdPartySummary{
		ID:         r.ID,
		Code:       r.Code,
		Name:       r.Name,
		Kind:       treasury.PayerType(r.Kind),
		AccountRef: r.AccountRef,
	}
}

func (r historyRecord) toDomain() treasury.HistoryEntry {
	return treasury.HistoryEntry{
		ID:        r.ID,
		SheetID:   r.SheetID,
		Timestamp: r.Timestamp,
		Action:    r.Action,
		Actor:     r.Actor,
		Details:   r.Details,
	}
}
