package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/tresoria/backend/internal/domain/shared/valueobject"
	"github.com/tresoria/backend/internal/domain/treasury"
)

var (
	calculator = treasury.NewAllocationCalculator()
	formatter  = valueobject.NewFormatter()
)

// SheetRequest is the body of sheet create and update calls. The payment
// intent only matters on create; it is frozen on the sheet afterwards.
type SheetRequest struct {
	PaymentIntent   string                 `json:"payment_intent" binding:"required,oneof=advance partial invoice_settlement"`
	PaymentMethod   string                 `json:"payment_method" binding:"required,oneof=check transfer cash mobile_money card direct_debit other"`
	EncashmentDate  time.Time              `json:"encashment_date" binding:"required"`
	PayerType       string                 `json:"payer_type" binding:"required,oneof=customer supplier employee other"`
	PayerCode       string                 `json:"payer_code" binding:"required"`
	PayerName       string                 `json:"payer_name" binding:"required"`
	PayerAccountID  string                 `json:"payer_account_id" binding:"required,uuid"`
	ThirdPartyID    string                 `json:"third_party_id" binding:"omitempty,uuid"`
	TreasuryAccount TreasuryAccountRequest `json:"treasury_account" binding:"required"`
	AmountPaid      string                 `json:"amount_paid" binding:"required,money"`
	CheckNumber     string                 `json:"check_number"`
	TransferRef     string                 `json:"transfer_ref"`
	MobileMoneyRef  string                 `json:"mobile_money_ref"`
	CardRef         string                 `json:"card_ref"`
	DirectDebitRef  string                 `json:"direct_debit_ref"`
	OtherRef        string                 `json:"other_ref"`
	Notes           string                 `json:"notes"`
}

// TreasuryAccountRequest is the account selection carried on a sheet request
type TreasuryAccountRequest struct {
	ID       string `json:"id" binding:"required,uuid"`
	Label    string `json:"label" binding:"required"`
	Currency string `json:"currency"`
}

// ToDomain converts the selection into the domain value
func (r TreasuryAccountRequest) ToDomain() treasury.TreasuryAccount {
	return treasury.TreasuryAccount{
		ID:       uuid.MustParse(r.ID),
		Label:    r.Label,
		Currency: valueobject.Currency(r.Currency),
	}
}

// RejectRequest carries the mandatory rejection reason
type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// AddInvoiceRequest links one open invoice to the sheet
type AddInvoiceRequest struct {
	InvoiceID string `json:"invoice_id" binding:"required,uuid"`
}

// SheetResponse is the full sheet representation returned by every sheet
// endpoint
type SheetResponse struct {
	ID                   uuid.UUID             `json:"id"`
	CompanyID            uuid.UUID             `json:"company_id"`
	SheetNumber          string                `json:"sheet_number,omitempty"`
	Status               string                `json:"status"`
	PaymentIntent        string                `json:"payment_intent"`
	PaymentMethod        string                `json:"payment_method"`
	PaymentReference     string                `json:"payment_reference,omitempty"`
	EncashmentDate       time.Time             `json:"encashment_date"`
	PayerType            string                `json:"payer_type"`
	PayerCode            string                `json:"payer_code"`
	PayerName            string                `json:"payer_name"`
	PayerAccountID       uuid.UUID             `json:"payer_account_id"`
	ThirdPartyID         *uuid.UUID            `json:"third_party_id,omitempty"`
	TreasuryAccount      TreasuryAccountInfo   `json:"treasury_account"`
	Currency             CurrencyInfo          `json:"currency"`
	AmountPaid           string                `json:"amount_paid"`
	AmountDisplay        string                `json:"amount_display"`
	TotalDue             string                `json:"total_due"`
	Balance              string                `json:"balance"`
	LinkedInvoices       []InvoiceLinkResponse `json:"linked_invoices"`
	RejectionReason      string                `json:"rejection_reason,omitempty"`
	ValidatedAt          *time.Time            `json:"validated_at,omitempty"`
	ValidatedBy          *uuid.UUID            `json:"validated_by,omitempty"`
	TreasuryOperationRef string                `json:"treasury_operation_ref,omitempty"`
	Notes                string                `json:"notes,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// TreasuryAccountInfo is the account part of a sheet response
type TreasuryAccountInfo struct {
	ID       uuid.UUID `json:"id"`
	Label    string    `json:"label"`
	Currency string    `json:"currency"`
}

// CurrencyInfo is the currency part of a sheet response
type CurrencyInfo struct {
	ID     uuid.UUID `json:"id"`
	Code   string    `json:"code"`
	Symbol string    `json:"symbol"`
}

// InvoiceLinkResponse is one linked invoice with its allocation coverage
type InvoiceLinkResponse struct {
	InvoiceID         uuid.UUID `json:"invoice_id"`
	Number            string    `json:"number"`
	TotalAmount       string    `json:"total_amount"`
	OutstandingAtLink string    `json:"outstanding_at_link"`
	Allocated         string    `json:"allocated"`
	Covered           bool      `json:"covered"`
	LinkedAt          time.Time `json:"linked_at"`
}

// NewSheetResponse builds the response from the aggregate, computing the
// basket totals and per-invoice coverage on the way out
func NewSheetResponse(sheet *treasury.ReceiptSheet) SheetResponse {
	totalDue := calculator.TotalDue(sheet.LinkedInvoices)
	balance := calculator.Balance(sheet.LinkedInvoices, sheet.AmountPaid)
	coverage := calculator.Coverage(sheet.LinkedInvoices, sheet.AmountPaid)

	links := make([]InvoiceLinkResponse, 0, len(sheet.LinkedInvoices))
	for i, link := range sheet.LinkedInvoices {
		item := InvoiceLinkResponse{
			InvoiceID:         link.InvoiceID,
			Number:            link.Number,
			TotalAmount:       link.TotalAmount.StringFixed(2),
			OutstandingAtLink: link.OutstandingAtLink.StringFixed(2),
			LinkedAt:          link.LinkedAt,
		}
		if i < len(coverage) {
			item.Allocated = coverage[i].Allocated.StringFixed(2)
			item.Covered = coverage[i].Settled
		}
		links = append(links, item)
	}

	return SheetResponse{
		ID:               sheet.ID,
		CompanyID:        sheet.CompanyID,
		SheetNumber:      sheet.SheetNumber,
		Status:           sheet.Status.String(),
		PaymentIntent:    sheet.PaymentIntent.String(),
		PaymentMethod:    sheet.PaymentMethod.String(),
		PaymentReference: sheet.PaymentReference(),
		EncashmentDate:   sheet.EncashmentDate,
		PayerType:        sheet.PayerType.String(),
		PayerCode:        sheet.PayerCode,
		PayerName:        sheet.PayerName,
		PayerAccountID:   sheet.PayerAccountID,
		ThirdPartyID:     sheet.ThirdPartyID,
		TreasuryAccount: TreasuryAccountInfo{
			ID:       sheet.TreasuryAccount.ID,
			Label:    sheet.TreasuryAccount.Label,
			Currency: string(sheet.TreasuryAccount.Currency),
		},
		Currency: CurrencyInfo{
			ID:     sheet.Currency.ID,
			Code:   string(sheet.Currency.Code),
			Symbol: sheet.Currency.Symbol,
		},
		AmountPaid:           sheet.AmountPaid.StringFixed(2),
		AmountDisplay:        formatter.FormatWithSymbol(sheet.AmountPaid, sheet.Currency.Symbol),
		TotalDue:             totalDue.StringFixed(2),
		Balance:              balance.StringFixed(2),
		LinkedInvoices:       links,
		RejectionReason:      sheet.RejectionReason,
		ValidatedAt:          sheet.ValidatedAt,
		ValidatedBy:          sheet.ValidatedBy,
		TreasuryOperationRef: sheet.TreasuryOperationRef,
		Notes:                sheet.Notes,
		CreatedAt:            sheet.CreatedAt,
		UpdatedAt:            sheet.UpdatedAt,
	}
}

// SheetOperationResponse pairs the sheet with the advisory rule check and
// the optional currency warning produced by the operation
type SheetOperationResponse struct {
	Sheet   SheetResponse              `json:"sheet"`
	Rules   *treasury.ValidationResult `json:"rules,omitempty"`
	Warning *treasury.CurrencyWarning  `json:"warning,omitempty"`
}

// InvoiceSummaryResponse is one open invoice listing row
type InvoiceSummaryResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Number             string     `json:"number"`
	ThirdPartyCode     string     `json:"third_party_code"`
	ThirdPartyName     string     `json:"third_party_name"`
	TotalAmount        string     `json:"total_amount"`
	OutstandingBalance string     `json:"outstanding_balance"`
	Status             string     `json:"status"`
	DueDate            *time.Time `json:"due_date,omitempty"`
}

// NewInvoiceSummaryResponse converts the domain read model
func NewInvoiceSummaryResponse(inv treasury.InvoiceSummary) InvoiceSummaryResponse {
	return InvoiceSummaryResponse{
		ID:                 inv.ID,
		Number:             inv.Number,
		ThirdPartyCode:     inv.ThirdPartyCode,
		ThirdPartyName:     inv.ThirdPartyName,
		TotalAmount:        inv.TotalAmount.StringFixed(2),
		OutstandingBalance: inv.OutstandingBalance.StringFixed(2),
		Status:             inv.Status.String(),
		DueDate:            inv.DueDate,
	}
}

// ThirdPartyResponse is one third-party listing row
type ThirdPartyResponse struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	AccountRef string    `json:"account_ref"`
}

// NewThirdPartyResponse converts the domain read model
func NewThirdPartyResponse(party treasury.ThirdPartySummary) ThirdPartyResponse {
	return ThirdPartyResponse{
		ID:         party.ID,
		Code:       party.Code,
		Name:       party.Name,
		Kind:       party.Kind.String(),
		AccountRef: party.AccountRef,
	}
}

// CompanyCurrencyResponse carries the company's default currency
type CompanyCurrencyResponse struct {
	ID     uuid.UUID `json:"id"`
	Code   string    `json:"code"`
	Symbol string    `json:"symbol"`
}

// NewCompanyCurrencyResponse converts the resolved currency
func NewCompanyCurrencyResponse(currency treasury.CompanyCurrency) CompanyCurrencyResponse {
	return CompanyCurrencyResponse{
		ID:     currency.ID,
		Code:   string(currency.Code),
		Symbol: currency.Symbol,
	}
}

// HistoryEntryResponse is one audit trail line
type HistoryEntryResponse struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Details   string    `json:"details,omitempty"`
}

// NewHistoryResponse converts the audit trail
func NewHistoryResponse(entries []treasury.HistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, HistoryEntryResponse{
			ID:        entry.ID,
			Timestamp: entry.Timestamp,
			Action:    entry.Action,
			Actor:     entry.Actor,
			Details:   entry.Details,
		})
	}
	return out
}

// ListSheetsRequest narrows the sheet listing
type ListSheetsRequest struct {
	Status    string `form:"status" binding:"omitempty,oneof=draft pending_validation validated rejected cancelled reconciled"`
	PayerCode string `form:"payer_code"`
	From      string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To        string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

// ListInvoicesRequest narrows the open-invoice listing
type ListInvoicesRequest struct {
	ThirdPartyID string `form:"third_party_id" binding:"omitempty,uuid"`
	Search       string `form:"search"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

// ListThirdPartiesRequest narrows the third-party listing
type ListThirdPartiesRequest struct {
	Kind   string `form:"kind" binding:"omitempty,oneof=customer supplier employee other"`
	Search string `form:"search"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=200"`
}
