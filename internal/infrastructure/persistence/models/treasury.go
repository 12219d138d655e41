package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tresoria/backend/internal/domain/shared"
	"github.com/tresoria/backend/internal/domain/shared/valueobject"
	"github.com/tresoria/backend/internal/domain/treasury"
)

// ReceiptSheetModel is the persisted shape of a receipt sheet
type ReceiptSheetModel struct {
	CompanyModel
	SheetNumber          string          `gorm:"size:32;not null;index"`
	Status               string          `gorm:"size:32;not null;index"`
	PaymentIntent        string          `gorm:"size:32;not null"`
	PaymentMethod        string          `gorm:"size:32;not null"`
	EncashmentDate       time.Time       `gorm:"not null;index"`
	PayerType            string          `gorm:"size:16;not null"`
	PayerCode            string          `gorm:"size:64;not null;index"`
	PayerName            string          `gorm:"size:255;not null"`
	PayerAccountID       uuid.UUID       `gorm:"type:uuid;not null"`
	ThirdPartyID         *uuid.UUID      `gorm:"type:uuid;index"`
	TreasuryAccountID    uuid.UUID       `gorm:"type:uuid;not null"`
	CurrencyID           uuid.UUID       `gorm:"type:uuid;not null"`
	AmountPaid           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CheckNumber          string          `gorm:"size:64"`
	TransferRef          string          `gorm:"size:64"`
	MobileMoneyRef       string          `gorm:"size:64"`
	CardRef              string          `gorm:"size:64"`
	DirectDebitRef       string          `gorm:"size:64"`
	OtherRef             string          `gorm:"size:64"`
	RejectionReason      string          `gorm:"size:500"`
	ValidatedAt          *time.Time
	ValidatedBy          *uuid.UUID `gorm:"type:uuid"`
	TreasuryOperationRef string     `gorm:"size:64"`
	Notes                string     `gorm:"size:1000"`
	Version              int        `gorm:"not null;default:1"`
}

// TableName returns the table name for ReceiptSheetModel
func (ReceiptSheetModel) TableName() string {
	return "receipt_sheets"
}

// InvoiceLinkModel records one invoice attached to a sheet, frozen at the
// amounts known when the link was made
type InvoiceLinkModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SheetID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	Number            string          `gorm:"size:64;not null"`
	TotalAmount       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OutstandingAtLink decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LinkedAt          time.Time       `gorm:"not null"`
}

// TableName returns the table name for InvoiceLinkModel
func (InvoiceLinkModel) TableName() string {
	return "receipt_sheet_invoice_links"
}

// SheetHistoryModel is one line of a sheet's audit trail
type SheetHistoryModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SheetID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Timestamp time.Time `gorm:"not null"`
	Action    string    `gorm:"size:32;not null"`
	Actor     string    `gorm:"size:64;not null"`
	Details   string    `gorm:"size:500"`
}

// TableName returns the table name for SheetHistoryModel
func (SheetHistoryModel) TableName() string {
	return "receipt_sheet_history"
}

// InvoiceModel is a receivable invoice that allocations are applied against
type InvoiceModel struct {
	CompanyModel
	Number             string          `gorm:"size:64;not null;index"`
	ThirdPartyID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	ThirdPartyCode     string          `gorm:"size:64;not null"`
	ThirdPartyName     string          `gorm:"size:255;not null"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OutstandingBalance decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status             string          `gorm:"size:32;not null;index"`
	DueDate            *time.Time
}

// TableName returns the table name for InvoiceModel
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ThirdPartyModel is a payer a sheet can reference
type ThirdPartyModel struct {
	CompanyModel
	Code       string `gorm:"size:64;not null;index"`
	Name       string `gorm:"size:255;not null"`
	Kind       string `gorm:"size:16;not null;index"`
	AccountRef string `gorm:"size:64;not null"`
}

// TableName returns the table name for ThirdPartyModel
func (ThirdPartyModel) TableName() string {
	return "third_parties"
}

// TreasuryAccountModel is a cash or bank account sheets are credited to
type TreasuryAccountModel struct {
	CompanyModel
	Label    string `gorm:"size:255;not null"`
	Currency string `gorm:"size:8;not null"`
}

// TableName returns the table name for TreasuryAccountModel
func (TreasuryAccountModel) TableName() string {
	return "treasury_accounts"
}

// CurrencyModel is a currency known to the company settings
type CurrencyModel struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code   string    `gorm:"size:8;not null;uniqueIndex"`
	Symbol string    `gorm:"size:8;not null"`
}

// TableName returns the table name for CurrencyModel
func (CurrencyModel) TableName() string {
	return "currencies"
}

// CompanySettingsModel binds a company to its default currency
type CompanySettingsModel struct {
	CompanyID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	CurrencyID uuid.UUID `gorm:"type:uuid;not null"`
}

// TableName returns the table name for CompanySettingsModel
func (CompanySettingsModel) TableName() string {
	return "company_settings"
}

// ToDomain rebuilds the aggregate from its persisted rows. The account and
// currency rows are denormalized into the aggregate the same way the remote
// backend inlines them in its responses.
func (m *ReceiptSheetModel) ToDomain(account TreasuryAccountModel, currency CurrencyModel, links []InvoiceLinkModel) *treasury.ReceiptSheet {
	sheet := &treasury.ReceiptSheet{
		CompanyAggregateRoot: shared.CompanyAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					CreatedBy: m.CreatedBy,
					UpdatedAt: m.UpdatedAt,
					UpdatedBy: m.UpdatedBy,
				},
				Version: m.Version,
			},
			CompanyID: m.CompanyID,
		},
		SheetNumber:    m.SheetNumber,
		Status:         treasury.SheetStatus(m.Status),
		PaymentIntent:  treasury.PaymentIntent(m.PaymentIntent),
		PaymentMethod:  treasury.PaymentMethod(m.PaymentMethod),
		EncashmentDate: m.EncashmentDate,
		PayerType:      treasury.PayerType(m.PayerType),
		PayerCode:      m.PayerCode,
		PayerName:      m.PayerName,
		PayerAccountID: m.PayerAccountID,
		ThirdPartyID:   m.ThirdPartyID,
		TreasuryAccount: treasury.TreasuryAccount{
			ID:       account.ID,
			Label:    account.Label,
			Currency: valueobject.Currency(account.Currency),
		},
		Currency: treasury.CompanyCurrency{
			ID:     currency.ID,
			Code:   valueobject.Currency(currency.Code),
			Symbol: currency.Symbol,
		},
		AmountPaid: m.AmountPaid,
		PaymentRefs: treasury.PaymentReferences{
			CheckNumber:    m.CheckNumber,
			TransferRef:    m.TransferRef,
			MobileMoneyRef: m.MobileMoneyRef,
			CardRef:        m.CardRef,
			DirectDebitRef: m.DirectDebitRef,
			OtherRef:       m.OtherRef,
		},
		RejectionReason:      m.RejectionReason,
		ValidatedAt:          m.ValidatedAt,
		ValidatedBy:          m.ValidatedBy,
		TreasuryOperationRef: m.TreasuryOperationRef,
		Notes:                m.Notes,
	}
	for _, link := range links {
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

// ToDomain converts the invoice row into the listing read model
func (m *InvoiceModel) ToDomain() treasury.InvoiceSummary {
	return treasury.InvoiceSummary{
		ID:                 m.ID,
		Number:             m.Number,
		ThirdPartyCode:     m.ThirdPartyCode,
		ThirdPartyName:     m.ThirdPartyName,
		TotalAmount:        m.TotalAmount,
		OutstandingBalance: m.OutstandingBalance,
		Status:             treasury.InvoiceStatus(m.Status),
		DueDate:            m.DueDate,
	}
}

// ToDomain converts the third-party row into the listing read model
func (m *ThirdPartyModel) ToDomain() treasury.ThirdPartySummary {
	return treasury.ThirdPartySummary{
		ID:         m.ID,
		Code:       m.Code,
		Name:       m.Name,
		Kind:       treasury.PayerType(m.Kind),
		AccountRef: m.AccountRef,
	}
}

// ToDomain converts the history row into the audit trail entry
func (m *SheetHistoryModel) ToDomain() treasury.HistoryEntry {
	return treasury.HistoryEntry{
		ID:        m.ID,
		SheetID:   m.SheetID,
		Timestamp: m.Timestamp,
		Action:    m.Action,
		Actor:     m.Actor,
		Details:   m.Details,
	}
}
