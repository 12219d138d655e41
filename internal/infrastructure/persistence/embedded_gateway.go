package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tresoria/backend/internal/domain/shared"
	"github.com/tresoria/backend/internal/domain/shared/valueobject"
	"github.com/tresoria/backend/internal/domain/treasury"
	"github.com/tresoria/backend/internal/infrastructure/persistence/models"
)

// historyActor is recorded on audit lines written by the embedded gateway.
// The remote backend attributes actions to the session user; the embedded
// gateway has no session of its own.
const historyActor = "system"

// EmbeddedGateway implements treasury.Gateway against a local database. It
// plays the role of the treasury backend for single-site deployments: it
// owns identity, sheet numbers, status transitions and the audit trail, and
// returns the same classified errors the remote backend would.
type EmbeddedGateway struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewEmbeddedGateway creates a gateway backed by the given database
func NewEmbeddedGateway(database *Database, logger *zap.Logger) *EmbeddedGateway {
	return &EmbeddedGateway{db: database.DB, logger: logger}
}

var _ treasury.Gateway = (*EmbeddedGateway)(nil)

// CreateSheet persists a new draft sheet, assigning its identity and sheet
// number, and writes the opening audit line
func (g *EmbeddedGateway) CreateSheet(ctx context.Context, companyID uuid.UUID, payload treasury.SheetPayload) (*treasury.ReceiptSheet, error) {
	var sheetID uuid.UUID
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		model := models.ReceiptSheetModel{
			CompanyModel: models.CompanyModel{
				BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
				CompanyID: companyID,
			},
			Version: 1,
		}
		if err := applyPayload(&model, payload); err != nil {
			return err
		}
		// A new sheet is always opened as a draft, whatever the payload says
		model.Status = treasury.SheetStatusDraft.String()

		if err := g.checkReferences(tx, &model); err != nil {
			return err
		}

		number, err := g.nextSheetNumber(tx, companyID, model.EncashmentDate.Year())
		if err != nil {
			return err
		}
		model.SheetNumber = number

		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}
		if err := g.replaceLinks(tx, &model, payload.InvoiceIDs); err != nil {
			return err
		}
		if err := g.addHistory(tx, model.ID, "created", ""); err != nil {
			return err
		}
		sheetID = model.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g.FetchSheet(ctx, sheetID)
}

// UpdateSheet updates an existing sheet. A payload carrying the cancelled
// status cancels a draft; any other update keeps the stored status, which
// the gateway owns.
func (g *EmbeddedGateway) UpdateSheet(ctx context.Context, id uuid.UUID, payload treasury.SheetPayload) (*treasury.ReceiptSheet, error) {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := g.lockSheet(tx, id)
		if err != nil {
			return err
		}

		cancelling := payload.Status == treasury.SheetStatusCancelled.String()
		switch treasury.SheetStatus(model.Status) {
		case treasury.SheetStatusDraft:
		case treasury.SheetStatusValidated:
			if cancelling {
				return shared.NewConflictError("SHEET_LOCKED", "A validated sheet cannot be cancelled")
			}
		case treasury.SheetStatusPendingValidation:
			return shared.NewConflictError("SHEET_PENDING_VALIDATION", "Sheet is awaiting validation and cannot be modified")
		default:
			return shared.NewConflictError("SHEET_LOCKED", "Sheet is closed and cannot be modified")
		}

		if err := applyPayload(model, payload); err != nil {
			return err
		}
		if err := g.checkReferences(tx, model); err != nil {
			return err
		}

		action := "updated"
		if cancelling {
			model.Status = treasury.SheetStatusCancelled.String()
			action = "cancelled"
		}
		model.UpdatedAt = time.Now()
		model.Version++

		if err := tx.Save(model).Error; err != nil {
			return fmt.Errorf("failed to update sheet: %w", err)
		}
		if err := g.replaceLinks(tx, model, payload.InvoiceIDs); err != nil {
			return err
		}
		return g.addHistory(tx, model.ID, action, "")
	})
	if err != nil {
		return nil, err
	}
	return g.FetchSheet(ctx, id)
}

// SubmitSheet moves a draft into pending_validation
func (g *EmbeddedGateway) SubmitSheet(ctx context.Context, id uuid.UUID) (*treasury.ReceiptSheet, error) {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := g.lockSheet(tx, id)
		if err != nil {
			return err
		}
		switch treasury.SheetStatus(model.Status) {
		case treasury.SheetStatusDraft:
		case treasury.SheetStatusPendingValidation:
			return shared.NewConflictError("ALREADY_SUBMITTED", "Sheet has already been submitted")
		default:
			return shared.NewConflictError("SHEET_LOCKED", "Sheet can no longer be submitted")
		}

		model.Status = treasury.SheetStatusPendingValidation.String()
		model.UpdatedAt = time.Now()
		model.Version++
		if err := tx.Save(model).Error; err != nil {
			return fmt.Errorf("failed to submit sheet: %w", err)
		}
		return g.addHistory(tx, model.ID, "submitted", "")
	})
	if err != nil {
		return nil, err
	}
	return g.FetchSheet(ctx, id)
}

// ValidateSheet approves a pending sheet: it records the validation
// metadata, assigns the treasury operation reference and applies the paid
// amount to the linked invoices' outstanding balances.
func (g *EmbeddedGateway) ValidateSheet(ctx context.Context, id uuid.UUID) (*treasury.ReceiptSheet, error) {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := g.lockSheet(tx, id)
		if err != nil {
			return err
		}
		switch treasury.SheetStatus(model.Status) {
		case treasury.SheetStatusPendingValidation:
		case treasury.SheetStatusValidated:
			return shared.NewConflictError("ALREADY_VALIDATED", "Sheet is already validated")
		case treasury.SheetStatusDraft:
			return shared.NewConflictError("NOT_SUBMITTED", "Sheet must be submitted before validation")
		default:
			return shared.NewConflictError("SHEET_LOCKED", "Sheet can no longer be validated")
		}

		now := time.Now()
		model.Status = treasury.SheetStatusValidated.String()
		model.ValidatedAt = &now
		model.TreasuryOperationRef = newOperationRef()
		model.UpdatedAt = now
		model.Version++
		if err := tx.Save(model).Error; err != nil {
			return fmt.Errorf("failed to validate sheet: %w", err)
		}
		if err := g.applyAllocations(tx, model); err != nil {
			return err
		}
		return g.addHistory(tx, model.ID, "validated", "operation "+model.TreasuryOperationRef)
	})
	if err != nil {
		return nil, err
	}
	return g.FetchSheet(ctx, id)
}

// RejectSheet refuses a pending sheet with a mandatory reason
func (g *EmbeddedGateway) RejectSheet(ctx context.Context, id uuid.UUID, reason string) (*treasury.ReceiptSheet, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, shared.NewValidationError("MISSING_REJECTION_REASON", "A rejection reason is required")
	}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := g.lockSheet(tx, id)
		if err != nil {
			return err
		}
		if treasury.SheetStatus(model.Status) != treasury.SheetStatusPendingValidation {
			return shared.NewConflictError("NOT_SUBMITTED", "Only a submitted sheet can be rejected")
		}

		model.Status = treasury.SheetStatusRejected.String()
		model.RejectionReason = reason
		model.UpdatedAt = time.Now()
		model.Version++
		if err := tx.Save(model).Error; err != nil {
			return fmt.Errorf("failed to reject sheet: %w", err)
		}
		return g.addHistory(tx, model.ID, "rejected", reason)
	})
	if err != nil {
		return nil, err
	}
	return g.FetchSheet(ctx, id)
}

// FetchSheet loads the current state of a sheet
func (g *EmbeddedGateway) FetchSheet(ctx context.Context, id uuid.UUID) (*treasury.ReceiptSheet, error) {
	return g.loadSheet(g.db.WithContext(ctx), id)
}

// FetchSheetHistory loads the audit trail of a sheet, oldest first
func (g *EmbeddedGateway) FetchSheetHistory(ctx context.Context, id uuid.UUID) ([]treasury.HistoryEntry, error) {
	var rows []models.SheetHistoryModel
	if err := g.db.WithContext(ctx).
		Where("sheet_id = ?", id).
		Order("timestamp asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load sheet history: %w", err)
	}
	entries := make([]treasury.HistoryEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].ToDomain())
	}
	return entries, nil
}

// ListSheets lists a company's sheets, newest encashment first
func (g *EmbeddedGateway) ListSheets(ctx context.Context, companyID uuid.UUID, filter treasury.SheetFilter) ([]treasury.ReceiptSheet, error) {
	query := g.db.WithContext(ctx).Where("company_id = ?", companyID)
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
	}
	if filter.PayerCode != "" {
		query = query.Where("payer_code = ?", filter.PayerCode)
	}
	if filter.FromDate != nil {
		query = query.Where("encashment_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("encashment_date <= ?", *filter.ToDate)
	}
	query = query.Order("encashment_date desc, created_at desc").Limit(listLimit(filter.Limit))

	var rows []models.ReceiptSheetModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sheets: %w", err)
	}

	sheets := make([]treasury.ReceiptSheet, 0, len(rows))
	for i := range rows {
		sheet, err := g.assembleSheet(g.db.WithContext(ctx), &rows[i])
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, *sheet)
	}
	return sheets, nil
}

// ListOpenInvoices lists invoices that can still receive an allocation
func (g *EmbeddedGateway) ListOpenInvoices(ctx context.Context, companyID uuid.UUID, filter treasury.InvoiceFilter) ([]treasury.InvoiceSummary, error) {
	query := g.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where("status IN ?", []string{
			treasury.InvoiceStatusOpen.String(),
			treasury.InvoiceStatusPartiallyPaid.String(),
		}).
		Where("outstanding_balance > 0")
	if filter.ThirdPartyID != nil {
		query = query.Where("third_party_id = ?", *filter.ThirdPartyID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("number LIKE ? OR third_party_name LIKE ?", pattern, pattern)
	}
	query = query.Order("number asc").Limit(listLimit(filter.Limit))

	var rows []models.InvoiceModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list open invoices: %w", err)
	}
	invoices := make([]treasury.InvoiceSummary, 0, len(rows))
	for i := range rows {
		invoices = append(invoices, rows[i].ToDomain())
	}
	return invoices, nil
}

// ListThirdParties lists third parties a sheet can reference
func (g *EmbeddedGateway) ListThirdParties(ctx context.Context, companyID uuid.UUID, filter treasury.ThirdPartyFilter) ([]treasury.ThirdPartySummary, error) {
	query := g.db.WithContext(ctx).Where("company_id = ?", companyID)
	if filter.Kind != nil {
		query = query.Where("kind = ?", filter.Kind.String())
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("code LIKE ? OR name LIKE ?", pattern, pattern)
	}
	query = query.Order("code asc").Limit(listLimit(filter.Limit))

	var rows []models.ThirdPartyModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list third parties: %w", err)
	}
	parties := make([]treasury.ThirdPartySummary, 0, len(rows))
	for i := range rows {
		parties = append(parties, rows[i].ToDomain())
	}
	return parties, nil
}

// ResolveCompanyCurrency returns the company's default currency
func (g *EmbeddedGateway) ResolveCompanyCurrency(ctx context.Context, companyID uuid.UUID) (treasury.CompanyCurrency, error) {
	var settings models.CompanySettingsModel
	if err := g.db.WithContext(ctx).First(&settings, "company_id = ?", companyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return treasury.CompanyCurrency{}, shared.NewValidationError("MISSING_CURRENCY",
				"No default currency is configured for this company")
		}
		return treasury.CompanyCurrency{}, fmt.Errorf("failed to load company settings: %w", err)
	}
	var currency models.CurrencyModel
	if err := g.db.WithContext(ctx).First(&currency, "id = ?", settings.CurrencyID).Error; err != nil {
		return treasury.CompanyCurrency{}, fmt.Errorf("failed to load currency: %w", err)
	}
	return treasury.CompanyCurrency{
		ID:     currency.ID,
		Code:   valueobject.Currency(currency.Code),
		Symbol: currency.Symbol,
	}, nil
}

// lockSheet loads a sheet row for update inside a transaction
func (g *EmbeddedGateway) lockSheet(tx *gorm.DB, id uuid.UUID) (*models.ReceiptSheetModel, error) {
	var model models.ReceiptSheetModel
	if err := tx.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewValidationError("SHEET_NOT_FOUND", "Receipt sheet does not exist")
		}
		return nil, fmt.Errorf("failed to load sheet: %w", err)
	}
	return &model, nil
}

// loadSheet fetches a sheet row and assembles the aggregate
func (g *EmbeddedGateway) loadSheet(tx *gorm.DB, id uuid.UUID) (*treasury.ReceiptSheet, error) {
	model, err := g.lockSheet(tx, id)
	if err != nil {
		return nil, err
	}
	return g.assembleSheet(tx, model)
}

// assembleSheet denormalizes the account, currency and link rows into the
// aggregate, mirroring how the remote backend inlines them
func (g *EmbeddedGateway) assembleSheet(tx *gorm.DB, model *models.ReceiptSheetModel) (*treasury.ReceiptSheet, error) {
	var account models.TreasuryAccountModel
	if err := tx.First(&account, "id = ?", model.TreasuryAccountID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load treasury account: %w", err)
	}
	var currency models.CurrencyModel
	if err := tx.First(&currency, "id = ?", model.CurrencyID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load currency: %w", err)
	}
	var links []models.InvoiceLinkModel
	if err := tx.Where("sheet_id = ?", model.ID).Order("linked_at asc").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to load invoice links: %w", err)
	}
	return model.ToDomain(account, currency, links), nil
}

// checkReferences verifies the account and currency the payload points at
// exist and belong to the sheet's company
func (g *EmbeddedGateway) checkReferences(tx *gorm.DB, model *models.ReceiptSheetModel) error {
	var count int64
	if err := tx.Model(&models.TreasuryAccountModel{}).
		Where("id = ? AND company_id = ?", model.TreasuryAccountID, model.CompanyID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check treasury account: %w", err)
	}
	if count == 0 {
		return shared.NewValidationError("INVALID_TREASURY_ACCOUNT", "Treasury account does not exist for this company")
	}
	if err := tx.Model(&models.CurrencyModel{}).
		Where("id = ?", model.CurrencyID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check currency: %w", err)
	}
	if count == 0 {
		return shared.NewValidationError("MISSING_CURRENCY", "Currency does not exist")
	}
	return nil
}

// replaceLinks rewrites the sheet's invoice links from the payload, freezing
// each invoice's amounts as they stand now
func (g *EmbeddedGateway) replaceLinks(tx *gorm.DB, model *models.ReceiptSheetModel, invoiceIDs []string) error {
	if err := tx.Where("sheet_id = ?", model.ID).Delete(&models.InvoiceLinkModel{}).Error; err != nil {
		return fmt.Errorf("failed to clear invoice links: %w", err)
	}
	now := time.Now()
	for i, raw := range invoiceIDs {
		invoiceID, err := uuid.Parse(raw)
		if err != nil {
			return shared.NewValidationError("INVALID_INVOICE", "Invoice reference is not a valid identifier")
		}
		var invoice models.InvoiceModel
		if err := tx.First(&invoice, "id = ? AND company_id = ?", invoiceID, model.CompanyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.NewValidationError("INVOICE_NOT_FOUND", "Invoice "+raw+" does not exist for this company")
			}
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		link := models.InvoiceLinkModel{
			ID:                uuid.New(),
			SheetID:           model.ID,
			InvoiceID:         invoice.ID,
			Number:            invoice.Number,
			TotalAmount:       invoice.TotalAmount,
			OutstandingAtLink: invoice.OutstandingBalance,
			// Preserve the payload order so allocations follow it
			LinkedAt: now.Add(time.Duration(i) * time.Microsecond),
		}
		if err := tx.Create(&link).Error; err != nil {
			return fmt.Errorf("failed to create invoice link: %w", err)
		}
	}
	return nil
}

// applyAllocations consumes the validated sheet's paid amount against the
// linked invoices in link order, never pushing a balance below zero
func (g *EmbeddedGateway) applyAllocations(tx *gorm.DB, model *models.ReceiptSheetModel) error {
	var links []models.InvoiceLinkModel
	if err := tx.Where("sheet_id = ?", model.ID).Order("linked_at asc").Find(&links).Error; err != nil {
		return fmt.Errorf("failed to load invoice links: %w", err)
	}
	remaining := model.AmountPaid
	for _, link := range links {
		if !remaining.IsPositive() {
			break
		}
		var invoice models.InvoiceModel
		if err := tx.First(&invoice, "id = ?", link.InvoiceID).Error; err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		allocation := decimal.Min(remaining, invoice.OutstandingBalance)
		if !allocation.IsPositive() {
			continue
		}
		invoice.OutstandingBalance = invoice.OutstandingBalance.Sub(allocation)
		if invoice.OutstandingBalance.IsZero() {
			invoice.Status = treasury.InvoiceStatusPaid.String()
		} else {
			invoice.Status = treasury.InvoiceStatusPartiallyPaid.String()
		}
		invoice.UpdatedAt = time.Now()
		if err := tx.Save(&invoice).Error; err != nil {
			return fmt.Errorf("failed to update invoice balance: %w", err)
		}
		remaining = remaining.Sub(allocation)
	}
	return nil
}

// addHistory appends one audit line to the sheet's trail
func (g *EmbeddedGateway) addHistory(tx *gorm.DB, sheetID uuid.UUID, action, details string) error {
	row := models.SheetHistoryModel{
		ID:        uuid.New(),
		SheetID:   sheetID,
		Timestamp: time.Now(),
		Action:    action,
		Actor:     historyActor,
		Details:   details,
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// nextSheetNumber assigns the next "ENC-<year>-<seq>" number for the company
func (g *EmbeddedGateway) nextSheetNumber(tx *gorm.DB, companyID uuid.UUID, year int) (string, error) {
	prefix := fmt.Sprintf("ENC-%d-", year)
	var count int64
	if err := tx.Model(&models.ReceiptSheetModel{}).
		Where("company_id = ? AND sheet_number LIKE ?", companyID, prefix+"%").
		Count(&count).Error; err != nil {
		return "", fmt.Errorf("failed to count sheets: %w", err)
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

// applyPayload parses the wire payload into the persisted row. Malformed
// values come back as validation errors, like the remote backend's 422s.
func applyPayload(model *models.ReceiptSheetModel, payload treasury.SheetPayload) error {
	date, err := time.Parse(time.RFC3339, payload.EncashmentDate)
	if err != nil {
		return shared.NewValidationError("INVALID_ENCASHMENT_DATE", "Encashment date must be an RFC 3339 timestamp")
	}
	amount, err := decimal.NewFromString(payload.AmountPaid)
	if err != nil || !amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Amount paid must be a positive decimal")
	}
	payerAccountID, err := uuid.Parse(payload.PayerAccountID)
	if err != nil {
		return shared.NewValidationError("MISSING_REQUIRED_FIELDS", "payer_account_id is required")
	}
	treasuryAccountID, err := uuid.Parse(payload.TreasuryAccountID)
	if err != nil {
		return shared.NewValidationError("MISSING_REQUIRED_FIELDS", "treasury_account_id is required")
	}
	currencyID, err := uuid.Parse(payload.CurrencyID)
	if err != nil {
		return shared.NewValidationError("MISSING_REQUIRED_FIELDS", "currency_id is required")
	}
	if !treasury.PayerType(payload.PayerType).IsValid() {
		return shared.NewValidationError("INVALID_PAYER_TYPE", "Payer type is not valid")
	}
	if payload.PayerCode == "" || payload.PayerName == "" {
		return shared.NewValidationError("MISSING_REQUIRED_FIELDS", "payer_code and payer_name are required")
	}
	if !treasury.PaymentMethod(payload.PaymentMethod).IsValid() {
		return shared.NewValidationError("INVALID_PAYMENT_METHOD", "Payment method is not valid")
	}
	if !treasury.PaymentIntent(payload.PaymentIntent).IsValid() {
		return shared.NewValidationError("INVALID_PAYMENT_INTENT", "Payment intent is not valid")
	}

	model.EncashmentDate = date
	model.PayerType = payload.PayerType
	model.PayerCode = payload.PayerCode
	model.PayerName = payload.PayerName
	model.PaymentMethod = payload.PaymentMethod
	model.PaymentIntent = payload.PaymentIntent
	model.AmountPaid = amount
	model.PayerAccountID = payerAccountID
	model.TreasuryAccountID = treasuryAccountID
	model.CurrencyID = currencyID
	model.CheckNumber = payload.CheckNumber
	model.TransferRef = payload.TransferRef
	model.MobileMoneyRef = payload.MobileMoneyRef
	model.CardRef = payload.CardRef
	model.DirectDebitRef = payload.DirectDebitRef
	model.OtherRef = payload.OtherRef
	model.Notes = payload.Notes

	if payload.ThirdPartyID != "" {
		thirdPartyID, err := uuid.Parse(payload.ThirdPartyID)
		if err != nil {
			return shared.NewValidationError("INVALID_THIRD_PARTY", "Third-party reference is not a valid identifier")
		}
		model.ThirdPartyID = &thirdPartyID
	} else {
		model.ThirdPartyID = nil
	}
	return nil
}

// newOperationRef produces the treasury operation reference assigned at
// validation time
func newOperationRef() string {
	return "OP-" + strings.ToUpper(uuid.NewString()[:8])
}

// listLimit caps listing queries with a sane default
func listLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
