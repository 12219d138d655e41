package treasury

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tresoria/backend/internal/domain/shared"
	"github.com/tresoria/backend/internal/domain/treasury"
)

// ReceiptSheetService orchestrates the receipt-sheet lifecycle against the
// treasury gateway. Every operation runs its local guards before anything
// leaves the process, and the sheet's status only ever changes after the
// gateway confirms the transition. The one exception is the paid-amount
// clamp, which is applied locally on every invoice basket change.
type ReceiptSheetService struct {
	gateway    treasury.Gateway
	machine    *treasury.StateMachine
	validator  *treasury.PaymentTypeValidator
	calculator *treasury.AllocationCalculator
	eventBus   shared.EventPublisher
	logger     *zap.Logger
}

// NewReceiptSheetService creates a new ReceiptSheetService
func NewReceiptSheetService(
	gateway treasury.Gateway,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *ReceiptSheetService {
	validator := treasury.NewPaymentTypeValidator()
	return &ReceiptSheetService{
		gateway:    gateway,
		machine:    treasury.NewStateMachine(validator),
		validator:  validator,
		calculator: treasury.NewAllocationCalculator(),
		eventBus:   eventBus,
		logger:     logger,
	}
}

// NewDraft opens a new draft sheet for the session's company. The company
// currency is resolved through the gateway exactly once, here; it is frozen
// on the sheet afterwards.
func (s *ReceiptSheetService) NewDraft(
	ctx context.Context,
	session Session,
	intent treasury.PaymentIntent,
	method treasury.PaymentMethod,
	encashmentDate time.Time,
) (*treasury.ReceiptSheet, error) {
	currency, err := s.gateway.ResolveCompanyCurrency(ctx, session.CompanyID)
	if err != nil {
		s.logger.Warn("failed to resolve company currency",
			zap.String("company_id", session.CompanyID.String()),
			zap.Error(err))
		return nil, err
	}

	sheet, err := treasury.NewReceiptSheet(session.CompanyID, intent, method, currency, encashmentDate)
	if err != nil {
		return nil, err
	}

	s.logger.Info("opened receipt sheet draft",
		zap.String("company_id", session.CompanyID.String()),
		zap.String("payment_intent", intent.String()),
		zap.String("payment_method", method.String()))
	return sheet, nil
}

// Save persists the sheet through the gateway, creating it on first save and
// updating it afterwards. Saving never changes the status; the server
// response is merged back so the local model carries the assigned identity,
// sheet number and audit fields.
func (s *ReceiptSheetService) Save(ctx context.Context, session Session, sheet *treasury.ReceiptSheet) error {
	if err := s.machine.GuardSave(sheet, session.Capabilities); err != nil {
		return err
	}

	payload, err := sheet.BuildPayload()
	if err != nil {
		return err
	}

	var remote *treasury.ReceiptSheet
	if sheet.IsPersisted() {
		remote, err = s.gateway.UpdateSheet(ctx, sheet.ID, payload)
	} else {
		remote, err = s.gateway.CreateSheet(ctx, sheet.CompanyID, payload)
	}
	if err != nil {
		s.logger.Warn("failed to save receipt sheet",
			zap.String("sheet_id", sheet.ID.String()),
			zap.Error(err))
		return err
	}

	sheet.ApplyServerState(remote)
	s.publishEvents(ctx, sheet)
	s.markHistoryStale(ctx, sheet)

	s.logger.Info("saved receipt sheet",
		zap.String("sheet_id", sheet.ID.String()),
		zap.String("sheet_number", sheet.SheetNumber))
	return nil
}

// Submit moves a saved draft into pending_validation. All submit guards run
// locally first; the status flips only once the gateway confirms.
func (s *ReceiptSheetService) Submit(ctx context.Context, session Session, sheet *treasury.ReceiptSheet) error {
	if err := s.machine.GuardSubmit(sheet); err != nil {
		return err
	}

	remote, err := s.gateway.SubmitSheet(ctx, sheet.ID)
	if err != nil {
		s.logger.Warn("failed to submit receipt sheet",
			zap.String("sheet_id", sheet.ID.String()),
			zap.Error(err))
		return err
	}

	sheet.MarkSubmitted()
	sheet.ApplyServerState(remote)
	s.publishEvents(ctx, sheet)
	s.markHistoryStale(ctx, sheet)

	s.logger.Info("submitted receipt sheet",
		zap.String("sheet_id", sheet.ID.String()),
		zap.String("sheet_number", sheet.SheetNumber))
	return nil
}

// Validate approves a submitted sheet. Requires the validate capability; a
// check payment additionally needs its check reference. On success the
// backend's validation metadata (timestamp, validator, treasury operation
// reference) is recorded on the sheet.
func (s *ReceiptSheetService) Validate(ctx context.Context, session Session, sheet *treasury.ReceiptSheet) error {
	if err := s.machine.GuardValidate(sheet, session.Capabilities); err != nil {
		return err
	}

	remote, err := s.gateway.ValidateSheet(ctx, sheet.ID)
	if err != nil {
		s.logger.Warn("failed to validate receipt sheet",
			zap.String("sheet_id", sheet.ID.String()),
			zap.Error(err))
		return err
	}

	validatedAt := time.Now()
	validatedBy := session.UserID
	if remote.ValidatedAt != nil {
		validatedAt = *remote.ValidatedAt
	}
	if remote.ValidatedBy != nil {
		validatedBy = *remote.ValidatedBy
	}
	sheet.MarkValidated(validatedAt, validatedBy, remote.TreasuryOperationRef)
	sheet.ApplyServerState(remote)
	s.publishEvents(ctx, sheet)
	s.markHistoryStale(ctx, sheet)

	s.logger.Info("validated receipt sheet",
		zap.String("sheet_id", sheet.ID.String()),
		zap.String("sheet_number", sheet.SheetNumber),
		zap.String("validated_by", validatedBy.String()))
	return nil
}

// Reject refuses a submitted sheet with a mandatory reason
func (s *ReceiptSheetService) Reject(ctx context.Context, session Session, sheet *treasury.ReceiptSheet, reason string) error {
	if err := s.machine.GuardReject(sheet, reason); err != nil {
		return err
	}

	remote, err := s.gateway.RejectSheet(ctx, sheet.ID, reason)
	if err != nil {
		s.logger.Warn("failed to reject receipt sheet",
			zap.String("sheet_id", sheet.ID.String()),
			zap.Error(err))
		return err
	}

	sheet.MarkRejected(reason)
	sheet.ApplyServerState(remote)
	s.publishEvents(ctx, sheet)
	s.markHistoryStale(ctx, sheet)

	s.logger.Info("rejected receipt sheet",
		zap.String("sheet_id", sheet.ID.String()),
		zap.String("reason", reason))
	return nil
}

// Cancel abandons a draft. A draft that was never saved is cancelled purely
// locally; a saved one is updated server-side so the audit trail records the
// cancellation.
func (s *ReceiptSheetService) Cancel(ctx context.Context, session Session, sheet *treasury.ReceiptSheet) error {
	if err := s.machine.GuardCancel(sheet); err != nil {
		return err
	}

	if sheet.IsPersisted() {
		payload, err := sheet.BuildPayload()
		if err != nil {
			return err
		}
		payload.Status = treasury.SheetStatusCancelled.String()

		remote, err := s.gateway.UpdateSheet(ctx, sheet.ID, payload)
		if err != nil {
			s.logger.Warn("failed to cancel receipt sheet",
				zap.String("sheet_id", sheet.ID.String()),
				zap.Error(err))
			return err
		}
		sheet.MarkCancelled()
		sheet.ApplyServerState(remote)
		s.publishEvents(ctx, sheet)
		s.markHistoryStale(ctx, sheet)
	} else {
		sheet.MarkCancelled()
		s.publishEvents(ctx, sheet)
	}

	s.logger.Info("cancelled receipt sheet",
		zap.String("sheet_id", sheet.ID.String()))
	return nil
}

// AddInvoice links an open invoice to the sheet and returns the advisory
// payment-rule result for the new basket. Rule violations never block the
// link; they become hard failures only at submit or validate time.
func (s *ReceiptSheetService) AddInvoice(
	ctx context.Context,
	session Session,
	sheet *treasury.ReceiptSheet,
	invoice treasury.InvoiceSummary,
) (treasury.ValidationResult, error) {
	if err := s.machine.GuardEdit(sheet, session.Capabilities); err != nil {
		return treasury.ValidationResult{}, err
	}
	if err := s.calculator.AddInvoice(sheet, invoice); err != nil {
		return treasury.ValidationResult{}, err
	}
	s.publishEvents(ctx, sheet)
	return s.validator.Validate(sheet), nil
}

// RemoveInvoice detaches an invoice from the sheet, re-clamps the paid
// amount and returns the advisory payment-rule result for the new basket.
func (s *ReceiptSheetService) RemoveInvoice(
	ctx context.Context,
	session Session,
	sheet *treasury.ReceiptSheet,
	invoiceID uuid.UUID,
) (treasury.ValidationResult, error) {
	if err := s.machine.GuardEdit(sheet, session.Capabilities); err != nil {
		return treasury.ValidationResult{}, err
	}
	if err := s.calculator.RemoveInvoice(sheet, invoiceID); err != nil {
		return treasury.ValidationResult{}, err
	}
	s.publishEvents(ctx, sheet)
	return s.validator.Validate(sheet), nil
}

// SelectTreasuryAccount sets the credited cash/bank account. A currency
// mismatch against the sheet currency comes back as a warning for the caller
// to surface; it never blocks the selection, and it is re-reported on every
// selection, not just the first.
func (s *ReceiptSheetService) SelectTreasuryAccount(
	ctx context.Context,
	session Session,
	sheet *treasury.ReceiptSheet,
	account treasury.TreasuryAccount,
) (*treasury.CurrencyWarning, error) {
	if err := s.machine.GuardEdit(sheet, session.Capabilities); err != nil {
		return nil, err
	}
	warning, err := sheet.SetTreasuryAccount(account)
	if err != nil {
		return nil, err
	}
	if warning != nil {
		s.logger.Info("treasury account currency differs from sheet currency",
			zap.String("sheet_currency", string(warning.SheetCurrency)),
			zap.String("account_currency", string(warning.AccountCurrency)))
	}
	return warning, nil
}

// CheckRules runs the payment-intent rules for display purposes without
// mutating anything
func (s *ReceiptSheetService) CheckRules(sheet *treasury.ReceiptSheet) treasury.ValidationResult {
	return s.validator.Validate(sheet)
}

// Get loads the current server state of a sheet
func (s *ReceiptSheetService) Get(ctx context.Context, id uuid.UUID) (*treasury.ReceiptSheet, error) {
	return s.gateway.FetchSheet(ctx, id)
}

// History loads the sheet's audit trail from the backend
func (s *ReceiptSheetService) History(ctx context.Context, id uuid.UUID) ([]treasury.HistoryEntry, error) {
	return s.gateway.FetchSheetHistory(ctx, id)
}

// ListSheets lists the company's sheets
func (s *ReceiptSheetService) ListSheets(ctx context.Context, session Session, filter treasury.SheetFilter) ([]treasury.ReceiptSheet, error) {
	return s.gateway.ListSheets(ctx, session.CompanyID, filter)
}

// ListOpenInvoices lists the invoices still eligible for allocation
func (s *ReceiptSheetService) ListOpenInvoices(ctx context.Context, session Session, filter treasury.InvoiceFilter) ([]treasury.InvoiceSummary, error) {
	return s.gateway.ListOpenInvoices(ctx, session.CompanyID, filter)
}

// ListThirdParties lists the third parties a sheet can reference
func (s *ReceiptSheetService) ListThirdParties(ctx context.Context, session Session, filter treasury.ThirdPartyFilter) ([]treasury.ThirdPartySummary, error) {
	return s.gateway.ListThirdParties(ctx, session.CompanyID, filter)
}

// CompanyCurrency resolves the company's default currency
func (s *ReceiptSheetService) CompanyCurrency(ctx context.Context, session Session) (treasury.CompanyCurrency, error) {
	return s.gateway.ResolveCompanyCurrency(ctx, session.CompanyID)
}

// publishEvents drains the sheet's pending domain events onto the bus.
// Publishing failures are logged, not propagated: the operation itself
// already succeeded.
func (s *ReceiptSheetService) publishEvents(ctx context.Context, sheet *treasury.ReceiptSheet) {
	events := sheet.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish domain events",
			zap.String("sheet_id", sheet.ID.String()),
			zap.Int("event_count", len(events)),
			zap.Error(err))
	}
	sheet.ClearDomainEvents()
}

// markHistoryStale signals that the server-side audit trail changed and
// should be reloaded
func (s *ReceiptSheetService) markHistoryStale(ctx context.Context, sheet *treasury.ReceiptSheet) {
	event := treasury.NewHistoryStaleEvent(sheet)
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish history-stale event",
			zap.String("sheet_id", sheet.ID.String()),
			zap.Error(err))
	}
}
