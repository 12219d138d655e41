package treasury

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tresoria/backend/internal/domain/shared"
	"github.com/tresoria/backend/internal/domain/shared/valueobject"
	"github.com/tresoria/backend/internal/domain/treasury"
)

// =============================================================================
// Mock Gateway
// =============================================================================

// MockGateway is a mock implementation of the treasury gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateSheet(ctx context.Context, companyID uuid.UUID, payload treasury.SheetPayload) (*treasury.ReceiptSheet, error) {
	args := m.Called(ctx, companyID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.ReceiptSheet), args.Error(1)
}

func (m *MockGateway) UpdateSheet(ctx context.Context, id uuid.UUID, payload treasury.SheetPayload) (*treasury.ReceiptSheet, error) {
	args := m.Called(ctx, id, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.ReceiptSheet), args.Error(1)
}

func (m *MockGateway) SubmitSheet(ctx context.Context, id uuid.UUID) (*treasury.ReceiptSheet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.ReceiptSheet), args.Error(1)
}

func (m *MockGateway) ValidateSheet(ctx context.Context, id uuid.UUID) (*treasury.ReceiptSheet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.ReceiptSheet), args.Error(1)
}

func (m *MockGateway) RejectSheet(ctx context.Context, id uuid.UUID, reason string) (*treasury.ReceiptSheet, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.ReceiptSheet), args.Error(1)
}

func (m *MockGateway) FetchSheet(ctx context.Context, id uuid.UUID) (*treasury.ReceiptSheet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.ReceiptSheet), args.Error(1)
}

func (m *MockGateway) FetchSheetHistory(ctx context.Context, id uuid.UUID) ([]treasury.HistoryEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]treasury.HistoryEntry), args.Error(1)
}

func (m *MockGateway) ListSheets(ctx context.Context, companyID uuid.UUID, filter treasury.SheetFilter) ([]treasury.ReceiptSheet, error) {
	args := m.Called(ctx, companyID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]treasury.ReceiptSheet), args.Error(1)
}

func (m *MockGateway) ListOpenInvoices(ctx context.Context, companyID uuid.UUID, filter treasury.InvoiceFilter) ([]treasury.InvoiceSummary, error) {
	args := m.Called(ctx, companyID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]treasury.InvoiceSummary), args.Error(1)
}

func (m *MockGateway) ListThirdParties(ctx context.Context, companyID uuid.UUID, filter treasury.ThirdPartyFilter) ([]treasury.ThirdPartySummary, error) {
	args := m.Called(ctx, companyID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]treasury.ThirdPartySummary), args.Error(1)
}

func (m *MockGateway) ResolveCompanyCurrency(ctx context.Context, companyID uuid.UUID) (treasury.CompanyCurrency, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).(treasury.CompanyCurrency), args.Error(1)
}

// recordingEventBus captures published events for assertions
type recordingEventBus struct {
	events []shared.DomainEvent
}

func (b *recordingEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.events = append(b.events, events...)
	return nil
}

func (b *recordingEventBus) eventTypes() []string {
	types := make([]string, 0, len(b.events))
	for _, e := range b.events {
		types = append(types, e.EventType())
	}
	return types
}

// =============================================================================
// Test helpers
// =============================================================================

func newTestService(gateway *MockGateway) (*ReceiptSheetService, *recordingEventBus) {
	bus := &recordingEventBus{}
	return NewReceiptSheetService(gateway, bus, zap.NewNop()), bus
}

func testSession(caps treasury.Capabilities) Session {
	return Session{
		UserID:       uuid.New(),
		Username:     "a.diallo",
		CompanyID:    uuid.New(),
		Capabilities: caps,
	}
}

func eurCurrency() treasury.CompanyCurrency {
	return treasury.CompanyCurrency{ID: uuid.New(), Code: valueobject.EUR, Symbol: "€"}
}

// completeDraft builds an unsaved draft with every required field filled
func completeDraft(t *testing.T, session Session, intent treasury.PaymentIntent) *treasury.ReceiptSheet {
	t.Helper()
	sheet, err := treasury.NewReceiptSheet(session.CompanyID, intent, treasury.PaymentMethodTransfer, eurCurrency(), time.Now())
	require.NoError(t, err)
	require.NoError(t, sheet.SetPayer(treasury.PayerTypeCustomer, "C-0042", "Kouadio SARL", uuid.New(), nil))
	_, err = sheet.SetTreasuryAccount(treasury.TreasuryAccount{ID: uuid.New(), Label: "Banque principale", Currency: valueobject.EUR})
	require.NoError(t, err)
	require.NoError(t, sheet.SetAmountPaid(decimal.NewFromInt(500)))
	sheet.ClearDomainEvents()
	return sheet
}

func savedDraft(t *testing.T, session Session, intent treasury.PaymentIntent) *treasury.ReceiptSheet {
	t.Helper()
	sheet := completeDraft(t, session, intent)
	sheet.ID = uuid.New()
	return sheet
}

// serverEcho fabricates the backend's response for a sheet
func serverEcho(sheet *treasury.ReceiptSheet, status treasury.SheetStatus) *treasury.ReceiptSheet {
	remote := &treasury.ReceiptSheet{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(sheet.CompanyID),
		SheetNumber:          "ENC-2026-0001",
		Status:               status,
	}
	if sheet.IsPersisted() {
		remote.ID = sheet.ID
	}
	return remote
}

func openInvoice(number string, total float64) treasury.InvoiceSummary {
	return treasury.InvoiceSummary{
		ID:                 uuid.New(),
		Number:             number,
		ThirdPartyCode:     "C-0042",
		ThirdPartyName:     "Kouadio SARL",
		TotalAmount:        decimal.NewFromFloat(total),
		OutstandingBalance: decimal.NewFromFloat(total),
		Status:             treasury.InvoiceStatusOpen,
	}
}

// =============================================================================
// NewDraft
// =============================================================================

func TestReceiptSheetService_NewDraft(t *testing.T) {
	session := testSession(treasury.Capabilities{})

	t.Run("resolves the company currency once", func(t *testing.T) {
		gateway := &MockGateway{}
		service, _ := newTestService(gateway)
		currency := eurCurrency()
		gateway.On("ResolveCompanyCurrency", mock.Anything, session.CompanyID).Return(currency, nil).Once()

		sheet, err := service.NewDraft(context.Background(), session, treasury.PaymentIntentAdvance, treasury.PaymentMethodCash, time.Now())
		require.NoError(t, err)
		assert.Equal(t, currency, sheet.Currency)
		assert.Equal(t, treasury.SheetStatusDraft, sheet.Status)
		assert.False(t, sheet.IsPersisted())
		gateway.AssertExpectations(t)
	})

	t.Run("propagates a currency resolution failure", func(t *testing.T) {
		gateway := &MockGateway{}
		service, _ := newTestService(gateway)
		gateway.On("ResolveCompanyCurrency", mock.Anything, session.CompanyID).
			Return(treasury.CompanyCurrency{}, shared.NewTransportError("NETWORK_ERROR", "connection refused"))

		_, err := service.NewDraft(context.Background(), session, treasury.PaymentIntentAdvance, treasury.PaymentMethodCash, time.Now())
		require.Error(t, err)
		assert.Equal(t, shared.KindTransport, shared.KindOf(err))
	})
}

// =============================================================================
// Save
// =============================================================================

func TestReceiptSheetService_Save(t *testing.T) {
	session := testSession(treasury.Capabilities{})

	t.Run("first save creates the sheet and merges the assigned identity", func(t *testing.T) {
		gateway := &MockGateway{}
		service, bus := newTestService(gateway)
		sheet := completeDraft(t, session, treasury.PaymentIntentAdvance)
		remote := serverEcho(sheet, treasury.SheetStatusDraft)
		gateway.On("CreateSheet", mock.Anything, session.CompanyID, mock.Anything).Return(remote, nil)
		gateway.On("FetchSheetHistory", mock.Anything, mock.Anything).Return([]treasury.HistoryEntry{}, nil).Maybe()

		require.NoError(t, service.Save(context.Background(), session, sheet))

		assert.Equal(t, remote.ID, sheet.ID)
		assert.Equal(t, "ENC-2026-0001", sheet.SheetNumber)
		assert.Equal(t, treasury.SheetStatusDraft, sheet.Status)
		assert.Contains(t, bus.eventTypes(), treasury.EventReceiptSheetSaved)
		assert.Contains(t, bus.eventTypes(), treasury.EventHistoryStale)
		gateway.AssertNotCalled(t, "UpdateSheet", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("subsequent saves update in place without a saved event", func(t *testing.T) {
		gateway := &MockGateway{}
		service, bus := newTestService(gateway)
		sheet := savedDraft(t, session, treasury.PaymentIntentAdvance)
		remote := serverEcho(sheet, treasury.SheetStatusDraft)
		gateway.On("UpdateSheet", mock.Anything, sheet.ID, mock.Anything).Return(remote, nil)

		require.NoError(t, service.Save(context.Background(), session, sheet))

		assert.NotContains(t, bus.eventTypes(), treasury.EventReceiptSheetSaved)
		assert.Contains(t, bus.eventTypes(), treasury.EventHistoryStale)
		gateway.AssertNotCalled(t, "CreateSheet", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing fields fail before any gateway call", func(t *testing.T) {
		gateway := &MockGateway{}
		service, bus := newTestService(gateway)
		sheet, err := treasury.NewReceiptSheet(session.CompanyID, treasury.PaymentIntentAdvance, treasury.PaymentMethodCash, eurCurrency(), time.Now())
		require.NoError(t, err)

		err = service.Save(context.Background(), session, sheet)
		assert.Equal(t, "MISSING_REQUIRED_FIELDS", shared.CodeOf(err))
		assert.Empty(t, bus.events)
		gateway.AssertNotCalled(t, "CreateSheet", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("a gateway failure leaves the sheet untouched", func(t *testing.T) {
		gateway := &MockGateway{}
		service, bus := newTestService(gateway)
		sheet := completeDraft(t, session, treasury.PaymentIntentAdvance)
		gateway.On("CreateSheet", mock.Anything, session.CompanyID, mock.Anything).
			Return(nil, shared.NewTransportError("TIMEOUT", "request timed out"))

		err := service.Save(context.Background(), session, sheet)
		require.Error(t, err)
		assert.True(t, shared.IsRetryable(err))
		assert.False(t, sheet.IsPersisted())
		assert.Empty(t, bus.events)
	})
}

// =============================================================================
// Submit
// =============================================================================

func TestReceiptSheetService_Submit(t *testing.T) {
	session := testSession(treasury.Capabilities{})

	t.Run("submits a saved draft", func(t *testing.T) {
		gateway := &MockGateway{}
		service, bus := newTestService(gateway)
		sheet := savedDraft(t, session, treasury.PaymentIntentAdvance)
		remote := serverEcho(sheet, treasury.SheetStatusPendingValidation)
		gateway.On("SubmitSheet", mock.Anything, sheet.ID).Return(remote, nil)

		require.NoError(t, service.Submit(context.Background(), session, sheet))

		assert.Equal(t, treasury.SheetStatusPendingValidation, sheet.Status)
		assert.Contains(t, bus.eventTypes(), treasury.EventReceiptSheetSubmitted)
		assert.Contains(t, bus.eventTypes(), treasury.EventHistoryStale)
	})

	t.Run("an unsaved draft cannot be submitted", func(t *testing.T) {
		gateway := &MockGateway{}
		service, _ := newTestService(gateway)
		sheet := completeDraft(t, session, treasury.PaymentIntentAdvance)

		err := service.Submit(context.Background(), session, sheet)
		assert.Equal(t, "NOT_SAVED", shared.CodeOf(err))
		gateway.AssertNotCalled(t, "SubmitSheet", mock.Anything, mock.Anything)
	})

	t.Run("payment rule failures block before the gateway", func(t *testing.T) {
		gateway := &MockGateway{}
		service, _ := newTestService(gateway)
		sheet := savedDraft(t, session, treasury.PaymentIntentAdvance)
		_, err := service.AddInvoice(context.Background(), session, sheet, openInvoice("F-001", 1000))
		require.NoError(t, err)

		err = service.Submit(context.Background(), session, sheet)
		assert.Equal(t, "PAYMENT_RULES_FAILED", shared.CodeOf(err))
		gateway.AssertNotCalled(t, "SubmitSheet", mock.Anything, mock.Anything)
	})

	t.Run("a gateway failure leaves the status unchanged", func(t *testing.T) {
		gateway := &MockGateway{}
		service, bus := newTestService(gateway)
		sheet := savedDraft(t, session, treasury.PaymentIntentAdvance)
		gateway.On("SubmitSheet", mock.Anything, sheet.ID).
			Return(nil, shared.NewTransportError("TIMEOUT", "request timed out"))

		err := service.Submit(context.Background(), session, sheet)
		require.Error(t, err)
		assert.Equal(t, treasury.SheetStatusDraft, sheet.Status)
		assert.Empty(t, bus.events)
	})
}

// =============================================================================
// Validate
// =============================================================================

func TestReceiptSheetService_Validate(t *testing.T) {
	elevated := testSession(treasury.Capabilities{CanValidate: true})

	pendingSheet := func(t *testing.T) *treasury.ReceiptSheet {
		sheet := savedDraft(t, elevated, treasury.PaymentIntentAdvance)
		sheet.Status = treasury.SheetStatusPendingValidation
		return sheet
	}

	t.Run("records the backend validation metadata", func(t *testing.T) {
		gateway := &MockGateway{}
		service, bus := newTestService(gateway)
		sheet := pendingSheet(t)

		validatedAt := time.Now().Add(-time.Minute)
		validatedBy := uuid.New()
		remote := serverEcho(sheet, treasury.SheetStatusValidated)
		remote.ValidatedAt = &validatedAt
		remote.ValidatedBy = &validatedBy
		remote.TreasuryOperationRef = "OP-7781"
		gateway.On("ValidateSheet", mock.Anything, sheet.ID).Return(remote, nil)

		require.NoError(t, service.Validate(context.Background(), elevated, sheet))

		assert.Equal(t, treasury.SheetStatusValidated, sheet.Status)
		require.NotNil(t, sheet.ValidatedAt)
		assert.True(t, sheet.ValidatedAt.Equal(validatedAt))
		assert.Equal(t, validatedBy, *sheet.ValidatedBy)
		assert.Equal(t, "OP-7781", sheet.TreasuryOperationRef)
		assert.Contains(t, bus.eventTypes(), treasury.EventReceiptSheetValidated)
		assert.Contains(t, bus.eventTypes(), treasury.EventHistoryStale)
	})

	t.Run("missing capability never reaches the gateway", func(t *testing.T) {
		gateway := &MockGateway{}
		service, _ := newTestService(gateway)
		sheet := pendingSheet(t)
		restricted := testSession(treasury.Capabilities{})

		err := service.Validate(context.Background(), restricted, sheet)
		assert.Equal(t, "PERMISSION_DENIED", shared.CodeOf(err))
		assert.Equal(t, treasury.SheetStatusPendingValidation, sheet.Status)
		gateway.AssertNotCalled(t, "ValidateSheet", mock.Anything, mock.Anything)
	})

	t.Run("check payment without reference is blocked locally", func(t *testing.T) {
		gateway := &MockGateway{}
		service, _ := newTestService(gateway)
		sheet := pendingSheet(t)
		sheet.PaymentMethod = treasury.PaymentMethodCheck
		sheet.PaymentRefs = treasury.PaymentReferences{}

		err := service.Validate(context.Background(), elevated, sheet)
		assert.Equal(t, "CHECK_REFERENCE_REQUIRED", shared.CodeOf(err))
		gateway.AssertNotCalled(t, "ValidateSheet", mock.Anything, mock.Anything)
	})
}

// =============================================================================
// Reject / Cancel
// =============================================================================

func TestReceiptSheetService_Reject(t *testing.T) {
	session := testSession(treasury.Capabilities{CanValidate: true})
	gateway := &MockGateway{}
	service, bus := newTestService(gateway)

	sheet := savedDraft(t, session, treasury.PaymentIntentAdvance)
	sheet.Status = treasury.SheetStatusPendingValidation
	remote := serverEcho(sheet, treasury.SheetStatusRejected)
	gateway.On("RejectSheet", mock.Anything, sheet.ID, "supporting documents missing").Return(remote, nil)

	require.NoError(t, service.Reject(context.Background(), session, sheet, "supporting documents missing"))

	assert.Equal(t, treasury.SheetStatusRejected, sheet.Status)
	assert.Equal(t, "supporting documents missing", sheet.RejectionReason)
	assert.Contains(t, bus.eventTypes(), treasury.EventReceiptSheetRejected)

	t.Run("blank reason never reaches the gateway", func(t *testing.T) {
		other := savedDraft(t, session, treasury.PaymentIntentAdvance)
		other.Status = treasury.SheetStatusPendingValidation

		err := service.Reject(context.Background(), session, other, "  ")
		assert.Equal(t, "MISSING_REJECTION_REASON", shared.CodeOf(err))
	})
}

func TestReceiptSheetService_Cancel(t *testing.T) {
	session := testSession(treasury.Capabilities{})

	t.Run("an unsaved draft is cancelled locally", func(t *testing.T) {
		gateway := &MockGateway{}
		service, bus := newTestService(gateway)
		sheet := completeDraft(t, session, treasury.PaymentIntentAdvance)

		require.NoError(t, service.Cancel(context.Background(), session, sheet))

		assert.Equal(t, treasury.SheetStatusCancelled, sheet.Status)
		assert.Contains(t, bus.eventTypes(), treasury.EventReceiptSheetCancelled)
		assert.NotContains(t, bus.eventTypes(), treasury.EventHistoryStale)
		gateway.AssertNotCalled(t, "UpdateSheet", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("a saved draft is cancelled through the gateway", func(t *testing.T) {
		gateway := &MockGateway{}
		service, bus := newTestService(gateway)
		sheet := savedDraft(t, session, treasury.PaymentIntentAdvance)
		remote := serverEcho(sheet, treasury.SheetStatusCancelled)
		gateway.On("UpdateSheet", mock.Anything, sheet.ID, mock.MatchedBy(func(p treasury.SheetPayload) bool {
			return p.Status == treasury.SheetStatusCancelled.String()
		})).Return(remote, nil)

		require.NoError(t, service.Cancel(context.Background(), session, sheet))

		assert.Equal(t, treasury.SheetStatusCancelled, sheet.Status)
		assert.Contains(t, bus.eventTypes(), treasury.EventHistoryStale)
	})

	t.Run("a submitted sheet can no longer be cancelled", func(t *testing.T) {
		gateway := &MockGateway{}
		service, _ := newTestService(gateway)
		sheet := savedDraft(t, session, treasury.PaymentIntentAdvance)
		sheet.Status = treasury.SheetStatusPendingValidation

		err := service.Cancel(context.Background(), session, sheet)
		assert.Equal(t, "SHEET_PENDING_VALIDATION", shared.CodeOf(err))
	})
}

// =============================================================================
// Invoice basket
// =============================================================================

func TestReceiptSheetService_AddInvoice(t *testing.T) {
	session := testSession(treasury.Capabilities{})
	gateway := &MockGateway{}
	service, bus := newTestService(gateway)

	t.Run("links the invoice and returns the advisory rule result", func(t *testing.T) {
		// Advance sheets must not carry invoices: the link still goes
		// through, only the advisory result flags it.
		sheet := savedDraft(t, session, treasury.PaymentIntentAdvance)

		result, err := service.AddInvoice(context.Background(), session, sheet, openInvoice("F-001", 1000))
		require.NoError(t, err)
		assert.Len(t, sheet.LinkedInvoices, 1)
		require.False(t, result.Valid)
		assert.Equal(t, "ADVANCE_WITH_INVOICES", result.Violations[0].Code)
		assert.Contains(t, bus.eventTypes(), treasury.EventInvoiceLinked)
	})

	t.Run("a settled basket reports valid", func(t *testing.T) {
		sheet := savedDraft(t, session, treasury.PaymentIntentSettlement)
		require.NoError(t, sheet.SetAmountPaid(decimal.NewFromInt(1000)))

		result, err := service.AddInvoice(context.Background(), session, sheet, openInvoice("F-002", 1000))
		require.NoError(t, err)
		assert.True(t, result.Valid)
	})

	t.Run("an unlinkable invoice is refused", func(t *testing.T) {
		sheet := savedDraft(t, session, treasury.PaymentIntentPartial)
		paid := openInvoice("F-003", 100)
		paid.Status = treasury.InvoiceStatusPaid
		paid.OutstandingBalance = decimal.Zero

		_, err := service.AddInvoice(context.Background(), session, sheet, paid)
		assert.Equal(t, "INVOICE_NOT_LINKABLE", shared.CodeOf(err))
		assert.Empty(t, sheet.LinkedInvoices)
	})

	t.Run("editing a pending sheet is blocked", func(t *testing.T) {
		sheet := savedDraft(t, session, treasury.PaymentIntentPartial)
		sheet.Status = treasury.SheetStatusPendingValidation

		_, err := service.AddInvoice(context.Background(), session, sheet, openInvoice("F-004", 100))
		assert.Equal(t, "SHEET_PENDING_VALIDATION", shared.CodeOf(err))
	})
}

func TestReceiptSheetService_RemoveInvoice(t *testing.T) {
	session := testSession(treasury.Capabilities{})
	gateway := &MockGateway{}
	service, bus := newTestService(gateway)

	sheet := savedDraft(t, session, treasury.PaymentIntentPartial)
	invoice := openInvoice("F-001", 300)
	_, err := service.AddInvoice(context.Background(), session, sheet, invoice)
	require.NoError(t, err)
	require.NoError(t, sheet.SetAmountPaid(decimal.NewFromInt(250)))

	result, err := service.RemoveInvoice(context.Background(), session, sheet, invoice.ID)
	require.NoError(t, err)

	// Removing the only invoice clamps the paid amount to zero
	assert.Empty(t, sheet.LinkedInvoices)
	assert.True(t, sheet.AmountPaid.IsZero(), "got %s", sheet.AmountPaid)
	assert.False(t, result.Valid)
	assert.Contains(t, bus.eventTypes(), treasury.EventInvoiceUnlinked)

	_, err = service.RemoveInvoice(context.Background(), session, sheet, invoice.ID)
	assert.Equal(t, "INVOICE_NOT_LINKED", shared.CodeOf(err))
}

// =============================================================================
// Treasury account selection
// =============================================================================

func TestReceiptSheetService_SelectTreasuryAccount(t *testing.T) {
	session := testSession(treasury.Capabilities{})
	gateway := &MockGateway{}
	service, _ := newTestService(gateway)

	sheet := completeDraft(t, session, treasury.PaymentIntentAdvance)

	t.Run("matching currency produces no warning", func(t *testing.T) {
		warning, err := service.SelectTreasuryAccount(context.Background(), session, sheet,
			treasury.TreasuryAccount{ID: uuid.New(), Label: "Caisse", Currency: valueobject.EUR})
		require.NoError(t, err)
		assert.Nil(t, warning)
	})

	t.Run("mismatched currency warns on every selection", func(t *testing.T) {
		account := treasury.TreasuryAccount{ID: uuid.New(), Label: "Compte XOF", Currency: valueobject.XOF}

		for i := 0; i < 2; i++ {
			warning, err := service.SelectTreasuryAccount(context.Background(), session, sheet, account)
			require.NoError(t, err)
			require.NotNil(t, warning, "selection %d", i)
			assert.Equal(t, valueobject.EUR, warning.SheetCurrency)
			assert.Equal(t, valueobject.XOF, warning.AccountCurrency)
		}
		assert.Equal(t, account.ID, sheet.TreasuryAccount.ID)
	})
}

// =============================================================================
// History refresh
// =============================================================================

func TestHistoryRefreshHandler(t *testing.T) {
	session := testSession(treasury.Capabilities{})
	sheet := savedDraft(t, session, treasury.PaymentIntentAdvance)

	entries := []treasury.HistoryEntry{
		{ID: uuid.New(), SheetID: sheet.ID, Timestamp: time.Now(), Action: "created", Actor: "a.diallo"},
		{ID: uuid.New(), SheetID: sheet.ID, Timestamp: time.Now(), Action: "submitted", Actor: "a.diallo"},
	}

	t.Run("reloads the trail on a stale event", func(t *testing.T) {
		gateway := &MockGateway{}
		gateway.On("FetchSheetHistory", mock.Anything, sheet.ID).Return(entries, nil)
		handler := NewHistoryRefreshHandler(gateway, zap.NewNop())

		require.NoError(t, handler.Handle(context.Background(), treasury.NewHistoryStaleEvent(sheet)))

		cached, ok := handler.Entries(sheet.ID)
		require.True(t, ok)
		assert.Len(t, cached, 2)
	})

	t.Run("only subscribes to stale events", func(t *testing.T) {
		handler := NewHistoryRefreshHandler(&MockGateway{}, zap.NewNop())
		assert.Equal(t, []string{treasury.EventHistoryStale}, handler.EventTypes())
	})

	t.Run("a fetch failure keeps the previous snapshot", func(t *testing.T) {
		gateway := &MockGateway{}
		gateway.On("FetchSheetHistory", mock.Anything, sheet.ID).Return(entries, nil).Once()
		gateway.On("FetchSheetHistory", mock.Anything, sheet.ID).
			Return(nil, shared.NewTransportError("TIMEOUT", "request timed out"))
		handler := NewHistoryRefreshHandler(gateway, zap.NewNop())

		require.NoError(t, handler.Handle(context.Background(), treasury.NewHistoryStaleEvent(sheet)))
		require.Error(t, handler.Handle(context.Background(), treasury.NewHistoryStaleEvent(sheet)))

		cached, ok := handler.Entries(sheet.ID)
		require.True(t, ok)
		assert.Len(t, cached, 2)
	})
}
