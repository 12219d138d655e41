package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apptreasury "github.com/tresoria/backend/internal/application/treasury"
	"github.com/tresoria/backend/internal/domain/shared"
	"github.com/tresoria/backend/internal/domain/treasury"
	"github.com/tresoria/backend/internal/interfaces/http/dto"
	"github.com/tresoria/backend/internal/interfaces/http/middleware"
)

// ReceiptSheetHandler serves the receipt-sheet lifecycle endpoints
type ReceiptSheetHandler struct {
	BaseHandler
	service *apptreasury.ReceiptSheetService
	logger  *zap.Logger
}

// NewReceiptSheetHandler creates a new ReceiptSheetHandler
func NewReceiptSheetHandler(service *apptreasury.ReceiptSheetService, logger *zap.Logger) *ReceiptSheetHandler {
	return &ReceiptSheetHandler{service: service, logger: logger}
}

// Create opens a new draft from the request body and saves it in one go.
// The payment intent and the company currency are frozen here.
func (h *ReceiptSheetHandler) Create(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		h.Error(c, 401, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req dto.SheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	sheet, err := h.service.NewDraft(c.Request.Context(), session,
		treasury.PaymentIntent(req.PaymentIntent),
		treasury.PaymentMethod(req.PaymentMethod),
		req.EncashmentDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	warning, err := h.applyRequest(c, session, sheet, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := h.service.Save(c.Request.Context(), session, sheet); err != nil {
		h.HandleError(c, err)
		return
	}

	rules := h.service.CheckRules(sheet)
	h.Created(c, dto.SheetOperationResponse{
		Sheet:   dto.NewSheetResponse(sheet),
		Rules:   &rules,
		Warning: warning,
	})
}

// Update applies the request body to an existing sheet and saves it
func (h *ReceiptSheetHandler) Update(c *gin.Context) {
	session, sheet, ok := h.loadScopedSheet(c)
	if !ok {
		return
	}

	var req dto.SheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	warning, err := h.applyRequest(c, session, sheet, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := h.service.Save(c.Request.Context(), session, sheet); err != nil {
		h.HandleError(c, err)
		return
	}

	rules := h.service.CheckRules(sheet)
	h.Success(c, dto.SheetOperationResponse{
		Sheet:   dto.NewSheetResponse(sheet),
		Rules:   &rules,
		Warning: warning,
	})
}

// Get returns the current state of a sheet
func (h *ReceiptSheetHandler) Get(c *gin.Context) {
	_, sheet, ok := h.loadScopedSheet(c)
	if !ok {
		return
	}
	h.Success(c, dto.NewSheetResponse(sheet))
}

// List returns the company's sheets
func (h *ReceiptSheetHandler) List(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		h.Error(c, 401, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req dto.ListSheetsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	filter := treasury.SheetFilter{PayerCode: req.PayerCode, Limit: req.Limit}
	if req.Status != "" {
		status := treasury.SheetStatus(req.Status)
		filter.Status = &status
	}
	if req.From != "" {
		from, _ := time.Parse("2006-01-02", req.From)
		filter.FromDate = &from
	}
	if req.To != "" {
		// Include the whole end day
		to, _ := time.Parse("2006-01-02", req.To)
		to = to.Add(24*time.Hour - time.Nanosecond)
		filter.ToDate = &to
	}

	sheets, err := h.service.ListSheets(c.Request.Context(), session, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]dto.SheetResponse, 0, len(sheets))
	for i := range sheets {
		out = append(out, dto.NewSheetResponse(&sheets[i]))
	}
	h.Success(c, out)
}

// History returns the sheet's audit trail
func (h *ReceiptSheetHandler) History(c *gin.Context) {
	_, sheet, ok := h.loadScopedSheet(c)
	if !ok {
		return
	}
	entries, err := h.service.History(c.Request.Context(), sheet.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewHistoryResponse(entries))
}

// Rules runs the payment-intent rules for display without mutating anything
func (h *ReceiptSheetHandler) Rules(c *gin.Context) {
	_, sheet, ok := h.loadScopedSheet(c)
	if !ok {
		return
	}
	h.Success(c, h.service.CheckRules(sheet))
}

// Submit moves a draft into pending_validation
func (h *ReceiptSheetHandler) Submit(c *gin.Context) {
	session, sheet, ok := h.loadScopedSheet(c)
	if !ok {
		return
	}
	if err := h.service.Submit(c.Request.Context(), session, sheet); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSheetResponse(sheet))
}

// Validate approves a submitted sheet
func (h *ReceiptSheetHandler) Validate(c *gin.Context) {
	session, sheet, ok := h.loadScopedSheet(c)
	if !ok {
		return
	}
	if err := h.service.Validate(c.Request.Context(), session, sheet); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSheetResponse(sheet))
}

// Reject refuses a submitted sheet with a mandatory reason
func (h *ReceiptSheetHandler) Reject(c *gin.Context) {
	session, sheet, ok := h.loadScopedSheet(c)
	if !ok {
		return
	}
	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	if err := h.service.Reject(c.Request.Context(), session, sheet, req.Reason); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSheetResponse(sheet))
}

// Cancel abandons a draft sheet
func (h *ReceiptSheetHandler) Cancel(c *gin.Context) {
	session, sheet, ok := h.loadScopedSheet(c)
	if !ok {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), session, sheet); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSheetResponse(sheet))
}

// AddInvoice links an open invoice to the sheet. The advisory rule check
// for the new basket comes back in the response; violations never block
// the link itself.
func (h *ReceiptSheetHandler) AddInvoice(c *gin.Context) {
	session, sheet, ok := h.loadScopedSheet(c)
	if !ok {
		return
	}
	var req dto.AddInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	invoiceID := uuid.MustParse(req.InvoiceID)

	invoice, err := h.findOpenInvoice(c, session, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	rules, err := h.service.AddInvoice(c.Request.Context(), session, sheet, invoice)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := h.service.Save(c.Request.Context(), session, sheet); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.SheetOperationResponse{
		Sheet: dto.NewSheetResponse(sheet),
		Rules: &rules,
	})
}

// RemoveInvoice detaches an invoice from the sheet
func (h *ReceiptSheetHandler) RemoveInvoice(c *gin.Context) {
	session, sheet, ok := h.loadScopedSheet(c)
	if !ok {
		return
	}
	invoiceID, err := uuid.Parse(c.Param("invoiceID"))
	if err != nil {
		h.BadRequest(c, "invoice ID must be a valid UUID")
		return
	}

	rules, err := h.service.RemoveInvoice(c.Request.Context(), session, sheet, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := h.service.Save(c.Request.Context(), session, sheet); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.SheetOperationResponse{
		Sheet: dto.NewSheetResponse(sheet),
		Rules: &rules,
	})
}

// applyRequest pushes the request fields onto the sheet through its
// mutators, so every edit guard runs. The treasury account goes through the
// service to surface the currency mismatch warning.
func (h *ReceiptSheetHandler) applyRequest(
	c *gin.Context,
	session apptreasury.Session,
	sheet *treasury.ReceiptSheet,
	req dto.SheetRequest,
) (*treasury.CurrencyWarning, error) {
	if err := sheet.SetEncashmentDate(req.EncashmentDate); err != nil {
		return nil, err
	}

	var thirdPartyID *uuid.UUID
	if req.ThirdPartyID != "" {
		id := uuid.MustParse(req.ThirdPartyID)
		thirdPartyID = &id
	}
	if err := sheet.SetPayer(
		treasury.PayerType(req.PayerType),
		req.PayerCode,
		req.PayerName,
		uuid.MustParse(req.PayerAccountID),
		thirdPartyID,
	); err != nil {
		return nil, err
	}

	if err := sheet.SetPaymentMethod(treasury.PaymentMethod(req.PaymentMethod), treasury.PaymentReferences{
		CheckNumber:    req.CheckNumber,
		TransferRef:    req.TransferRef,
		MobileMoneyRef: req.MobileMoneyRef,
		CardRef:        req.CardRef,
		DirectDebitRef: req.DirectDebitRef,
		OtherRef:       req.OtherRef,
	}); err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(req.AmountPaid)
	if err != nil {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Amount paid must be a decimal number")
	}
	if err := sheet.SetAmountPaid(amount); err != nil {
		return nil, err
	}
	if err := sheet.SetNotes(req.Notes); err != nil {
		return nil, err
	}

	return h.service.SelectTreasuryAccount(c.Request.Context(), session, sheet, req.TreasuryAccount.ToDomain())
}

// findOpenInvoice resolves an invoice ID against the open-invoice listing
func (h *ReceiptSheetHandler) findOpenInvoice(
	c *gin.Context,
	session apptreasury.Session,
	invoiceID uuid.UUID,
) (treasury.InvoiceSummary, error) {
	invoices, err := h.service.ListOpenInvoices(c.Request.Context(), session, treasury.InvoiceFilter{Limit: 200})
	if err != nil {
		return treasury.InvoiceSummary{}, err
	}
	for _, invoice := range invoices {
		if invoice.ID == invoiceID {
			return invoice, nil
		}
	}
	return treasury.InvoiceSummary{}, shared.NewValidationError("INVOICE_NOT_FOUND",
		"Invoice is not open for allocation in this company")
}

// loadScopedSheet resolves the :id parameter to a sheet owned by the
// session's company. Sheets of other companies are reported as not found,
// never as forbidden.
func (h *ReceiptSheetHandler) loadScopedSheet(c *gin.Context) (apptreasury.Session, *treasury.ReceiptSheet, bool) {
	session, ok := middleware.GetSession(c)
	if !ok {
		h.Error(c, 401, dto.ErrCodeUnauthorized, "Authentication required")
		return apptreasury.Session{}, nil, false
	}

	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "sheet ID must be a valid UUID")
		return session, nil, false
	}

	sheet, err := h.service.Get(c.Request.Context(), uuid.MustParse(req.ID))
	if err != nil {
		h.HandleError(c, err)
		return session, nil, false
	}
	if sheet.CompanyID != session.CompanyID {
		h.NotFound(c, "Receipt sheet does not exist")
		return session, nil, false
	}
	return session, sheet, true
}
