package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apptreasury "github.com/tresoria/backend/internal/application/treasury"
	"github.com/tresoria/backend/internal/domain/treasury"
	"github.com/tresoria/backend/internal/interfaces/http/dto"
	"github.com/tresoria/backend/internal/interfaces/http/middleware"
)

// ReferenceHandler serves the lookup listings a sheet is built from:
// open invoices and third parties
type ReferenceHandler struct {
	BaseHandler
	service *apptreasury.ReceiptSheetService
	logger  *zap.Logger
}

// NewReferenceHandler creates a new ReferenceHandler
func NewReferenceHandler(service *apptreasury.ReceiptSheetService, logger *zap.Logger) *ReferenceHandler {
	return &ReferenceHandler{service: service, logger: logger}
}

// ListOpenInvoices lists the invoices still eligible for allocation
func (h *ReferenceHandler) ListOpenInvoices(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		h.Error(c, 401, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req dto.ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	filter := treasury.InvoiceFilter{Search: req.Search, Limit: req.Limit}
	if req.ThirdPartyID != "" {
		id := uuid.MustParse(req.ThirdPartyID)
		filter.ThirdPartyID = &id
	}

	invoices, err := h.service.ListOpenInvoices(c.Request.Context(), session, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]dto.InvoiceSummaryResponse, 0, len(invoices))
	for _, invoice := range invoices {
		out = append(out, dto.NewInvoiceSummaryResponse(invoice))
	}
	h.Success(c, out)
}

// ListThirdParties lists the third parties a sheet can reference
func (h *ReferenceHandler) ListThirdParties(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		h.Error(c, 401, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req dto.ListThirdPartiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	filter := treasury.ThirdPartyFilter{Search: req.Search, Limit: req.Limit}
	if req.Kind != "" {
		kind := treasury.PayerType(req.Kind)
		filter.Kind = &kind
	}

	parties, err := h.service.ListThirdParties(c.Request.Context(), session, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]dto.ThirdPartyResponse, 0, len(parties))
	for _, party := range parties {
		out = append(out, dto.NewThirdPartyResponse(party))
	}
	h.Success(c, out)
}

// CompanyCurrency resolves the authenticated company's default currency
func (h *ReferenceHandler) CompanyCurrency(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		h.Error(c, 401, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	currency, err := h.service.CompanyCurrency(c.Request.Context(), session)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewCompanyCurrencyResponse(currency))
}
