package treasuryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tresoria/backend/internal/domain/shared"
	"github.com/tresoria/backend/internal/domain/shared/valueobject"
	"github.com/tresoria/backend/internal/domain/treasury"
	"github.com/tresoria/backend/internal/infrastructure/config"
)

// Client implements treasury.Gateway against the remote treasury backend.
// It owns transport, bearer-token auth and envelope parsing; every failure
// comes back classified per the shared.ErrorKind taxonomy so callers can
// tell a retryable outage from a rejected request.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new treasury API client
func NewClient(cfg config.GatewayConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.APIToken,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// CreateSheet persists a new sheet and returns the server state
func (c *Client) CreateSheet(ctx context.Context, companyID uuid.UUID, payload treasury.SheetPayload) (*treasury.ReceiptSheet, error) {
	path := fmt.Sprintf("/api/v1/companies/%s/receipt-sheets", companyID)
	return c.sheetRequest(ctx, http.MethodPost, path, payload)
}

// UpdateSheet updates an existing sheet
func (c *Client) UpdateSheet(ctx context.Context, id uuid.UUID, payload treasury.SheetPayload) (*treasury.ReceiptSheet, error) {
	return c.sheetRequest(ctx, http.MethodPut, "/api/v1/receipt-sheets/"+id.String(), payload)
}

// SubmitSheet moves a sheet into pending_validation server-side
func (c *Client) SubmitSheet(ctx context.Context, id uuid.UUID) (*treasury.ReceiptSheet, error) {
	return c.sheetRequest(ctx, http.MethodPost, "/api/v1/receipt-sheets/"+id.String()+"/submit", nil)
}

// ValidateSheet performs the validate transition server-side
func (c *Client) ValidateSheet(ctx context.Context, id uuid.UUID) (*treasury.ReceiptSheet, error) {
	return c.sheetRequest(ctx, http.MethodPost, "/api/v1/receipt-sheets/"+id.String()+"/validate", nil)
}

// RejectSheet performs the reject transition server-side
func (c *Client) RejectSheet(ctx context.Context, id uuid.UUID, reason string) (*treasury.ReceiptSheet, error) {
	body := map[string]string{"reason": reason}
	return c.sheetRequest(ctx, http.MethodPost, "/api/v1/receipt-sheets/"+id.String()+"/reject", body)
}

// FetchSheet loads the current server state of a sheet
func (c *Client) FetchSheet(ctx context.Context, id uuid.UUID) (*treasury.ReceiptSheet, error) {
	return c.sheetRequest(ctx, http.MethodGet, "/api/v1/receipt-sheets/"+id.String(), nil)
}

// FetchSheetHistory loads the audit trail of a sheet
func (c *Client) FetchSheetHistory(ctx context.Context, id uuid.UUID) ([]treasury.HistoryEntry, error) {
	raw, err := c.doRequest(ctx, http.MethodGet, "/api/v1/receipt-sheets/"+id.String()+"/history", nil)
	if err != nil {
		return nil, err
	}
	var records []historyRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, decodeError(err)
	}
	entries := make([]treasury.HistoryEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, r.toDomain())
	}
	return entries, nil
}

// ListSheets lists sheets for a company
func (c *Client) ListSheets(ctx context.Context, companyID uuid.UUID, filter treasury.SheetFilter) ([]treasury.ReceiptSheet, error) {
	query := url.Values{}
	if filter.Status != nil {
		query.Set("status", filter.Status.String())
	}
	if filter.PayerCode != "" {
		query.Set("payer_code", filter.PayerCode)
	}
	if filter.FromDate != nil {
		query.Set("from", filter.FromDate.Format(time.RFC3339))
	}
	if filter.ToDate != nil {
		query.Set("to", filter.ToDate.Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	path := fmt.Sprintf("/api/v1/companies/%s/receipt-sheets", companyID)
	raw, err := c.doRequest(ctx, http.MethodGet, withQuery(path, query), nil)
	if err != nil {
		return nil, err
	}
	var records []sheetRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, decodeError(err)
	}
	sheets := make([]treasury.ReceiptSheet, 0, len(records))
	for _, r := range records {
		sheets = append(sheets, *r.toDomain())
	}
	return sheets, nil
}

// ListOpenInvoices lists invoices that can still receive an allocation
func (c *Client) ListOpenInvoices(ctx context.Context, companyID uuid.UUID, filter treasury.InvoiceFilter) ([]treasury.InvoiceSummary, error) {
	query := url.Values{}
	if filter.ThirdPartyID != nil {
		query.Set("third_party_id", filter.ThirdPartyID.String())
	}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	path := fmt.Sprintf("/api/v1/companies/%s/invoices/open", companyID)
	raw, err := c.doRequest(ctx, http.MethodGet, withQuery(path, query), nil)
	if err != nil {
		return nil, err
	}
	var records []invoiceRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, decodeError(err)
	}
	invoices := make([]treasury.InvoiceSummary, 0, len(records))
	for _, r := range records {
		invoices = append(invoices, r.toDomain())
	}
	return invoices, nil
}

// ListThirdParties lists third parties a sheet can reference
func (c *Client) ListThirdParties(ctx context.Context, companyID uuid.UUID, filter treasury.ThirdPartyFilter) ([]treasury.ThirdPartySummary, error) {
	query := url.Values{}
	if filter.Kind != nil {
		query.Set("kind", filter.Kind.String())
	}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	path := fmt.Sprintf("/api/v1/companies/%s/third-parties", companyID)
	raw, err := c.doRequest(ctx, http.MethodGet, withQuery(path, query), nil)
	if err != nil {
		return nil, err
	}
	var records []thirdPartyRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, decodeError(err)
	}
	parties := make([]treasury.ThirdPartySummary, 0, len(records))
	for _, r := range records {
		parties = append(parties, r.toDomain())
	}
	return parties, nil
}

// ResolveCompanyCurrency resolves the company's default currency
func (c *Client) ResolveCompanyCurrency(ctx context.Context, companyID uuid.UUID) (treasury.CompanyCurrency, error) {
	path := fmt.Sprintf("/api/v1/companies/%s/currency", companyID)
	raw, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return treasury.CompanyCurrency{}, err
	}
	var record currencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return treasury.CompanyCurrency{}, decodeError(err)
	}
	return treasury.CompanyCurrency{
		ID:     record.ID,
		Code:   valueobject.Currency(record.Code),
		Symbol: record.Symbol,
	}, nil
}

// sheetRequest performs a request whose response body is a single sheet
func (c *Client) sheetRequest(ctx context.Context, method, path string, body any) (*treasury.ReceiptSheet, error) {
	raw, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	var record sheetRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, decodeError(err)
	}
	return record.toDomain(), nil
}

// doRequest performs an HTTP request and unwraps the response envelope.
// Returned errors are always *shared.DomainError.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reqBody *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, shared.NewValidationError("ENCODE_FAILED", "failed to encode request body: "+err.Error())
		}
		reqBody = bytes.NewReader(encoded)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, shared.NewValidationError("BAD_REQUEST", "failed to build request: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	var envelopeOrBody json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelopeOrBody); err != nil && resp.StatusCode < 400 {
		return nil, decodeError(err)
	}

	if resp.StatusCode >= 400 {
		return nil, c.statusError(resp.StatusCode, envelopeOrBody)
	}
	return unwrapEnvelope(envelopeOrBody), nil
}

// withQuery appends an encoded query string when one is present
func withQuery(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

// unwrapEnvelope returns the data of a {"success","data"} wrapper, or the
// body unchanged when the backend responded bare
func unwrapEnvelope(raw json.RawMessage) json.RawMessage {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Success != nil && len(env.Data) > 0 {
		return env.Data
	}
	return raw
}

// statusError maps an HTTP failure status onto the error taxonomy
func (c *Client) statusError(status int, body json.RawMessage) *shared.DomainError {
	code, message := parseErrorBody(body)

	switch {
	case status == http.StatusUnauthorized:
		if code == "" {
			code = "SESSION_EXPIRED"
		}
		if message == "" {
			message = "Session has expired, please sign in again"
		}
		return shared.NewAuthError(code, message)
	case status == http.StatusForbidden:
		// A permission refusal, not a broken session: the caller keeps
		// its session and is told why the action is blocked
		if code == "" {
			code = "PERMISSION_DENIED"
		}
		if message == "" {
			message = "The backend refused the operation"
		}
		return shared.NewGuardError(code, message)
	case status == http.StatusConflict:
		if code == "" {
			code = "CONFLICT"
		}
		if message == "" {
			message = "The sheet changed on the server, reload and retry"
		}
		return shared.NewConflictError(code, message)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity || status == http.StatusNotFound:
		if code == "" {
			code = "REQUEST_REJECTED"
		}
		if message == "" {
			message = fmt.Sprintf("The backend rejected the request (HTTP %d)", status)
		}
		return shared.NewValidationError(code, message)
	default:
		if code == "" {
			code = "SERVER_ERROR"
		}
		if message == "" {
			message = fmt.Sprintf("The backend failed with HTTP %d", status)
		}
		c.logger.Warn("treasury backend failure",
			zap.Int("status", status),
			zap.String("code", code))
		return shared.NewTransportError(code, message)
	}
}

// parseErrorBody pulls a code and message out of the known error shapes
func parseErrorBody(raw json.RawMessage) (code, message string) {
	if len(raw) == 0 {
		return "", ""
	}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", ""
	}
	if body.Error != nil {
		return body.Error.Code, body.Error.Message
	}
	return body.Code, body.Message
}

// transportError classifies a client-side transport failure
func transportError(err error) *shared.DomainError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return shared.NewTransportError("TIMEOUT", "The treasury backend did not answer in time")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return shared.NewTransportError("TIMEOUT", "The treasury backend did not answer in time")
	}
	return shared.NewTransportError("NETWORK_ERROR", "Could not reach the treasury backend: "+err.Error())
}

// decodeError wraps an unparseable response body
func decodeError(err error) *shared.DomainError {
	return shared.NewTransportError("MALFORMED_RESPONSE", "The backend answer could not be parsed: "+err.Error())
}

var _ treasury.Gateway = (*Client)(nil)
