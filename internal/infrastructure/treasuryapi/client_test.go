package treasuryapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tresoria/backend/internal/domain/shared"
	"github.com/tresoria/backend/internal/domain/shared/valueobject"
	"github.com/tresoria/backend/internal/domain/treasury"
	"github.com/tresoria/backend/internal/infrastructure/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.GatewayConfig{
		BaseURL:  server.URL,
		APIToken: "test-token",
		Timeout:  2 * time.Second,
	}, zap.NewNop())
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func sheetJSON(id uuid.UUID) map[string]any {
	return map[string]any{
		"id":              id,
		"company_id":      uuid.New(),
		"sheet_number":    "ENC-2026-0042",
		"status":          "draft",
		"payment_intent":  "advance",
		"payment_method":  "transfer",
		"encashment_date": time.Now().Format(time.RFC3339),
		"payer_type":      "customer",
		"payer_code":      "C-0042",
		"payer_name":      "Kouadio SARL",
		"amount_paid":     "500.00",
		"currency":        map[string]any{"id": uuid.New(), "code": "EUR", "symbol": "€"},
		"created_at":      time.Now().Format(time.RFC3339),
		"updated_at":      time.Now().Format(time.RFC3339),
	}
}

func TestClient_FetchSheet(t *testing.T) {
	id := uuid.New()

	t.Run("bare object response", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/receipt-sheets/"+id.String(), r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(sheetJSON(id))
		})

		sheet, err := client.FetchSheet(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, sheet.ID)
		assert.Equal(t, "ENC-2026-0042", sheet.SheetNumber)
		assert.Equal(t, treasury.SheetStatusDraft, sheet.Status)
		assert.Equal(t, valueobject.EUR, sheet.Currency.Code)
		assert.True(t, sheet.AmountPaid.Equal(decimalFromString(t, "500.00")))
	})

	t.Run("enveloped response", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    sheetJSON(id),
			})
		})

		sheet, err := client.FetchSheet(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, sheet.ID)
	})
}

func TestClient_CreateSheet_SendsPayload(t *testing.T) {
	companyID := uuid.New()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/companies/"+companyID.String()+"/receipt-sheets", r.URL.Path)

		var payload treasury.SheetPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "advance", payload.PaymentIntent)
		assert.Equal(t, "500.00", payload.AmountPaid)

		_ = json.NewEncoder(w).Encode(sheetJSON(uuid.New()))
	})

	payload := treasury.SheetPayload{PaymentIntent: "advance", AmountPaid: "500.00"}
	sheet, err := client.CreateSheet(context.Background(), companyID, payload)
	require.NoError(t, err)
	assert.True(t, sheet.IsPersisted())
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind shared.ErrorKind
		wantCode string
	}{
		{
			"401 maps to auth",
			http.StatusUnauthorized, `{"error":{"code":"SESSION_EXPIRED","message":"token expired"}}`,
			shared.KindAuth, "SESSION_EXPIRED",
		},
		{
			"401 without body gets a default",
			http.StatusUnauthorized, "",
			shared.KindAuth, "SESSION_EXPIRED",
		},
		{
			"403 maps to guard, session stays valid",
			http.StatusForbidden, `{"code":"PERMISSION_DENIED","message":"forbidden"}`,
			shared.KindGuard, "PERMISSION_DENIED",
		},
		{
			"409 maps to conflict",
			http.StatusConflict, `{"message":"version mismatch"}`,
			shared.KindConflict, "CONFLICT",
		},
		{
			"422 passes the backend code through",
			http.StatusUnprocessableEntity, `{"error":{"code":"MISSING_REQUIRED_FIELDS","message":"payer_code is required"}}`,
			shared.KindValidation, "MISSING_REQUIRED_FIELDS",
		},
		{
			"404 maps to validation",
			http.StatusNotFound, `{"message":"no such sheet"}`,
			shared.KindValidation, "REQUEST_REJECTED",
		},
		{
			"500 maps to transport",
			http.StatusInternalServerError, `{"message":"oops"}`,
			shared.KindTransport, "SERVER_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != "" {
					_, _ = w.Write([]byte(tt.body))
				}
			})

			_, err := client.FetchSheet(context.Background(), uuid.New())
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, shared.KindOf(err))
			assert.Equal(t, tt.wantCode, shared.CodeOf(err))
		})
	}
}

func TestClient_NetworkFailureIsTransport(t *testing.T) {
	client := NewClient(config.GatewayConfig{
		BaseURL: "http://127.0.0.1:1", // nothing listens here
		Timeout: time.Second,
	}, zap.NewNop())

	_, err := client.FetchSheet(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, shared.KindTransport, shared.KindOf(err))
	assert.True(t, shared.IsRetryable(err))
}

func TestClient_TimeoutIsTransport(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	client.httpClient.Timeout = 50 * time.Millisecond

	_, err := client.FetchSheet(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, shared.KindTransport, shared.KindOf(err))
	assert.Equal(t, "TIMEOUT", shared.CodeOf(err))
}

func TestClient_FetchSheetHistory(t *testing.T) {
	id := uuid.New()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/receipt-sheets/"+id.String()+"/history", r.URL.Path)
		// Bare array, no envelope
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": uuid.New(), "sheet_id": id, "timestamp": time.Now().Format(time.RFC3339), "action": "created", "actor": "a.diallo"},
			{"id": uuid.New(), "sheet_id": id, "timestamp": time.Now().Format(time.RFC3339), "action": "submitted", "actor": "a.diallo"},
		})
	})

	entries, err := client.FetchSheetHistory(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "created", entries[0].Action)
}

func TestClient_ListOpenInvoices_Filter(t *testing.T) {
	companyID := uuid.New()
	thirdPartyID := uuid.New()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, thirdPartyID.String(), r.URL.Query().Get("third_party_id"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []map[string]any{
				{"id": uuid.New(), "number": "F-001", "total_amount": "1000.00", "outstanding_balance": "400.00", "status": "partially_paid"},
			},
		})
	})

	invoices, err := client.ListOpenInvoices(context.Background(), companyID,
		treasury.InvoiceFilter{ThirdPartyID: &thirdPartyID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, treasury.InvoiceStatusPartiallyPaid, invoices[0].Status)
}

func TestClient_ResolveCompanyCurrency(t *testing.T) {
	companyID := uuid.New()
	currencyID := uuid.New()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/companies/"+companyID.String()+"/currency", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": currencyID, "code": "XOF", "symbol": "FCFA"})
	})

	currency, err := client.ResolveCompanyCurrency(context.Background(), companyID)
	require.NoError(t, err)
	assert.Equal(t, currencyID, currency.ID)
	assert.Equal(t, valueobject.XOF, currency.Code)
	assert.Equal(t, "FCFA", currency.Symbol)
}

func TestClient_MalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	})

	_, err := client.FetchSheet(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, "MALFORMED_RESPONSE", shared.CodeOf(err))
}
