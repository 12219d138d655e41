package treasury

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tresoria/backend/internal/domain/shared"
	"github.com/tresoria/backend/internal/domain/treasury"
)

// HistoryRefreshHandler reloads a sheet's audit trail whenever a
// history-stale event fires, and caches the latest snapshot per sheet.
// Readers get the cached trail without hitting the gateway again.
type HistoryRefreshHandler struct {
	gateway treasury.Gateway
	logger  *zap.Logger

	mu      sync.RWMutex
	entries map[uuid.UUID][]treasury.HistoryEntry
}

// NewHistoryRefreshHandler creates a new HistoryRefreshHandler
func NewHistoryRefreshHandler(gateway treasury.Gateway, logger *zap.Logger) *HistoryRefreshHandler {
	return &HistoryRefreshHandler{
		gateway: gateway,
		logger:  logger,
		entries: make(map[uuid.UUID][]treasury.HistoryEntry),
	}
}

// EventTypes returns the event types this handler is interested in
func (h *HistoryRefreshHandler) EventTypes() []string {
	return []string{treasury.EventHistoryStale}
}

// Handle reloads the audit trail of the sheet named by the event
func (h *HistoryRefreshHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	stale, ok := event.(*treasury.HistoryStaleEvent)
	if !ok {
		return nil
	}

	entries, err := h.gateway.FetchSheetHistory(ctx, stale.SheetID)
	if err != nil {
		h.logger.Warn("failed to refresh sheet history",
			zap.String("sheet_id", stale.SheetID.String()),
			zap.Error(err))
		return err
	}

	h.mu.Lock()
	h.entries[stale.SheetID] = entries
	h.mu.Unlock()

	h.logger.Debug("refreshed sheet history",
		zap.String("sheet_id", stale.SheetID.String()),
		zap.Int("entry_count", len(entries)))
	return nil
}

// Entries returns the cached audit trail for a sheet, if any
func (h *HistoryRefreshHandler) Entries(sheetID uuid.UUID) ([]treasury.HistoryEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entries, ok := h.entries[sheetID]
	return entries, ok
}

// Forget drops the cached trail for a sheet
func (h *HistoryRefreshHandler) Forget(sheetID uuid.UUID) {
	h.mu.Lock()
	delete(h.entries, sheetID)
	h.mu.Unlock()
}
