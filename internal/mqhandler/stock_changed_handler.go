package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	mqcontracts "siteops/contracts/mq"
	"siteops/internal/inventory"
	"siteops/internal/repository"
	"siteops/pkg/metrics"
	"siteops/pkg/util"
)

// StockChangedHandler keeps the stock mirror and cache in sync with the
// external inventory feed.
type StockChangedHandler struct {
	stockRepo *repository.StockRepository
	cache     *inventory.RedisStockProvider
	deduper   *util.Deduper
	logger    *zap.Logger
}

func NewStockChangedHandler(stockRepo *repository.StockRepository, cache *inventory.RedisStockProvider, deduper *util.Deduper, logger *zap.Logger) *StockChangedHandler {
	return &StockChangedHandler{stockRepo: stockRepo, cache: cache, deduper: deduper, logger: logger}
}

func (h *StockChangedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	started := time.Now()

	var p mqcontracts.StockChangedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal StockChangedPayload", zap.Error(err))
		return err
	}

	if p.MaterialID == "" {
		return fmt.Errorf("invalid stock event: empty material_id")
	}
	if p.Level < 0 {
		return fmt.Errorf("invalid stock event: negative level %d for %s", p.Level, p.MaterialID)
	}

	eventKey := fmt.Sprintf("%s:%d", p.MaterialID, p.Level)
	if !h.deduper.AcquireOnce(ctx, "stock_changed", eventKey) {
		return nil
	}

	if err := h.stockRepo.SetLevel(ctx, p.MaterialID, p.Level); err != nil {
		h.logger.Error("Failed to persist stock level",
			zap.String("material_id", p.MaterialID),
			zap.Error(err),
		)
		return err
	}
	if err := h.cache.SetLevel(ctx, p.MaterialID, p.Level); err != nil {
		// Cache refresh is best effort; the provider falls back to the store.
		h.logger.Warn("Failed to refresh stock cache",
			zap.String("material_id", p.MaterialID),
			zap.Error(err),
		)
	}

	h.logger.Info("Stock level updated",
		zap.String("material_id", p.MaterialID),
		zap.Int("level", p.Level),
	)
	metrics.RecordMQConsumeLatency(mqcontracts.RoutingKeyStockChanged, "scheduler.stock.q", time.Since(started))
	return nil
}
