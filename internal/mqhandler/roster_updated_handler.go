package mqhandler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	mqcontracts "siteops/contracts/mq"
	"siteops/internal/model"
	"siteops/internal/repository"
	"siteops/internal/workerpool"
	"siteops/pkg/metrics"
)

// RosterUpdatedHandler mirrors the externally owned worker roster into
// the store and the in-memory pool. Upserts are idempotent, so a
// redelivered message is harmless.
type RosterUpdatedHandler struct {
	workerRepo *repository.WorkerRepository
	pool       *workerpool.Pool
	logger     *zap.Logger
}

func NewRosterUpdatedHandler(workerRepo *repository.WorkerRepository, pool *workerpool.Pool, logger *zap.Logger) *RosterUpdatedHandler {
	return &RosterUpdatedHandler{workerRepo: workerRepo, pool: pool, logger: logger}
}

func (h *RosterUpdatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	started := time.Now()

	var p mqcontracts.RosterUpdatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal RosterUpdatedPayload", zap.Error(err))
		return err
	}

	h.logger.Info("Handling worker.roster_updated event",
		zap.Int("workers", len(p.Workers)),
	)

	for _, entry := range p.Workers {
		status := model.WorkerInactive
		if entry.Active {
			status = model.WorkerActive
		}
		w := model.Worker{
			ID:             entry.WorkerID,
			Name:           entry.Name,
			Specialization: entry.Specialization,
			Status:         status,
			Rating:         entry.Rating,
		}

		if err := h.workerRepo.Upsert(ctx, w); err != nil {
			h.logger.Error("Failed to upsert roster worker",
				zap.Int64("worker_id", w.ID),
				zap.Error(err),
			)
			return err
		}
		h.pool.Upsert(w)
	}

	metrics.RecordMQConsumeLatency(mqcontracts.RoutingKeyRosterUpdated, "scheduler.roster.q", time.Since(started))
	return nil
}
